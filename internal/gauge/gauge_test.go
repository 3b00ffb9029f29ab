package gauge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProofGallons(t *testing.T) {
	// 530 wine gallons entered at 62.5 proof-percent.
	require.InDelta(t, 331.25, ProofGallons(530, 62.5), 0.001)
	require.InDelta(t, 53.0, ProofGallons(53, 100), 0.001)
	require.InDelta(t, 0.0, ProofGallons(0, 62.5), 0.001)
}

func TestWineGallons(t *testing.T) {
	require.InDelta(t, 530.0, WineGallons(331.25, 62.5), 0.001)
	require.InDelta(t, 1.0, WineGallons(0.5, 50), 0.001)
}

func TestRoundTrip(t *testing.T) {
	proofs := []float64{40, 50, 62.5, 95, 100, 125}
	values := []float64{0.01, 1, 53, 530, 12345.67}
	for _, p := range proofs {
		for _, v := range values {
			require.InDelta(t, v, WineGallons(ProofGallons(v, p), p), 0.011, "wg round trip p=%v v=%v", p, v)
			require.InDelta(t, v, ProofGallons(WineGallons(v, p), p), 0.011, "pg round trip p=%v v=%v", p, v)
		}
	}
}

func TestValidProof(t *testing.T) {
	require.True(t, ValidProof(62.5))
	require.False(t, ValidProof(0))
	require.False(t, ValidProof(-1))
}

func TestBarrels(t *testing.T) {
	require.Equal(t, 10, Barrels(530))
	require.Equal(t, 10, Barrels(545))
	require.Equal(t, 0, Barrels(0))
}
