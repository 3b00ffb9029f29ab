package inventory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	t2 = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
)

func barrel(status UnitStatus, created, changed time.Time) Unit {
	return Unit{
		ID:              uuid.New(),
		TenantID:        uuid.New(),
		Product:         "Bourbon",
		SpiritsClass:    ClassUnder190,
		TaxStatus:       TaxStatusBonded,
		Status:          status,
		Warehouse:       "RICK-A",
		VolumeWG:        53.0,
		EntryProof:      62.5,
		CreatedAt:       created,
		StatusChangedAt: changed,
	}
}

func TestActiveAsOf(t *testing.T) {
	cases := []struct {
		name string
		unit Unit
		asOf time.Time
		want bool
	}{
		{"active never changed, created before", barrel(StatusAging, t0, t0), t1, true},
		{"active never changed, created after", barrel(StatusFilled, t2, t2), t1, false},
		{"active changed before asOf", barrel(StatusAging, t0, t1), t2, true},
		{"active changed after asOf", barrel(StatusAging, t0, t2), t1, false},
		{"sold after asOf still counted", barrel(StatusSold, t0, t2), t1, true},
		{"sold before asOf excluded", barrel(StatusSold, t0, t1), t2, false},
		{"created after asOf excluded even if sold later", barrel(StatusSold, t2, t2.Add(time.Hour)), t1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.unit.ActiveAsOf(tc.asOf))
		})
	}
}

func TestReconstructRowsGroupsAndConverts(t *testing.T) {
	units := []Unit{
		barrel(StatusAging, t0, t0),
		barrel(StatusAging, t0, t0),
		barrel(StatusSold, t0, t2), // sold after asOf, still on hand at t1
	}
	rye := barrel(StatusFilled, t0, t0)
	rye.Product = "Rye"
	rye.EntryProof = 55.0
	rye.VolumeWG = 30.0
	units = append(units, rye)

	rows := ReconstructRows(units, t1)
	require.Len(t, rows, 2)

	require.Equal(t, "Bourbon", rows[0].Product)
	require.Equal(t, 3, rows[0].UnitCount)
	require.InDelta(t, 159.0, rows[0].WineGallons, 0.001)
	require.InDelta(t, 99.38, rows[0].ProofGallons, 0.001) // 159 * 0.625

	require.Equal(t, "Rye", rows[1].Product)
	require.InDelta(t, 30.0, rows[1].WineGallons, 0.001)
	require.InDelta(t, 16.5, rows[1].ProofGallons, 0.001)
}

func TestReconstructRowsWeightedProof(t *testing.T) {
	a := barrel(StatusAging, t0, t0)
	b := barrel(StatusAging, t0, t0)
	b.EntryProof = 50.0
	rows := ReconstructRows([]Unit{a, b}, t1)
	require.Len(t, rows, 1)
	// weighted mean proof (62.5+50)/2 = 56.25 over 106 wg
	require.InDelta(t, 59.63, rows[0].ProofGallons, 0.001)
}

func TestWarehouseBalances(t *testing.T) {
	a := barrel(StatusAging, t0, t0)
	b := barrel(StatusFilled, t0, t0)
	b.Warehouse = "RICK-B"
	sold := barrel(StatusSold, t0, t1)
	balances := WarehouseBalances([]Unit{a, b, sold})
	require.Len(t, balances, 2)
	require.Equal(t, "RICK-A", balances[0].Warehouse)
	require.Equal(t, 1, balances[0].UnitCount)
	require.InDelta(t, 33.13, balances[0].ProofGallons, 0.001)
	require.Equal(t, "RICK-B", balances[1].Warehouse)
}
