// Package gauge implements the federal gauging arithmetic between wine
// gallons and proof gallons.
package gauge

import (
	"errors"
	"math"
)

// StandardBarrelWineGallons is the per-barrel fill volume used for
// storage reporting.
const StandardBarrelWineGallons = 53.0

// ErrInvalidProof indicates an entry proof outside the usable range.
var ErrInvalidProof = errors.New("gauge: entry proof must be greater than zero")

// ProofGallons converts wine gallons to proof gallons at the given entry proof.
// Results are rounded to two decimals per regulatory convention.
func ProofGallons(wineGallons, entryProof float64) float64 {
	return Round2(wineGallons * entryProof / 100)
}

// WineGallons converts proof gallons back to wine gallons at the given entry proof.
func WineGallons(proofGallons, entryProof float64) float64 {
	return Round2(proofGallons / (entryProof / 100))
}

// ValidProof reports whether an entry proof is usable for conversion.
func ValidProof(entryProof float64) bool {
	return entryProof > 0 && !math.IsInf(entryProof, 1) && !math.IsNaN(entryProof)
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Barrels converts a wine-gallon total to whole standard barrels.
func Barrels(wineGallons float64) int {
	return int(math.Round(wineGallons / StandardBarrelWineGallons))
}
