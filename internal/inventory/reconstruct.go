package inventory

import (
	"sort"
	"time"

	"github.com/barrelbook/barrelbook/internal/gauge"
)

type groupKey struct {
	Product      string
	SpiritsClass SpiritsClass
	TaxStatus    TaxStatus
}

type groupAccum struct {
	wineGallons float64
	proofSum    float64
	count       int
}

// ReconstructRows derives snapshot balance rows from the unit set as of a
// point in time. Units surviving the ActiveAsOf filter are grouped by
// (product, spirits class, tax status); wine gallons are summed and proof
// gallons derived from the group's unit-count-weighted entry proof.
func ReconstructRows(units []Unit, asOf time.Time) []SnapshotRow {
	groups := make(map[groupKey]*groupAccum)
	for _, unit := range units {
		if !unit.ActiveAsOf(asOf) {
			continue
		}
		key := groupKey{Product: unit.Product, SpiritsClass: unit.SpiritsClass, TaxStatus: unit.TaxStatus}
		acc := groups[key]
		if acc == nil {
			acc = &groupAccum{}
			groups[key] = acc
		}
		acc.wineGallons += unit.VolumeWG
		acc.proofSum += unit.EntryProof
		acc.count++
	}

	rows := make([]SnapshotRow, 0, len(groups))
	for key, acc := range groups {
		proof := acc.proofSum / float64(acc.count)
		wg := gauge.Round2(acc.wineGallons)
		rows = append(rows, SnapshotRow{
			Product:      key.Product,
			SpiritsClass: key.SpiritsClass,
			TaxStatus:    key.TaxStatus,
			ProofGallons: gauge.ProofGallons(wg, proof),
			WineGallons:  wg,
			UnitCount:    acc.count,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Product != rows[j].Product {
			return rows[i].Product < rows[j].Product
		}
		if rows[i].SpiritsClass != rows[j].SpiritsClass {
			return rows[i].SpiritsClass < rows[j].SpiritsClass
		}
		return rows[i].TaxStatus < rows[j].TaxStatus
	})
	return rows
}

// WarehouseBalances aggregates live active units by physical location.
func WarehouseBalances(units []Unit) []WarehouseBalance {
	type accum struct {
		wg    float64
		pg    float64
		count int
	}
	groups := make(map[string]*accum)
	for _, unit := range units {
		if !unit.Status.Active() {
			continue
		}
		acc := groups[unit.Warehouse]
		if acc == nil {
			acc = &accum{}
			groups[unit.Warehouse] = acc
		}
		acc.wg += unit.VolumeWG
		acc.pg += gauge.ProofGallons(unit.VolumeWG, unit.EntryProof)
		acc.count++
	}
	balances := make([]WarehouseBalance, 0, len(groups))
	for warehouse, acc := range groups {
		balances = append(balances, WarehouseBalance{
			Warehouse:    warehouse,
			UnitCount:    acc.count,
			ProofGallons: gauge.Round2(acc.pg),
			WineGallons:  gauge.Round2(acc.wg),
		})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].Warehouse < balances[j].Warehouse })
	return balances
}
