package repo

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openmandi/price-engine/internal/model"
)

// seedProduct is one row of the shipped sample mandi dataset. Prices are
// per quintal in rupees.
type seedProduct struct {
	product  string
	location string
	min      int64
	max      int64
	modal    int64
}

var seedProducts = []seedProduct{
	{"rice", "mumbai", 2200, 2800, 2500},
	{"rice", "delhi", 2150, 2750, 2450},
	{"wheat", "indore", 2000, 2400, 2200},
	{"wheat", "delhi", 2050, 2450, 2250},
	{"onion", "nashik", 2500, 3500, 3000},
	{"potato", "delhi", 1500, 2100, 1800},
	{"tomato", "pune", 3200, 4800, 4000},
	{"cotton", "rural", 5000, 6000, 5500},
	{"sugarcane", "rural", 320, 380, 350},
	{"turmeric", "hyderabad", 7200, 8800, 8000},
}

// wobble is a deterministic 14-day modal-price pattern, in tenths of a
// percent around the modal. Seeded history needs some dispersion or every
// volatility measure reads zero.
var wobble = [14]int64{0, 12, -8, 20, -15, 5, 18, -10, 3, -20, 15, -5, 10, -12}

// SampleSnapshots builds the shipped development dataset: fourteen daily
// snapshots per (product, location), newest recorded the day before now.
func SampleSnapshots(now time.Time) []model.MarketSnapshot {
	day := now.Truncate(24 * time.Hour)
	var snaps []model.MarketSnapshot

	for _, p := range seedProducts {
		modal := decimal.NewFromInt(p.modal)
		for i := 0; i < len(wobble); i++ {
			offset := decimal.NewFromInt(wobble[i]).Div(decimal.NewFromInt(1000))
			price := modal.Mul(decimal.NewFromInt(1).Add(offset)).Round(0)
			snaps = append(snaps, model.MarketSnapshot{
				Product:       p.product,
				Location:      p.location,
				Unit:          model.DefaultUnit,
				QualityGrade:  "good",
				MinPrice:      decimal.NewFromInt(p.min),
				MaxPrice:      decimal.NewFromInt(p.max),
				ModalPrice:    price,
				ArrivalVolume: decimal.NewFromInt(100 + int64(i)*10),
				RecordedAt:    day.Add(-time.Duration(len(wobble)-i) * 24 * time.Hour),
				DataQuality:   model.QualityHigh,
			})
		}
	}
	return snaps
}

// NewSeededMemoryRepository returns a memory repository pre-loaded with the
// sample dataset. Used by tests and the dev server profile.
func NewSeededMemoryRepository(now time.Time) *MemoryRepository {
	r := NewMemoryRepository()
	r.AddSnapshots(SampleSnapshots(now)...)
	return r
}
