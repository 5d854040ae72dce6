// Package snapshot holds the in-process market-data cache. A refresh builds
// a complete new generation from the repository and swaps it in atomically,
// so readers never observe a half-built view.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/openmandi/price-engine/internal/model"
	"github.com/openmandi/price-engine/internal/repo"
)

// generation is one immutable cache build. Snapshots per key are sorted by
// RecordedAt ascending.
type generation struct {
	snaps   map[string][]model.MarketSnapshot
	history map[string][]model.PricePoint
	builtAt time.Time
}

func key(product, location string) string {
	return strings.ToLower(product) + "|" + strings.ToLower(location)
}

// Cache serves reads from the current generation. It implements the pricing
// model's SnapshotSource and feeds the confidence estimator's history.
type Cache struct {
	repo   repo.Repository
	window time.Duration
	gen    atomic.Pointer[generation]
}

// NewCache creates an empty cache over the repository. The window bounds
// both the snapshot horizon and the volatility history loaded per refresh.
// Call Refresh before serving.
func NewCache(r repo.Repository, window time.Duration) *Cache {
	c := &Cache{repo: r, window: window}
	c.gen.Store(&generation{
		snaps:   map[string][]model.MarketSnapshot{},
		history: map[string][]model.PricePoint{},
	})
	return c
}

// Refresh loads every snapshot inside the window and swaps in a new
// generation. On error the previous generation keeps serving.
func (c *Cache) Refresh(ctx context.Context) error {
	now := time.Now().UTC()
	snaps, err := c.repo.ListSnapshots(ctx, now.Add(-c.window))
	if err != nil {
		return fmt.Errorf("refresh snapshot cache: %w", err)
	}

	next := &generation{
		snaps:   make(map[string][]model.MarketSnapshot),
		history: make(map[string][]model.PricePoint),
		builtAt: now,
	}
	for _, s := range snaps {
		k := key(s.Product, s.Location)
		next.snaps[k] = append(next.snaps[k], s)
		next.history[k] = append(next.history[k], model.PricePoint{
			Price:      s.ModalPrice,
			RecordedAt: s.RecordedAt,
		})
	}
	for k := range next.snaps {
		series := next.snaps[k]
		sort.Slice(series, func(i, j int) bool {
			return series[i].RecordedAt.Before(series[j].RecordedAt)
		})
		points := next.history[k]
		sort.Slice(points, func(i, j int) bool {
			return points[i].RecordedAt.Before(points[j].RecordedAt)
		})
	}

	c.gen.Store(next)
	return nil
}

// Snapshot returns the latest snapshot for the product and location recorded
// on or before date.
func (c *Cache) Snapshot(product, location string, date time.Time) (*model.MarketSnapshot, bool) {
	series := c.gen.Load().snaps[key(product, location)]
	return latestBefore(series, date)
}

// SnapshotAnyLocation returns the freshest snapshot for the product across
// all locations, ties broken by location name so lookups are deterministic.
func (c *Cache) SnapshotAnyLocation(product string, date time.Time) (*model.MarketSnapshot, bool) {
	g := c.gen.Load()
	prefix := strings.ToLower(product) + "|"

	var best *model.MarketSnapshot
	for k, series := range g.snaps {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		snap, ok := latestBefore(series, date)
		if !ok {
			continue
		}
		if best == nil ||
			snap.RecordedAt.After(best.RecordedAt) ||
			(snap.RecordedAt.Equal(best.RecordedAt) && snap.Location < best.Location) {
			best = snap
		}
	}
	return best, best != nil
}

// History returns the modal-price series for the product and location,
// oldest first. The slice belongs to the current generation; callers must
// not mutate it.
func (c *Cache) History(product, location string) []model.PricePoint {
	return c.gen.Load().history[key(product, location)]
}

// LastRefresh reports when the serving generation was built; zero before
// the first refresh.
func (c *Cache) LastRefresh() time.Time {
	return c.gen.Load().builtAt
}

// Size reports how many (product, location) series the serving generation
// holds.
func (c *Cache) Size() int {
	return len(c.gen.Load().snaps)
}

func latestBefore(series []model.MarketSnapshot, date time.Time) (*model.MarketSnapshot, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		if !series[i].RecordedAt.After(date) {
			out := series[i]
			return &out, true
		}
	}
	return nil, false
}
