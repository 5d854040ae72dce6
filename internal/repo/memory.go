package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openmandi/price-engine/internal/model"
)

// MemoryRepository implements Repository with in-memory slices. Used for
// testing and development. Not suitable for production (no persistence).
type MemoryRepository struct {
	mu        sync.RWMutex
	snapshots []model.MarketSnapshot
	offers    map[string][]model.PriorOffer
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		offers: make(map[string][]model.PriorOffer),
	}
}

// AddSnapshots loads snapshots into the repository.
func (r *MemoryRepository) AddSnapshots(snaps ...model.MarketSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snaps...)
}

func (r *MemoryRepository) FetchSnapshot(_ context.Context, product, location string, date time.Time) (*model.MarketSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *model.MarketSnapshot
	for i := range r.snapshots {
		s := &r.snapshots[i]
		if !strings.EqualFold(s.Product, product) || !strings.EqualFold(s.Location, location) {
			continue
		}
		if s.RecordedAt.After(date) {
			continue
		}
		if best == nil || s.RecordedAt.After(best.RecordedAt) {
			best = s
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	out := *best
	return &out, nil
}

func (r *MemoryRepository) FetchHistory(_ context.Context, product, location string, since time.Time) ([]model.PricePoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var points []model.PricePoint
	for _, s := range r.snapshots {
		if !strings.EqualFold(s.Product, product) || !strings.EqualFold(s.Location, location) {
			continue
		}
		if s.RecordedAt.Before(since) {
			continue
		}
		points = append(points, model.PricePoint{Price: s.ModalPrice, RecordedAt: s.RecordedAt})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].RecordedAt.Before(points[j].RecordedAt)
	})
	return points, nil
}

func (r *MemoryRepository) ListSnapshots(_ context.Context, since time.Time) ([]model.MarketSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.MarketSnapshot
	for _, s := range r.snapshots {
		if s.RecordedAt.Before(since) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *MemoryRepository) RecordOffer(_ context.Context, offer model.PriorOffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers[offer.CounterpartID] = append(r.offers[offer.CounterpartID], offer)
	return nil
}

func (r *MemoryRepository) FetchOfferHistory(_ context.Context, counterpartID string, since time.Time) ([]model.PriorOffer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.PriorOffer
	for _, o := range r.offers[counterpartID] {
		if o.SubmittedAt.Before(since) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}
