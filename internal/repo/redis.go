package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openmandi/price-engine/internal/model"
)

// CachedRepository wraps a primary Repository (PostgreSQL) with a Redis
// read-through cache. Market data is cached with a TTL; offer writes go to
// the primary and invalidate the counterpart's history.
type CachedRepository struct {
	primary Repository
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedRepository creates a cached wrapper around a primary repository.
func NewCachedRepository(primary Repository, rdb *redis.Client, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through (check cache first) ---

func (r *CachedRepository) FetchSnapshot(ctx context.Context, product, location string, date time.Time) (*model.MarketSnapshot, error) {
	key := snapshotKey(product, location, date)
	data, err := r.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var s model.MarketSnapshot
		if json.Unmarshal(data, &s) == nil {
			return &s, nil
		}
	}

	s, err := r.primary.FetchSnapshot(ctx, product, location, date)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(s); err == nil {
		r.rdb.Set(ctx, key, data, r.ttl)
	}
	return s, nil
}

func (r *CachedRepository) FetchHistory(ctx context.Context, product, location string, since time.Time) ([]model.PricePoint, error) {
	key := historyKey(product, location, since)
	data, err := r.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var points []model.PricePoint
		if json.Unmarshal(data, &points) == nil {
			return points, nil
		}
	}

	points, err := r.primary.FetchHistory(ctx, product, location, since)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(points); err == nil {
		r.rdb.Set(ctx, key, data, r.ttl)
	}
	return points, nil
}

func (r *CachedRepository) FetchOfferHistory(ctx context.Context, counterpartID string, since time.Time) ([]model.PriorOffer, error) {
	key := offersKey(counterpartID)
	data, err := r.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var offers []model.PriorOffer
		if json.Unmarshal(data, &offers) == nil {
			return filterSince(offers, since), nil
		}
	}

	offers, err := r.primary.FetchOfferHistory(ctx, counterpartID, since)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(offers); err == nil {
		r.rdb.Set(ctx, key, data, r.ttl)
	}
	return offers, nil
}

// --- Write-through (write to primary, invalidate cache) ---

func (r *CachedRepository) RecordOffer(ctx context.Context, offer model.PriorOffer) error {
	if err := r.primary.RecordOffer(ctx, offer); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	r.rdb.Del(ctx, offersKey(offer.CounterpartID))
	return nil
}

// --- Passthrough (not cached) ---

func (r *CachedRepository) ListSnapshots(ctx context.Context, since time.Time) ([]model.MarketSnapshot, error) {
	return r.primary.ListSnapshots(ctx, since)
}

func filterSince(offers []model.PriorOffer, since time.Time) []model.PriorOffer {
	var out []model.PriorOffer
	for _, o := range offers {
		if !o.SubmittedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out
}

func snapshotKey(product, location string, date time.Time) string {
	return fmt.Sprintf("snapshot:%s:%s:%s", product, location, date.Format("2006-01-02"))
}

func historyKey(product, location string, since time.Time) string {
	return fmt.Sprintf("history:%s:%s:%s", product, location, since.Format("2006-01-02"))
}

func offersKey(counterpartID string) string {
	return fmt.Sprintf("offers:%s", counterpartID)
}
