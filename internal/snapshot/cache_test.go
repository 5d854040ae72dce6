package snapshot_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openmandi/price-engine/internal/model"
	"github.com/openmandi/price-engine/internal/repo"
	"github.com/openmandi/price-engine/internal/snapshot"
)

type failingRepo struct {
	repo.Repository
}

func (f *failingRepo) ListSnapshots(context.Context, time.Time) ([]model.MarketSnapshot, error) {
	return nil, errors.New("connection refused")
}

func TestCache_RefreshAndLookup(t *testing.T) {
	now := time.Now().UTC()
	c := snapshot.NewCache(repo.NewSeededMemoryRepository(now), 30*24*time.Hour)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if c.Size() == 0 {
		t.Fatal("expected seeded series after refresh")
	}

	snap, ok := c.Snapshot("rice", "mumbai", now)
	if !ok {
		t.Fatal("expected a rice/mumbai snapshot")
	}
	if snap.Product != "rice" || snap.Location != "mumbai" {
		t.Errorf("wrong snapshot: %s/%s", snap.Product, snap.Location)
	}

	// Lookups are case-insensitive the way the HTTP layer sends them.
	if _, ok := c.Snapshot("Rice", "MUMBAI", now); !ok {
		t.Error("lookup should be case-insensitive")
	}

	if _, ok := c.Snapshot("rice", "mumbai", now.Add(-90*24*time.Hour)); ok {
		t.Error("no snapshot should predate the seeded window")
	}
}

func TestCache_SnapshotReturnsLatestBeforeDate(t *testing.T) {
	now := time.Now().UTC()
	r := repo.NewMemoryRepository()
	old := model.MarketSnapshot{
		Product: "rice", Location: "mumbai", ModalPrice: decimal.NewFromInt(2400),
		RecordedAt: now.Add(-48 * time.Hour), DataQuality: model.QualityHigh,
	}
	fresh := old
	fresh.ModalPrice = decimal.NewFromInt(2500)
	fresh.RecordedAt = now.Add(-2 * time.Hour)
	r.AddSnapshots(old, fresh)

	c := snapshot.NewCache(r, 30*24*time.Hour)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	snap, ok := c.Snapshot("rice", "mumbai", now)
	if !ok || !snap.ModalPrice.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("expected the fresh snapshot, got %+v", snap)
	}

	snap, ok = c.Snapshot("rice", "mumbai", now.Add(-24*time.Hour))
	if !ok || !snap.ModalPrice.Equal(decimal.NewFromInt(2400)) {
		t.Errorf("expected the older snapshot for a past date, got %+v", snap)
	}
}

func TestCache_SnapshotAnyLocation(t *testing.T) {
	now := time.Now().UTC()
	c := snapshot.NewCache(repo.NewSeededMemoryRepository(now), 30*24*time.Hour)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	snap, ok := c.SnapshotAnyLocation("onion", now)
	if !ok {
		t.Fatal("expected an onion snapshot from some location")
	}
	if snap.Location != "nashik" {
		t.Errorf("expected the seeded nashik series, got %s", snap.Location)
	}

	if _, ok := c.SnapshotAnyLocation("dragonfruit", now); ok {
		t.Error("unknown products should miss")
	}
}

func TestCache_HistoryOldestFirst(t *testing.T) {
	now := time.Now().UTC()
	c := snapshot.NewCache(repo.NewSeededMemoryRepository(now), 30*24*time.Hour)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	points := c.History("rice", "mumbai")
	if len(points) < 3 {
		t.Fatalf("expected a seeded history series, got %d points", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].RecordedAt.Before(points[i-1].RecordedAt) {
			t.Fatal("history must be sorted oldest first")
		}
	}
}

func TestCache_FailedRefreshKeepsServing(t *testing.T) {
	now := time.Now().UTC()
	seeded := repo.NewSeededMemoryRepository(now)
	c := snapshot.NewCache(seeded, 30*24*time.Hour)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	before := c.LastRefresh()

	broken := snapshot.NewCache(&failingRepo{}, 30*24*time.Hour)
	if err := broken.Refresh(context.Background()); err == nil {
		t.Error("expected refresh error from a failing repository")
	}

	// The healthy cache still serves its generation.
	if _, ok := c.Snapshot("rice", "mumbai", now); !ok {
		t.Error("existing generation should keep serving")
	}
	if !c.LastRefresh().Equal(before) {
		t.Error("generation should be untouched")
	}
}

func TestCache_EmptyBeforeFirstRefresh(t *testing.T) {
	c := snapshot.NewCache(repo.NewMemoryRepository(), time.Hour)
	if _, ok := c.Snapshot("rice", "mumbai", time.Now()); ok {
		t.Error("cache must be empty before the first refresh")
	}
	if !c.LastRefresh().IsZero() {
		t.Error("LastRefresh should be zero before the first refresh")
	}
}
