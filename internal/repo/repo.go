// Package repo defines the market-data persistence interface.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and development).
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/openmandi/price-engine/internal/model"
)

// ErrNotFound is returned when no record matches the query.
var ErrNotFound = errors.New("repo: not found")

// Repository is the persistence interface. PostgreSQL is the source of
// truth; Redis provides a read-through cache layer. The engine treats
// market data as read-only; only offer history is written.
type Repository interface {
	// --- Market snapshots (read-only) ---

	// FetchSnapshot returns the latest snapshot for the product and
	// location recorded on or before the given date.
	FetchSnapshot(ctx context.Context, product, location string, date time.Time) (*model.MarketSnapshot, error)

	// FetchHistory returns the modal-price series for the product and
	// location since the given time, oldest first.
	FetchHistory(ctx context.Context, product, location string, since time.Time) ([]model.PricePoint, error)

	// ListSnapshots returns all snapshots recorded since the given time.
	ListSnapshots(ctx context.Context, since time.Time) ([]model.MarketSnapshot, error)

	// --- Offer history (manipulation detection input) ---

	// RecordOffer appends an assessed offer to a counterpart's history.
	RecordOffer(ctx context.Context, offer model.PriorOffer) error

	// FetchOfferHistory returns a counterpart's assessed offers since the
	// given time, oldest first.
	FetchOfferHistory(ctx context.Context, counterpartID string, since time.Time) ([]model.PriorOffer, error)
}
