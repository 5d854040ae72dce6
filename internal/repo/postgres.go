package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openmandi/price-engine/internal/model"
)

// PostgresRepository implements Repository using PostgreSQL as the source
// of truth. All monetary values are stored as NUMERIC for exact decimal
// precision.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL-backed repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) FetchSnapshot(ctx context.Context, product, location string, date time.Time) (*model.MarketSnapshot, error) {
	var s model.MarketSnapshot
	var minP, maxP, modalP, arrival string

	err := r.pool.QueryRow(ctx,
		`SELECT product, location, unit, quality_grade,
		        min_price::TEXT, max_price::TEXT, modal_price::TEXT,
		        arrival_volume::TEXT, recorded_at, data_quality
		 FROM market_snapshots
		 WHERE product = $1 AND location = $2 AND recorded_at <= $3
		 ORDER BY recorded_at DESC
		 LIMIT 1`, product, location, date).
		Scan(&s.Product, &s.Location, &s.Unit, &s.QualityGrade,
			&minP, &maxP, &modalP,
			&arrival, &s.RecordedAt, &s.DataQuality)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: snapshot %s/%s", ErrNotFound, product, location)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot %s/%s: %w", product, location, err)
	}

	s.MinPrice, _ = decimal.NewFromString(minP)
	s.MaxPrice, _ = decimal.NewFromString(maxP)
	s.ModalPrice, _ = decimal.NewFromString(modalP)
	s.ArrivalVolume, _ = decimal.NewFromString(arrival)

	return &s, nil
}

func (r *PostgresRepository) FetchHistory(ctx context.Context, product, location string, since time.Time) ([]model.PricePoint, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT modal_price::TEXT, recorded_at
		 FROM market_snapshots
		 WHERE product = $1 AND location = $2 AND recorded_at >= $3
		 ORDER BY recorded_at`, product, location, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []model.PricePoint
	for rows.Next() {
		var p model.PricePoint
		var priceS string
		if err := rows.Scan(&priceS, &p.RecordedAt); err != nil {
			return nil, err
		}
		p.Price, _ = decimal.NewFromString(priceS)
		points = append(points, p)
	}
	return points, rows.Err()
}

func (r *PostgresRepository) ListSnapshots(ctx context.Context, since time.Time) ([]model.MarketSnapshot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT product, location, unit, quality_grade,
		        min_price::TEXT, max_price::TEXT, modal_price::TEXT,
		        arrival_volume::TEXT, recorded_at, data_quality
		 FROM market_snapshots
		 WHERE recorded_at >= $1
		 ORDER BY recorded_at`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []model.MarketSnapshot
	for rows.Next() {
		var s model.MarketSnapshot
		var minP, maxP, modalP, arrival string
		if err := rows.Scan(&s.Product, &s.Location, &s.Unit, &s.QualityGrade,
			&minP, &maxP, &modalP,
			&arrival, &s.RecordedAt, &s.DataQuality); err != nil {
			return nil, err
		}
		s.MinPrice, _ = decimal.NewFromString(minP)
		s.MaxPrice, _ = decimal.NewFromString(maxP)
		s.ModalPrice, _ = decimal.NewFromString(modalP)
		s.ArrivalVolume, _ = decimal.NewFromString(arrival)
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

func (r *PostgresRepository) RecordOffer(ctx context.Context, offer model.PriorOffer) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO offer_history (counterpart_id, unit_price, deviation_pct, verdict, submitted_at)
		 VALUES ($1, $2::NUMERIC, $3, $4, $5)`,
		offer.CounterpartID, offer.UnitPrice.String(),
		offer.DeviationPct, offer.Verdict, offer.SubmittedAt,
	)
	return err
}

func (r *PostgresRepository) FetchOfferHistory(ctx context.Context, counterpartID string, since time.Time) ([]model.PriorOffer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT counterpart_id, unit_price::TEXT, deviation_pct, verdict, submitted_at
		 FROM offer_history
		 WHERE counterpart_id = $1 AND submitted_at >= $2
		 ORDER BY submitted_at`, counterpartID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []model.PriorOffer
	for rows.Next() {
		var o model.PriorOffer
		var priceS string
		if err := rows.Scan(&o.CounterpartID, &priceS, &o.DeviationPct, &o.Verdict, &o.SubmittedAt); err != nil {
			return nil, err
		}
		o.UnitPrice, _ = decimal.NewFromString(priceS)
		offers = append(offers, o)
	}
	return offers, rows.Err()
}
