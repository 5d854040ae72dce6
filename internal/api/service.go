// Package api provides the HTTP handlers for price discovery, offer
// assessment, and the guarded negotiation pipeline.
//
// All monetary values use shopspring/decimal — never float64 for money.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/openmandi/price-engine/internal/confidence"
	"github.com/openmandi/price-engine/internal/ethics"
	"github.com/openmandi/price-engine/internal/explain"
	"github.com/openmandi/price-engine/internal/fairness"
	"github.com/openmandi/price-engine/internal/metrics"
	"github.com/openmandi/price-engine/internal/model"
	"github.com/openmandi/price-engine/internal/pricing"
	"github.com/openmandi/price-engine/internal/repo"
	"github.com/openmandi/price-engine/internal/snapshot"
)

// Service wires the pricing model, confidence estimator, fairness scorer,
// and ethics guard behind the HTTP API. The core components are stateless;
// all market data comes from the snapshot cache.
type Service struct {
	cache       *snapshot.Cache
	repository  repo.Repository
	model       *pricing.Model
	estimator   *confidence.Estimator
	scorer      *fairness.Scorer
	guard       *ethics.Guard
	offerWindow time.Duration
	wsHub       *WSHub // optional WebSocket hub for assessment broadcasts
}

// NewService creates the API service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(cache *snapshot.Cache, repository repo.Repository,
	m *pricing.Model, est *confidence.Estimator, scorer *fairness.Scorer,
	guard *ethics.Guard, offerWindow time.Duration, hub *WSHub) *Service {
	return &Service{
		cache:       cache,
		repository:  repository,
		model:       m,
		estimator:   est,
		scorer:      scorer,
		guard:       guard,
		offerWindow: offerWindow,
		wsHub:       hub,
	}
}

// --- Request/Response types ---

// AssessRequest is the JSON body for POST /assess. When the estimate is
// omitted the engine prices the offer itself.
type AssessRequest struct {
	Offer    model.Offer          `json:"offer"`
	Estimate *model.PriceEstimate `json:"estimate,omitempty"`
}

// NegotiateRequest is the JSON body for POST /negotiate/assess. The
// interaction context is explicit: callers supply the counterpart and any
// known prior offers; the engine merges in its own recorded history.
type NegotiateRequest struct {
	Offer   model.Offer              `json:"offer"`
	Context model.InteractionContext `json:"context"`
}

// ExplainResponse is the JSON body returned from POST /explain.
type ExplainResponse struct {
	Statements []string `json:"statements"`
}

// --- HTTP Handlers ---

// ListProducts handles GET /api/v1/products
func (s *Service) ListProducts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pricing.Catalogue())
}

// GetPrice handles GET /api/v1/price/{product}
// Query parameters: quantity, location, grade, date (YYYY-MM-DD).
func (s *Service) GetPrice(w http.ResponseWriter, r *http.Request) {
	q, err := s.parsePriceQuery(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	est, err := s.estimate(q)
	if err != nil {
		writeEstimateError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(est)
}

// Explain handles POST /api/v1/explain
// Accepts a price estimate and returns plain-language statements.
func (s *Service) Explain(w http.ResponseWriter, r *http.Request) {
	var est model.PriceEstimate
	if err := json.NewDecoder(r.Body).Decode(&est); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if est.Product == "" || !est.PointPrice.IsPositive() {
		writeError(w, "estimate requires a product and a positive point price", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ExplainResponse{Statements: explain.Explain(&est)})
}

// Assess handles POST /api/v1/assess
// Scores a single offer without ethics context.
func (s *Service) Assess(w http.ResponseWriter, r *http.Request) {
	var req AssessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	assessment, err := s.score(req.Offer, req.Estimate)
	if err != nil {
		writeEstimateError(w, err)
		return
	}
	metrics.AssessmentsTotal.WithLabelValues(string(assessment.Verdict)).Inc()

	slog.Info("offer assessed",
		"id", assessment.ID,
		"product", req.Offer.Product,
		"role", req.Offer.Role,
		"verdict", assessment.Verdict,
		"deviation", assessment.DeviationPct,
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(assessment)
}

// NegotiateAssess handles POST /api/v1/negotiate/assess
// Runs the full pipeline: pricing, scoring, then the ethics guard over the
// counterpart's interaction history.
func (s *Service) NegotiateAssess(w http.ResponseWriter, r *http.Request) {
	var req NegotiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	assessment, err := s.score(req.Offer, nil)
	if err != nil {
		writeEstimateError(w, err)
		return
	}

	ictx := req.Context
	if ictx.CounterpartID != "" && s.repository != nil {
		since := time.Now().UTC().Add(-s.offerWindow)
		stored, err := s.repository.FetchOfferHistory(r.Context(), ictx.CounterpartID, since)
		if err != nil {
			slog.Error("offer history lookup failed", "counterpart", ictx.CounterpartID, "err", err)
		} else {
			ictx.PriorOffers = append(stored, ictx.PriorOffers...)
		}
	}

	assessment = s.guard.Apply(assessment, ictx)

	metrics.AssessmentsTotal.WithLabelValues(string(assessment.Verdict)).Inc()
	for _, f := range assessment.RiskFlags {
		metrics.EthicsFlagsTotal.WithLabelValues(string(f.Kind), string(f.Severity)).Inc()
	}

	if ictx.CounterpartID != "" && s.repository != nil {
		record := model.PriorOffer{
			CounterpartID: ictx.CounterpartID,
			UnitPrice:     req.Offer.UnitPrice,
			DeviationPct:  assessment.DeviationPct,
			Verdict:       assessment.Verdict,
			SubmittedAt:   assessment.AssessedAt,
		}
		if err := s.repository.RecordOffer(r.Context(), record); err != nil {
			slog.Error("offer history write failed", "counterpart", ictx.CounterpartID, "err", err)
		}
	}

	slog.Info("negotiation assessed",
		"id", assessment.ID,
		"product", req.Offer.Product,
		"role", req.Offer.Role,
		"counterpart", ictx.CounterpartID,
		"verdict", assessment.Verdict,
		"flags", len(assessment.RiskFlags),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:       "offer_assessed",
			Product:    req.Offer.Product,
			Location:   req.Offer.Location,
			Verdict:    string(assessment.Verdict),
			PointPrice: assessment.PointPrice.String(),
			Flags:      len(assessment.RiskFlags),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(assessment)
}

// RefreshSnapshots handles POST /api/v1/snapshots/refresh
// Forces a cache rebuild outside the cron schedule.
func (s *Service) RefreshSnapshots(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Refresh(r.Context()); err != nil {
		metrics.CacheRefreshesTotal.WithLabelValues("error").Inc()
		writeError(w, "snapshot refresh failed", http.StatusBadGateway)
		return
	}
	metrics.CacheRefreshesTotal.WithLabelValues("ok").Inc()
	metrics.CachedSeries.Set(float64(s.cache.Size()))

	slog.Info("snapshot cache refreshed", "series", s.cache.Size())

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:   "snapshot_refreshed",
			Series: s.cache.Size(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"refreshed_at": s.cache.LastRefresh(),
		"series":       s.cache.Size(),
	})
}

// --- Pipeline helpers ---

// estimate runs the pricing model and wraps the result in a confidence band.
func (s *Service) estimate(q pricing.Query) (*model.PriceEstimate, error) {
	res, err := s.model.Estimate(s.cache, q)
	if err != nil {
		return nil, err
	}

	history := s.cache.History(res.Snapshot.Product, res.Snapshot.Location)

	// Staleness is measured against the query date, not the wall clock, so
	// identical queries against the same cache generation answer
	// identically.
	asOf := q.Date
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	band := s.estimator.Bound(res.PointPrice, res.DataQuality, res.Snapshot.RecordedAt, history, asOf)

	location := q.Location
	if location == "" {
		location = res.Snapshot.Location
	}
	unit := res.Snapshot.Unit
	if unit == "" {
		unit = model.DefaultUnit
	}

	metrics.EstimatesTotal.WithLabelValues(res.Snapshot.Product).Inc()
	if band.Degraded {
		metrics.DegradedEstimatesTotal.Inc()
	}

	return &model.PriceEstimate{
		Product:     res.Snapshot.Product,
		Location:    location,
		Unit:        unit,
		PointPrice:  res.PointPrice,
		LowerBound:  band.Lower,
		UpperBound:  band.Upper,
		Confidence:  band.Confidence,
		Degraded:    band.Degraded,
		DataQuality: res.DataQuality,
		Factors:     res.Factors,
		SnapshotAt:  res.Snapshot.RecordedAt,
	}, nil
}

// score prices the offer when no estimate was supplied, then runs the
// fairness scorer.
func (s *Service) score(offer model.Offer, est *model.PriceEstimate) (*model.FairnessAssessment, error) {
	if err := offer.Validate(); err != nil {
		return nil, err
	}
	if est == nil {
		var err error
		est, err = s.estimate(pricing.Query{
			Product:      offer.Product,
			Quantity:     offer.Quantity,
			Location:     offer.Location,
			QualityGrade: offer.QualityGrade,
			Date:         time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
	}
	return s.scorer.Assess(offer, est)
}

func (s *Service) parsePriceQuery(r *http.Request) (pricing.Query, error) {
	q := pricing.Query{
		Product:      chi.URLParam(r, "product"),
		Location:     r.URL.Query().Get("location"),
		QualityGrade: r.URL.Query().Get("grade"),
		Quantity:     decimal.NewFromInt(1),
		Date:         time.Now().UTC(),
	}

	if raw := r.URL.Query().Get("quantity"); raw != "" {
		qty, err := decimal.NewFromString(raw)
		if err != nil {
			return q, errors.New("quantity must be a number")
		}
		q.Quantity = qty
	}
	if raw := r.URL.Query().Get("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return q, errors.New("date must be YYYY-MM-DD")
		}
		q.Date = date
	}
	return q, nil
}

// --- Error mapping ---

// writeEstimateError maps pipeline errors onto HTTP statuses: missing data
// is 404, bad input is 400, anything else 500.
func writeEstimateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricing.ErrNoComparableData):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, pricing.ErrInvalidQuantity),
		errors.Is(err, pricing.ErrUnknownGrade),
		errors.Is(err, model.ErrInvalidOffer),
		errors.Is(err, fairness.ErrEstimateMismatch),
		errors.Is(err, fairness.ErrZeroPoint):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
