// ABOUTME: Recommendation engine orchestration: gathers rates for the active
// ABOUTME: classification and its history, evaluates, persists recommendations.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Milo6x/dutyleak/internal/customs"
	"github.com/Milo6x/dutyleak/internal/store"
)

// Engine computes and persists duty-saving recommendations. Rates come from
// the duty_rates cache; stale or missing lanes are fetched from the tariff API.
type Engine struct {
	store   *store.Store
	tariff  *customs.Client
	rateTTL time.Duration
}

// NewEngine creates a recommendation engine.
func NewEngine(s *store.Store, tariff *customs.Client, rateTTL time.Duration) *Engine {
	return &Engine{store: s, tariff: tariff, rateTTL: rateTTL}
}

// RefreshProduct recomputes recommendations for one product and upserts them.
// Products without an active classification produce no recommendations.
// Returns the persisted recommendations (dismissed kinds are skipped by the
// store upsert and absent from the result).
func (e *Engine) RefreshProduct(ctx context.Context, workspaceID uuid.UUID, product *store.Product) ([]store.Recommendation, error) {
	if product.ActiveClassificationID == nil {
		return nil, nil
	}

	active, err := e.store.GetClassification(ctx, workspaceID, *product.ActiveClassificationID)
	if err != nil {
		return nil, fmt.Errorf("recommend: load active classification: %w", err)
	}
	if active == nil {
		return nil, nil
	}

	currentRate, err := e.laneRate(ctx, active.HSCode, product.OriginCountry, product.DestinationCountry)
	if err != nil {
		return nil, err
	}
	if currentRate == nil {
		// No tariff data for the active code; nothing to compare against.
		return nil, nil
	}

	history, err := e.store.ListProductClassifications(ctx, workspaceID, product.ID)
	if err != nil {
		return nil, fmt.Errorf("recommend: load classification history: %w", err)
	}

	// Distinct alternative HS codes from history, excluding the active one.
	seen := map[string]bool{active.HSCode: true}
	var alternatives []RateInfo
	for _, c := range history {
		if seen[c.HSCode] {
			continue
		}
		seen[c.HSCode] = true
		alt, err := e.laneRate(ctx, c.HSCode, product.OriginCountry, product.DestinationCountry)
		if err != nil {
			// One unresolvable lane must not sink the whole evaluation.
			slog.WarnContext(ctx, "recommend: skipping alternative lane",
				"hs_code", c.HSCode, "origin", product.OriginCountry, "err", err)
			continue
		}
		if alt != nil {
			alternatives = append(alternatives, *alt)
		}
	}

	candidates := Evaluate(Input{
		DeclaredValue: product.DeclaredValue,
		Current:       *currentRate,
		Alternatives:  alternatives,
	})

	var persisted []store.Recommendation
	for _, c := range candidates {
		rec, err := e.store.UpsertRecommendation(ctx, workspaceID, store.Recommendation{
			ProductID:       product.ID,
			Kind:            c.Kind,
			CurrentHSCode:   active.HSCode,
			SuggestedHSCode: c.SuggestedHSCode,
			TradeAgreement:  c.TradeAgreement,
			CurrentDuty:     c.CurrentDuty,
			ProjectedDuty:   c.ProjectedDuty,
			SavingPerUnit:   c.SavingPerUnit,
			Rationale:       c.Rationale,
		})
		if err != nil {
			return nil, fmt.Errorf("recommend: persist %s: %w", c.Kind, err)
		}
		if rec != nil {
			persisted = append(persisted, *rec)
		}
	}
	return persisted, nil
}

// LaneRate returns the rate for one (hsCode, origin, destination) lane, using
// the duty_rates cache and refreshing from the tariff API when the entry is
// missing or older than rateTTL. When the API is down a stale cache entry is
// served rather than failing. Returns (nil, nil) when the API has no data for
// the lane.
func (e *Engine) LaneRate(ctx context.Context, hsCode, origin, destination string) (*store.DutyRate, error) {
	cached, err := e.store.GetDutyRate(ctx, hsCode, origin, destination)
	if err != nil {
		return nil, fmt.Errorf("recommend: rate cache: %w", err)
	}
	if cached != nil && time.Since(cached.FetchedAt) < e.rateTTL {
		return cached, nil
	}

	quote, err := e.tariff.FetchRate(ctx, hsCode, origin, destination)
	if err != nil {
		// Serve stale cache over failing outright when the API is down.
		if cached != nil {
			slog.WarnContext(ctx, "recommend: tariff API unavailable; using stale cached rate",
				"hs_code", hsCode, "fetched_at", cached.FetchedAt, "err", err)
			return cached, nil
		}
		return nil, fmt.Errorf("recommend: fetch rate: %w", err)
	}
	if quote == nil {
		return nil, nil
	}

	saved, err := e.store.UpsertDutyRate(ctx, store.DutyRate{
		HSCode:             quote.HSCode,
		OriginCountry:      quote.OriginCountry,
		DestinationCountry: quote.DestinationCountry,
		AdValoremRate:      quote.AdValoremRate,
		SpecificRate:       quote.SpecificRate,
		VATRate:            quote.VATRate,
		PreferentialRate:   quote.PreferentialRate,
		TradeAgreement:     quote.TradeAgreement,
		Source:             "tariff_api",
	})
	if err != nil {
		return nil, fmt.Errorf("recommend: cache rate: %w", err)
	}
	return saved, nil
}

// laneRate is LaneRate narrowed to the fields Evaluate needs.
func (e *Engine) laneRate(ctx context.Context, hsCode, origin, destination string) (*RateInfo, error) {
	rate, err := e.LaneRate(ctx, hsCode, origin, destination)
	if err != nil || rate == nil {
		return nil, err
	}
	return &RateInfo{
		HSCode:           rate.HSCode,
		AdValoremRate:    rate.AdValoremRate,
		PreferentialRate: rate.PreferentialRate,
		TradeAgreement:   rate.TradeAgreement,
	}, nil
}
