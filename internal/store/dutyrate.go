// ABOUTME: Store methods for the shared duty rate cache keyed by HS code and lane.
// ABOUTME: Global table — tariff rates are public data, not tenant data; no RLS.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DutyRate is a cached tariff rate for one (HS code, origin, destination) lane.
type DutyRate struct {
	ID                 uuid.UUID
	HSCode             string
	OriginCountry      string
	DestinationCountry string
	// AdValoremRate is the duty as a fraction of customs value (0.065 = 6.5%).
	AdValoremRate float64
	// SpecificRate is a per-unit duty amount in destination currency, if any.
	SpecificRate *float64
	// VATRate is the import VAT/GST fraction applied at the destination.
	VATRate float64
	// PreferentialRate is the reduced fraction under an applicable trade
	// agreement, if one exists for the lane.
	PreferentialRate *float64
	TradeAgreement   *string
	Source           string
	FetchedAt        time.Time
}

const dutyRateColumns = `id, hs_code, origin_country, destination_country, ad_valorem_rate,
	specific_rate, vat_rate, preferential_rate, trade_agreement, source, fetched_at`

func scanDutyRate(row pgx.Row) (*DutyRate, error) {
	var d DutyRate
	err := row.Scan(&d.ID, &d.HSCode, &d.OriginCountry, &d.DestinationCountry,
		&d.AdValoremRate, &d.SpecificRate, &d.VATRate, &d.PreferentialRate,
		&d.TradeAgreement, &d.Source, &d.FetchedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UpsertDutyRate inserts or refreshes the cached rate for a lane.
func (s *Store) UpsertDutyRate(ctx context.Context, d DutyRate) (*DutyRate, error) {
	row, err := scanDutyRate(s.pool.QueryRow(ctx,
		`INSERT INTO duty_rates (hs_code, origin_country, destination_country, ad_valorem_rate,
		                         specific_rate, vat_rate, preferential_rate, trade_agreement, source, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		 ON CONFLICT (hs_code, origin_country, destination_country)
		 DO UPDATE SET ad_valorem_rate = EXCLUDED.ad_valorem_rate,
		               specific_rate = EXCLUDED.specific_rate,
		               vat_rate = EXCLUDED.vat_rate,
		               preferential_rate = EXCLUDED.preferential_rate,
		               trade_agreement = EXCLUDED.trade_agreement,
		               source = EXCLUDED.source,
		               fetched_at = now()
		 RETURNING `+dutyRateColumns,
		d.HSCode, d.OriginCountry, d.DestinationCountry, d.AdValoremRate,
		d.SpecificRate, d.VATRate, d.PreferentialRate, d.TradeAgreement, d.Source))
	if err != nil {
		return nil, fmt.Errorf("upsert duty rate: %w", err)
	}
	return row, nil
}

// GetDutyRate returns the cached rate for a lane, or (nil, nil) when the lane
// has never been fetched. Freshness is the caller's concern: compare FetchedAt
// against the configured TTL and refetch when stale.
func (s *Store) GetDutyRate(ctx context.Context, hsCode, origin, destination string) (*DutyRate, error) {
	row, err := scanDutyRate(s.pool.QueryRow(ctx,
		`SELECT `+dutyRateColumns+` FROM duty_rates
		 WHERE hs_code = $1 AND origin_country = $2 AND destination_country = $3`,
		hsCode, origin, destination))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get duty rate: %w", err)
	}
	return row, nil
}

// ListStaleDutyRates returns lanes whose cache entry is older than maxAge,
// capped at limit. Used by the refresh_rates worker queue.
func (s *Store) ListStaleDutyRates(ctx context.Context, maxAge time.Duration, limit int) ([]DutyRate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+dutyRateColumns+` FROM duty_rates
		 WHERE fetched_at < now() - $1::interval
		 ORDER BY fetched_at ASC
		 LIMIT $2`,
		fmt.Sprintf("%d seconds", int64(maxAge.Seconds())), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale duty rates: %w", err)
	}
	defer rows.Close()

	var result []DutyRate
	for rows.Next() {
		var d DutyRate
		if err := rows.Scan(&d.ID, &d.HSCode, &d.OriginCountry, &d.DestinationCountry,
			&d.AdValoremRate, &d.SpecificRate, &d.VATRate, &d.PreferentialRate,
			&d.TradeAgreement, &d.Source, &d.FetchedAt); err != nil {
			return nil, fmt.Errorf("list stale duty rates: scan: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}
