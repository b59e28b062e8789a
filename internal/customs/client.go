// ABOUTME: HTTP client for the external tariff data API. Fetches duty rates per
// ABOUTME: (HS code, origin, destination) lane; rate-limited; caller caches in duty_rates.
package customs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// RateQuote is a single lane's tariff data as returned by the external API.
type RateQuote struct {
	HSCode             string   `json:"hs_code"`
	OriginCountry      string   `json:"origin_country"`
	DestinationCountry string   `json:"destination_country"`
	AdValoremRate      float64  `json:"ad_valorem_rate"`
	SpecificRate       *float64 `json:"specific_rate,omitempty"`
	VATRate            float64  `json:"vat_rate"`
	PreferentialRate   *float64 `json:"preferential_rate,omitempty"`
	TradeAgreement     *string  `json:"trade_agreement,omitempty"`
}

// Client fetches duty rates from the tariff data API. Requests are rate-limited
// to 5/s with burst 10 — the provider enforces 10 req/s per key and bans on abuse.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	rateLimiter *rate.Limiter
}

// New creates a tariff API client. Pass nil httpClient to use a default with a
// 15-second timeout.
func New(httpClient *http.Client, baseURL, apiKey string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     baseURL,
		apiKey:      apiKey,
		rateLimiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// FetchRate retrieves the current tariff rate for one lane.
// Returns (nil, nil) when the API has no data for the lane (HTTP 404).
func (c *Client) FetchRate(ctx context.Context, hsCode, origin, destination string) (*RateQuote, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("tariff: rate limit: %w", err)
	}

	u := fmt.Sprintf("%s/rates?hs_code=%s&origin=%s&destination=%s",
		c.baseURL, url.QueryEscape(hsCode), url.QueryEscape(origin), url.QueryEscape(destination))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("tariff: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "DutyLeak/1.0 landed cost optimization")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tariff: fetch: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("tariff: HTTP %d", resp.StatusCode)
	}

	var quote RateQuote
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&quote); err != nil {
		return nil, fmt.Errorf("tariff: decode response: %w", err)
	}
	if quote.AdValoremRate < 0 || quote.AdValoremRate > 1 {
		return nil, fmt.Errorf("tariff: ad valorem rate %v out of range [0,1]", quote.AdValoremRate)
	}
	// Echo the requested lane even if the provider omits it from the payload.
	quote.HSCode = hsCode
	quote.OriginCountry = origin
	quote.DestinationCountry = destination
	return &quote, nil
}
