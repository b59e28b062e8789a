// ABOUTME: httptest-backed tests for the tariff API client: happy path, 404 as
// ABOUTME: cache-miss, error statuses, out-of-range rate rejection.
package customs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchRateOK(t *testing.T) {
	var gotKey, gotHS string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotHS = r.URL.Query().Get("hs_code")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ad_valorem_rate":0.065,"vat_rate":0.0,"preferential_rate":0.0,"trade_agreement":"USMCA"}`)) //nolint:errcheck
	}))
	defer ts.Close()

	c := New(ts.Client(), ts.URL, "test-key")
	quote, err := c.FetchRate(context.Background(), "640399", "MX", "US")
	if err != nil {
		t.Fatalf("FetchRate: %v", err)
	}
	if quote == nil {
		t.Fatal("FetchRate returned nil quote")
	}
	if gotKey != "test-key" {
		t.Errorf("X-Api-Key = %q, want test-key", gotKey)
	}
	if gotHS != "640399" {
		t.Errorf("hs_code query = %q, want 640399", gotHS)
	}
	if quote.AdValoremRate != 0.065 {
		t.Errorf("AdValoremRate = %v, want 0.065", quote.AdValoremRate)
	}
	if quote.TradeAgreement == nil || *quote.TradeAgreement != "USMCA" {
		t.Errorf("TradeAgreement = %v, want USMCA", quote.TradeAgreement)
	}
	// Lane is echoed from the request, not trusted from the payload.
	if quote.HSCode != "640399" || quote.OriginCountry != "MX" || quote.DestinationCountry != "US" {
		t.Errorf("lane = %s/%s/%s, want 640399/MX/US", quote.HSCode, quote.OriginCountry, quote.DestinationCountry)
	}
}

func TestFetchRateNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	c := New(ts.Client(), ts.URL, "")
	quote, err := c.FetchRate(context.Background(), "999999", "XX", "US")
	if err != nil {
		t.Fatalf("FetchRate: %v", err)
	}
	if quote != nil {
		t.Errorf("quote = %+v, want nil for 404", quote)
	}
}

func TestFetchRateServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c := New(ts.Client(), ts.URL, "")
	if _, err := c.FetchRate(context.Background(), "640399", "CN", "US"); err == nil {
		t.Fatal("FetchRate should fail on HTTP 502")
	}
}

func TestFetchRateRejectsOutOfRangeRate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ad_valorem_rate":6.5}`)) //nolint:errcheck
	}))
	defer ts.Close()

	c := New(ts.Client(), ts.URL, "")
	if _, err := c.FetchRate(context.Background(), "640399", "CN", "US"); err == nil {
		t.Fatal("FetchRate should reject ad valorem rate > 1")
	}
}
