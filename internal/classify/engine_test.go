// ABOUTME: httptest-backed tests for the classification engine: confidence
// ABOUTME: gating, fallback selection, degraded fallback failure, output parsing.
package classify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// fakeCompletions returns an httptest server that answers every chat completions
// request with the given model output JSON and counts calls.
func fakeCompletions(t *testing.T, hsCode string, confidence float64, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		content := fmt.Sprintf(`{"hs_code":%q,"description":"test heading","confidence":%v,"rationale":"because"}`, hsCode, confidence)
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, content) //nolint:errcheck
	}))
}

func TestClassifyHighConfidenceSkipsFallback(t *testing.T) {
	var primaryCalls, fallbackCalls atomic.Int32
	primary := fakeCompletions(t, "640399", 0.92, &primaryCalls)
	defer primary.Close()
	fallback := fakeCompletions(t, "640411", 0.99, &fallbackCalls)
	defer fallback.Close()

	e := NewEngine(
		NewProvider(primary.Client(), primary.URL, "", "model-a"),
		NewProvider(fallback.Client(), fallback.URL, "", "model-b"),
		0.75,
	)

	res, err := e.Classify(context.Background(), "Leather sneakers", "rubber sole", "VN")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.HSCode != "640399" || res.Source != SourcePrimary || res.Model != "model-a" {
		t.Errorf("got %+v, want primary 640399", res)
	}
	if fallbackCalls.Load() != 0 {
		t.Errorf("fallback called %d times, want 0", fallbackCalls.Load())
	}
}

func TestClassifyLowConfidenceConsultsFallback(t *testing.T) {
	primary := fakeCompletions(t, "640399", 0.40, nil)
	defer primary.Close()
	fallback := fakeCompletions(t, "640411", 0.85, nil)
	defer fallback.Close()

	e := NewEngine(
		NewProvider(primary.Client(), primary.URL, "", "model-a"),
		NewProvider(fallback.Client(), fallback.URL, "", "model-b"),
		0.75,
	)

	res, err := e.Classify(context.Background(), "Canvas shoes", "", "CN")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.HSCode != "640411" || res.Source != SourceFallback || res.Model != "model-b" {
		t.Errorf("got %+v, want fallback 640411", res)
	}
}

func TestClassifyFallbackLowerConfidenceKeepsPrimary(t *testing.T) {
	primary := fakeCompletions(t, "640399", 0.60, nil)
	defer primary.Close()
	fallback := fakeCompletions(t, "640411", 0.50, nil)
	defer fallback.Close()

	e := NewEngine(
		NewProvider(primary.Client(), primary.URL, "", "model-a"),
		NewProvider(fallback.Client(), fallback.URL, "", "model-b"),
		0.75,
	)

	res, err := e.Classify(context.Background(), "Shoes", "", "CN")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.HSCode != "640399" || res.Source != SourcePrimary {
		t.Errorf("got %+v, want primary kept on tie-or-lower fallback", res)
	}
}

func TestClassifyFallbackFailureDegrades(t *testing.T) {
	primary := fakeCompletions(t, "640399", 0.40, nil)
	defer primary.Close()
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer fallback.Close()

	e := NewEngine(
		NewProvider(primary.Client(), primary.URL, "", "model-a"),
		NewProvider(fallback.Client(), fallback.URL, "", "model-b"),
		0.75,
	)

	res, err := e.Classify(context.Background(), "Shoes", "", "CN")
	if err != nil {
		t.Fatalf("Classify should degrade, got error: %v", err)
	}
	if res.Source != SourcePrimary || res.Confidence != 0.40 {
		t.Errorf("got %+v, want degraded primary result", res)
	}
}

func TestClassifyPrimaryFailureFails(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer primary.Close()

	e := NewEngine(NewProvider(primary.Client(), primary.URL, "", "model-a"), nil, 0.75)
	if _, err := e.Classify(context.Background(), "Shoes", "", "CN"); err == nil {
		t.Fatal("Classify should fail when the primary provider fails")
	}
}

func TestParseModelOutput(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantHS  string
		wantErr bool
	}{
		{"plain json", `{"hs_code":"640399","confidence":0.9}`, "640399", false},
		{"markdown fence", "```json\n{\"hs_code\":\"640399\",\"confidence\":0.9}\n```", "640399", false},
		{"dotted code normalized", `{"hs_code":"6403.99","confidence":0.9}`, "640399", false},
		{"wrong length", `{"hs_code":"6403","confidence":0.9}`, "", true},
		{"non-digit", `{"hs_code":"64O399","confidence":0.9}`, "", true},
		{"confidence out of range", `{"hs_code":"640399","confidence":1.5}`, "", true},
		{"not json", `I think it's chapter 64`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := parseModelOutput(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("want error, got %+v", out)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseModelOutput: %v", err)
			}
			if out.HSCode != tt.wantHS {
				t.Errorf("HSCode = %q, want %q", out.HSCode, tt.wantHS)
			}
		})
	}
}
