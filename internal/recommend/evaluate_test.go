// ABOUTME: Table tests for the pure recommendation evaluation: preferential
// ABOUTME: rates, reclassification ranking, noise threshold, no double counting.
package recommend

import "testing"

func fptr(v float64) *float64 { return &v }
func sptr(s string) *string   { return &s }

func TestEvaluateTradeAgreement(t *testing.T) {
	out := Evaluate(Input{
		DeclaredValue: 100,
		Current: RateInfo{
			HSCode:           "640399",
			AdValoremRate:    0.10,
			PreferentialRate: fptr(0.0),
			TradeAgreement:   sptr("USMCA"),
		},
	})
	if len(out) != 1 {
		t.Fatalf("got %d candidates, want 1", len(out))
	}
	c := out[0]
	if c.Kind != KindTradeAgreement {
		t.Errorf("Kind = %s, want trade_agreement", c.Kind)
	}
	if c.CurrentDuty != 10 || c.ProjectedDuty != 0 || c.SavingPerUnit != 10 {
		t.Errorf("duties = %v/%v saving %v, want 10/0 saving 10", c.CurrentDuty, c.ProjectedDuty, c.SavingPerUnit)
	}
	if c.TradeAgreement == nil || *c.TradeAgreement != "USMCA" {
		t.Errorf("TradeAgreement = %v, want USMCA", c.TradeAgreement)
	}
}

func TestEvaluateReclassifyPicksBest(t *testing.T) {
	out := Evaluate(Input{
		DeclaredValue: 100,
		Current:       RateInfo{HSCode: "640399", AdValoremRate: 0.10},
		Alternatives: []RateInfo{
			{HSCode: "640411", AdValoremRate: 0.075},
			{HSCode: "640420", AdValoremRate: 0.03},
			{HSCode: "640590", AdValoremRate: 0.125}, // worse, ignored
		},
	})
	if len(out) != 1 {
		t.Fatalf("got %d candidates, want 1", len(out))
	}
	c := out[0]
	if c.Kind != KindReclassify {
		t.Errorf("Kind = %s, want reclassify", c.Kind)
	}
	if c.SuggestedHSCode == nil || *c.SuggestedHSCode != "640420" {
		t.Errorf("SuggestedHSCode = %v, want 640420 (largest saving)", c.SuggestedHSCode)
	}
	if c.SavingPerUnit != 7 {
		t.Errorf("SavingPerUnit = %v, want 7", c.SavingPerUnit)
	}
}

func TestEvaluateIgnoresActiveCodeInAlternatives(t *testing.T) {
	out := Evaluate(Input{
		DeclaredValue: 100,
		Current:       RateInfo{HSCode: "640399", AdValoremRate: 0.10},
		Alternatives: []RateInfo{
			{HSCode: "640399", AdValoremRate: 0.0}, // same code, must be skipped
		},
	})
	if len(out) != 0 {
		t.Fatalf("got %d candidates, want 0", len(out))
	}
}

func TestEvaluateNoiseThreshold(t *testing.T) {
	out := Evaluate(Input{
		DeclaredValue: 1,
		Current:       RateInfo{HSCode: "640399", AdValoremRate: 0.10},
		Alternatives: []RateInfo{
			{HSCode: "640411", AdValoremRate: 0.095}, // saves 0.005/unit, below threshold
		},
	})
	if len(out) != 0 {
		t.Fatalf("got %d candidates, want 0 below the saving threshold", len(out))
	}
}

func TestEvaluateReclassifyBaselineIsEffectiveRate(t *testing.T) {
	// Current lane has a preferential 2% rate. An alternative at 5% ad valorem
	// beats the 10% headline rate but not the 2% effective rate, so only the
	// trade_agreement candidate should surface.
	out := Evaluate(Input{
		DeclaredValue: 100,
		Current: RateInfo{
			HSCode:           "640399",
			AdValoremRate:    0.10,
			PreferentialRate: fptr(0.02),
			TradeAgreement:   sptr("GSP"),
		},
		Alternatives: []RateInfo{
			{HSCode: "640411", AdValoremRate: 0.05},
		},
	})
	if len(out) != 1 {
		t.Fatalf("got %d candidates, want 1", len(out))
	}
	if out[0].Kind != KindTradeAgreement {
		t.Errorf("Kind = %s, want trade_agreement only", out[0].Kind)
	}
}

func TestEvaluateBothKinds(t *testing.T) {
	out := Evaluate(Input{
		DeclaredValue: 100,
		Current: RateInfo{
			HSCode:           "640399",
			AdValoremRate:    0.10,
			PreferentialRate: fptr(0.08),
			TradeAgreement:   sptr("CPTPP"),
		},
		Alternatives: []RateInfo{
			{HSCode: "640420", AdValoremRate: 0.03},
		},
	})
	if len(out) != 2 {
		t.Fatalf("got %d candidates, want 2", len(out))
	}
	kinds := map[string]Candidate{}
	for _, c := range out {
		kinds[c.Kind] = c
	}
	ta, ok := kinds[KindTradeAgreement]
	if !ok || ta.SavingPerUnit != 2 {
		t.Errorf("trade_agreement saving = %+v, want 2", ta)
	}
	// Reclassify saving is measured from the 8% effective baseline, not 10%.
	rc, ok := kinds[KindReclassify]
	if !ok || rc.SavingPerUnit != 5 {
		t.Errorf("reclassify saving = %+v, want 5", rc)
	}
}

func TestEvaluateZeroValueProducesNothing(t *testing.T) {
	out := Evaluate(Input{
		DeclaredValue: 0,
		Current:       RateInfo{HSCode: "640399", AdValoremRate: 0.10, PreferentialRate: fptr(0)},
		Alternatives:  []RateInfo{{HSCode: "640411", AdValoremRate: 0.0}},
	})
	if len(out) != 0 {
		t.Fatalf("got %d candidates, want 0 for zero declared value", len(out))
	}
}
