// ABOUTME: Pure duty-saving evaluation over a product's current lane and the
// ABOUTME: alternative HS codes from its classification history.
package recommend

import (
	"fmt"
	"math"
)

// Kind values match the recommendations.kind CHECK constraint.
const (
	KindReclassify     = "reclassify"
	KindTradeAgreement = "trade_agreement"
	KindOriginShift    = "origin_shift"
)

// minSavingPerUnit filters out noise: projected savings below one cent per
// unit are not worth surfacing.
const minSavingPerUnit = 0.01

// RateInfo is the duty picture for one HS code on the product's lane.
type RateInfo struct {
	HSCode           string
	AdValoremRate    float64
	PreferentialRate *float64
	TradeAgreement   *string
}

// effectiveRate is the lowest rate available on the lane, preferring the
// preferential rate when one exists.
func (r RateInfo) effectiveRate() float64 {
	if r.PreferentialRate != nil && *r.PreferentialRate < r.AdValoremRate {
		return *r.PreferentialRate
	}
	return r.AdValoremRate
}

// Input is everything Evaluate needs about one product.
type Input struct {
	// DeclaredValue is the per-unit customs value.
	DeclaredValue float64
	// Current is the rate for the product's active classification.
	Current RateInfo
	// Alternatives are rates for the other HS codes in the product's
	// classification history. Entries with the active HS code are ignored.
	Alternatives []RateInfo
}

// Candidate is one evaluated saving opportunity, ready to persist.
type Candidate struct {
	Kind            string
	SuggestedHSCode *string
	TradeAgreement  *string
	CurrentDuty     float64
	ProjectedDuty   float64
	SavingPerUnit   float64
	Rationale       string
}

// Evaluate computes saving candidates for a product.
//
// Two kinds are produced: trade_agreement when the current lane carries an
// unused preferential rate, and reclassify when an alternative HS code from the
// classification history has a lower effective rate. At most one candidate per
// kind is returned; reclassify picks the alternative with the largest saving.
func Evaluate(in Input) []Candidate {
	currentDuty := in.DeclaredValue * in.Current.AdValoremRate

	var out []Candidate

	if in.Current.PreferentialRate != nil && *in.Current.PreferentialRate < in.Current.AdValoremRate {
		projected := in.DeclaredValue * *in.Current.PreferentialRate
		saving := currentDuty - projected
		if saving >= minSavingPerUnit {
			agreement := "a trade agreement"
			if in.Current.TradeAgreement != nil {
				agreement = *in.Current.TradeAgreement
			}
			out = append(out, Candidate{
				Kind:           KindTradeAgreement,
				TradeAgreement: in.Current.TradeAgreement,
				CurrentDuty:    round2(currentDuty),
				ProjectedDuty:  round2(projected),
				SavingPerUnit:  round2(saving),
				Rationale: fmt.Sprintf("Claiming %s reduces the duty rate from %.2f%% to %.2f%% on this lane.",
					agreement, in.Current.AdValoremRate*100, *in.Current.PreferentialRate*100),
			})
		}
	}

	// Reclassification baseline is the best rate already achievable on the
	// current code, so the two kinds never double-count the same saving.
	baseline := in.DeclaredValue * in.Current.effectiveRate()
	var best *Candidate
	for _, alt := range in.Alternatives {
		if alt.HSCode == in.Current.HSCode {
			continue
		}
		projected := in.DeclaredValue * alt.effectiveRate()
		saving := baseline - projected
		if saving < minSavingPerUnit {
			continue
		}
		if best != nil && saving <= best.SavingPerUnit {
			continue
		}
		code := alt.HSCode
		best = &Candidate{
			Kind:            KindReclassify,
			SuggestedHSCode: &code,
			TradeAgreement:  alt.TradeAgreement,
			CurrentDuty:     round2(baseline),
			ProjectedDuty:   round2(projected),
			SavingPerUnit:   round2(saving),
			Rationale: fmt.Sprintf("HS %s from the classification history carries a %.2f%% effective rate versus %.2f%% on the active code.",
				alt.HSCode, alt.effectiveRate()*100, in.Current.effectiveRate()*100),
		}
	}
	if best != nil {
		out = append(out, *best)
	}

	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
