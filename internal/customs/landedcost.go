// ABOUTME: Pure landed cost calculator: duty, MPF, HMF, VAT over a declared shipment.
// ABOUTME: No I/O; rates come from the duty_rates cache, inputs from the request.
package customs

import "math"

// Incoterm selects the customs valuation basis.
type Incoterm string

const (
	// IncotermFOB values goods at the commercial invoice price; freight and
	// insurance are excluded from the customs value.
	IncotermFOB Incoterm = "FOB"
	// IncotermCIF includes freight and insurance in the customs value.
	IncotermCIF Incoterm = "CIF"
)

// TransportMode affects US harbor maintenance fee applicability.
type TransportMode string

const (
	TransportSea TransportMode = "sea"
	TransportAir TransportMode = "air"
)

// US Merchandise Processing Fee: 0.3464% of customs value, clamped per entry.
// Rates per 19 CFR 24.23, fee caps as adjusted for FY2024.
const (
	mpfRate = 0.003464
	mpfMin  = 31.67
	mpfMax  = 614.35

	// Harbor Maintenance Fee: 0.125% of customs value, sea freight only, no cap.
	hmfRate = 0.00125
)

// LandedCostInput describes one shipment line to be costed.
type LandedCostInput struct {
	// UnitPrice is the per-unit commercial invoice price in destination currency.
	UnitPrice float64
	Quantity  int
	// FreightCost and InsuranceCost are totals for the line, not per unit.
	FreightCost   float64
	InsuranceCost float64
	Incoterm      Incoterm
	Transport     TransportMode
	// DestinationCountry in ISO 3166-1 alpha-2; MPF/HMF apply only to "US".
	DestinationCountry string
	// AdValoremRate is the applicable duty fraction; callers pass the
	// preferential rate here when a trade agreement applies.
	AdValoremRate float64
	// SpecificRatePerUnit is an additional per-unit duty amount, if any.
	SpecificRatePerUnit float64
	VATRate             float64
}

// LandedCost is the per-line cost breakdown. All amounts are totals for the
// line; PerUnitLandedCost divides by quantity.
type LandedCost struct {
	CustomsValue      float64 `json:"customs_value"`
	DutyAmount        float64 `json:"duty_amount"`
	MPFAmount         float64 `json:"mpf_amount"`
	HMFAmount         float64 `json:"hmf_amount"`
	VATAmount         float64 `json:"vat_amount"`
	TotalLandedCost   float64 `json:"total_landed_cost"`
	PerUnitLandedCost float64 `json:"per_unit_landed_cost"`
	// EffectiveDutyRate is total duty and fees as a fraction of customs value.
	EffectiveDutyRate float64 `json:"effective_duty_rate"`
}

// Calculate computes the landed cost for one shipment line.
//
// Customs value is merchandise value (FOB) or merchandise + freight + insurance
// (CIF). Duty = customs value * ad valorem rate + quantity * specific rate.
// For US destinations, MPF (clamped) and HMF (sea only) are added. VAT applies
// to customs value + duty, the common VAT base for imports.
func Calculate(in LandedCostInput) LandedCost {
	merchandise := in.UnitPrice * float64(in.Quantity)

	customsValue := merchandise
	if in.Incoterm == IncotermCIF {
		customsValue += in.FreightCost + in.InsuranceCost
	}

	duty := customsValue*in.AdValoremRate + float64(in.Quantity)*in.SpecificRatePerUnit

	var mpf, hmf float64
	if in.DestinationCountry == "US" {
		mpf = clamp(customsValue*mpfRate, mpfMin, mpfMax)
		if in.Transport == TransportSea {
			hmf = customsValue * hmfRate
		}
	}

	vat := (customsValue + duty) * in.VATRate

	// Freight and insurance are part of what the importer pays regardless of
	// valuation basis; include them in the landed total exactly once.
	total := merchandise + in.FreightCost + in.InsuranceCost + duty + mpf + hmf + vat

	lc := LandedCost{
		CustomsValue:    round2(customsValue),
		DutyAmount:      round2(duty),
		MPFAmount:       round2(mpf),
		HMFAmount:       round2(hmf),
		VATAmount:       round2(vat),
		TotalLandedCost: round2(total),
	}
	if in.Quantity > 0 {
		lc.PerUnitLandedCost = round2(total / float64(in.Quantity))
	}
	if customsValue > 0 {
		lc.EffectiveDutyRate = (duty + mpf + hmf) / customsValue
	}
	return lc
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
