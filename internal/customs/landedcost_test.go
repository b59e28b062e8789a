// ABOUTME: Table tests for the landed cost calculator: valuation basis, fee
// ABOUTME: clamping, HMF applicability, VAT base.
package customs

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}

func TestCalculateFOBUSSea(t *testing.T) {
	lc := Calculate(LandedCostInput{
		UnitPrice:          10,
		Quantity:           1000,
		FreightCost:        800,
		InsuranceCost:      50,
		Incoterm:           IncotermFOB,
		Transport:          TransportSea,
		DestinationCountry: "US",
		AdValoremRate:      0.065,
	})

	if !almostEqual(lc.CustomsValue, 10000) {
		t.Errorf("CustomsValue = %v, want 10000 (FOB excludes freight)", lc.CustomsValue)
	}
	if !almostEqual(lc.DutyAmount, 650) {
		t.Errorf("DutyAmount = %v, want 650", lc.DutyAmount)
	}
	if !almostEqual(lc.MPFAmount, 34.64) {
		t.Errorf("MPFAmount = %v, want 34.64", lc.MPFAmount)
	}
	if !almostEqual(lc.HMFAmount, 12.50) {
		t.Errorf("HMFAmount = %v, want 12.50", lc.HMFAmount)
	}
	// Total includes freight and insurance even on FOB valuation.
	want := 10000 + 800 + 50 + 650 + 34.64 + 12.50
	if !almostEqual(lc.TotalLandedCost, want) {
		t.Errorf("TotalLandedCost = %v, want %v", lc.TotalLandedCost, want)
	}
	if !almostEqual(lc.PerUnitLandedCost, want/1000) {
		t.Errorf("PerUnitLandedCost = %v, want %v", lc.PerUnitLandedCost, want/1000)
	}
}

func TestCalculateCIFIncludesFreightInValue(t *testing.T) {
	fob := Calculate(LandedCostInput{
		UnitPrice: 100, Quantity: 10, FreightCost: 500, InsuranceCost: 100,
		Incoterm: IncotermFOB, Transport: TransportAir, DestinationCountry: "DE",
		AdValoremRate: 0.10,
	})
	cif := Calculate(LandedCostInput{
		UnitPrice: 100, Quantity: 10, FreightCost: 500, InsuranceCost: 100,
		Incoterm: IncotermCIF, Transport: TransportAir, DestinationCountry: "DE",
		AdValoremRate: 0.10,
	})

	if !almostEqual(fob.CustomsValue, 1000) || !almostEqual(cif.CustomsValue, 1600) {
		t.Fatalf("customs values = %v / %v, want 1000 / 1600", fob.CustomsValue, cif.CustomsValue)
	}
	if cif.DutyAmount <= fob.DutyAmount {
		t.Errorf("CIF duty %v should exceed FOB duty %v", cif.DutyAmount, fob.DutyAmount)
	}
	// Freight appears in the total exactly once under both bases: the CIF and
	// FOB totals differ only by the duty on freight+insurance.
	if !almostEqual(cif.TotalLandedCost-fob.TotalLandedCost, 60) {
		t.Errorf("total difference = %v, want 60 (10%% duty on 600)", cif.TotalLandedCost-fob.TotalLandedCost)
	}
}

func TestMPFClamping(t *testing.T) {
	tests := []struct {
		name         string
		customsValue float64
		wantMPF      float64
	}{
		{"below minimum", 1000, 31.67},      // 0.3464% of 1000 = 3.46, clamped up
		{"within range", 50000, 173.20},     // 0.3464% of 50000
		{"above maximum", 1000000, 614.35},  // 0.3464% of 1M = 3464, clamped down
		{"at boundary low", 9142.03, 31.67}, // 0.3464% ≈ 31.67
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := Calculate(LandedCostInput{
				UnitPrice: tt.customsValue, Quantity: 1,
				Incoterm: IncotermFOB, Transport: TransportAir, DestinationCountry: "US",
			})
			if !almostEqual(lc.MPFAmount, tt.wantMPF) {
				t.Errorf("MPFAmount = %v, want %v", lc.MPFAmount, tt.wantMPF)
			}
		})
	}
}

func TestHMFSeaOnly(t *testing.T) {
	sea := Calculate(LandedCostInput{
		UnitPrice: 100, Quantity: 100, Incoterm: IncotermFOB,
		Transport: TransportSea, DestinationCountry: "US",
	})
	air := Calculate(LandedCostInput{
		UnitPrice: 100, Quantity: 100, Incoterm: IncotermFOB,
		Transport: TransportAir, DestinationCountry: "US",
	})
	if !almostEqual(sea.HMFAmount, 12.50) {
		t.Errorf("sea HMF = %v, want 12.50", sea.HMFAmount)
	}
	if air.HMFAmount != 0 {
		t.Errorf("air HMF = %v, want 0", air.HMFAmount)
	}
}

func TestNoUSFeesOutsideUS(t *testing.T) {
	lc := Calculate(LandedCostInput{
		UnitPrice: 100, Quantity: 100, Incoterm: IncotermFOB,
		Transport: TransportSea, DestinationCountry: "GB",
		AdValoremRate: 0.02, VATRate: 0.20,
	})
	if lc.MPFAmount != 0 || lc.HMFAmount != 0 {
		t.Errorf("non-US destination got MPF=%v HMF=%v, want 0/0", lc.MPFAmount, lc.HMFAmount)
	}
	// VAT base is customs value + duty: (10000 + 200) * 0.20.
	if !almostEqual(lc.VATAmount, 2040) {
		t.Errorf("VATAmount = %v, want 2040", lc.VATAmount)
	}
}

func TestSpecificRatePerUnit(t *testing.T) {
	lc := Calculate(LandedCostInput{
		UnitPrice: 50, Quantity: 200, Incoterm: IncotermFOB,
		Transport: TransportAir, DestinationCountry: "DE",
		AdValoremRate: 0.05, SpecificRatePerUnit: 0.25,
	})
	// 10000 * 0.05 + 200 * 0.25 = 500 + 50.
	if !almostEqual(lc.DutyAmount, 550) {
		t.Errorf("DutyAmount = %v, want 550", lc.DutyAmount)
	}
}

func TestZeroQuantity(t *testing.T) {
	lc := Calculate(LandedCostInput{
		UnitPrice: 100, Quantity: 0, Incoterm: IncotermFOB,
		Transport: TransportAir, DestinationCountry: "US",
	})
	if lc.PerUnitLandedCost != 0 {
		t.Errorf("PerUnitLandedCost = %v, want 0 for zero quantity", lc.PerUnitLandedCost)
	}
}
