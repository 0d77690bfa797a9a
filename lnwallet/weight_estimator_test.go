package lnwallet

import "testing"

func TestTxWeightEstimatorIncreasesWithInputs(t *testing.T) {
	var noInputs TxWeightEstimator
	noInputs.AddP2WKHOutput()

	var oneInput TxWeightEstimator
	oneInput.AddP2WKHOutput()
	oneInput.AddWitnessInput(222)

	if oneInput.Weight() <= noInputs.Weight() {
		t.Fatalf("adding a witness input must increase weight: %d vs %d",
			oneInput.Weight(), noInputs.Weight())
	}
}

func TestSatPerKWeightFeeForWeight(t *testing.T) {
	rate := SatPerKWeight(1000)
	fee := rate.FeeForWeight(2000)
	if fee != 2000 {
		t.Fatalf("FeeForWeight(2000) at 1000 sat/kw = %d, want 2000", fee)
	}
}
