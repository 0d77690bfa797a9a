package lnwallet

import "github.com/btcsuite/btcutil"

// SatPerKWeight represents a fee rate in satoshis per 1000 weight units,
// the unit primed transactions are priced in (spec §4.2: "fee = rate *
// weight"). Mirrors the rate type sweep/txgenerator.go expects from
// lnwallet, generalized here from the LN-channel-only file it would
// otherwise live in.
type SatPerKWeight int64

// FeeForWeight computes the fee, in satoshis, of a transaction with the
// given weight at this fee rate.
func (f SatPerKWeight) FeeForWeight(weight int64) btcutil.Amount {
	return btcutil.Amount((int64(f) * weight) / 1000)
}

// FeePerKVByte converts a weight-denominated fee rate to a vbyte-denominated
// one (weight = 4 * vbytes in the worst case of an all-witness
// transaction), for use by txrules.GetDustThreshold which is priced in
// sat/KvB.
func (f SatPerKWeight) FeePerKVByte() int64 {
	return int64(f) * 4
}

// Serialized sizes, in bytes, of the transaction parts TxWeightEstimator
// accounts for.
const (
	// P2WKHOutputSize is value(8) + script_len(1) + OP_0 push20 hash(22).
	P2WKHOutputSize = 8 + 1 + 22

	// P2WSHOutputSize is value(8) + script_len(1) + OP_0 push32 hash(34).
	P2WSHOutputSize = 8 + 1 + 34

	// InputSize is outpoint(32+4) + empty script_len(1) + sequence(4).
	InputSize = 32 + 4 + 1 + 4

	// WitnessHeaderSize is the segwit marker(1) + flag(1).
	WitnessHeaderSize = 1 + 1
)

// TxWeightEstimator accumulates the weight contribution of a transaction's
// inputs and outputs so the fee can be computed before the transaction is
// finalized, the way sweep/txgenerator.go assumes lnwallet already exposes.
type TxWeightEstimator struct {
	hasWitness    bool
	inputCount    int
	outputCount   int
	inputSize     int
	inputWitnessSize int
	outputSize    int
}

// AddP2WKHOutput adds a P2WKH output to the weight estimate.
func (twe *TxWeightEstimator) AddP2WKHOutput() *TxWeightEstimator {
	twe.outputCount++
	twe.outputSize += P2WKHOutputSize
	return twe
}

// AddP2WSHOutput adds a P2WSH output to the weight estimate.
func (twe *TxWeightEstimator) AddP2WSHOutput() *TxWeightEstimator {
	twe.outputCount++
	twe.outputSize += P2WSHOutputSize
	return twe
}

// AddWitnessInput adds a segwit input with a witness of witnessSize bytes
// to the weight estimate.
func (twe *TxWeightEstimator) AddWitnessInput(witnessSize int) *TxWeightEstimator {
	twe.inputCount++
	twe.inputSize += InputSize
	twe.inputWitnessSize += witnessSize
	twe.hasWitness = true
	return twe
}

// Weight returns the estimated weight of the resulting transaction, per
// BIP-141: weight = 4*base_size + witness_size.
func (twe *TxWeightEstimator) Weight() int {
	baseSize := 4 + 1 + 1 + twe.inputSize + twe.outputSize + 4
	witnessSize := twe.inputWitnessSize
	if twe.hasWitness {
		witnessSize += WitnessHeaderSize
	}
	return 4*baseSize + witnessSize
}
