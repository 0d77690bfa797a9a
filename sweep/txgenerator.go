package sweep

import (
	"fmt"

	"github.com/atomicswap/cnd/lnwallet"
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/btcwallet/wallet/txrules"
)

// witnessSizeUpperBound returns the maximum length of the witness for the
// given input's branch, sized identically to the final witness (71-byte
// DER signature, 33-byte compressed pubkey, 32-byte secret where
// applicable, full redeem script), per spec §4.2's PrimedTransaction
// description. Adapted from getInputWitnessSizeUpperBound's table-lookup
// shape, narrowed to the HTLC's two branches.
func witnessSizeUpperBound(input Input) int {
	scriptLen := len(input.SignDescriptor().RedeemScript)

	switch input.WitnessType() {
	case lnwallet.HtlcRedeem:
		// sig_len(1) + sig(71) + pub_len(1) + pub(33) + secret_len(1) +
		// secret(32) + one_len(1) + one(1) + script_len(1) + script
		return 1 + 71 + 1 + 33 + 1 + 32 + 1 + 1 + 1 + scriptLen
	case lnwallet.HtlcRefund:
		// sig_len(1) + sig(71) + pub_len(1) + pub(33) + empty_len(1) +
		// script_len(1) + script
		return 1 + 71 + 1 + 33 + 1 + 1 + scriptLen
	default:
		return 0
	}
}

// BuildPrimedTransaction builds, signs, and returns a transaction sweeping
// a single HTLC input to outputPkScript. It follows the same two-pass
// shape as the teacher's batch sweeper: estimate weight with placeholder
// witness data sized to the worst case, compute the fee, subtract it from
// the swept value, then fill in the real witness. Per spec §4.2, the fee
// must not exceed the input's value.
func BuildPrimedTransaction(input Input, outputPkScript []byte,
	currentBlockHeight uint32, feePerKw lnwallet.SatPerKWeight,
	signer lnwallet.Signer) (*wire.MsgTx, error) {

	var weightEstimate lnwallet.TxWeightEstimator
	weightEstimate.AddP2WSHOutput()
	weightEstimate.AddWitnessInput(witnessSizeUpperBound(input))
	weight := weightEstimate.Weight()

	fee := feePerKw.FeeForWeight(int64(weight))

	inputValue := input.SignDescriptor().Output.Value
	if int64(fee) >= inputValue {
		return nil, fmt.Errorf("fee %v exceeds input value %v", fee, inputValue)
	}
	sweepAmt := inputValue - int64(fee)

	dustLimit := txrules.GetDustThreshold(len(outputPkScript), btcutil.Amount(feePerKw.FeePerKVByte()))
	if btcutil.Amount(sweepAmt) < dustLimit {
		return nil, fmt.Errorf("swept amount %v sat is below the %v sat dust limit for this output",
			sweepAmt, dustLimit)
	}

	log.Infof("Priming sweep transaction for outpoint=%v, witness=%v, "+
		"fee=%v at %v sat/kw", input.OutPoint(), input.WitnessType(),
		fee, int64(feePerKw))

	tx := wire.NewMsgTx(2)
	tx.AddTxOut(&wire.TxOut{
		PkScript: outputPkScript,
		Value:    sweepAmt,
	})

	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *input.OutPoint(),
		Sequence:         input.Sequence(),
	})

	if input.WitnessType() == lnwallet.HtlcRefund {
		tx.LockTime = currentBlockHeight
	}

	btx := btcutil.NewTx(tx)
	if err := blockchain.CheckTransactionSanity(btx); err != nil {
		return nil, err
	}

	hashCache := txscript.NewTxSigHashes(tx, txscript.NewCannedPrevOutputFetcher(
		input.SignDescriptor().RedeemScript, inputValue,
	))

	witness, err := input.BuildWitness(signer, tx, hashCache, 0)
	if err != nil {
		return nil, err
	}
	tx.TxIn[0].Witness = witness

	return tx, nil
}

// EstimateFee returns the fee BuildPrimedTransaction would charge for
// sweeping input at feePerKw, without constructing the transaction. Useful
// for the action resolver (spec §4.8) to size a Fund/Redeem/Refund action
// before the user commits to it.
func EstimateFee(input Input, feePerKw lnwallet.SatPerKWeight) btcutil.Amount {
	var weightEstimate lnwallet.TxWeightEstimator
	weightEstimate.AddP2WSHOutput()
	weightEstimate.AddWitnessInput(witnessSizeUpperBound(input))
	return feePerKw.FeeForWeight(int64(weightEstimate.Weight()))
}
