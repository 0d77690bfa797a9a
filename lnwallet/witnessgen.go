package lnwallet

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// WitnessType determines how an HTLC output's witness will be generated
// when it is swept. Adapted from the teacher's commitment-output
// WitnessType (CommitmentTimeLock/CommitmentNoDelay/CommitmentRevoke) to
// the two branches of a cross-chain HTLC (spec §4.2): redeem with the
// pre-image, or refund after expiry.
type WitnessType uint16

const (
	// HtlcRedeem spends the HTLC output along the hash branch, using the
	// pre-image. Produces a [sig, pubkey, secret, 0x01, script] stack.
	HtlcRedeem WitnessType = 0

	// HtlcRefund spends the HTLC output along the time-lock branch, after
	// expiry. Produces a [sig, pubkey, nil, script] stack.
	HtlcRefund WitnessType = 1
)

// WitnessGenerator produces the final witness stack for a particular input
// of a sweep transaction. This is an abstraction layer hiding the details
// of the underlying script from the transaction builder in sweep.
type WitnessGenerator func(tx *wire.MsgTx, hc *txscript.TxSigHashes,
	inputIndex int) ([][]byte, error)

// GenWitnessFunc returns a WitnessGenerator that produces the witness for
// this witness type, given a signer and the HTLC's sign descriptor.
func (wt WitnessType) GenWitnessFunc(signer Signer,
	descriptor *SignDescriptor) WitnessGenerator {

	return func(tx *wire.MsgTx, hc *txscript.TxSigHashes,
		inputIndex int) ([][]byte, error) {

		desc := *descriptor
		desc.SigHashes = hc
		desc.InputIndex = inputIndex

		switch wt {
		case HtlcRedeem:
			return signer.SignHtlcRedeem(&desc, tx)
		case HtlcRefund:
			return signer.SignHtlcRefund(&desc, tx)
		default:
			return nil, fmt.Errorf("unknown witness type: %v", wt)
		}
	}
}
