package sweep

import (
	"github.com/atomicswap/cnd/lnwallet"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// Input is a single spendable HTLC output being swept: either the redeem
// branch (pre-image known) or the refund branch (expiry reached). Adapted
// from sweep's original channel-closure Input abstraction, narrowed to the
// one HTLC output spec §4.2's PrimedTransaction ever sweeps at a time.
type Input interface {
	// OutPoint identifies the HTLC output being spent.
	OutPoint() *wire.OutPoint

	// WitnessType selects which branch of the HTLC script this input
	// spends.
	WitnessType() lnwallet.WitnessType

	// SignDescriptor carries the data a Signer needs to produce the
	// final witness.
	SignDescriptor() *lnwallet.SignDescriptor

	// BuildWitness produces the final witness stack for this input once
	// the sweep transaction is otherwise complete.
	BuildWitness(signer lnwallet.Signer, tx *wire.MsgTx,
		hc *txscript.TxSigHashes, inputIndex int) (wire.TxWitness, error)

	// Sequence returns the nSequence value this input's spending
	// transaction must carry (0 for the redeem branch; a CSV-encoded
	// relative delay for a relative-timelock refund branch, 0 for an
	// absolute-timelock refund that instead sets the transaction's
	// nLockTime).
	Sequence() uint32
}

// HtlcInput is the concrete Input implementation for a cross-chain HTLC
// output.
type HtlcInput struct {
	outpoint wire.OutPoint
	witness  lnwallet.WitnessType
	desc     *lnwallet.SignDescriptor
	secret   []byte
	sequence uint32
}

// NewRedeemInput builds an Input that spends the hash branch of the HTLC
// using the given 32-byte secret.
func NewRedeemInput(op wire.OutPoint, desc *lnwallet.SignDescriptor, secret []byte) *HtlcInput {
	desc.Secret = secret
	return &HtlcInput{
		outpoint: op,
		witness:  lnwallet.HtlcRedeem,
		desc:     desc,
		secret:   secret,
	}
}

// NewRefundInput builds an Input that spends the time-lock branch of the
// HTLC. sequence is the nSequence value required by a relative time-lock
// (0 if the HTLC uses an absolute CLTV expiry instead).
func NewRefundInput(op wire.OutPoint, desc *lnwallet.SignDescriptor, sequence uint32) *HtlcInput {
	return &HtlcInput{
		outpoint: op,
		witness:  lnwallet.HtlcRefund,
		desc:     desc,
		sequence: sequence,
	}
}

func (h *HtlcInput) OutPoint() *wire.OutPoint                { return &h.outpoint }
func (h *HtlcInput) WitnessType() lnwallet.WitnessType       { return h.witness }
func (h *HtlcInput) SignDescriptor() *lnwallet.SignDescriptor { return h.desc }
func (h *HtlcInput) Sequence() uint32                        { return h.sequence }

func (h *HtlcInput) BuildWitness(signer lnwallet.Signer, tx *wire.MsgTx,
	hc *txscript.TxSigHashes, inputIndex int) (wire.TxWitness, error) {

	genFn := h.witness.GenWitnessFunc(signer, h.desc)
	raw, err := genFn(tx, hc, inputIndex)
	if err != nil {
		return nil, err
	}
	return wire.TxWitness(raw), nil
}

// Value returns the satoshi value of the output being swept.
func (h *HtlcInput) Value() btcutil.Amount {
	return btcutil.Amount(h.desc.Output.Value)
}
