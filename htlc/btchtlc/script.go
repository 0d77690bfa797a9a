// Package btchtlc builds the Bitcoin-side HTLC of a cross-chain swap: the
// P2WSH redeem script, its funding address, and the redeem/refund witness
// stacks that unlock it. The script and witness shapes are adapted from
// lnwallet's commitment HTLC scripts (senderHTLCScript/receiverHTLCScript
// and their witness builders), simplified from the two-party revocable
// commitment HTLC down to the single-shot hash/time-lock HTLC the swap
// protocol needs.
package btchtlc

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// LockKind selects whether Params.Expiry is enforced with an absolute
// (OP_CHECKLOCKTIMEVERIFY) or relative (OP_CHECKSEQUENCEVERIFY) time-lock.
type LockKind int

const (
	// LockAbsolute locks to an absolute block height or median-time,
	// via OP_CHECKLOCKTIMEVERIFY.
	LockAbsolute LockKind = iota
	// LockRelative locks to a relative number of confirmations since
	// the HTLC output was mined, via OP_CHECKSEQUENCEVERIFY.
	LockRelative
)

// Params fully describes one Bitcoin HTLC instance.
type Params struct {
	SecretHash      [32]byte
	RedeemPubKeyHash [20]byte
	RefundPubKeyHash [20]byte
	Expiry          uint32
	Lock            LockKind
}

// OP_CHECKSEQUENCEVERIFY is OP_NOP3 repurposed by BIP-112; the current
// btcsuite/btcd txscript package exposes it directly.
const opCheckSequenceVerify = txscript.OP_CHECKSEQUENCEVERIFY

// RedeemScript builds the script of spec §4.2:
//
//	OP_IF  OP_SHA256 <secret_hash> OP_EQUALVERIFY
//	       OP_DUP OP_HASH160 <redeem_pubkey_hash>
//	OP_ELSE <expiry> OP_CHECKSEQUENCEVERIFY OP_DROP   (or CHECKLOCKTIMEVERIFY)
//	       OP_DUP OP_HASH160 <refund_pubkey_hash>
//	OP_ENDIF  OP_EQUALVERIFY OP_CHECKSIG
func RedeemScript(p Params) ([]byte, error) {
	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_SHA256)
	builder.AddData(p.SecretHash[:])
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddOp(txscript.OP_DUP)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(p.RedeemPubKeyHash[:])

	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(int64(p.Expiry))
	switch p.Lock {
	case LockRelative:
		builder.AddOp(opCheckSequenceVerify)
	default:
		builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	}
	builder.AddOp(txscript.OP_DROP)
	builder.AddOp(txscript.OP_DUP)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(p.RefundPubKeyHash[:])
	builder.AddOp(txscript.OP_ENDIF)

	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddOp(txscript.OP_CHECKSIG)

	return builder.Script()
}

// witnessScriptHash wraps redeemScript as a version-0 P2WSH output script,
// the same construction as lnwallet's witnessScriptHash.
func witnessScriptHash(redeemScript []byte) ([]byte, error) {
	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_0)
	scriptHash := sha256.Sum256(redeemScript)
	bldr.AddData(scriptHash[:])
	return bldr.Script()
}

// FundingOutput returns the P2WSH pkScript an Alice or Bob must pay amt to
// in order to fund this HTLC, and the redeem script it commits to.
func FundingOutput(p Params, amt btcutil.Amount) (redeemScript []byte, pkScript []byte, err error) {
	if amt <= 0 {
		return nil, nil, fmt.Errorf("htlc funding amount must be positive")
	}
	redeemScript, err = RedeemScript(p)
	if err != nil {
		return nil, nil, err
	}
	pkScript, err = witnessScriptHash(redeemScript)
	if err != nil {
		return nil, nil, err
	}
	return redeemScript, pkScript, nil
}

// FundingAddress returns the bech32 P2WSH address funds must be sent to.
func FundingAddress(p Params, net *chaincfg.Params) (*btcutil.AddressWitnessScriptHash, error) {
	redeemScript, err := RedeemScript(p)
	if err != nil {
		return nil, err
	}
	scriptHash := sha256.Sum256(redeemScript)
	return btcutil.NewAddressWitnessScriptHash(scriptHash[:], net)
}

// RedeemWitness constructs the witness stack unlocking the redeem branch
// of the script: [signature, redeem_pubkey, secret, 0x01, script]. This
// mirrors senderHtlcSpendRedeem's shape: sign the sweep tx against the
// redeem script, then assemble the stack in the order the script expects.
func RedeemWitness(redeemScript []byte, outputAmt btcutil.Amount,
	redeemKey *btcec.PrivateKey, tx *wire.MsgTx, inputIndex int,
	secret []byte) (wire.TxWitness, error) {

	if len(secret) != 32 {
		return nil, fmt.Errorf("secret must be 32 bytes, got %d", len(secret))
	}

	hashCache := txscript.NewTxSigHashes(tx, txscript.NewCannedPrevOutputFetcher(
		redeemScript, int64(outputAmt),
	))
	sig, err := txscript.RawTxInWitnessSignature(
		tx, hashCache, inputIndex, int64(outputAmt), redeemScript,
		txscript.SigHashAll, redeemKey,
	)
	if err != nil {
		return nil, err
	}

	pub := redeemKey.PubKey().SerializeCompressed()

	return wire.TxWitness{
		sig,
		pub,
		secret,
		[]byte{1},
		redeemScript,
	}, nil
}

// RefundWitness constructs the witness stack unlocking the refund branch of
// the script: [signature, refund_pubkey, empty, script]. The caller must
// have already set tx.LockTime (CLTV) or the input's Sequence (CSV) to a
// value satisfying the HTLC's expiry before calling this, exactly as
// senderHtlcSpendTimeout does for LN's HTLC timeout path.
func RefundWitness(redeemScript []byte, outputAmt btcutil.Amount,
	refundKey *btcec.PrivateKey, tx *wire.MsgTx, inputIndex int) (wire.TxWitness, error) {

	hashCache := txscript.NewTxSigHashes(tx, txscript.NewCannedPrevOutputFetcher(
		redeemScript, int64(outputAmt),
	))
	sig, err := txscript.RawTxInWitnessSignature(
		tx, hashCache, inputIndex, int64(outputAmt), redeemScript,
		txscript.SigHashAll, refundKey,
	)
	if err != nil {
		return nil, err
	}

	pub := refundKey.PubKey().SerializeCompressed()

	return wire.TxWitness{
		sig,
		pub,
		nil,
		redeemScript,
	}, nil
}

// ExtractSecret inspects a witness stack observed spending the HTLC output
// and returns the 32-byte element that hashes to secretHash, if any. Per
// spec §4.5, the redeem witness places the secret as the third stack
// element; scanning every element (rather than assuming position) keeps
// this robust to either branch's stack shape.
func ExtractSecret(witness wire.TxWitness, secretHash [32]byte) ([]byte, bool) {
	for _, elem := range witness {
		if len(elem) != 32 {
			continue
		}
		h := sha256.Sum256(elem)
		if bytes.Equal(h[:], secretHash[:]) {
			return elem, true
		}
	}
	return nil, false
}
