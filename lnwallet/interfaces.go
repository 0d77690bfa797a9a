// Package lnwallet declares the wallet-adapter contracts cnd's core relies
// on without implementing (spec §4.3 "Wallet adapter (external contract)"),
// plus the Bitcoin fee/weight estimation helpers the core does implement
// (spec §4.2's PrimedTransaction).
package lnwallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// SignDescriptor bundles everything a Signer needs to produce a witness
// for one input: the redeem script it's spending, the output's value, the
// key to sign with, and (filled in by WitnessGenerator at sweep time) the
// precomputed sighash midstate and input index.
type SignDescriptor struct {
	RedeemScript []byte
	Output       *wire.TxOut
	PrivateKey   *btcec.PrivateKey

	// Secret is the 32-byte HTLC pre-image, set only when this
	// descriptor will be used to build a redeem witness.
	Secret []byte

	SigHashes  *txscript.TxSigHashes
	InputIndex int
}

// Signer is the minimal signing contract the core requires of a wallet: it
// must produce the two HTLC witness branches. A concrete implementation is
// an external collaborator (spec §1 "Out of scope... wallet key
// management"); cnd only calls through this interface.
type Signer interface {
	// SignHtlcRedeem produces the [sig, pubkey, secret, 0x01, script]
	// witness stack for the hash branch. The caller is responsible for
	// having already placed the secret in desc or passing it separately;
	// concrete wallets key the secret by the HTLC's SwapId.
	SignHtlcRedeem(desc *SignDescriptor, tx *wire.MsgTx) ([][]byte, error)

	// SignHtlcRefund produces the [sig, pubkey, nil, script] witness
	// stack for the time-lock branch.
	SignHtlcRefund(desc *SignDescriptor, tx *wire.MsgTx) ([][]byte, error)
}

// WalletController is the broader wallet contract of spec §4.3: address
// generation, UTXO selection, broadcast, and (for Ethereum) nonce/gas-price
// queries. cnd's core never holds private keys directly except via the
// root-seed-derived transient Bitcoin redeem keys it manages itself for a
// swap's lifetime (spec §4.3); everything else is delegated here.
type WalletController interface {
	// SendToAddress pays amt to addr using wallet-selected inputs and
	// returns the broadcast txid.
	SendToAddress(addr btcutil.Address, amt btcutil.Amount) (*chainhash.Hash, error)

	// BroadcastRaw relays an already-signed transaction and returns its
	// txid.
	BroadcastRaw(tx *wire.MsgTx) (*chainhash.Hash, error)

	// NewAddress returns a fresh receive address controlled by the
	// wallet.
	NewAddress() (btcutil.Address, error)

	// Sign signs every input of an unsigned transaction the wallet
	// recognizes as its own (used for funding transactions; HTLC
	// redeem/refund witnesses go through Signer instead).
	Sign(tx *wire.MsgTx) (*wire.MsgTx, error)

	// TransactionCount returns the Ethereum account nonce for addr.
	TransactionCount(addr [20]byte) (uint64, error)

	// GasPrice returns the Ethereum node's current suggested gas price,
	// in wei.
	GasPrice() (uint64, error)
}
