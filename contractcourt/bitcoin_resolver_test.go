package contractcourt

import (
	"bytes"
	"context"
	"crypto/sha256"
	"testing"

	"github.com/atomicswap/cnd/chainntfs"
	"github.com/atomicswap/cnd/htlc/btchtlc"
	"github.com/atomicswap/cnd/swap"
	"github.com/btcsuite/btcd/wire"
)

func testBitcoinParams(t *testing.T) BitcoinParams {
	t.Helper()

	secret := bytes.Repeat([]byte{0x7a}, 32)
	hash := sha256.Sum256(secret)

	params := btchtlc.Params{SecretHash: hash}
	_, pkScript, err := btchtlc.FundingOutput(params, 50_000)
	if err != nil {
		t.Fatal(err)
	}
	return BitcoinParams{Script: params, PkScript: pkScript}
}

func TestBitcoinResolverHtlcDeployed(t *testing.T) {
	p := testBitcoinParams(t)

	tx := wire.NewMsgTx(2)
	tx.AddTxOut(wire.NewTxOut(50_000, p.PkScript))

	blk := &wire.MsgBlock{Transactions: []*wire.MsgTx{tx}}
	source := newFakeSource(chainntfs.Block{Height: 1, Transactions: blk})

	r := &BitcoinResolver{Source: source}
	deployed, err := r.HtlcDeployed(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if deployed.Location.Vout != 0 {
		t.Fatalf("expected vout 0, got %d", deployed.Location.Vout)
	}
	if deployed.Location.Txid != tx.TxHash() {
		t.Fatal("expected the located txid to match the funding tx")
	}
}

func TestBitcoinResolverHtlcFundedIsDeploy(t *testing.T) {
	r := &BitcoinResolver{}
	deployed := &Deployed{DeployTx: []byte{1, 2, 3}}
	funded, err := r.HtlcFunded(context.Background(), nil, deployed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(funded.FundTx, deployed.DeployTx) {
		t.Fatal("expected FundTx to equal DeployTx for a bitcoin htlc")
	}
}

func testHtlcLocation() (swap.HtlcLocation, wire.OutPoint) {
	op := wire.OutPoint{Index: 0}
	return swap.HtlcLocation{Txid: op.Hash, Vout: op.Index}, op
}

func TestBitcoinResolverRedeemExtractsSecret(t *testing.T) {
	p := testBitcoinParams(t)
	secret := bytes.Repeat([]byte{0x7a}, 32)
	location, op := testHtlcLocation()

	spend := wire.NewMsgTx(2)
	in := wire.NewTxIn(&op, nil, nil)
	in.Witness = wire.TxWitness{make([]byte, 71), make([]byte, 33), secret, {1}, make([]byte, 80)}
	spend.AddTxIn(in)

	blk := &wire.MsgBlock{Transactions: []*wire.MsgTx{spend}}
	source := newFakeSource(chainntfs.Block{Height: 1, Transactions: blk})

	r := &BitcoinResolver{Source: source}
	settlement, err := r.HtlcRedeemedOrRefunded(context.Background(), p, location)
	if err != nil {
		t.Fatal(err)
	}
	if settlement.Outcome != Redeemed {
		t.Fatal("expected a redeem outcome")
	}
	if settlement.Secret == nil || !bytes.Equal(settlement.Secret[:], secret) {
		t.Fatal("expected the extracted secret to match")
	}
}

func TestBitcoinResolverRefundWhenNoSecret(t *testing.T) {
	p := testBitcoinParams(t)
	location, op := testHtlcLocation()

	spend := wire.NewMsgTx(2)
	in := wire.NewTxIn(&op, nil, nil)
	in.Witness = wire.TxWitness{make([]byte, 71), make([]byte, 33), nil, make([]byte, 80)}
	spend.AddTxIn(in)

	blk := &wire.MsgBlock{Transactions: []*wire.MsgTx{spend}}
	source := newFakeSource(chainntfs.Block{Height: 1, Transactions: blk})

	r := &BitcoinResolver{Source: source}
	settlement, err := r.HtlcRedeemedOrRefunded(context.Background(), p, location)
	if err != nil {
		t.Fatal(err)
	}
	if settlement.Outcome != Refunded {
		t.Fatal("expected a refund outcome")
	}
}
