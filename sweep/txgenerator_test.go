package sweep

import (
	"testing"

	"github.com/atomicswap/cnd/lnwallet"
	"github.com/btcsuite/btcd/wire"
)

type fakeSigner struct {
	redeemErr error
	refundErr error
}

func (f *fakeSigner) SignHtlcRedeem(desc *lnwallet.SignDescriptor, tx *wire.MsgTx) ([][]byte, error) {
	if f.redeemErr != nil {
		return nil, f.redeemErr
	}
	return [][]byte{
		make([]byte, 71),
		make([]byte, 33),
		desc.Secret,
		{1},
		desc.RedeemScript,
	}, nil
}

func (f *fakeSigner) SignHtlcRefund(desc *lnwallet.SignDescriptor, tx *wire.MsgTx) ([][]byte, error) {
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	return [][]byte{
		make([]byte, 71),
		make([]byte, 33),
		nil,
		desc.RedeemScript,
	}, nil
}

func testDescriptor(value int64) *lnwallet.SignDescriptor {
	return &lnwallet.SignDescriptor{
		RedeemScript: make([]byte, 80),
		Output:       &wire.TxOut{Value: value, PkScript: make([]byte, 34)},
	}
}

func TestBuildPrimedTransactionRedeem(t *testing.T) {
	op := wire.OutPoint{Index: 0}
	secret := make([]byte, 32)
	input := NewRedeemInput(op, testDescriptor(100_000), secret)

	tx, err := BuildPrimedTransaction(input, make([]byte, 34), 0, 10_000, &fakeSigner{})
	if err != nil {
		t.Fatal(err)
	}

	if len(tx.TxOut) != 1 {
		t.Fatalf("expected exactly one output, got %d", len(tx.TxOut))
	}
	if tx.TxOut[0].Value >= 100_000 {
		t.Fatalf("expected the fee to be subtracted from the swept value, got %d", tx.TxOut[0].Value)
	}
	if tx.TxOut[0].Value <= 0 {
		t.Fatalf("expected a positive remaining output value, got %d", tx.TxOut[0].Value)
	}
}

func TestBuildPrimedTransactionFeeExceedsValueFails(t *testing.T) {
	op := wire.OutPoint{Index: 0}
	input := NewRedeemInput(op, testDescriptor(100), make([]byte, 32))

	_, err := BuildPrimedTransaction(input, make([]byte, 34), 0, 1_000_000, &fakeSigner{})
	if err == nil {
		t.Fatal("expected an error when the fee would exceed the input value")
	}
}

func TestBuildPrimedTransactionRefundSetsLockTime(t *testing.T) {
	op := wire.OutPoint{Index: 0}
	input := NewRefundInput(op, testDescriptor(50_000), 0)

	tx, err := BuildPrimedTransaction(input, make([]byte, 34), 800, 5_000, &fakeSigner{})
	if err != nil {
		t.Fatal(err)
	}
	if tx.LockTime != 800 {
		t.Fatalf("expected LockTime 800 for a refund sweep, got %d", tx.LockTime)
	}
}
