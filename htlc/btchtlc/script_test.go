package btchtlc

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/txscript"
)

func testParams() Params {
	var secretHash [32]byte
	sha := sha256.Sum256([]byte("hello world, you are beautiful!!"))
	copy(secretHash[:], sha[:])

	var redeemHash, refundHash [20]byte
	redeemHash[0] = 0xaa
	refundHash[0] = 0xbb

	return Params{
		SecretHash:       secretHash,
		RedeemPubKeyHash: redeemHash,
		RefundPubKeyHash: refundHash,
		Expiry:           800,
		Lock:             LockAbsolute,
	}
}

func TestRedeemScriptDeterministic(t *testing.T) {
	p := testParams()

	s1, err := RedeemScript(p)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := RedeemScript(p)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(s1, s2) {
		t.Fatal("redeem script construction must be deterministic")
	}

	disasm, err := txscript.DisasmString(s1)
	if err != nil {
		t.Fatal(err)
	}
	if disasm == "" {
		t.Fatal("expected a non-empty disassembly")
	}
}

func TestFundingOutputP2WSH(t *testing.T) {
	p := testParams()

	redeemScript, pkScript, err := FundingOutput(p, 100_000)
	if err != nil {
		t.Fatal(err)
	}
	if len(pkScript) != 34 {
		t.Fatalf("expected a 34-byte P2WSH pkScript, got %d bytes", len(pkScript))
	}
	if pkScript[0] != txscript.OP_0 {
		t.Fatalf("expected P2WSH pkScript to start with OP_0, got %x", pkScript[0])
	}

	expectedHash := sha256.Sum256(redeemScript)
	if !bytes.Equal(pkScript[2:], expectedHash[:]) {
		t.Fatal("pkScript hash must match sha256(redeemScript)")
	}
}

func TestFundingOutputRejectsNonPositiveAmount(t *testing.T) {
	p := testParams()
	if _, _, err := FundingOutput(p, 0); err == nil {
		t.Fatal("expected an error for a zero funding amount")
	}
}

func TestExtractSecretFindsMatchingElement(t *testing.T) {
	secret := []byte("01234567890123456789012345678901")[:32]
	hash := sha256.Sum256(secret)

	witness := [][]byte{
		{0x30, 0x44},
		{0x02, 0x03},
		secret,
		{0x01},
		{0x63},
	}

	got, ok := ExtractSecret(witness, hash)
	if !ok {
		t.Fatal("expected to find the secret in the witness")
	}
	if !bytes.Equal(got, secret) {
		t.Fatal("extracted secret does not match")
	}
}

func TestExtractSecretAbsentOnRefund(t *testing.T) {
	var hash [32]byte
	hash[0] = 0x01

	witness := [][]byte{
		{0x30, 0x44},
		{0x02, 0x03},
		nil,
		{0x63},
	}

	if _, ok := ExtractSecret(witness, hash); ok {
		t.Fatal("refund witness must not yield a secret")
	}
}
