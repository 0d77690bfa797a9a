package swapstate

import (
	"testing"

	"github.com/atomicswap/cnd/swap"
)

func testSecret() swap.Secret {
	var s swap.Secret
	for i := range s {
		s[i] = byte(i + 1)
	}
	return s
}

func testRequest(secret swap.Secret) swap.Request {
	return swap.Request{
		SwapId:      swap.NewSwapId(),
		AlphaLedger: swap.LedgerKind{Kind: swap.LedgerBitcoin, BitcoinNetwork: swap.BitcoinRegtest},
		BetaLedger:  swap.LedgerKind{Kind: swap.LedgerEthereum},
		AlphaAsset:  swap.AssetKind{Kind: swap.AssetBitcoin, Satoshis: 100_000},
		BetaAsset:   swap.AssetKind{Kind: swap.AssetEther, Wei: nil},
		SecretHash:  secret.Hash(),
	}
}

func TestNewMachineAliceRequiresMatchingSecret(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret)

	if _, err := NewMachine(swap.RoleAlice, req, nil); err == nil {
		t.Fatal("expected an error when alice omits her secret")
	}

	wrong := secret
	wrong[0] ^= 0xff
	if _, err := NewMachine(swap.RoleAlice, req, &wrong); err == nil {
		t.Fatal("expected an error when alice's secret doesn't hash to the request's secret_hash")
	}

	m, err := NewMachine(swap.RoleAlice, req, &secret)
	if err != nil {
		t.Fatal(err)
	}
	if m.State().Secret == nil || *m.State().Secret != secret {
		t.Fatal("expected the machine to retain alice's secret")
	}
	if m.State().Communication.Phase != swap.CommProposed {
		t.Fatal("expected a freshly created swap to start proposed")
	}
}

func TestNewMachineBobHasNoSecret(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret)

	m, err := NewMachine(swap.RoleBob, req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.State().Secret != nil {
		t.Fatal("expected bob to start with no known secret")
	}
}

func TestAcceptAndDeclineAreMutuallyExclusiveAndOnlyFromProposed(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret)
	m, err := NewMachine(swap.RoleBob, req, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Accept(swap.Accept{SwapId: req.SwapId}); err != nil {
		t.Fatal(err)
	}
	if m.State().Communication.Phase != swap.CommAccepted {
		t.Fatal("expected accepted phase")
	}

	if err := m.Accept(swap.Accept{SwapId: req.SwapId}); err == nil {
		t.Fatal("expected accepting twice to fail")
	}
	if err := m.Decline(swap.Decline{SwapId: req.SwapId}); err == nil {
		t.Fatal("expected declining an already-accepted swap to fail")
	}
}

func TestDeclineIsTerminal(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret)
	m, err := NewMachine(swap.RoleBob, req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Decline(swap.Decline{SwapId: req.SwapId}); err != nil {
		t.Fatal(err)
	}

	if err := m.Apply(Event{Kind: AlphaDeployed}); err == nil {
		t.Fatal("expected a declined swap to reject further events")
	}
}

func TestApplyDeployedThenFundedProgressesAlphaSide(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret)
	m, err := NewMachine(swap.RoleAlice, req, &secret)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Accept(swap.Accept{SwapId: req.SwapId}); err != nil {
		t.Fatal(err)
	}

	loc := &swap.HtlcLocation{Txid: [32]byte{1}}
	if err := m.Apply(Event{Kind: AlphaDeployed, Location: loc, Tx: []byte{0xaa}}); err != nil {
		t.Fatal(err)
	}
	if m.State().AlphaState.Kind != swap.Deployed {
		t.Fatalf("expected deployed, got %v", m.State().AlphaState.Kind)
	}

	asset := req.AlphaAsset
	if err := m.Apply(Event{Kind: AlphaFunded, Tx: []byte{0xbb}, Asset: &asset}); err != nil {
		t.Fatal(err)
	}
	if m.State().AlphaState.Kind != swap.Funded {
		t.Fatalf("expected funded, got %v", m.State().AlphaState.Kind)
	}
}

func TestApplyFundedWithoutPriorDeployedCapturesLocation(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret)
	m, err := NewMachine(swap.RoleBob, req, nil)
	if err != nil {
		t.Fatal(err)
	}

	loc := &swap.HtlcLocation{Txid: [32]byte{2}}
	asset := req.AlphaAsset
	if err := m.Apply(Event{Kind: AlphaFunded, Location: loc, Tx: []byte{0xcc}, Asset: &asset}); err != nil {
		t.Fatal(err)
	}
	state := m.State().AlphaState
	if state.Kind != swap.Funded {
		t.Fatalf("expected funded, got %v", state.Kind)
	}
	if state.Location == nil || state.Location.Txid != loc.Txid {
		t.Fatal("expected the funded event's location to be captured")
	}
}

func TestApplyFundedWithWrongAssetIsIncorrectlyFunded(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret)
	m, err := NewMachine(swap.RoleBob, req, nil)
	if err != nil {
		t.Fatal(err)
	}

	wrongAsset := swap.AssetKind{Kind: swap.AssetBitcoin, Satoshis: 1}
	if err := m.Apply(Event{Kind: AlphaFunded, Tx: []byte{1}, Asset: &wrongAsset}); err != nil {
		t.Fatal(err)
	}
	if m.State().AlphaState.Kind != swap.IncorrectlyFunded {
		t.Fatalf("expected incorrectly_funded, got %v", m.State().AlphaState.Kind)
	}
}

func TestApplyIsIdempotentOncePastAMilestone(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret)
	m, err := NewMachine(swap.RoleBob, req, nil)
	if err != nil {
		t.Fatal(err)
	}

	asset := req.AlphaAsset
	if err := m.Apply(Event{Kind: AlphaFunded, Tx: []byte{1}, Asset: &asset}); err != nil {
		t.Fatal(err)
	}
	firstFundTx := m.State().AlphaState.FundTx

	// Re-delivering the same (or an even later) Deployed/Funded event must
	// be a no-op: it must not regress or mutate already-settled state.
	if err := m.Apply(Event{Kind: AlphaDeployed, Location: &swap.HtlcLocation{Txid: [32]byte{9}}}); err != nil {
		t.Fatal(err)
	}
	if m.State().AlphaState.Kind != swap.Funded {
		t.Fatal("expected a late Deployed event not to regress a Funded state")
	}

	if err := m.Apply(Event{Kind: AlphaFunded, Tx: []byte{2}, Asset: &asset}); err != nil {
		t.Fatal(err)
	}
	if string(m.State().AlphaState.FundTx) != string(firstFundTx) {
		t.Fatal("expected a redelivered Funded event to be a no-op")
	}
}

func TestApplyRedeemedIsTerminalAndIdempotent(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret)
	m, err := NewMachine(swap.RoleBob, req, nil)
	if err != nil {
		t.Fatal(err)
	}

	asset := req.BetaAsset
	if err := m.Apply(Event{Kind: BetaFunded, Tx: []byte{1}, Asset: &asset}); err != nil {
		t.Fatal(err)
	}
	s := secret
	if err := m.Apply(Event{Kind: BetaRedeemed, Tx: []byte{2}, Secret: &s}); err != nil {
		t.Fatal(err)
	}
	if m.State().BetaState.Kind != swap.Redeemed {
		t.Fatal("expected redeemed")
	}
	if m.State().Secret == nil || *m.State().Secret != secret {
		t.Fatal("expected bob to learn the secret from beta's redeem")
	}

	if err := m.Apply(Event{Kind: BetaRefunded, Tx: []byte{3}}); err != nil {
		t.Fatal(err)
	}
	if m.State().BetaState.Kind != swap.Redeemed {
		t.Fatal("expected a terminal state to reject a conflicting later event as a no-op")
	}
}

func TestApplyRefundedIsTerminal(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret)
	m, err := NewMachine(swap.RoleAlice, req, &secret)
	if err != nil {
		t.Fatal(err)
	}

	asset := req.AlphaAsset
	if err := m.Apply(Event{Kind: AlphaFunded, Tx: []byte{1}, Asset: &asset}); err != nil {
		t.Fatal(err)
	}
	if err := m.Apply(Event{Kind: AlphaRefunded, Tx: []byte{2}}); err != nil {
		t.Fatal(err)
	}
	if m.State().AlphaState.Kind != swap.Refunded {
		t.Fatal("expected refunded")
	}
	if !m.State().AlphaState.Terminal() {
		t.Fatal("expected refunded to be terminal")
	}
}

func TestApplyUnknownEventKindErrors(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret)
	m, err := NewMachine(swap.RoleBob, req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Apply(Event{Kind: EventKind(99)}); err == nil {
		t.Fatal("expected an unknown event kind to error")
	}
}
