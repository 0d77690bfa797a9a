package swapstate

import (
	"testing"

	"github.com/atomicswap/cnd/swap"
)

func kindsOf(actions []Action) []ActionKind {
	out := make([]ActionKind, len(actions))
	for i, a := range actions {
		out[i] = a.Kind
	}
	return out
}

func contains(kinds []ActionKind, k ActionKind) bool {
	for _, got := range kinds {
		if got == k {
			return true
		}
	}
	return false
}

func TestResolveProposedOffersAcceptDeclineToBobOnly(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret)

	bob, err := NewMachine(swap.RoleBob, req, nil)
	if err != nil {
		t.Fatal(err)
	}
	bobActions := kindsOf(Resolve(bob.State()))
	if !contains(bobActions, ActionAccept) || !contains(bobActions, ActionDecline) {
		t.Fatal("expected bob to be offered accept/decline while proposed")
	}

	alice, err := NewMachine(swap.RoleAlice, req, &secret)
	if err != nil {
		t.Fatal(err)
	}
	if actions := Resolve(alice.State()); len(actions) != 0 {
		t.Fatalf("expected alice to have no actions while proposed, got %v", actions)
	}
}

func TestResolveDeclinedOffersNothing(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret)
	m, err := NewMachine(swap.RoleBob, req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Decline(swap.Decline{SwapId: req.SwapId}); err != nil {
		t.Fatal(err)
	}
	if actions := Resolve(m.State()); actions != nil {
		t.Fatalf("expected no actions for a declined swap, got %v", actions)
	}
}

func TestResolveAliceFundsAlphaOnceAccepted(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret)
	m, err := NewMachine(swap.RoleAlice, req, &secret)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Accept(swap.Accept{SwapId: req.SwapId}); err != nil {
		t.Fatal(err)
	}

	actions := Resolve(m.State())
	if len(actions) != 1 || actions[0].Kind != ActionSendToAddress || actions[0].Side != SideAlpha {
		t.Fatalf("expected a single alpha send-to-address action, got %v", actions)
	}
}

func TestResolveBobFundsBetaOnceAlphaFunded(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret)
	m, err := NewMachine(swap.RoleBob, req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Accept(swap.Accept{SwapId: req.SwapId}); err != nil {
		t.Fatal(err)
	}
	asset := req.AlphaAsset
	if err := m.Apply(Event{Kind: AlphaFunded, Tx: []byte{1}, Asset: &asset}); err != nil {
		t.Fatal(err)
	}

	actions := kindsOf(Resolve(m.State()))
	if !contains(actions, ActionDeployContract) {
		t.Fatalf("expected bob to be offered a beta deploy action, got %v", actions)
	}
}

func TestResolveAliceRedeemsBetaOnceFundedWithSecret(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret)
	m, err := NewMachine(swap.RoleAlice, req, &secret)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Accept(swap.Accept{SwapId: req.SwapId}); err != nil {
		t.Fatal(err)
	}
	asset := req.AlphaAsset
	if err := m.Apply(Event{Kind: AlphaFunded, Tx: []byte{1}, Asset: &asset}); err != nil {
		t.Fatal(err)
	}
	betaAsset := req.BetaAsset
	if err := m.Apply(Event{Kind: BetaFunded, Tx: []byte{2}, Asset: &betaAsset}); err != nil {
		t.Fatal(err)
	}

	actions := Resolve(m.State())
	if !contains(kindsOf(actions), ActionCallContract) {
		t.Fatalf("expected alice to be offered a beta redeem action, got %v", actions)
	}
}

func TestResolveOffersRefundOnceFunded(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret)
	m, err := NewMachine(swap.RoleAlice, req, &secret)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Accept(swap.Accept{SwapId: req.SwapId}); err != nil {
		t.Fatal(err)
	}
	asset := req.AlphaAsset
	if err := m.Apply(Event{Kind: AlphaFunded, Tx: []byte{1}, Asset: &asset}); err != nil {
		t.Fatal(err)
	}

	actions := Resolve(m.State())
	var refund *Action
	for i := range actions {
		if actions[i].Kind == ActionBroadcastSignedTransaction && actions[i].Side == SideAlpha {
			refund = &actions[i]
		}
	}
	if refund == nil {
		t.Fatalf("expected a refund action for the funded alpha side, got %v", actions)
	}
	if refund.NotValidUntil == nil {
		t.Fatal("expected the refund action to carry its not-valid-until expiry")
	}
}

func TestResolveOffersCallContractRefundForEthereumSide(t *testing.T) {
	secret := testSecret()
	req := testRequest(secret) // BetaLedger is Ethereum.
	req.BetaExpiry = swap.Expiry{UnixSeconds: 2_000_000_000}
	m, err := NewMachine(swap.RoleBob, req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Accept(swap.Accept{SwapId: req.SwapId}); err != nil {
		t.Fatal(err)
	}
	betaAsset := req.BetaAsset
	if err := m.Apply(Event{Kind: BetaFunded, Tx: []byte{1}, Asset: &betaAsset}); err != nil {
		t.Fatal(err)
	}

	actions := Resolve(m.State())
	var refund *Action
	for i := range actions {
		if actions[i].Side == SideBeta && actions[i].NotValidUntil != nil {
			refund = &actions[i]
		}
	}
	if refund == nil {
		t.Fatalf("expected a refund action for the funded beta side, got %v", actions)
	}
	if refund.Kind != ActionCallContract {
		t.Fatalf("expected an ethereum-side refund to be a contract call, got kind %v", refund.Kind)
	}
	if refund.MinBlockTimestamp == nil {
		t.Fatal("expected the refund action to carry a minimum block timestamp")
	}
	if *refund.MinBlockTimestamp != req.BetaExpiry.UnixSeconds {
		t.Fatalf("expected min block timestamp %d, got %d", req.BetaExpiry.UnixSeconds, *refund.MinBlockTimestamp)
	}
}
