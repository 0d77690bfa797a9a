package swapstate

import (
	"fmt"

	"github.com/atomicswap/cnd/swap"
)

// Machine owns one swap's full state (spec §4.6) and applies events to it
// one at a time, in the order its caller's single coordinator goroutine
// delivers them — no internal locking, matching the teacher's "no lock is
// held across an await on I/O" per-swap serialization model (spec §5).
type Machine struct {
	state swap.SwapState
}

// NewMachine creates a swap's initial state: Proposed, both ledger sides
// NotDeployed, and the secret known only to Alice (spec §4.6's "secret =
// Some(s) for Alice, None for Bob").
func NewMachine(role swap.Role, request swap.Request, aliceSecret *swap.Secret) (*Machine, error) {
	if role == swap.RoleAlice && aliceSecret == nil {
		return nil, fmt.Errorf("alice must supply her own secret at swap creation")
	}

	var secret *swap.Secret
	if role == swap.RoleAlice {
		if !aliceSecret.Matches(request.SecretHash) {
			return nil, fmt.Errorf("supplied secret does not hash to the request's secret_hash")
		}
		secret = aliceSecret
	}

	return &Machine{
		state: swap.SwapState{
			SwapId: request.SwapId,
			Role:   role,
			Communication: swap.SwapCommunication{
				Phase:   swap.CommProposed,
				Request: request,
			},
			AlphaState: swap.LedgerState{Kind: swap.NotDeployed},
			BetaState:  swap.LedgerState{Kind: swap.NotDeployed},
			Secret:     secret,
		},
	}, nil
}

// State returns a copy of the swap's current composed state.
func (m *Machine) State() swap.SwapState {
	return m.state
}

// Restore rebuilds a Machine from a previously-persisted SwapState, the
// way a daemon restart rehydrates its registry from channeldb (spec §6).
// Unlike NewMachine, no invariants are re-checked here: state is assumed
// to have been produced by this package's own Accept/Decline/Apply calls.
func Restore(state swap.SwapState) *Machine {
	return &Machine{state: state}
}

// Accept applies the Proposed -> Accepted communication transition (spec
// §4.6), on either the local Accept call (Bob) or receipt of the
// counterparty's Accept (Alice).
func (m *Machine) Accept(accept swap.Accept) error {
	if m.state.Communication.Phase != swap.CommProposed {
		return fmt.Errorf("cannot accept a swap not in the proposed phase")
	}
	m.state.Communication.Phase = swap.CommAccepted
	m.state.Communication.Accept = &accept
	return nil
}

// Decline applies the Proposed -> Declined communication transition,
// terminal: no further events are processed after this (spec §4.6).
func (m *Machine) Decline(decline swap.Decline) error {
	if m.state.Communication.Phase != swap.CommProposed {
		return fmt.Errorf("cannot decline a swap not in the proposed phase")
	}
	m.state.Communication.Phase = swap.CommDeclined
	m.state.Communication.Decline = &decline
	return nil
}

// Apply advances the relevant ledger sub-state given ev, idempotently:
// an event that has already been reflected in the state is a no-op (spec
// §8 invariant 7), since watchers may redeliver events after reorg
// catch-up or resynchronization (spec §5's backpressure note).
func (m *Machine) Apply(ev Event) error {
	if m.state.Communication.Phase == swap.CommDeclined {
		return fmt.Errorf("swap %s is declined; no further events are processed", m.state.SwapId)
	}

	side := &m.state.AlphaState
	expectedAsset := m.state.Communication.Request.AlphaAsset
	if !ev.Kind.isAlpha() {
		side = &m.state.BetaState
		expectedAsset = m.state.Communication.Request.BetaAsset
	}

	switch ev.Kind {
	case AlphaDeployed, BetaDeployed:
		return applyDeployed(side, ev)
	case AlphaFunded, BetaFunded:
		return applyFunded(side, ev, expectedAsset)
	case AlphaRedeemed, BetaRedeemed:
		return m.applyRedeemed(side, ev)
	case AlphaRefunded, BetaRefunded:
		return applyRefunded(side, ev)
	default:
		return fmt.Errorf("unknown event kind %v", ev.Kind)
	}
}

func applyDeployed(side *swap.LedgerState, ev Event) error {
	if side.Kind != swap.NotDeployed {
		return nil // idempotent: already past this milestone.
	}
	side.Kind = swap.Deployed
	side.Location = ev.Location
	side.DeployTx = ev.Tx
	return nil
}

func applyFunded(side *swap.LedgerState, ev Event, expectedAsset swap.AssetKind) error {
	if side.Kind == swap.Funded || side.Kind == swap.IncorrectlyFunded || side.Terminal() {
		return nil // idempotent.
	}
	if side.Kind == swap.NotDeployed {
		// Bitcoin: funding IS deployment, so a Funded event may arrive
		// without a preceding Deployed event (spec §4.5).
		side.Location = ev.Location
		side.DeployTx = ev.Tx
	}

	side.FundTx = ev.Tx
	if ev.Asset != nil {
		side.Asset = *ev.Asset
	}

	if ev.Asset != nil && ev.Asset.Equal(expectedAsset) {
		side.Kind = swap.Funded
	} else {
		side.Kind = swap.IncorrectlyFunded
	}
	return nil
}

func (m *Machine) applyRedeemed(side *swap.LedgerState, ev Event) error {
	if side.Terminal() {
		return nil // idempotent.
	}
	side.Kind = swap.Redeemed
	side.RedeemTx = ev.Tx
	side.Secret = ev.Secret

	// Bob learns the secret the instant he observes beta's redeem,
	// enabling the alpha-redeem action (spec §4.6's "secret lifetime").
	if m.state.Role == swap.RoleBob && m.state.Secret == nil && ev.Secret != nil {
		m.state.Secret = ev.Secret
	}
	return nil
}

func applyRefunded(side *swap.LedgerState, ev Event) error {
	if side.Terminal() {
		return nil // idempotent.
	}
	side.Kind = swap.Refunded
	side.RefundTx = ev.Tx
	return nil
}
