// Package htlcswitch owns the swap registry: the in-memory map of every
// swap this node is a party to, the single point of mutation for each
// swap's state machine, and the policy decision of whether to accept an
// inbound proposal (spec §4.6, §4.8). Grounded on switch.go's
// map-of-handlers-behind-a-lock registry shape and switch_control.go's
// paymentControl — a mutex-guarded struct wrapping a persistence layer,
// with one exported method per state transition — generalized from HTLC
// payment forwarding onto per-swap state machines.
package htlcswitch

import (
	"context"
	"fmt"
	"sync"

	"github.com/atomicswap/cnd/channeldb"
	"github.com/atomicswap/cnd/swap"
	"github.com/atomicswap/cnd/swapstate"
	"github.com/libp2p/go-libp2p/core/peer"
)

// ErrSwapNotFound is returned when an operation names a SwapId the
// registry has no record of.
var ErrSwapNotFound = fmt.Errorf("no swap registered with that id")

// AcceptancePolicy decides whether an inbound SwapRequest should be
// accepted, the way a node operator configures which pairs/assets/amounts
// it is willing to swap (spec §4.8's Accept/Decline branch). Returning
// false should be accompanied by a human-readable reason, carried back to
// the proposer as SwapDecline.Reason.
type AcceptancePolicy interface {
	ShouldAccept(req swap.Request) (accept bool, reason string)
}

// AcceptAll is an AcceptancePolicy that accepts every well-formed
// request; useful for tests and for a node willing to swap any pair spec
// §3 defines.
type AcceptAll struct{}

// ShouldAccept always accepts.
func (AcceptAll) ShouldAccept(swap.Request) (bool, string) { return true, "" }

// IdentitySource supplies the local refund/redeem identities a Bob uses
// when accepting a swap — the address/pubkey this node will use to
// redeem alpha or be refunded beta, per spec §4.7's Accept payload.
type IdentitySource interface {
	// BetaRefundIdentity returns the identity Bob uses to reclaim beta
	// should the swap time out before Alice redeems it.
	BetaRefundIdentity(ledger swap.LedgerKind) (swap.Identity, error)

	// AlphaRedeemIdentity returns the identity Bob uses to redeem alpha
	// once Alice's secret is known.
	AlphaRedeemIdentity(ledger swap.LedgerKind) (swap.Identity, error)
}

// Config bundles a Registry's dependencies.
type Config struct {
	DB         *channeldb.DB
	Policy     AcceptancePolicy
	Identities IdentitySource
}

// Registry is the single in-process point of mutation for every swap this
// node is a party to: one swapstate.Machine per SwapId, mutated under a
// single lock (mirroring switch_control.go's paymentControl.mx guarding
// every DB-consulting operation), persisted to channeldb after every
// transition so a restart can resume exactly where it left off.
type Registry struct {
	cfg Config

	mu       sync.Mutex
	machines map[swap.SwapId]*swapstate.Machine
}

// NewRegistry creates a Registry and rehydrates it with every swap
// channeldb already has a record for (spec §6's "a restarted node
// resumes in-flight swaps from persisted state").
func NewRegistry(cfg Config) (*Registry, error) {
	r := &Registry{
		cfg:      cfg,
		machines: make(map[swap.SwapId]*swapstate.Machine),
	}

	states, err := cfg.DB.FetchAllSwaps()
	if err != nil {
		return nil, fmt.Errorf("unable to load persisted swaps: %w", err)
	}
	for _, state := range states {
		r.machines[state.SwapId] = swapstate.Restore(state)
	}

	return r, nil
}

// RegisterSwap creates and persists the initial state for a locally
// originated or freshly accepted swap, the registry-side counterpart to
// swapstate.NewMachine.
func (r *Registry) RegisterSwap(role swap.Role, req swap.Request, secret *swap.Secret) (swap.SwapState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.machines[req.SwapId]; exists {
		return swap.SwapState{}, fmt.Errorf("swap %s already registered", req.SwapId)
	}

	m, err := swapstate.NewMachine(role, req, secret)
	if err != nil {
		return swap.SwapState{}, err
	}
	r.machines[req.SwapId] = m

	if err := r.cfg.DB.PutSwap(m.State()); err != nil {
		delete(r.machines, req.SwapId)
		return swap.SwapState{}, err
	}

	log.Infof("Registered swap %s as %s (alpha=%s, beta=%s)",
		req.SwapId, role, req.AlphaLedger, req.BetaLedger)
	return m.State(), nil
}

// HandleSwapRequest implements p2p.RequestHandler: it is invoked once per
// inbound "SWAP" stream, consults the configured AcceptancePolicy, and —
// on acceptance — registers Bob's side of the swap before replying.
func (r *Registry) HandleSwapRequest(_ context.Context, _ peer.ID, req swap.Request) (*swap.Accept, *swap.Decline, error) {
	ok, reason := r.cfg.Policy.ShouldAccept(req)
	if !ok {
		var reasonPtr *string
		if reason != "" {
			reasonPtr = &reason
		}
		return nil, &swap.Decline{SwapId: req.SwapId, Reason: reasonPtr}, nil
	}

	betaRefund, err := r.cfg.Identities.BetaRefundIdentity(req.BetaLedger)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to derive beta_refund_identity: %w", err)
	}
	alphaRedeem, err := r.cfg.Identities.AlphaRedeemIdentity(req.AlphaLedger)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to derive alpha_redeem_identity: %w", err)
	}

	if _, err := r.RegisterSwap(swap.RoleBob, req, nil); err != nil {
		return nil, nil, err
	}

	accept := swap.Accept{
		SwapId:              req.SwapId,
		BetaRefundIdentity:  betaRefund,
		AlphaRedeemIdentity: alphaRedeem,
	}
	if err := r.Accept(req.SwapId, accept); err != nil {
		return nil, nil, err
	}

	return &accept, nil, nil
}

// Accept applies an Accept to a registered swap and persists the result:
// Bob's own local acceptance, or Alice's observation of Bob's Accept
// response to her Propose call.
func (r *Registry) Accept(id swap.SwapId, accept swap.Accept) error {
	return r.mutate(id, func(m *swapstate.Machine) error {
		return m.Accept(accept)
	})
}

// Decline applies a Decline to a registered swap and persists the result.
func (r *Registry) Decline(id swap.SwapId, decline swap.Decline) error {
	return r.mutate(id, func(m *swapstate.Machine) error {
		return m.Decline(decline)
	})
}

// ApplyEvent advances a registered swap's ledger sub-state in response to
// a ledger-watcher observation (spec §4.6), persisting the result.
func (r *Registry) ApplyEvent(id swap.SwapId, ev swapstate.Event) error {
	return r.mutate(id, func(m *swapstate.Machine) error {
		return m.Apply(ev)
	})
}

// mutate locates the machine for id, applies fn under the registry lock,
// and persists the resulting state on success — the shared plumbing
// behind Accept/Decline/ApplyEvent.
func (r *Registry) mutate(id swap.SwapId, fn func(*swapstate.Machine) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.machines[id]
	if !ok {
		return ErrSwapNotFound
	}
	if err := fn(m); err != nil {
		return err
	}
	return r.cfg.DB.PutSwap(m.State())
}

// Swap returns the current state of a single registered swap.
func (r *Registry) Swap(id swap.SwapId) (swap.SwapState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.machines[id]
	if !ok {
		return swap.SwapState{}, ErrSwapNotFound
	}
	return m.State(), nil
}

// Actions returns the permissible next actions for a registered swap
// (spec §4.8).
func (r *Registry) Actions(id swap.SwapId) ([]swapstate.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.machines[id]
	if !ok {
		return nil, ErrSwapNotFound
	}
	return swapstate.Resolve(m.State()), nil
}

// Swaps returns the state of every registered swap, in no particular
// order.
func (r *Registry) Swaps() []swap.SwapState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]swap.SwapState, 0, len(r.machines))
	for _, m := range r.machines {
		out = append(out, m.State())
	}
	return out
}
