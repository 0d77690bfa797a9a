// Package swapstate drives one swap's state machine (spec §4.6): the
// composition of a negotiation phase, two per-ledger milestone tracks, and
// an optional secret, advanced by exactly eight event kinds. Grounded on
// htlcswitch's single-goroutine, event-channel-driven dispatch pattern
// (switch.go's plexPacket/htlcPacket loop), generalized from routing HTLC
// packets between channel links to routing ledger-watcher events into a
// per-swap state machine.
package swapstate

import "github.com/atomicswap/cnd/swap"

// EventKind enumerates the eight events that can drive a swap's ledger
// sub-states forward, per spec §4.6.
type EventKind int

const (
	AlphaDeployed EventKind = iota
	AlphaFunded
	AlphaRedeemed
	AlphaRefunded
	BetaDeployed
	BetaFunded
	BetaRedeemed
	BetaRefunded
)

func (k EventKind) String() string {
	switch k {
	case AlphaDeployed:
		return "alpha_deployed"
	case AlphaFunded:
		return "alpha_funded"
	case AlphaRedeemed:
		return "alpha_redeemed"
	case AlphaRefunded:
		return "alpha_refunded"
	case BetaDeployed:
		return "beta_deployed"
	case BetaFunded:
		return "beta_funded"
	case BetaRedeemed:
		return "beta_redeemed"
	case BetaRefunded:
		return "beta_refunded"
	default:
		return "unknown"
	}
}

// isAlpha reports whether this event kind pertains to the alpha ledger
// side (the odd-one-out, BetaDeployed, takes the complementary branch).
func (k EventKind) isAlpha() bool {
	switch k {
	case AlphaDeployed, AlphaFunded, AlphaRedeemed, AlphaRefunded:
		return true
	default:
		return false
	}
}

// Event is a single observation delivered to a swap's Machine by a ledger
// watcher (via contractcourt's resolvers). Exactly the fields relevant to
// Kind are populated; the rest are nil/zero.
type Event struct {
	Kind EventKind

	Location *swap.HtlcLocation
	Tx       []byte

	// Asset is populated for a Funded event; the machine compares it
	// against the expected asset from the original Request (spec §4.6's
	// Funded-vs-IncorrectlyFunded decision).
	Asset *swap.AssetKind

	// Secret is populated for a Redeemed event observed with a
	// successfully extracted pre-image.
	Secret *swap.Secret
}
