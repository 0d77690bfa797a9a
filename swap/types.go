package swap

import (
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SwapId is an opaque, locally-unique identifier for a swap. It is also
// used on the wire to correlate a Request with its Accept/Decline.
type SwapId uuid.UUID

// NewSwapId generates a fresh, random SwapId.
func NewSwapId() SwapId {
	return SwapId(uuid.New())
}

// String renders the id in its canonical hyphenated hex form.
func (id SwapId) String() string {
	return uuid.UUID(id).String()
}

// MarshalJSON renders a SwapId as its canonical hyphenated string, the
// form spec.md's wire headers use for the "id" field.
func (id SwapId) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

// UnmarshalJSON parses a SwapId from its canonical hyphenated string.
func (id *SwapId) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*id = SwapId(parsed)
	return nil
}

// Role identifies which of the two swap participants the local node is
// playing in a given swap.
type Role int

const (
	// RoleAlice is the swap initiator; she holds the Secret until she
	// reveals it by redeeming the beta HTLC.
	RoleAlice Role = iota
	// RoleBob is the swap responder.
	RoleBob
)

func (r Role) String() string {
	switch r {
	case RoleAlice:
		return "alice"
	case RoleBob:
		return "bob"
	default:
		return "unknown"
	}
}

// BitcoinNetwork names the Bitcoin network a swap's Bitcoin-side HTLC is
// deployed on.
type BitcoinNetwork int

const (
	BitcoinMainnet BitcoinNetwork = iota
	BitcoinTestnet
	BitcoinRegtest
)

func (n BitcoinNetwork) String() string {
	switch n {
	case BitcoinMainnet:
		return "mainnet"
	case BitcoinTestnet:
		return "testnet"
	case BitcoinRegtest:
		return "regtest"
	default:
		return "unknown"
	}
}

// LedgerKind tags which blockchain family, and which network within that
// family, a ledger-side of a swap runs on. Exactly one of the two embedded
// fields is meaningful, selected by Kind.
type LedgerKind struct {
	Kind LedgerFamily

	BitcoinNetwork BitcoinNetwork
	EthereumChainID *big.Int
}

// LedgerFamily enumerates the two supported ledger families. The pair
// universe is closed: no ledger family beyond these two is supported
// (spec.md Non-goals), so this is an explicit enumeration rather than an
// open plugin registry.
type LedgerFamily int

const (
	LedgerBitcoin LedgerFamily = iota
	LedgerEthereum
)

func (k LedgerKind) String() string {
	switch k.Kind {
	case LedgerBitcoin:
		return "bitcoin/" + k.BitcoinNetwork.String()
	case LedgerEthereum:
		if k.EthereumChainID != nil {
			return "ethereum/" + k.EthereumChainID.String()
		}
		return "ethereum"
	default:
		return "unknown"
	}
}

// AssetFamily enumerates the three supported asset kinds.
type AssetFamily int

const (
	AssetBitcoin AssetFamily = iota
	AssetEther
	AssetErc20
)

// AssetKind describes the quantity and, for ERC-20, the token contract
// being swapped on one side. Exactly one of Satoshis/Wei/Quantity is
// meaningful, selected by Kind.
type AssetKind struct {
	Kind AssetFamily

	Satoshis uint64

	Wei *big.Int

	TokenContract Identity
	Quantity      *big.Int
}

// CompatibleWith reports whether the asset kind is a valid combination for
// the given ledger kind (Bitcoin ledger <-> Bitcoin asset; Ethereum ledger
// <-> Ether or Erc20 asset). See spec.md §3.
func (a AssetKind) CompatibleWith(l LedgerKind) bool {
	switch l.Kind {
	case LedgerBitcoin:
		return a.Kind == AssetBitcoin
	case LedgerEthereum:
		return a.Kind == AssetEther || a.Kind == AssetErc20
	default:
		return false
	}
}

// Equal reports whether two asset amounts (of the same kind) are strictly
// equal. Used by the funded/incorrectly-funded comparison of spec §4.6.
func (a AssetKind) Equal(other AssetKind) bool {
	if a.Kind != other.Kind {
		return false
	}
	switch a.Kind {
	case AssetBitcoin:
		return a.Satoshis == other.Satoshis
	case AssetEther:
		return bigEqual(a.Wei, other.Wei)
	case AssetErc20:
		return a.TokenContract == other.TokenContract &&
			bigEqual(a.Quantity, other.Quantity)
	default:
		return false
	}
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}

// Expiry is a timeout expressed either as an absolute Bitcoin block height
// (or median-time) or an absolute Ethereum unix-second timestamp, depending
// on which ledger it annotates.
type Expiry struct {
	// BlockHeight is used for a Bitcoin-side expiry.
	BlockHeight uint32
	// UnixSeconds is used for an Ethereum-side expiry.
	UnixSeconds uint64
}

// After reports whether now has reached or passed a block-height expiry
// given the current chain tip, or a unix-seconds expiry given wall time.
func (e Expiry) After(tipHeight uint32, now time.Time) bool {
	if e.BlockHeight != 0 {
		return tipHeight >= e.BlockHeight
	}
	return uint64(now.Unix()) >= e.UnixSeconds
}

// Identity is a per-ledger 20-byte recipient identifier: a Bitcoin P2WPKH
// hash or an Ethereum address.
type Identity [20]byte

// HtlcLocation identifies where an HTLC was deployed on-chain.
type HtlcLocation struct {
	// Bitcoin.
	Txid [32]byte
	Vout uint32

	// Ethereum.
	ContractAddress [20]byte

	IsEthereum bool
}

// Request is the SWAP negotiation request Alice sends Bob (spec §3, §4.7).
type Request struct {
	SwapId SwapId

	AlphaLedger LedgerKind
	BetaLedger  LedgerKind
	AlphaAsset  AssetKind
	BetaAsset   AssetKind

	AlphaRefundIdentity Identity
	BetaRedeemIdentity  Identity

	AlphaExpiry Expiry
	BetaExpiry  Expiry

	SecretHash SecretHash
}

// Accept is Bob's affirmative response to a Request.
type Accept struct {
	SwapId SwapId

	BetaRefundIdentity  Identity
	AlphaRedeemIdentity Identity
}

// Decline is Bob's negative response to a Request.
type Decline struct {
	SwapId SwapId
	Reason *string
}

// CommunicationPhase tags which leg of the SWAP negotiation a swap's
// communication sub-state is in.
type CommunicationPhase int

const (
	CommProposed CommunicationPhase = iota
	CommAccepted
	CommDeclined
)

// SwapCommunication is the negotiation sub-state of a swap: Proposed until
// an Accept/Decline is observed, then terminal in one of those two
// directions.
type SwapCommunication struct {
	Phase   CommunicationPhase
	Request Request
	Accept  *Accept
	Decline *Decline
}

// LedgerStateKind enumerates the lifecycle milestones a single ledger-side
// of a swap moves through.
type LedgerStateKind int

const (
	NotDeployed LedgerStateKind = iota
	Deployed
	Funded
	IncorrectlyFunded
	Redeemed
	Refunded
)

func (k LedgerStateKind) String() string {
	switch k {
	case NotDeployed:
		return "not_deployed"
	case Deployed:
		return "deployed"
	case Funded:
		return "funded"
	case IncorrectlyFunded:
		return "incorrectly_funded"
	case Redeemed:
		return "redeemed"
	case Refunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// LedgerState is the per-side (alpha or beta) on-chain state of a swap's
// HTLC, per spec §3.
type LedgerState struct {
	Kind LedgerStateKind

	Location *HtlcLocation
	DeployTx []byte

	FundTx []byte
	Asset  AssetKind

	Secret   *Secret
	RedeemTx []byte

	RefundTx []byte
}

// Terminal reports whether this ledger side has reached a terminal
// milestone (Redeemed or Refunded).
func (s LedgerState) Terminal() bool {
	return s.Kind == Redeemed || s.Kind == Refunded
}

// SwapState is the full composed state of one swap: its negotiation phase,
// both ledger sides, the secret (if known locally), and the local role.
type SwapState struct {
	SwapId        SwapId
	Role          Role
	Communication SwapCommunication
	AlphaState    LedgerState
	BetaState     LedgerState
	Secret        *Secret
}

// Complete reports whether both ledger sides have reached a terminal
// milestone, per spec §4.6.
func (s SwapState) Complete() bool {
	return s.AlphaState.Terminal() && s.BetaState.Terminal()
}

// Declined reports whether the negotiation ended in Decline (or the
// equivalent Rejected outcome — see DESIGN.md's Open Question decision).
func (s SwapState) Declined() bool {
	return s.Communication.Phase == CommDeclined
}
