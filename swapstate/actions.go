package swapstate

import (
	"math/big"

	"github.com/atomicswap/cnd/swap"
)

// ActionKind tags which action an Action carries: one of the two
// communication actions or one of spec §4.8's four on-chain shapes.
type ActionKind int

const (
	ActionAccept ActionKind = iota
	ActionDecline
	ActionSendToAddress
	ActionBroadcastSignedTransaction
	ActionDeployContract
	ActionCallContract
)

// Side tags which ledger (or neither, for communication actions) an
// Action applies to.
type Side int

const (
	SideNone Side = iota
	SideAlpha
	SideBeta
)

// Action is one action the local user may currently take, materialized
// per spec §4.8's four on-chain shapes plus the two communication
// actions. Exactly the fields relevant to Kind are populated.
type Action struct {
	Kind ActionKind
	Side Side

	// SendToAddress.
	Address string
	Amount  *big.Int
	Network string

	// BroadcastSignedTransaction.
	TxHex         string
	MinMedianTime *uint32

	// DeployContract.
	Data     []byte
	Value    *big.Int
	GasLimit uint64
	ChainID  *big.Int

	// CallContract.
	To                *swap.Identity
	MinBlockTimestamp *uint64

	// NotValidUntil annotates a Refund action with the expiry it must
	// wait for, so a UI can display availability (spec §4.8).
	NotValidUntil *swap.Expiry
}

// Resolve enumerates the actions permissible in the swap's current state,
// per spec §4.8's table. The action resolver never errors; an
// unactionable state simply yields fewer actions (spec §7).
func Resolve(state swap.SwapState) []Action {
	var actions []Action

	switch state.Communication.Phase {
	case swap.CommProposed:
		if state.Role == swap.RoleBob {
			actions = append(actions,
				Action{Kind: ActionAccept, Side: SideNone},
				Action{Kind: ActionDecline, Side: SideNone},
			)
		}
		return actions

	case swap.CommDeclined:
		return nil
	}

	if state.Role == swap.RoleAlice && state.AlphaState.Kind == swap.NotDeployed {
		actions = append(actions, fundAction(SideAlpha, state.Communication.Request.AlphaLedger,
			state.Communication.Request.AlphaAsset))
	}

	if state.Role == swap.RoleBob && state.AlphaState.Kind == swap.Funded &&
		state.BetaState.Kind == swap.NotDeployed {
		actions = append(actions, fundAction(SideBeta, state.Communication.Request.BetaLedger,
			state.Communication.Request.BetaAsset))
	}

	if state.Role == swap.RoleAlice && state.BetaState.Kind == swap.Funded && state.Secret != nil {
		actions = append(actions, redeemAction(SideBeta, state))
	}

	if state.Role == swap.RoleBob && state.AlphaState.Kind == swap.Funded &&
		state.BetaState.Kind == swap.Redeemed && state.Secret != nil {
		actions = append(actions, redeemAction(SideAlpha, state))
	}

	if ownFunded(state, SideAlpha) {
		actions = append(actions, refundAction(SideAlpha, state.Communication.Request.AlphaLedger,
			state.Communication.Request.AlphaExpiry))
	}
	if ownFunded(state, SideBeta) {
		actions = append(actions, refundAction(SideBeta, state.Communication.Request.BetaLedger,
			state.Communication.Request.BetaExpiry))
	}

	return actions
}

func ownFunded(state swap.SwapState, side Side) bool {
	var ledgerState swap.LedgerState
	if side == SideAlpha {
		ledgerState = state.AlphaState
	} else {
		ledgerState = state.BetaState
	}
	return ledgerState.Kind == swap.Funded || ledgerState.Kind == swap.IncorrectlyFunded
}

func fundAction(side Side, ledger swap.LedgerKind, asset swap.AssetKind) Action {
	switch ledger.Kind {
	case swap.LedgerBitcoin:
		return Action{
			Kind:    ActionSendToAddress,
			Side:    side,
			Network: ledger.BitcoinNetwork.String(),
			Amount:  new(big.Int).SetUint64(asset.Satoshis),
		}
	case swap.LedgerEthereum:
		if asset.Kind == swap.AssetEther {
			return Action{
				Kind:    ActionDeployContract,
				Side:    side,
				Value:   asset.Wei,
				ChainID: ledger.EthereumChainID,
			}
		}
		// ERC-20: deploy then fund (spec §4.8); the resolver surfaces
		// the deploy step first, the action sequence's fund-call step
		// follows once deployment is observed (tracked by the
		// ledger-side milestone, not by this single call).
		return Action{
			Kind:    ActionDeployContract,
			Side:    side,
			ChainID: ledger.EthereumChainID,
		}
	default:
		return Action{Kind: ActionSendToAddress, Side: side}
	}
}

func redeemAction(side Side, state swap.SwapState) Action {
	var ledger swap.LedgerKind
	if side == SideAlpha {
		ledger = state.Communication.Request.AlphaLedger
	} else {
		ledger = state.Communication.Request.BetaLedger
	}

	if ledger.Kind == swap.LedgerBitcoin {
		return Action{Kind: ActionBroadcastSignedTransaction, Side: side, Network: ledger.BitcoinNetwork.String()}
	}
	return Action{Kind: ActionCallContract, Side: side, ChainID: ledger.EthereumChainID}
}

// refundAction mirrors redeemAction's ledger branch: a Bitcoin-side refund
// is a signed transaction (nLockTime-gated, spec §4.2), an Ethereum-side
// refund is any call made after block.timestamp >= expiry (spec §4.2/§4.8),
// exactly like redeem rather than a broadcast.
func refundAction(side Side, ledger swap.LedgerKind, expiry swap.Expiry) Action {
	e := expiry

	if ledger.Kind == swap.LedgerBitcoin {
		lockHeight := expiry.BlockHeight
		return Action{
			Kind:          ActionBroadcastSignedTransaction,
			Side:          side,
			Network:       ledger.BitcoinNetwork.String(),
			MinMedianTime: &lockHeight,
			NotValidUntil: &e,
		}
	}

	blockTimestamp := expiry.UnixSeconds
	return Action{
		Kind:              ActionCallContract,
		Side:              side,
		ChainID:           ledger.EthereumChainID,
		MinBlockTimestamp: &blockTimestamp,
		NotValidUntil:     &e,
	}
}
