// Package cndrpc is the control protocol between cndcli and a running cnd
// daemon: the same length-prefixed JSON framing the SWAP wire protocol
// uses (lnwire.Frame/WriteMessage/ReadMessage), carried over a
// Unix-domain socket local to the host instead of a libp2p stream to a
// remote peer. This is an internal implementation detail of this
// repository, not the JSON HTTP API surface the original design marks
// out of scope: there is no network listener, no TLS, no stable
// cross-version wire contract — only a local socket a co-resident CLI
// dials.
package cndrpc

import (
	"encoding/json"
	"fmt"

	"github.com/atomicswap/cnd/swap"
	"github.com/atomicswap/cnd/swapstate"
)

// Command names one of the operations a control client may invoke.
type Command string

const (
	CmdPropose Command = "propose"
	CmdAccept  Command = "accept"
	CmdDecline Command = "decline"
	CmdSwaps   Command = "swaps"
	CmdSwap    Command = "swap"
	CmdActions Command = "actions"
)

// Request is a control client's call: Command selects how Body is
// decoded, mirroring how RequestPayload's Type selects how its Body is
// interpreted.
type Request struct {
	Command Command         `json:"command"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// Response carries either a result Body or a human-readable Error, never
// both.
type Response struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Body  json.RawMessage `json:"body,omitempty"`
}

// ProposeArgs is CmdPropose's request body: the operator's peer-to-swap
// with and the terms of the swap, with Alice's secret generated locally
// by the daemon so it never crosses the control socket in cleartext
// twice.
type ProposeArgs struct {
	PeerAddr    string        `json:"peer_addr"`
	AlphaLedger swap.LedgerKind `json:"alpha_ledger"`
	BetaLedger  swap.LedgerKind `json:"beta_ledger"`
	AlphaAsset  swap.AssetKind  `json:"alpha_asset"`
	BetaAsset   swap.AssetKind  `json:"beta_asset"`
	AlphaExpiry swap.Expiry     `json:"alpha_expiry"`
	BetaExpiry  swap.Expiry     `json:"beta_expiry"`
}

// ProposeResult is CmdPropose's response body.
type ProposeResult struct {
	State swap.SwapState `json:"state"`
}

// SwapIdArgs is the request body shared by every command that names a
// single swap by id: accept, decline, swap, actions.
type SwapIdArgs struct {
	SwapId swap.SwapId `json:"swap_id"`
}

// DeclineArgs is CmdDecline's request body.
type DeclineArgs struct {
	SwapId swap.SwapId `json:"swap_id"`
	Reason string      `json:"reason,omitempty"`
}

// SwapResult wraps a single swap's current state.
type SwapResult struct {
	State swap.SwapState `json:"state"`
}

// SwapsResult is CmdSwaps's response body.
type SwapsResult struct {
	States []swap.SwapState `json:"states"`
}

// ActionsResult is CmdActions's response body. Action's big.Int fields
// marshal fine via encoding/json's default handling of *big.Int (it
// implements TextMarshaler), so no custom codec is needed here.
type ActionsResult struct {
	Actions []swapstate.Action `json:"actions"`
}

// errorResponse builds a Response carrying err's message.
func errorResponse(err error) Response {
	return Response{Error: err.Error()}
}

// okResponse marshals body into a successful Response.
func okResponse(body interface{}) (Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal response body: %w", err)
	}
	return Response{OK: true, Body: encoded}, nil
}
