package cndrpc

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/atomicswap/cnd/lnwire"
)

// Client is a single connection to a cnd daemon's control socket, used
// by cmd/cndcli. One Client call is one request/response round trip;
// callers needing many calls are expected to keep a Client open rather
// than redial per call.
type Client struct {
	conn net.Conn
}

// Dial connects to a daemon's control socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial control socket %s: %w", socketPath, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call marshals args as the request body for command, sends it, and
// unmarshals the response body into result (if non-nil and the call
// succeeded).
func (c *Client) call(command Command, args interface{}, result interface{}) error {
	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal %s args: %w", command, err)
	}

	payload, err := json.Marshal(Request{Command: command, Body: body})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	id := nextRequestId()
	if _, err := lnwire.WriteMessage(c.conn, lnwire.Frame{
		Type:    lnwire.FrameRequest,
		Id:      id,
		Payload: payload,
	}); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	frame, err := lnwire.ReadMessage(c.conn)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("%s", resp.Error)
	}
	if result != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", command, err)
		}
	}
	return nil
}

// Propose asks the daemon to originate a swap against a peer.
func (c *Client) Propose(args ProposeArgs) (ProposeResult, error) {
	var result ProposeResult
	err := c.call(CmdPropose, args, &result)
	return result, err
}

// Accept asks the daemon to accept a pending inbound swap.
func (c *Client) Accept(args SwapIdArgs) (SwapResult, error) {
	var result SwapResult
	err := c.call(CmdAccept, args, &result)
	return result, err
}

// Decline asks the daemon to decline a pending inbound swap.
func (c *Client) Decline(args DeclineArgs) (SwapResult, error) {
	var result SwapResult
	err := c.call(CmdDecline, args, &result)
	return result, err
}

// Swaps lists every swap the daemon is a party to.
func (c *Client) Swaps() (SwapsResult, error) {
	var result SwapsResult
	err := c.call(CmdSwaps, struct{}{}, &result)
	return result, err
}

// Swap fetches a single swap's current state.
func (c *Client) Swap(args SwapIdArgs) (SwapResult, error) {
	var result SwapResult
	err := c.call(CmdSwap, args, &result)
	return result, err
}

// Actions fetches the actions currently available for a swap.
func (c *Client) Actions(args SwapIdArgs) (ActionsResult, error) {
	var result ActionsResult
	err := c.call(CmdActions, args, &result)
	return result, err
}
