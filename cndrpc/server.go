package cndrpc

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/atomicswap/cnd/htlcswitch"
	"github.com/atomicswap/cnd/swap"
	"github.com/libp2p/go-libp2p/core/peer"
	"golang.org/x/time/rate"
)

// proposeRateLimit bounds how often this node will dial a counterparty to
// open a new swap negotiation; the control socket itself is local and
// single-operator, but a runaway script hammering "propose" would otherwise
// flood whatever peer it's aimed at.
const proposeRateLimit = 5 // per second

const proposeRateBurst = 10

// Proposer is the subset of *p2p.Host a Server needs to dial a
// counterparty and carry out the SWAP negotiation.
type Proposer interface {
	Propose(ctx context.Context, peerID peer.ID, req swap.Request) (*swap.Accept, *swap.Decline, error)
}

// Server listens on a Unix-domain socket and answers cndrpc.Request
// frames against a swap registry, the way a node operator's local CLI
// controls a running daemon without any network-facing API surface.
type Server struct {
	registry *htlcswitch.Registry
	proposer Proposer

	listener net.Listener
	socket   string

	proposeLimiter *rate.Limiter
}

// Listen creates a Server bound to socketPath, removing any stale socket
// file left behind by an unclean shutdown first.
func Listen(socketPath string, registry *htlcswitch.Registry, proposer Proposer) (*Server, error) {
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("remove stale control socket: %w", err)
	}

	l, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on control socket: %w", err)
	}

	return &Server{
		registry:       registry,
		proposer:       proposer,
		listener:       l,
		socket:         socketPath,
		proposeLimiter: rate.NewLimiter(proposeRateLimit, proposeRateBurst),
	}, nil
}

// Serve accepts connections until the listener is closed, handling each
// on its own goroutine; a control socket is low-traffic and
// single-operator, so no connection limiting is warranted.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close shuts down the listener and removes the socket file.
func (s *Server) Close() error {
	err := s.listener.Close()
	os.RemoveAll(s.socket)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	for {
		frame, err := readFrame(conn)
		if err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(frame.Payload, &req); err != nil {
			writeResponse(conn, frame.Id, errorResponse(fmt.Errorf("malformed request: %w", err)))
			continue
		}

		resp := s.dispatch(req)
		writeResponse(conn, frame.Id, resp)
	}
}

func (s *Server) dispatch(req Request) Response {
	log.Debugf("control request: %s", req.Command)
	switch req.Command {
	case CmdPropose:
		if !s.proposeLimiter.Allow() {
			return errorResponse(fmt.Errorf("propose rate limit exceeded, slow down"))
		}
		return s.handlePropose(req.Body)
	case CmdAccept:
		return s.handleAccept(req.Body)
	case CmdDecline:
		return s.handleDecline(req.Body)
	case CmdSwaps:
		return s.handleSwaps()
	case CmdSwap:
		return s.handleSwap(req.Body)
	case CmdActions:
		return s.handleActions(req.Body)
	default:
		return errorResponse(fmt.Errorf("unknown command %q", req.Command))
	}
}

func (s *Server) handlePropose(body json.RawMessage) Response {
	var args ProposeArgs
	if err := json.Unmarshal(body, &args); err != nil {
		return errorResponse(fmt.Errorf("malformed propose args: %w", err))
	}

	peerID, err := peer.Decode(args.PeerAddr)
	if err != nil {
		return errorResponse(fmt.Errorf("invalid peer id: %w", err))
	}

	var secret swap.Secret
	if _, err := cryptorand.Read(secret[:]); err != nil {
		return errorResponse(fmt.Errorf("generate secret: %w", err))
	}

	req := swap.Request{
		SwapId:      swap.NewSwapId(),
		AlphaLedger: args.AlphaLedger,
		BetaLedger:  args.BetaLedger,
		AlphaAsset:  args.AlphaAsset,
		BetaAsset:   args.BetaAsset,
		AlphaExpiry: args.AlphaExpiry,
		BetaExpiry:  args.BetaExpiry,
		SecretHash:  secret.Hash(),
	}

	if _, err := s.registry.RegisterSwap(swap.RoleAlice, req, &secret); err != nil {
		return errorResponse(fmt.Errorf("register swap: %w", err))
	}

	accept, decline, err := s.proposer.Propose(context.Background(), peerID, req)
	if err != nil {
		return errorResponse(fmt.Errorf("propose to peer: %w", err))
	}
	if decline != nil {
		if err := s.registry.Decline(req.SwapId, *decline); err != nil {
			return errorResponse(err)
		}
	} else if accept != nil {
		if err := s.registry.Accept(req.SwapId, *accept); err != nil {
			return errorResponse(err)
		}
	}

	state, err := s.registry.Swap(req.SwapId)
	if err != nil {
		return errorResponse(err)
	}
	resp, err := okResponse(ProposeResult{State: state})
	if err != nil {
		return errorResponse(err)
	}
	return resp
}

func (s *Server) handleAccept(body json.RawMessage) Response {
	var args SwapIdArgs
	if err := json.Unmarshal(body, &args); err != nil {
		return errorResponse(fmt.Errorf("malformed accept args: %w", err))
	}

	accept := swap.Accept{SwapId: args.SwapId}
	if err := s.registry.Accept(args.SwapId, accept); err != nil {
		return errorResponse(err)
	}
	state, err := s.registry.Swap(args.SwapId)
	if err != nil {
		return errorResponse(err)
	}
	resp, err := okResponse(SwapResult{State: state})
	if err != nil {
		return errorResponse(err)
	}
	return resp
}

func (s *Server) handleDecline(body json.RawMessage) Response {
	var args DeclineArgs
	if err := json.Unmarshal(body, &args); err != nil {
		return errorResponse(fmt.Errorf("malformed decline args: %w", err))
	}

	decline := swap.Decline{SwapId: args.SwapId}
	if args.Reason != "" {
		decline.Reason = &args.Reason
	}
	if err := s.registry.Decline(args.SwapId, decline); err != nil {
		return errorResponse(err)
	}
	state, err := s.registry.Swap(args.SwapId)
	if err != nil {
		return errorResponse(err)
	}
	resp, err := okResponse(SwapResult{State: state})
	if err != nil {
		return errorResponse(err)
	}
	return resp
}

func (s *Server) handleSwaps() Response {
	resp, err := okResponse(SwapsResult{States: s.registry.Swaps()})
	if err != nil {
		return errorResponse(err)
	}
	return resp
}

func (s *Server) handleSwap(body json.RawMessage) Response {
	var args SwapIdArgs
	if err := json.Unmarshal(body, &args); err != nil {
		return errorResponse(fmt.Errorf("malformed swap args: %w", err))
	}
	state, err := s.registry.Swap(args.SwapId)
	if err != nil {
		return errorResponse(err)
	}
	resp, err := okResponse(SwapResult{State: state})
	if err != nil {
		return errorResponse(err)
	}
	return resp
}

func (s *Server) handleActions(body json.RawMessage) Response {
	var args SwapIdArgs
	if err := json.Unmarshal(body, &args); err != nil {
		return errorResponse(fmt.Errorf("malformed actions args: %w", err))
	}
	actions, err := s.registry.Actions(args.SwapId)
	if err != nil {
		return errorResponse(err)
	}
	resp, err := okResponse(ActionsResult{Actions: actions})
	if err != nil {
		return errorResponse(err)
	}
	return resp
}
