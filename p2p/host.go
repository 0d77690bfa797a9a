// Package p2p wires a libp2p host exposing the "SWAP" protocol stream
// (spec §4.7/§6) and a best-effort gossip topic announcing swap
// proposals, grounded on synnergy-network's NewNode/Broadcast/Subscribe
// shape (core/network.go) adapted from that repo's generic pubsub
// message bus onto this repo's JSON SWAP frames.
package p2p

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/atomicswap/cnd/lnwire"
	"github.com/atomicswap/cnd/swap"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
)

// SwapProtocolID is the libp2p protocol ID negotiated for the named
// "SWAP" stream (spec §4.7's "one framed message type on a named
// stream").
const SwapProtocolID = "/atomicswap/swap/1.0.0"

// ProposalTopic is the pubsub topic used to gossip swap proposals
// best-effort, supplementing the direct-dial negotiation the protocol
// otherwise relies on.
const ProposalTopic = "swap-proposals"

// RequestHandler is implemented by the local swap registry: it decides
// how to answer an inbound SwapRequest, the way htlcswitch.Registry
// handles `Propose` on receipt of a peer frame.
type RequestHandler interface {
	HandleSwapRequest(ctx context.Context, from peer.ID, req swap.Request) (*swap.Accept, *swap.Decline, error)
}

// Config configures a Host's libp2p listen address and bootstrap peers.
type Config struct {
	ListenAddr     string
	BootstrapPeers []string
}

// Host wraps a libp2p host.Host, registering the SWAP protocol stream
// handler and a gossipsub instance for proposal announcements.
type Host struct {
	host    host.Host
	pubsub  *pubsub.PubSub
	handler RequestHandler

	ctx    context.Context
	cancel context.CancelFunc

	topicLock sync.Mutex
	topic     *pubsub.Topic
}

// NewHost creates and bootstraps a libp2p host, registering the SWAP
// stream handler against handler.
func NewHost(cfg Config, handler RequestHandler) (*Host, error) {
	ctx, cancel := context.WithCancel(context.Background())

	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.ListenAddr))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("failed to create pubsub: %w", err)
	}

	p := &Host{
		host:    h,
		pubsub:  ps,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}

	h.SetStreamHandler(SwapProtocolID, p.handleStream)
	log.Infof("libp2p host listening, peer id %s", h.ID())

	for _, addr := range cfg.BootstrapPeers {
		info, err := peer.AddrInfoFromString(addr)
		if err != nil {
			log.Warnf("ignoring malformed bootstrap peer %q: %v", addr, err)
			continue
		}
		if err := h.Connect(ctx, *info); err != nil {
			log.Warnf("unable to connect to bootstrap peer %s: %v", info.ID, err)
			continue
		}
	}

	return p, nil
}

// ID returns the local peer ID.
func (p *Host) ID() peer.ID {
	return p.host.ID()
}

// Close tears down the host and its background context.
func (p *Host) Close() error {
	p.cancel()
	return p.host.Close()
}

// handleStream is the libp2p stream handler for SwapProtocolID: it reads
// exactly one Request frame, dispatches it to p.handler, and writes back
// exactly one Response frame before closing the stream.
func (p *Host) handleStream(s network.Stream) {
	defer s.Close()

	br := bufio.NewReader(s)
	frame, err := lnwire.ReadMessage(br)
	if err != nil {
		return
	}
	if frame.Type != lnwire.FrameRequest {
		return
	}

	var reqPayload lnwire.RequestPayload
	if err := json.Unmarshal(frame.Payload, &reqPayload); err != nil {
		p.writeMalformed(s, frame.Id)
		return
	}
	if reqPayload.Type != "SWAP" {
		p.writeMalformed(s, frame.Id)
		return
	}

	var wireReq lnwire.SwapRequest
	if err := json.Unmarshal(reqPayload.Headers, &wireReq.Headers); err != nil {
		p.writeMalformed(s, frame.Id)
		return
	}
	if err := json.Unmarshal(reqPayload.Body, &wireReq); err != nil {
		p.writeMalformed(s, frame.Id)
		return
	}
	if err := wireReq.Validate(); err != nil {
		p.writeResponse(s, frame.Id, lnwire.StatusSE, lnwire.CodeUnsupportedPair, nil)
		return
	}

	req, err := wireReq.ToSwapRequest()
	if err != nil {
		p.writeMalformed(s, frame.Id)
		return
	}

	accept, decline, err := p.handler.HandleSwapRequest(p.ctx, s.Conn().RemotePeer(), req)
	if err != nil {
		p.writeResponse(s, frame.Id, lnwire.StatusRE, lnwire.CodeInternalError, nil)
		return
	}

	if accept != nil {
		body, _ := json.Marshal(lnwire.SwapAccept{
			BetaRefundIdentity:  accept.BetaRefundIdentity,
			AlphaRedeemIdentity: accept.AlphaRedeemIdentity,
		})
		p.writeResponse(s, frame.Id, lnwire.StatusOK, lnwire.CodeAccepted, body)
		return
	}

	body, _ := json.Marshal(lnwire.SwapDecline{Reason: decline.Reason})
	p.writeResponse(s, frame.Id, lnwire.StatusSE, lnwire.CodeDecline, body)
}

func (p *Host) writeMalformed(s network.Stream, id uint32) {
	p.writeResponse(s, id, lnwire.StatusSE, lnwire.CodeMalformed, nil)
}

func (p *Host) writeResponse(s network.Stream, id uint32, status lnwire.Status, code uint8, body json.RawMessage) {
	respPayload, err := json.Marshal(lnwire.ResponsePayload{Status: status, Code: code, Body: body})
	if err != nil {
		return
	}
	frame := lnwire.Frame{Type: lnwire.FrameResponse, Id: id, Payload: respPayload}
	_, _ = lnwire.WriteMessage(s, frame)
}

// Propose opens a SWAP stream to peerID, sends req, and blocks for the
// response (spec §4.7). Exactly one of the returned Accept/Decline is
// non-nil on a nil error.
func (p *Host) Propose(ctx context.Context, peerID peer.ID, req swap.Request) (*swap.Accept, *swap.Decline, error) {
	s, err := p.host.NewStream(ctx, peerID, SwapProtocolID)
	if err != nil {
		return nil, nil, fmt.Errorf("open swap stream: %w", err)
	}
	defer s.Close()

	wireReq := lnwire.NewSwapRequest(req)
	headers, err := json.Marshal(wireReq.Headers)
	if err != nil {
		return nil, nil, err
	}
	body, err := json.Marshal(lnwire.SwapRequestBody{
		AlphaRefundIdentity: wireReq.AlphaRefundIdentity,
		BetaRedeemIdentity:  wireReq.BetaRedeemIdentity,
		AlphaExpiry:         wireReq.AlphaExpiry,
		BetaExpiry:          wireReq.BetaExpiry,
		SecretHash:          wireReq.SecretHash,
	})
	if err != nil {
		return nil, nil, err
	}
	reqPayload, err := json.Marshal(lnwire.RequestPayload{Type: "SWAP", Headers: headers, Body: body})
	if err != nil {
		return nil, nil, err
	}

	frame := lnwire.Frame{Type: lnwire.FrameRequest, Id: 1, Payload: reqPayload}
	if _, err := lnwire.WriteMessage(s, frame); err != nil {
		return nil, nil, fmt.Errorf("write swap request: %w", err)
	}

	respFrame, err := lnwire.ReadMessage(bufio.NewReader(s))
	if err != nil {
		return nil, nil, fmt.Errorf("read swap response: %w", err)
	}
	if respFrame.Type != lnwire.FrameResponse {
		return nil, nil, fmt.Errorf("unexpected frame type %q", respFrame.Type)
	}

	var resp lnwire.ResponsePayload
	if err := json.Unmarshal(respFrame.Payload, &resp); err != nil {
		return nil, nil, fmt.Errorf("decode swap response: %w", err)
	}

	switch resp.Status {
	case lnwire.StatusOK:
		var wireAccept lnwire.SwapAccept
		if err := json.Unmarshal(resp.Body, &wireAccept); err != nil {
			return nil, nil, fmt.Errorf("decode accept body: %w", err)
		}
		return &swap.Accept{
			SwapId:              req.SwapId,
			BetaRefundIdentity:  wireAccept.BetaRefundIdentity,
			AlphaRedeemIdentity: wireAccept.AlphaRedeemIdentity,
		}, nil, nil
	case lnwire.StatusSE:
		var wireDecline lnwire.SwapDecline
		_ = json.Unmarshal(resp.Body, &wireDecline)
		return nil, &swap.Decline{SwapId: req.SwapId, Reason: wireDecline.Reason}, nil
	default:
		return nil, nil, fmt.Errorf("responder internal error (code %d)", resp.Code)
	}
}

// AnnounceProposal gossips a swap proposal on ProposalTopic, best-effort:
// failure to publish never blocks the direct-dial negotiation path.
func (p *Host) AnnounceProposal(req swap.Request) error {
	topic, err := p.joinTopic()
	if err != nil {
		return err
	}
	data, err := json.Marshal(lnwire.NewSwapRequest(req))
	if err != nil {
		return err
	}
	return topic.Publish(p.ctx, data)
}

// SubscribeProposals listens for gossiped proposals on ProposalTopic.
func (p *Host) SubscribeProposals() (<-chan swap.Request, error) {
	topic, err := p.joinTopic()
	if err != nil {
		return nil, err
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return nil, err
	}

	out := make(chan swap.Request)
	go func() {
		defer close(out)
		for {
			msg, err := sub.Next(p.ctx)
			if err != nil {
				return
			}
			var wireReq lnwire.SwapRequest
			if err := json.Unmarshal(msg.Data, &wireReq); err != nil {
				continue
			}
			req, err := wireReq.ToSwapRequest()
			if err != nil {
				continue
			}
			out <- req
		}
	}()
	return out, nil
}

func (p *Host) joinTopic() (*pubsub.Topic, error) {
	p.topicLock.Lock()
	defer p.topicLock.Unlock()
	if p.topic != nil {
		return p.topic, nil
	}
	topic, err := p.pubsub.Join(ProposalTopic)
	if err != nil {
		return nil, fmt.Errorf("join topic %s: %w", ProposalTopic, err)
	}
	p.topic = topic
	return topic, nil
}
