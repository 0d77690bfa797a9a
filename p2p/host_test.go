package p2p

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/atomicswap/cnd/swap"
	"github.com/libp2p/go-libp2p/core/peer"
)

var errHandler = errors.New("handler failed")

func testSwapRequest() swap.Request {
	var hash swap.SecretHash
	hash[0] = 0xaa

	return swap.Request{
		SwapId:      swap.NewSwapId(),
		AlphaLedger: swap.LedgerKind{Kind: swap.LedgerBitcoin, BitcoinNetwork: swap.BitcoinRegtest},
		BetaLedger:  swap.LedgerKind{Kind: swap.LedgerEthereum},
		AlphaAsset:  swap.AssetKind{Kind: swap.AssetBitcoin, Satoshis: 100_000},
		BetaAsset:   swap.AssetKind{Kind: swap.AssetEther, Wei: big.NewInt(1_000_000)},
		AlphaExpiry: swap.Expiry{BlockHeight: 800},
		BetaExpiry:  swap.Expiry{UnixSeconds: 2_000_000_000},
		SecretHash:  hash,
	}
}

// fakeHandler answers every inbound request the same way, recording what
// it saw so the test can assert on it.
type fakeHandler struct {
	accept *swap.Accept
	decline *swap.Decline
	err     error

	lastFrom peer.ID
	lastReq  swap.Request
}

func (f *fakeHandler) HandleSwapRequest(ctx context.Context, from peer.ID, req swap.Request) (*swap.Accept, *swap.Decline, error) {
	f.lastFrom = from
	f.lastReq = req
	return f.accept, f.decline, f.err
}

func newConnectedPair(t *testing.T, server RequestHandler) (*Host, *Host) {
	t.Helper()

	serverHost, err := NewHost(Config{ListenAddr: "/ip4/127.0.0.1/tcp/0"}, server)
	if err != nil {
		t.Fatalf("new server host: %v", err)
	}
	t.Cleanup(func() { serverHost.Close() })

	clientHost, err := NewHost(Config{ListenAddr: "/ip4/127.0.0.1/tcp/0"}, &fakeHandler{})
	if err != nil {
		t.Fatalf("new client host: %v", err)
	}
	t.Cleanup(func() { clientHost.Close() })

	serverInfo := peer.AddrInfo{ID: serverHost.ID(), Addrs: serverHost.host.Addrs()}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := clientHost.host.Connect(ctx, serverInfo); err != nil {
		t.Fatalf("connect client to server: %v", err)
	}

	return clientHost, serverHost
}

func TestProposeReturnsAccept(t *testing.T) {
	req := testSwapRequest()
	wantAccept := &swap.Accept{
		SwapId:              req.SwapId,
		BetaRefundIdentity:  swap.Identity{0x01},
		AlphaRedeemIdentity: swap.Identity{0x02},
	}
	server := &fakeHandler{accept: wantAccept}

	client, serverHost := newConnectedPair(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	accept, decline, err := client.Propose(ctx, serverHost.ID(), req)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if decline != nil {
		t.Fatalf("expected no decline, got %+v", decline)
	}
	if accept == nil {
		t.Fatal("expected a non-nil accept")
	}
	if accept.BetaRefundIdentity != wantAccept.BetaRefundIdentity {
		t.Fatalf("beta_refund_identity mismatch: got %v want %v", accept.BetaRefundIdentity, wantAccept.BetaRefundIdentity)
	}
	if accept.AlphaRedeemIdentity != wantAccept.AlphaRedeemIdentity {
		t.Fatalf("alpha_redeem_identity mismatch: got %v want %v", accept.AlphaRedeemIdentity, wantAccept.AlphaRedeemIdentity)
	}

	if server.lastReq.SwapId != req.SwapId {
		t.Fatalf("server did not observe the proposed swap id: got %v want %v", server.lastReq.SwapId, req.SwapId)
	}
	if server.lastFrom != client.ID() {
		t.Fatalf("server recorded wrong remote peer: got %v want %v", server.lastFrom, client.ID())
	}
}

func TestProposeReturnsDecline(t *testing.T) {
	req := testSwapRequest()
	reason := "unsupported pair"
	server := &fakeHandler{decline: &swap.Decline{SwapId: req.SwapId, Reason: &reason}}

	client, serverHost := newConnectedPair(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	accept, decline, err := client.Propose(ctx, serverHost.ID(), req)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if accept != nil {
		t.Fatalf("expected no accept, got %+v", accept)
	}
	if decline == nil || decline.Reason == nil || *decline.Reason != reason {
		t.Fatalf("expected decline with reason %q, got %+v", reason, decline)
	}
}

func TestProposeSurfacesResponderInternalError(t *testing.T) {
	req := testSwapRequest()
	server := &fakeHandler{err: errHandler}

	client, serverHost := newConnectedPair(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	accept, decline, err := client.Propose(ctx, serverHost.ID(), req)
	if err == nil {
		t.Fatal("expected a responder-internal-error to surface as a Go error")
	}
	if accept != nil || decline != nil {
		t.Fatalf("expected no accept/decline alongside an error, got accept=%+v decline=%+v", accept, decline)
	}
}

func TestAnnounceProposalReachesSubscriber(t *testing.T) {
	req := testSwapRequest()
	client, serverHost := newConnectedPair(t, &fakeHandler{})

	sub, err := serverHost.SubscribeProposals()
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// gossipsub mesh formation across two directly-connected peers can
	// take a beat; give it a little room before publishing.
	time.Sleep(200 * time.Millisecond)

	if err := client.AnnounceProposal(req); err != nil {
		t.Fatalf("announce: %v", err)
	}

	select {
	case got := <-sub:
		if got.SwapId != req.SwapId {
			t.Fatalf("got swap id %v want %v", got.SwapId, req.SwapId)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for gossiped proposal")
	}
}
