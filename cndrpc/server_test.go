package cndrpc

import (
	"context"
	"math/big"
	"testing"

	"github.com/atomicswap/cnd/channeldb"
	"github.com/atomicswap/cnd/htlcswitch"
	"github.com/atomicswap/cnd/kvdb"
	"github.com/atomicswap/cnd/swap"
	"github.com/libp2p/go-libp2p/core/peer"
	"golang.org/x/sync/errgroup"
)

type fakeIdentities struct{}

func (fakeIdentities) BetaRefundIdentity(swap.LedgerKind) (swap.Identity, error) {
	return swap.Identity{}, nil
}

func (fakeIdentities) AlphaRedeemIdentity(swap.LedgerKind) (swap.Identity, error) {
	return swap.Identity{}, nil
}

type fakeProposer struct {
	accept  *swap.Accept
	decline *swap.Decline
}

func (f fakeProposer) Propose(context.Context, peer.ID, swap.Request) (*swap.Accept, *swap.Decline, error) {
	return f.accept, f.decline, nil
}

func newTestServer(t *testing.T, proposer Proposer) (*Server, *Client, string) {
	t.Helper()

	backend, err := kvdb.OpenBolt(t.TempDir(), "swap.db")
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	db, err := channeldb.Open(backend)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	registry, err := htlcswitch.NewRegistry(htlcswitch.Config{
		DB:         db,
		Policy:     htlcswitch.AcceptAll{},
		Identities: fakeIdentities{},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	socket := t.TempDir() + "/control.sock"
	srv, err := Listen(socket, registry, proposer)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })

	client, err := Dial(socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return srv, client, socket
}

func testProposeArgs() ProposeArgs {
	return ProposeArgs{
		PeerAddr:    peer.ID("remote-peer").String(),
		AlphaLedger: swap.LedgerKind{Kind: swap.LedgerBitcoin, BitcoinNetwork: swap.BitcoinRegtest},
		BetaLedger:  swap.LedgerKind{Kind: swap.LedgerEthereum},
		AlphaAsset:  swap.AssetKind{Kind: swap.AssetBitcoin, Satoshis: 100_000},
		BetaAsset:   swap.AssetKind{Kind: swap.AssetEther, Wei: big.NewInt(1_000_000)},
		AlphaExpiry: swap.Expiry{BlockHeight: 800},
		BetaExpiry:  swap.Expiry{UnixSeconds: 2_000_000_000},
	}
}

func TestProposeAcceptedRoundTrip(t *testing.T) {
	accept := &swap.Accept{BetaRefundIdentity: swap.Identity{0x01}}
	_, client, _ := newTestServer(t, fakeProposer{accept: accept})

	result, err := client.Propose(testProposeArgs())
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if result.State.Communication.Phase != swap.CommAccepted {
		t.Fatalf("expected Accepted, got %v", result.State.Communication.Phase)
	}
}

func TestProposeDeclinedRoundTrip(t *testing.T) {
	reason := "unsupported pair"
	decline := &swap.Decline{Reason: &reason}
	_, client, _ := newTestServer(t, fakeProposer{decline: decline})

	result, err := client.Propose(testProposeArgs())
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if result.State.Communication.Phase != swap.CommDeclined {
		t.Fatalf("expected Declined, got %v", result.State.Communication.Phase)
	}
}

func TestSwapsAndSwapAndActions(t *testing.T) {
	accept := &swap.Accept{}
	_, client, _ := newTestServer(t, fakeProposer{accept: accept})

	proposed, err := client.Propose(testProposeArgs())
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	swaps, err := client.Swaps()
	if err != nil {
		t.Fatalf("swaps: %v", err)
	}
	if len(swaps.States) != 1 {
		t.Fatalf("expected 1 swap, got %d", len(swaps.States))
	}

	single, err := client.Swap(SwapIdArgs{SwapId: proposed.State.SwapId})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if single.State.SwapId != proposed.State.SwapId {
		t.Fatal("fetched the wrong swap")
	}

	actions, err := client.Actions(SwapIdArgs{SwapId: proposed.State.SwapId})
	if err != nil {
		t.Fatalf("actions: %v", err)
	}
	_ = actions // an Accepted Alice-role swap may have zero or more fund actions; just confirm the call succeeds.
}

func TestProposeBurstIsRateLimited(t *testing.T) {
	_, client, socket := newTestServer(t, fakeProposer{accept: &swap.Accept{}})

	// Each concurrent "propose" comes from its own cndcli invocation in
	// practice, so exercise the limiter with one connection per caller
	// rather than multiplexing requests over a single Client.
	var g errgroup.Group
	for i := 0; i < proposeRateBurst; i++ {
		g.Go(func() error {
			c, err := Dial(socket)
			if err != nil {
				return err
			}
			defer c.Close()
			_, err = c.Propose(testProposeArgs())
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("expected the initial burst to succeed: %v", err)
	}

	if _, err := client.Propose(testProposeArgs()); err == nil {
		t.Fatal("expected the request past the burst to be rate limited")
	}
}

func TestSwapUnknownIdReturnsError(t *testing.T) {
	_, client, _ := newTestServer(t, fakeProposer{})

	if _, err := client.Swap(SwapIdArgs{SwapId: swap.NewSwapId()}); err == nil {
		t.Fatal("expected an error for an unknown swap id")
	}
}
