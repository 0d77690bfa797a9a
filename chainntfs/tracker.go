package chainntfs

import "github.com/btcsuite/btclog"

// log is the package-level logger, silent until UseLogger is called.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by chainntfs and its
// sub-packages.
func UseLogger(l btclog.Logger) {
	log = l
}

// ChainTracker implements the reorg-aware block bookkeeping shared by
// every BlockSource (spec §4.4 obligations 2-3): it remembers the hashes it
// has already emitted, detects when the current tip's parent is unknown
// (a gap to fill) or when a previously-emitted block has fallen off the
// best chain (a reorg to re-deliver), and decides, height by height, what
// needs to be (re-)emitted next.
//
// It holds no network connection itself; the freshly fetched tip and a
// fetchParent function are supplied by the caller on each Reconcile,
// keeping this logic identical for Bitcoin and Ethereum pollers.
type ChainTracker struct {
	emitted map[[32]byte]Block
	tip     [32]byte
	known   bool
}

// NewChainTracker returns an empty tracker.
func NewChainTracker() *ChainTracker {
	return &ChainTracker{emitted: make(map[[32]byte]Block)}
}

// Reconcile computes the sequence of blocks to emit given a freshly
// fetched tip, using fetchParent to walk backwards when the tip's parent
// is not already known, stopping at a block whose parent this tracker has
// already emitted or once the next parent would be at or below
// cutoffHeight (the swap start, translated by the caller into a height):
// blocks at or below cutoffHeight are never fetched.
//
// The returned slice is in ascending height order and is safe to feed
// straight to a downstream TransactionQuery scan: blocks already seen by
// an idempotent consumer are harmless to redeliver, and per spec §4.4
// obligation 3 that is exactly the "downstream query stage is idempotent"
// contract this depends on.
func (c *ChainTracker) Reconcile(tip Block, fetchParent func(hash [32]byte) (Block, bool, error),
	cutoffHeight int64) ([]Block, error) {

	if c.known && c.tip == tip.Hash {
		return nil, nil
	}

	var chain []Block
	cur := tip
	for {
		chain = append([]Block{cur}, chain...)

		if _, seen := c.emitted[cur.Parent]; seen {
			break
		}
		if cur.Height-1 <= cutoffHeight {
			break
		}

		parent, ok, err := fetchParent(cur.Parent)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		cur = parent
	}

	for _, b := range chain {
		c.emitted[b.Hash] = b
	}
	c.tip = tip.Hash
	c.known = true

	return chain, nil
}
