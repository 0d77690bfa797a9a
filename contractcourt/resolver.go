// Package contractcourt exposes, per (ledger, asset) pair, the three
// on-chain futures an HTLC goes through (spec §4.5): deployment, funding,
// and final settlement by redeem or refund. Generalized from
// htlc_timeout_resolver.go's ContractResolver pattern (Resolve/IsResolved)
// into blocking calls over chainntfs.BlockSource-fed queries, since a swap
// HTLC has no second-level transaction or nursery incubation to track —
// just the three milestones spec §4.5 names.
package contractcourt

import (
	"context"
	"fmt"
	"time"

	"github.com/atomicswap/cnd/chainntfs"
	"github.com/atomicswap/cnd/swap"
)

// Deployed is the result of htlc_deployed: where the HTLC landed on-chain
// and the transaction that put it there.
type Deployed struct {
	Location swap.HtlcLocation
	DeployTx []byte
}

// Funded is the result of htlc_funded.
type Funded struct {
	Location swap.HtlcLocation
	FundTx   []byte
	Asset    swap.AssetKind
}

// Outcome distinguishes the two ways an HTLC settles.
type Outcome int

const (
	Redeemed Outcome = iota
	Refunded
)

// Settlement is the result of htlc_redeemed_or_refunded: which branch was
// taken, the transaction that took it, and — for a redeem — the secret it
// revealed.
type Settlement struct {
	Outcome Outcome
	Secret  *swap.Secret
	Tx      []byte
}

// HtlcResolver is the per-(ledger,asset) adapter spec §4.5 describes: three
// observations driven by a chainntfs.BlockSource, each watched one
// resolving once its on-chain condition is met and buried to the
// resolver's confirmation depth (see watchQuery).
type HtlcResolver interface {
	// HtlcDeployed reports where the HTLC contract/output is. The Bitcoin
	// resolver blocks until the output is observed on-chain; the Ethereum
	// resolver returns the predicted contract address without watching.
	HtlcDeployed(ctx context.Context, params interface{}) (*Deployed, error)

	// HtlcFunded blocks until the HTLC is observed funded, or returns
	// immediately with deployed's own location for ledgers where funding
	// IS deployment (Bitcoin, Ether).
	HtlcFunded(ctx context.Context, params interface{}, deployed *Deployed) (*Funded, error)

	// HtlcRedeemedOrRefunded blocks until the HTLC is spent, reporting
	// which branch was taken.
	HtlcRedeemedOrRefunded(ctx context.Context, params interface{}, location swap.HtlcLocation) (*Settlement, error)
}

// ErrInternalSecretMismatch is returned when a Redeemed event's revealed
// data doesn't hash to the HTLC's secret_hash, per spec §4.5's "fail
// Internal(\"secret missing\")" Ethereum clause.
var ErrInternalSecretMismatch = fmt.Errorf("observed redeem data does not hash to the htlc's secret hash")

// watchQuery runs a single chainntfs.TransactionQuery against every block a
// BlockSource emits until it matches, then keeps consuming blocks until the
// match is buried under confirmations-1 further blocks before returning —
// the generalized form of spec §4.4's confirmation-depth requirement,
// guarding every milestone against a reorg unwinding it. confirmations <= 1
// returns as soon as the match is seen, same as a single-block wait.
func watchQuery(ctx context.Context, source chainntfs.BlockSource, query chainntfs.TransactionQuery, confirmations uint32) (interface{}, error) {
	if confirmations == 0 {
		confirmations = 1
	}

	log.Debugf("watching for %T from %s, %d confirmation(s) deep", query, ctxStartTime(ctx), confirmations)
	blocks := source.Blocks(ctxStartTime(ctx))
	defer source.Stop()

	var (
		matched   interface{}
		matchedAt int64
		haveMatch bool
	)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case block, ok := <-blocks:
			if !ok {
				if err := source.Err(); err != nil {
					return nil, err
				}
				return nil, fmt.Errorf("block source closed without a terminal error")
			}

			if !haveMatch {
				if tx, ok := query.Match(block); ok {
					matched, matchedAt, haveMatch = tx, block.Height, true
				}
			}

			if haveMatch && block.Height-matchedAt+1 >= int64(confirmations) {
				return matched, nil
			}
		}
	}
}

type startTimeKey struct{}

// WithStartTime attaches the swap's start time to ctx, so every
// HtlcResolver call made with it knows where to bound a BlockSource's
// gap-filling walk (spec §4.4's swap-start cutoff).
func WithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey{}, t)
}

// ctxStartTime extracts the swap-start timestamp attached via
// WithStartTime; callers that omit it get the zero time, which every
// BlockSource treats as "from genesis".
func ctxStartTime(ctx context.Context) time.Time {
	if v := ctx.Value(startTimeKey{}); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}
