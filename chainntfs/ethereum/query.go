package ethereum

import (
	"context"
	"math/big"

	"github.com/atomicswap/cnd/chainntfs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TransactionFetcher fetches full transactions by hash, used by TxQuery
// since Poller's header-only blocks don't carry transaction bodies.
type TransactionFetcher interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

func (r *rpcClient) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	var raw map[string]interface{}
	if err := r.client.CallContext(ctx, &raw, "eth_getTransactionByHash", hash.Hex()); err != nil {
		return nil, false, &chainntfs.ConnectionError{Err: err}
	}
	if raw == nil {
		return nil, false, nil
	}

	var toAddr *common.Address
	if s, ok := raw["to"].(string); ok && s != "" {
		a := common.HexToAddress(s)
		toAddr = &a
	}

	value, err := hexToBig(raw["value"])
	if err != nil {
		value = big.NewInt(0)
	}

	tx := types.NewTx(&types.LegacyTx{
		To:    toAddr,
		Value: value,
	})
	return tx, true, nil
}

// TxQuery matches an Ethereum transaction by recipient address (spec
// §4.4's "to_address" predicate, generalized from Bitcoin's pkScript match
// to an EVM address match).
type TxQuery struct {
	Fetcher   TransactionFetcher
	ToAddress common.Address

	txHashes []common.Hash // candidate hashes to check, supplied by the caller as it learns of them.
}

// Match implements chainntfs.TransactionQuery. The Ethereum block source
// only carries headers, so candidate transaction hashes (learned, for
// example, from a prior watch on the funding address) must be supplied via
// AddCandidate before Match can find anything.
func (q *TxQuery) Match(block chainntfs.Block) (interface{}, bool) {
	for _, hash := range q.txHashes {
		tx, ok, err := q.Fetcher.TransactionByHash(context.Background(), hash)
		if err != nil || !ok {
			continue
		}
		if tx.To() != nil && *tx.To() == q.ToAddress {
			return tx, true
		}
	}
	return nil, false
}

// AddCandidate registers a transaction hash worth checking against this
// query on the next Match call.
func (q *TxQuery) AddCandidate(hash common.Hash) {
	q.txHashes = append(q.txHashes, hash)
}

// EventQuery matches a contract event by address and topic, used to detect
// Redeemed()/Refunded()/Transfer(...) emissions per spec §4.5.
type EventQuery struct {
	Receipts ReceiptFetcher
	Contract common.Address
	Topic    common.Hash

	candidates []common.Hash
}

// ReceiptFetcher fetches a transaction's receipt, whose Logs carry emitted
// events.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// AddCandidate registers a transaction hash whose receipt is worth
// checking on the next Match call.
func (q *EventQuery) AddCandidate(hash common.Hash) {
	q.candidates = append(q.candidates, hash)
}

// Match implements chainntfs.TransactionQuery, returning the matching
// *types.Log.
func (q *EventQuery) Match(block chainntfs.Block) (interface{}, bool) {
	for _, hash := range q.candidates {
		receipt, err := q.Receipts.TransactionReceipt(context.Background(), hash)
		if err != nil || receipt == nil {
			continue
		}
		for _, l := range receipt.Logs {
			if l.Address != q.Contract {
				continue
			}
			for _, topic := range l.Topics {
				if topic == q.Topic {
					return l, true
				}
			}
		}
	}
	return nil, false
}
