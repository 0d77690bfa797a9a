package contractcourt

import (
	"context"
	"fmt"
	"math/big"

	"github.com/atomicswap/cnd/chainntfs"
	ethntfs "github.com/atomicswap/cnd/chainntfs/ethereum"
	"github.com/atomicswap/cnd/htlc/ethhtlc"
	"github.com/atomicswap/cnd/swap"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// EthereumParams is the params argument HtlcResolver methods expect for an
// Ethereum-side HTLC (native ether or ERC-20).
type EthereumParams struct {
	Htlc           ethhtlc.Params
	Sender         common.Address
	Nonce          uint64
	RequiredWei    *big.Int // nil for ERC-20 (funding is a separate Transfer).
	RequiredTokens *big.Int // nil for ether.

	// SettlementCandidates lists transaction hashes worth checking for a
	// Redeemed()/Refunded() event, since an Ethereum block header alone
	// doesn't carry transaction bodies the way a decoded Bitcoin block
	// does (see chainntfs/ethereum). The caller appends to this as it
	// learns of transactions touching the HTLC address — typically from
	// its own broadcast of the redeem/refund transaction, or from a
	// parallel to-address watch.
	SettlementCandidates []common.Hash

	// FundingCandidates is SettlementCandidates' counterpart for the
	// ERC-20 funding Transfer event.
	FundingCandidates []common.Hash
}

// EthereumResolver implements HtlcResolver for the Ethereum ledger family,
// covering both native ether (funding at deploy) and ERC-20 (funding via a
// separate Transfer event) per spec §4.5.
type EthereumResolver struct {
	Source   chainntfs.BlockSource
	Receipts ethntfs.ReceiptFetcher

	// Confirmations is how deep a deploy/fund/settlement must be buried
	// before it's reported; 0 behaves as 1 (report on first sight).
	Confirmations uint32
}

// HtlcDeployed does not watch the chain: it builds the HTLC bytecode for
// p.Htlc, derives the address a CREATE from p.Sender at p.Nonce yields,
// and returns that location with ethhtlc.DeployHeader's output as
// DeployTx. It returns at once whether or not the contract has been
// deployed, and checks no deployed value.
func (r *EthereumResolver) HtlcDeployed(ctx context.Context, params interface{}) (*Deployed, error) {
	p, ok := params.(EthereumParams)
	if !ok {
		return nil, fmt.Errorf("ethereum resolver requires EthereumParams, got %T", params)
	}

	bytecode, err := ethhtlc.Bytecode(p.Htlc)
	if err != nil {
		return nil, err
	}
	deployTx := ethhtlc.DeployHeader(bytecode)

	addr, err := ethhtlc.CreateAddress(p.Sender, p.Nonce)
	if err != nil {
		return nil, err
	}

	location := swap.HtlcLocation{IsEthereum: true, ContractAddress: addr}

	return &Deployed{Location: location, DeployTx: deployTx}, nil
}

func (r *EthereumResolver) HtlcFunded(ctx context.Context, params interface{}, deployed *Deployed) (*Funded, error) {
	p, ok := params.(EthereumParams)
	if !ok {
		return nil, fmt.Errorf("ethereum resolver requires EthereumParams, got %T", params)
	}

	if p.RequiredWei != nil {
		// Ether funds at deploy: spec §4.5 "Ether: ... funds at deploy".
		return &Funded{
			Location: deployed.Location,
			FundTx:   deployed.DeployTx,
			Asset:    swap.AssetKind{Kind: swap.AssetEther, Wei: p.RequiredWei},
		}, nil
	}

	if p.Htlc.TokenContract == nil {
		return nil, fmt.Errorf("erc20 htlc params missing a token contract")
	}

	// ERC-20: watch for Transfer(?, location) on the token contract.
	query := &ethntfs.EventQuery{
		Receipts: r.Receipts,
		Contract: *p.Htlc.TokenContract,
		Topic:    ethhtlc.TransferEventTopic,
	}
	for _, hash := range p.FundingCandidates {
		query.AddCandidate(hash)
	}

	result, err := watchQuery(ctx, r.Source, query, r.Confirmations)
	if err != nil {
		return nil, err
	}
	log := result.(*gethtypes.Log)

	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("transfer event missing the indexed `to` topic")
	}
	to := common.BytesToAddress(log.Topics[2].Bytes())
	if to != deployed.Location.ContractAddress {
		return nil, fmt.Errorf("observed transfer targets %s, not the htlc address %x",
			to, deployed.Location.ContractAddress)
	}

	quantity := new(big.Int).SetBytes(log.Data)

	return &Funded{
		Location: deployed.Location,
		FundTx:   log.TxHash.Bytes(),
		Asset: swap.AssetKind{
			Kind:          swap.AssetErc20,
			TokenContract: identityFromAddress(*p.Htlc.TokenContract),
			Quantity:      quantity,
		},
	}, nil
}

func (r *EthereumResolver) HtlcRedeemedOrRefunded(ctx context.Context, params interface{}, location swap.HtlcLocation) (*Settlement, error) {
	p, ok := params.(EthereumParams)
	if !ok {
		return nil, fmt.Errorf("ethereum resolver requires EthereumParams, got %T", params)
	}

	// Both event queries run over the same block stream: whichever
	// topic's log appears first, on the same candidate transaction set,
	// decides the outcome (spec §4.5's "whichever resolves first wins").
	query := &redeemOrRefundQuery{
		redeem: &ethntfs.EventQuery{Receipts: r.Receipts, Contract: location.ContractAddress, Topic: ethhtlc.RedeemedTopic},
		refund: &ethntfs.EventQuery{Receipts: r.Receipts, Contract: location.ContractAddress, Topic: ethhtlc.RefundedTopic},
	}
	for _, hash := range p.SettlementCandidates {
		query.AddCandidate(hash)
	}

	result, err := watchQuery(ctx, r.Source, query, r.Confirmations)
	if err != nil {
		return nil, err
	}
	match := result.(redeemOrRefundMatch)

	if !match.redeem {
		return &Settlement{Outcome: Refunded, Tx: match.log.TxHash.Bytes()}, nil
	}

	if len(match.log.Data) != 32 {
		return nil, ErrInternalSecretMismatch
	}
	var secretBytes [32]byte
	copy(secretBytes[:], match.log.Data)

	secret := swap.Secret(secretBytes)
	if !secret.Matches(swap.SecretHash(p.Htlc.SecretHash)) {
		return nil, ErrInternalSecretMismatch
	}

	return &Settlement{Outcome: Redeemed, Secret: &secret, Tx: match.log.TxHash.Bytes()}, nil
}

type redeemOrRefundMatch struct {
	log    *gethtypes.Log
	redeem bool
}

// redeemOrRefundQuery implements chainntfs.TransactionQuery by checking the
// redeem topic first, then the refund topic, against the same candidate
// set — whichever matches first on a given poll wins.
type redeemOrRefundQuery struct {
	redeem *ethntfs.EventQuery
	refund *ethntfs.EventQuery
}

// AddCandidate registers a transaction hash worth checking against both
// the redeem and refund sub-queries on the next poll; the caller feeds
// these in as it learns of transactions touching the HTLC address (for
// example, via a broader to_address watch it runs alongside).
func (q *redeemOrRefundQuery) AddCandidate(hash common.Hash) {
	q.redeem.AddCandidate(hash)
	q.refund.AddCandidate(hash)
}

func (q *redeemOrRefundQuery) Match(block chainntfs.Block) (interface{}, bool) {
	if v, ok := q.redeem.Match(block); ok {
		return redeemOrRefundMatch{log: v.(*gethtypes.Log), redeem: true}, true
	}
	if v, ok := q.refund.Match(block); ok {
		return redeemOrRefundMatch{log: v.(*gethtypes.Log), redeem: false}, true
	}
	return nil, false
}

func identityFromAddress(addr common.Address) swap.Identity {
	var id swap.Identity
	copy(id[:], addr.Bytes())
	return id
}
