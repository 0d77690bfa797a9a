package contractcourt

import (
	"context"
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/atomicswap/cnd/chainntfs"
	"github.com/atomicswap/cnd/htlc/ethhtlc"
	"github.com/atomicswap/cnd/swap"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func swapHtlcLocationEthereum(contract common.Address) swap.HtlcLocation {
	return swap.HtlcLocation{IsEthereum: true, ContractAddress: contract}
}

type fakeReceipts struct {
	receipts map[common.Hash]*types.Receipt
}

func (f *fakeReceipts) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return f.receipts[hash], nil
}

func testEthParams() EthereumParams {
	return EthereumParams{
		Htlc: ethhtlc.Params{
			RedeemAddress: common.HexToAddress("0x1"),
			RefundAddress: common.HexToAddress("0x2"),
			Expiry:        1000,
		},
		Sender:      common.HexToAddress("0x3"),
		Nonce:       4,
		RequiredWei: big.NewInt(1_000_000),
	}
}

func TestEthereumResolverHtlcDeployedPredictsAddress(t *testing.T) {
	r := &EthereumResolver{}
	p := testEthParams()

	deployed, err := r.HtlcDeployed(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}

	wantAddr, err := ethhtlc.CreateAddress(p.Sender, p.Nonce)
	if err != nil {
		t.Fatal(err)
	}
	if deployed.Location.ContractAddress != wantAddr {
		t.Fatal("expected the predicted CREATE address")
	}
	if !deployed.Location.IsEthereum {
		t.Fatal("expected an ethereum-flagged location")
	}
}

func TestEthereumResolverHtlcFundedEtherIsDeploy(t *testing.T) {
	r := &EthereumResolver{}
	p := testEthParams()

	deployed := &Deployed{DeployTx: []byte{9, 9}}
	funded, err := r.HtlcFunded(context.Background(), p, deployed)
	if err != nil {
		t.Fatal(err)
	}
	if funded.Asset.Kind != swap.AssetEther {
		t.Fatalf("expected AssetEther, got %v", funded.Asset.Kind)
	}
}

func TestEthereumResolverRedeemedOrRefundedPicksRedeemedTopic(t *testing.T) {
	contract := common.HexToAddress("0xaa")
	txHash := common.HexToHash("0xbb")
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i)
	}

	hash := sha256.Sum256(secret)

	receipt := &types.Receipt{
		Logs: []*types.Log{
			{Address: contract, Topics: []common.Hash{ethhtlc.RedeemedTopic}, Data: secret, TxHash: txHash},
		},
	}
	receipts := &fakeReceipts{receipts: map[common.Hash]*types.Receipt{txHash: receipt}}

	source := newFakeSource(chainntfs.Block{Height: 1})
	r := &EthereumResolver{Source: source, Receipts: receipts}

	p := testEthParams()
	p.Htlc.SecretHash = hash
	p.SettlementCandidates = []common.Hash{txHash}

	location := swapHtlcLocationEthereum(contract)

	settlement, err := r.HtlcRedeemedOrRefunded(context.Background(), p, location)
	if err != nil {
		t.Fatal(err)
	}
	if settlement.Outcome != Redeemed {
		t.Fatal("expected a redeem outcome")
	}
	if settlement.Secret == nil {
		t.Fatal("expected the secret to be extracted")
	}
}

func TestEthereumResolverRedeemedOrRefundedPicksRefundedTopic(t *testing.T) {
	contract := common.HexToAddress("0xaa")
	txHash := common.HexToHash("0xbb")

	receipt := &types.Receipt{
		Logs: []*types.Log{
			{Address: contract, Topics: []common.Hash{ethhtlc.RefundedTopic}, TxHash: txHash},
		},
	}
	receipts := &fakeReceipts{receipts: map[common.Hash]*types.Receipt{txHash: receipt}}

	source := newFakeSource(chainntfs.Block{Height: 1})
	r := &EthereumResolver{Source: source, Receipts: receipts}

	p := testEthParams()
	p.SettlementCandidates = []common.Hash{txHash}

	location := swapHtlcLocationEthereum(contract)

	settlement, err := r.HtlcRedeemedOrRefunded(context.Background(), p, location)
	if err != nil {
		t.Fatal(err)
	}
	if settlement.Outcome != Refunded {
		t.Fatal("expected a refund outcome")
	}
}
