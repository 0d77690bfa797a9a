package contractcourt

import (
	"bytes"
	"context"
	"fmt"

	"github.com/atomicswap/cnd/chainntfs"
	"github.com/atomicswap/cnd/chainntfs/bitcoin"
	"github.com/atomicswap/cnd/htlc/btchtlc"
	"github.com/atomicswap/cnd/swap"
	"github.com/btcsuite/btcd/wire"
)

// BitcoinParams is the params argument HtlcResolver methods expect for a
// Bitcoin-side HTLC.
type BitcoinParams struct {
	Script   btchtlc.Params
	PkScript []byte
}

// BitcoinResolver implements HtlcResolver for the Bitcoin ledger family.
// Funding is deployment (spec §4.5: "Bitcoin: funding IS the deploy").
type BitcoinResolver struct {
	Source chainntfs.BlockSource

	// Confirmations is how deep a deploy/settlement must be buried before
	// it's reported; 0 behaves as 1 (report on first sight).
	Confirmations uint32
}

func (r *BitcoinResolver) HtlcDeployed(ctx context.Context, params interface{}) (*Deployed, error) {
	p, ok := params.(BitcoinParams)
	if !ok {
		return nil, fmt.Errorf("bitcoin resolver requires BitcoinParams, got %T", params)
	}

	query := &bitcoin.TxQuery{ToAddress: p.PkScript}
	result, err := watchQuery(ctx, r.Source, query, r.Confirmations)
	if err != nil {
		return nil, err
	}

	tx := result.(*wire.MsgTx)
	vout, err := findOutput(tx, p.PkScript)
	if err != nil {
		return nil, err
	}

	var location swap.HtlcLocation
	location.Txid = tx.TxHash()
	location.Vout = vout

	return &Deployed{
		Location: location,
		DeployTx: serializeTx(tx),
	}, nil
}

func (r *BitcoinResolver) HtlcFunded(ctx context.Context, params interface{}, deployed *Deployed) (*Funded, error) {
	return &Funded{
		Location: deployed.Location,
		FundTx:   deployed.DeployTx,
	}, nil
}

func (r *BitcoinResolver) HtlcRedeemedOrRefunded(ctx context.Context, params interface{}, location swap.HtlcLocation) (*Settlement, error) {
	p, ok := params.(BitcoinParams)
	if !ok {
		return nil, fmt.Errorf("bitcoin resolver requires BitcoinParams, got %T", params)
	}

	outpoint := wire.OutPoint{Hash: location.Txid, Index: location.Vout}
	query := &bitcoin.TxQuery{FromOutpoint: &outpoint}

	result, err := watchQuery(ctx, r.Source, query, r.Confirmations)
	if err != nil {
		return nil, err
	}
	tx := result.(*wire.MsgTx)

	secret, redeemed := bitcoin.ExtractSecretFromSpend(tx, p.Script.SecretHash)
	if redeemed {
		s, err := swap.SecretFromHex(fmt.Sprintf("%x", secret))
		if err != nil {
			return nil, err
		}
		return &Settlement{Outcome: Redeemed, Secret: &s, Tx: serializeTx(tx)}, nil
	}
	return &Settlement{Outcome: Refunded, Tx: serializeTx(tx)}, nil
}

func findOutput(tx *wire.MsgTx, pkScript []byte) (uint32, error) {
	for i, out := range tx.TxOut {
		if bytes.Equal(out.PkScript, pkScript) {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("no output in tx %s pays the expected htlc script", tx.TxHash())
}

func serializeTx(tx *wire.MsgTx) []byte {
	var buf bytes.Buffer
	_ = tx.Serialize(&buf)
	return buf.Bytes()
}
