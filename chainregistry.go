package main

import (
	"fmt"

	"github.com/atomicswap/cnd/chainntfs"
	"github.com/atomicswap/cnd/chainntfs/bitcoin"
	"github.com/atomicswap/cnd/chainntfs/ethereum"
	"github.com/atomicswap/cnd/contractcourt"
	"github.com/atomicswap/cnd/swap"
)

// chainControl wraps a ledger's HtlcResolver, the generalized counterpart
// of the teacher's chainControl bundling a chain's
// wallet/signer/notifier/chainview quartet. A swap daemon needs far less
// per chain: no wallet, no fee estimator, no routing chain view — only
// the ability to watch for an HTLC's three milestones, which the
// resolver already owns a BlockSource for internally.
type chainControl struct {
	resolver contractcourt.HtlcResolver
}

// chainRegistry holds one chainControl per ledger family this daemon is
// configured to swap on, the direct generalization of the teacher's
// chainRegistry from a Bitcoin/Litecoin chain-code map to a
// Bitcoin/Ethereum swap.LedgerFamily map.
type chainRegistry struct {
	chains map[swap.LedgerFamily]*chainControl
}

// newChainRegistry builds chain controls for both ledger families
// configured in cfg. Either leg may be left unconfigured (empty
// RESTHost/RPCHost) if this node only ever takes the other side of a
// swap; looking up a family with no configured chainControl is a
// caller error surfaced via LookupChain's ok return.
func newChainRegistry(cfg *config) (*chainRegistry, error) {
	reg := &chainRegistry{chains: make(map[swap.LedgerFamily]*chainControl)}

	if cfg.Bitcoin.RESTHost != "" {
		network, err := bitcoinNetworkFromString(cfg.Bitcoin.Network)
		if err != nil {
			return nil, err
		}
		client := bitcoin.NewHTTPRESTClient(cfg.Bitcoin.RESTHost)
		interval := chainntfs.PollInterval(network == swap.BitcoinRegtest, false)
		reg.chains[swap.LedgerBitcoin] = &chainControl{
			resolver: &contractcourt.BitcoinResolver{
				Source:        bitcoin.NewPoller(client, interval),
				Confirmations: cfg.Confirmations,
			},
		}
	}

	if cfg.Ethereum.RPCHost != "" {
		client, err := ethereum.Dial(cfg.Ethereum.RPCHost)
		if err != nil {
			return nil, fmt.Errorf("dial ethereum rpc host: %w", err)
		}
		interval := chainntfs.PollInterval(false, true)
		reg.chains[swap.LedgerEthereum] = &chainControl{
			resolver: &contractcourt.EthereumResolver{
				Source:        ethereum.NewPoller(client, interval),
				Receipts:      client,
				Confirmations: cfg.Confirmations,
			},
		}
	}

	return reg, nil
}

// LookupChain returns the chainControl configured for family, if any.
func (r *chainRegistry) LookupChain(family swap.LedgerFamily) (*chainControl, bool) {
	cc, ok := r.chains[family]
	return cc, ok
}

func bitcoinNetworkFromString(s string) (swap.BitcoinNetwork, error) {
	switch s {
	case "mainnet":
		return swap.BitcoinMainnet, nil
	case "testnet":
		return swap.BitcoinTestnet, nil
	case "regtest":
		return swap.BitcoinRegtest, nil
	default:
		return 0, fmt.Errorf("unknown bitcoin network %q", s)
	}
}
