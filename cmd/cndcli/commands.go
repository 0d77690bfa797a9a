package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/atomicswap/cnd/cndrpc"
	"github.com/atomicswap/cnd/swap"
	"github.com/atomicswap/cnd/swapstate"
	"github.com/google/uuid"
	"github.com/urfave/cli"
)

func printJSON(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	os.Stdout.Write(b)
	fmt.Println()
}

func parseSwapId(s string) (swap.SwapId, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return swap.SwapId{}, fmt.Errorf("invalid swap id %q: %w", s, err)
	}
	return swap.SwapId(parsed), nil
}

// parseLedger parses a ledger flag of the form "bitcoin:regtest" or
// "ethereum:<chain-id>", the two spellings proposeCommand accepts for
// --alpha-ledger/--beta-ledger.
func parseLedger(s string) (swap.LedgerKind, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return swap.LedgerKind{}, fmt.Errorf("ledger %q must be family:param", s)
	}

	switch parts[0] {
	case "bitcoin":
		switch parts[1] {
		case "mainnet":
			return swap.LedgerKind{Kind: swap.LedgerBitcoin, BitcoinNetwork: swap.BitcoinMainnet}, nil
		case "testnet":
			return swap.LedgerKind{Kind: swap.LedgerBitcoin, BitcoinNetwork: swap.BitcoinTestnet}, nil
		case "regtest":
			return swap.LedgerKind{Kind: swap.LedgerBitcoin, BitcoinNetwork: swap.BitcoinRegtest}, nil
		default:
			return swap.LedgerKind{}, fmt.Errorf("unknown bitcoin network %q", parts[1])
		}
	case "ethereum":
		chainID, ok := new(big.Int).SetString(parts[1], 10)
		if !ok {
			return swap.LedgerKind{}, fmt.Errorf("invalid ethereum chain id %q", parts[1])
		}
		return swap.LedgerKind{Kind: swap.LedgerEthereum, EthereumChainID: chainID}, nil
	default:
		return swap.LedgerKind{}, fmt.Errorf("unknown ledger family %q", parts[0])
	}
}

// parseAsset parses an asset flag of the form "bitcoin:<satoshis>",
// "ether:<wei>", or "erc20:<contract-hex>:<quantity>".
func parseAsset(s string) (swap.AssetKind, error) {
	parts := strings.SplitN(s, ":", 3)
	switch parts[0] {
	case "bitcoin":
		if len(parts) != 2 {
			return swap.AssetKind{}, fmt.Errorf("asset %q must be bitcoin:satoshis", s)
		}
		satoshis, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return swap.AssetKind{}, fmt.Errorf("invalid satoshis %q: %w", parts[1], err)
		}
		return swap.AssetKind{Kind: swap.AssetBitcoin, Satoshis: satoshis}, nil
	case "ether":
		if len(parts) != 2 {
			return swap.AssetKind{}, fmt.Errorf("asset %q must be ether:wei", s)
		}
		wei, ok := new(big.Int).SetString(parts[1], 10)
		if !ok {
			return swap.AssetKind{}, fmt.Errorf("invalid wei amount %q", parts[1])
		}
		return swap.AssetKind{Kind: swap.AssetEther, Wei: wei}, nil
	case "erc20":
		if len(parts) != 3 {
			return swap.AssetKind{}, fmt.Errorf("asset %q must be erc20:contract:quantity", s)
		}
		contract, err := parseIdentity(parts[1])
		if err != nil {
			return swap.AssetKind{}, err
		}
		quantity, ok := new(big.Int).SetString(parts[2], 10)
		if !ok {
			return swap.AssetKind{}, fmt.Errorf("invalid quantity %q", parts[2])
		}
		return swap.AssetKind{Kind: swap.AssetErc20, TokenContract: contract, Quantity: quantity}, nil
	default:
		return swap.AssetKind{}, fmt.Errorf("unknown asset family %q", parts[0])
	}
}

func parseIdentity(hexStr string) (swap.Identity, error) {
	var id swap.Identity
	b, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil {
		return id, fmt.Errorf("invalid identity %q: %w", hexStr, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("identity %q must be %d bytes, got %d", hexStr, len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// parseExpiry parses a bare integer and stores it as both the block
// height (read for Bitcoin ledgers) and the unix-seconds timestamp (read
// for Ethereum ledgers) of the returned Expiry.
func parseExpiry(s string) (swap.Expiry, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return swap.Expiry{}, fmt.Errorf("invalid expiry %q: %w", s, err)
	}
	return swap.Expiry{BlockHeight: uint32(n), UnixSeconds: n}, nil
}

var proposeCommand = cli.Command{
	Name:  "propose",
	Usage: "propose a swap to a peer",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "peer", Usage: "peer ID of the counterparty to propose to"},
		cli.StringFlag{Name: "alpha-ledger", Usage: "alpha ledger, e.g. bitcoin:regtest or ethereum:1"},
		cli.StringFlag{Name: "beta-ledger", Usage: "beta ledger, e.g. bitcoin:regtest or ethereum:1"},
		cli.StringFlag{Name: "alpha-asset", Usage: "alpha asset, e.g. bitcoin:100000 or ether:1000000000000000000"},
		cli.StringFlag{Name: "beta-asset", Usage: "beta asset, e.g. bitcoin:100000 or erc20:<contract>:<qty>"},
		cli.StringFlag{Name: "alpha-expiry", Usage: "alpha-side expiry (block height or unix seconds)"},
		cli.StringFlag{Name: "beta-expiry", Usage: "beta-side expiry (block height or unix seconds)"},
	},
	Action: propose,
}

func propose(ctx *cli.Context) error {
	alphaLedger, err := parseLedger(ctx.String("alpha-ledger"))
	if err != nil {
		return err
	}
	betaLedger, err := parseLedger(ctx.String("beta-ledger"))
	if err != nil {
		return err
	}
	alphaAsset, err := parseAsset(ctx.String("alpha-asset"))
	if err != nil {
		return err
	}
	betaAsset, err := parseAsset(ctx.String("beta-asset"))
	if err != nil {
		return err
	}
	alphaExpiry, err := parseExpiry(ctx.String("alpha-expiry"))
	if err != nil {
		return err
	}
	betaExpiry, err := parseExpiry(ctx.String("beta-expiry"))
	if err != nil {
		return err
	}

	client := getClient(ctx)
	defer client.Close()

	result, err := client.Propose(cndrpc.ProposeArgs{
		PeerAddr:    ctx.String("peer"),
		AlphaLedger: alphaLedger,
		BetaLedger:  betaLedger,
		AlphaAsset:  alphaAsset,
		BetaAsset:   betaAsset,
		AlphaExpiry: alphaExpiry,
		BetaExpiry:  betaExpiry,
	})
	if err != nil {
		return err
	}
	printJSON(result.State)
	return nil
}

var acceptCommand = cli.Command{
	Name:      "accept",
	Usage:     "accept a pending inbound swap",
	ArgsUsage: "swap-id",
	Action:    accept,
}

func accept(ctx *cli.Context) error {
	id, err := parseSwapId(ctx.Args().First())
	if err != nil {
		return err
	}

	client := getClient(ctx)
	defer client.Close()

	result, err := client.Accept(cndrpc.SwapIdArgs{SwapId: id})
	if err != nil {
		return err
	}
	printJSON(result.State)
	return nil
}

var declineCommand = cli.Command{
	Name:      "decline",
	Usage:     "decline a pending inbound swap",
	ArgsUsage: "swap-id",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "reason", Usage: "human-readable decline reason"},
	},
	Action: decline,
}

func decline(ctx *cli.Context) error {
	id, err := parseSwapId(ctx.Args().First())
	if err != nil {
		return err
	}

	client := getClient(ctx)
	defer client.Close()

	result, err := client.Decline(cndrpc.DeclineArgs{SwapId: id, Reason: ctx.String("reason")})
	if err != nil {
		return err
	}
	printJSON(result.State)
	return nil
}

var swapsCommand = cli.Command{
	Name:   "swaps",
	Usage:  "list every swap this daemon is a party to",
	Action: listSwaps,
}

func listSwaps(ctx *cli.Context) error {
	client := getClient(ctx)
	defer client.Close()

	result, err := client.Swaps()
	if err != nil {
		return err
	}
	printJSON(result.States)
	return nil
}

var swapCommand = cli.Command{
	Name:      "swap",
	Usage:     "show a swap's current state and available actions",
	ArgsUsage: "swap-id",
	Action:    showSwap,
}

func showSwap(ctx *cli.Context) error {
	id, err := parseSwapId(ctx.Args().First())
	if err != nil {
		return err
	}

	client := getClient(ctx)
	defer client.Close()

	state, err := client.Swap(cndrpc.SwapIdArgs{SwapId: id})
	if err != nil {
		return err
	}
	actions, err := client.Actions(cndrpc.SwapIdArgs{SwapId: id})
	if err != nil {
		return err
	}
	printJSON(struct {
		State   swap.SwapState     `json:"state"`
		Actions []swapstate.Action `json:"actions"`
	}{state.State, actions.Actions})
	return nil
}

// fundCommand, redeemCommand and refundCommand don't broadcast anything
// themselves: cnd holds no private keys (no custodial wallet), so these
// print the resolved Action's on-chain instructions for the operator's own
// wallet/signer to carry out, the same division of labor spec.md's
// action-resolution model assumes.
var fundCommand = cli.Command{
	Name:      "fund",
	Usage:     "show the funding instructions for a swap's next ledger leg",
	ArgsUsage: "swap-id",
	Action:    actionCommand(nil, swapstate.ActionSendToAddress, swapstate.ActionDeployContract),
}

var redeemCommand = cli.Command{
	Name:      "redeem",
	Usage:     "show the redeem instructions for a swap, if any are available",
	ArgsUsage: "swap-id",
	Action:    actionCommand(isRedeem, swapstate.ActionBroadcastSignedTransaction, swapstate.ActionCallContract),
}

var refundCommand = cli.Command{
	Name:      "refund",
	Usage:     "show the refund instructions for a swap, if any are available",
	ArgsUsage: "swap-id",
	Action:    actionCommand(isRefund, swapstate.ActionBroadcastSignedTransaction, swapstate.ActionCallContract),
}

func isRedeem(a swapstate.Action) bool { return a.NotValidUntil == nil }
func isRefund(a swapstate.Action) bool { return a.NotValidUntil != nil }

// actionCommand builds a cli.ActionFunc that fetches a swap's available
// actions and prints the ones matching kinds and, when keep is non-nil,
// accepted by keep. redeem and refund share the same two action kinds;
// they're told apart by NotValidUntil being set (refund) or nil (redeem).
func actionCommand(keep func(swapstate.Action) bool, kinds ...swapstate.ActionKind) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		id, err := parseSwapId(ctx.Args().First())
		if err != nil {
			return err
		}

		client := getClient(ctx)
		defer client.Close()

		result, err := client.Actions(cndrpc.SwapIdArgs{SwapId: id})
		if err != nil {
			return err
		}

		var matched []swapstate.Action
		for _, action := range result.Actions {
			for _, kind := range kinds {
				if action.Kind == kind && (keep == nil || keep(action)) {
					matched = append(matched, action)
					break
				}
			}
		}
		if len(matched) == 0 {
			fmt.Println("no matching action available for this swap in its current state")
			return nil
		}
		printJSON(matched)
		return nil
	}
}
