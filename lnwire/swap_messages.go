package lnwire

import (
	"fmt"

	"github.com/atomicswap/cnd/swap"
)

// LedgerHeader is the tagged-object header value for a ledger side of a
// swap request: `{value, parameters: {network}}` (spec §4.7).
type LedgerHeader struct {
	Value      string `json:"value"`
	Parameters struct {
		Network string `json:"network"`
	} `json:"parameters"`
}

// AssetHeader is the tagged-object header value for an asset amount:
// `{value, parameters: {quantity, token_contract?}}` (spec §4.7).
type AssetHeader struct {
	Value      string `json:"value"`
	Parameters struct {
		Quantity      string  `json:"quantity"`
		TokenContract *string `json:"token_contract,omitempty"`
	} `json:"parameters"`
}

// ProtocolHeader pins the negotiation protocol and hash function in use.
// Only one variant is currently defined (spec §4.7).
type ProtocolHeader struct {
	Value      string `json:"value"`
	Parameters struct {
		HashFunction string `json:"hash_function"`
	} `json:"parameters"`
}

// SwapHeaders is the full set of mandatory Request headers (spec §4.7).
type SwapHeaders struct {
	Id          swap.SwapId    `json:"id"`
	AlphaLedger LedgerHeader   `json:"alpha_ledger"`
	BetaLedger  LedgerHeader   `json:"beta_ledger"`
	AlphaAsset  AssetHeader    `json:"alpha_asset"`
	BetaAsset   AssetHeader    `json:"beta_asset"`
	Protocol    ProtocolHeader `json:"protocol"`
}

// SwapRequestBody is the Request payload's `body` object (spec §4.7),
// kept separate from SwapHeaders so a caller can marshal the two into a
// RequestPayload's distinct `headers`/`body` fields without duplicating
// data on the wire.
type SwapRequestBody struct {
	AlphaRefundIdentity swap.Identity   `json:"alpha_refund_identity"`
	BetaRedeemIdentity  swap.Identity   `json:"beta_redeem_identity"`
	AlphaExpiry         swap.Expiry     `json:"alpha_expiry"`
	BetaExpiry          swap.Expiry     `json:"beta_expiry"`
	SecretHash          swap.SecretHash `json:"secret_hash"`
}

// SwapRequest is the message Alice sends Bob to propose a swap (spec
// §4.7). Single funder: Alice commits alpha, Bob commits beta — there is
// no dual-funding variant, unlike the teacher's SingleFundingRequest/
// DualFunding split.
type SwapRequest struct {
	Headers SwapHeaders `json:"headers"`
	SwapRequestBody
}

// MsgType is part of the lnwire.Message interface.
func (r *SwapRequest) MsgType() string { return "SWAP" }

// Validate examines a decoded SwapRequest for field sanity, mirroring the
// teacher's pattern of a dedicated Validate method per message (see
// SingleFundingRequest.Validate).
func (r *SwapRequest) Validate() error {
	if r.Headers.AlphaLedger.Value != "bitcoin" && r.Headers.AlphaLedger.Value != "ethereum" {
		return fmt.Errorf("unsupported alpha_ledger %q", r.Headers.AlphaLedger.Value)
	}
	if r.Headers.BetaLedger.Value != "bitcoin" && r.Headers.BetaLedger.Value != "ethereum" {
		return fmt.Errorf("unsupported beta_ledger %q", r.Headers.BetaLedger.Value)
	}
	if r.Headers.Protocol.Value != "comit-rfc-003" {
		return fmt.Errorf("unsupported protocol %q", r.Headers.Protocol.Value)
	}
	if r.Headers.Protocol.Parameters.HashFunction != "SHA-256" {
		return fmt.Errorf("unsupported hash_function %q", r.Headers.Protocol.Parameters.HashFunction)
	}
	if r.Headers.AlphaLedger.Value == r.Headers.BetaLedger.Value {
		return fmt.Errorf("alpha_ledger and beta_ledger must differ")
	}
	return nil
}

// SwapAccept is Bob's affirmative Response body (spec §4.7, status
// OK(20)).
type SwapAccept struct {
	BetaRefundIdentity  swap.Identity `json:"beta_refund_identity"`
	AlphaRedeemIdentity swap.Identity `json:"alpha_redeem_identity"`
}

// MsgType is part of the lnwire.Message interface.
func (a *SwapAccept) MsgType() string { return "SWAP_ACCEPT" }

// SwapDecline is Bob's negative Response body (spec §4.7, status
// SE(20)).
type SwapDecline struct {
	Reason *string `json:"reason,omitempty"`
}

// MsgType is part of the lnwire.Message interface.
func (d *SwapDecline) MsgType() string { return "SWAP_DECLINE" }

// ToSwapRequest translates the wire headers/body into the swap package's
// internal Request, resolving tagged-object header strings into
// swap.LedgerKind/swap.AssetKind enum values.
func (r *SwapRequest) ToSwapRequest() (swap.Request, error) {
	alphaLedger, err := ledgerFromHeader(r.Headers.AlphaLedger)
	if err != nil {
		return swap.Request{}, fmt.Errorf("alpha_ledger: %w", err)
	}
	betaLedger, err := ledgerFromHeader(r.Headers.BetaLedger)
	if err != nil {
		return swap.Request{}, fmt.Errorf("beta_ledger: %w", err)
	}
	alphaAsset, err := assetFromHeader(r.Headers.AlphaAsset)
	if err != nil {
		return swap.Request{}, fmt.Errorf("alpha_asset: %w", err)
	}
	betaAsset, err := assetFromHeader(r.Headers.BetaAsset)
	if err != nil {
		return swap.Request{}, fmt.Errorf("beta_asset: %w", err)
	}
	if !alphaAsset.CompatibleWith(alphaLedger) {
		return swap.Request{}, fmt.Errorf("alpha_asset is not compatible with alpha_ledger")
	}
	if !betaAsset.CompatibleWith(betaLedger) {
		return swap.Request{}, fmt.Errorf("beta_asset is not compatible with beta_ledger")
	}

	return swap.Request{
		SwapId:              r.Headers.Id,
		AlphaLedger:         alphaLedger,
		BetaLedger:          betaLedger,
		AlphaAsset:          alphaAsset,
		BetaAsset:           betaAsset,
		AlphaRefundIdentity: r.AlphaRefundIdentity,
		BetaRedeemIdentity:  r.BetaRedeemIdentity,
		AlphaExpiry:         r.AlphaExpiry,
		BetaExpiry:          r.BetaExpiry,
		SecretHash:          r.SecretHash,
	}, nil
}

// NewSwapRequest builds the wire SwapRequest for an outbound proposal,
// the inverse of ToSwapRequest.
func NewSwapRequest(req swap.Request) SwapRequest {
	return SwapRequest{
		Headers: SwapHeaders{
			Id:          req.SwapId,
			AlphaLedger: ledgerToHeader(req.AlphaLedger),
			BetaLedger:  ledgerToHeader(req.BetaLedger),
			AlphaAsset:  assetToHeader(req.AlphaAsset),
			BetaAsset:   assetToHeader(req.BetaAsset),
			Protocol: ProtocolHeader{
				Value: "comit-rfc-003",
				Parameters: struct {
					HashFunction string `json:"hash_function"`
				}{HashFunction: "SHA-256"},
			},
		},
		SwapRequestBody: SwapRequestBody{
			AlphaRefundIdentity: req.AlphaRefundIdentity,
			BetaRedeemIdentity:  req.BetaRedeemIdentity,
			AlphaExpiry:         req.AlphaExpiry,
			BetaExpiry:          req.BetaExpiry,
			SecretHash:          req.SecretHash,
		},
	}
}

func ledgerToHeader(l swap.LedgerKind) LedgerHeader {
	h := LedgerHeader{}
	switch l.Kind {
	case swap.LedgerBitcoin:
		h.Value = "bitcoin"
		h.Parameters.Network = l.BitcoinNetwork.String()
	case swap.LedgerEthereum:
		h.Value = "ethereum"
		h.Parameters.Network = l.String()
	}
	return h
}

func assetToHeader(a swap.AssetKind) AssetHeader {
	h := AssetHeader{}
	switch a.Kind {
	case swap.AssetBitcoin:
		h.Value = "bitcoin"
		h.Parameters.Quantity = fmt.Sprintf("%d", a.Satoshis)
	case swap.AssetEther:
		h.Value = "ether"
		if a.Wei != nil {
			h.Parameters.Quantity = a.Wei.String()
		}
	case swap.AssetErc20:
		h.Value = "erc20"
		if a.Quantity != nil {
			h.Parameters.Quantity = a.Quantity.String()
		}
		contract := identityToHex(a.TokenContract)
		h.Parameters.TokenContract = &contract
	}
	return h
}

func ledgerFromHeader(h LedgerHeader) (swap.LedgerKind, error) {
	switch h.Value {
	case "bitcoin":
		network, err := bitcoinNetworkFromString(h.Parameters.Network)
		if err != nil {
			return swap.LedgerKind{}, err
		}
		return swap.LedgerKind{Kind: swap.LedgerBitcoin, BitcoinNetwork: network}, nil
	case "ethereum":
		return swap.LedgerKind{Kind: swap.LedgerEthereum}, nil
	default:
		return swap.LedgerKind{}, fmt.Errorf("unknown ledger %q", h.Value)
	}
}

func bitcoinNetworkFromString(s string) (swap.BitcoinNetwork, error) {
	switch s {
	case "mainnet", "main":
		return swap.BitcoinMainnet, nil
	case "testnet", "test":
		return swap.BitcoinTestnet, nil
	case "regtest":
		return swap.BitcoinRegtest, nil
	default:
		return 0, fmt.Errorf("unknown bitcoin network %q", s)
	}
}

func assetFromHeader(h AssetHeader) (swap.AssetKind, error) {
	switch h.Value {
	case "bitcoin":
		satoshis, err := parseUint(h.Parameters.Quantity)
		if err != nil {
			return swap.AssetKind{}, err
		}
		return swap.AssetKind{Kind: swap.AssetBitcoin, Satoshis: satoshis}, nil
	case "ether":
		wei, err := parseBig(h.Parameters.Quantity)
		if err != nil {
			return swap.AssetKind{}, err
		}
		return swap.AssetKind{Kind: swap.AssetEther, Wei: wei}, nil
	case "erc20":
		if h.Parameters.TokenContract == nil {
			return swap.AssetKind{}, fmt.Errorf("erc20 asset missing token_contract")
		}
		quantity, err := parseBig(h.Parameters.Quantity)
		if err != nil {
			return swap.AssetKind{}, err
		}
		contract, err := identityFromHex(*h.Parameters.TokenContract)
		if err != nil {
			return swap.AssetKind{}, err
		}
		return swap.AssetKind{Kind: swap.AssetErc20, TokenContract: contract, Quantity: quantity}, nil
	default:
		return swap.AssetKind{}, fmt.Errorf("unknown asset %q", h.Value)
	}
}
