package lnwire

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/atomicswap/cnd/swap"
)

// parseUint parses a decimal-string quantity header value into a uint64,
// as used for a bitcoin asset's satoshi amount.
func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

// parseBig parses a decimal-string quantity header value into a *big.Int,
// as used for ether/erc20 asset amounts, which may exceed uint64 range.
func parseBig(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal quantity %q", s)
	}
	return n, nil
}

// identityFromHex decodes a 0x-prefixed or bare hex string into a
// swap.Identity (20 bytes): a Bitcoin P2WPKH hash or Ethereum address.
func identityFromHex(s string) (swap.Identity, error) {
	var id swap.Identity
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("identity must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// identityToHex renders a swap.Identity as a 0x-prefixed hex string, the
// inverse of identityFromHex.
func identityToHex(id swap.Identity) string {
	return "0x" + hex.EncodeToString(id[:])
}
