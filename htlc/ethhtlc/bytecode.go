// Package ethhtlc materializes the Ethereum side of a cross-chain swap: a
// hex-encoded EVM bytecode template with placeholders substituted in (spec
// §4.2), CREATE-address derivation for predicting the deployed contract's
// address before broadcast, and ABI encoding for the ERC-20 funding and
// internal-transfer calls. Grounded on go-ethereum usage in
// orbas1-Synnergy/synnergy-network/core (common_structs.go,
// transactions.go), which is the only repo in the example pack that pulls
// in go-ethereum's crypto/abi/rlp packages.
package ethhtlc

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Placeholder lengths, per spec §4.2's table.
const (
	secretHashLen     = 32
	expiryLen         = 4
	addressLen        = 20
	erc20AmountLen    = 32
)

// placeholder returns a byte pattern of length n repeating marker, used as
// a PUSH immediate in the runtime templates below until substitute()
// patches in the real value. Each field gets its own marker byte (rather
// than a single shared one) so that bytes.Index can never mistake one
// not-yet-substituted placeholder for another same-length one irrespective
// of which order substitute's caller processes them in.
func placeholder(n int, marker byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = marker
	}
	return p
}

var (
	secretHashPlaceholder    = placeholder(secretHashLen, 0xe1)
	expiryPlaceholder        = placeholder(expiryLen, 0xe2)
	redeemAddrPlaceholder    = placeholder(addressLen, 0xe3)
	refundAddrPlaceholder    = placeholder(addressLen, 0xe4)
	tokenContractPlaceholder = placeholder(addressLen, 0xe5)
	amountPlaceholder        = placeholder(erc20AmountLen, 0xe6)
)

// EtherTemplate is the runtime bytecode template for a native-ether HTLC:
// calldata of exactly 32 bytes is checked against secretHash via the
// SHA-256 precompile (address 0x02, matching the OP_SHA256 convention the
// Bitcoin side of the swap uses) and, on a match, self-destructs the
// contract's balance to redeemAddress; empty calldata after
// block.timestamp >= expiry self-destructs to refundAddress instead. Any
// other calldata length reverts without touching balance or logs (see
// buildEtherRuntime).
var EtherTemplate = []byte(hex.EncodeToString(buildEtherRuntime()))

// Erc20Template is the ERC-20 counterpart of EtherTemplate: the same
// calldata-length/hash/timestamp gating, but the payout is a
// transfer(address,uint256) call against the cached token contract rather
// than a self-destruct (see buildErc20Runtime).
var Erc20Template = []byte(hex.EncodeToString(buildErc20Runtime()))

// buildEtherRuntime hand-assembles the native-ether HTLC runtime body
// described on EtherTemplate.
func buildEtherRuntime() []byte {
	a := newAsm()
	redeem := a.newLabel()
	refund := a.newLabel()
	revert := a.newLabel()

	a.byte(opCallDataSize)
	a.byte(opDup1)
	a.pushUint(32)
	a.byte(opEq)
	a.pushLabel(redeem)
	a.byte(opJumpI)
	a.byte(opIsZero)
	a.pushLabel(refund)
	a.byte(opJumpI)
	a.pushUint(0)
	a.pushUint(0)
	a.byte(opRevert)

	a.mark(redeem)
	a.byte(opJumpDest)
	a.byte(opPop) // drop the duplicate CALLDATASIZE left by the branch above
	a.pushUint(32)
	a.pushUint(0)
	a.pushUint(0)
	a.byte(opCallDataCopy) // mem[0:32) = calldata, the claimed secret
	a.pushUint(32)         // retLength
	a.pushUint(32)         // retOffset -> mem[32:64)
	a.pushUint(32)         // argsLength
	a.pushUint(0)          // argsOffset
	a.pushUint(2)          // SHA-256 precompile address
	a.byte(opGas)
	a.byte(opStaticCall)
	a.byte(opPop) // a correctly-gassed precompile call cannot fail
	a.push(secretHashPlaceholder)
	a.pushUint(32)
	a.byte(opMload)
	a.byte(opEq)
	a.byte(opIsZero)
	a.pushLabel(revert)
	a.byte(opJumpI)
	a.push(RedeemedTopic.Bytes())
	a.pushUint(0)
	a.pushUint(0)
	a.byte(opLog1)
	a.push(redeemAddrPlaceholder)
	a.byte(opSelfDestruct)

	a.mark(refund)
	a.byte(opJumpDest)
	a.push(expiryPlaceholder)
	a.byte(opTimestamp)
	a.byte(opLt) // pushes timestamp < expiry
	a.pushLabel(revert)
	a.byte(opJumpI) // refund before expiry is a no-op
	a.push(RefundedTopic.Bytes())
	a.pushUint(0)
	a.pushUint(0)
	a.byte(opLog1)
	a.push(refundAddrPlaceholder)
	a.byte(opSelfDestruct)

	a.mark(revert)
	a.byte(opJumpDest)
	a.pushUint(0)
	a.pushUint(0)
	a.byte(opRevert)

	return a.finish()
}

// buildErc20Runtime hand-assembles the ERC-20 HTLC runtime body described
// on Erc20Template. The token contract and transfer amount are cached in
// memory once up front since both the redeem and refund paths need them
// when building their transfer(address,uint256) calldata.
func buildErc20Runtime() []byte {
	a := newAsm()
	redeem := a.newLabel()
	refund := a.newLabel()
	revert := a.newLabel()

	a.push(tokenContractPlaceholder)
	a.pushUint(0)
	a.byte(opMstore) // mem[0:32) = token contract
	a.push(amountPlaceholder)
	a.pushUint(32)
	a.byte(opMstore) // mem[32:64) = transfer quantity

	a.byte(opCallDataSize)
	a.byte(opDup1)
	a.pushUint(32)
	a.byte(opEq)
	a.pushLabel(redeem)
	a.byte(opJumpI)
	a.byte(opIsZero)
	a.pushLabel(refund)
	a.byte(opJumpI)
	a.pushUint(0)
	a.pushUint(0)
	a.byte(opRevert)

	a.mark(redeem)
	a.byte(opJumpDest)
	a.byte(opPop)
	a.pushUint(32)
	a.pushUint(0)
	a.pushUint(0)
	a.byte(opCallDataCopy)
	a.pushUint(32)
	a.pushUint(32)
	a.pushUint(32)
	a.pushUint(0)
	a.pushUint(2)
	a.byte(opGas)
	a.byte(opStaticCall)
	a.byte(opPop)
	a.push(secretHashPlaceholder)
	a.pushUint(32)
	a.byte(opMload)
	a.byte(opEq)
	a.byte(opIsZero)
	a.pushLabel(revert)
	a.byte(opJumpI)
	a.emitErc20Transfer(redeemAddrPlaceholder, revert)
	a.push(RedeemedTopic.Bytes())
	a.pushUint(0)
	a.pushUint(0)
	a.byte(opLog1)
	a.byte(opStop)

	a.mark(refund)
	a.byte(opJumpDest)
	a.push(expiryPlaceholder)
	a.byte(opTimestamp)
	a.byte(opLt)
	a.pushLabel(revert)
	a.byte(opJumpI)
	a.emitErc20Transfer(refundAddrPlaceholder, revert)
	a.push(RefundedTopic.Bytes())
	a.pushUint(0)
	a.pushUint(0)
	a.byte(opLog1)
	a.byte(opStop)

	a.mark(revert)
	a.byte(opJumpDest)
	a.pushUint(0)
	a.pushUint(0)
	a.byte(opRevert)

	return a.finish()
}

// emitErc20Transfer builds transfer(beneficiary, cachedAmount) calldata in
// scratch memory and calls the cached token contract with it, jumping to
// revert on failure. Entered and left with an empty stack.
func (a *asm) emitErc20Transfer(beneficiary []byte, revert asmLabel) {
	a.push(erc20TransferABI.Methods["transfer"].ID)
	a.pushUint(64)
	a.byte(opMstore) // mem[64:96), selector right-aligned at [92:96)
	a.push(beneficiary)
	a.pushUint(96)
	a.byte(opMstore) // mem[96:128) = beneficiary
	a.pushUint(32)
	a.byte(opMload) // cached amount
	a.pushUint(128)
	a.byte(opMstore) // mem[128:160) = amount
	a.pushUint(32)   // retLength
	a.pushUint(160)  // retOffset
	a.pushUint(68)   // argsLength: selector(4) + to(32) + amount(32)
	a.pushUint(92)   // argsOffset: into the selector word's last 4 bytes
	a.pushUint(0)    // value
	a.pushUint(0)
	a.byte(opMload) // cached token contract address
	a.byte(opGas)
	a.byte(opCall)
	a.byte(opIsZero)
	a.pushLabel(revert)
	a.byte(opJumpI)
}

// Params describes one Ethereum HTLC instance.
type Params struct {
	SecretHash     [32]byte
	Expiry         uint32
	RedeemAddress  common.Address
	RefundAddress  common.Address
	TokenContract  *common.Address // nil for ether
	Quantity       *big.Int        // nil for ether
}

// substitute replaces each placeholder in template with its paired value
// and returns the resulting bytecode, erroring if any placeholder is not
// found exactly once (an unfound placeholder would otherwise leave its
// marker bytes in the emitted bytecode, violating the invariant that no
// placeholder may survive into deployed code).
func substitute(template []byte, pairs [][2][]byte) ([]byte, error) {
	out := append([]byte(nil), template...)
	for _, pair := range pairs {
		placeholder, value := pair[0], pair[1]
		idx := bytes.Index(out, placeholder)
		if idx == -1 {
			return nil, fmt.Errorf("placeholder %x not found in template", placeholder)
		}
		replaced := append([]byte(nil), out[:idx]...)
		replaced = append(replaced, value...)
		replaced = append(replaced, out[idx+len(placeholder):]...)
		out = replaced

		if bytes.Contains(out, placeholder) {
			return nil, fmt.Errorf("placeholder %x occurs more than once in template", placeholder)
		}
	}
	return out, nil
}

func expiryBytes(e uint32) []byte {
	b := make([]byte, expiryLen)
	b[0] = byte(e >> 24)
	b[1] = byte(e >> 16)
	b[2] = byte(e >> 8)
	b[3] = byte(e)
	return b
}

// Bytecode renders the deployable, placeholder-free runtime bytecode for
// the HTLC described by p, selecting the ether or ERC-20 template
// depending on whether p.TokenContract is set.
func Bytecode(p Params) ([]byte, error) {
	pairs := [][2][]byte{
		{secretHashPlaceholder, p.SecretHash[:]},
		{expiryPlaceholder, expiryBytes(p.Expiry)},
		{redeemAddrPlaceholder, p.RedeemAddress.Bytes()},
		{refundAddrPlaceholder, p.RefundAddress.Bytes()},
	}

	template := EtherTemplate
	if p.TokenContract != nil {
		template = Erc20Template
		if p.Quantity == nil {
			return nil, fmt.Errorf("erc20 htlc requires a non-nil quantity")
		}
		amt := make([]byte, erc20AmountLen)
		p.Quantity.FillBytes(amt)
		pairs = append(pairs,
			[2][]byte{tokenContractPlaceholder, p.TokenContract.Bytes()},
			[2][]byte{amountPlaceholder, amt},
		)
	}

	decoded, err := hex.DecodeString(string(template))
	if err != nil {
		return nil, err
	}

	return substitute(decoded, pairs)
}

// DeployHeader prepends a deploy header that copies the runtime code to
// memory and returns it, per spec §4.2. CODECOPY(0, offset, len); RETURN(0,
// len), with offset computed once the header's own length is fixed.
func DeployHeader(runtime []byte) []byte {
	codeLen := len(runtime)

	// PUSH2 <len> PUSH1 <offset> PUSH1 0x00 CODECOPY
	// PUSH2 <len> PUSH1 0x00 RETURN
	header := []byte{
		0x61, byte(codeLen >> 8), byte(codeLen),
		0x60, 0, // offset patched below
		0x60, 0x00,
		0x39,
		0x61, byte(codeLen >> 8), byte(codeLen),
		0x60, 0x00,
		0xf3,
	}
	header[4] = byte(len(header))

	return append(header, runtime...)
}

// DeployGasLimit estimates the gas required to deploy code of the given
// length, per spec §4.2: 100_000 + 200 * code_length.
func DeployGasLimit(codeLen int) uint64 {
	return 100_000 + 200*uint64(codeLen)
}

// RedeemRefundGasLimit is the fixed gas estimate for a redeem or refund
// call, per spec §4.2.
const RedeemRefundGasLimit uint64 = 100_000

// Erc20FundGasLimit is the fixed gas estimate for the ERC-20 fund transfer
// (separate from deploy), per spec §4.2.
const Erc20FundGasLimit uint64 = 100_000

// CreateAddress predicts the address a contract deployed by sender at
// nonce will receive, via the standard CREATE formula
// keccak256(rlp([sender, nonce]))[12:].
func CreateAddress(sender common.Address, nonce uint64) (common.Address, error) {
	data, err := rlp.EncodeToBytes([]interface{}{sender, nonce})
	if err != nil {
		return common.Address{}, err
	}
	hash := crypto.Keccak256(data)
	var addr common.Address
	copy(addr[:], hash[12:])
	return addr, nil
}

var erc20TransferABI = mustERC20ABI()

func mustERC20ABI() abi.ABI {
	const erc20ABIJSON = `[{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`
	parsed, err := abi.JSON(bytes.NewReader([]byte(erc20ABIJSON)))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EncodeTransfer ABI-encodes a call to transfer(address,uint256), used both
// to fund an ERC-20 HTLC (spec §4.2's "separate" fund tx) and, conceptually,
// by the HTLC's own internal redeem transfer.
func EncodeTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return erc20TransferABI.Pack("transfer", to, amount)
}

// RedeemedTopic is keccak256("Redeemed()"), the event topic emitted by a
// successful redeem.
var RedeemedTopic = crypto.Keccak256Hash([]byte("Redeemed()"))

// RefundedTopic is keccak256("Refunded()"), the event topic emitted by a
// successful refund.
var RefundedTopic = crypto.Keccak256Hash([]byte("Refunded()"))

// TransferEventTopic is keccak256("Transfer(address,address,uint256)"), the
// ERC-20 transfer event topic matched by the funding watcher.
var TransferEventTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
