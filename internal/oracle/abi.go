/*

Hand-rolled ABI encoding for the handful of view calls the vault makes.
All arguments are static 32-byte words, so full ABI machinery is not
needed: calldata is selector + left-padded words, results are fixed-width
word sequences.

*/

package oracle

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Pre-computed function selectors (first 4 bytes of keccak256 of signature).
var (
	// Morpho Blue style interest-rate model
	SelectorBorrowRateView = mustDecodeHex("8c00bf6b") // borrowRateView((address,address,address,address,uint256),(uint128,uint128,uint128,uint128,uint128,uint128))

	// Morpho Blue core
	SelectorIDToMarketParams = mustDecodeHex("2c3c9157") // idToMarketParams(bytes32)
	SelectorMarket           = mustDecodeHex("5c60e39a") // market(bytes32)

	// Aave V3 data provider and price oracle
	SelectorGetReserveData            = mustDecodeHex("35ea6a75") // getReserveData(address)
	SelectorGetReserveTokensAddresses = mustDecodeHex("d2493b6c") // getReserveTokensAddresses(address)
	SelectorGetAssetPrice             = mustDecodeHex("b3596f07") // getAssetPrice(address)

	// ERC20 / ERC4626
	SelectorBalanceOf   = mustDecodeHex("70a08231") // balanceOf(address)
	SelectorTotalAssets = mustDecodeHex("01e1d114") // totalAssets()
	SelectorMaxWithdraw = mustDecodeHex("ce96cb77") // maxWithdraw(address)
)

var ErrShortReturnData = errors.New("contract return data shorter than expected")

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("invalid hex: %s", s))
	}
	return b
}

// encodeAddress pads a 20-byte address to a 32-byte word.
func encodeAddress(addr string) []byte {
	addr = strings.TrimPrefix(addr, "0x")
	b, _ := hex.DecodeString(addr)
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

// encodeUint256 encodes a big.Int as a 32-byte left-padded word.
func encodeUint256(n *big.Int) []byte {
	padded := make([]byte, 32)
	b := n.Bytes()
	copy(padded[32-len(b):], b)
	return padded
}

// encodeBytes32 pads a hex-encoded identifier to a full word.
func encodeBytes32(id string) []byte {
	id = strings.TrimPrefix(id, "0x")
	b, _ := hex.DecodeString(id)
	padded := make([]byte, 32)
	copy(padded, b)
	return padded
}

// DecodeUint256 decodes one 32-byte big-endian word.
func DecodeUint256(data []byte) *big.Int {
	return new(big.Int).SetBytes(data)
}

// Word extracts the i-th 32-byte word of the return data.
func Word(data []byte, i int) ([]byte, error) {
	if len(data) < (i+1)*32 {
		return nil, ErrShortReturnData
	}
	return data[i*32 : (i+1)*32], nil
}

// EncodeBorrowRateView builds calldata for
// irm.borrowRateView(marketParams, market). Both tuples are static, so
// they are encoded inline as consecutive words.
func EncodeBorrowRateView(loanToken, collateralToken, marketOracle, irm string, lltv *big.Int, marketWords [6]*big.Int) []byte {
	data := make([]byte, 0, 4+11*32)
	data = append(data, SelectorBorrowRateView...)
	data = append(data, encodeAddress(loanToken)...)
	data = append(data, encodeAddress(collateralToken)...)
	data = append(data, encodeAddress(marketOracle)...)
	data = append(data, encodeAddress(irm)...)
	data = append(data, encodeUint256(lltv)...)
	for _, w := range marketWords {
		data = append(data, encodeUint256(w)...)
	}
	return data
}

// EncodeIDToMarketParams builds calldata for morpho.idToMarketParams(id).
func EncodeIDToMarketParams(marketID string) []byte {
	data := make([]byte, 0, 4+32)
	data = append(data, SelectorIDToMarketParams...)
	data = append(data, encodeBytes32(marketID)...)
	return data
}

// EncodeMarket builds calldata for morpho.market(id).
func EncodeMarket(marketID string) []byte {
	data := make([]byte, 0, 4+32)
	data = append(data, SelectorMarket...)
	data = append(data, encodeBytes32(marketID)...)
	return data
}

// EncodeGetReserveData builds calldata for pool.getReserveData(asset).
func EncodeGetReserveData(asset string) []byte {
	data := make([]byte, 0, 4+32)
	data = append(data, SelectorGetReserveData...)
	data = append(data, encodeAddress(asset)...)
	return data
}

// EncodeGetReserveTokensAddresses builds calldata for
// dataProvider.getReserveTokensAddresses(asset).
func EncodeGetReserveTokensAddresses(asset string) []byte {
	data := make([]byte, 0, 4+32)
	data = append(data, SelectorGetReserveTokensAddresses...)
	data = append(data, encodeAddress(asset)...)
	return data
}

// EncodeGetAssetPrice builds calldata for priceOracle.getAssetPrice(asset).
func EncodeGetAssetPrice(asset string) []byte {
	data := make([]byte, 0, 4+32)
	data = append(data, SelectorGetAssetPrice...)
	data = append(data, encodeAddress(asset)...)
	return data
}

// EncodeBalanceOf builds calldata for token.balanceOf(account).
func EncodeBalanceOf(account string) []byte {
	data := make([]byte, 0, 4+32)
	data = append(data, SelectorBalanceOf...)
	data = append(data, encodeAddress(account)...)
	return data
}

// EncodeTotalAssets builds calldata for vault.totalAssets().
func EncodeTotalAssets() []byte {
	return append([]byte{}, SelectorTotalAssets...)
}

// EncodeMaxWithdraw builds calldata for vault.maxWithdraw(owner).
func EncodeMaxWithdraw(owner string) []byte {
	data := make([]byte, 0, 4+32)
	data = append(data, SelectorMaxWithdraw...)
	data = append(data, encodeAddress(owner)...)
	return data
}

// DecodeAddressWord renders the low 20 bytes of a word as a 0x address.
func DecodeAddressWord(w []byte) string {
	return "0x" + hex.EncodeToString(w[12:])
}
