package oracle

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddr = "0x00000000000000000000000000000000000000aa"

func TestEncodeBorrowRateView(t *testing.T) {
	lltv, _ := new(big.Int).SetString("860000000000000000", 10)
	var marketWords [6]*big.Int
	for i := range marketWords {
		marketWords[i] = big.NewInt(int64(i + 1))
	}

	data := EncodeBorrowRateView(testAddr, testAddr, testAddr, testAddr, lltv, marketWords)

	// Selector plus 5 MarketParams words plus 6 Market words.
	require.Len(t, data, 4+11*32)
	assert.Equal(t, SelectorBorrowRateView, data[:4])

	// Word 0 is the loan token address, left-padded.
	assert.Equal(t, testAddr, DecodeAddressWord(data[4:36]))

	// Word 4 is the lltv.
	assert.Equal(t, lltv, DecodeUint256(data[4+4*32:4+5*32]))

	// Words 5..10 are the market state in order.
	for i := 0; i < 6; i++ {
		w := data[4+(5+i)*32 : 4+(6+i)*32]
		assert.Equal(t, int64(i+1), DecodeUint256(w).Int64())
	}
}

func TestEncodeSingleArgumentCalls(t *testing.T) {
	cases := []struct {
		name     string
		data     []byte
		selector []byte
	}{
		{"getReserveData", EncodeGetReserveData(testAddr), SelectorGetReserveData},
		{"getReserveTokensAddresses", EncodeGetReserveTokensAddresses(testAddr), SelectorGetReserveTokensAddresses},
		{"getAssetPrice", EncodeGetAssetPrice(testAddr), SelectorGetAssetPrice},
		{"balanceOf", EncodeBalanceOf(testAddr), SelectorBalanceOf},
		{"maxWithdraw", EncodeMaxWithdraw(testAddr), SelectorMaxWithdraw},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Len(t, tc.data, 36)
			assert.Equal(t, tc.selector, tc.data[:4])
			assert.Equal(t, testAddr, DecodeAddressWord(tc.data[4:]))
		})
	}
}

func TestEncodeTotalAssets(t *testing.T) {
	data := EncodeTotalAssets()
	assert.Equal(t, SelectorTotalAssets, data)
}

func TestEncodeBytes32Calls(t *testing.T) {
	marketID := "0xab" + hex.EncodeToString(make([]byte, 31))

	data := EncodeIDToMarketParams(marketID)
	require.Len(t, data, 36)
	assert.Equal(t, SelectorIDToMarketParams, data[:4])
	assert.Equal(t, byte(0xab), data[4])

	data = EncodeMarket(marketID)
	require.Len(t, data, 36)
	assert.Equal(t, SelectorMarket, data[:4])
}

func TestWord(t *testing.T) {
	data := make([]byte, 64)
	data[31] = 7
	data[63] = 9

	w0, err := Word(data, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), DecodeUint256(w0).Int64())

	w1, err := Word(data, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(9), DecodeUint256(w1).Int64())

	_, err = Word(data, 2)
	require.ErrorIs(t, err, ErrShortReturnData)
}
