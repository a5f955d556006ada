package oracle

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kokio-labs/esimpay/clients"
	"github.com/kokio-labs/esimpay/types"
)

func newTestFeed(t *testing.T) (*PriceFeed, *clients.FakeBackend) {
	t.Helper()
	backend := clients.NewFakeBackend(types.NetworkBaseSepolia, common.Address{})
	feed, err := NewPriceFeed(backend, DefaultETHUSDFeed, nil)
	require.NoError(t, err)
	return feed, backend
}

func TestPriceFeed_LatestPriceUSD(t *testing.T) {
	feed, backend := newTestFeed(t)

	// 3000 USD at the feed's 8-decimal fixed point
	backend.StubRead("latestRoundData",
		big.NewInt(1), big.NewInt(300_000_000_000), big.NewInt(0), big.NewInt(0), big.NewInt(1))

	price, err := feed.LatestPriceUSD(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(3000)), "got %s", price)
}

func TestPriceFeed_FractionalPrice(t *testing.T) {
	feed, backend := newTestFeed(t)

	backend.StubRead("latestRoundData",
		big.NewInt(1), big.NewInt(284_753_120_000), big.NewInt(0), big.NewInt(0), big.NewInt(1))

	price, err := feed.LatestPriceUSD(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2847.5312", price.String())
}

func TestPriceFeed_ReadFailure(t *testing.T) {
	feed, _ := newTestFeed(t)

	// nothing stubbed, the read errors
	_, err := feed.LatestPriceUSD(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrOracleUnavailable, types.ErrorCode(err))
}

func TestPriceFeed_NonPositiveAnswer(t *testing.T) {
	feed, backend := newTestFeed(t)

	backend.StubRead("latestRoundData",
		big.NewInt(1), big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(1))

	_, err := feed.LatestPriceUSD(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrOracleUnavailable, types.ErrorCode(err))
}

func TestNewPriceFeed_RejectsMalformedAddress(t *testing.T) {
	backend := clients.NewFakeBackend(types.NetworkBaseSepolia, common.Address{})

	_, err := NewPriceFeed(backend, "not-an-address", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidAddress, types.ErrorCode(err))
}
