// Package oracle reads the ETH/USD spot price from a Chainlink
// AggregatorV3 feed.
package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/kokio-labs/esimpay/logger"
	"github.com/kokio-labs/esimpay/types"
)

// DefaultETHUSDFeed is the Chainlink ETH/USD aggregator on Base Sepolia.
const DefaultETHUSDFeed = "0x4aDC67696bA383F43DD60A9e78F2C97Fbbfc7cb1"

// feedDecimals is the fixed-point scale of the aggregator's answer.
const feedDecimals int32 = 8

const aggregatorV3ABI = `
[
  {
    "name": "latestRoundData",
    "type": "function",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [
      { "name": "roundId", "type": "uint80" },
      { "name": "answer", "type": "int256" },
      { "name": "startedAt", "type": "uint256" },
      { "name": "updatedAt", "type": "uint256" },
      { "name": "answeredInRound", "type": "uint80" }
    ]
  }
]
`

// ContractReader is the read-only contract-call surface the feed needs.
// *clients.EVMClient satisfies it.
type ContractReader interface {
	ReadContract(ctx context.Context, addr common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error)
}

// PriceFeed queries the latest native-asset/USD spot price. Every call
// re-queries the feed; purchase amounts are compared in real time, so
// freshness wins over efficiency.
type PriceFeed struct {
	reader  ContractReader
	feed    common.Address
	feedABI abi.ABI
	log     logger.Logger
}

func NewPriceFeed(reader ContractReader, feedAddress string, log logger.Logger) (*PriceFeed, error) {
	if !common.IsHexAddress(feedAddress) {
		return nil, &types.EsimPayError{
			Code:    types.ErrInvalidAddress,
			Message: fmt.Sprintf("price feed address %q is malformed", feedAddress),
			Data:    feedAddress,
		}
	}

	parsed, err := abi.JSON(strings.NewReader(aggregatorV3ABI))
	if err != nil {
		return nil, fmt.Errorf("parse aggregator abi: %w", err)
	}

	if log == nil {
		log = logger.NoopLogger{}
	}

	return &PriceFeed{
		reader:  reader,
		feed:    common.HexToAddress(feedAddress),
		feedABI: parsed,
		log:     log,
	}, nil
}

// LatestPriceUSD returns the current spot price as a decimal USD value,
// rescaled from the feed's fixed-point representation.
func (f *PriceFeed) LatestPriceUSD(ctx context.Context) (decimal.Decimal, error) {
	out, err := f.reader.ReadContract(ctx, f.feed, f.feedABI, "latestRoundData")
	if err != nil {
		return decimal.Zero, &types.EsimPayError{
			Code:    types.ErrOracleUnavailable,
			Message: fmt.Sprintf("price feed read failed: %v", err),
			Data:    f.feed.Hex(),
		}
	}

	// latestRoundData returns (roundId, answer, startedAt, updatedAt,
	// answeredInRound); only answer is consumed.
	if len(out) < 2 {
		return decimal.Zero, f.unavailable("feed returned no data")
	}
	answer, ok := out[1].(*big.Int)
	if !ok || answer == nil || answer.Sign() <= 0 {
		return decimal.Zero, f.unavailable("feed returned a non-positive answer")
	}

	price := decimal.NewFromBigInt(answer, -feedDecimals)
	f.log.Debug("oracle price read", map[string]any{
		"feed":     f.feed.Hex(),
		"priceUsd": price.String(),
	})
	return price, nil
}

func (f *PriceFeed) unavailable(msg string) error {
	return &types.EsimPayError{
		Code:    types.ErrOracleUnavailable,
		Message: msg,
		Data:    f.feed.Hex(),
	}
}
