// Package pricing converts between USD amounts and native-asset quantities
// using the live oracle price. Conversions are pure given a spot price; all
// arithmetic stays in decimal form until the final smallest-unit integer,
// since the result becomes a transacted monetary value.
package pricing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/kokio-labs/esimpay/logger"
	"github.com/kokio-labs/esimpay/types"
)

// conversionPrecision is the number of fractional digits kept when dividing
// by the spot price. It leaves headroom above the 18-decimal smallest-unit
// scale so truncation to wei loses nothing meaningful.
const conversionPrecision = 30

// PriceSource supplies the native-asset/USD spot price.
// *oracle.PriceFeed satisfies it.
type PriceSource interface {
	LatestPriceUSD(ctx context.Context) (decimal.Decimal, error)
}

// Converter performs USD/native conversions. It holds no state beyond its
// price source.
type Converter struct {
	source PriceSource
	log    logger.Logger
}

func NewConverter(source PriceSource, log logger.Logger) *Converter {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Converter{source: source, log: log}
}

// UsdToNative converts a USD amount into native-asset units at the current
// spot price.
func (c *Converter) UsdToNative(ctx context.Context, usd decimal.Decimal) (decimal.Decimal, error) {
	if usd.IsNegative() {
		return decimal.Zero, fmt.Errorf("usd amount %s is negative", usd)
	}

	price, err := c.source.LatestPriceUSD(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	native := usd.DivRound(price, conversionPrecision)
	c.log.Debug("usd to native", map[string]any{
		"usd":      usd.String(),
		"priceUsd": price.String(),
		"native":   native.String(),
	})
	return native, nil
}

// NativeToUsd converts a native-asset quantity into USD at the current spot
// price.
func (c *Converter) NativeToUsd(ctx context.Context, native decimal.Decimal) (decimal.Decimal, error) {
	if native.IsNegative() {
		return decimal.Zero, fmt.Errorf("native amount %s is negative", native)
	}

	price, err := c.source.LatestPriceUSD(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	usd := native.Mul(price)
	c.log.Debug("native to usd", map[string]any{
		"native":   native.String(),
		"priceUsd": price.String(),
		"usd":      usd.String(),
	})
	return usd, nil
}

// UsdToWei converts a USD amount into the native asset's smallest-unit
// integer representation, truncated toward zero.
func (c *Converter) UsdToWei(ctx context.Context, usd decimal.Decimal) (*big.Int, error) {
	native, err := c.UsdToNative(ctx, usd)
	if err != nil {
		return nil, err
	}
	return native.Shift(types.NativeDecimals).Truncate(0).BigInt(), nil
}
