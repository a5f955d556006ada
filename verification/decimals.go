package verification

import (
	"math/big"

	"github.com/kokio-labs/esimpay/types"
)

// DecimalStrategy resolves the smallest-unit scale of a decoded transfer
// value. It is pluggable so the length heuristic below can be swapped for a
// strict per-token registry without touching verification logic.
type DecimalStrategy interface {
	Resolve(asset types.AssetDescriptor, raw *big.Int) int32
}

// CanonicalStrategy always uses the registry's canonical precision.
type CanonicalStrategy struct{}

func (CanonicalStrategy) Resolve(asset types.AssetDescriptor, _ *big.Int) int32 {
	return asset.Decimals
}

// LengthHeuristicStrategy uses the canonical precision unless the raw
// integer's decimal-digit length is at or above 18, in which case it forces
// an 18-decimal interpretation. Swap-routed transfers land with 18-decimal
// magnitudes even for nominally 6-decimal tokens; users should be advised
// to swap in a separate transaction before paying.
type LengthHeuristicStrategy struct{}

func (LengthHeuristicStrategy) Resolve(asset types.AssetDescriptor, raw *big.Int) int32 {
	if len(raw.String()) >= int(types.NativeDecimals) {
		return types.NativeDecimals
	}
	return asset.Decimals
}
