package provisioning

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SaltSource produces the uniqueness salt for a wallet deployment. The salt
// must never collide for two deployments against the same device wallet.
type SaltSource interface {
	Salt(deviceWallet common.Address, identifier string) (*big.Int, error)
}

// DefaultSaltPrefix versions the derivation so a future scheme change cannot
// collide with salts already consumed on-chain.
const DefaultSaltPrefix = "Kokio_Alpha_v1"

// KeccakSaltSource derives a salt from keccak256(prefix || deviceWallet ||
// identifier || timestamp), deterministic per call yet unique across calls.
type KeccakSaltSource struct {
	Prefix string
	now    func() time.Time
}

func NewKeccakSaltSource(prefix string) *KeccakSaltSource {
	if prefix == "" {
		prefix = DefaultSaltPrefix
	}
	return &KeccakSaltSource{Prefix: prefix, now: time.Now}
}

func (s *KeccakSaltSource) Salt(deviceWallet common.Address, identifier string) (*big.Int, error) {
	ts := big.NewInt(s.now().UnixNano())
	sum := crypto.Keccak256(
		[]byte(s.Prefix),
		deviceWallet.Bytes(),
		[]byte(identifier),
		common.LeftPadBytes(ts.Bytes(), 32),
	)
	return new(big.Int).SetBytes(sum), nil
}

// FixedSaltSource always returns the same salt. For callers that manage
// salt uniqueness themselves, and for tests.
type FixedSaltSource struct {
	Value *big.Int
}

func (s FixedSaltSource) Salt(common.Address, string) (*big.Int, error) {
	return s.Value, nil
}
