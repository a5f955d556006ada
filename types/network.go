package types

// Network identifies a supported EVM chain.
type Network string

const (
	NetworkMainnet  Network = "mainnet"
	NetworkArbitrum Network = "arbitrum"
	NetworkBase     Network = "base"
	NetworkOptimism Network = "optimism"

	// NetworkBaseSepolia hosts the eSIM contract suite during rollout.
	NetworkBaseSepolia Network = "base-sepolia"
)

// AllNetworks lists every network the library knows about.
var AllNetworks = []Network{
	NetworkMainnet,
	NetworkArbitrum,
	NetworkBase,
	NetworkOptimism,
	NetworkBaseSepolia,
}

var chainIDs = map[Network]int64{
	NetworkMainnet:     1,
	NetworkArbitrum:    42161,
	NetworkBase:        8453,
	NetworkOptimism:    10,
	NetworkBaseSepolia: 84532,
}

// IsSupported reports whether n is one of the enumerated networks.
func (n Network) IsSupported() bool {
	_, ok := chainIDs[n]
	return ok
}

func (n Network) IsTestnet() bool {
	return n == NetworkBaseSepolia
}

// ChainID returns the EIP-155 chain id, or 0 for an unknown network.
func (n Network) ChainID() int64 {
	return chainIDs[n]
}

// NativeSymbol returns the chain's base-currency symbol. All supported
// networks settle in ETH.
func (n Network) NativeSymbol() string {
	return "ETH"
}

func (n Network) String() string {
	return string(n)
}
