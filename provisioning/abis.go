package provisioning

// Minimal ABI surfaces of the eSIM contract suite. The contracts themselves
// are external; only the entry points and events the workflow touches are
// declared here.

const deviceWalletFactoryABI = `
[
  {
    "name": "deviceWalletInfoAdded",
    "type": "function",
    "stateMutability": "view",
    "inputs": [ { "name": "deviceWallet", "type": "address" } ],
    "outputs": [ { "name": "", "type": "bool" } ]
  },
  {
    "name": "eSIMWalletAdmin",
    "type": "function",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [ { "name": "", "type": "address" } ]
  },
  {
    "name": "postCreateAccount",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "deviceWallet", "type": "address" },
      { "name": "deviceUniqueIdentifier", "type": "string" },
      { "name": "deviceWalletOwnerKey", "type": "uint256[2]" }
    ],
    "outputs": []
  }
]
`

const deviceWalletABI = `
[
  {
    "name": "deviceUniqueIdentifier",
    "type": "function",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [ { "name": "", "type": "string" } ]
  },
  {
    "name": "owner",
    "type": "function",
    "stateMutability": "view",
    "inputs": [ { "name": "", "type": "uint256" } ],
    "outputs": [ { "name": "", "type": "uint256" } ]
  },
  {
    "name": "isValidESIMWallet",
    "type": "function",
    "stateMutability": "view",
    "inputs": [ { "name": "eSIMWallet", "type": "address" } ],
    "outputs": [ { "name": "", "type": "bool" } ]
  },
  {
    "name": "deployESIMWallet",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "hasAccessToETH", "type": "bool" },
      { "name": "salt", "type": "uint256" }
    ],
    "outputs": [ { "name": "", "type": "address" } ]
  },
  {
    "name": "setESIMUniqueIdentifierForAnESIMWallet",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "eSIMWallet", "type": "address" },
      { "name": "eSIMUniqueIdentifier", "type": "string" }
    ],
    "outputs": []
  },
  {
    "type": "event",
    "name": "ESIMWalletAdded",
    "inputs": [
      { "name": "_eSIMWalletAddress", "type": "address", "indexed": true },
      { "name": "_hasAccessToETH", "type": "bool", "indexed": false },
      { "name": "_caller", "type": "address", "indexed": true }
    ]
  }
]
`

const esimWalletABI = `
[
  {
    "name": "buyDataBundle",
    "type": "function",
    "stateMutability": "payable",
    "inputs": [
      {
        "name": "dataBundleDetail",
        "type": "tuple",
        "components": [
          { "name": "dataBundleID", "type": "string" },
          { "name": "dataBundlePrice", "type": "uint256" }
        ]
      }
    ],
    "outputs": [ { "name": "", "type": "bool" } ]
  }
]
`
