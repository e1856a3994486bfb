package evm

import (
	"context"
	"math/big"
)

// RPCClient defines the Ethereum JSON-RPC HTTP interface used by the gateway.
type RPCClient interface {
	// Call executes a read-only message call against the latest block.
	Call(ctx context.Context, msg CallMsg) ([]byte, error)

	// SendTransaction asks the provider to sign and submit a transaction.
	// Returns the transaction hash.
	SendTransaction(ctx context.Context, tx TxRequest) (string, error)

	// GetTransactionReceipt retrieves a receipt by transaction hash.
	// Returns nil, nil while the transaction is pending.
	GetTransactionReceipt(ctx context.Context, hash string) (*Receipt, error)

	// GetBalance retrieves the balance of an address in wei.
	GetBalance(ctx context.Context, address string) (*big.Int, error)

	// ChainID retrieves the chain id of the connected network.
	ChainID(ctx context.Context) (uint64, error)
}

// CallMsg is the eth_call message object.
type CallMsg struct {
	From string // optional
	To   string
	Data []byte
}

// TxRequest is the eth_sendTransaction object. Gas and nonce are left to the provider.
type TxRequest struct {
	From  string
	To    string
	Data  []byte
	Value *big.Int // optional
}

// Receipt represents a mined transaction receipt.
type Receipt struct {
	TransactionHash string
	BlockNumber     uint64
	Status          uint64 // 1 success, 0 reverted
	GasUsed         uint64
	Logs            []Log
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == 1
}

// Log is an event log entry.
type Log struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        string   `json:"logIndex"`
	Removed         bool     `json:"removed"`
}
