// Package gateway implements the TimeShift contract boundary over Ethereum JSON-RPC.
package gateway

import (
	"context"
	"errors"
	"math/big"
	"time"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/evm"
)

// Sentinel errors.
var (
	// ErrReverted is returned when a contract call reverts (e.g. nonexistent token).
	ErrReverted = errors.New("contract call reverted")

	// ErrRejected is returned when the signer refuses a transaction.
	ErrRejected = errors.New("transaction rejected by signer")
)

// Gateway is the contract-call boundary used by the resolver, refresher and minter.
// Implementations must be safe for concurrent use.
type Gateway interface {
	// Count returns the total number of minted tokens (tokenCounter).
	Count(ctx context.Context) (uint64, error)

	// OwnerOf returns the owner address of a token.
	// Returns ErrReverted if the token does not exist.
	OwnerOf(ctx context.Context, id domain.TokenID) (string, error)

	// TokenURI returns the metadata data URI of a token.
	// Returns ErrReverted if the token does not exist.
	TokenURI(ctx context.Context, id domain.TokenID) (string, error)

	// Mint submits a mint transaction from the signer and returns its hash.
	// Returns ErrRejected if the signer refuses.
	Mint(ctx context.Context) (string, error)

	// WaitMined polls for the receipt of hash until it is mined or ctx is done.
	WaitMined(ctx context.Context, hash string, pollInterval time.Duration) (*evm.Receipt, error)

	// Balance returns the signer balance in wei.
	Balance(ctx context.Context) (*big.Int, error)

	// Signer returns the address transactions are sent from.
	Signer() string
}
