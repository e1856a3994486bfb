package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/evm"
)

// Contract function selectors.
var (
	selTokenCounter = evm.Selector("tokenCounter()")
	selOwnerOf      = evm.Selector("ownerOf(uint256)")
	selTokenURI     = evm.Selector("tokenURI(uint256)")
	selMint         = evm.Selector("mint()")
)

// DefaultCallTimeout bounds a single remote call.
const DefaultCallTimeout = 10 * time.Second

// Options configures a Contract gateway.
type Options struct {
	Client      evm.RPCClient
	Address     string        // contract address
	Signer      string        // account mint transactions are sent from
	CallTimeout time.Duration // per call, defaults to DefaultCallTimeout
	RateLimit   float64       // requests per second, 0 disables
	RateBurst   int
}

// Contract implements Gateway against a deployed TimeShift contract.
type Contract struct {
	client      evm.RPCClient
	address     string
	signer      string
	callTimeout time.Duration
	limiter     *limiter
}

// Compile-time interface check.
var _ Gateway = (*Contract)(nil)

// NewContract creates a gateway bound to one contract address.
func NewContract(opts Options) (*Contract, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("rpc client is required")
	}
	if !evm.IsHexAddress(opts.Address) {
		return nil, fmt.Errorf("invalid contract address %q", opts.Address)
	}
	if opts.Signer != "" && !evm.IsHexAddress(opts.Signer) {
		return nil, fmt.Errorf("invalid signer address %q", opts.Signer)
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	return &Contract{
		client:      opts.Client,
		address:     domain.NormalizeAddress(opts.Address),
		signer:      domain.NormalizeAddress(opts.Signer),
		callTimeout: timeout,
		limiter:     newLimiter(opts.RateLimit, opts.RateBurst),
	}, nil
}

// Address returns the contract address.
func (c *Contract) Address() string {
	return c.address
}

// Signer returns the configured signer address.
func (c *Contract) Signer() string {
	return c.signer
}

// call performs a rate-limited eth_call bounded by the per-call timeout.
func (c *Contract) call(ctx context.Context, data []byte) ([]byte, error) {
	if err := c.limiter.wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	out, err := c.client.Call(callCtx, evm.CallMsg{To: c.address, Data: data})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// Count returns tokenCounter().
func (c *Contract) Count(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, evm.EncodeCall(selTokenCounter))
	if err != nil {
		return 0, fmt.Errorf("tokenCounter: %w", err)
	}
	n, err := evm.DecodeUint256(out)
	if err != nil {
		return 0, fmt.Errorf("tokenCounter: %w", err)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("tokenCounter: value %s overflows uint64", n)
	}
	return n.Uint64(), nil
}

// OwnerOf returns ownerOf(id) lower-cased.
func (c *Contract) OwnerOf(ctx context.Context, id domain.TokenID) (string, error) {
	out, err := c.call(ctx, evm.EncodeCall(selOwnerOf, new(big.Int).SetUint64(uint64(id))))
	if err != nil {
		return "", fmt.Errorf("ownerOf(%d): %w", id, err)
	}
	owner, err := evm.DecodeAddress(out)
	if err != nil {
		return "", fmt.Errorf("ownerOf(%d): %w", id, err)
	}
	return owner, nil
}

// TokenURI returns tokenURI(id).
func (c *Contract) TokenURI(ctx context.Context, id domain.TokenID) (string, error) {
	out, err := c.call(ctx, evm.EncodeCall(selTokenURI, new(big.Int).SetUint64(uint64(id))))
	if err != nil {
		return "", fmt.Errorf("tokenURI(%d): %w", id, err)
	}
	uri, err := evm.DecodeString(out)
	if err != nil {
		return "", fmt.Errorf("tokenURI(%d): %w", id, err)
	}
	return uri, nil
}

// Mint sends mint() from the signer. The provider signs; no timeout is applied
// beyond ctx because a wallet may wait for user approval.
func (c *Contract) Mint(ctx context.Context) (string, error) {
	if c.signer == "" {
		return "", fmt.Errorf("mint: no signer configured")
	}
	if err := c.limiter.wait(ctx); err != nil {
		return "", err
	}

	hash, err := c.client.SendTransaction(ctx, evm.TxRequest{
		From: c.signer,
		To:   c.address,
		Data: evm.EncodeCall(selMint),
	})
	if err != nil {
		return "", fmt.Errorf("mint: %w", classify(err))
	}
	return hash, nil
}

// WaitMined polls eth_getTransactionReceipt until the receipt exists.
// Transient poll failures are retried; the last one is reported if ctx ends first.
func (c *Contract) WaitMined(ctx context.Context, hash string, pollInterval time.Duration) (*evm.Receipt, error) {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		receipt, err := c.receipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("wait mined %s: %w (last error: %v)", hash, ctx.Err(), lastErr)
			}
			return nil, fmt.Errorf("wait mined %s: %w", hash, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Contract) receipt(ctx context.Context, hash string) (*evm.Receipt, error) {
	if err := c.limiter.wait(ctx); err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.client.GetTransactionReceipt(callCtx, hash)
}

// Balance returns the signer balance in wei.
func (c *Contract) Balance(ctx context.Context) (*big.Int, error) {
	if c.signer == "" {
		return nil, fmt.Errorf("balance: no signer configured")
	}
	if err := c.limiter.wait(ctx); err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	bal, err := c.client.GetBalance(callCtx, c.signer)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	return bal, nil
}

// classify maps JSON-RPC errors onto gateway sentinels, keeping the node message.
func classify(err error) error {
	var rpcErr *evm.RPCError
	if !errors.As(err, &rpcErr) {
		return err
	}
	switch {
	case rpcErr.IsUserRejected():
		return fmt.Errorf("%w: %s", ErrRejected, rpcErr.Message)
	case rpcErr.IsRevert():
		return fmt.Errorf("%w: %s", ErrReverted, rpcErr.Message)
	}
	return err
}
