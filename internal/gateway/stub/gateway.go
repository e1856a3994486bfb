// Package stub provides an in-memory gateway.Gateway for tests.
package stub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/evm"
	"timeshift-nft/internal/gateway"
)

// Gateway implements gateway.Gateway over in-memory token tables.
// Hooks run before the corresponding call and may block or fail it.
type Gateway struct {
	mu sync.Mutex

	Owners   map[domain.TokenID]string
	URIs     map[domain.TokenID]string
	Counter  uint64
	CountErr error
	URIErrs  map[domain.TokenID]error

	SignerAddr string
	MintErr    error
	MintURI    string // uri assigned to a token created by Mint
	Reverted   bool   // receipts report status 0
	Wei        *big.Int

	OnCount    func(ctx context.Context) error
	OnOwnerOf  func(ctx context.Context, id domain.TokenID) error
	OnTokenURI func(ctx context.Context, id domain.TokenID) error
	OnMint     func(ctx context.Context) error

	pending map[string]domain.TokenID
	minted  int
	calls   map[string]int
}

// Compile-time interface check.
var _ gateway.Gateway = (*Gateway)(nil)

// NewGateway creates an empty stub gateway for signer.
func NewGateway(signer string) *Gateway {
	return &Gateway{
		Owners:     make(map[domain.TokenID]string),
		URIs:       make(map[domain.TokenID]string),
		URIErrs:    make(map[domain.TokenID]error),
		SignerAddr: domain.NormalizeAddress(signer),
		Wei:        big.NewInt(0),
		pending:    make(map[string]domain.TokenID),
		calls:      make(map[string]int),
	}
}

// AddToken appends a token owned by owner and returns its id.
func (g *Gateway) AddToken(owner, uri string) domain.TokenID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := domain.TokenID(g.Counter)
	g.Counter++
	g.Owners[id] = owner
	g.URIs[id] = uri
	return id
}

// Burn removes ownership of id so ownerOf reverts.
func (g *Gateway) Burn(id domain.TokenID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.Owners, id)
	delete(g.URIs, id)
}

// SetURI replaces the metadata URI of id.
func (g *Gateway) SetURI(id domain.TokenID, uri string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.URIs[id] = uri
}

// FailURI makes tokenURI(id) fail with err; nil clears the failure.
func (g *Gateway) FailURI(id domain.TokenID, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.URIErrs, id)
		return
	}
	g.URIErrs[id] = err
}

// Calls returns how many times method was invoked.
func (g *Gateway) Calls(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[method]
}

func (g *Gateway) record(method string) {
	g.mu.Lock()
	g.calls[method]++
	g.mu.Unlock()
}

// Count returns Counter or CountErr.
func (g *Gateway) Count(ctx context.Context) (uint64, error) {
	g.record("count")
	if g.OnCount != nil {
		if err := g.OnCount(ctx); err != nil {
			return 0, err
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CountErr != nil {
		return 0, g.CountErr
	}
	return g.Counter, nil
}

// OwnerOf returns the owner of id or gateway.ErrReverted.
func (g *Gateway) OwnerOf(ctx context.Context, id domain.TokenID) (string, error) {
	g.record("ownerOf")
	if g.OnOwnerOf != nil {
		if err := g.OnOwnerOf(ctx, id); err != nil {
			return "", err
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	owner, ok := g.Owners[id]
	if !ok {
		return "", fmt.Errorf("ownerOf(%d): %w", id, gateway.ErrReverted)
	}
	return owner, nil
}

// TokenURI returns the uri of id, an injected failure, or gateway.ErrReverted.
func (g *Gateway) TokenURI(ctx context.Context, id domain.TokenID) (string, error) {
	g.record("tokenURI")
	if g.OnTokenURI != nil {
		if err := g.OnTokenURI(ctx, id); err != nil {
			return "", err
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.URIErrs[id]; ok {
		return "", err
	}
	uri, ok := g.URIs[id]
	if !ok {
		return "", fmt.Errorf("tokenURI(%d): %w", id, gateway.ErrReverted)
	}
	return uri, nil
}

// Mint returns MintErr, or a fresh hash whose token appears once the receipt is read.
func (g *Gateway) Mint(ctx context.Context) (string, error) {
	g.record("mint")
	if g.OnMint != nil {
		if err := g.OnMint(ctx); err != nil {
			return "", err
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.MintErr != nil {
		return "", g.MintErr
	}
	g.minted++
	hash := fmt.Sprintf("0x%064x", g.minted)
	g.pending[hash] = domain.TokenID(g.Counter)
	return hash, nil
}

// WaitMined mines a pending stub transaction.
func (g *Gateway) WaitMined(ctx context.Context, hash string, _ time.Duration) (*evm.Receipt, error) {
	g.record("waitMined")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	id, ok := g.pending[hash]
	if !ok {
		return nil, fmt.Errorf("unknown transaction %s", hash)
	}
	delete(g.pending, hash)

	if g.Reverted {
		return &evm.Receipt{TransactionHash: hash, BlockNumber: uint64(g.minted), Status: 0}, nil
	}
	if uint64(id) == g.Counter {
		g.Counter++
	}
	g.Owners[id] = g.SignerAddr
	if g.MintURI != "" {
		g.URIs[id] = g.MintURI
	}
	return &evm.Receipt{TransactionHash: hash, BlockNumber: uint64(g.minted), Status: 1}, nil
}

// Balance returns Wei.
func (g *Gateway) Balance(_ context.Context) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return new(big.Int).Set(g.Wei), nil
}

// Signer returns SignerAddr.
func (g *Gateway) Signer() string {
	return g.SignerAddr
}

// TokenURI builds a metadata data URI carrying an inline SVG image.
func TokenURI(name, svg string) string {
	doc := map[string]interface{}{
		"name":  name,
		"image": "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg)),
	}
	raw, _ := json.Marshal(doc)
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString(raw)
}
