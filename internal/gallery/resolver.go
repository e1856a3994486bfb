// Package gallery resolves the tokens an address owns and keeps their artwork fresh.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/gateway"
	"timeshift-nft/internal/metadata"
	"timeshift-nft/internal/observability"
)

// ErrResolve is returned when a resolution pass cannot start (the count read failed).
// It is distinct from an empty ownership set.
var ErrResolve = errors.New("ownership resolution failed")

// ResolverOptions contains configuration for creating a Resolver.
type ResolverOptions struct {
	Workers int // concurrent per-id lookups, default 1 (sequential scan)
	Logger  *log.Logger
	Now     func() time.Time
}

// Resolver scans the full token range of a contract for tokens owned by an address.
type Resolver struct {
	workers int
	logger  *log.Logger
	now     func() time.Time
}

// NewResolver creates a new ownership resolver.
func NewResolver(opts ResolverOptions) *Resolver {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Resolver{
		workers: workers,
		logger:  logger,
		now:     now,
	}
}

// Resolve returns the tokens owned by owner, ascending by id.
//
// An empty owner or nil gateway yields an empty set and no error.
// Ids whose owner read, metadata read or decode fails are skipped.
// Only a failed count read is fatal, reported as ErrResolve.
func (r *Resolver) Resolve(ctx context.Context, gw gateway.Gateway, owner string) (set *domain.OwnershipSet, err error) {
	owner = domain.NormalizeAddress(owner)
	if owner == "" || gw == nil {
		return &domain.OwnershipSet{Owner: owner}, nil
	}

	start := r.now()
	var skipped int
	defer func() {
		observability.RecordResolverPass(time.Since(start).Seconds(), set.Len(), skipped, err)
	}()

	n, err := gw.Count(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Printf("count failed for %s: %v", owner, err)
		return nil, fmt.Errorf("%w: count: %w", ErrResolve, err)
	}
	if n > math.MaxInt {
		r.logger.Printf("count %d out of range for %s", n, owner)
		return nil, fmt.Errorf("%w: count %d exceeds %d", ErrResolve, n, math.MaxInt)
	}

	var tokens []domain.Token
	if r.workers == 1 || n < 2 {
		tokens, skipped, err = r.scan(ctx, gw, owner, n)
	} else {
		tokens, skipped, err = r.scanParallel(ctx, gw, owner, n)
	}
	if err != nil {
		return nil, err
	}
	r.logger.Printf("resolved %d tokens for %s (%d of %d ids skipped)", len(tokens), owner, skipped, n)

	return &domain.OwnershipSet{
		Owner:      owner,
		Tokens:     tokens,
		ResolvedAt: r.now().UnixMilli(),
	}, nil
}

// scan looks ids up one at a time in ascending order.
func (r *Resolver) scan(ctx context.Context, gw gateway.Gateway, owner string, n uint64) ([]domain.Token, int, error) {
	var tokens []domain.Token
	var skipped int

	for i := uint64(0); i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}

		tok, owned, err := r.lookup(ctx, gw, owner, domain.TokenID(i))
		switch {
		case err != nil:
			skipped++
		case owned:
			tokens = append(tokens, tok)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, skipped, err
	}
	return tokens, skipped, nil
}

// windowPerWorker bounds how many per-id slots scanParallel holds at once.
const windowPerWorker = 64

// scanParallel looks ids up with bounded concurrency, one window at a time,
// and compacts each window in id order, so the output matches scan.
func (r *Resolver) scanParallel(ctx context.Context, gw gateway.Gateway, owner string, n uint64) ([]domain.Token, int, error) {
	type slot struct {
		token  domain.Token
		owned  bool
		failed bool
	}

	window := uint64(r.workers) * windowPerWorker
	slots := make([]slot, min(window, n))

	var tokens []domain.Token
	var skipped int

	for base := uint64(0); base < n; base += window {
		size := min(window, n-base)
		batch := slots[:size]
		clear(batch)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.workers)

		for j := uint64(0); j < size; j++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				tok, owned, err := r.lookup(gctx, gw, owner, domain.TokenID(base+j))
				batch[j] = slot{token: tok, owned: owned, failed: err != nil}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, skipped, err
		}
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}

		for _, s := range batch {
			switch {
			case s.failed:
				skipped++
			case s.owned:
				tokens = append(tokens, s.token)
			}
		}
	}
	return tokens, skipped, nil
}

// lookup reads the owner of id and, when it matches, fetches and decodes its metadata.
// A non-nil error means the id is skipped.
func (r *Resolver) lookup(ctx context.Context, gw gateway.Gateway, owner string, id domain.TokenID) (domain.Token, bool, error) {
	tokenOwner, err := gw.OwnerOf(ctx, id)
	if err != nil {
		return domain.Token{}, false, err
	}
	if !domain.SameAddress(tokenOwner, owner) {
		return domain.Token{}, false, nil
	}

	tok, err := fetchToken(ctx, gw, id, r.now)
	if err != nil {
		return domain.Token{}, false, err
	}
	return tok, true, nil
}

// fetchToken reads and decodes the metadata of id.
func fetchToken(ctx context.Context, gw gateway.Gateway, id domain.TokenID, now func() time.Time) (domain.Token, error) {
	uri, err := gw.TokenURI(ctx, id)
	if err != nil {
		return domain.Token{}, err
	}
	return metadata.DecodeToken(id, uri, now().UnixMilli())
}
