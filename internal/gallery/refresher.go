package gallery

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/gateway"
	"timeshift-nft/internal/idhash"
	"timeshift-nft/internal/observability"
	"timeshift-nft/internal/storage"
)

// RefresherOptions contains configuration for creating a Refresher.
type RefresherOptions struct {
	Workers  int                  // concurrent fetches per cycle, 0 means one per token
	Store    storage.ArtworkStore // optional revision history
	Contract string               // contract address recorded with revisions
	Logger   *log.Logger
	Now      func() time.Time
}

// Refresher re-fetches the metadata of a known ownership set.
type Refresher struct {
	workers  int
	store    storage.ArtworkStore
	contract string
	logger   *log.Logger
	now      func() time.Time
}

// NewRefresher creates a new metadata refresher.
func NewRefresher(opts RefresherOptions) *Refresher {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Refresher{
		workers:  opts.Workers,
		store:    opts.Store,
		contract: domain.NormalizeAddress(opts.Contract),
		logger:   logger,
		now:      now,
	}
}

// Refresh returns a new set with the same token ids in the same order and
// freshly decoded metadata. A token whose fetch or decode fails keeps its
// previous snapshot. The input set is not modified.
func (r *Refresher) Refresh(ctx context.Context, gw gateway.Gateway, set *domain.OwnershipSet) *domain.OwnershipSet {
	out := set.Clone()
	if out.Len() == 0 || gw == nil {
		return out
	}

	start := r.now()
	fresh := make([]*domain.Token, len(out.Tokens))

	var g errgroup.Group
	if r.workers > 0 {
		g.SetLimit(r.workers)
	}
	for i, tok := range out.Tokens {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			t, err := fetchToken(ctx, gw, tok.ID, r.now)
			if err != nil {
				return nil
			}
			fresh[i] = &t
			return nil
		})
	}
	g.Wait()

	var failed int
	var changed []domain.Token
	for i, t := range fresh {
		if t == nil {
			failed++
			continue
		}
		if ArtworkHash(*t) != ArtworkHash(out.Tokens[i]) {
			changed = append(changed, *t)
		}
		out.Tokens[i] = *t
	}

	for range changed {
		observability.RecordArtworkChange()
	}
	if ctx.Err() == nil {
		r.record(ctx, changed)
	}

	observability.RecordRefreshCycle(time.Since(start).Seconds(), failed, ctx.Err())
	return out
}

// Record stores the current artwork of every token in set. The store skips
// revisions whose hash matches the latest one, so repeated calls are cheap.
func (r *Refresher) Record(ctx context.Context, set *domain.OwnershipSet) {
	if set.Len() == 0 {
		return
	}
	r.record(ctx, set.Tokens)
}

func (r *Refresher) record(ctx context.Context, tokens []domain.Token) {
	if r.store == nil || r.contract == "" {
		return
	}
	for _, t := range tokens {
		rev := Revision(r.contract, t)
		if _, err := r.store.Record(ctx, rev); err != nil {
			r.logger.Printf("record artwork of token %d: %v", t.ID, err)
		}
	}
}

// ArtworkHash returns the hex SHA-256 of a token's decoded SVG,
// or of its image URI when the image is not an inline SVG.
func ArtworkHash(t domain.Token) string {
	src := t.SVG
	if src == "" {
		src = t.Metadata.Image
	}
	return idhash.ComputeArtworkHash(src)
}

// Revision builds the artwork revision observed for t.
func Revision(contract string, t domain.Token) *domain.ArtworkRevision {
	rev := &domain.ArtworkRevision{
		Contract:   domain.NormalizeAddress(contract),
		TokenID:    t.ID,
		Hash:       ArtworkHash(t),
		Image:      t.Metadata.Image,
		ObservedAt: t.FetchedAt,
	}
	if t.Metadata.Name != "" {
		name := t.Metadata.Name
		rev.Name = &name
	}
	return rev
}
