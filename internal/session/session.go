// Package session binds one (gateway, owner) pair to a resolution pass and a
// live refresher, applying results last-writer-wins by trigger order.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/gallery"
	"timeshift-nft/internal/gateway"
	"timeshift-nft/internal/mint"
)

// ErrNotOwned is returned by Select for a token outside the current set.
var ErrNotOwned = errors.New("token not in ownership set")

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// State is a snapshot of the session.
type State struct {
	Owner       string          `json:"owner"`
	Tokens      []domain.Token  `json:"tokens"`
	Loading     bool            `json:"loading"`
	Error       string          `json:"error,omitempty"`
	Generation  uint64          `json:"generation"`
	FeaturedID  *domain.TokenID `json:"featured_id,omitempty"`
	ResolvedAt  int64           `json:"resolved_at,omitempty"`
	RefreshedAt int64           `json:"refreshed_at,omitempty"`
	Refreshing  bool            `json:"refreshing"`
}

// Featured returns the featured token: the selected id if owned, else the first token.
func (st State) Featured() (domain.Token, bool) {
	if st.FeaturedID != nil {
		for _, t := range st.Tokens {
			if t.ID == *st.FeaturedID {
				return t, true
			}
		}
	}
	if len(st.Tokens) > 0 {
		return st.Tokens[0], true
	}
	return domain.Token{}, false
}

// Options contains configuration for creating a Session.
type Options struct {
	Resolver  *gallery.Resolver
	Refresher *gallery.Refresher
	Scheduler *gallery.Scheduler
	Minter    *mint.Minter
	Logger    *log.Logger
	Now       func() time.Time
}

// Session owns the current ownership set. Safe for concurrent use.
type Session struct {
	resolver  *gallery.Resolver
	refresher *gallery.Refresher
	scheduler *gallery.Scheduler
	minter    *mint.Minter
	logger    *log.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// schedMu orders scheduler changes against generation bumps.
	schedMu sync.Mutex

	mu          sync.Mutex
	gen         uint64
	gw          gateway.Gateway
	owner       string
	set         *domain.OwnershipSet
	loading     bool
	err         error
	selected    *domain.TokenID
	refreshedAt int64
	passCancel  context.CancelFunc
	passDone    chan struct{}
	closed      bool
}

// New creates an unbound session.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = gallery.NewResolver(gallery.ResolverOptions{Logger: logger, Now: now})
	}
	refresher := opts.Refresher
	if refresher == nil {
		refresher = gallery.NewRefresher(gallery.RefresherOptions{Logger: logger, Now: now})
	}
	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = gallery.NewScheduler(gallery.DefaultRefreshInterval)
	}
	minter := opts.Minter
	if minter == nil {
		minter = mint.NewMinter(mint.Options{Logger: logger, Now: now})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	close(done)

	return &Session{
		resolver:  resolver,
		refresher: refresher,
		scheduler: scheduler,
		minter:    minter,
		logger:    logger,
		now:       now,
		ctx:       ctx,
		cancel:    cancel,
		passDone:  done,
	}
}

// Bind switches the session to gw and owner, cancelling any in-flight pass and
// refresh cycle, and starts a new resolution pass. Returns the new generation.
func (s *Session) Bind(gw gateway.Gateway, owner string) uint64 {
	s.mu.Lock()
	if s.closed {
		gen := s.gen
		s.mu.Unlock()
		return gen
	}
	s.gw = gw
	s.owner = domain.NormalizeAddress(owner)
	s.selected = nil
	s.mu.Unlock()

	return s.trigger()
}

// Refresh starts a new resolution pass for the bound pair, superseding any
// in-flight one. Returns the new generation.
func (s *Session) Refresh() uint64 {
	return s.trigger()
}

// trigger bumps the generation and launches a pass for it.
func (s *Session) trigger() uint64 {
	s.mu.Lock()
	if s.closed {
		gen := s.gen
		s.mu.Unlock()
		return gen
	}
	s.gen++
	gen := s.gen
	if s.passCancel != nil {
		s.passCancel()
	}
	gw, owner := s.gw, s.owner

	s.set = &domain.OwnershipSet{Owner: owner}
	s.err = nil
	s.refreshedAt = 0
	s.loading = gw != nil && owner != ""

	passCtx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.passCancel, s.passDone = cancel, done
	s.wg.Add(1)
	s.mu.Unlock()

	// Superseded refresh cycles must not outlive their generation
	s.schedMu.Lock()
	s.scheduler.Stop()
	s.schedMu.Unlock()

	go s.runPass(passCtx, gen, gw, owner, done)
	return gen
}

func (s *Session) runPass(ctx context.Context, gen uint64, gw gateway.Gateway, owner string, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)

	set, err := s.resolver.Resolve(ctx, gw, owner)

	s.mu.Lock()
	if s.gen != gen || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.loading = false
	if err != nil {
		s.err = err
		s.mu.Unlock()
		s.logger.Printf("resolution pass %d failed: %v", gen, err)
		return
	}
	s.set = set
	if id, ok := set.MaxID(); ok {
		s.selected = &id
	}
	s.mu.Unlock()

	if set.Len() == 0 {
		return
	}
	s.refresher.Record(ctx, set)

	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	if s.Generation() == gen && s.ctx.Err() == nil {
		s.scheduler.Replace(s.ctx, s.refreshTask(gen))
	}
}

// refreshTask re-fetches the metadata of generation gen's set.
func (s *Session) refreshTask(gen uint64) gallery.Task {
	return func(ctx context.Context) {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		gw, set := s.gw, s.set
		s.mu.Unlock()

		out := s.refresher.Refresh(ctx, gw, set)
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen == gen {
			s.set = out
			s.refreshedAt = s.now().UnixMilli()
		}
	}
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Owner:       s.owner,
		Loading:     s.loading,
		Generation:  s.gen,
		RefreshedAt: s.refreshedAt,
		Refreshing:  s.scheduler.Running(),
	}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	if s.set != nil {
		st.Tokens = append([]domain.Token(nil), s.set.Tokens...)
		st.ResolvedAt = s.set.ResolvedAt
	}
	if s.selected != nil {
		id := *s.selected
		st.FeaturedID = &id
	}
	return st
}

// Generation returns the current generation.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Gateway returns the bound gateway, nil if unbound.
func (s *Session) Gateway() gateway.Gateway {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gw
}

// Owner returns the bound owner address.
func (s *Session) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Select features token id. Returns ErrNotOwned if id is not in the set.
func (s *Session) Select(id domain.TokenID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.set.Find(id); !ok {
		return ErrNotOwned
	}
	s.selected = &id
	return nil
}

// Cycles returns the number of refresh cycles run by the session's scheduler.
func (s *Session) Cycles() uint64 {
	return s.scheduler.Cycles()
}

// Minter returns the session's minter.
func (s *Session) Minter() *mint.Minter {
	return s.minter
}

// Mint mints through the bound gateway and, on confirmation, starts a new pass.
func (s *Session) Mint(ctx context.Context) (*domain.MintResult, error) {
	if err := s.minter.Begin(); err != nil {
		return nil, err
	}
	return s.runMint(ctx)
}

// StartMint claims the minter and runs the mint in the background.
// Returns mint.ErrMintInProgress synchronously.
func (s *Session) StartMint() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.wg.Add(1)
	s.mu.Unlock()

	if err := s.minter.Begin(); err != nil {
		s.wg.Done()
		return err
	}
	go func() {
		defer s.wg.Done()
		s.runMint(s.ctx)
	}()
	return nil
}

func (s *Session) runMint(ctx context.Context) (*domain.MintResult, error) {
	result, err := s.minter.Run(ctx, s.Gateway())
	if err != nil {
		return nil, err
	}
	s.Refresh()
	return result, nil
}

// WaitIdle blocks until no resolution pass is in flight or ctx is done.
func (s *Session) WaitIdle(ctx context.Context) error {
	for {
		s.mu.Lock()
		done, gen := s.passDone, s.gen
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		if s.Generation() == gen {
			return nil
		}
	}
}

// Close cancels all work and waits for background goroutines.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	s.schedMu.Lock()
	s.scheduler.Stop()
	s.schedMu.Unlock()

	s.wg.Wait()
}
