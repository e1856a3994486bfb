// Package mint submits mint transactions and tracks them to confirmation.
package mint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/gateway"
	"timeshift-nft/internal/observability"
	"timeshift-nft/internal/storage"
)

// Mint errors. Each wraps the underlying provider message.
var (
	ErrMintRejected   = errors.New("mint rejected by signer")
	ErrMintReverted   = errors.New("mint reverted on-chain")
	ErrMintFailed     = errors.New("mint failed")
	ErrMintInProgress = errors.New("mint already in progress")
)

// Defaults.
const (
	DefaultReceiptPollInterval = 2 * time.Second
	DefaultConfirmTimeout      = 5 * time.Minute
	DefaultExplorerTxURL       = "https://sepolia.etherscan.io/tx/"
)

// PhaseObserver is called on every phase transition with a copy of the status.
type PhaseObserver func(Status)

// Status is the observable state of the latest mint.
type Status struct {
	Phase       domain.MintPhase   `json:"phase"`
	TxHash      string             `json:"tx_hash,omitempty"`
	ExplorerURL string             `json:"explorer_url,omitempty"`
	Error       string             `json:"error,omitempty"`
	Result      *domain.MintResult `json:"result,omitempty"`
	UpdatedAt   int64              `json:"updated_at"` // ms
}

// Options contains configuration for creating a Minter.
type Options struct {
	ReceiptPollInterval time.Duration
	ConfirmTimeout      time.Duration
	ExplorerTxURL       string // prefix the tx hash is appended to

	Store    storage.MintStore // optional
	Contract string            // recorded with mint records

	OnPhase  PhaseObserver
	OnMinted func(ctx context.Context, result *domain.MintResult)

	Logger *log.Logger
	Now    func() time.Time
}

// Minter runs one mint at a time.
type Minter struct {
	pollInterval   time.Duration
	confirmTimeout time.Duration
	explorerTxURL  string
	store          storage.MintStore
	contract       string
	onPhase        PhaseObserver
	onMinted       func(ctx context.Context, result *domain.MintResult)
	logger         *log.Logger
	now            func() time.Time

	mu       sync.Mutex
	status   Status
	inFlight bool
}

// NewMinter creates an idle minter.
func NewMinter(opts Options) *Minter {
	poll := opts.ReceiptPollInterval
	if poll <= 0 {
		poll = DefaultReceiptPollInterval
	}
	timeout := opts.ConfirmTimeout
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	explorer := opts.ExplorerTxURL
	if explorer == "" {
		explorer = DefaultExplorerTxURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	m := &Minter{
		pollInterval:   poll,
		confirmTimeout: timeout,
		explorerTxURL:  explorer,
		store:          opts.Store,
		contract:       domain.NormalizeAddress(opts.Contract),
		onPhase:        opts.OnPhase,
		onMinted:       opts.OnMinted,
		logger:         logger,
		now:            now,
	}
	m.status = Status{Phase: domain.MintPhaseIdle, UpdatedAt: now().UnixMilli()}
	return m
}

// Status returns the latest mint status.
func (m *Minter) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// InFlight reports whether a mint is running.
func (m *Minter) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// Reset returns a finished mint to idle. Returns ErrMintInProgress while a mint runs.
func (m *Minter) Reset() error {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return ErrMintInProgress
	}
	m.status = Status{Phase: domain.MintPhaseIdle, UpdatedAt: m.now().UnixMilli()}
	st := m.status
	m.mu.Unlock()

	m.notify(st)
	return nil
}

// ExplorerURL returns the block explorer link of a transaction.
func (m *Minter) ExplorerURL(hash string) string {
	if hash == "" {
		return ""
	}
	return strings.TrimRight(m.explorerTxURL, "/") + "/" + hash
}

// Begin claims the minter for one mint and enters pending_submission.
// Callers that run Mint in the background use it to report ErrMintInProgress synchronously.
func (m *Minter) Begin() error {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return ErrMintInProgress
	}
	m.inFlight = true
	m.status = Status{Phase: domain.MintPhasePendingSubmission, UpdatedAt: m.now().UnixMilli()}
	st := m.status
	m.mu.Unlock()

	observability.RecordMintPhase(st.Phase.String())
	m.notify(st)
	return nil
}

// Mint submits a mint through gw and waits for its receipt.
// Phases: pending_submission, pending_confirmation, then confirmed or failed.
func (m *Minter) Mint(ctx context.Context, gw gateway.Gateway) (*domain.MintResult, error) {
	if err := m.Begin(); err != nil {
		return nil, err
	}
	return m.Run(ctx, gw)
}

// Run performs a mint claimed with Begin.
func (m *Minter) Run(ctx context.Context, gw gateway.Gateway) (*domain.MintResult, error) {
	defer func() {
		m.mu.Lock()
		m.inFlight = false
		m.mu.Unlock()
	}()

	if gw == nil {
		return nil, m.fail(ctx, "", "", 0, fmt.Errorf("%w: no provider", ErrMintFailed))
	}

	hash, err := gw.Mint(ctx)
	if err != nil {
		if errors.Is(err, gateway.ErrRejected) {
			return nil, m.fail(ctx, "", "", 0, fmt.Errorf("%w: %w", ErrMintRejected, err))
		}
		return nil, m.fail(ctx, "", "", 0, fmt.Errorf("%w: submit: %w", ErrMintFailed, err))
	}

	submittedAt := m.now()
	m.transition(Status{
		Phase:       domain.MintPhasePendingConfirmation,
		TxHash:      hash,
		ExplorerURL: m.ExplorerURL(hash),
	})
	m.logger.Printf("mint submitted: %s", hash)

	waitCtx, cancel := context.WithTimeout(ctx, m.confirmTimeout)
	defer cancel()

	receipt, err := gw.WaitMined(waitCtx, hash, m.pollInterval)
	if err != nil {
		return nil, m.fail(ctx, gw.Signer(), hash, submittedAt.UnixMilli(), fmt.Errorf("%w: wait confirmation: %w", ErrMintFailed, err))
	}
	if !receipt.Succeeded() {
		return nil, m.fail(ctx, gw.Signer(), hash, submittedAt.UnixMilli(), fmt.Errorf("%w: tx %s in block %d", ErrMintReverted, hash, receipt.BlockNumber))
	}

	result := &domain.MintResult{
		TxHash:      hash,
		BlockNumber: receipt.BlockNumber,
		Status:      receipt.Status,
		ExplorerURL: m.ExplorerURL(hash),
	}
	m.transition(Status{
		Phase:       domain.MintPhaseConfirmed,
		TxHash:      hash,
		ExplorerURL: result.ExplorerURL,
		Result:      result,
	})
	observability.RecordMintDuration(time.Since(submittedAt).Seconds())
	m.logger.Printf("mint confirmed: %s in block %d", hash, receipt.BlockNumber)

	block := receipt.BlockNumber
	m.persist(ctx, &domain.MintRecord{
		TxHash:      hash,
		Signer:      gw.Signer(),
		Phase:       domain.MintPhaseConfirmed,
		BlockNumber: &block,
		SubmittedAt: submittedAt.UnixMilli(),
	})

	if m.onMinted != nil {
		m.onMinted(ctx, result)
	}
	return result, nil
}

// fail moves to the failed phase and returns err. Mints that never produced a
// hash are not persisted.
func (m *Minter) fail(ctx context.Context, signer, hash string, submittedAt int64, err error) error {
	m.transition(Status{
		Phase:       domain.MintPhaseFailed,
		TxHash:      hash,
		ExplorerURL: m.ExplorerURL(hash),
		Error:       err.Error(),
	})
	m.logger.Printf("mint failed: %v", err)

	if hash != "" {
		msg := err.Error()
		m.persist(ctx, &domain.MintRecord{
			TxHash:      hash,
			Signer:      signer,
			Phase:       domain.MintPhaseFailed,
			Error:       &msg,
			SubmittedAt: submittedAt,
		})
	}
	return err
}

func (m *Minter) transition(st Status) {
	st.UpdatedAt = m.now().UnixMilli()

	m.mu.Lock()
	m.status = st
	m.mu.Unlock()

	observability.RecordMintPhase(st.Phase.String())
	m.notify(st)
}

func (m *Minter) notify(st Status) {
	if m.onPhase != nil {
		m.onPhase(st)
	}
}

func (m *Minter) persist(ctx context.Context, rec *domain.MintRecord) {
	if m.store == nil {
		return
	}
	rec.Contract = m.contract
	rec.Signer = domain.NormalizeAddress(rec.Signer)
	rec.FinishedAt = m.now().UnixMilli()

	// The mint outcome is final even if the caller's context is gone
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.store.Insert(storeCtx, rec); err != nil {
		m.logger.Printf("record mint %s: %v", rec.TxHash, err)
	}
}
