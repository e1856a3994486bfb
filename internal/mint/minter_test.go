package mint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/evm"
	"timeshift-nft/internal/gateway"
	"timeshift-nft/internal/gateway/stub"
	"timeshift-nft/internal/storage/memory"
)

const signer = "0x00000000000000000000000000000000000000a1"

type phaseLog struct {
	mu     sync.Mutex
	phases []domain.MintPhase
}

func (p *phaseLog) observe(st Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phases = append(p.phases, st.Phase)
}

func (p *phaseLog) get() []domain.MintPhase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.MintPhase(nil), p.phases...)
}

func newTestMinter(opts Options) *Minter {
	opts.Logger = log.New(io.Discard, "", 0)
	opts.ReceiptPollInterval = time.Millisecond
	return NewMinter(opts)
}

func TestMinter_Confirmed(t *testing.T) {
	gw := stub.NewGateway(signer)
	store := memory.NewMintStore()
	phases := &phaseLog{}

	var minted *domain.MintResult
	m := newTestMinter(Options{
		Store:    store,
		Contract: "0xC0",
		OnPhase:  phases.observe,
		OnMinted: func(_ context.Context, r *domain.MintResult) { minted = r },
	})

	result, err := m.Mint(context.Background(), gw)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), result.Status)
	assert.Equal(t, "https://sepolia.etherscan.io/tx/"+result.TxHash, result.ExplorerURL)
	assert.Same(t, result, minted)
	assert.Equal(t, []domain.MintPhase{
		domain.MintPhasePendingSubmission,
		domain.MintPhasePendingConfirmation,
		domain.MintPhaseConfirmed,
	}, phases.get())

	st := m.Status()
	assert.Equal(t, domain.MintPhaseConfirmed, st.Phase)
	assert.Equal(t, result.TxHash, st.TxHash)
	assert.False(t, m.InFlight())

	// The minted token now belongs to the signer
	owner, err := gw.OwnerOf(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, signer, owner)

	rec, err := store.GetByTxHash(context.Background(), result.TxHash)
	require.NoError(t, err)
	assert.Equal(t, domain.MintPhaseConfirmed, rec.Phase)
	assert.Equal(t, "0xc0", rec.Contract)
	assert.Equal(t, signer, rec.Signer)
	require.NotNil(t, rec.BlockNumber)
}

func TestMinter_RejectedBeforeSubmission(t *testing.T) {
	gw := stub.NewGateway(signer)
	gw.MintErr = fmt.Errorf("mint: %w: User rejected the request.", gateway.ErrRejected)
	gw.AddToken(signer, stub.TokenURI("a", "<svg/>"))
	store := memory.NewMintStore()
	phases := &phaseLog{}

	called := false
	m := newTestMinter(Options{
		Store:    store,
		OnPhase:  phases.observe,
		OnMinted: func(context.Context, *domain.MintResult) { called = true },
	})

	result, err := m.Mint(context.Background(), gw)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrMintRejected)
	assert.Contains(t, err.Error(), "User rejected the request.")
	assert.False(t, called, "refresh must not be signalled")

	st := m.Status()
	assert.Equal(t, domain.MintPhaseFailed, st.Phase)
	assert.Empty(t, st.TxHash, "no submission id may be produced")
	assert.Contains(t, st.Error, "User rejected")
	assert.Equal(t, []domain.MintPhase{domain.MintPhasePendingSubmission, domain.MintPhaseFailed}, phases.get())

	// Ownership unchanged
	assert.Equal(t, uint64(1), gw.Counter)
	assert.Equal(t, 0, gw.Calls("waitMined"))

	recs, err := store.GetBySigner(context.Background(), signer)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMinter_SubmitFailure(t *testing.T) {
	gw := stub.NewGateway(signer)
	gw.MintErr = errors.New("connection refused")

	m := newTestMinter(Options{})
	_, err := m.Mint(context.Background(), gw)

	assert.ErrorIs(t, err, ErrMintFailed)
	assert.NotErrorIs(t, err, ErrMintRejected)
}

func TestMinter_Reverted(t *testing.T) {
	gw := stub.NewGateway(signer)
	gw.Reverted = true
	store := memory.NewMintStore()

	m := newTestMinter(Options{Store: store})
	_, err := m.Mint(context.Background(), gw)
	require.ErrorIs(t, err, ErrMintReverted)

	st := m.Status()
	assert.Equal(t, domain.MintPhaseFailed, st.Phase)
	assert.NotEmpty(t, st.TxHash)

	rec, err := store.GetByTxHash(context.Background(), st.TxHash)
	require.NoError(t, err)
	assert.Equal(t, domain.MintPhaseFailed, rec.Phase)
	require.NotNil(t, rec.Error)
}

func TestMinter_InProgress(t *testing.T) {
	gw := stub.NewGateway(signer)
	release := make(chan struct{})
	entered := make(chan struct{})
	gw.OnMint = func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	}

	m := newTestMinter(Options{})

	done := make(chan error, 1)
	go func() {
		_, err := m.Mint(context.Background(), gw)
		done <- err
	}()

	<-entered
	_, err := m.Mint(context.Background(), gw)
	assert.ErrorIs(t, err, ErrMintInProgress)
	assert.ErrorIs(t, m.Reset(), ErrMintInProgress)
	assert.True(t, m.InFlight())

	close(release)
	require.NoError(t, <-done)

	require.NoError(t, m.Reset())
	assert.Equal(t, domain.MintPhaseIdle, m.Status().Phase)
}

func TestMinter_ConfirmTimeout(t *testing.T) {
	gw := &slowGateway{Gateway: stub.NewGateway(signer)}

	m := newTestMinter(Options{ConfirmTimeout: 20 * time.Millisecond})
	_, err := m.Mint(context.Background(), gw)

	assert.ErrorIs(t, err, ErrMintFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.MintPhaseFailed, m.Status().Phase)
}

// slowGateway never mines.
type slowGateway struct {
	*stub.Gateway
}

func (g *slowGateway) WaitMined(ctx context.Context, _ string, _ time.Duration) (*evm.Receipt, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestMinter_ExplorerURL(t *testing.T) {
	m := newTestMinter(Options{ExplorerTxURL: "https://explorer.example/tx/"})
	assert.Equal(t, "https://explorer.example/tx/0xab", m.ExplorerURL("0xab"))
	assert.Empty(t, m.ExplorerURL(""))
}
