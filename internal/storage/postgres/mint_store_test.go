package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/storage"
)

const testSigner = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func TestMintStore_InsertAndGetByTxHash(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMintStore(pool)

	rec := &domain.MintRecord{
		TxHash:      "0xabc",
		Contract:    testContract,
		Signer:      testSigner,
		Phase:       domain.MintPhaseConfirmed,
		BlockNumber: ptr(uint64(1234)),
		SubmittedAt: 1700000000000,
		FinishedAt:  1700000012000,
	}
	require.NoError(t, store.Insert(ctx, rec))

	got, err := store.GetByTxHash(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, domain.NormalizeAddress(testContract), got.Contract)
	assert.Equal(t, domain.NormalizeAddress(testSigner), got.Signer)
	assert.Equal(t, domain.MintPhaseConfirmed, got.Phase)
	require.NotNil(t, got.BlockNumber)
	assert.Equal(t, uint64(1234), *got.BlockNumber)
	assert.Nil(t, got.Error)
	assert.Equal(t, rec.SubmittedAt, got.SubmittedAt)
	assert.Equal(t, rec.FinishedAt, got.FinishedAt)
}

func TestMintStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMintStore(pool)

	rec := &domain.MintRecord{
		TxHash:      "0xdup",
		Contract:    testContract,
		Signer:      testSigner,
		Phase:       domain.MintPhaseFailed,
		Error:       ptr("transaction reverted"),
		SubmittedAt: 1000,
		FinishedAt:  2000,
	}
	require.NoError(t, store.Insert(ctx, rec))
	assert.ErrorIs(t, store.Insert(ctx, rec), storage.ErrDuplicateKey)
}

func TestMintStore_InsertNonTerminal(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	err := NewMintStore(pool).Insert(context.Background(), &domain.MintRecord{
		TxHash: "0x1",
		Signer: testSigner,
		Phase:  domain.MintPhasePendingConfirmation,
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestMintStore_GetBySigner(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMintStore(pool)

	for _, rec := range []*domain.MintRecord{
		{TxHash: "0x2", Contract: testContract, Signer: testSigner, Phase: domain.MintPhaseConfirmed, SubmittedAt: 2000, FinishedAt: 2500},
		{TxHash: "0x1", Contract: testContract, Signer: testSigner, Phase: domain.MintPhaseFailed, SubmittedAt: 1000, FinishedAt: 1500},
		{TxHash: "0x3", Contract: testContract, Signer: "0x0000000000000000000000000000000000000001", Phase: domain.MintPhaseConfirmed, SubmittedAt: 500, FinishedAt: 600},
	} {
		require.NoError(t, store.Insert(ctx, rec))
	}

	records, err := store.GetBySigner(ctx, testSigner)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "0x1", records[0].TxHash)
	assert.Equal(t, "0x2", records[1].TxHash)
}

func TestMintStore_GetByTxHashNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewMintStore(pool).GetByTxHash(context.Background(), "0xmissing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
