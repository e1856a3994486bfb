package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/storage"
)

const testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func testRevision(id domain.TokenID, hash string, observedAt int64) *domain.ArtworkRevision {
	return &domain.ArtworkRevision{
		Contract:   testContract,
		TokenID:    id,
		Hash:       hash,
		Image:      "data:image/svg+xml;base64,PHN2Zy8+",
		Name:       ptr("TimeShift #1"),
		ObservedAt: observedAt,
	}
}

func TestArtworkStore_RecordAndLatest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewArtworkStore(pool)

	stored, err := store.Record(ctx, testRevision(1, "aaa", 1700000000000))
	require.NoError(t, err)
	assert.True(t, stored)

	latest, err := store.Latest(ctx, testContract, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.NormalizeAddress(testContract), latest.Contract)
	assert.Equal(t, domain.TokenID(1), latest.TokenID)
	assert.Equal(t, "aaa", latest.Hash)
	require.NotNil(t, latest.Name)
	assert.Equal(t, "TimeShift #1", *latest.Name)
	assert.Equal(t, int64(1700000000000), latest.ObservedAt)
	assert.NotZero(t, latest.CreatedAt)
}

func TestArtworkStore_RecordUnchangedSkipped(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewArtworkStore(pool)

	stored, err := store.Record(ctx, testRevision(1, "aaa", 1000))
	require.NoError(t, err)
	require.True(t, stored)

	stored, err = store.Record(ctx, testRevision(1, "aaa", 2000))
	require.NoError(t, err)
	assert.False(t, stored, "same hash must not create a revision")

	stored, err = store.Record(ctx, testRevision(1, "bbb", 3000))
	require.NoError(t, err)
	assert.True(t, stored)

	// Returning to an earlier artwork is a new revision.
	stored, err = store.Record(ctx, testRevision(1, "aaa", 4000))
	require.NoError(t, err)
	assert.True(t, stored)

	history, err := store.History(ctx, testContract, 1)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "aaa", history[0].Hash)
	assert.Equal(t, "bbb", history[1].Hash)
	assert.Equal(t, "aaa", history[2].Hash)
	assert.Equal(t, int64(4000), history[2].ObservedAt)
}

func TestArtworkStore_RecordDuplicateObservedAt(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewArtworkStore(pool)

	_, err := store.Record(ctx, testRevision(1, "aaa", 1000))
	require.NoError(t, err)

	_, err = store.Record(ctx, testRevision(1, "bbb", 1000))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestArtworkStore_RecordInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewArtworkStore(pool)

	_, err := store.Record(context.Background(), testRevision(1, "", 1000))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestArtworkStore_LatestNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewArtworkStore(pool)

	_, err := store.Latest(context.Background(), testContract, 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestArtworkStore_TokensIsolated(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewArtworkStore(pool)

	_, err := store.Record(ctx, testRevision(1, "aaa", 1000))
	require.NoError(t, err)
	stored, err := store.Record(ctx, testRevision(2, "aaa", 1000))
	require.NoError(t, err)
	assert.True(t, stored, "dedupe is per token")

	history, err := store.History(ctx, testContract, 3)
	require.NoError(t, err)
	assert.Empty(t, history)
}
