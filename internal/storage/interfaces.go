package storage

import (
	"context"

	"timeshift-nft/internal/domain"
)

// ArtworkStore provides access to artwork_revisions storage.
type ArtworkStore interface {
	// Record appends rev unless the latest revision of the same token has the same hash.
	// Returns true if a revision was stored. Returns ErrInvalidInput for an incomplete revision.
	Record(ctx context.Context, rev *domain.ArtworkRevision) (bool, error)

	// Latest retrieves the most recent revision of a token. Returns ErrNotFound if none.
	Latest(ctx context.Context, contract string, id domain.TokenID) (*domain.ArtworkRevision, error)

	// History retrieves all revisions of a token, ordered by observed_at ASC.
	History(ctx context.Context, contract string, id domain.TokenID) ([]*domain.ArtworkRevision, error)
}

// MintStore provides access to mint_transactions storage.
type MintStore interface {
	// Insert adds a mint record. Returns ErrDuplicateKey if tx_hash exists.
	Insert(ctx context.Context, m *domain.MintRecord) error

	// GetByTxHash retrieves a mint record by transaction hash. Returns ErrNotFound if not exists.
	GetByTxHash(ctx context.Context, txHash string) (*domain.MintRecord, error)

	// GetBySigner retrieves all mint records of a signer, ordered by submitted_at ASC.
	GetBySigner(ctx context.Context, signer string) ([]*domain.MintRecord, error)
}
