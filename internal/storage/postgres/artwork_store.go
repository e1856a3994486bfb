package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/storage"
)

// ArtworkStore implements storage.ArtworkStore using PostgreSQL.
type ArtworkStore struct {
	pool *Pool
}

// NewArtworkStore creates a new ArtworkStore.
func NewArtworkStore(pool *Pool) *ArtworkStore {
	return &ArtworkStore{pool: pool}
}

// Record appends rev unless the latest stored revision of the token has the same hash.
// The comparison and the insert run as one statement.
func (s *ArtworkStore) Record(ctx context.Context, rev *domain.ArtworkRevision) (bool, error) {
	if err := storage.ValidateArtworkRevision(rev); err != nil {
		return false, err
	}

	createdAt := rev.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	query := `
		INSERT INTO artwork_revisions (contract, token_id, hash, image, name, observed_at, created_at)
		SELECT $1::text, $2::bigint, $3::text, $4::text, $5::text, $6::bigint, $7::bigint
		WHERE COALESCE((
			SELECT hash FROM artwork_revisions
			WHERE contract = $1::text AND token_id = $2::bigint
			ORDER BY observed_at DESC
			LIMIT 1
		), '') <> $3::text
	`

	start := time.Now()
	tag, err := s.pool.Exec(ctx, query,
		domain.NormalizeAddress(rev.Contract),
		int64(rev.TokenID),
		rev.Hash,
		rev.Image,
		rev.Name,
		rev.ObservedAt,
		createdAt,
	)
	observe("artwork_record", start, err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return false, storage.ErrDuplicateKey
		}
		return false, fmt.Errorf("insert artwork revision: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Latest retrieves the most recent revision of a token. Returns ErrNotFound if none.
func (s *ArtworkStore) Latest(ctx context.Context, contract string, id domain.TokenID) (*domain.ArtworkRevision, error) {
	query := `
		SELECT contract, token_id, hash, image, name, observed_at, created_at
		FROM artwork_revisions
		WHERE contract = $1 AND token_id = $2
		ORDER BY observed_at DESC
		LIMIT 1
	`

	start := time.Now()
	row := s.pool.QueryRow(ctx, query, domain.NormalizeAddress(contract), int64(id))
	rev, err := scanArtworkRevision(row)
	observe("artwork_latest", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query latest artwork revision: %w", err)
	}

	return rev, nil
}

// History retrieves all revisions of a token, ordered by observed_at ASC.
func (s *ArtworkStore) History(ctx context.Context, contract string, id domain.TokenID) ([]*domain.ArtworkRevision, error) {
	query := `
		SELECT contract, token_id, hash, image, name, observed_at, created_at
		FROM artwork_revisions
		WHERE contract = $1 AND token_id = $2
		ORDER BY observed_at ASC
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, domain.NormalizeAddress(contract), int64(id))
	if err != nil {
		observe("artwork_history", start, err)
		return nil, fmt.Errorf("query artwork history: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.ArtworkRevision, 0)
	for rows.Next() {
		rev, err := scanArtworkRevision(rows)
		if err != nil {
			observe("artwork_history", start, err)
			return nil, fmt.Errorf("scan artwork revision: %w", err)
		}
		result = append(result, rev)
	}
	err = rows.Err()
	observe("artwork_history", start, err)
	if err != nil {
		return nil, fmt.Errorf("iterate artwork revisions: %w", err)
	}

	return result, nil
}

func scanArtworkRevision(row pgx.Row) (*domain.ArtworkRevision, error) {
	var (
		rev     domain.ArtworkRevision
		tokenID int64
	)
	err := row.Scan(
		&rev.Contract,
		&tokenID,
		&rev.Hash,
		&rev.Image,
		&rev.Name,
		&rev.ObservedAt,
		&rev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rev.TokenID = domain.TokenID(tokenID)
	return &rev, nil
}

var _ storage.ArtworkStore = (*ArtworkStore)(nil)
