package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/storage"
)

// MintStore implements storage.MintStore using PostgreSQL.
type MintStore struct {
	pool *Pool
}

// NewMintStore creates a new MintStore.
func NewMintStore(pool *Pool) *MintStore {
	return &MintStore{pool: pool}
}

// Insert adds a mint record. Returns ErrDuplicateKey if tx_hash exists.
func (s *MintStore) Insert(ctx context.Context, m *domain.MintRecord) error {
	if err := storage.ValidateMintRecord(m); err != nil {
		return err
	}

	var blockNumber *int64
	if m.BlockNumber != nil {
		n := int64(*m.BlockNumber)
		blockNumber = &n
	}

	query := `
		INSERT INTO mint_transactions (tx_hash, contract, signer, phase, block_number, error, submitted_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		m.TxHash,
		domain.NormalizeAddress(m.Contract),
		domain.NormalizeAddress(m.Signer),
		string(m.Phase),
		blockNumber,
		m.Error,
		m.SubmittedAt,
		m.FinishedAt,
	)
	observe("mint_insert", start, err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert mint record: %w", err)
	}

	return nil
}

// GetByTxHash retrieves a mint record by transaction hash. Returns ErrNotFound if not exists.
func (s *MintStore) GetByTxHash(ctx context.Context, txHash string) (*domain.MintRecord, error) {
	query := `
		SELECT tx_hash, contract, signer, phase, block_number, error, submitted_at, finished_at
		FROM mint_transactions
		WHERE tx_hash = $1
	`

	start := time.Now()
	m, err := scanMintRecord(s.pool.QueryRow(ctx, query, txHash))
	observe("mint_get", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query mint record: %w", err)
	}

	return m, nil
}

// GetBySigner retrieves all mint records of a signer, ordered by submitted_at ASC.
func (s *MintStore) GetBySigner(ctx context.Context, signer string) ([]*domain.MintRecord, error) {
	query := `
		SELECT tx_hash, contract, signer, phase, block_number, error, submitted_at, finished_at
		FROM mint_transactions
		WHERE signer = $1
		ORDER BY submitted_at ASC, tx_hash ASC
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, domain.NormalizeAddress(signer))
	if err != nil {
		observe("mint_by_signer", start, err)
		return nil, fmt.Errorf("query mint records: %w", err)
	}
	defer rows.Close()

	var result []*domain.MintRecord
	for rows.Next() {
		m, err := scanMintRecord(rows)
		if err != nil {
			observe("mint_by_signer", start, err)
			return nil, fmt.Errorf("scan mint record: %w", err)
		}
		result = append(result, m)
	}
	err = rows.Err()
	observe("mint_by_signer", start, err)
	if err != nil {
		return nil, fmt.Errorf("iterate mint records: %w", err)
	}

	return result, nil
}

func scanMintRecord(row pgx.Row) (*domain.MintRecord, error) {
	var (
		m           domain.MintRecord
		phase       string
		blockNumber *int64
	)
	err := row.Scan(
		&m.TxHash,
		&m.Contract,
		&m.Signer,
		&phase,
		&blockNumber,
		&m.Error,
		&m.SubmittedAt,
		&m.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Phase = domain.MintPhase(phase)
	if blockNumber != nil {
		n := uint64(*blockNumber)
		m.BlockNumber = &n
	}
	return &m, nil
}

var _ storage.MintStore = (*MintStore)(nil)
