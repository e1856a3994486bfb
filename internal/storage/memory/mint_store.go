package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/storage"
)

// MintStore is an in-memory implementation of storage.MintStore.
type MintStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MintRecord // keyed by tx_hash
}

// NewMintStore creates a new in-memory mint record store.
func NewMintStore() *MintStore {
	return &MintStore{
		data: make(map[string]*domain.MintRecord),
	}
}

// Insert adds a mint record. Returns ErrDuplicateKey if tx_hash exists.
func (s *MintStore) Insert(_ context.Context, m *domain.MintRecord) error {
	if err := storage.ValidateMintRecord(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[m.TxHash]; exists {
		return storage.ErrDuplicateKey
	}

	recCopy := *m
	recCopy.Signer = domain.NormalizeAddress(m.Signer)
	recCopy.Contract = domain.NormalizeAddress(m.Contract)
	s.data[m.TxHash] = &recCopy
	return nil
}

// GetByTxHash retrieves a mint record by transaction hash. Returns ErrNotFound if not exists.
func (s *MintStore) GetByTxHash(_ context.Context, txHash string) (*domain.MintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[txHash]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recCopy := *m
	return &recCopy, nil
}

// GetBySigner retrieves all mint records of a signer, ordered by submitted_at ASC.
func (s *MintStore) GetBySigner(_ context.Context, signer string) ([]*domain.MintRecord, error) {
	signer = domain.NormalizeAddress(signer)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MintRecord
	for _, m := range s.data {
		if m.Signer == signer {
			recCopy := *m
			result = append(result, &recCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SubmittedAt != result[j].SubmittedAt {
			return result[i].SubmittedAt < result[j].SubmittedAt
		}
		return result[i].TxHash < result[j].TxHash
	})
	return result, nil
}

var _ storage.MintStore = (*MintStore)(nil)

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
