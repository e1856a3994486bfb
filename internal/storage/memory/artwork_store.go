package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/storage"
)

// ArtworkStore is an in-memory implementation of storage.ArtworkStore.
type ArtworkStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.ArtworkRevision // keyed by contract|token_id, ordered by observed_at
	now  func() int64
}

// NewArtworkStore creates a new in-memory artwork revision store.
func NewArtworkStore() *ArtworkStore {
	return &ArtworkStore{
		data: make(map[string][]*domain.ArtworkRevision),
		now:  nowMillis,
	}
}

func artworkKey(contract string, id domain.TokenID) string {
	return fmt.Sprintf("%s|%d", domain.NormalizeAddress(contract), id)
}

// Record appends rev unless the latest revision of the token has the same hash.
// Returns ErrDuplicateKey if a revision with the same observed_at exists.
func (s *ArtworkStore) Record(_ context.Context, rev *domain.ArtworkRevision) (bool, error) {
	if err := storage.ValidateArtworkRevision(rev); err != nil {
		return false, err
	}

	key := artworkKey(rev.Contract, rev.TokenID)

	s.mu.Lock()
	defer s.mu.Unlock()

	revs := s.data[key]
	if n := len(revs); n > 0 && revs[n-1].Hash == rev.Hash {
		return false, nil
	}
	for _, existing := range revs {
		if existing.ObservedAt == rev.ObservedAt {
			return false, storage.ErrDuplicateKey
		}
	}

	revCopy := *rev
	revCopy.Contract = domain.NormalizeAddress(rev.Contract)
	if revCopy.CreatedAt == 0 {
		revCopy.CreatedAt = s.now()
	}

	revs = append(revs, &revCopy)
	sort.SliceStable(revs, func(i, j int) bool {
		return revs[i].ObservedAt < revs[j].ObservedAt
	})
	s.data[key] = revs
	return true, nil
}

// Latest retrieves the most recent revision of a token. Returns ErrNotFound if none.
func (s *ArtworkStore) Latest(_ context.Context, contract string, id domain.TokenID) (*domain.ArtworkRevision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	revs := s.data[artworkKey(contract, id)]
	if len(revs) == 0 {
		return nil, storage.ErrNotFound
	}

	revCopy := *revs[len(revs)-1]
	return &revCopy, nil
}

// History retrieves all revisions of a token, ordered by observed_at ASC.
func (s *ArtworkStore) History(_ context.Context, contract string, id domain.TokenID) ([]*domain.ArtworkRevision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	revs := s.data[artworkKey(contract, id)]
	result := make([]*domain.ArtworkRevision, 0, len(revs))
	for _, r := range revs {
		revCopy := *r
		result = append(result, &revCopy)
	}
	return result, nil
}

var _ storage.ArtworkStore = (*ArtworkStore)(nil)
