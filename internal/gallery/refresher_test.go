package gallery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/gateway/stub"
)

// recordingStore is a minimal storage.ArtworkStore keeping the last hash per token.
type recordingStore struct {
	mu   sync.Mutex
	revs []*domain.ArtworkRevision
	last map[domain.TokenID]string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{last: make(map[domain.TokenID]string)}
}

func (s *recordingStore) Record(_ context.Context, rev *domain.ArtworkRevision) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last[rev.TokenID] == rev.Hash {
		return false, nil
	}
	s.last[rev.TokenID] = rev.Hash
	s.revs = append(s.revs, rev)
	return true, nil
}

func (s *recordingStore) Latest(context.Context, string, domain.TokenID) (*domain.ArtworkRevision, error) {
	return nil, errors.New("not implemented")
}

func (s *recordingStore) History(context.Context, string, domain.TokenID) ([]*domain.ArtworkRevision, error) {
	return nil, errors.New("not implemented")
}

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.revs)
}

func resolveAll(t *testing.T, gw *stub.Gateway) *domain.OwnershipSet {
	t.Helper()
	set, err := NewResolver(ResolverOptions{Logger: quiet}).Resolve(context.Background(), gw, ownerAddr)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return set
}

func TestRefresher_UpdatesArtwork(t *testing.T) {
	gw := newUniverse(3, 0, 1, 2)
	set := resolveAll(t, gw)

	gw.SetURI(1, stub.TokenURI("TimeShift #1", svgFor(1, "dusk")))

	r := NewRefresher(RefresherOptions{Logger: quiet})
	out := r.Refresh(context.Background(), gw, set)

	if out.Len() != 3 {
		t.Fatalf("expected 3 tokens, got %d", out.Len())
	}
	if out.Tokens[1].SVG != svgFor(1, "dusk") {
		t.Errorf("expected refreshed svg, got %q", out.Tokens[1].SVG)
	}
	if set.Tokens[1].SVG != svgFor(1, "dawn") {
		t.Error("input set was modified")
	}
}

func TestRefresher_FailingTokenKeepsSnapshot(t *testing.T) {
	gw := newUniverse(5, 0, 1, 2, 3, 4)
	set := resolveAll(t, gw)

	for i := 0; i < 5; i++ {
		gw.SetURI(domain.TokenID(i), stub.TokenURI("new", svgFor(i, "noon")))
	}
	gw.FailURI(3, errors.New("timeout"))

	r := NewRefresher(RefresherOptions{Logger: quiet})
	out := r.Refresh(context.Background(), gw, set)

	if out.Len() != set.Len() {
		t.Fatalf("expected size %d, got %d", set.Len(), out.Len())
	}
	for i, tok := range out.Tokens {
		if tok.ID != set.Tokens[i].ID {
			t.Fatalf("order changed at %d: %d != %d", i, tok.ID, set.Tokens[i].ID)
		}
		if i == 3 {
			if tok.SVG != set.Tokens[3].SVG || tok.FetchedAt != set.Tokens[3].FetchedAt {
				t.Errorf("token 3 should keep its previous snapshot, got %+v", tok)
			}
			continue
		}
		if tok.SVG != svgFor(i, "noon") {
			t.Errorf("token %d not refreshed: %q", i, tok.SVG)
		}
	}
}

func TestRefresher_MalformedKeepsSnapshot(t *testing.T) {
	gw := newUniverse(2, 0, 1)
	set := resolveAll(t, gw)

	gw.SetURI(0, "data:application/json;base64,")

	out := NewRefresher(RefresherOptions{Workers: 1, Logger: quiet}).Refresh(context.Background(), gw, set)
	if out.Tokens[0].Metadata.Name != "TimeShift #0" {
		t.Errorf("expected token 0 to keep its name, got %q", out.Tokens[0].Metadata.Name)
	}
}

func TestRefresher_EmptySet(t *testing.T) {
	r := NewRefresher(RefresherOptions{Logger: quiet})

	if out := r.Refresh(context.Background(), newUniverse(0), nil); out != nil {
		t.Errorf("expected nil for nil set, got %+v", out)
	}
	empty := &domain.OwnershipSet{Owner: ownerAddr}
	if out := r.Refresh(context.Background(), newUniverse(0), empty); out.Len() != 0 {
		t.Errorf("expected empty set, got %+v", out)
	}
}

func TestRefresher_RecordsChangedArtwork(t *testing.T) {
	gw := newUniverse(2, 0, 1)
	set := resolveAll(t, gw)

	store := newRecordingStore()
	now := time.UnixMilli(1_700_000_000_000)
	r := NewRefresher(RefresherOptions{
		Store:    store,
		Contract: "0xC0",
		Logger:   quiet,
		Now:      func() time.Time { return now },
	})

	r.Record(context.Background(), set)
	if store.count() != 2 {
		t.Fatalf("expected 2 initial revisions, got %d", store.count())
	}

	// Unchanged artwork is not recorded again
	out := r.Refresh(context.Background(), gw, set)
	if store.count() != 2 {
		t.Errorf("expected no new revisions, got %d", store.count())
	}

	gw.SetURI(1, stub.TokenURI("TimeShift #1", svgFor(1, "night")))
	r.Refresh(context.Background(), gw, out)
	if store.count() != 3 {
		t.Fatalf("expected 3 revisions, got %d", store.count())
	}

	rev := store.revs[2]
	if rev.TokenID != 1 || rev.Contract != "0xc0" || rev.ObservedAt != now.UnixMilli() {
		t.Errorf("unexpected revision %+v", rev)
	}
	if rev.Name == nil || *rev.Name != "TimeShift #1" {
		t.Errorf("expected revision name, got %v", rev.Name)
	}
}

func TestRefresher_CancelledCycle(t *testing.T) {
	gw := newUniverse(3, 0, 1, 2)
	set := resolveAll(t, gw)

	for i := 0; i < 3; i++ {
		gw.SetURI(domain.TokenID(i), stub.TokenURI("late", svgFor(i, "late")))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := NewRefresher(RefresherOptions{Logger: quiet}).Refresh(ctx, gw, set)
	for i, tok := range out.Tokens {
		if tok.SVG != set.Tokens[i].SVG {
			t.Errorf("token %d refreshed after cancellation", tok.ID)
		}
	}
}

func TestArtworkHash(t *testing.T) {
	a := domain.Token{SVG: "<svg/>"}
	b := domain.Token{SVG: "<svg/>", FetchedAt: 99}
	c := domain.Token{Metadata: domain.MetadataPayload{Image: "ipfs://x"}}

	if ArtworkHash(a) != ArtworkHash(b) {
		t.Error("hash should depend on artwork only")
	}
	if ArtworkHash(a) == ArtworkHash(c) {
		t.Error("different artwork should hash differently")
	}
	if len(ArtworkHash(a)) != 64 {
		t.Errorf("expected hex sha-256, got %q", ArtworkHash(a))
	}
}
