package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/evm"
	"timeshift-nft/internal/gallery"
	"timeshift-nft/internal/idhash"
	"timeshift-nft/internal/session"
)

// balanceTimeout bounds the balance lookup of one request.
const balanceTimeout = 10 * time.Second

var (
	errNotOwned  = errors.New("token not owned")
	errNoImage   = errors.New("token has no inline svg image")
	errNoFeature = errors.New("no featured token")
	errUnbound   = errors.New("gallery is not connected to a wallet")
	errNoHistory = errors.New("artwork history is not configured")
)

// TokenResponse is the JSON form of an owned token.
type TokenResponse struct {
	ID          domain.TokenID     `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Image       string             `json:"image"`
	Attributes  []domain.Attribute `json:"attributes,omitempty"`
	ArtworkHash string             `json:"artwork_hash"`
	HasSVG      bool               `json:"has_svg"`
	FetchedAt   int64              `json:"fetched_at"`
}

func newTokenResponse(t domain.Token) TokenResponse {
	return TokenResponse{
		ID:          t.ID,
		Name:        t.DisplayName(),
		Description: t.Metadata.Description,
		Image:       t.Metadata.Image,
		Attributes:  t.Metadata.Attributes,
		ArtworkHash: gallery.ArtworkHash(t),
		HasSVG:      t.SVG != "",
		FetchedAt:   t.FetchedAt,
	}
}

// GalleryResponse is the JSON form of the session state.
type GalleryResponse struct {
	Owner       string          `json:"owner"`
	Loading     bool            `json:"loading"`
	Error       string          `json:"error,omitempty"`
	Generation  uint64          `json:"generation"`
	FeaturedID  *domain.TokenID `json:"featured_id,omitempty"`
	Total       int             `json:"total"`
	Tokens      []TokenResponse `json:"tokens"`
	ResolvedAt  int64           `json:"resolved_at,omitempty"`
	RefreshedAt int64           `json:"refreshed_at,omitempty"`
	Refreshing  bool            `json:"refreshing"`
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	st := s.session.State()

	tokens := st.Tokens
	if all, err := strconv.ParseBool(r.URL.Query().Get("all")); err == nil && !all && len(tokens) > PreviewSize {
		tokens = tokens[:PreviewSize]
	}

	resp := GalleryResponse{
		Owner:       st.Owner,
		Loading:     st.Loading,
		Error:       st.Error,
		Generation:  st.Generation,
		FeaturedID:  st.FeaturedID,
		Total:       len(st.Tokens),
		Tokens:      make([]TokenResponse, 0, len(tokens)),
		ResolvedAt:  st.ResolvedAt,
		RefreshedAt: st.RefreshedAt,
		Refreshing:  st.Refreshing,
	}
	for _, t := range tokens {
		resp.Tokens = append(resp.Tokens, newTokenResponse(t))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// owned looks up the {id} path token in the current state.
func (s *Server) owned(w http.ResponseWriter, r *http.Request) (domain.Token, bool) {
	id, err := tokenID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return domain.Token{}, false
	}
	for _, t := range s.session.State().Tokens {
		if t.ID == id {
			return t, true
		}
	}
	s.writeError(w, http.StatusNotFound, errNotOwned)
	return domain.Token{}, false
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	t, ok := s.owned(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, newTokenResponse(t))
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	t, ok := s.owned(w, r)
	if !ok {
		return
	}
	if t.SVG == "" {
		s.writeError(w, http.StatusNotFound, errNoImage)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(t.SVG))
}

func (s *Server) handleFeatured(w http.ResponseWriter, r *http.Request) {
	t, ok := s.session.State().Featured()
	if !ok {
		s.writeError(w, http.StatusNotFound, errNoFeature)
		return
	}
	s.writeJSON(w, http.StatusOK, newTokenResponse(t))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, err := tokenID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.session.Select(id); err != nil {
		if errors.Is(err, session.ErrNotOwned) {
			s.writeError(w, http.StatusNotFound, errNotOwned)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.handleFeatured(w, r)
}

// RefreshResponse reports the generation of a triggered resolution pass.
type RefreshResponse struct {
	Generation uint64 `json:"generation"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.session.Gateway() == nil {
		s.writeError(w, http.StatusConflict, errUnbound)
		return
	}
	gen := s.session.Refresh()
	s.writeJSON(w, http.StatusAccepted, RefreshResponse{Generation: gen})
}

// BalanceResponse is the signer's balance.
type BalanceResponse struct {
	Address string `json:"address"`
	Wei     string `json:"wei"`
	Ether   string `json:"ether"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	gw := s.session.Gateway()
	if gw == nil {
		s.writeError(w, http.StatusConflict, errUnbound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), balanceTimeout)
	defer cancel()

	wei, err := gw.Balance(ctx)
	if err != nil {
		s.logger.Printf("balance lookup failed: %v", err)
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, BalanceResponse{
		Address: gw.Signer(),
		Wei:     wei.String(),
		Ether:   evm.FormatEther(wei),
	})
}

// RevisionResponse is one stored artwork revision.
type RevisionResponse struct {
	ID         string  `json:"id"`
	Hash       string  `json:"hash"`
	Image      string  `json:"image"`
	Name       *string `json:"name,omitempty"`
	ObservedAt int64   `json:"observed_at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := tokenID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.artwork == nil {
		s.writeError(w, http.StatusNotImplemented, errNoHistory)
		return
	}

	revs, err := s.artwork.History(r.Context(), s.contract, id)
	if err != nil {
		s.logger.Printf("artwork history of token %d: %v", id, err)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := make([]RevisionResponse, 0, len(revs))
	for _, rev := range revs {
		resp = append(resp, RevisionResponse{
			ID:         idhash.ComputeRevisionID(rev.Contract, uint64(rev.TokenID), rev.Hash, rev.ObservedAt),
			Hash:       rev.Hash,
			Image:      rev.Image,
			Name:       rev.Name,
			ObservedAt: rev.ObservedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}
