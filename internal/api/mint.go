package api

import (
	"errors"
	"net/http"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/mint"
	"timeshift-nft/internal/session"
)

var (
	errNoSigner = errors.New("minting is disabled: no signer configured")
	errNoMints  = errors.New("mint history is not configured")
)

func (s *Server) handleStartMint(w http.ResponseWriter, r *http.Request) {
	gw := s.session.Gateway()
	if gw == nil {
		s.writeError(w, http.StatusConflict, errUnbound)
		return
	}
	if gw.Signer() == "" {
		s.writeError(w, http.StatusServiceUnavailable, errNoSigner)
		return
	}

	if err := s.session.StartMint(); err != nil {
		switch {
		case errors.Is(err, mint.ErrMintInProgress):
			s.writeError(w, http.StatusConflict, err)
		case errors.Is(err, session.ErrClosed):
			s.writeError(w, http.StatusServiceUnavailable, err)
		default:
			s.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	s.writeJSON(w, http.StatusAccepted, s.session.Minter().Status())
}

func (s *Server) handleMintStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.Minter().Status())
}

func (s *Server) handleResetMint(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Minter().Reset(); err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.session.Minter().Status())
}

// MintRecordResponse is one persisted mint outcome.
type MintRecordResponse struct {
	TxHash      string           `json:"tx_hash"`
	Phase       domain.MintPhase `json:"phase"`
	BlockNumber *uint64          `json:"block_number,omitempty"`
	Error       *string          `json:"error,omitempty"`
	ExplorerURL string           `json:"explorer_url"`
	SubmittedAt int64            `json:"submitted_at"`
	FinishedAt  int64            `json:"finished_at"`
}

func (s *Server) handleMints(w http.ResponseWriter, r *http.Request) {
	if s.mints == nil {
		s.writeError(w, http.StatusNotImplemented, errNoMints)
		return
	}
	gw := s.session.Gateway()
	if gw == nil || gw.Signer() == "" {
		s.writeJSON(w, http.StatusOK, []MintRecordResponse{})
		return
	}

	records, err := s.mints.GetBySigner(r.Context(), gw.Signer())
	if err != nil {
		s.logger.Printf("mint records of %s: %v", gw.Signer(), err)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	minter := s.session.Minter()
	resp := make([]MintRecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, MintRecordResponse{
			TxHash:      rec.TxHash,
			Phase:       rec.Phase,
			BlockNumber: rec.BlockNumber,
			Error:       rec.Error,
			ExplorerURL: minter.ExplorerURL(rec.TxHash),
			SubmittedAt: rec.SubmittedAt,
			FinishedAt:  rec.FinishedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}
