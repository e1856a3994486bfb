package api

import (
	"net/http"
	"time"

	"timeshift-nft/internal/domain"
)

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status        string           `json:"status"`
	Uptime        string           `json:"uptime"`
	StartedAt     time.Time        `json:"started_at"`
	Contract      string           `json:"contract"`
	Owner         string           `json:"owner,omitempty"`
	Generation    uint64           `json:"generation"`
	Loading       bool             `json:"loading"`
	Tokens        int              `json:"tokens"`
	Refreshing    bool             `json:"refreshing"`
	RefreshCycles uint64           `json:"refresh_cycles"`
	MintPhase     domain.MintPhase `json:"mint_phase"`
	LastError     string           `json:"last_error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.session.State()

	status := "running"
	switch {
	case st.Owner == "":
		status = "unbound"
	case st.Loading:
		status = "loading"
	case st.Error != "":
		status = "degraded"
	}

	s.writeJSON(w, http.StatusOK, StatusResponse{
		Status:        status,
		Uptime:        s.now().Sub(s.started).Round(time.Second).String(),
		StartedAt:     s.started,
		Contract:      s.contract,
		Owner:         st.Owner,
		Generation:    st.Generation,
		Loading:       st.Loading,
		Tokens:        len(st.Tokens),
		Refreshing:    st.Refreshing,
		RefreshCycles: s.session.Cycles(),
		MintPhase:     s.session.Minter().Status().Phase,
		LastError:     st.Error,
	})
}
