// Package api exposes the gallery session over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"timeshift-nft/internal/domain"
	"timeshift-nft/internal/observability"
	"timeshift-nft/internal/session"
	"timeshift-nft/internal/storage"
)

// PreviewSize is the number of tokens listed when ?all=false.
const PreviewSize = 3

// Options contains configuration for creating a Server.
type Options struct {
	Session  *session.Session
	Contract string

	Artwork storage.ArtworkStore // optional, serves /api/history
	Mints   storage.MintStore    // optional, serves /api/mints

	Logger *log.Logger
	Now    func() time.Time
}

// Server serves the gallery HTTP API.
type Server struct {
	session  *session.Session
	contract string
	artwork  storage.ArtworkStore
	mints    storage.MintStore
	logger   *log.Logger
	now      func() time.Time
	started  time.Time
}

// New creates a Server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		session:  opts.Session,
		contract: domain.NormalizeAddress(opts.Contract),
		artwork:  opts.Artwork,
		mints:    opts.Mints,
		logger:   logger,
		now:      now,
		started:  now(),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("GET /api/tokens", s.handleTokens)
	mux.HandleFunc("GET /api/tokens/{id}", s.handleToken)
	mux.HandleFunc("GET /api/tokens/{id}/image.svg", s.handleImage)
	mux.HandleFunc("GET /api/featured", s.handleFeatured)
	mux.HandleFunc("POST /api/featured/{id}", s.handleSelect)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/balance", s.handleBalance)
	mux.HandleFunc("GET /api/history/{id}", s.handleHistory)

	mux.HandleFunc("POST /api/mint", s.handleStartMint)
	mux.HandleFunc("GET /api/mint", s.handleMintStatus)
	mux.HandleFunc("DELETE /api/mint", s.handleResetMint)
	mux.HandleFunc("GET /api/mints", s.handleMints)

	return mux
}

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

var errBadTokenID = errors.New("token id must be a non-negative integer")

func tokenID(r *http.Request) (domain.TokenID, error) {
	n, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, errBadTokenID
	}
	return domain.TokenID(n), nil
}
