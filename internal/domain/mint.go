package domain

// MintPhase is the observable state of a mint operation.
type MintPhase string

const (
	MintPhaseIdle                MintPhase = "idle"
	MintPhasePendingSubmission   MintPhase = "pending_submission"
	MintPhasePendingConfirmation MintPhase = "pending_confirmation"
	MintPhaseConfirmed           MintPhase = "confirmed"
	MintPhaseFailed              MintPhase = "failed"
)

// String returns the string representation of MintPhase.
func (p MintPhase) String() string {
	return string(p)
}

// IsTerminal reports whether no further transitions follow.
func (p MintPhase) IsTerminal() bool {
	return p == MintPhaseConfirmed || p == MintPhaseFailed
}

// MintResult describes a confirmed mint transaction.
type MintResult struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	Status      uint64 `json:"status"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}

// MintRecord is a persisted outcome of one submitted mint transaction.
// Corresponds to mint_transactions table in PostgreSQL.
type MintRecord struct {
	TxHash      string    // transaction hash
	Contract    string    // normalized contract address
	Signer      string    // normalized sender address
	Phase       MintPhase // terminal phase: confirmed or failed
	BlockNumber *uint64   // block of inclusion (nullable)
	Error       *string   // failure reason (nullable)
	SubmittedAt int64     // when the hash was observed (ms)
	FinishedAt  int64     // when the terminal phase was reached (ms)
}
