package storage

import (
	"fmt"

	"timeshift-nft/internal/domain"
)

// ValidateArtworkRevision checks the fields every store requires.
func ValidateArtworkRevision(rev *domain.ArtworkRevision) error {
	switch {
	case rev == nil:
		return fmt.Errorf("%w: nil revision", ErrInvalidInput)
	case rev.Contract == "":
		return fmt.Errorf("%w: empty contract", ErrInvalidInput)
	case rev.Hash == "":
		return fmt.Errorf("%w: empty hash", ErrInvalidInput)
	case rev.ObservedAt <= 0:
		return fmt.Errorf("%w: observed_at must be positive", ErrInvalidInput)
	}
	return nil
}

// ValidateMintRecord checks the fields every store requires.
func ValidateMintRecord(m *domain.MintRecord) error {
	switch {
	case m == nil:
		return fmt.Errorf("%w: nil mint record", ErrInvalidInput)
	case m.TxHash == "":
		return fmt.Errorf("%w: empty tx hash", ErrInvalidInput)
	case m.Signer == "":
		return fmt.Errorf("%w: empty signer", ErrInvalidInput)
	case !m.Phase.IsTerminal():
		return fmt.Errorf("%w: phase %s is not terminal", ErrInvalidInput, m.Phase)
	}
	return nil
}
