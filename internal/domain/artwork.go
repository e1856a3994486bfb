package domain

// ArtworkRevision is one observed version of a token's artwork.
// Corresponds to artwork_revisions table in PostgreSQL.
type ArtworkRevision struct {
	Contract   string  // normalized contract address
	TokenID    TokenID // token within the contract
	Hash       string  // hex SHA-256 of the decoded SVG
	Image      string  // image data URI as returned in metadata
	Name       *string // metadata name (nullable)
	ObservedAt int64   // when the revision was first seen (ms)
	CreatedAt  int64   // record creation timestamp (ms)
}
