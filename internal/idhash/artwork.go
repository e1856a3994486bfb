// Package idhash computes deterministic content hashes.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeArtworkHash computes the deterministic hash of an artwork source.
// Formula: SHA256(src). Returns hex-encoded hash (64 characters).
func ComputeArtworkHash(src string) string {
	hash := sha256.Sum256([]byte(src))
	return hex.EncodeToString(hash[:])
}

// ComputeRevisionID computes a deterministic id of one observed artwork revision.
// Formula: SHA256(contract|token_id|artwork_hash|observed_at)
func ComputeRevisionID(contract string, tokenID uint64, artworkHash string, observedAt int64) string {
	data := fmt.Sprintf("%s|%d|%s|%d",
		contract,
		tokenID,
		artworkHash,
		observedAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
