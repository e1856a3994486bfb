// Package metadata decodes on-chain token URIs into metadata payloads and inline SVG.
package metadata

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"timeshift-nft/internal/domain"
)

// Sentinel errors.
var (
	// ErrInvalidURI is returned when a URI has no comma-separated payload segment.
	ErrInvalidURI = errors.New("invalid metadata uri")

	// ErrInvalidPayload is returned when the payload is not base64 JSON.
	ErrInvalidPayload = errors.New("invalid metadata payload")
)

// SVGPrefix is the data URI prefix of an inline base64 SVG image.
const SVGPrefix = "data:image/svg+xml;base64,"

// JSONPrefix is the data URI prefix the contract uses for token metadata.
const JSONPrefix = "data:application/json;base64,"

// DecodeTokenURI decodes a data URI carrying base64 JSON.
// Only the segment after the first comma is decoded; the media type is not checked.
func DecodeTokenURI(uri string) (domain.MetadataPayload, error) {
	_, payload, ok := strings.Cut(uri, ",")
	if !ok {
		return domain.MetadataPayload{}, fmt.Errorf("%w: missing comma separator", ErrInvalidURI)
	}
	// A second comma ends the payload segment.
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[:i]
	}

	raw, err := decodeBase64(payload)
	if err != nil {
		return domain.MetadataPayload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.MetadataPayload{}, fmt.Errorf("%w: not a json object", ErrInvalidPayload)
	}

	var md domain.MetadataPayload
	if err := json.Unmarshal(raw, &md); err != nil {
		return domain.MetadataPayload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	md.Raw = raw
	return md, nil
}

// DecodeSVG returns the inline SVG of an image data URI.
// Images that are not base64 SVG data URIs yield an empty string and no error.
func DecodeSVG(image string) (string, error) {
	if !strings.HasPrefix(image, SVGPrefix) {
		return "", nil
	}
	svg, err := decodeBase64(strings.TrimPrefix(image, SVGPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: svg: %v", ErrInvalidPayload, err)
	}
	return string(svg), nil
}

// DecodeToken decodes uri into a token snapshot fetched at fetchedAt (ms).
func DecodeToken(id domain.TokenID, uri string, fetchedAt int64) (domain.Token, error) {
	md, err := DecodeTokenURI(uri)
	if err != nil {
		return domain.Token{}, err
	}
	svg, err := DecodeSVG(md.Image)
	if err != nil {
		return domain.Token{}, err
	}
	return domain.Token{
		ID:        id,
		Metadata:  md,
		SVG:       svg,
		FetchedAt: fetchedAt,
	}, nil
}

// decodeBase64 accepts padded and unpadded standard base64, ignoring surrounding whitespace.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty payload")
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
