package domain

import "strconv"

// TokenID identifies one token within a contract instance.
// Ids are dense and contiguous from 0 to the contract's token counter.
type TokenID uint64

// MetadataPayload is the JSON document embedded in a token URI.
type MetadataPayload struct {
	Name        string      `json:"name,omitempty"`
	Description string      `json:"description,omitempty"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes,omitempty"`

	// Raw holds the decoded JSON bytes exactly as returned by the contract.
	Raw []byte `json:"-"`
}

// Attribute is an ERC-721 metadata trait.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

// Token is an immutable snapshot of one owned token.
type Token struct {
	ID        TokenID
	Metadata  MetadataPayload
	SVG       string // decoded inline image, empty if image is not an SVG data URI
	FetchedAt int64  // when metadata was fetched (ms)
}

// DisplayName returns the metadata name or a fallback built from the id.
func (t Token) DisplayName() string {
	if t.Metadata.Name != "" {
		return t.Metadata.Name
	}
	return "TimeShift NFT #" + strconv.FormatUint(uint64(t.ID), 10)
}

// OwnershipSet is the result of one resolution pass.
// Tokens are ordered ascending by ID.
type OwnershipSet struct {
	Owner      string // normalized owner address
	Tokens     []Token
	ResolvedAt int64 // ms
}

// Len returns the number of tokens in the set. Safe on nil.
func (s *OwnershipSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Tokens)
}

// Find returns the token with the given id.
func (s *OwnershipSet) Find(id TokenID) (Token, bool) {
	if s == nil {
		return Token{}, false
	}
	for _, t := range s.Tokens {
		if t.ID == id {
			return t, true
		}
	}
	return Token{}, false
}

// MaxID returns the highest owned token id. ok is false for an empty set.
func (s *OwnershipSet) MaxID() (id TokenID, ok bool) {
	for _, t := range s.tokens() {
		if !ok || t.ID > id {
			id, ok = t.ID, true
		}
	}
	return id, ok
}

// Clone returns a copy whose token slice can be replaced independently.
func (s *OwnershipSet) Clone() *OwnershipSet {
	if s == nil {
		return nil
	}
	out := *s
	out.Tokens = make([]Token, len(s.Tokens))
	copy(out.Tokens, s.Tokens)
	return &out
}

func (s *OwnershipSet) tokens() []Token {
	if s == nil {
		return nil
	}
	return s.Tokens
}
