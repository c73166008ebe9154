package revision

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEntry  = "acorn/entry/v1"
	DomainHeader = "acorn/header/v1"
	DomainPath   = "acorn/path/v1"
	DomainAgent  = "acorn/agent/v1"
)

// Hash is a lowercase hex SHA-256 digest.
type Hash string

// String returns the hex form.
func (h Hash) String() string { return string(h) }

// Valid reports whether h is 64 lowercase hex characters.
func (h Hash) Valid() bool {
	if len(h) != sha256.Size*2 {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ParseHash validates s and returns it as a Hash.
func ParseHash(s string) (Hash, error) {
	h := Hash(s)
	if !h.Valid() {
		return "", fmt.Errorf("invalid hash %q", s)
	}
	return h, nil
}

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) Hash {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// HashEntry returns the content hash of canonical entry bytes.
// Identical bytes always produce the identical hash.
func HashEntry(entry []byte) Hash {
	return hashWithDomain(DomainEntry, entry)
}

// HashPath returns the anchor address of a well-known path name.
func HashPath(name string) Hash {
	return hashWithDomain(DomainPath, []byte(name))
}

// AgentID is the hex form of an author's ed25519 public key.
type AgentID string

// NewAgentID derives the AgentID for a public key.
func NewAgentID(pub ed25519.PublicKey) AgentID {
	return AgentID(hex.EncodeToString(pub))
}

// String returns the hex form.
func (a AgentID) String() string { return string(a) }

// PublicKey decodes the ed25519 key behind the identity.
func (a AgentID) PublicKey() (ed25519.PublicKey, error) {
	b, err := hex.DecodeString(string(a))
	if err != nil {
		return nil, fmt.Errorf("agent id: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("agent id: want %d key bytes, got %d", ed25519.PublicKeySize, len(b))
	}
	return ed25519.PublicKey(b), nil
}

// Hash is the identity hash used as the base of per-agent index links.
func (a AgentID) Hash() Hash {
	return hashWithDomain(DomainAgent, []byte(a))
}
