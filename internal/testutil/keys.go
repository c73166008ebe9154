package testutil

import (
	"crypto/ed25519"

	"github.com/roach88/acorn/internal/revision"
)

// Key returns a deterministic ed25519 key. Equal seeds give equal keys,
// so AgentIDs are stable across test runs.
func Key(seed byte) ed25519.PrivateKey {
	s := make([]byte, ed25519.SeedSize)
	for i := range s {
		s[i] = seed
	}
	return ed25519.NewKeyFromSeed(s)
}

// Agent returns the AgentID of Key(seed).
func Agent(seed byte) revision.AgentID {
	return revision.NewAgentID(Key(seed).Public().(ed25519.PublicKey))
}
