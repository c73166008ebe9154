package revision

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(seed byte) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
}

func TestHashEntry_Deterministic(t *testing.T) {
	type note struct {
		Text string `json:"text"`
		N    int64  `json:"n"`
	}
	a, err := Encode(note{Text: "same", N: 1})
	require.NoError(t, err)
	b, err := Encode(map[string]any{"n": 1, "text": "same"})
	require.NoError(t, err)

	assert.Equal(t, HashEntry(a), HashEntry(b), "identical canonical content must hash identically")
	assert.Len(t, string(HashEntry(a)), 64, "SHA-256 hex is 64 characters")
	assert.True(t, HashEntry(a).Valid())
}

func TestHashEntry_DistinctContentDistinctHash(t *testing.T) {
	seen := make(map[Hash]string)
	for i := 0; i < 500; i++ {
		data, err := Encode(map[string]any{"i": i})
		require.NoError(t, err)
		h := HashEntry(data)
		if prev, dup := seen[h]; dup {
			t.Fatalf("collision between %s and %s", prev, data)
		}
		seen[h] = string(data)
	}
}

func TestHashEntry_IndependentOfAuthorAndTime(t *testing.T) {
	entry := []byte(`{"text":"hello"}`)
	alice, err := Seal(testKey(1), Header{Author: NewAgentID(testKey(1).Public().(ed25519.PublicKey)), Seq: 1, Action: ActionCreate, EntryType: "note", EntryHash: HashEntry(entry), Timestamp: 10}, entry)
	require.NoError(t, err)
	bob, err := Seal(testKey(2), Header{Author: NewAgentID(testKey(2).Public().(ed25519.PublicKey)), Seq: 7, Action: ActionCreate, EntryType: "note", EntryHash: HashEntry(entry), Timestamp: 99}, entry)
	require.NoError(t, err)

	assert.Equal(t, alice.Header.EntryHash, bob.Header.EntryHash)
	assert.NotEqual(t, alice.HeaderHash, bob.HeaderHash, "header addresses differ per write")
}

func TestDomainSeparation(t *testing.T) {
	data := []byte("project_meta")
	assert.NotEqual(t, HashEntry(data), HashPath("project_meta"))
	assert.NotEqual(t, HashPath("agents"), HashPath("member"))
}

func TestHash_Valid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{in: fmt.Sprintf("%064x", 1), want: true},
		{in: "abc", want: false},
		{in: fmt.Sprintf("%064X", 255), want: false},
		{in: fmt.Sprintf("%063x", 1) + "g", want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Hash(tt.in).Valid(), tt.in)
	}

	_, err := ParseHash("nope")
	assert.Error(t, err)
}

func TestAgentID_RoundTripsPublicKey(t *testing.T) {
	pub := testKey(3).Public().(ed25519.PublicKey)
	id := NewAgentID(pub)

	got, err := id.PublicKey()
	require.NoError(t, err)
	assert.Equal(t, pub, got)
	assert.True(t, id.Hash().Valid())

	_, err = AgentID("zz").PublicKey()
	assert.Error(t, err)
	_, err = AgentID("abcd").PublicKey()
	assert.Error(t, err)
}
