package revision

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sealed(t *testing.T, seed byte, h Header, entry []byte) Record {
	t.Helper()
	key := testKey(seed)
	h.Author = NewAgentID(key.Public().(ed25519.PublicKey))
	if h.Action != ActionDelete {
		h.EntryHash = HashEntry(entry)
	}
	r, err := Seal(key, h, entry)
	require.NoError(t, err)
	return r
}

func TestSeal_Verifies(t *testing.T) {
	r := sealed(t, 1, Header{Seq: 1, Action: ActionCreate, EntryType: "note", Timestamp: 1}, []byte(`{"a":1}`))
	assert.NoError(t, r.Verify())
}

func TestVerify_DetectsTampering(t *testing.T) {
	base := sealed(t, 1, Header{Seq: 1, Action: ActionCreate, EntryType: "note", Timestamp: 1}, []byte(`{"a":1}`))

	t.Run("header field", func(t *testing.T) {
		r := base
		r.Header.Seq = 2
		assert.ErrorIs(t, r.Verify(), ErrCorruptHeader)
	})

	t.Run("entry bytes", func(t *testing.T) {
		r := base
		r.Entry = []byte(`{"a":2}`)
		assert.ErrorIs(t, r.Verify(), ErrEntryHashMismatch)
	})

	t.Run("foreign signature", func(t *testing.T) {
		r := base
		r.Signature = ed25519.Sign(testKey(2), []byte(r.HeaderHash))
		assert.ErrorIs(t, r.Verify(), ErrBadSignature)
	})

	t.Run("unknown action", func(t *testing.T) {
		r := base
		r.Header.Action = "merge"
		assert.ErrorIs(t, r.Verify(), ErrCorruptHeader)
	})
}

func TestVerify_DeleteHasNoEntry(t *testing.T) {
	orig := sealed(t, 1, Header{Seq: 1, Action: ActionCreate, EntryType: "note", Timestamp: 1}, []byte(`{"a":1}`))
	del := sealed(t, 1, Header{Seq: 2, Prev: orig.HeaderHash, Action: ActionDelete, EntryType: "note", OriginalHeader: orig.HeaderHash, Timestamp: 2}, nil)
	assert.NoError(t, del.Verify())
	assert.Empty(t, del.Header.EntryHash)
}

func TestHeaderHash_ExcludesSignature(t *testing.T) {
	h := Header{Author: "aa", Seq: 1, Action: ActionCreate, EntryType: "note", Timestamp: 5}
	a, err := h.Hash()
	require.NoError(t, err)
	b, err := h.Hash()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	h.Timestamp = 6
	c, err := h.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
