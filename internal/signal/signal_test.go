package signal

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/acorn/internal/revision"
)

type goal struct {
	Title string `json:"title"`
}

func wire() revision.WireElement[goal] {
	return revision.WireElement[goal]{
		Entry:      goal{Title: "Ship v1"},
		HeaderHash: revision.Hash(strings.Repeat("a", 64)),
		EntryHash:  revision.Hash(strings.Repeat("b", 64)),
	}
}

func TestPack_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	create, err := New("goal", ActionCreate, wire())
	require.NoError(t, err)
	b, err := Pack(create)
	require.NoError(t, err)
	g.Assert(t, "create_goal", b)

	del, err := New("goal_member", ActionDelete, revision.Hash(strings.Repeat("c", 64)))
	require.NoError(t, err)
	b, err = Pack(del)
	require.NoError(t, err)
	g.Assert(t, "delete_goal_member", b)
}

func TestUnpack_RoundTrip(t *testing.T) {
	s, err := New("goal", ActionUpdate, wire())
	require.NoError(t, err)
	b, err := Pack(s)
	require.NoError(t, err)

	got, err := Unpack(b)
	require.NoError(t, err)
	assert.Equal(t, "goal", got.EntryType)
	assert.Equal(t, ActionUpdate, got.Action)

	var w revision.WireElement[goal]
	require.NoError(t, got.DecodeData(&w))
	assert.Equal(t, wire(), w)
}

func TestLayersAreIndependent(t *testing.T) {
	s, err := New("goal", ActionCreate, wire())
	require.NoError(t, err)
	inner, err := Encode(s)
	require.NoError(t, err)
	outer, err := Wrap(inner)
	require.NoError(t, err)

	// the outer layer does not expose the signal schema
	assert.NotContains(t, string(outer), "entry_type")

	unwrapped, err := Unwrap(outer)
	require.NoError(t, err)
	assert.Equal(t, inner, unwrapped)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Unwrap([]byte(`{"payload":""}`))
	assert.Error(t, err)

	_, err = Unwrap([]byte(`not json`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"entry_type":"goal","action":"Create","data":{},"extra":1}`))
	assert.Error(t, err)

	_, err = Encode(Signal{EntryType: "goal", Action: "Archive", Data: []byte(`{}`)})
	assert.Error(t, err)
}
