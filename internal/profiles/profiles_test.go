package profiles

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/acorn/internal/crud"
	"github.com/roach88/acorn/internal/ledger"
	"github.com/roach88/acorn/internal/revision"
	"github.com/roach88/acorn/internal/signal"
	"github.com/roach88/acorn/internal/testutil"
	"github.com/roach88/acorn/internal/validate"
)

func newStore(t *testing.T, seed byte) (*Store, *ledger.Ledger, *testutil.RecordingSender) {
	t.Helper()
	reg := validate.NewRegistry()
	require.NoError(t, Register(reg))

	clock := testutil.NewDeterministicClock(1_700_000_000_000)
	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"), testutil.Key(seed),
		ledger.WithValidator(reg),
		ledger.WithClock(clock.Next),
	)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	sent := &testutil.RecordingSender{}
	return New(l, signal.NewNotifier(sent), nil), l, sent
}

func profile(agent revision.AgentID, handle string) Profile {
	return Profile{
		FirstName: "Ada",
		LastName:  "Oak",
		Handle:    handle,
		Status:    StatusOnline,
		Address:   agent,
	}
}

func TestWhoami_NoneBeforeCreate(t *testing.T) {
	s, _, _ := newStore(t, 1)
	_, ok, err := s.Whoami(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateWhoami_SignalsAndIsWhoami(t *testing.T) {
	ctx := context.Background()
	s, l, sent := newStore(t, 1)
	bob := testutil.Agent(2)

	res, err := s.CreateWhoami(ctx, profile(l.AgentID(), "ada"), signal.Peers(bob))
	require.NoError(t, err)
	assert.True(t, res.Delivery.OK())

	me, ok, err := s.Whoami(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.Element, me)

	calls := sent.Sent()
	require.Len(t, calls, 1)
	sig, err := signal.Unpack(calls[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, TypeProfile, sig.EntryType)
	assert.Equal(t, signal.ActionCreate, sig.Action)
}

func TestCreateWhoami_AddressMustMatchAuthor(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newStore(t, 1)

	_, err := s.CreateWhoami(ctx, profile(testutil.Agent(2), "impostor"), nil)
	require.Error(t, err)
	assert.True(t, validate.IsRejected(err, validate.ReasonAuthorMismatch))
}

func TestCreateImportedProfile_NotWhoamiNorSignalled(t *testing.T) {
	ctx := context.Background()
	s, l, sent := newStore(t, 1)

	migrated := profile(testutil.Agent(5), "old-handle")
	migrated.IsImported = true
	el, err := s.CreateImportedProfile(ctx, migrated)
	require.NoError(t, err)

	_, ok, err := s.Whoami(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	mine, err := s.CreateWhoami(ctx, profile(l.AgentID(), "ada"), nil)
	require.NoError(t, err)

	agents, err := s.FetchAgents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []revision.WireElement[Profile]{el, mine.Element}, agents)
	assert.Empty(t, sent.Sent())
}

func TestUpdateWhoami_AddressImmutable(t *testing.T) {
	ctx := context.Background()
	s, l, _ := newStore(t, 1)

	res, err := s.CreateWhoami(ctx, profile(l.AgentID(), "ada"), nil)
	require.NoError(t, err)

	away := profile(l.AgentID(), "ada")
	away.Status = StatusAway
	upd, err := s.UpdateWhoami(ctx, res.Element.HeaderHash, away, nil)
	require.NoError(t, err)

	me, ok, err := s.Whoami(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, upd.Element, me)
	assert.Equal(t, StatusAway, me.Entry.Status)

	moved := away
	moved.Address = testutil.Agent(2)
	_, err = s.UpdateWhoami(ctx, upd.Element.HeaderHash, moved, nil)
	require.Error(t, err)
	assert.True(t, validate.IsRejected(err, validate.ReasonEditableFieldsViolated))
}

func TestProfile_SchemaRejectsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	s, l, _ := newStore(t, 1)

	p := profile(l.AgentID(), "ada")
	p.Status = "Busy"
	_, err := s.CreateWhoami(ctx, p, nil)
	require.Error(t, err)
	assert.True(t, validate.IsRejected(err, validate.ReasonDeserializationFailed))
}

func TestProfile_NotDeletable(t *testing.T) {
	ctx := context.Background()
	s, l, _ := newStore(t, 1)

	res, err := s.CreateWhoami(ctx, profile(l.AgentID(), "ada"), nil)
	require.NoError(t, err)
	_, err = s.Engine().Delete(ctx, res.Element.HeaderHash, nil)
	assert.ErrorIs(t, err, crud.ErrDeleteForbidden)
}
