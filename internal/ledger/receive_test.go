package ledger

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/acorn/internal/metrics"
	"github.com/roach88/acorn/internal/revision"
	"github.com/roach88/acorn/internal/validate"
)

func TestReceive_AcceptsAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	a := openTestLedger(t, 1)
	b := openTestLedger(t, 2)
	rec := createTask(t, a, task{Title: "x"})

	out, err := b.Receive(ctx, rec)
	require.NoError(t, err)
	assert.True(t, out.IsValid())

	out, err = b.Receive(ctx, rec)
	require.NoError(t, err)
	assert.True(t, out.IsValid())

	got, ok, err := b.Get(ctx, rec.HeaderHash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestReceive_IntegrityFailures(t *testing.T) {
	ctx := context.Background()
	a := openTestLedger(t, 1)
	b := openTestLedger(t, 2)
	rec := createTask(t, a, task{Title: "x"})

	tampered := rec
	tampered.Entry = encode(t, task{Title: "y"})
	out, err := b.Receive(ctx, tampered)
	require.NoError(t, err)
	assert.Equal(t, validate.ReasonCorruptHeader, out.Reason)

	forged := rec
	forged.Signature = make([]byte, len(rec.Signature))
	out, err = b.Receive(ctx, forged)
	require.NoError(t, err)
	assert.Equal(t, validate.ReasonBadSignature, out.Reason)

	_, ok, err := b.Get(ctx, rec.HeaderHash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReceive_ParksUntilOriginalArrives(t *testing.T) {
	ctx := context.Background()
	a := openTestLedger(t, 1)
	b := openTestLedger(t, 2)

	root := createTask(t, a, task{Title: "x"})
	var upd revision.Record
	require.NoError(t, a.Atomic(ctx, func(w Writer) error {
		var err error
		upd, err = w.Update(ctx, "task", root.HeaderHash, encode(t, task{Title: "y"}))
		return err
	}))

	out, err := b.Receive(ctx, upd)
	require.NoError(t, err)
	assert.Equal(t, validate.Unresolved, out.Kind)
	assert.Equal(t, []revision.Hash{root.HeaderHash}, out.Missing)

	parked, err := b.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, upd.HeaderHash, parked[0].Record.HeaderHash)

	// same input, same outcome while the dependency is still missing
	out, err = b.Receive(ctx, upd)
	require.NoError(t, err)
	assert.Equal(t, validate.Unresolved, out.Kind)
	parked, err = b.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, 2, parked[0].Attempts)

	out, err = b.Receive(ctx, root)
	require.NoError(t, err)
	assert.True(t, out.IsValid())

	_, ok, err := b.Get(ctx, upd.HeaderHash)
	require.NoError(t, err)
	assert.True(t, ok, "parked update accepted once its original arrived")
	parked, err = b.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, parked)
}

func TestReceive_ParkedThenRejected(t *testing.T) {
	ctx := context.Background()
	a := openTestLedger(t, 1)
	b := openTestLedger(t, 2)

	owner := createTask(t, a, task{Title: "owner"})
	root := createTask(t, a, task{Title: "x", Owner: owner.HeaderHash})

	// forge an update that changes the immutable owner, signed by a
	h := revision.Header{
		Author:         a.AgentID(),
		Seq:            10,
		Action:         revision.ActionUpdate,
		EntryType:      "task",
		OriginalHeader: root.HeaderHash,
		Timestamp:      root.Header.Timestamp + 10,
	}
	entry := encode(t, task{Title: "x"})
	h.EntryHash = revision.HashEntry(entry)
	bad, err := revision.Seal(a.key, h, entry)
	require.NoError(t, err)

	out, err := b.Receive(ctx, bad)
	require.NoError(t, err)
	assert.Equal(t, validate.Unresolved, out.Kind)

	for _, rec := range []revision.Record{owner, root} {
		out, err := b.Receive(ctx, rec)
		require.NoError(t, err)
		require.True(t, out.IsValid())
	}

	parked, err := b.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, parked, "final outcome for the parked update was Invalid")
	_, ok, err := b.Get(ctx, bad.HeaderHash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRetryPending_WaitsForEveryDependency(t *testing.T) {
	ctx := context.Background()
	a := openTestLedger(t, 1)
	b := openTestLedger(t, 2)

	// b authors the owner, a references it before b's owner exists on a
	owner := createTask(t, b, task{Title: "owner"})
	_, err := a.Receive(ctx, owner)
	require.NoError(t, err)
	child := createTask(t, a, task{Title: "child", Owner: owner.HeaderHash})

	var upd revision.Record
	require.NoError(t, a.Atomic(ctx, func(w Writer) error {
		var err error
		upd, err = w.Update(ctx, "task", child.HeaderHash, encode(t, task{Title: "child 2", Owner: owner.HeaderHash}))
		return err
	}))

	c := openTestLedger(t, 3)
	out, err := c.Receive(ctx, upd)
	require.NoError(t, err)
	require.Equal(t, validate.Unresolved, out.Kind)

	accepted, err := c.RetryPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, accepted)

	for _, rec := range []revision.Record{owner, child} {
		_, err := c.Receive(ctx, rec)
		require.NoError(t, err)
	}
	_, ok, err := c.Get(ctx, upd.HeaderHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReceive_Metrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	a := openTestLedger(t, 1, WithMetrics(m))
	b := openTestLedger(t, 2, WithMetrics(m))

	rec := createTask(t, a, task{Title: "x"})
	_, err := b.Receive(ctx, rec)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				counts[f.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, counts["acorn_ledger_revisions_total"], "one local, one remote")
	assert.Equal(t, 2.0, counts["acorn_validation_outcomes_total"])
}

func TestReceiveLinkAndPath(t *testing.T) {
	ctx := context.Background()
	a := openTestLedger(t, 1)
	l := openTestLedger(t, 2)

	base := revision.HashPath("task")
	require.NoError(t, l.ReceivePath(ctx, base, "task"))
	assert.Error(t, l.ReceivePath(ctx, base, "other"))

	rec := createTask(t, a, task{Title: "x"})
	out, err := l.Receive(ctx, rec)
	require.NoError(t, err)
	require.True(t, out.IsValid())

	lk := revision.Link{Base: base, Target: rec.Header.EntryHash, Tag: "task", Timestamp: 5}
	require.NoError(t, l.ReceiveLink(ctx, lk))
	require.NoError(t, l.ReceiveLink(ctx, lk))
	assert.Error(t, l.ReceiveLink(ctx, revision.Link{Base: "nope", Target: lk.Target}))

	links, err := l.Links(ctx, base, "")
	require.NoError(t, err)
	assert.Equal(t, []revision.Link{lk}, links)
}

func TestReceiveLink_RequiresAcceptedCreate(t *testing.T) {
	ctx := context.Background()
	a := openTestLedger(t, 1)
	l := openTestLedger(t, 2)
	base := revision.HashPath("task")
	require.NoError(t, l.ReceivePath(ctx, base, "task"))

	rec := createTask(t, a, task{Title: "x"})

	// nothing accepted at the target yet
	lk := revision.Link{Base: base, Target: rec.Header.EntryHash, Tag: "task", Timestamp: 5}
	assert.ErrorIs(t, l.ReceiveLink(ctx, lk), ErrUnbackedLink)

	out, err := l.Receive(ctx, rec)
	require.NoError(t, err)
	require.True(t, out.IsValid())

	// the create is of another type
	assert.ErrorIs(t, l.ReceiveLink(ctx, revision.Link{Base: base, Target: rec.Header.EntryHash, Tag: "note"}), ErrUnbackedLink)

	// an author base must be the create's author
	stranger := revision.Link{Base: l.AgentID().Hash(), Target: rec.Header.EntryHash, Tag: "task"}
	assert.ErrorIs(t, l.ReceiveLink(ctx, stranger), ErrUnbackedLink)
	byAuthor := revision.Link{Base: a.AgentID().Hash(), Target: rec.Header.EntryHash, Tag: "task"}
	require.NoError(t, l.ReceiveLink(ctx, byAuthor))

	links, err := l.Links(ctx, base, "")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestIngest_SkipsLinksOfParkedRecords(t *testing.T) {
	ctx := context.Background()
	a := openTestLedger(t, 1)
	base := revision.HashPath("task")
	owner := createTask(t, a, task{Title: "owner"})
	rec := createTask(t, a, task{Title: "x", Owner: owner.HeaderHash})

	b := openTestLedger(t, 2)
	// the owner is missing from the bundle
	rep, err := b.Ingest(ctx, Bundle{
		Paths:   []PathEntry{{Hash: base, Name: "task"}},
		Records: []revision.Record{rec},
		Links:   []revision.Link{{Base: base, Target: rec.Header.EntryHash, Tag: "task"}},
	})
	require.NoError(t, err)
	assert.Equal(t, IngestReport{Deferred: 1, Skipped: 1, Paths: 1}, rep)

	links, err := b.Links(ctx, base, "task")
	require.NoError(t, err)
	assert.Empty(t, links)
}
