package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/acorn/internal/revision"
)

func TestExportIngest_RoundTrip(t *testing.T) {
	ctx := context.Background()
	a := openTestLedger(t, 1)
	base := revision.HashPath("task")

	root := createTask(t, a, task{Title: "x"})
	require.NoError(t, a.Atomic(ctx, func(w Writer) error {
		if err := w.EnsurePath(ctx, base, "task"); err != nil {
			return err
		}
		if _, err := w.CreateLink(ctx, base, root.Header.EntryHash, "task"); err != nil {
			return err
		}
		_, err := w.Update(ctx, "task", root.HeaderHash, encode(t, task{Title: "y"}))
		return err
	}))

	bundle, err := a.Export(ctx)
	require.NoError(t, err)
	assert.Len(t, bundle.Records, 2)
	assert.Len(t, bundle.Links, 1)
	assert.Equal(t, []PathEntry{{Hash: base, Name: "task"}}, bundle.Paths)

	b := openTestLedger(t, 2)
	rep, err := b.Ingest(ctx, bundle)
	require.NoError(t, err)
	assert.Equal(t, IngestReport{Accepted: 2, Links: 1, Paths: 1}, rep)

	again, err := b.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, bundle, again)
}

func TestIngest_OutOfOrderRecords(t *testing.T) {
	ctx := context.Background()
	a := openTestLedger(t, 1)
	root := createTask(t, a, task{Title: "x"})
	var upd revision.Record
	require.NoError(t, a.Atomic(ctx, func(w Writer) error {
		var err error
		upd, err = w.Update(ctx, "task", root.HeaderHash, encode(t, task{Title: "y"}))
		return err
	}))

	b := openTestLedger(t, 2)
	rep, err := b.Ingest(ctx, Bundle{Records: []revision.Record{upd, root}})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Accepted)
	assert.Zero(t, rep.Deferred)

	c := openTestLedger(t, 3)
	rep, err = c.Ingest(ctx, Bundle{Records: []revision.Record{upd}})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Deferred)
}
