package ledger

import (
	"context"
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/acorn/internal/revision"
	"github.com/roach88/acorn/internal/testutil"
	"github.com/roach88/acorn/internal/validate"
)

type task struct {
	Title string        `json:"title"`
	Owner revision.Hash `json:"owner,omitempty"`
}

// taskRegistry accepts "task" records: updates keep owner, deletes allowed,
// owner must resolve.
func taskRegistry(t *testing.T) *validate.Registry {
	t.Helper()
	reg := validate.NewRegistry()
	require.NoError(t, reg.Register("task", validate.Policy[task]{
		EntryType: "task",
		ForeignKeys: func(v task) []revision.Hash {
			if v.Owner == "" {
				return nil
			}
			return []revision.Hash{v.Owner}
		},
		AllowUpdate: true,
		Immutable:   []string{"owner"},
		AllowDelete: true,
	}))
	return reg
}

// openTestLedger opens a temp-dir ledger for the agent with the given key seed.
func openTestLedger(t *testing.T, seed byte, opts ...Option) *Ledger {
	t.Helper()
	var key ed25519.PrivateKey
	if seed != 0 {
		key = testutil.Key(seed)
	}
	clock := testutil.NewDeterministicClock(1_700_000_000_000)
	opts = append([]Option{WithValidator(taskRegistry(t)), WithClock(clock.Next)}, opts...)
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"), key, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func encode(t *testing.T, v any) []byte {
	t.Helper()
	b, err := revision.Encode(v)
	require.NoError(t, err)
	return b
}

func createTask(t *testing.T, l *Ledger, v task) revision.Record {
	t.Helper()
	var rec revision.Record
	err := l.Atomic(context.Background(), func(w Writer) error {
		var err error
		rec, err = w.Create(context.Background(), "task", encode(t, v))
		return err
	})
	require.NoError(t, err)
	return rec
}
