package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/acorn/internal/ledger"
	"github.com/roach88/acorn/internal/project"
	"github.com/roach88/acorn/internal/revision"
)

// testNode is one agent's ledger and key in a temp dir.
type testNode struct {
	db  string
	key string
}

func newTestNode(t *testing.T, name string) testNode {
	dir := t.TempDir()
	return testNode{
		db:  filepath.Join(dir, name+".db"),
		key: filepath.Join(dir, name+".key"),
	}
}

// run executes the root command for n and returns stdout.
func (n testNode) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", n.db, "--key", n.key}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// runJSON runs with --format json and decodes the response data into v.
func (n testNode) runJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out, err := n.run(t, append([]string{"--format", "json"}, args...)...)
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v))
	}
}

func TestKeygen_StableAgent(t *testing.T) {
	n := newTestNode(t, "alice")

	var first, second KeygenResult
	n.runJSON(t, &first, "keygen")
	n.runJSON(t, &second, "keygen")

	assert.Equal(t, first.Agent, second.Agent)
	_, err := first.Agent.PublicKey()
	assert.NoError(t, err)

	info, err := os.Stat(n.key)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestProjectCreate_SecondIsFailure(t *testing.T) {
	n := newTestNode(t, "alice")

	out, err := n.run(t, "project", "create", "garden", "--passphrase", "oak")
	require.NoError(t, err)
	assert.Contains(t, out, "created ")

	_, err = n.run(t, "project", "create", "orchard")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var meta revision.WireElement[project.ProjectMeta]
	n.runJSON(t, &meta, "project", "show")
	assert.Equal(t, "garden", meta.Entry.Name)
	assert.Equal(t, "oak", meta.Entry.Passphrase)
}

func TestProjectShow_NoneIsFailure(t *testing.T) {
	n := newTestNode(t, "alice")
	_, err := n.run(t, "project", "show")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, project.ErrNoProjectMeta)
}

func TestGoalFlow(t *testing.T) {
	n := newTestNode(t, "alice")
	bob := newTestNode(t, "bob")
	var bobKey KeygenResult
	bob.runJSON(t, &bobKey, "keygen")

	var goal revision.WireElement[project.Goal]
	n.runJSON(t, &goal, "goal", "create", "plant oaks", "--hierarchy", "Leaf", "--tag", "spring")
	assert.Equal(t, []string{"spring"}, goal.Entry.Tags)

	n.runJSON(t, nil, "goal-member", "add", goal.HeaderHash.String(), bobKey.Agent.String())

	var goals []revision.WireElement[project.Goal]
	n.runJSON(t, &goals, "goal", "list")
	require.Len(t, goals, 1)

	var archived []revision.Hash
	n.runJSON(t, &archived, "goal-member", "archive", goal.HeaderHash.String())
	assert.Len(t, archived, 1)

	var out project.ArchivedGoal
	n.runJSON(t, &out, "goal", "archive", goal.HeaderHash.String())
	assert.Equal(t, goal.HeaderHash, out.Goal)
	assert.Empty(t, out.GoalMembers)

	n.runJSON(t, &goals, "goal", "list")
	assert.Empty(t, goals)
}

func TestGoalCreate_RejectedIsFailure(t *testing.T) {
	n := newTestNode(t, "alice")
	_, err := n.run(t, "goal", "create", "x", "--hierarchy", "Canopy")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestGoalMemberAdd_InvalidArgs(t *testing.T) {
	n := newTestNode(t, "alice")
	_, err := n.run(t, "goal-member", "add", "nothex", "nothex")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestProfileSet_CreatesThenUpdates(t *testing.T) {
	n := newTestNode(t, "alice")

	out, err := n.run(t, "profile", "set", "--handle", "ada")
	require.NoError(t, err)
	assert.Contains(t, out, "created ")

	out, err = n.run(t, "profile", "set", "--handle", "ada", "--status", "Away")
	require.NoError(t, err)
	assert.Contains(t, out, "updated ")

	out, err = n.run(t, "profile", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "\tada\tAway")
}

func TestMemberJoin_Idempotent(t *testing.T) {
	n := newTestNode(t, "alice")
	var first, second revision.WireElement[project.Member]
	n.runJSON(t, &first, "member", "join")
	n.runJSON(t, &second, "member", "join")
	assert.Equal(t, first, second)

	var members []revision.WireElement[project.Member]
	n.runJSON(t, &members, "member", "list")
	assert.Len(t, members, 1)
}

func TestSync_FromLedger(t *testing.T) {
	alice, bob := newTestNode(t, "alice"), newTestNode(t, "bob")

	_, err := alice.run(t, "project", "create", "garden")
	require.NoError(t, err)
	_, err = alice.run(t, "member", "join")
	require.NoError(t, err)

	var report ledger.IngestReport
	bob.runJSON(t, &report, "sync", "--from", alice.db)
	assert.Equal(t, 2, report.Accepted)
	assert.Zero(t, report.Rejected)

	var meta revision.WireElement[project.ProjectMeta]
	bob.runJSON(t, &meta, "project", "show")
	assert.Equal(t, "garden", meta.Entry.Name)

	_, err = bob.run(t, "project", "create", "rival")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestSync_ExportThenBundle(t *testing.T) {
	alice, bob := newTestNode(t, "alice"), newTestNode(t, "bob")
	bundle := filepath.Join(t.TempDir(), "alice.json")

	_, err := alice.run(t, "goal", "create", "plant oaks")
	require.NoError(t, err)
	out, err := alice.run(t, "sync", "--export", bundle)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 1 records")

	var report ledger.IngestReport
	bob.runJSON(t, &report, "sync", "--bundle", bundle)
	assert.Equal(t, 1, report.Accepted)

	var goals []revision.WireElement[project.Goal]
	bob.runJSON(t, &goals, "goal", "list")
	require.Len(t, goals, 1)
	assert.Equal(t, "plant oaks", goals[0].Entry.Content)
}

func TestSync_MissingSource(t *testing.T) {
	n := newTestNode(t, "alice")
	_, err := n.run(t, "sync", "--from", filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = n.run(t, "sync")
	require.Error(t, err)
}

func TestServe_StartsAndStopsOnCancel(t *testing.T) {
	n := newTestNode(t, "alice")

	cmd := NewRootCommand()
	out := &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(&syncBuffer{})
	cmd.SetArgs([]string{"--db", n.db, "--key", n.key, "serve", "--listen", "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return bytes.Contains(out.Bytes(), []byte("Listening on 127.0.0.1:"))
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestSync_VerboseReportsBundleSize(t *testing.T) {
	alice, bob := newTestNode(t, "alice"), newTestNode(t, "bob")
	_, err := alice.run(t, "goal", "create", "plant oaks")
	require.NoError(t, err)

	cmd := NewRootCommand()
	stderr := &bytes.Buffer{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{"--db", bob.db, "--key", bob.key, "--verbose", "sync", "--from", alice.db})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, stderr.String(), "Offering 1 paths, 1 records, 1 links")
}
