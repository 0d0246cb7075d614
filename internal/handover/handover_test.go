package handover

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baton/internal/codec"
	batonerrors "baton/internal/errors"
	"baton/internal/security"
	"baton/internal/spawn"
	"baton/internal/store"
	"baton/pkg/types"
)

// fakeRunner records the spawn options it saw and returns canned outcomes,
// one per call.
type fakeRunner struct {
	mu       sync.Mutex
	calls    []spawn.Options
	results  []*types.TaskResult
	errs     []error
	nextCall int
}

func (f *fakeRunner) Run(_ context.Context, opts spawn.Options) (*types.TaskResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	i := f.nextCall
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.nextCall++
	return f.results[i], f.errs[i]
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestCoordinator(t *testing.T, r spawn.Runner) (*Coordinator, *store.Store) {
	t.Helper()
	c, err := codec.New()
	require.NoError(t, err)
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	v := security.NewValidator(100 << 20)
	coord := New(c, s, v, r, WithMetrics(MustNewMetrics(prometheus.NewRegistry())))
	return coord, s
}

func storeEntries(t *testing.T, s *store.Store) []string {
	t.Helper()
	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestHandoverCompletedCleansStoreAndExtractsArtifacts(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		results: []*types.TaskResult{{
			TaskID: "task-1", Status: types.StatusCompleted,
			Output: "Created: output.csv\n", ExecutionTime: 40 * time.Millisecond,
		}},
		errs: []error{nil},
	}
	coord, s := newTestCoordinator(t, runner)

	pc := NewContext("data-expert", "analysis-expert", "analyze file", t.TempDir())
	result, err := coord.Handover(context.Background(), pc, Options{Command: "persona"})
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, result.Status)
	assert.Contains(t, result.Artifacts, "output.csv")
	assert.Empty(t, storeEntries(t, s), "completed handover must leave no files behind")

	// the runner saw the persisted path, not the raw context
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "analysis-expert", runner.calls[0].TargetPersona)
	assert.Contains(t, runner.calls[0].ContextPath, pc.Metadata.ContextID)

	cached, ok := coord.Recent(pc.Metadata.ContextID)
	require.True(t, ok)
	assert.Equal(t, result, cached)
}

func TestHandoverFailedChildStillCleans(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		results: []*types.TaskResult{{Status: types.StatusFailed, Error: "boom", Output: ""}},
		errs:    []error{nil},
	}
	coord, s := newTestCoordinator(t, runner)

	pc := NewContext("a", "b", "t", t.TempDir())
	result, err := coord.Handover(context.Background(), pc, Options{})
	require.NoError(t, err, "nonzero exit is a result, not an error")
	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Empty(t, storeEntries(t, s))
}

func TestHandoverTimeoutPreservesPair(t *testing.T) {
	t.Parallel()

	timeoutErr := &batonerrors.TimeoutError{Command: "persona", Timeout: 100 * time.Millisecond}
	runner := &fakeRunner{results: []*types.TaskResult{nil}, errs: []error{timeoutErr}}
	coord, s := newTestCoordinator(t, runner)

	pc := NewContext("a", "b", "t", t.TempDir())
	_, err := coord.Handover(context.Background(), pc, Options{})
	require.Error(t, err)
	assert.True(t, batonerrors.IsTimeout(err))

	preserved := batonerrors.PreservedPath(err)
	require.NotEmpty(t, preserved, "error must carry the preserved context path")
	assert.FileExists(t, preserved)

	names := storeEntries(t, s)
	assert.ElementsMatch(t, []string{
		pc.Metadata.ContextID + store.ExtBinary,
		pc.Metadata.ContextID + store.ExtChecksum,
	}, names, "exactly one context/checksum pair must remain")
}

func TestHandoverSecurityViolationHasNoSideEffects(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{results: []*types.TaskResult{nil}, errs: []error{nil}}
	coord, s := newTestCoordinator(t, runner)

	pc := NewContext("a", "b", "t", t.TempDir())
	pc.Artifacts.Files = []types.FileReference{{Path: "../../etc/passwd", Role: types.RoleInput}}

	_, err := coord.Handover(context.Background(), pc, Options{})
	require.Error(t, err)
	assert.True(t, batonerrors.IsSecurityViolation(err))
	assert.Empty(t, storeEntries(t, s), "rejected context must never be persisted")
	assert.Zero(t, runner.callCount(), "rejected context must never be spawned")
}

func TestHandoverSpawnFailurePreserves(t *testing.T) {
	t.Parallel()

	spawnErr := &batonerrors.ProcessSpawnError{Command: "missing-binary", Err: os.ErrNotExist}
	runner := &fakeRunner{results: []*types.TaskResult{nil}, errs: []error{spawnErr}}
	coord, s := newTestCoordinator(t, runner)

	pc := NewContext("a", "b", "t", t.TempDir())
	_, err := coord.Handover(context.Background(), pc, Options{})
	require.Error(t, err)
	assert.NotEmpty(t, batonerrors.PreservedPath(err))
	assert.Len(t, storeEntries(t, s), 2)
}

func TestHandoverRejectsMissingContextID(t *testing.T) {
	t.Parallel()

	coord, _ := newTestCoordinator(t, &fakeRunner{results: []*types.TaskResult{nil}, errs: []error{nil}})
	_, err := coord.Handover(context.Background(), &types.PersonaContext{}, Options{})
	require.Error(t, err)
}

func TestTimeoutResolutionOrder(t *testing.T) {
	t.Parallel()

	coord, _ := newTestCoordinator(t, &fakeRunner{results: []*types.TaskResult{nil}, errs: []error{nil}})

	pc := NewContext("a", "b", "t", "")
	assert.Equal(t, spawn.DefaultTimeout, coord.timeoutFor(pc, Options{}))

	pc.Environment.TimeoutMs = 2500
	assert.Equal(t, 2500*time.Millisecond, coord.timeoutFor(pc, Options{}))

	assert.Equal(t, time.Second, coord.timeoutFor(pc, Options{Timeout: time.Second}))
}

// End-to-end against a real child process: the stub persona announces an
// artifact on stdout and exits 0.
func TestHandoverWithRealChild(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub scripts require a POSIX shell")
	}

	script := filepath.Join(t.TempDir(), "persona-stub.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"Created: output.csv\"\n"), 0o755))

	coord, s := newTestCoordinator(t, spawn.NewRunner())
	pc := NewContext("data-expert", "analysis-expert", "analyze file", t.TempDir())

	result, err := coord.Handover(context.Background(), pc, Options{Command: script})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, result.Status)
	assert.Contains(t, result.Artifacts, "output.csv")
	assert.Empty(t, storeEntries(t, s))
}

func TestHandoverWithRealChildTimeout(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub scripts require a POSIX shell")
	}

	script := filepath.Join(t.TempDir(), "persona-stub.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nsleep 2\n"), 0o755))

	coord, s := newTestCoordinator(t, spawn.NewRunner())
	pc := NewContext("a", "b", "t", t.TempDir())

	start := time.Now()
	_, err := coord.Handover(context.Background(), pc, Options{Command: script, Timeout: 100 * time.Millisecond})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, batonerrors.IsTimeout(err))
	assert.Less(t, elapsed, time.Second, "timeout must fire well before the child would finish")
	assert.Len(t, storeEntries(t, s), 2, "timed-out handover preserves its pair")
}

func TestAsyncCallbackDelivery(t *testing.T) {
	t.Parallel()

	received := make(chan types.TaskResult, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tr types.TaskResult
		require.NoError(t, json.NewDecoder(r.Body).Decode(&tr))
		received <- tr
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	runner := &fakeRunner{
		results: []*types.TaskResult{{TaskID: "task-cb", Status: types.StatusCompleted, Output: "done"}},
		errs:    []error{nil},
	}
	coord, _ := newTestCoordinator(t, runner)

	pc := NewContext("a", "b", "t", t.TempDir())
	pc.Communication.Mode = types.ModeAsynchronous
	pc.Communication.Callback = srv.URL

	_, err := coord.Handover(context.Background(), pc, Options{})
	require.NoError(t, err)

	select {
	case tr := <-received:
		assert.Equal(t, "task-cb", tr.TaskID)
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not delivered")
	}
}
