package handover

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	batonerrors "baton/internal/errors"
	"baton/pkg/types"
)

func TestRetryDefaultPolicyIsSingleAttempt(t *testing.T) {
	t.Parallel()

	spawnErr := &batonerrors.ProcessSpawnError{Command: "p", Err: os.ErrNotExist}
	runner := &fakeRunner{results: []*types.TaskResult{nil}, errs: []error{spawnErr}}
	coord, _ := newTestCoordinator(t, runner)

	pc := NewContext("a", "b", "t", t.TempDir())
	_, err := Retry(context.Background(), coord, pc, Options{})
	require.Error(t, err)
	assert.Equal(t, 1, runner.callCount())
}

func TestRetryPolicyRetriesWithFreshContextID(t *testing.T) {
	t.Parallel()

	spawnErr := &batonerrors.ProcessSpawnError{Command: "p", Err: os.ErrNotExist}
	runner := &fakeRunner{
		results: []*types.TaskResult{nil, {TaskID: "task-ok", Status: types.StatusCompleted}},
		errs:    []error{spawnErr, nil},
	}
	coord, _ := newTestCoordinator(t, runner)

	pc := NewContext("a", "b", "t", t.TempDir())
	pc.Communication.ErrorHandling = types.PolicyRetry
	pc.Communication.MaxRetries = 2

	result, err := Retry(context.Background(), coord, pc, Options{})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, result.Status)
	require.Equal(t, 2, runner.callCount())

	first := runner.calls[0].ContextPath
	second := runner.calls[1].ContextPath
	assert.NotEqual(t, first, second, "each attempt must persist under its own context id")
	assert.True(t, strings.Contains(first, pc.Metadata.ContextID),
		"first attempt uses the original id; the original context is never mutated")
}

func TestRetryNeverRetriesSecurityViolations(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{results: []*types.TaskResult{nil}, errs: []error{nil}}
	coord, _ := newTestCoordinator(t, runner)

	pc := NewContext("a", "b", "t", t.TempDir())
	pc.Communication.ErrorHandling = types.PolicyRetry
	pc.Communication.MaxRetries = 3
	pc.Artifacts.Files = []types.FileReference{{Path: "../secret"}}

	_, err := Retry(context.Background(), coord, pc, Options{})
	require.Error(t, err)
	assert.True(t, batonerrors.IsSecurityViolation(err))
	assert.Zero(t, runner.callCount())
}

func TestRetryStopsAfterMaxRetries(t *testing.T) {
	t.Parallel()

	spawnErr := &batonerrors.ProcessSpawnError{Command: "p", Err: os.ErrNotExist}
	runner := &fakeRunner{results: []*types.TaskResult{nil}, errs: []error{spawnErr}}
	coord, _ := newTestCoordinator(t, runner)

	pc := NewContext("a", "b", "t", t.TempDir())
	pc.Communication.ErrorHandling = types.PolicyRetry
	pc.Communication.MaxRetries = 2

	_, err := Retry(context.Background(), coord, pc, Options{})
	require.Error(t, err)
	assert.Equal(t, 3, runner.callCount(), "initial attempt plus MaxRetries retries")
}

func TestFallbackPolicyReturnsFailedResult(t *testing.T) {
	t.Parallel()

	spawnErr := &batonerrors.ProcessSpawnError{Command: "p", Err: os.ErrNotExist}
	runner := &fakeRunner{results: []*types.TaskResult{nil}, errs: []error{spawnErr}}
	coord, _ := newTestCoordinator(t, runner)

	pc := NewContext("a", "b", "t", t.TempDir())
	pc.Communication.ErrorHandling = types.PolicyFallback

	result, err := Retry(context.Background(), coord, pc, Options{})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "failed to spawn")
}

func TestParallelRunsIndependentBranches(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		results: []*types.TaskResult{{Status: types.StatusCompleted, Output: "Created: a.out\n"}},
		errs:    []error{nil},
	}
	coord, s := newTestCoordinator(t, runner)

	wd := t.TempDir()
	requests := []Request{
		{Context: NewContext("root", "branch-1", "t1", wd)},
		{Context: NewContext("root", "branch-2", "t2", wd)},
		{Context: NewContext("root", "branch-3", "t3", wd)},
	}

	results, err := Parallel(context.Background(), coord, requests)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, types.StatusCompleted, r.Status)
	}
	assert.Equal(t, 3, runner.callCount())
	assert.Empty(t, storeEntries(t, s))
}

func TestParallelPropagatesFirstError(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{results: []*types.TaskResult{nil}, errs: []error{nil}}
	coord, _ := newTestCoordinator(t, runner)

	bad := NewContext("root", "branch-bad", "t", t.TempDir())
	bad.Artifacts.Files = []types.FileReference{{Path: "../escape"}}

	_, err := Parallel(context.Background(), coord, []Request{{Context: bad}})
	require.Error(t, err)
	assert.True(t, batonerrors.IsSecurityViolation(err))
}

func TestSweepReclaimsOnlyOldPairs(t *testing.T) {
	t.Parallel()

	timeoutErr := &batonerrors.TimeoutError{Command: "p", Timeout: time.Millisecond}
	runner := &fakeRunner{results: []*types.TaskResult{nil}, errs: []error{timeoutErr}}
	coord, s := newTestCoordinator(t, runner)

	wd := t.TempDir()
	old := NewContext("a", "b", "t", wd)
	fresh := NewContext("a", "b", "t", wd)
	for _, pc := range []*types.PersonaContext{old, fresh} {
		_, err := coord.Handover(context.Background(), pc, Options{})
		require.Error(t, err)
	}

	// age the first pair past the retention window
	past := time.Now().Add(-2 * time.Hour)
	for _, ext := range []string{".ctx", ".ctx.checksum"} {
		require.NoError(t, os.Chtimes(s.Dir()+"/"+old.Metadata.ContextID+ext, past, past))
	}

	removed, err := coord.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	names := storeEntries(t, s)
	assert.ElementsMatch(t, []string{
		fresh.Metadata.ContextID + ".ctx",
		fresh.Metadata.ContextID + ".ctx.checksum",
	}, names)
}
