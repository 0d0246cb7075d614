// Package handover composes validation, encoding, persistence, process
// spawning, artifact extraction, and cleanup into the single operation that
// transfers context from one persona invocation to the next. The Coordinator
// is the only caller of the other components; control flow is strictly
// linear per handover.
package handover

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"baton/internal/codec"
	batonerrors "baton/internal/errors"
	"baton/internal/extract"
	"baton/internal/logging"
	"baton/internal/security"
	"baton/internal/spawn"
	"baton/internal/store"
	"baton/internal/utils/id"
	"baton/pkg/types"
)

// recentResults bounds the in-memory cache of completed TaskResults kept for
// post-hoc inspection.
const recentResults = 128

// Options tunes one handover invocation.
type Options struct {
	// Command is the persona executable to launch; falls back to the
	// coordinator default when empty.
	Command string
	// Interactive hands the parent terminal to the child; no output is
	// captured and no artifacts are extracted in that mode.
	Interactive bool
	// Timeout overrides both the context's environment timeout and the
	// coordinator default when positive.
	Timeout   time.Duration
	ExtraArgs []string
}

// Coordinator drives the handover sequence. Construct one with New and pass
// it where needed; there is no package-level instance.
type Coordinator struct {
	codec     *codec.Codec
	store     *store.Store
	validator *security.Validator
	runner    spawn.Runner
	extractor *extract.Extractor
	metrics   *Metrics

	defaultCommand string
	defaultTimeout time.Duration

	recent *lru.Cache[string, *types.TaskResult]
	logger *logging.Logger
}

// New builds a Coordinator from its collaborators. Tests substitute a fake
// Runner; everything else is cheap enough to use for real.
func New(c *codec.Codec, s *store.Store, v *security.Validator, r spawn.Runner, opts ...CoordinatorOption) *Coordinator {
	recent, _ := lru.New[string, *types.TaskResult](recentResults)
	coord := &Coordinator{
		codec:          c,
		store:          s,
		validator:      v,
		runner:         r,
		extractor:      extract.NewExtractor(),
		metrics:        defaultMetrics(),
		defaultCommand: "persona",
		defaultTimeout: spawn.DefaultTimeout,
		recent:         recent,
		logger:         logging.NewComponentLogger("Handover"),
	}
	for _, opt := range opts {
		opt(coord)
	}
	return coord
}

// CoordinatorOption customizes a Coordinator at construction time.
type CoordinatorOption func(*Coordinator)

// WithDefaultCommand sets the persona executable used when a handover's
// Options leave Command empty.
func WithDefaultCommand(cmd string) CoordinatorOption {
	return func(c *Coordinator) { c.defaultCommand = cmd }
}

// WithDefaultTimeout sets the wall-clock budget used when neither the
// handover nor the context specifies one.
func WithDefaultTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.defaultTimeout = d }
}

// WithMetrics replaces the shared metrics, typically with ones bound to a
// fresh registry in tests.
func WithMetrics(m *Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// NewContext constructs a PersonaContext with its metadata populated. The
// context ID is assigned here, exactly once; it is never regenerated for
// this context value afterward.
func NewContext(source, target, task, workingDir string) *types.PersonaContext {
	return &types.PersonaContext{
		Metadata: types.ContextMetadata{
			ContextID:        id.NewContextID(),
			SchemaVersion:    types.SchemaVersion,
			CreatedAt:        time.Now(),
			SourcePersona:    source,
			TargetPersona:    target,
			TaskDescription:  task,
			WorkingDirectory: workingDir,
		},
	}
}

// Handover runs one complete validate → encode → persist → spawn → await →
// extract → cleanup cycle and returns the child's TaskResult.
//
// A validation failure aborts with no side effects. Once the child has run
// to exit, whether it succeeded or not, the persisted pair is removed. A
// timeout or spawn failure preserves the pair on disk for postmortem
// inspection and the returned error carries its path.
func (c *Coordinator) Handover(ctx context.Context, pc *types.PersonaContext, opts Options) (*types.TaskResult, error) {
	if pc.Metadata.ContextID == "" {
		return nil, fmt.Errorf("handover: context has no id; construct it with NewContext")
	}

	c.metrics.IncActive()
	defer c.metrics.DecActive()
	start := time.Now()

	// Created → Validated. No side effects on rejection.
	if err := c.validator.Validate(pc); err != nil {
		c.metrics.ObserveHandover("validate", "rejected", time.Since(start))
		c.metrics.IncFailure("security_violation")
		return nil, err
	}

	// Validated → Persisted.
	data, format, err := c.codec.Encode(pc)
	if err != nil {
		c.metrics.IncFailure("encoding")
		return nil, err
	}
	path, err := c.store.Put(pc.Metadata.ContextID, data, format)
	if err != nil {
		c.metrics.IncFailure("persist")
		return nil, err
	}
	c.logger.Info("persisted context %s for %s -> %s at %s",
		pc.Metadata.ContextID, pc.Metadata.SourcePersona, pc.Metadata.TargetPersona, path)

	// Persisted → Spawned → Running → terminal.
	result, err := c.runner.Run(ctx, spawn.Options{
		Command:         c.commandFor(opts),
		TargetPersona:   pc.Metadata.TargetPersona,
		ContextPath:     path,
		TaskDescription: pc.Metadata.TaskDescription,
		Interactive:     opts.Interactive,
		Timeout:         c.timeoutFor(pc, opts),
		WorkingDir:      pc.Metadata.WorkingDirectory,
		Env:             pc.Environment.Variables,
		ExtraArgs:       append(opts.ExtraArgs, pc.Environment.ExtraArgs...),
	})
	if err != nil {
		// TimedOut / spawn failure → Preserved. The pair stays on disk and
		// its location travels with the error.
		c.metrics.ObserveHandover("spawn", "error", time.Since(start))
		c.metrics.IncFailure(failureReason(err))
		c.logger.Warn("handover %s failed, context preserved at %s: %v", pc.Metadata.ContextID, path, err)
		return nil, &batonerrors.PreservedContextError{Path: path, Err: err}
	}

	// Completed | Failed → Cleaned. The child ran to exit either way.
	result.Artifacts = c.extractor.Extract(result.Output)
	if err := c.store.Remove(path); err != nil {
		c.logger.Warn("cleanup of %s: %v", path, err)
	}
	c.recent.Add(pc.Metadata.ContextID, result)
	c.metrics.ObserveHandover("complete", string(result.Status), time.Since(start))
	c.logger.Info("handover %s finished status=%s artifacts=%d in %s",
		pc.Metadata.ContextID, result.Status, len(result.Artifacts), result.ExecutionTime)

	c.deliverCallback(ctx, pc, result)
	return result, nil
}

// Recent returns the cached TaskResult for a recently finished handover.
func (c *Coordinator) Recent(contextID string) (*types.TaskResult, bool) {
	return c.recent.Get(contextID)
}

// Sweep reclaims context/checksum pairs older than maxAge from the store.
// Exposed so an operator or scheduler can run garbage collection
// independently; the Coordinator keeps no background task of its own.
func (c *Coordinator) Sweep(maxAge time.Duration) (int, error) {
	return c.store.Sweep(maxAge)
}

func (c *Coordinator) commandFor(opts Options) string {
	if opts.Command != "" {
		return opts.Command
	}
	return c.defaultCommand
}

// timeoutFor resolves the wall-clock budget: explicit option, then the
// context's own environment timeout, then the coordinator default.
func (c *Coordinator) timeoutFor(pc *types.PersonaContext, opts Options) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	if pc.Environment.TimeoutMs > 0 {
		return time.Duration(pc.Environment.TimeoutMs) * time.Millisecond
	}
	return c.defaultTimeout
}

func failureReason(err error) string {
	switch {
	case batonerrors.IsTimeout(err):
		return "timeout"
	case batonerrors.IsSecurityViolation(err):
		return "security_violation"
	default:
		var se *batonerrors.ProcessSpawnError
		if errors.As(err, &se) {
			return "spawn"
		}
		return "other"
	}
}
