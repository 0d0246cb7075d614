package types

import (
	"time"
)

// SchemaVersion identifies the context exchange format understood by this
// build. Bump when the wire layout changes incompatibly.
const SchemaVersion = "1.0"

// EncodingFormat records how a context payload was serialized on disk.
type EncodingFormat string

const (
	// EncodingBinary is the primary deterministic binary encoding.
	EncodingBinary EncodingFormat = "binary"
	// EncodingJSONFallback is the loosely-typed textual encoding used when
	// binary encoding fails.
	EncodingJSONFallback EncodingFormat = "json-fallback"
)

// FileRole classifies an artifact's position in the pipeline.
type FileRole string

const (
	RoleInput        FileRole = "input"
	RoleOutput       FileRole = "output"
	RoleIntermediate FileRole = "intermediate"
)

// ExecutionMode selects how the next stage reports its result.
type ExecutionMode string

const (
	ModeSynchronous  ExecutionMode = "synchronous"
	ModeAsynchronous ExecutionMode = "asynchronous"
)

// ErrorPolicy is the caller-side handling policy for failed handovers. The
// handover primitive itself is single-attempt; this travels with the context
// so the caller knows what to do.
type ErrorPolicy string

const (
	PolicyRetry    ErrorPolicy = "retry"
	PolicyFail     ErrorPolicy = "fail"
	PolicyFallback ErrorPolicy = "fallback"
)

// Blob carries caller-defined binary payloads the codec never interprets.
type Blob []byte

// ContextMetadata identifies one handover attempt.
type ContextMetadata struct {
	ContextID        string         `json:"context_id" yaml:"context_id"`
	SchemaVersion    string         `json:"schema_version" yaml:"schema_version"`
	CreatedAt        time.Time      `json:"created_at" yaml:"created_at"`
	SourcePersona    string         `json:"source_persona" yaml:"source_persona"`
	TargetPersona    string         `json:"target_persona" yaml:"target_persona"`
	TaskDescription  string         `json:"task_description" yaml:"task_description"`
	WorkingDirectory string         `json:"working_directory" yaml:"working_directory"`
	Encoding         EncodingFormat `json:"encoding" yaml:"encoding"`
}

// Environment is what the spawned persona process inherits beyond its argv.
type Environment struct {
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
	ExtraArgs []string          `json:"extra_args,omitempty" yaml:"extra_args,omitempty"`
	TimeoutMs int64             `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
}

// FileReference describes one artifact passed between stages.
type FileReference struct {
	Path      string         `json:"path" yaml:"path"`
	Role      FileRole       `json:"role" yaml:"role"`
	Format    string         `json:"format,omitempty" yaml:"format,omitempty"`
	SizeBytes int64          `json:"size_bytes,omitempty" yaml:"size_bytes,omitempty"`
	Checksum  string         `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Fact is one remembered key/value observation with its recording time.
type Fact struct {
	Value      any       `json:"value" yaml:"value"`
	RecordedAt time.Time `json:"recorded_at" yaml:"recorded_at"`
}

// MemorySnapshot is the opaque memory a persona hands to its successor.
type MemorySnapshot struct {
	Facts        map[string]Fact `json:"facts,omitempty" yaml:"facts,omitempty"`
	Cache        Blob            `json:"cache,omitempty" yaml:"cache,omitempty"`
	PersonaState Blob            `json:"persona_state,omitempty" yaml:"persona_state,omitempty"`
}

// Turn is one prior conversation exchange.
type Turn struct {
	Role      string    `json:"role" yaml:"role"`
	Text      string    `json:"text" yaml:"text"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Persona   string    `json:"persona,omitempty" yaml:"persona,omitempty"`
}

// Artifacts aggregates everything a stage accumulated for its successor.
type Artifacts struct {
	Files        []FileReference `json:"files,omitempty" yaml:"files,omitempty"`
	Memory       MemorySnapshot  `json:"memory,omitempty" yaml:"memory,omitempty"`
	Conversation []Turn          `json:"conversation,omitempty" yaml:"conversation,omitempty"`
	History      []TaskResult    `json:"history,omitempty" yaml:"history,omitempty"`
}

// SchedulerHint is an optional HPC-scheduler descriptor. Passed through
// verbatim; this subsystem never interprets it.
type SchedulerHint struct {
	Kind      string            `json:"kind" yaml:"kind"`
	Queue     string            `json:"queue,omitempty" yaml:"queue,omitempty"`
	Resources map[string]string `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// PipelineProfile carries free-form pipeline-domain tags end to end.
type PipelineProfile struct {
	DataFormats []string       `json:"data_formats,omitempty" yaml:"data_formats,omitempty"`
	Scheduler   *SchedulerHint `json:"scheduler,omitempty" yaml:"scheduler,omitempty"`
	Services    []string       `json:"services,omitempty" yaml:"services,omitempty"`
	Extensions  map[string]any `json:"extensions,omitempty" yaml:"extensions,omitempty"`
}

// Communication declares how the caller wants results delivered and failures
// handled.
type Communication struct {
	Mode          ExecutionMode `json:"mode,omitempty" yaml:"mode,omitempty"`
	Callback      string        `json:"callback,omitempty" yaml:"callback,omitempty"`
	ErrorHandling ErrorPolicy   `json:"error_handling,omitempty" yaml:"error_handling,omitempty"`
	MaxRetries    int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

// PersonaContext is the unit exchanged between two persona invocations.
type PersonaContext struct {
	Metadata      ContextMetadata `json:"metadata" yaml:"metadata"`
	Environment   Environment     `json:"environment,omitempty" yaml:"environment,omitempty"`
	Artifacts     Artifacts       `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Scientific    PipelineProfile `json:"scientific,omitempty" yaml:"scientific,omitempty"`
	Communication Communication   `json:"communication,omitempty" yaml:"communication,omitempty"`
}
