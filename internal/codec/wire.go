package codec

import (
	"fmt"
	"time"

	"baton/pkg/types"
)

// Wire structs mirror pkg/types with integer field keys for compact,
// deterministic CBOR. Timestamps cross the wire as epoch milliseconds.

type wireContext struct {
	Metadata      wireMetadata    `cbor:"1,keyasint"`
	Environment   wireEnvironment `cbor:"2,keyasint"`
	Artifacts     wireArtifacts   `cbor:"3,keyasint"`
	Scientific    wireProfile     `cbor:"4,keyasint"`
	Communication wireComms       `cbor:"5,keyasint"`
}

type wireMetadata struct {
	ContextID        string `cbor:"1,keyasint"`
	SchemaVersion    string `cbor:"2,keyasint"`
	CreatedAtMs      int64  `cbor:"3,keyasint"`
	SourcePersona    string `cbor:"4,keyasint"`
	TargetPersona    string `cbor:"5,keyasint"`
	TaskDescription  string `cbor:"6,keyasint"`
	WorkingDirectory string `cbor:"7,keyasint"`
	Encoding         string `cbor:"8,keyasint"`
}

type wireEnvironment struct {
	Variables map[string]string `cbor:"1,keyasint,omitempty"`
	ExtraArgs []string          `cbor:"2,keyasint,omitempty"`
	TimeoutMs int64             `cbor:"3,keyasint,omitempty"`
}

type wireFileRef struct {
	Path      string              `cbor:"1,keyasint"`
	Role      string              `cbor:"2,keyasint"`
	Format    string              `cbor:"3,keyasint,omitempty"`
	SizeBytes int64               `cbor:"4,keyasint,omitempty"`
	Checksum  string              `cbor:"5,keyasint,omitempty"`
	Metadata  map[string]extValue `cbor:"6,keyasint,omitempty"`
}

type wireFact struct {
	Value        extValue `cbor:"1,keyasint"`
	RecordedAtMs int64    `cbor:"2,keyasint"`
}

type wireMemory struct {
	Facts        map[string]wireFact `cbor:"1,keyasint,omitempty"`
	Cache        []byte              `cbor:"2,keyasint,omitempty"`
	PersonaState []byte              `cbor:"3,keyasint,omitempty"`
}

type wireTurn struct {
	Role        string `cbor:"1,keyasint"`
	Text        string `cbor:"2,keyasint"`
	TimestampMs int64  `cbor:"3,keyasint"`
	Persona     string `cbor:"4,keyasint,omitempty"`
}

type wireResult struct {
	TaskID      string   `cbor:"1,keyasint"`
	Status      string   `cbor:"2,keyasint"`
	Output      string   `cbor:"3,keyasint,omitempty"`
	Artifacts   []string `cbor:"4,keyasint,omitempty"`
	ExecutionMs int64    `cbor:"5,keyasint,omitempty"`
	Error       string   `cbor:"6,keyasint,omitempty"`
}

type wireArtifacts struct {
	Files        []wireFileRef `cbor:"1,keyasint,omitempty"`
	Memory       wireMemory    `cbor:"2,keyasint"`
	Conversation []wireTurn    `cbor:"3,keyasint,omitempty"`
	History      []wireResult  `cbor:"4,keyasint,omitempty"`
}

type wireScheduler struct {
	Kind      string            `cbor:"1,keyasint"`
	Queue     string            `cbor:"2,keyasint,omitempty"`
	Resources map[string]string `cbor:"3,keyasint,omitempty"`
}

type wireProfile struct {
	DataFormats []string            `cbor:"1,keyasint,omitempty"`
	Scheduler   *wireScheduler      `cbor:"2,keyasint,omitempty"`
	Services    []string            `cbor:"3,keyasint,omitempty"`
	Extensions  map[string]extValue `cbor:"4,keyasint,omitempty"`
}

type wireComms struct {
	Mode          string `cbor:"1,keyasint,omitempty"`
	Callback      string `cbor:"2,keyasint,omitempty"`
	ErrorHandling string `cbor:"3,keyasint,omitempty"`
	MaxRetries    int    `cbor:"4,keyasint,omitempty"`
}

func toWire(pc *types.PersonaContext) (*wireContext, error) {
	files := make([]wireFileRef, 0, len(pc.Artifacts.Files))
	for i, f := range pc.Artifacts.Files {
		meta, err := encodeValueMap(f.Metadata)
		if err != nil {
			return nil, fmt.Errorf("artifact %d metadata: %w", i, err)
		}
		files = append(files, wireFileRef{
			Path:      f.Path,
			Role:      string(f.Role),
			Format:    f.Format,
			SizeBytes: f.SizeBytes,
			Checksum:  f.Checksum,
			Metadata:  meta,
		})
	}

	var facts map[string]wireFact
	if len(pc.Artifacts.Memory.Facts) > 0 {
		facts = make(map[string]wireFact, len(pc.Artifacts.Memory.Facts))
		for k, fact := range pc.Artifacts.Memory.Facts {
			val, err := encodeValue(fact.Value)
			if err != nil {
				return nil, fmt.Errorf("memory fact %q: %w", k, err)
			}
			facts[k] = wireFact{Value: val, RecordedAtMs: fact.RecordedAt.UnixMilli()}
		}
	}

	turns := make([]wireTurn, 0, len(pc.Artifacts.Conversation))
	for _, turn := range pc.Artifacts.Conversation {
		turns = append(turns, wireTurn{
			Role:        turn.Role,
			Text:        turn.Text,
			TimestampMs: turn.Timestamp.UnixMilli(),
			Persona:     turn.Persona,
		})
	}

	history := make([]wireResult, 0, len(pc.Artifacts.History))
	for _, r := range pc.Artifacts.History {
		history = append(history, wireResult{
			TaskID:      r.TaskID,
			Status:      string(r.Status),
			Output:      r.Output,
			Artifacts:   r.Artifacts,
			ExecutionMs: r.ExecutionTime.Milliseconds(),
			Error:       r.Error,
		})
	}

	extensions, err := encodeValueMap(pc.Scientific.Extensions)
	if err != nil {
		return nil, fmt.Errorf("scientific extensions: %w", err)
	}

	var sched *wireScheduler
	if pc.Scientific.Scheduler != nil {
		sched = &wireScheduler{
			Kind:      pc.Scientific.Scheduler.Kind,
			Queue:     pc.Scientific.Scheduler.Queue,
			Resources: pc.Scientific.Scheduler.Resources,
		}
	}

	return &wireContext{
		Metadata: wireMetadata{
			ContextID:        pc.Metadata.ContextID,
			SchemaVersion:    pc.Metadata.SchemaVersion,
			CreatedAtMs:      pc.Metadata.CreatedAt.UnixMilli(),
			SourcePersona:    pc.Metadata.SourcePersona,
			TargetPersona:    pc.Metadata.TargetPersona,
			TaskDescription:  pc.Metadata.TaskDescription,
			WorkingDirectory: pc.Metadata.WorkingDirectory,
			Encoding:         string(pc.Metadata.Encoding),
		},
		Environment: wireEnvironment{
			Variables: pc.Environment.Variables,
			ExtraArgs: pc.Environment.ExtraArgs,
			TimeoutMs: pc.Environment.TimeoutMs,
		},
		Artifacts: wireArtifacts{
			Files: files,
			Memory: wireMemory{
				Facts:        facts,
				Cache:        pc.Artifacts.Memory.Cache,
				PersonaState: pc.Artifacts.Memory.PersonaState,
			},
			Conversation: turns,
			History:      history,
		},
		Scientific: wireProfile{
			DataFormats: pc.Scientific.DataFormats,
			Scheduler:   sched,
			Services:    pc.Scientific.Services,
			Extensions:  extensions,
		},
		Communication: wireComms{
			Mode:          string(pc.Communication.Mode),
			Callback:      pc.Communication.Callback,
			ErrorHandling: string(pc.Communication.ErrorHandling),
			MaxRetries:    pc.Communication.MaxRetries,
		},
	}, nil
}

func fromWire(w *wireContext) (*types.PersonaContext, error) {
	var files []types.FileReference
	if len(w.Artifacts.Files) > 0 {
		files = make([]types.FileReference, 0, len(w.Artifacts.Files))
		for i, f := range w.Artifacts.Files {
			meta, err := decodeValueMap(f.Metadata)
			if err != nil {
				return nil, fmt.Errorf("artifact %d metadata: %w", i, err)
			}
			files = append(files, types.FileReference{
				Path:      f.Path,
				Role:      types.FileRole(f.Role),
				Format:    f.Format,
				SizeBytes: f.SizeBytes,
				Checksum:  f.Checksum,
				Metadata:  meta,
			})
		}
	}

	var facts map[string]types.Fact
	if len(w.Artifacts.Memory.Facts) > 0 {
		facts = make(map[string]types.Fact, len(w.Artifacts.Memory.Facts))
		for k, fact := range w.Artifacts.Memory.Facts {
			val, err := decodeValue(fact.Value)
			if err != nil {
				return nil, fmt.Errorf("memory fact %q: %w", k, err)
			}
			facts[k] = types.Fact{Value: val, RecordedAt: time.UnixMilli(fact.RecordedAtMs).UTC()}
		}
	}

	var turns []types.Turn
	if len(w.Artifacts.Conversation) > 0 {
		turns = make([]types.Turn, 0, len(w.Artifacts.Conversation))
		for _, turn := range w.Artifacts.Conversation {
			turns = append(turns, types.Turn{
				Role:      turn.Role,
				Text:      turn.Text,
				Timestamp: time.UnixMilli(turn.TimestampMs).UTC(),
				Persona:   turn.Persona,
			})
		}
	}

	var history []types.TaskResult
	if len(w.Artifacts.History) > 0 {
		history = make([]types.TaskResult, 0, len(w.Artifacts.History))
		for _, r := range w.Artifacts.History {
			history = append(history, types.TaskResult{
				TaskID:        r.TaskID,
				Status:        types.TaskStatus(r.Status),
				Output:        r.Output,
				Artifacts:     r.Artifacts,
				ExecutionTime: time.Duration(r.ExecutionMs) * time.Millisecond,
				Error:         r.Error,
			})
		}
	}

	extensions, err := decodeValueMap(w.Scientific.Extensions)
	if err != nil {
		return nil, fmt.Errorf("scientific extensions: %w", err)
	}

	var sched *types.SchedulerHint
	if w.Scientific.Scheduler != nil {
		sched = &types.SchedulerHint{
			Kind:      w.Scientific.Scheduler.Kind,
			Queue:     w.Scientific.Scheduler.Queue,
			Resources: w.Scientific.Scheduler.Resources,
		}
	}

	return &types.PersonaContext{
		Metadata: types.ContextMetadata{
			ContextID:        w.Metadata.ContextID,
			SchemaVersion:    w.Metadata.SchemaVersion,
			CreatedAt:        time.UnixMilli(w.Metadata.CreatedAtMs).UTC(),
			SourcePersona:    w.Metadata.SourcePersona,
			TargetPersona:    w.Metadata.TargetPersona,
			TaskDescription:  w.Metadata.TaskDescription,
			WorkingDirectory: w.Metadata.WorkingDirectory,
			Encoding:         types.EncodingFormat(w.Metadata.Encoding),
		},
		Environment: types.Environment{
			Variables: w.Environment.Variables,
			ExtraArgs: w.Environment.ExtraArgs,
			TimeoutMs: w.Environment.TimeoutMs,
		},
		Artifacts: types.Artifacts{
			Files: files,
			Memory: types.MemorySnapshot{
				Facts:        facts,
				Cache:        types.Blob(w.Artifacts.Memory.Cache),
				PersonaState: types.Blob(w.Artifacts.Memory.PersonaState),
			},
			Conversation: turns,
			History:      history,
		},
		Scientific: types.PipelineProfile{
			DataFormats: w.Scientific.DataFormats,
			Scheduler:   sched,
			Services:    w.Scientific.Services,
			Extensions:  extensions,
		},
		Communication: types.Communication{
			Mode:          types.ExecutionMode(w.Communication.Mode),
			Callback:      w.Communication.Callback,
			ErrorHandling: types.ErrorPolicy(w.Communication.ErrorHandling),
			MaxRetries:    w.Communication.MaxRetries,
		},
	}, nil
}
