// Package security rejects unsafe context content before anything is
// persisted or a process is spawned.
package security

import (
	"fmt"
	"path/filepath"
	"strings"

	batonerrors "baton/internal/errors"
	"baton/internal/logging"
	"baton/pkg/types"
)

// defaultDeniedEnv lists environment variables considered dangerous for a
// child process to inherit from a context: the executable search path and
// the dynamic-library search/injection paths, plus the common interpreter
// equivalents.
var defaultDeniedEnv = []string{
	"PATH",
	"LD_PRELOAD",
	"LD_LIBRARY_PATH",
	"LD_AUDIT",
	"DYLD_LIBRARY_PATH",
	"DYLD_INSERT_LIBRARIES",
	"DYLD_FRAMEWORK_PATH",
	"PYTHONPATH",
	"NODE_OPTIONS",
	"IFS",
}

// Validator screens contexts against the configured limits.
type Validator struct {
	maxFileSize int64
	deniedEnv   map[string]bool
	logger      *logging.Logger
}

// NewValidator builds a Validator with the default deny-list and the given
// per-file size cap in bytes.
func NewValidator(maxFileSize int64) *Validator {
	denied := make(map[string]bool, len(defaultDeniedEnv))
	for _, name := range defaultDeniedEnv {
		denied[name] = true
	}
	return &Validator{
		maxFileSize: maxFileSize,
		deniedEnv:   denied,
		logger:      logging.NewComponentLogger("SecurityValidator"),
	}
}

// Validate runs the security checks in order: artifact path containment,
// dangerous environment variable stripping, per-file size caps. A violation
// rejects the whole context; stripping mutates the context silently but is
// logged. Validate runs before encoding, so a rejected context is never
// persisted and no process is spawned.
func (v *Validator) Validate(pc *types.PersonaContext) error {
	if err := v.checkPaths(pc); err != nil {
		return err
	}
	v.stripDeniedEnv(pc)
	return v.checkSizes(pc)
}

func (v *Validator) checkPaths(pc *types.PersonaContext) error {
	workDir := pc.Metadata.WorkingDirectory
	if workDir == "" {
		workDir = "."
	}
	absWork, err := filepath.Abs(workDir)
	if err != nil {
		return &batonerrors.SecurityViolation{
			Check:  "path-traversal",
			Field:  workDir,
			Reason: fmt.Sprintf("cannot resolve working directory: %v", err),
		}
	}

	for _, ref := range pc.Artifacts.Files {
		resolved := ref.Path
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(absWork, resolved)
		}
		resolved = filepath.Clean(resolved)

		rel, err := filepath.Rel(absWork, resolved)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return &batonerrors.SecurityViolation{
				Check:  "path-traversal",
				Field:  ref.Path,
				Reason: fmt.Sprintf("resolves outside working tree %s", absWork),
			}
		}
	}
	return nil
}

// stripDeniedEnv removes deny-listed variables in place. Silent toward the
// caller, but every strip is logged for observability.
func (v *Validator) stripDeniedEnv(pc *types.PersonaContext) {
	for name := range pc.Environment.Variables {
		if v.deniedEnv[strings.ToUpper(name)] {
			delete(pc.Environment.Variables, name)
			v.logger.Warn("stripped dangerous environment variable %s from context %s",
				name, pc.Metadata.ContextID)
		}
	}
}

func (v *Validator) checkSizes(pc *types.PersonaContext) error {
	for _, ref := range pc.Artifacts.Files {
		if ref.SizeBytes > v.maxFileSize {
			return &batonerrors.SecurityViolation{
				Check:  "file-size",
				Field:  ref.Path,
				Reason: fmt.Sprintf("declared size %d exceeds cap %d", ref.SizeBytes, v.maxFileSize),
			}
		}
	}
	return nil
}
