package security

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	batonerrors "baton/internal/errors"
	"baton/pkg/types"
)

func contextWithFiles(workDir string, paths ...string) *types.PersonaContext {
	pc := &types.PersonaContext{
		Metadata: types.ContextMetadata{
			ContextID:        "ctx-test",
			WorkingDirectory: workDir,
		},
	}
	for _, p := range paths {
		pc.Artifacts.Files = append(pc.Artifacts.Files, types.FileReference{
			Path: p,
			Role: types.RoleInput,
		})
	}
	return pc
}

func TestValidateAcceptsPathsInsideWorkingTree(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	v := NewValidator(100 << 20)
	pc := contextWithFiles(workDir, "data/input.csv", "./nested/../output.txt", filepath.Join(workDir, "abs.bin"))

	require.NoError(t, v.Validate(pc))
}

func TestValidateRejectsParentEscape(t *testing.T) {
	t.Parallel()

	v := NewValidator(100 << 20)
	pc := contextWithFiles(t.TempDir(), "../../etc/passwd")

	err := v.Validate(pc)
	require.Error(t, err)
	var violation *batonerrors.SecurityViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "path-traversal", violation.Check)
	assert.Equal(t, "../../etc/passwd", violation.Field)
}

func TestValidateRejectsAbsolutePathOutsideTree(t *testing.T) {
	t.Parallel()

	v := NewValidator(100 << 20)
	pc := contextWithFiles(t.TempDir(), "/etc/passwd")

	err := v.Validate(pc)
	var violation *batonerrors.SecurityViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "path-traversal", violation.Check)
}

func TestValidateRejectsSneakyRelativeEscape(t *testing.T) {
	t.Parallel()

	v := NewValidator(100 << 20)
	pc := contextWithFiles(t.TempDir(), "safe/../../outside.txt")

	err := v.Validate(pc)
	require.Error(t, err)
	assert.True(t, batonerrors.IsSecurityViolation(err))
}

func TestValidateStripsDangerousEnvVars(t *testing.T) {
	t.Parallel()

	v := NewValidator(100 << 20)
	pc := contextWithFiles(t.TempDir())
	pc.Environment.Variables = map[string]string{
		"PATH":            "/evil/bin",
		"LD_PRELOAD":      "/evil/hook.so",
		"ld_library_path": "/evil/lib", // case-insensitive match
		"PIPELINE_STAGE":  "2",
		"HOME":            "/home/user",
	}

	require.NoError(t, v.Validate(pc))
	assert.Equal(t, map[string]string{
		"PIPELINE_STAGE": "2",
		"HOME":           "/home/user",
	}, pc.Environment.Variables)
}

func TestValidateRejectsOversizedArtifact(t *testing.T) {
	t.Parallel()

	v := NewValidator(1024)
	pc := contextWithFiles(t.TempDir(), "big.bin")
	pc.Artifacts.Files[0].SizeBytes = 4096

	err := v.Validate(pc)
	require.Error(t, err)
	var violation *batonerrors.SecurityViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "file-size", violation.Check)
	assert.Equal(t, "big.bin", violation.Field)
}

func TestValidateSizeAtCapPasses(t *testing.T) {
	t.Parallel()

	v := NewValidator(1024)
	pc := contextWithFiles(t.TempDir(), "exact.bin")
	pc.Artifacts.Files[0].SizeBytes = 1024

	require.NoError(t, v.Validate(pc))
}
