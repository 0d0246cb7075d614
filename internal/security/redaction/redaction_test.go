package redaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSensitiveKey(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSensitiveKey("API_KEY"))
	assert.True(t, IsSensitiveKey("github_token"))
	assert.True(t, IsSensitiveKey("DbPassword"))
	assert.False(t, IsSensitiveKey("WORKDIR"))
	assert.False(t, IsSensitiveKey(""))
}

func TestLooksLikeSecret(t *testing.T) {
	t.Parallel()

	assert.True(t, LooksLikeSecret("Bearer abc123"))
	assert.True(t, LooksLikeSecret("sk-proj-deadbeef"))
	assert.False(t, LooksLikeSecret("/data/input.csv"))
	assert.False(t, LooksLikeSecret(""))
}

func TestRedactStringMapDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := map[string]string{
		"API_TOKEN": "sk-live-1234",
		"DATA_DIR":  "/scratch/run-7",
	}
	out := RedactStringMap(in)

	assert.Equal(t, Placeholder, out["API_TOKEN"])
	assert.Equal(t, "/scratch/run-7", out["DATA_DIR"])
	assert.Equal(t, "sk-live-1234", in["API_TOKEN"])
}
