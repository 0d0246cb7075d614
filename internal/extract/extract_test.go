package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPrefixedAnnouncements(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	out := e.Extract("analysis starting\nCreated: output.csv\nGENERATED: report.pdf\nsaved = results/summary.txt\n")
	assert.Equal(t, []string{"output.csv", "report.pdf", "results/summary.txt"}, out)
}

func TestExtractURLsAndPaths(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	out := e.Extract("uploaded to https://example.com/run/42 and wrote /data/out/final.parquet plus ./tmp/scratch.bin")
	assert.Contains(t, out, "https://example.com/run/42")
	assert.Contains(t, out, "/data/out/final.parquet")
	assert.Contains(t, out, "./tmp/scratch.bin")
}

func TestExtractDeduplicatesPreservingOrder(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	out := e.Extract("Created: a.txt\nCreated: b.txt\nCreated: a.txt\n")
	assert.Equal(t, []string{"a.txt", "b.txt"}, out)
}

func TestExtractDropsNoise(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	out := e.Extract(
		"touched .git/objects/ab\n" +
			"cached in node_modules/pkg/index.js\n" +
			"see http://localhost:8080/status\n" +
			"see http://127.0.0.1/debug\n" +
			"Created: real/artifact.csv\n")
	assert.Equal(t, []string{"real/artifact.csv"}, out)
}

func TestExtractTrimsPunctuationAndQuotes(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	out := e.Extract(`wrote "results/out.json".`)
	assert.Contains(t, out, "results/out.json")
}

func TestExtractEmptyInput(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	assert.Empty(t, e.Extract(""))
	assert.Empty(t, e.Extract("no artifacts in this chatter"))
}
