package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/clarifai/internal/model"
	"github.com/ppiankov/clarifai/internal/store"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"docs/article.txt", "article"},
		{"/tmp/my report?.md", "my-report_"},
		{"a:b|c", "a_b_c"},
		{"", "report"},
		{strings.Repeat("x", 150) + ".txt", strings.Repeat("x", 100)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilename(tt.in))
		})
	}
}

func TestReadInput(t *testing.T) {
	source, content, err := readInput(nil, strings.NewReader("from stdin"))
	require.NoError(t, err)
	assert.Equal(t, "stdin", source)
	assert.Equal(t, "from stdin", content)

	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0644))
	source, content, err = readInput([]string{path}, nil)
	require.NoError(t, err)
	assert.Equal(t, path, source)
	assert.Equal(t, "from file", content)

	_, _, err = readInput([]string{filepath.Join(t.TempDir(), "missing.txt")}, nil)
	assert.Error(t, err)
}

func runFlagsCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	verification, modelName, chunkSize, noCache, stripHTML = model.VerificationLLM, "", 0, false, false
	cmd := &cobra.Command{Use: "test"}
	addRunFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestApplyRunFlags(t *testing.T) {
	cmd := runFlagsCommand(t, "--verification", "web", "--model", "small", "--chunk-size", "400", "--no-cache", "--strip-html")
	cfg := model.DefaultConfig()
	require.NoError(t, applyRunFlags(cmd, cfg))

	assert.Equal(t, model.VerificationWeb, cfg.Pipeline.ClaimVerificationSource)
	assert.Equal(t, "small", cfg.Models.Aggregation)
	assert.Equal(t, "small", cfg.Models.ExtractClaims)
	assert.Equal(t, 400, cfg.Pipeline.SegmentsChunkSize)
	assert.False(t, cfg.Cache.Enabled)
	assert.True(t, cfg.Pipeline.StripHTML)
}

func TestApplyRunFlags_KeepsConfigWhenUnset(t *testing.T) {
	cmd := runFlagsCommand(t)
	cfg := model.DefaultConfig()
	cfg.Pipeline.ClaimVerificationSource = model.VerificationWeb
	require.NoError(t, applyRunFlags(cmd, cfg))

	assert.Equal(t, model.VerificationWeb, cfg.Pipeline.ClaimVerificationSource)
	assert.Equal(t, model.DefaultConfig().Models, cfg.Models)
	assert.True(t, cfg.Cache.Enabled)
}

func TestApplyRunFlags_RejectsUnknownSource(t *testing.T) {
	cmd := runFlagsCommand(t, "--verification", "oracle")
	assert.Error(t, applyRunFlags(cmd, model.DefaultConfig()))
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Clarifai Configuration File"))

	var cfg model.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, model.DefaultConfig().Server.Addr, cfg.Server.Addr)
	assert.Equal(t, model.DefaultConfig().Server.RunTimeout, cfg.Server.RunTimeout)

	assert.ErrorContains(t, writeDefaultConfig(path), "already exists")
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger(model.LogConfig{Level: "warn"}, false)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(-1))

	log, err = newLogger(model.LogConfig{Level: "warn"}, true)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(-1))

	_, err = newLogger(model.LogConfig{Level: "loud"}, false)
	assert.Error(t, err)
}

func TestPrintAnnotated(t *testing.T) {
	claim := &model.VerifiedClaim{SegmentID: 0, Content: "Claim B is false.", Verdict: model.VerdictFalse, Explanation: "contradicted"}
	snap := store.Snapshot{
		Chunks: []store.Chunk{{
			ID:          0,
			Content:     "Claim A. Claim B is false.",
			Annotations: []store.Annotation{{Start: 9, End: 26, Type: store.AnnotationClaim, Claim: claim}},
		}},
		Score:  &model.Score{Index: 35, Confidence: "low"},
		Report: "One false claim.",
	}

	var buf bytes.Buffer
	printAnnotated(&buf, snap)
	out := buf.String()

	assert.Contains(t, out, "Claim A. [Claim B is false.]")
	assert.Contains(t, out, "claim `false`: contradicted")
	assert.Contains(t, out, "Reliability index: 35/100 (low confidence)")
	assert.True(t, strings.HasSuffix(out, "One false claim.\n"))
}

func TestGraphCommand(t *testing.T) {
	var buf bytes.Buffer
	graphCmd.SetOut(&buf)
	graphCmd.Run(graphCmd, nil)
	assert.Contains(t, buf.String(), "extractClaims -.-> reporter")
}
