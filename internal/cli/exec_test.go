package cli

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harun/cortex/pkg/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execJSON(t *testing.T, path string, args ...string) resultView {
	t.Helper()

	out, err := runCLI(t, append([]string{"--config", path, "exec"}, args...)...)
	require.NoError(t, err)

	var view resultView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	return view
}

func TestExec_Declarative(t *testing.T) {
	path := initConfig(t)

	execJSON(t, path, "declarative", "store", "--key", "capital", "--value", "Paris")

	view := execJSON(t, path, "declarative", "retrieve", "--key", "capital")
	assert.True(t, view.Found)
	assert.Equal(t, "Paris", view.Value)
	assert.Empty(t, view.Encoding)
	assert.Nil(t, view.Sentiment)

	_, err := runCLI(t, "--config", path, "exec", "declarative", "retrieve", "--key", "nowhere")
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestExec_Emotional(t *testing.T) {
	path := initConfig(t)

	execJSON(t, path, "emotional", "store", "--key", "rain", "--value", "gloomy", "--sentiment", "-0.4")
	execJSON(t, path, "emotional", "store", "--key", "sun", "--value", "bright", "--sentiment", "0.8")

	view := execJSON(t, path, "emotional", "retrieve", "--key", "rain")
	assert.Equal(t, "gloomy", view.Value)
	require.NotNil(t, view.Sentiment)
	assert.InDelta(t, -0.4, *view.Sentiment, 1e-9)

	_, err := runCLI(t, "--config", path, "exec", "emotional", "store", "--key", "fog", "--value", "grey")
	assert.ErrorIs(t, err, memory.ErrMissingSentiment)

	execJSON(t, path, "emotional", "store", "--key", "calm", "--value", "still", "--sentiment", "0")
	view = execJSON(t, path, "emotional", "retrieve", "--key", "calm")
	require.NotNil(t, view.Sentiment)
	assert.Zero(t, *view.Sentiment)

	view = execJSON(t, path, "emotional", "query_sentiment", "--min", "0.5")
	require.Len(t, view.Entries, 1)
	assert.Equal(t, "sun", view.Entries[0].Key)
	assert.Equal(t, "bright", view.Entries[0].Value)
}

func TestExec_Procedural(t *testing.T) {
	path := initConfig(t)

	file := filepath.Join(t.TempDir(), "deploy.yaml")
	require.NoError(t, os.WriteFile(file, []byte("steps: [build, ship]\n"), 0644))

	execJSON(t, path, "procedural", "store_procedure", "--key", "deploy", "--value-file", file)

	view := execJSON(t, path, "procedural", "list_procedures")
	assert.Equal(t, []string{"deploy"}, view.Names)

	view = execJSON(t, path, "procedural", "load_procedure", "--key", "deploy")
	assert.Equal(t, "steps: [build, ship]\n", view.Value)

	execJSON(t, path, "procedural", "delete_procedure", "--key", "deploy")
	view = execJSON(t, path, "procedural", "list_procedures")
	assert.Empty(t, view.Names)
}

func TestExec_Associative(t *testing.T) {
	path := initConfig(t)

	execJSON(t, path, "associative", "add_association", "--key", "fire", "--target", "heat")
	execJSON(t, path, "associative", "add_association", "--key", "heat", "--target", "summer")

	view := execJSON(t, path, "associative", "get_associations", "--key", "fire")
	assert.Equal(t, []string{"heat"}, view.Concepts)

	view = execJSON(t, path, "associative", "traverse", "--key", "fire", "--depth", "2")
	assert.ElementsMatch(t, []string{"heat", "summer"}, view.Concepts)
}

func TestExec_BinaryValue(t *testing.T) {
	path := initConfig(t)

	raw := []byte{0xff, 0xfe, 0x00, 0x01}
	file := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(file, raw, 0644))

	execJSON(t, path, "declarative", "store", "--key", "blob", "--value-file", file)

	view := execJSON(t, path, "declarative", "retrieve", "--key", "blob")
	assert.Equal(t, "base64", view.Encoding)
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), view.Value)
}

func TestExec_Errors(t *testing.T) {
	path := initConfig(t)

	t.Run("unknown region", func(t *testing.T) {
		_, err := runCLI(t, "--config", path, "exec", "thalamus", "get")
		assert.ErrorIs(t, err, memory.ErrUnknownRegion)
	})

	t.Run("unsupported operation", func(t *testing.T) {
		_, err := runCLI(t, "--config", path, "exec", "working", "store", "--key", "k")
		assert.ErrorIs(t, err, memory.ErrUnsupportedOperation)
	})

	t.Run("missing args", func(t *testing.T) {
		_, err := runCLI(t, "--config", path, "exec", "working")
		assert.Error(t, err)
	})

	t.Run("value and value-file", func(t *testing.T) {
		_, err := runCLI(t, "--config", path, "exec", "declarative", "store", "--key", "k", "--value", "a", "--value-file", "b")
		assert.Error(t, err)
	})
}

func TestBuildRequest(t *testing.T) {
	req, err := buildRequest(strings.NewReader("from stdin"), []string{"Working", " PUT "}, execOptions{
		key:       "k",
		valueFile: "-",
		min:       -1,
		max:       1,
		depth:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, memory.RegionWorking, req.Region)
	assert.Equal(t, memory.OpPut, req.Op)
	assert.Equal(t, []byte("from stdin"), req.Value)
	assert.Equal(t, -1.0, req.MinSentiment)
	assert.Equal(t, 1.0, req.MaxSentiment)
	assert.Nil(t, req.Sentiment)

	req, err = buildRequest(nil, []string{"emotional", "store"}, execOptions{key: "k", sentiment: 0, hasSent: true})
	require.NoError(t, err)
	require.NotNil(t, req.Sentiment)
	assert.Zero(t, *req.Sentiment)

	_, err = buildRequest(nil, []string{"declarative", "store"}, execOptions{valueFile: "/does/not/exist"})
	assert.Error(t, err)
}

func TestCheckpointCommand(t *testing.T) {
	path := initConfig(t)

	execJSON(t, path, "declarative", "store", "--key", "capital", "--value", "Paris")

	out, err := runCLI(t, "--config", path, "checkpoint")
	require.NoError(t, err)
	assert.Contains(t, out, "Checkpoint complete")
}

func TestExec_TraceAndAudit(t *testing.T) {
	path := initConfig(t)
	audit := filepath.Join(t.TempDir(), "audit.log")

	_, err := runCLI(t, "--config", path, "--trace", "--audit-log", audit,
		"exec", "procedural", "store_procedure", "--key", "deploy", "--value", "run")
	require.NoError(t, err)

	_, err = runCLI(t, "--config", path, "--trace", "--audit-log", audit,
		"exec", "procedural", "delete_procedure", "--key", "deploy")
	require.NoError(t, err)

	data, err := os.ReadFile(audit)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"delete_procedure"`)
	assert.Contains(t, string(data), `"key":"deploy"`)
	assert.Contains(t, string(data), `"trace_id"`)
}
