package cmds

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTokenCount(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTokenCount(&buf, "gpt-4", "hello world"))
	assert.Equal(t, "Model: gpt-4\nTotal tokens: 2\n", buf.String())
}

func TestLoadAgentsFillsMissingModel(t *testing.T) {
	agents, err := loadAgents("", "some-model")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(agents), 2)

	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agents:\n  - name: Solo\n    system: be brief\n  - name: Duo\n    model: pinned\n    system: be brief\n"), 0o644))
	agents, err = loadAgents(path, "m")
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "Solo", agents[0].Name)
	assert.Equal(t, "m", agents[0].Model)
	assert.Equal(t, "pinned", agents[1].Model)

	_, err = loadAgents(filepath.Join(t.TempDir(), "missing.yaml"), "m")
	require.Error(t, err)
}

func TestAgentRow(t *testing.T) {
	row := agentRow(conversation.Agent{Name: "A", Model: "m", Colour: "red", System: "s"})
	name, ok := row.Get("name")
	require.True(t, ok)
	assert.Equal(t, "A", name)
	colour, _ := row.Get("colour")
	assert.Equal(t, "red", colour)
	assert.Equal(t, 5, row.Len())
}

func TestOperationRow(t *testing.T) {
	row, err := operationRow(json.RawMessage(`{"name":"chat","input":{"type":"object","properties":{"history":{},"summary":{},"agents":{}},"required":["history","agents"]}}`))
	require.NoError(t, err)

	name, _ := row.Get("name")
	assert.Equal(t, "chat", name)
	fields, _ := row.Get("fields")
	assert.Equal(t, "agents,history,summary", fields)
	required, _ := row.Get("required")
	assert.Equal(t, "history,agents", required)

	_, err = operationRow(json.RawMessage(`[`))
	require.Error(t, err)
}
