package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateCloneIsDeep(t *testing.T) {
	summary := "so far"
	s := &State{
		History: []string{"_AUTHOR=A\nhi"},
		Summary: &summary,
		Agents:  []Agent{{Name: "A", Model: "m"}},
	}

	c := s.Clone()
	c.History[0] = "changed"
	*c.Summary = "changed"
	c.Agents[0].Name = "Z"

	assert.Equal(t, "_AUTHOR=A\nhi", s.History[0])
	assert.Equal(t, "so far", *s.Summary)
	assert.Equal(t, "A", s.Agents[0].Name)
}

func TestTurnResultEncodesNullSummary(t *testing.T) {
	b, err := json.Marshal(TurnResult{History: []string{"x"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"history":["x"],"summary":null}`, string(b))

	var s State
	require.NoError(t, json.Unmarshal([]byte(`{"history":["a"],"summary":null,"agents":[{"name":"A","model":"m","system":"s"}]}`), &s))
	assert.Nil(t, s.Summary)
	require.Len(t, s.Agents, 1)
	assert.Equal(t, "s", s.Agents[0].System)
}

func TestContents(t *testing.T) {
	msgs := []ChatMessage{
		NewChatMessage(RoleUser, "one"),
		NewChatMessage(RoleAssistant, "two"),
	}
	assert.Equal(t, []string{"one", "two"}, Contents(msgs))
	assert.Equal(t, "[assistant]: two", msgs[1].String())
}
