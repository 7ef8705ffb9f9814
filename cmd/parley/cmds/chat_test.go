package cmds

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/inference/collector"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/orchestrator"
	"github.com/go-go-golems/parley/pkg/server"
	"github.com/go-go-golems/parley/pkg/stream"
	"github.com/go-go-golems/parley/pkg/summarizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type replyEngine struct {
	mu      sync.Mutex
	replies []string
}

func (r *replyEngine) Complete(context.Context, engine.Request) (*string, error) {
	return nil, nil
}

func (r *replyEngine) Stream(_ context.Context, _ engine.Request, onDelta collector.AppendFunc) (string, error) {
	r.mu.Lock()
	reply := r.replies[0]
	r.replies = r.replies[1:]
	r.mu.Unlock()

	if onDelta != nil {
		if err := onDelta(reply); err != nil {
			return "", err
		}
	}
	return reply, nil
}

func newChatLoop(t *testing.T, e engine.Engine, continuous bool, maxTurns int) (*chatLoop, *bytes.Buffer) {
	t.Helper()
	s := summarizer.New(e, "m")
	srv, err := server.NewServer(server.Config{
		Engine:       e,
		Summarizer:   s,
		Orchestrator: orchestrator.New(e, s),
		DefaultModel: "m",
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	out := &bytes.Buffer{}
	return &chatLoop{
		client:     stream.NewClient(ts.URL),
		continuous: continuous,
		maxTurns:   maxTurns,
		out:        out,
	}, out
}

func twoAgents() []conversation.Agent {
	return []conversation.Agent{
		{Name: "A", Model: "m", System: "You are A."},
		{Name: "B", Model: "m", System: "You are B."},
	}
}

func TestSeedMessage(t *testing.T) {
	seed, err := SeedMessage(twoAgents(), "what is love?")
	require.NoError(t, err)
	assert.Equal(t, "_AUTHOR=A\n_TARGET=B\nwhat is love?", seed)

	_, err = SeedMessage(twoAgents()[:1], "q")
	require.Error(t, err)
}

func TestChatLoopRunsUntilEveryoneIsDone(t *testing.T) {
	e := &replyEngine{replies: []string{
		"_AUTHOR=B\n_FINAL\nlove is a word",
		"_AUTHOR=A\n_FINAL\nindeed",
	}}
	c, out := newChatLoop(t, e, true, 0)

	seed, err := SeedMessage(twoAgents(), "what is love?")
	require.NoError(t, err)
	state, err := c.run(context.Background(), conversation.State{History: []string{seed}, Agents: twoAgents()})
	require.NoError(t, err)

	assert.Len(t, state.History, 3)
	assert.Empty(t, e.replies)
	assert.Contains(t, out.String(), "love is a word")
	assert.Contains(t, out.String(), "indeed")
}

func TestChatLoopSingleTurn(t *testing.T) {
	e := &replyEngine{replies: []string{"_AUTHOR=B\n_TARGET=A\nfirst", "_AUTHOR=A\nsecond"}}
	c, _ := newChatLoop(t, e, false, 0)

	state, err := c.run(context.Background(), conversation.State{
		History: []string{"_AUTHOR=A\n_TARGET=B\nhi"},
		Agents:  twoAgents(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"_AUTHOR=A\n_TARGET=B\nhi", "_AUTHOR=B\n_TARGET=A\nfirst"}, state.History)
	assert.Len(t, e.replies, 1)
}

func TestChatLoopMaxTurns(t *testing.T) {
	e := &replyEngine{replies: []string{"_AUTHOR=B\none", "_AUTHOR=A\ntwo", "_AUTHOR=B\nthree"}}
	c, _ := newChatLoop(t, e, true, 2)

	state, err := c.run(context.Background(), conversation.State{
		History: []string{"_AUTHOR=A\n_TARGET=B\nhi"},
		Agents:  twoAgents(),
	})
	require.NoError(t, err)
	assert.Len(t, state.History, 3)
	assert.Len(t, e.replies, 1)
}

func TestChatLoopLivePrintsEachMessageOnce(t *testing.T) {
	e := &replyEngine{replies: []string{"_AUTHOR=B\nhello there"}}
	c, out := newChatLoop(t, e, false, 0)
	c.live = true

	_, err := c.run(context.Background(), conversation.State{
		History: []string{"_AUTHOR=A\n_TARGET=B\nhi"},
		Agents:  twoAgents(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out.String(), "hello there"))
	assert.NotContains(t, out.String(), stream.Sentinel)
}
