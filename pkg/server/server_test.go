package server

import (
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/inference/collector"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/orchestrator"
	"github.com/go-go-golems/parley/pkg/store"
	"github.com/go-go-golems/parley/pkg/stream"
	"github.com/go-go-golems/parley/pkg/summarizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedEngine answers every stream call with the next scripted reply.
type scriptedEngine struct {
	mu      sync.Mutex
	replies []string
	streams []engine.Request
	summary string
}

func (s *scriptedEngine) Complete(context.Context, engine.Request) (*string, error) {
	summary := s.summary
	return &summary, nil
}

func (s *scriptedEngine) Stream(_ context.Context, req engine.Request, onDelta collector.AppendFunc) (string, error) {
	s.mu.Lock()
	s.streams = append(s.streams, req)
	reply := s.replies[0]
	s.replies = s.replies[1:]
	s.mu.Unlock()

	if onDelta != nil {
		for _, r := range reply {
			if err := onDelta(string(r)); err != nil {
				return "", err
			}
		}
	}
	return reply, nil
}

func newTestServer(t *testing.T, e *scriptedEngine) (*httptest.Server, *stream.Client) {
	t.Helper()

	st, err := store.OpenBoltStore(filepath.Join(t.TempDir(), "parley.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	s := summarizer.New(e, "summary-model", summarizer.WithWindow(2))
	srv, err := NewServer(Config{
		Engine:       e,
		Summarizer:   s,
		Orchestrator: orchestrator.New(e, s),
		DefaultModel: "default-model",
		Store:        st,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, stream.NewClient(ts.URL)
}

func agents() []conversation.Agent {
	return []conversation.Agent{
		{Name: "A", Model: "m", System: "You are A."},
		{Name: "B", Model: "m", System: "You are B."},
	}
}

func TestChatConversationUntilEveryoneIsFinal(t *testing.T) {
	e := &scriptedEngine{replies: []string{
		"_AUTHOR=B\n_TARGET=A\nhello A",
		"_AUTHOR=A\n_FINAL\nbye",
		"_AUTHOR=B\n_TARGET=_FINAL\nbye too",
	}}
	_, client := newTestServer(t, e)

	state := conversation.State{
		History: []string{"_AUTHOR=A\n_TARGET=B\nhi B"},
		Agents:  agents(),
	}

	var speakers []string
	for turn := 0; turn < 10; turn++ {
		var partial string
		res, err := stream.Call(context.Background(), client, ChatOperation, state, func(p string) { partial = p })
		require.NoError(t, err)
		if len(res.History) == len(state.History) {
			break
		}
		assert.True(t, strings.HasPrefix(res.History[len(res.History)-1], partial))
		state.History = res.History
		state.Summary = res.Summary
	}

	for _, req := range e.streams {
		speakers = append(speakers, req.Agent)
	}
	assert.Equal(t, []string{"B", "A", "B"}, speakers)
	assert.Len(t, state.History, 4)
	assert.Empty(t, e.replies)
}

func TestSummarizeOperation(t *testing.T) {
	e := &scriptedEngine{summary: "condensed"}
	_, client := newTestServer(t, e)

	res, err := stream.Call(context.Background(), client, SummarizeOperation, SummarizeInput{
		History: []string{"1", "2", "3", "4"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4"}, res.History)
	require.NotNil(t, res.Summary)
	assert.Equal(t, "condensed", *res.Summary)

	res, err = stream.Call(context.Background(), client, SummarizeOperation, SummarizeInput{History: []string{"1"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, res.History)
	assert.Nil(t, res.Summary)
}

func TestCompleteOperation(t *testing.T) {
	e := &scriptedEngine{replies: []string{"Hi there"}}
	_, client := newTestServer(t, e)

	var partials []string
	out, err := stream.Call(context.Background(), client, CompleteOperation, CompleteInput{
		Query:   "hello",
		History: []string{"q1", "a1"},
	}, func(p string) { partials = append(partials, p) })
	require.NoError(t, err)
	assert.Equal(t, "Hi there", out)
	require.NotEmpty(t, partials)

	req := e.streams[0]
	assert.Equal(t, "default-model", req.Model)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, DefaultCompleteSystemPrompt, req.Messages[0].Content)
	assert.Equal(t, conversation.RoleUser, req.Messages[1].Role)
	assert.Equal(t, conversation.RoleAssistant, req.Messages[2].Role)
	assert.Equal(t, conversation.NewChatMessage(conversation.RoleUser, "hello"), req.Messages[3])

	_, err = stream.Call(context.Background(), client, CompleteOperation, CompleteInput{History: []string{}}, nil)
	require.Error(t, err)
}

func TestHistorySaveAndLoad(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedEngine{})
	hc := NewHistoryClient(ts.URL)

	summary := "so far"
	id, err := hc.Save(context.Background(), SaveHistoryRequest{
		History: []string{"_AUTHOR=A\nhi"},
		Agents:  agents(),
		Summary: &summary,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	snap, err := hc.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, snap.ID)
	assert.Equal(t, []string{"_AUTHOR=A\nhi"}, snap.History)
	assert.Equal(t, agents(), snap.Agents)
	assert.Equal(t, "so far", *snap.Summary)

	_, err = hc.Load(context.Background(), fmt.Sprintf("missing-%s", id))
	require.ErrorIs(t, err, store.ErrNotFound)
}
