package summarizer

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/inference/collector"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	requests []engine.Request
	summary  *string
	err      error
}

func (f *fakeEngine) Complete(_ context.Context, req engine.Request) (*string, error) {
	f.requests = append(f.requests, req)
	return f.summary, f.err
}

func (f *fakeEngine) Stream(context.Context, engine.Request, collector.AppendFunc) (string, error) {
	return "", errors.New("not used")
}

func history(n int) []conversation.ChatMessage {
	ret := make([]conversation.ChatMessage, n)
	for i := range ret {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		ret[i] = conversation.NewChatMessage(role, fmt.Sprintf("msg %d", i))
	}
	return ret
}

func ptr(s string) *string { return &s }

func TestShouldSummarize(t *testing.T) {
	assert.False(t, ShouldSummarize(25, DefaultWindow, DefaultSlack))
	assert.True(t, ShouldSummarize(26, DefaultWindow, DefaultSlack))
	assert.False(t, ShouldSummarize(0, DefaultWindow, DefaultSlack))
}

func TestSummarizeNoOpWithinWindow(t *testing.T) {
	for _, n := range []int{0, 1, DefaultWindow} {
		e := &fakeEngine{summary: ptr("unused")}
		s := New(e, "m")

		in := history(n)
		prev := ptr("earlier")
		res, err := s.Summarize(context.Background(), prev, in)
		require.NoError(t, err)
		assert.Empty(t, e.requests, "no generation call for n=%d", n)
		assert.Equal(t, in, res.History)
		assert.Same(t, prev, res.Summary)

		res, err = s.Summarize(context.Background(), nil, in)
		require.NoError(t, err)
		assert.Nil(t, res.Summary)
	}
}

func TestSummarizeTrimsAndSummarizesOlderPrefix(t *testing.T) {
	e := &fakeEngine{summary: ptr("new summary")}
	s := New(e, "summary-model")

	in := history(DefaultWindow + 3)
	orig := append([]conversation.ChatMessage{}, in...)

	res, err := s.Summarize(context.Background(), ptr("old summary"), in)
	require.NoError(t, err)

	require.Len(t, e.requests, 1)
	req := e.requests[0]
	assert.Equal(t, "summary-model", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, conversation.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "old summary")
	assert.Equal(t, conversation.RoleUser, req.Messages[1].Role)
	assert.Equal(t, "msg 0\n\nmsg 1\n\nmsg 2", req.Messages[1].Content)

	require.NotNil(t, res.Summary)
	assert.Equal(t, "new summary", *res.Summary)
	assert.Equal(t, in[3:], res.History)
	assert.Len(t, res.History, DefaultWindow)

	// the input is untouched, and the result does not alias it
	assert.Equal(t, orig, in)
	res.History[0].Content = "changed"
	assert.Equal(t, "msg 3", in[3].Content)
}

func TestSummarizeWithoutPreviousSummary(t *testing.T) {
	e := &fakeEngine{}
	s := New(e, "m", WithWindow(2))

	res, err := s.Summarize(context.Background(), nil, history(3))
	require.NoError(t, err)
	require.Len(t, e.requests, 1)
	assert.NotContains(t, e.requests[0].Messages[0].Content, previousSummaryIntro)
	assert.Nil(t, res.Summary, "provider returned no content")
	assert.Len(t, res.History, 2)
}

func TestSummarizeProviderFailure(t *testing.T) {
	boom := errors.New("provider down")
	s := New(&fakeEngine{err: boom}, "m", WithWindow(1))
	res, err := s.Summarize(context.Background(), nil, history(2))
	require.ErrorIs(t, err, boom)
	assert.Nil(t, res)
}
