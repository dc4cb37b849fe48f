package model

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ChamsBouzaiene/vimlm/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReply struct {
	deltas []string
	finish string
	err    error // returned on the error channel after the deltas

	noUsage bool
}

type fakeLLM struct {
	replies  []scriptedReply
	requests [][]engine.ChatMessage
	opts     []engine.ChatOptions
}

func (f *fakeLLM) Chat(ctx context.Context, model string, messages []engine.ChatMessage, opts engine.ChatOptions) (engine.LLMResponse, error) {
	f.requests = append(f.requests, append([]engine.ChatMessage(nil), messages...))
	f.opts = append(f.opts, opts)

	reply := f.replies[0]
	f.replies = f.replies[1:]
	if reply.err != nil {
		return engine.LLMResponse{}, reply.err
	}
	text := strings.Join(reply.deltas, "")
	resp := engine.LLMResponse{
		Assistant:    engine.ChatMessage{Role: engine.RoleAssistant, Content: text},
		FinishReason: reply.finish,
	}
	if !reply.noUsage {
		resp.Usage = engine.Usage{Prompt: 10, Completion: len(reply.deltas), Total: 10 + len(reply.deltas)}
	}
	return resp, nil
}

func (f *fakeLLM) Stream(ctx context.Context, model string, messages []engine.ChatMessage, opts engine.ChatOptions) (<-chan engine.StreamEvent, <-chan error) {
	f.requests = append(f.requests, append([]engine.ChatMessage(nil), messages...))
	f.opts = append(f.opts, opts)

	reply := f.replies[0]
	f.replies = f.replies[1:]

	events := make(chan engine.StreamEvent, len(reply.deltas)+2)
	errs := make(chan error, 1)
	for _, d := range reply.deltas {
		events <- engine.StreamEvent{Type: engine.EventTextDelta, Text: d}
	}
	if reply.err == nil && !reply.noUsage {
		events <- engine.StreamEvent{Type: engine.EventUsage, Usage: engine.Usage{Prompt: 10, Completion: len(reply.deltas), Total: 10 + len(reply.deltas)}}
	}
	if reply.err == nil {
		finish := reply.finish
		if finish == "" {
			finish = engine.FinishStop
		}
		events <- engine.StreamEvent{Type: engine.EventFinish, FinishReason: finish}
	}
	close(events)
	errs <- reply.err
	close(errs)
	return events, errs
}

func newTestSession(llm engine.LLMClient) *Session {
	return New(llm, Config{
		Model: "test-model",
		Retry: &engine.RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
	})
}

func TestGenerateStreamsAndRecordsHistory(t *testing.T) {
	llm := &fakeLLM{replies: []scriptedReply{{deltas: []string{"hel", "lo"}}}}
	s := newTestSession(llm)

	var sink strings.Builder
	res, err := s.Generate(context.Background(), "say hello", 50, &sink)
	require.NoError(t, err)

	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, "hello", sink.String())
	assert.Equal(t, 2, res.Tokens)
	assert.Equal(t, 10, res.Stats.PromptTokens)
	assert.Equal(t, "hello", s.LastResponse())
	assert.False(t, s.Truncated())
	assert.Equal(t, 50, llm.opts[0].MaxOutputTokens)
}

func TestGenerateKeepsConversationUntilReset(t *testing.T) {
	llm := &fakeLLM{replies: []scriptedReply{
		{deltas: []string{"one"}},
		{deltas: []string{"two"}},
		{deltas: []string{"three"}},
	}}
	s := newTestSession(llm)
	ctx := context.Background()

	_, err := s.Generate(ctx, "first", 10, nil)
	require.NoError(t, err)
	_, err = s.Generate(ctx, "second", 10, nil)
	require.NoError(t, err)
	require.Len(t, llm.requests[1], 3)
	assert.Equal(t, "one", llm.requests[1][1].Content)

	s.Reset()
	assert.Empty(t, s.LastResponse())
	_, err = s.Generate(ctx, "third", 10, nil)
	require.NoError(t, err)
	assert.Len(t, llm.requests[2], 1)
}

func TestResumeAfterTruncation(t *testing.T) {
	llm := &fakeLLM{replies: []scriptedReply{
		{deltas: []string{"func main() {"}, finish: engine.FinishLength},
		{deltas: []string{"\n}"}},
	}}
	s := newTestSession(llm)
	ctx := context.Background()

	_, err := s.Generate(ctx, "write main", 5, nil)
	require.NoError(t, err)
	assert.True(t, s.Truncated())

	var sink strings.Builder
	res, err := s.Resume(ctx, 20, &sink)
	require.NoError(t, err)
	assert.Equal(t, "\n}", res.Text)
	assert.Equal(t, "\n}", sink.String())
	assert.Equal(t, "func main() {\n}", s.LastResponse())
	assert.False(t, s.Truncated())

	// continuation request ends with the continue instruction
	req := llm.requests[1]
	assert.Equal(t, engine.RoleUser, req[len(req)-1].Role)
	assert.Equal(t, engine.RoleAssistant, req[len(req)-2].Role)
}

func TestResumeWithoutHistory(t *testing.T) {
	s := newTestSession(&fakeLLM{})
	_, err := s.Resume(context.Background(), 10, nil)
	assert.ErrorIs(t, err, ErrNothingToResume)
}

func TestGenerateRetriesBeforeOutput(t *testing.T) {
	llm := &fakeLLM{replies: []scriptedReply{
		{err: errors.New("dial tcp: connection refused")},
		{deltas: []string{"ok"}},
	}}
	s := newTestSession(llm)

	var sink strings.Builder
	res, err := s.Generate(context.Background(), "hi", 10, &sink)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, "ok", sink.String())
	assert.Len(t, llm.requests, 2)
}

func TestGenerateDoesNotRetryAfterPartialOutput(t *testing.T) {
	llm := &fakeLLM{replies: []scriptedReply{
		{deltas: []string{"par"}, err: errors.New("connection reset by peer")},
		{deltas: []string{"never"}},
	}}
	s := newTestSession(llm)

	var sink strings.Builder
	_, err := s.Generate(context.Background(), "hi", 10, &sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream interrupted")
	assert.Equal(t, "par", sink.String())
	assert.Len(t, llm.requests, 1)
	assert.Empty(t, s.LastResponse())
}

type countingTokenizer struct{ calls int }

func (c *countingTokenizer) CountTokens(text string) int {
	c.calls++
	return len(strings.Fields(text))
}

func TestCountTokensMemoized(t *testing.T) {
	tok := &countingTokenizer{}
	s := New(&fakeLLM{}, Config{Tokenizer: tok})

	assert.Equal(t, 3, s.CountTokens("a b c"))
	assert.Equal(t, 3, s.CountTokens("a b c"))
	assert.Equal(t, 0, s.CountTokens(""))
	assert.Equal(t, 1, tok.calls)
}

func TestGenerateEstimatesPromptTokensWithoutUsage(t *testing.T) {
	llm := &fakeLLM{replies: []scriptedReply{{deltas: []string{"a b c"}, noUsage: true}}}
	s := newTestSession(llm)

	res, err := s.Generate(context.Background(), "count these words please", 10, nil)
	require.NoError(t, err)

	want := engine.CountTokensForMessages(engine.DefaultTokenizer{}, []engine.ChatMessage{
		{Role: engine.RoleUser, Content: "count these words please"},
	})
	assert.Equal(t, want, res.Stats.PromptTokens)
	assert.Positive(t, res.Stats.PromptTokens)
	assert.Equal(t, s.CountTokens("a b c"), res.Tokens)
}

func TestCompleteLeavesConversationAlone(t *testing.T) {
	llm := &fakeLLM{replies: []scriptedReply{
		{deltas: []string{"first reply"}},
		{err: errors.New("503 service unavailable")},
		{deltas: []string{"**a.txt**"}, noUsage: true},
	}}
	s := newTestSession(llm)
	ctx := context.Background()

	_, err := s.Generate(ctx, "write a", 10, nil)
	require.NoError(t, err)

	res, err := s.Complete(ctx, "relabel this", 30)
	require.NoError(t, err)
	assert.Equal(t, "**a.txt**", res.Text)
	assert.Equal(t, engine.FinishStop, res.Stats.FinishReason)
	assert.Positive(t, res.Stats.PromptTokens)

	require.Len(t, llm.requests, 3)
	assert.Equal(t, []engine.ChatMessage{{Role: engine.RoleUser, Content: "relabel this"}}, llm.requests[2])
	assert.Equal(t, 30, llm.opts[2].MaxOutputTokens)
	assert.Equal(t, "first reply", s.LastResponse())
	assert.False(t, s.Truncated())
}

func TestCompleteReportsExhaustedRetries(t *testing.T) {
	busy := errors.New("503 service unavailable")
	llm := &fakeLLM{replies: []scriptedReply{{err: busy}, {err: busy}, {err: busy}}}
	s := newTestSession(llm)

	_, err := s.Complete(context.Background(), "relabel this", 30)
	require.Error(t, err)
	assert.True(t, engine.IsRetryExhausted(err))
	assert.ErrorIs(t, err, busy)
	assert.Len(t, llm.requests, 3)
}
