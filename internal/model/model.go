// Package model implements the conversational model capability on top of an
// engine.LLMClient: a running conversation that can be reset, extended with a
// prompt, or resumed after a truncated reply.
package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ChamsBouzaiene/vimlm/internal/engine"
	"github.com/ChamsBouzaiene/vimlm/internal/prompts"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Capability is the model surface the rest of vimlm depends on.
type Capability interface {
	Reset()
	Generate(ctx context.Context, prompt string, maxNew int, sink io.Writer) (Result, error)
	Resume(ctx context.Context, maxNew int, sink io.Writer) (Result, error)
	Complete(ctx context.Context, prompt string, maxNew int) (Result, error)
	CountTokens(text string) int
	Truncated() bool
	LastResponse() string
}

// Stats describes one generation.
type Stats struct {
	PromptTokens    int
	Elapsed         time.Duration
	TokensPerSecond float64
	FinishReason    string
}

// Result is the outcome of Generate, Resume or Complete.
type Result struct {
	Text   string
	Tokens int
	Stats  Stats
}

// ErrNothingToResume is returned by Resume when there is no previous reply.
var ErrNothingToResume = errors.New("no previous response to resume")

// Config configures a Session.
type Config struct {
	Model       string
	Temperature float32
	Retry       *engine.RetryPolicy // nil = engine.DefaultRetryConfig
	Tokenizer   engine.Tokenizer    // nil = engine.DefaultTokenizer
	Logger      *zap.Logger
}

// Session holds one conversation with the model. It is not safe for
// concurrent use; the dispatch loop owns it.
type Session struct {
	llm         engine.LLMClient
	model       string
	temperature float32
	retry       engine.RetryPolicy
	tokenizer   engine.Tokenizer
	logger      *zap.Logger
	tokenMemo   *cache.Cache

	history   []engine.ChatMessage
	truncated bool
}

var _ Capability = (*Session)(nil)

// New creates a Session talking to llm.
func New(llm engine.LLMClient, cfg Config) *Session {
	retry := engine.DefaultRetryConfig().LLMPolicy
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	tokenizer := cfg.Tokenizer
	if tokenizer == nil {
		tokenizer = engine.DefaultTokenizer{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Session{
		llm:         llm,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		retry:       retry,
		tokenizer:   tokenizer,
		logger:      logger,
		tokenMemo:   cache.New(30*time.Minute, 10*time.Minute),
	}
}

// Reset clears the conversation.
func (s *Session) Reset() {
	s.history = nil
	s.truncated = false
}

// Truncated reports whether the last generation stopped at its token cap.
func (s *Session) Truncated() bool {
	return s.truncated
}

// LastResponse returns the full text of the latest assistant reply, including
// any resumed continuation.
func (s *Session) LastResponse() string {
	if n := len(s.history); n > 0 && s.history[n-1].Role == engine.RoleAssistant {
		return s.history[n-1].Content
	}
	return ""
}

// CountTokens returns the token count of text. Counts are memoized by content.
func (s *Session) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	sum := sha256.Sum256([]byte(text))
	key := hex.EncodeToString(sum[:])
	if n, ok := s.tokenMemo.Get(key); ok {
		return n.(int)
	}
	n := s.tokenizer.CountTokens(text)
	s.tokenMemo.SetDefault(key, n)
	return n
}

// Generate sends prompt as the next user turn and streams the reply to sink.
func (s *Session) Generate(ctx context.Context, prompt string, maxNew int, sink io.Writer) (Result, error) {
	messages := append(append([]engine.ChatMessage(nil), s.history...),
		engine.ChatMessage{Role: engine.RoleUser, Content: prompt})

	res, err := s.stream(ctx, messages, maxNew, sink)
	if err != nil {
		return Result{}, err
	}

	s.history = append(messages, engine.ChatMessage{Role: engine.RoleAssistant, Content: res.Text})
	s.truncated = res.Stats.FinishReason == engine.FinishLength
	return res, nil
}

// Resume continues the latest reply. Only the continuation is streamed and
// returned; LastResponse afterwards holds the joined text.
func (s *Session) Resume(ctx context.Context, maxNew int, sink io.Writer) (Result, error) {
	last := s.LastResponse()
	if last == "" {
		return Result{}, ErrNothingToResume
	}

	messages := append(append([]engine.ChatMessage(nil), s.history...),
		engine.ChatMessage{Role: engine.RoleUser, Content: prompts.MustRender(prompts.ContinueID, nil)})

	res, err := s.stream(ctx, messages, maxNew, sink)
	if err != nil {
		return Result{}, err
	}

	s.history[len(s.history)-1].Content = last + res.Text
	s.truncated = res.Stats.FinishReason == engine.FinishLength
	return res, nil
}

// Complete answers prompt in a one-off exchange. The reply is not streamed
// and the running conversation is left untouched.
func (s *Session) Complete(ctx context.Context, prompt string, maxNew int) (Result, error) {
	messages := []engine.ChatMessage{{Role: engine.RoleUser, Content: prompt}}
	opts := engine.ChatOptions{Temperature: s.temperature, MaxOutputTokens: maxNew}

	start := time.Now()
	resp, err := engine.RetryChat(ctx, s.retry, s.llm, s.model, messages, opts, s.logRetry)
	if err != nil {
		return Result{}, err
	}
	return s.result(messages, resp.Assistant.Content, resp.Usage, resp.FinishReason, time.Since(start)), nil
}

func (s *Session) logRetry(attempt int, delay time.Duration, err error) {
	s.logger.Warn("model call failed, retrying",
		zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
}

// stream runs one streamed completion with retries. A failure after text has
// reached the sink is not retried, so the viewer never sees a reply twice.
func (s *Session) stream(ctx context.Context, messages []engine.ChatMessage, maxNew int, sink io.Writer) (Result, error) {
	opts := engine.ChatOptions{Temperature: s.temperature, MaxOutputTokens: maxNew}

	return engine.RetryWithPolicy(ctx, s.retry,
		func(ctx context.Context) (Result, error) {
			return s.streamOnce(ctx, messages, opts, sink)
		},
		engine.ClassifyLLMError,
		s.logRetry,
	)
}

func (s *Session) streamOnce(ctx context.Context, messages []engine.ChatMessage, opts engine.ChatOptions, sink io.Writer) (Result, error) {
	start := time.Now()
	events, errs := s.llm.Stream(ctx, s.model, messages, opts)

	var text []byte
	var usage engine.Usage
	finish := engine.FinishStop
	var sinkErr error
	for ev := range events {
		switch ev.Type {
		case engine.EventTextDelta:
			text = append(text, ev.Text...)
			if sink != nil && sinkErr == nil {
				if _, err := io.WriteString(sink, ev.Text); err != nil {
					sinkErr = fmt.Errorf("failed to write stream: %w", err)
				}
			}
		case engine.EventUsage:
			usage = ev.Usage
		case engine.EventFinish:
			finish = ev.FinishReason
		}
	}

	if err := <-errs; err != nil {
		if len(text) > 0 {
			return Result{}, &engine.EngineError{Err: fmt.Errorf("stream interrupted: %w", err), Class: engine.RetryClassNonRetryable}
		}
		return Result{}, err
	}
	if sinkErr != nil {
		return Result{}, &engine.EngineError{Err: sinkErr, Class: engine.RetryClassNonRetryable}
	}

	return s.result(messages, string(text), usage, finish, time.Since(start)), nil
}

// result fills in the counts a provider left out of usage.
func (s *Session) result(messages []engine.ChatMessage, reply string, usage engine.Usage, finish string, elapsed time.Duration) Result {
	tokens := usage.Completion
	if tokens == 0 {
		tokens = s.CountTokens(reply)
	}
	promptTokens := usage.Prompt
	if promptTokens == 0 {
		promptTokens = engine.CountTokensForMessages(s.tokenizer, messages)
	}
	if finish == "" {
		finish = engine.FinishStop
	}
	var tps float64
	if secs := elapsed.Seconds(); secs > 0 {
		tps = float64(tokens) / secs
	}

	return Result{
		Text:   reply,
		Tokens: tokens,
		Stats: Stats{
			PromptTokens:    promptTokens,
			Elapsed:         elapsed,
			TokensPerSecond: tps,
			FinishReason:    finish,
		},
	}
}
