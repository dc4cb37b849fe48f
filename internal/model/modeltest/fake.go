// Package modeltest provides a scripted model.Capability for tests.
package modeltest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/ChamsBouzaiene/vimlm/internal/model"
)

// Call records one Generate, Resume or Complete invocation.
type Call struct {
	Resume   bool
	Complete bool
	Prompt   string
	MaxNew   int
}

// Fake answers Generate and Complete with Replies in order, then with
// Default. Resume answers with Continuation. Tokens are counted as whitespace-separated words.
type Fake struct {
	mu sync.Mutex

	Replies      []string
	Default      string
	Continuation string
	TruncateNext bool // mark the next reply as truncated
	Err          error

	Calls  []Call
	Resets int

	last      string
	truncated bool
}

var _ model.Capability = (*Fake)(nil)

func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Resets++
	f.last = ""
	f.truncated = false
}

func (f *Fake) Generate(ctx context.Context, prompt string, maxNew int, sink io.Writer) (model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, Call{Prompt: prompt, MaxNew: maxNew})
	if f.Err != nil {
		return model.Result{}, f.Err
	}

	reply := f.Default
	if len(f.Replies) > 0 {
		reply, f.Replies = f.Replies[0], f.Replies[1:]
	}
	return f.finish(reply, reply, sink)
}

func (f *Fake) Resume(ctx context.Context, maxNew int, sink io.Writer) (model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, Call{Resume: true, MaxNew: maxNew})
	if f.Err != nil {
		return model.Result{}, f.Err
	}
	if f.last == "" {
		return model.Result{}, model.ErrNothingToResume
	}
	return f.finish(f.Continuation, f.last+f.Continuation, sink)
}

func (f *Fake) Complete(ctx context.Context, prompt string, maxNew int) (model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, Call{Complete: true, Prompt: prompt, MaxNew: maxNew})
	if f.Err != nil {
		return model.Result{}, f.Err
	}

	reply := f.Default
	if len(f.Replies) > 0 {
		reply, f.Replies = f.Replies[0], f.Replies[1:]
	}
	return model.Result{Text: reply, Tokens: countWords(reply)}, nil
}

func (f *Fake) finish(reply, full string, sink io.Writer) (model.Result, error) {
	if sink != nil {
		if _, err := io.WriteString(sink, reply); err != nil {
			return model.Result{}, err
		}
	}
	f.last = full
	f.truncated = f.TruncateNext
	f.TruncateNext = false
	return model.Result{Text: reply, Tokens: countWords(reply)}, nil
}

func (f *Fake) CountTokens(text string) int {
	return countWords(text)
}

func (f *Fake) Truncated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.truncated
}

func (f *Fake) LastResponse() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// GenerateCalls returns the number of Generate calls so far.
func (f *Fake) GenerateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if !c.Resume && !c.Complete {
			n++
		}
	}
	return n
}

func countWords(s string) int {
	return len(strings.Fields(s))
}
