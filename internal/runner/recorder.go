package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Response is the canned outcome a Recorder returns for a matched command.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Err, when set, is returned instead of a Result.
	Err error
	// Do runs before the response is returned, for side effects such as
	// creating the files a real process would have produced.
	Do func(cmd Command) error
}

type rule struct {
	match func(Command) bool
	resp  Response
}

// Recorder is a Runner that records every command and answers from a set
// of rules. Later rules take precedence over earlier ones. It is safe for
// concurrent use.
type Recorder struct {
	mu    sync.Mutex
	rules []rule
	calls []Command

	// Fallback answers unmatched commands. When nil, unmatched commands fail.
	Fallback *Response
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// On registers resp for commands whose Line starts with prefix.
func (r *Recorder) On(prefix string, resp Response) *Recorder {
	return r.OnFunc(func(c Command) bool {
		return strings.HasPrefix(c.Line(), prefix)
	}, resp)
}

// OnFunc registers resp for commands accepted by match.
func (r *Recorder) OnFunc(match func(Command) bool, resp Response) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{match: match, resp: resp})
	return r
}

func (r *Recorder) Run(ctx context.Context, cmd Command) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	resp, ok := r.lookup(cmd)
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("recorder: unexpected command %q", cmd.Line())
	}
	if resp.Do != nil {
		if err := resp.Do(cmd); err != nil {
			return nil, err
		}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &Result{ExitCode: resp.ExitCode, Stdout: resp.Stdout, Stderr: resp.Stderr}, nil
}

func (r *Recorder) lookup(cmd Command) (Response, bool) {
	for i := len(r.rules) - 1; i >= 0; i-- {
		if r.rules[i].match(cmd) {
			return r.rules[i].resp, true
		}
	}
	if r.Fallback != nil {
		return *r.Fallback, true
	}
	return Response{}, false
}

// Calls returns a copy of the commands run so far, in order.
func (r *Recorder) Calls() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.calls))
	copy(out, r.calls)
	return out
}

// Called reports whether any recorded command line starts with prefix.
func (r *Recorder) Called(prefix string) bool {
	for _, c := range r.Calls() {
		if strings.HasPrefix(c.Line(), prefix) {
			return true
		}
	}
	return false
}
