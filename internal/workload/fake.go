package workload

import (
	"context"
	"fmt"
	"sync"
)

// ExecCall records one Exec invocation against the fake.
type ExecCall struct {
	Args  []string
	Env   map[string]string
	Stdin string
}

// Fake is a scripted Supervisor for unit tests. Exec responses are matched
// by the second argv element (the hydra verb) unless ExecFunc is set.
type Fake struct {
	mu sync.Mutex

	ConnectedVal bool
	RunningVal   bool

	// Restarts counts Restart calls.
	Restarts int

	// ExecFunc, when set, handles every Exec call.
	ExecFunc func(cmd Command) (string, string, error)
	// Responses maps a verb to a canned response when ExecFunc is nil.
	Responses map[string]FakeResponse
	// Calls records every Exec in order.
	Calls []ExecCall
}

// FakeResponse is one canned Exec result.
type FakeResponse struct {
	Stdout string
	Stderr string
	Err    error
}

var _ Supervisor = (*Fake)(nil)

// NewFake returns a connected, running fake with no canned responses.
func NewFake() *Fake {
	return &Fake{
		ConnectedVal: true,
		RunningVal:   true,
		Responses:    map[string]FakeResponse{},
	}
}

func (f *Fake) Connected(context.Context) bool { return f.ConnectedVal }
func (f *Fake) Running(context.Context) bool   { return f.RunningVal }

func (f *Fake) Restart(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Restarts++
	return nil
}

func (f *Fake) Exec(_ context.Context, cmd Command) (string, string, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, ExecCall{Args: cmd.Args, Env: cmd.Env, Stdin: cmd.Stdin})
	f.mu.Unlock()

	if f.ExecFunc != nil {
		return f.ExecFunc(cmd)
	}
	if len(cmd.Args) > 1 {
		if r, ok := f.Responses[cmd.Args[1]]; ok {
			return r.Stdout, r.Stderr, r.Err
		}
	}
	return "", "", fmt.Errorf("no scripted response for %v", cmd.Args)
}
