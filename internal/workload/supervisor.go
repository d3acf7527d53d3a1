// Package workload abstracts process control of the managed hydra container.
// The operator never talks to the container runtime directly; everything goes
// through a Supervisor so reconciliation logic stays testable against a
// scripted fake.
package workload

import (
	"context"
	"time"
)

// Command is one invocation of a binary inside the workload container.
type Command struct {
	// Args is the full argv, including the binary name.
	Args []string
	// Env is extra environment for this invocation only.
	Env map[string]string
	// Stdin is fed to the process when non-empty.
	Stdin string
	// Timeout bounds the invocation. Zero means the executor default.
	Timeout time.Duration
}

// Supervisor is the process-control surface of one workload instance.
type Supervisor interface {
	// Connected reports whether the workload container can be reached at all.
	// Destructive operations must not be attempted while disconnected.
	Connected(ctx context.Context) bool
	// Running reports whether the workload service passes its readiness check.
	Running(ctx context.Context) bool
	// Restart bounces the workload service so it picks up new configuration.
	Restart(ctx context.Context) error
	// Exec runs cmd and returns captured stdout and stderr. A non-zero exit
	// surfaces as an *errors.ExecError.
	Exec(ctx context.Context, cmd Command) (stdout, stderr string, err error)
}
