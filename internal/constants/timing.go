package constants

import "time"

// Requeue intervals used by controllers.
const (
	RequeueShort    = 5 * time.Second
	RequeueStandard = 1 * time.Minute

	RequeueSafetyNetBase   = 20 * time.Minute
	RequeueSafetyNetJitter = 5 * time.Minute
)

// Timeouts for commands executed inside the workload container.
const (
	ExecTimeout      = 20 * time.Second
	MigrationTimeout = 60 * time.Second
)
