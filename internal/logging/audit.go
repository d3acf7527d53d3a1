// Package logging carries cross-cutting log helpers shared by the operator
// and the admin CLI.
package logging

import "github.com/go-logr/logr"

// Audit emits a structured audit record for an administrative action run
// against a managed service. Records are tagged with "audit=true" so log
// aggregation can separate them from operational logs.
func Audit(logger logr.Logger, action, namespace, service string, fields map[string]string) {
	auditLogger := logger.WithValues("audit", "true", "action", action,
		"namespace", namespace, "service", service)
	for key, value := range fields {
		auditLogger = auditLogger.WithValues(key, value)
	}
	auditLogger.Info("admin action")
}
