// filepath: internal/audit/logger_auditor.go
// Package audit records every mutating operation in the application log.
package audit

import (
	"context"
	"os"
	"os/user"

	"github.com/sirupsen/logrus"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/services"
)

// Ensure LoggerAuditor implements services.Auditor
var _ services.Auditor = (*LoggerAuditor)(nil)

// LoggerAuditor writes audit events to the application log.
type LoggerAuditor struct {
	enabled bool
	logger  *logrus.Logger
}

// NewLoggerAuditor creates a LoggerAuditor on the package-global logger.
func NewLoggerAuditor(enabled bool) *LoggerAuditor {
	return &LoggerAuditor{enabled: enabled}
}

// NewLoggerAuditorTo creates a LoggerAuditor writing to l.
func NewLoggerAuditorTo(enabled bool, l *logrus.Logger) *LoggerAuditor {
	return &LoggerAuditor{enabled: enabled, logger: l}
}

// Log records an event if auditing is enabled. Details are flattened into
// "detail."-prefixed fields.
func (a *LoggerAuditor) Log(ctx context.Context, action string, actor string, resource string, details map[string]interface{}) {
	if !a.enabled {
		return
	}
	if actor == "" {
		actor = CurrentActor()
	}

	fields := logrus.Fields{
		"audit_action":   action,
		"audit_actor":    actor,
		"audit_resource": resource,
	}
	for k, v := range details {
		fields["detail."+k] = v
	}

	l := a.logger
	if l == nil {
		l = logging.Log
	}
	l.WithContext(ctx).WithFields(fields).Info("AUDIT EVENT")
}

// CurrentActor names the local user running the process.
func CurrentActor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
