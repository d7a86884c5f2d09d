// Package notify delivers alerts about unhealthy system state to operators.
// The default implementation writes structured log records; richer channels
// (email, chat webhooks) satisfy the same interface.
package notify

import (
	"context"
	"log/slog"
)

// Severity grades a health issue.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Issue describes one unhealthy observation.
type Issue struct {
	// Component names the subsystem the issue was observed in, such as
	// "queue" or a provider name.
	Component string `json:"component"`

	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Notifier receives critical health findings. Implementations must be safe
// for concurrent use and should not block for long; delivery happens on the
// health check path.
type Notifier interface {
	// NotifyCritical delivers a batch of issues from a single health check
	// that concluded with critical status.
	NotifyCritical(ctx context.Context, issues []Issue) error
}

// LogNotifier writes critical findings to the structured log, one record per
// issue. It never fails.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier over the given logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyCritical(ctx context.Context, issues []Issue) error {
	n.logger.Error("system health is critical", "issue_count", len(issues))
	for _, issue := range issues {
		n.logger.Error("health issue",
			"component", issue.Component,
			"severity", issue.Severity,
			"message", issue.Message)
	}
	return nil
}
