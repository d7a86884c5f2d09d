package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sableword/presswork/internal/config"
	"github.com/sableword/presswork/internal/domain"
	"github.com/sableword/presswork/internal/notify"
	"github.com/sableword/presswork/internal/store"
)

// Status classifies a snapshot.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// successRateWindow is the rolling window over which the content success
// rate is computed.
const successRateWindow = 24 * time.Hour

// diskPressureThreshold is the used fraction above which disk pressure is
// flagged.
const diskPressureThreshold = 0.90

// DiskInfo reports storage pressure on the content volume. The daemon itself
// stores little, but generated media does, so the host wires in a
// volume-specific implementation.
type DiskInfo interface {
	// UsedFraction returns how full the volume is, in [0, 1].
	UsedFraction(ctx context.Context) (float64, error)
}

// Snapshot is one aggregated health observation.
type Snapshot struct {
	CheckedAt time.Time `json:"checked_at"`
	Status    Status    `json:"status"`

	Queue       *store.QueueStats      `json:"queue,omitempty"`
	Providers   map[string]ProbeResult `json:"providers,omitempty"`
	SuccessRate float64                `json:"success_rate"`
	DiskUsed    float64                `json:"disk_used,omitempty"`

	Issues []notify.Issue `json:"issues,omitempty"`
}

// Aggregator runs health checks on a recurring trigger. Each run gathers
// queue stats, probes every configured provider, computes the rolling
// content success rate, and asks the optional DiskInfo collaborator for
// storage pressure. The resulting snapshot is always logged; critical
// snapshots are also pushed to the Notifier.
type Aggregator struct {
	jobs     store.JobStore
	prober   Prober
	disk     DiskInfo
	notifier notify.Notifier

	cfg            config.HealthConfig
	stuckThreshold time.Duration
	logger         *slog.Logger

	// now is the clock source, injectable for tests.
	now func() time.Time
}

// AggregatorOption customizes an Aggregator.
type AggregatorOption func(*Aggregator)

// WithDiskInfo wires in a storage-pressure collaborator.
func WithDiskInfo(disk DiskInfo) AggregatorOption {
	return func(a *Aggregator) { a.disk = disk }
}

// WithAggregatorClock overrides the aggregator's time source.
func WithAggregatorClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates an Aggregator. The stuckThreshold is the reservation
// age past which a job counts as stuck in queue stats.
func NewAggregator(
	jobs store.JobStore,
	prober Prober,
	notifier notify.Notifier,
	cfg config.HealthConfig,
	stuckThreshold time.Duration,
	logger *slog.Logger,
	opts ...AggregatorOption,
) *Aggregator {
	a := &Aggregator{
		jobs:           jobs,
		prober:         prober,
		notifier:       notifier,
		cfg:            cfg,
		stuckThreshold: stuckThreshold,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Check runs one aggregation and returns the snapshot. It never returns an
// error: a collaborator that cannot be read becomes an issue in the snapshot
// instead, so one broken dependency cannot hide the rest of the picture.
func (a *Aggregator) Check(ctx context.Context) *Snapshot {
	now := a.now()
	snapshot := &Snapshot{
		CheckedAt: now,
		Status:    StatusOK,
		Providers: make(map[string]ProbeResult),
	}

	a.checkQueue(ctx, snapshot, now)
	a.checkProviders(ctx, snapshot)
	a.checkDisk(ctx, snapshot)

	snapshot.Status = classify(snapshot.Issues)

	a.logger.Info("health snapshot",
		"status", snapshot.Status,
		"issue_count", len(snapshot.Issues),
		"success_rate", snapshot.SuccessRate)
	for _, issue := range snapshot.Issues {
		a.logger.Warn("health issue",
			"component", issue.Component,
			"severity", issue.Severity,
			"message", issue.Message)
	}

	if snapshot.Status == StatusCritical && a.notifier != nil {
		if err := a.notifier.NotifyCritical(ctx, snapshot.Issues); err != nil {
			a.logger.Error("failed to deliver critical health notification", "error", err)
		}
	}

	return snapshot
}

// Runner adapts the aggregator to a schedule runner.
func (a *Aggregator) Runner() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		a.Check(ctx)
		return nil
	}
}

func (a *Aggregator) checkQueue(ctx context.Context, snapshot *Snapshot, now time.Time) {
	stats, err := a.jobs.Stats(ctx, a.stuckThreshold)
	if err != nil {
		msg := fmt.Sprintf("queue stats unavailable: %v", err)
		if store.IsStorageError(err) {
			msg = fmt.Sprintf("job store unreachable: %v", err)
		}
		snapshot.Issues = append(snapshot.Issues, notify.Issue{
			Component: "queue",
			Severity:  notify.SeverityCritical,
			Message:   msg,
		})
		return
	}
	snapshot.Queue = stats

	if stats.Stuck > a.cfg.StuckWarning {
		snapshot.Issues = append(snapshot.Issues, notify.Issue{
			Component: "queue",
			Severity:  notify.SeverityWarning,
			Message: fmt.Sprintf("%d jobs stuck in reservation longer than %s",
				stats.Stuck, a.stuckThreshold),
		})
	}

	since := now.Add(-successRateWindow)
	completionStats, err := a.jobs.CompletionStats(ctx,
		[]string{domain.JobTypeContentGeneration}, since)
	if err != nil {
		snapshot.Issues = append(snapshot.Issues, notify.Issue{
			Component: "queue",
			Severity:  notify.SeverityCritical,
			Message:   fmt.Sprintf("completion stats unavailable: %v", err),
		})
		return
	}

	attempted := completionStats.Completed + completionStats.Failed
	snapshot.SuccessRate = 1.0
	if attempted > 0 {
		snapshot.SuccessRate = float64(completionStats.Completed) / float64(attempted)
	}
	if attempted > 0 && snapshot.SuccessRate < a.cfg.SuccessRateWarning {
		snapshot.Issues = append(snapshot.Issues, notify.Issue{
			Component: "queue",
			Severity:  notify.SeverityWarning,
			Message: fmt.Sprintf("content success rate %.0f%% over the last 24h (%d of %d jobs)",
				snapshot.SuccessRate*100, completionStats.Completed, attempted),
		})
	}

	if completionStats.Failed > a.cfg.FailureWarning {
		snapshot.Issues = append(snapshot.Issues, notify.Issue{
			Component: "queue",
			Severity:  notify.SeverityWarning,
			Message: fmt.Sprintf("%d jobs archived as failed in the last 24h",
				completionStats.Failed),
		})
	}
}

func (a *Aggregator) checkProviders(ctx context.Context, snapshot *Snapshot) {
	for name, url := range a.cfg.Providers {
		result := a.prober.Probe(ctx, url)
		snapshot.Providers[name] = result
		if result.OK() {
			continue
		}

		// Timeouts and connection failures are critical; an answering
		// provider returning an unexpected status is degraded.
		severity := notify.SeverityCritical
		if result.Reachable && result.StatusCode < 500 {
			severity = notify.SeverityWarning
		}
		snapshot.Issues = append(snapshot.Issues, notify.Issue{
			Component: name,
			Severity:  severity,
			Message:   fmt.Sprintf("probe failed: %s", result.Error),
		})
	}
}

func (a *Aggregator) checkDisk(ctx context.Context, snapshot *Snapshot) {
	if a.disk == nil {
		return
	}

	used, err := a.disk.UsedFraction(ctx)
	if err != nil {
		snapshot.Issues = append(snapshot.Issues, notify.Issue{
			Component: "disk",
			Severity:  notify.SeverityWarning,
			Message:   fmt.Sprintf("disk usage unavailable: %v", err),
		})
		return
	}

	snapshot.DiskUsed = used
	if used > diskPressureThreshold {
		snapshot.Issues = append(snapshot.Issues, notify.Issue{
			Component: "disk",
			Severity:  notify.SeverityWarning,
			Message:   fmt.Sprintf("content volume %.0f%% full", used*100),
		})
	}
}

func classify(issues []notify.Issue) Status {
	status := StatusOK
	for _, issue := range issues {
		if issue.Severity == notify.SeverityCritical {
			return StatusCritical
		}
		status = StatusWarning
	}
	return status
}
