// Package health periodically aggregates system state into a snapshot:
// queue statistics, external provider reachability, content success rate,
// and disk pressure. Critical snapshots are pushed to a Notifier.
package health
