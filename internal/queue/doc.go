// Package queue contains the job dispatcher: the tick-driven loop that
// reserves batches of jobs from the store, routes each to its registered
// handler, and records the outcome (completion, retry, or permanent failure).
package queue
