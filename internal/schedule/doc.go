// Package schedule manages named recurring triggers: registering them with
// a recurrence (interval, wall-clock times, or cron expression), arming each
// exactly once in durable storage, and firing the bound runners from a
// periodic driver tick.
package schedule
