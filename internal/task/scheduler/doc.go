// Package scheduler runs the housekeeping jobs of the service on cron
// triggers: the midnight bell rollover, cleanup of stale reschedule days
// and pruning of the fired ledger.
//
// Jobs run on their own goroutine with a timeout. A job that is still
// running when its next trigger comes is skipped for that trigger.
package scheduler
