// Package notifier turns rung bells into messages and delivers them to the
// enabled sinks.
//
// Delivery is asynchronous: Notify enqueues one job per sink and a small
// worker pool drains the queue under a shared rate limit, retrying failed
// sends with jittered exponential backoff. Every attempt outcome is
// published on the event bus and, when a store is configured, appended to
// the delivery log.
//
// # History
//
// For debugging and operator visibility, the service keeps a small in-memory
// history of recently delivered notifications.
package notifier
