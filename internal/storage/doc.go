// Package storage persists what classbell must remember across restarts:
//
//   - the schedule document itself (atomic JSON file, see ScheduleFile)
//   - the fired-transition ledger, so a bell never rings twice for the same transition
//   - a delivery log of dispatched notifications
//
// The ledger and the delivery log live behind Store, backed by either a
// dependency-free file driver (jsonl journal + snapshot) or SQLite.
package storage
