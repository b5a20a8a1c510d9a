// Package task manages the translation task lifecycle: queuing, claiming,
// processing, reporting and deletion. The record store's compare-and-set
// status update is the only synchronization point; the pending set orders
// work, and leases describe which worker holds a claimed task.
//
// The pieces are layered:
//
//   - PendingSet: an ordered set of task ids (in memory, or Redis via
//     internal/platform/redis).
//   - QueueManager: atomic claim on top of a PendingSet and a store.TaskStore.
//   - Lifecycle: outcome reporting, retry policy and deletion.
//   - TaskRunner: the worker pool and the lease sweep.
package task
