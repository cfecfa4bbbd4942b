// Package operations runs the loan recovery pipeline over an uploaded table.
//
// A run executes five steps in order:
//
//   - validate_schema: every required column is present
//   - coerce_features: every feature cell parses as a finite number
//   - segment_borrowers: standardise features and cluster into four segments
//   - classify_risk: stratified split, random forest, risk scores
//   - assign_strategy: map each risk score onto a recovery action
//
// Core Components:
//
// Manager: executes the registered steps sequentially with no retries and
// turns every failure, panic or cancellation into an *OperationError whose
// Type is one of schema, coercion, split, model or pipeline.
//
// Step: a single unit of work. Steps declare dependencies and are ordered
// topologically by the Registry.
//
// RunState: the per-run status and the tables handed from step to step.
//
// StatusBroadcaster: the single source of run snapshots pushed to WebSocket
// clients.
//
// Example usage:
//
//	manager := operations.NewManager(hub, operations.NewConfig(), logger)
//	defer manager.Close()
//
//	sess := store.Create()
//	manager.Process(ctx, sess, table)
//	snap := sess.Snapshot()
package operations
