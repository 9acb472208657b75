package app

import (
	"hashmove/internal/database"
	"hashmove/internal/hm"
)

// Operation tracks a CLI invocation. Operations are created in memory; only
// migrate and fix start a journal run for them.
type Operation struct {
	ID          string
	Name        string
	MigrationID string
	DryRun      bool
	Status      string // "success" or "error"
	Summary     *hm.Summary

	run *hm.Run
}

// NewOperation creates a new in-memory operation with an id from ids.
func NewOperation(ids hm.IDGenerator, name, migrationID string, dryRun bool) *Operation {
	return &Operation{
		ID:          ids.New(),
		Name:        name,
		MigrationID: migrationID,
		DryRun:      dryRun,
		Status:      database.RunStatusSuccess,
	}
}

// Persisted returns true if a journal run was started for this operation.
func (op *Operation) Persisted() bool {
	return op.run != nil
}

// Record stores the outcome of the operation. The run is marked as an error
// when it stopped early or any unit failed.
func (op *Operation) Record(summary *hm.Summary, err error) {
	op.Summary = summary
	if err != nil || (summary != nil && summary.Failed > 0) {
		op.Status = database.RunStatusError
	}
}

// finalRun copies the recorded outcome onto the journal run.
func (op *Operation) finalRun() *hm.Run {
	op.run.Status = op.Status
	if op.Summary != nil {
		op.run.Migrated = int64(op.Summary.Migrated)
		op.run.Skipped = int64(op.Summary.Skipped)
		op.run.Failed = int64(op.Summary.Failed)
	}
	return op.run
}
