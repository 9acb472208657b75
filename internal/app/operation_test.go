package app

import (
	"errors"
	"testing"

	"hashmove/internal/database"
	"hashmove/internal/hm"
	"hashmove/internal/testutil"
)

func TestNewOperation(t *testing.T) {
	ids := testutil.NewStubIDGenerator()
	op := NewOperation(ids, hm.OperationMigrate, "m1", true)

	if op.Name != hm.OperationMigrate || op.MigrationID != "m1" || !op.DryRun {
		t.Errorf("NewOperation() = %+v", op)
	}
	if op.Status != database.RunStatusSuccess {
		t.Errorf("Status = %q, want %q", op.Status, database.RunStatusSuccess)
	}
	if op.ID != "id-1" {
		t.Errorf("ID = %q, want id-1", op.ID)
	}
	if op.Persisted() {
		t.Error("new operation reports persisted")
	}
	if other := NewOperation(ids, hm.OperationMigrate, "m1", true); other.ID != "id-2" {
		t.Errorf("second ID = %q, want id-2", other.ID)
	}
}

func TestOperation_Record(t *testing.T) {
	tests := []struct {
		name    string
		summary *hm.Summary
		err     error
		want    string
	}{
		{name: "clean run", summary: &hm.Summary{Migrated: 3}, want: database.RunStatusSuccess},
		{name: "failed unit", summary: &hm.Summary{Migrated: 2, Failed: 1}, want: database.RunStatusError},
		{name: "aborted", summary: &hm.Summary{Migrated: 1}, err: errors.New("walk failed"), want: database.RunStatusError},
		{name: "no summary", err: errors.New("bad root"), want: database.RunStatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(hm.UUIDGenerator{}, hm.OperationFix, "m1", false)
			op.Record(tt.summary, tt.err)
			if op.Status != tt.want {
				t.Errorf("Status = %q, want %q", op.Status, tt.want)
			}
		})
	}
}

func TestOperation_finalRun(t *testing.T) {
	op := NewOperation(hm.UUIDGenerator{}, hm.OperationMigrate, "m1", false)
	op.run = &hm.Run{ID: op.ID, Status: database.RunStatusRunning}
	op.Record(&hm.Summary{Migrated: 4, Skipped: 2, Failed: 1}, nil)

	run := op.finalRun()
	if run.Status != database.RunStatusError || run.Migrated != 4 || run.Skipped != 2 || run.Failed != 1 {
		t.Errorf("finalRun() = %+v", run)
	}
}
