package hm_test

import (
	"context"
	"testing"

	"hashmove/internal/hm"
	"hashmove/internal/testutil"
)

func TestReconciler_Reconcile(t *testing.T) {
	ctx := context.Background()
	const correct, old = "c0ffee00", "0ddba11"

	reconcile := func(t *testing.T, archive *testutil.MemoryArchive) *hm.Reconciliation {
		t.Helper()
		var rec *hm.Reconciliation
		err := archive.RunInTx(ctx, true, func(tx hm.ArchiveTx) error {
			var err error
			rec, err = hm.Reconciler{}.Reconcile(ctx, tx, correct, old)
			return err
		})
		if err != nil {
			t.Fatalf("Reconcile() error = %v", err)
		}
		return rec
	}

	t.Run("neither exists", func(t *testing.T) {
		rec := reconcile(t, testutil.NewMemoryArchive())
		if rec.Action != hm.ActionNone || rec.FileID != 0 {
			t.Errorf("Reconcile() = %+v, want none", rec)
		}
	})

	t.Run("relabels the old record", func(t *testing.T) {
		archive := testutil.NewMemoryArchive()
		id := archive.AddFile(hm.FileRecord{Hash: old})

		rec := reconcile(t, archive)
		if rec.Action != hm.ActionRelabeled || rec.FileID != id {
			t.Errorf("Reconcile() = %+v, want relabeled %d", rec, id)
		}
		if archive.FileByHash(old) != nil {
			t.Error("old hash still present")
		}
		if f := archive.FileByHash(correct); f == nil || f.ID != id {
			t.Errorf("correct record = %+v, want id %d", f, id)
		}
	})

	t.Run("already fixed", func(t *testing.T) {
		archive := testutil.NewMemoryArchive()
		id := archive.AddFile(hm.FileRecord{Hash: correct})

		rec := reconcile(t, archive)
		if rec.Action != hm.ActionAlreadyFixed || rec.FileID != id {
			t.Errorf("Reconcile() = %+v, want already-fixed %d", rec, id)
		}
	})

	t.Run("merges into the correct record", func(t *testing.T) {
		archive := testutil.NewMemoryArchive()
		correctID := archive.AddFile(hm.FileRecord{Hash: correct})
		oldID := archive.AddFile(hm.FileRecord{Hash: old})
		archive.AddPostRelationship(hm.FilePostRelationship{FileID: correctID, Service: "s", User: "u", Post: "shared"})
		archive.AddPostRelationship(hm.FilePostRelationship{FileID: oldID, Service: "s", User: "u", Post: "shared"})
		archive.AddPostRelationship(hm.FilePostRelationship{FileID: oldID, Service: "s", User: "u", Post: "only-old"})
		archive.AddMessageRelationship(hm.FileDiscordMessageRelationship{FileID: oldID, Server: "s1", Channel: "c1", ID: "m1"})

		rec := reconcile(t, archive)
		if rec.Action != hm.ActionMerged || rec.FileID != correctID {
			t.Errorf("Reconcile() = %+v, want merged into %d", rec, correctID)
		}
		if rec.Repointed != 2 {
			t.Errorf("Repointed = %d, want 2", rec.Repointed)
		}
		if archive.FileByHash(old) != nil {
			t.Error("old record not deleted")
		}

		state := archive.Snapshot()
		if len(state.PostRels) != 2 {
			t.Errorf("post relationships = %d, want 2 (duplicate dropped)", len(state.PostRels))
		}
		for _, r := range state.PostRels {
			if r.FileID != correctID {
				t.Errorf("relationship %s still points at %d", r.Post, r.FileID)
			}
		}
		if len(state.MessageRels) != 1 || state.MessageRels[0].FileID != correctID {
			t.Errorf("message relationships = %+v", state.MessageRels)
		}
	})

	t.Run("same hash never deletes", func(t *testing.T) {
		archive := testutil.NewMemoryArchive()
		id := archive.AddFile(hm.FileRecord{Hash: correct})

		var rec *hm.Reconciliation
		err := archive.RunInTx(ctx, true, func(tx hm.ArchiveTx) error {
			var err error
			rec, err = hm.Reconciler{}.Reconcile(ctx, tx, correct, correct)
			return err
		})
		if err != nil {
			t.Fatalf("Reconcile() error = %v", err)
		}
		if rec.Action != hm.ActionAlreadyFixed || archive.FileByHash(correct) == nil || rec.FileID != id {
			t.Errorf("Reconcile() = %+v", rec)
		}
	})
}
