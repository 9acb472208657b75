package hm

import (
	"context"
	"fmt"
)

// ReconcileAction is the branch the reconciler took.
type ReconcileAction int

const (
	ActionNone ReconcileAction = iota
	// ActionRelabeled means no record had the correct hash, so the old record was relabeled in place.
	ActionRelabeled
	// ActionMerged means both records existed; relationships moved to the correct one and the old one was deleted.
	ActionMerged
	// ActionAlreadyFixed means only the correct record exists.
	ActionAlreadyFixed
)

func (a ReconcileAction) String() string {
	switch a {
	case ActionRelabeled:
		return "relabeled"
	case ActionMerged:
		return "merged"
	case ActionAlreadyFixed:
		return "already-fixed"
	default:
		return "none"
	}
}

// Reconciliation is the outcome of reconciling one old/correct hash pair.
type Reconciliation struct {
	Action ReconcileAction
	// FileID is the surviving record carrying the correct hash. Zero with ActionNone.
	FileID int64
	// Repointed is the number of relationship rows moved by a merge.
	Repointed int64
}

// Reconciler makes the files table agree with a corrected hash.
type Reconciler struct{}

// Reconcile ensures exactly one file record carries correctHash, folding the
// oldHash record into it when both exist. Relationships are always repointed
// before the old record is deleted. If neither record exists the result has
// ActionNone; the correction list may reference stale entries, so that is not an error.
func (Reconciler) Reconcile(ctx context.Context, tx ArchiveTx, correctHash, oldHash string) (*Reconciliation, error) {
	correct, err := tx.FindFileByHash(ctx, correctHash)
	if err != nil {
		return nil, fmt.Errorf("finding correct hash record: %w", err)
	}

	var old *FileRecord
	if oldHash != correctHash {
		old, err = tx.FindFileByHash(ctx, oldHash)
		if err != nil {
			return nil, fmt.Errorf("finding old hash record: %w", err)
		}
	}

	switch {
	case correct == nil && old == nil:
		return &Reconciliation{Action: ActionNone}, nil

	case correct == nil:
		if err := tx.RelabelFile(ctx, old.ID, correctHash); err != nil {
			return nil, fmt.Errorf("relabeling file %d: %w", old.ID, err)
		}
		return &Reconciliation{Action: ActionRelabeled, FileID: old.ID}, nil

	case old == nil:
		return &Reconciliation{Action: ActionAlreadyFixed, FileID: correct.ID}, nil

	default:
		moved, err := tx.RepointRelationships(ctx, old.ID, correct.ID)
		if err != nil {
			return nil, fmt.Errorf("repointing relationships %d -> %d: %w", old.ID, correct.ID, err)
		}
		if err := tx.DeleteFile(ctx, old.ID); err != nil {
			return nil, fmt.Errorf("deleting file %d: %w", old.ID, err)
		}
		return &Reconciliation{Action: ActionMerged, FileID: correct.ID, Repointed: moved}, nil
	}
}
