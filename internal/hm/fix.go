package hm

import (
	"context"
	"fmt"
)

// OperationFix is the journal and metrics name of a corrective run.
const OperationFix = "fix"

// FixFile runs one corrective attempt: reconcile the old and correct hash
// records, rewrite rows linked to the surviving record, then move the single
// file named by the correction. An entry whose hashes are both unknown is
// skipped.
func (s *Service) FixFile(ctx context.Context, c Correction) (*UnitResult, error) {
	oldHash, ext := SplitHashName(c.OldPath)
	newPath, err := CanonicalPath(c.CorrectHash, ext)
	if err != nil {
		return nil, err
	}

	result := &UnitResult{
		Source:  c.OldPath,
		OldPath: c.OldPath,
		NewPath: newPath,
		Outcome: OutcomeDone,
	}
	rw := Rewriter{Old: c.OldPath, New: newPath, Legacy: s.opts.LegacyDomain}
	var matches *Matches

	err = s.archive.RunInTx(ctx, !s.opts.DryRun, func(tx ArchiveTx) error {
		rec, err := s.reconciler.Reconcile(ctx, tx, c.CorrectHash, oldHash)
		if err != nil {
			return err
		}
		result.Action = rec.Action
		result.FileID = rec.FileID
		if rec.Action == ActionNone {
			return nil
		}

		matches, err = s.locator.LocateLinked(ctx, tx, rec.FileID)
		if err != nil {
			return err
		}
		result.Strategy = matches.Strategy
		result.Matched = matches.Count()

		if err := s.rewriteMatches(ctx, tx, rw, matches, result); err != nil {
			return fmt.Errorf("rewriting references: %w", err)
		}

		now := s.clock.Now()
		return tx.AppendMigrationLog(ctx, s.opts.MigrationID, &MigrationLogEntry{
			OldLocation: c.OldPath,
			NewLocation: newPath,
			Ctime:       now,
			Mtime:       now,
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Action == ActionNone {
		s.logger.Info("correction skipped, no record for either hash", "old", c.OldPath, "correct", c.CorrectHash)
		result.Outcome = OutcomeSkipped
		result.Reason = SkipUnknownHash
		return result, nil
	}

	s.logger.Info("file fixed",
		"old", c.OldPath, "new", newPath, "action", result.Action,
		"matched", result.Matched, "updated", result.Updated, "dry_run", s.opts.DryRun)

	if s.opts.DryRun {
		return result, nil
	}

	result.Notified = s.notifyUsers(ctx, matches.Posts)

	moves, err := s.relocator.Relocate(c.OldPath, newPath)
	if err != nil {
		return nil, fmt.Errorf("relocating: %w", err)
	}
	result.Moves = moves
	return result, nil
}

// FixAll applies every correction in order. Failed units are recorded and do
// not stop the run.
func (s *Service) FixAll(ctx context.Context, runID string, corrections []Correction) (*Summary, error) {
	s.logger.Info("fix started", "corrections", len(corrections), "dry_run", s.opts.DryRun)

	summary := &Summary{}
	for _, c := range corrections {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		r := s.runUnit(ctx, OperationFix, c.OldPath, func(ctx context.Context) (*UnitResult, error) {
			return s.FixFile(ctx, c)
		})
		summary.add(r)
		s.record(runID, r)
	}

	s.logger.Info("fix finished",
		"fixed", summary.Migrated, "skipped", summary.Skipped, "failed", summary.Failed, "updated", summary.Updated)
	return summary, nil
}
