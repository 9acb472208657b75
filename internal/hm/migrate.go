package hm

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// OperationMigrate is the journal and metrics name of a migration run.
const OperationMigrate = "migrate"

// identify applies the skip conditions to a file and, when it qualifies,
// hashes and classifies it. A nil identity with a non-empty reason means skip.
func (s *Service) identify(p *Path) (*Identity, SkipReason, error) {
	switch {
	case p.IsSymlink():
		return nil, SkipSymlink, nil
	case p.IsMount():
		return nil, SkipMount, nil
	case p.Size() == 0:
		return nil, SkipEmpty, nil
	case s.opts.IgnoreTempFiles && strings.HasSuffix(p.String(), tempFileSuffix):
		return nil, SkipIgnored, nil
	case s.fsmgr.IsIgnored(p, s.opts.DataDir):
		return nil, SkipIgnored, nil
	}

	f, err := s.fsmgr.Open(p)
	if err != nil {
		return nil, SkipNone, fmt.Errorf("opening %s: %w", p, err)
	}
	defer f.Close()

	id, err := s.classifier.Classify(f, filepath.Ext(p.String()))
	if err != nil {
		return nil, SkipNone, fmt.Errorf("classifying %s: %w", p, err)
	}
	return id, SkipNone, nil
}

// MigrateFile runs one migration attempt for a single file: identify it,
// rewrite every reference inside one transaction, then rename it into its
// shard. The rename only happens after the transaction has committed, and
// never in dry-run mode.
func (s *Service) MigrateFile(ctx context.Context, p *Path) (*UnitResult, error) {
	source := p.String()

	id, reason, err := s.identify(p)
	if err != nil {
		return nil, err
	}
	if reason != SkipNone {
		s.logger.Debug("skipping file", "path", source, "reason", reason)
		return skipped(source, reason), nil
	}

	oldPath, err := WebPath(s.opts.DataDir, source)
	if err != nil {
		return nil, err
	}
	newPath, err := CanonicalPath(id.Hash, id.Ext)
	if err != nil {
		return nil, err
	}
	if oldPath == newPath || IsCanonical(oldPath) {
		r := skipped(source, SkipAlreadyCanonical)
		r.OldPath, r.NewPath = oldPath, newPath
		return r, nil
	}

	result := &UnitResult{
		Source:  source,
		OldPath: oldPath,
		NewPath: newPath,
		Outcome: OutcomeDone,
	}
	rw := Rewriter{Old: oldPath, New: newPath, Legacy: s.opts.LegacyDomain}
	var matches *Matches

	err = s.archive.RunInTx(ctx, !s.opts.DryRun, func(tx ArchiveTx) error {
		fileID, err := tx.UpsertFile(ctx, &FileRecord{
			Hash:  id.Hash,
			Mtime: p.ModTime(),
			Ctime: p.ChangedAt(),
			Mime:  id.Mime,
			Ext:   id.Ext,
		})
		if err != nil {
			return fmt.Errorf("upserting file record: %w", err)
		}
		result.FileID = fileID

		matches, err = s.locator.Locate(ctx, tx, oldPath, p.ModTime())
		if err != nil {
			return fmt.Errorf("locating references: %w", err)
		}
		result.Strategy = matches.Strategy
		result.Matched = matches.Count()

		if err := s.rewriteMatches(ctx, tx, rw, matches, result); err != nil {
			return fmt.Errorf("rewriting references: %w", err)
		}

		filename := path.Base(oldPath)
		for _, post := range matches.Posts {
			if err := tx.InsertPostRelationship(ctx, &FilePostRelationship{
				FileID:   fileID,
				Filename: filename,
				Service:  post.Service,
				User:     post.User,
				Post:     post.ID,
				Inline:   true,
			}); err != nil {
				return fmt.Errorf("linking post %s/%s/%s: %w", post.Service, post.User, post.ID, err)
			}
		}
		for _, msg := range matches.Messages {
			if err := tx.InsertDiscordMessageRelationship(ctx, &FileDiscordMessageRelationship{
				FileID:   fileID,
				Filename: filename,
				Server:   msg.Server,
				Channel:  msg.Channel,
				ID:       msg.ID,
			}); err != nil {
				return fmt.Errorf("linking message %s/%s/%s: %w", msg.Server, msg.Channel, msg.ID, err)
			}
		}

		return tx.AppendMigrationLog(ctx, s.opts.MigrationID, &MigrationLogEntry{
			OldLocation: oldPath,
			NewLocation: newPath,
			Ctime:       p.ChangedAt(),
			Mtime:       p.ModTime(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("file migrated",
		"old", oldPath, "new", newPath, "strategy", result.Strategy,
		"matched", result.Matched, "updated", result.Updated, "dry_run", s.opts.DryRun)

	if s.opts.DryRun {
		return result, nil
	}

	// The rewrite is committed; ban before touching the filesystem so a
	// failed move cannot lose the notification.
	result.Notified = s.notifyUsers(ctx, matches.Posts)

	moves, err := s.relocator.Relocate(oldPath, newPath)
	if err != nil {
		return nil, fmt.Errorf("relocating: %w", err)
	}
	result.Moves = moves
	if !moves.File.Moved {
		s.logger.Warn("file not moved", "source", moves.File.Source, "dest", moves.File.Dest, "reason", moves.File.Reason)
	}
	return result, nil
}

// MigrateAll migrates every regular file under root, or root itself when it
// is a file. The thumbnail root is never walked. With resume, sources that a
// previous live run already migrated are skipped. A failing unit is recorded
// and the walk continues; only cancellation or a walk error stop the run.
func (s *Service) MigrateAll(ctx context.Context, runID string, root *Path, resume bool) (*Summary, error) {
	var files []*Path
	if root.IsDir() {
		found, err := s.fsmgr.FindFiles(root, []string{s.opts.ThumbDir})
		if err != nil {
			return nil, fmt.Errorf("finding files under %s: %w", root, err)
		}
		files = found
	} else {
		files = []*Path{root}
	}

	s.logger.Info("migration started", "root", root.String(), "files", len(files), "dry_run", s.opts.DryRun, "resume", resume)

	summary := &Summary{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if resume && s.journal != nil {
			done, err := s.journal.IsMigrated(f.String())
			if err != nil {
				return summary, fmt.Errorf("checking journal for %s: %w", f, err)
			}
			if done {
				r := skipped(f.String(), SkipCompleted)
				r.DryRun = s.opts.DryRun
				summary.add(r)
				s.record(runID, r)
				continue
			}
		}

		r := s.runUnit(ctx, OperationMigrate, f.String(), func(ctx context.Context) (*UnitResult, error) {
			return s.MigrateFile(ctx, f)
		})
		summary.add(r)
		s.record(runID, r)
	}

	s.logger.Info("migration finished",
		"migrated", summary.Migrated, "skipped", summary.Skipped, "failed", summary.Failed, "updated", summary.Updated)
	return summary, nil
}
