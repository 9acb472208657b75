package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"hashmove/internal/config"
	"hashmove/internal/database"
	"hashmove/internal/fs"
	"hashmove/internal/hm"
	"hashmove/internal/metrics"
	"hashmove/internal/notify"
)

// OperationHistory names the read-only history command. It never connects
// to the archive database.
const OperationHistory = "history"

// MigrationApp is the application layer between the CLI and hm.Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and finishes the journal run on Close.
type MigrationApp struct {
	cfg     *config.Config
	archive hm.Archive
	journal *database.SQLiteJournal
	fsmgr   hm.FilesystemManager
	metrics *metrics.Recorder
	service *hm.Service
	clock   hm.Clock
	op      *Operation
	logFile *os.File
}

// NewMigrationApp creates a fully wired MigrationApp from the given config.
// operation identifies the CLI command being run (hm.OperationMigrate,
// hm.OperationFix or OperationHistory). The caller must call Close when done.
func NewMigrationApp(ctx context.Context, cfg *config.Config, operation string) (*MigrationApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var archive hm.Archive
	if operation != OperationHistory {
		a, err := database.NewArchiveFromConfig(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to archive database: %w", err)
		}
		archive = a
	}

	app, err := newMigrationApp(cfg, operation, archive, os.Stderr)
	if err != nil {
		if archive != nil {
			archive.Close()
		}
		return nil, err
	}
	return app, nil
}

// newMigrationApp wires everything except the archive connection.
func newMigrationApp(cfg *config.Config, operation string, archive hm.Archive, console io.Writer) (*MigrationApp, error) {
	journal, err := database.NewJournalFromConfig(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	if err := journal.CheckMigrations(); err != nil {
		journal.Close()
		return nil, fmt.Errorf("journal schema out of date: %w", err)
	}

	// Patterns in data_dir/.hmignore extend the configured ones.
	filePatterns, err := fs.ParseIgnoreFile(filepath.Join(cfg.DataDir, fs.IgnoreFileName))
	if err != nil {
		journal.Close()
		return nil, err
	}

	op := NewOperation(hm.UUIDGenerator{}, operation, cfg.MigrationID, cfg.DryRun)
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, console)
	if err != nil {
		journal.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	var notifier hm.Notifier = hm.NopNotifier{}
	if cfg.BanURL != "" {
		notifier = notify.NewHTTPNotifier(cfg.BanURL, nil)
	}

	fsmgr := fs.NewOSFilesystemManager(append(append([]string{}, cfg.Ignore...), filePatterns...))
	rec := metrics.NewRecorder()
	clock := hm.RealClock{}

	opts := hm.Options{
		DataDir:         cfg.DataDir,
		ThumbDir:        cfg.ThumbDir,
		MigrationID:     cfg.MigrationID,
		DryRun:          cfg.DryRun,
		FixExtensions:   cfg.FixExtensions,
		FixJPE:          cfg.FixJPE,
		IgnoreTempFiles: cfg.IgnoreTempFiles,
		LegacyDomain:    cfg.LegacyDomain,
		SearchWindow:    cfg.SearchWindow.Duration,
		RetryAttempts:   cfg.Retry.Attempts,
		RetryDelay:      cfg.Retry.Delay.Duration,
	}
	svc := hm.NewService(opts, archive, journal, fsmgr, notifier, rec, logger, clock)

	return &MigrationApp{
		cfg:     cfg,
		archive: archive,
		journal: journal,
		fsmgr:   fsmgr,
		metrics: rec,
		service: svc,
		clock:   clock,
		op:      op,
		logFile: logFile,
	}, nil
}

// Operation returns the operation this app was created for.
func (a *MigrationApp) Operation() *Operation {
	return a.op
}

// Options returns the effective service options.
func (a *MigrationApp) Options() hm.Options {
	return a.service.Options()
}

// persistRun starts the journal run for the operation.
// This should only be called for commands that touch the archive.
func (a *MigrationApp) persistRun() error {
	if a.op.Persisted() {
		return nil
	}
	run, err := a.journal.StartRun(a.op.ID, a.op.Name, a.op.MigrationID, a.op.DryRun, a.clock.Now())
	if err != nil {
		return fmt.Errorf("starting journal run: %w", err)
	}
	a.op.run = run
	return nil
}

// MigrateAll migrates every file under rawPath. An empty rawPath means the
// whole data directory. With resume, sources migrated by an earlier live run
// are skipped.
func (a *MigrationApp) MigrateAll(ctx context.Context, rawPath string, resume bool) (*hm.Summary, error) {
	if err := a.persistRun(); err != nil {
		return nil, err
	}
	if rawPath == "" {
		rawPath = a.cfg.DataDir
	}

	p, err := a.fsmgr.Inspect(rawPath)
	if err != nil {
		err = fmt.Errorf("resolving path: %w", err)
		a.op.Record(nil, err)
		return nil, err
	}

	summary, err := a.service.MigrateAll(ctx, a.op.ID, p, resume)
	a.op.Record(summary, err)
	return summary, err
}

// FixAll reads the correction list at rawPath and applies every entry.
func (a *MigrationApp) FixAll(ctx context.Context, rawPath string) (*hm.Summary, error) {
	f, err := os.Open(rawPath)
	if err != nil {
		return nil, fmt.Errorf("opening correction list: %w", err)
	}
	defer f.Close()

	corrections, err := hm.ParseCorrections(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rawPath, err)
	}

	if err := a.persistRun(); err != nil {
		return nil, err
	}
	summary, err := a.service.FixAll(ctx, a.op.ID, corrections)
	a.op.Record(summary, err)
	return summary, err
}

// GetHistory returns the most recent runs.
func (a *MigrationApp) GetHistory(limit int) ([]*hm.Run, error) {
	return a.service.GetHistory(limit)
}

// Close finishes the journal run, pushes metrics when a Pushgateway is
// configured, and closes all resources. The first error is returned.
func (a *MigrationApp) Close(ctx context.Context) error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.journal.FinishRun(a.op.finalRun(), a.clock.Now()); err != nil {
			firstErr = fmt.Errorf("finishing journal run: %w", err)
		}

		if url := a.cfg.Metrics.PushgatewayURL; url != "" {
			if err := a.metrics.Push(ctx, url, a.cfg.Metrics.Job, a.cfg.MigrationID); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	if a.archive != nil {
		a.archive.Close()
	}
	if err := a.journal.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing journal: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
