package hm

import (
	"context"
	"path/filepath"
	"time"
)

// Options is the explicit configuration of a Service.
type Options struct {
	DataDir     string
	ThumbDir    string // defaults to DataDir/thumbnail
	MigrationID string
	DryRun      bool

	FixExtensions   bool
	FixJPE          bool
	IgnoreTempFiles bool
	LegacyDomain    string

	SearchWindow  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// tempFileSuffix marks partially downloaded files.
const tempFileSuffix = ".temp"

func (o Options) withDefaults() Options {
	if o.ThumbDir == "" && o.DataDir != "" {
		o.ThumbDir = filepath.Join(o.DataDir, "thumbnail")
	}
	if o.SearchWindow <= 0 {
		o.SearchWindow = DefaultSearchWindow
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = DefaultRetryAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Millisecond
	}
	return o
}

// Service is the orchestration layer that runs migration and corrective
// units against the archive database and the storage roots.
type Service struct {
	opts       Options
	archive    Archive
	journal    Journal
	fsmgr      FilesystemManager
	notifier   Notifier
	metrics    Metrics
	logger     Logger
	clock      Clock
	classifier Classifier
	locator    Locator
	reconciler Reconciler
	relocator  *Relocator
}

// NewService creates a new Service with the provided dependencies.
func NewService(opts Options, archive Archive, journal Journal, fsmgr FilesystemManager, notifier Notifier, metrics Metrics, logger Logger, clock Clock) *Service {
	opts = opts.withDefaults()
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Service{
		opts:       opts,
		archive:    archive,
		journal:    journal,
		fsmgr:      fsmgr,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
		clock:      clock,
		classifier: Classifier{FixExtensions: opts.FixExtensions, FixJPE: opts.FixJPE},
		locator:    Locator{Window: opts.SearchWindow},
		relocator:  NewRelocator(fsmgr, opts.DataDir, opts.ThumbDir),
	}
}

// Options returns the effective options, defaults applied.
func (s *Service) Options() Options {
	return s.opts
}

// rewriteMatches rewrites every matched row and writes back the changed
// ones, recording the counts on r.
func (s *Service) rewriteMatches(ctx context.Context, tx ArchiveTx, rw Rewriter, m *Matches, r *UnitResult) error {
	for _, p := range m.Posts {
		fields, err := rw.Post(p)
		if err != nil {
			return err
		}
		if fields == 0 {
			continue
		}
		if err := tx.UpdatePost(ctx, p, fields); err != nil {
			return err
		}
		r.PostsUpdated++
		s.logger.Debug("post rewritten", "service", p.Service, "user", p.User, "post", p.ID, "old", rw.Old, "new", rw.New)
	}
	for _, msg := range m.Messages {
		fields, err := rw.Message(msg)
		if err != nil {
			return err
		}
		if fields == 0 {
			continue
		}
		if err := tx.UpdateDiscordMessage(ctx, msg, fields); err != nil {
			return err
		}
		r.MessagesUpdated++
		s.logger.Debug("message rewritten", "server", msg.Server, "channel", msg.Channel, "message", msg.ID, "old", rw.Old, "new", rw.New)
	}
	r.Updated = r.PostsUpdated + r.MessagesUpdated
	return nil
}

// notifyUsers fires the ban hook once per distinct (service, user) of the
// matched posts. Failures are logged and never returned.
func (s *Service) notifyUsers(ctx context.Context, posts []*Post) []string {
	seen := make(map[string]bool)
	var notified []string
	for _, p := range posts {
		key := p.Service + "/" + p.User
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := s.notifier.Notify(ctx, p.Service, p.User); err != nil {
			s.logger.Warn("ban hook failed", "service", p.Service, "user", p.User, "error", err)
			continue
		}
		notified = append(notified, key)
	}
	return notified
}

// record journals a unit result. Journal failures are logged, not returned;
// the archive state is authoritative.
func (s *Service) record(runID string, r *UnitResult) {
	if s.journal == nil || runID == "" {
		return
	}
	if err := s.journal.RecordUnit(runID, r, s.clock.Now()); err != nil {
		s.logger.Warn("journaling unit failed", "source", r.Source, "error", err)
	}
}
