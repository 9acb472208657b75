package hm_test

import (
	"testing"
	"time"

	"hashmove/internal/database"
	"hashmove/internal/hm"
	"hashmove/internal/testutil"
)

const dataDir = "/srv/data"

// fixture bundles a Service with the fakes behind it.
type fixture struct {
	svc      *hm.Service
	archive  *testutil.MemoryArchive
	fsmgr    *testutil.MockFilesystemManager
	journal  *database.SQLiteJournal
	notifier *testutil.RecordingNotifier
	metrics  *testutil.RecordingMetrics
	clock    *testutil.StubClock
}

func defaultOptions() hm.Options {
	return hm.Options{
		DataDir:         dataDir,
		MigrationID:     "test_run",
		FixExtensions:   true,
		FixJPE:          true,
		IgnoreTempFiles: true,
		LegacyDomain:    "https://kemono.party",
		SearchWindow:    time.Hour,
		RetryAttempts:   3,
		RetryDelay:      time.Millisecond,
	}
}

func newFixture(t *testing.T, opts hm.Options) *fixture {
	t.Helper()
	f := &fixture{
		archive:  testutil.NewMemoryArchive(),
		fsmgr:    testutil.NewMockFilesystemManager(),
		journal:  testutil.NewTestJournal(t),
		notifier: &testutil.RecordingNotifier{},
		metrics:  testutil.NewRecordingMetrics(),
		clock:    testutil.FixedClock(),
	}
	f.fsmgr.AddDirectory(dataDir)
	f.svc = f.rebuild(opts)
	return f
}

// rebuild creates a new Service over the same fakes.
func (f *fixture) rebuild(opts hm.Options) *hm.Service {
	return hm.NewService(opts, f.archive, f.journal, f.fsmgr, f.notifier, f.metrics, hm.DiscardLogger(), f.clock)
}

func (f *fixture) startRun(t *testing.T, id, operation string, dryRun bool) string {
	t.Helper()
	run, err := f.journal.StartRun(id, operation, "test_run", dryRun, f.clock.Now())
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	return run.ID
}

func (f *fixture) inspect(t *testing.T, path string) *hm.Path {
	t.Helper()
	p, err := f.fsmgr.Inspect(path)
	if err != nil {
		t.Fatalf("Inspect(%s) error = %v", path, err)
	}
	return p
}

func TestNewService_Defaults(t *testing.T) {
	svc := hm.NewService(hm.Options{DataDir: dataDir}, testutil.NewMemoryArchive(), nil,
		testutil.NewMockFilesystemManager(), nil, nil, hm.DiscardLogger(), testutil.FixedClock())

	opts := svc.Options()
	if opts.ThumbDir != "/srv/data/thumbnail" {
		t.Errorf("ThumbDir = %q", opts.ThumbDir)
	}
	if opts.SearchWindow != hm.DefaultSearchWindow {
		t.Errorf("SearchWindow = %v", opts.SearchWindow)
	}
	if opts.RetryAttempts != hm.DefaultRetryAttempts {
		t.Errorf("RetryAttempts = %d", opts.RetryAttempts)
	}
	if opts.RetryDelay <= 0 {
		t.Errorf("RetryDelay = %v", opts.RetryDelay)
	}
}
