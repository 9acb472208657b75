package hm

import (
	"context"
	"errors"

	"github.com/sethvargo/go-retry"
)

// DefaultRetryAttempts bounds how many times a unit is attempted.
const DefaultRetryAttempts = 5

// Outcome is the final state of a unit.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// SkipReason explains why a unit or a move did nothing. Skips are not errors.
type SkipReason string

const (
	SkipNone              SkipReason = ""
	SkipSymlink           SkipReason = "symlink"
	SkipMount             SkipReason = "mount"
	SkipEmpty             SkipReason = "empty"
	SkipIgnored           SkipReason = "ignored"
	SkipAlreadyCanonical  SkipReason = "already-canonical"
	SkipUnknownHash       SkipReason = "unknown-hash"
	SkipCompleted         SkipReason = "completed"
	SkipSourceMissing     SkipReason = "source-missing"
	SkipDestinationExists SkipReason = "destination-exists"
)

// UnitResult is the explicit outcome of one migration or corrective unit.
type UnitResult struct {
	Source   string // absolute source path, or the correction's old path
	OldPath  string // web-relative
	NewPath  string // web-relative
	Outcome  Outcome
	Reason   SkipReason
	DryRun   bool
	Strategy Strategy
	Action   ReconcileAction
	Matched  int // rows found referencing the old path
	Updated  int // rows whose columns were rewritten

	PostsUpdated    int
	MessagesUpdated int

	FileID   int64
	Moves    *Relocation // nil unless the filesystem step ran
	Notified []string    // "service/user" pairs sent to the ban hook
	Attempts int
	Err      error
}

func skipped(source string, reason SkipReason) *UnitResult {
	return &UnitResult{Source: source, Outcome: OutcomeSkipped, Reason: reason}
}

// Summary tallies the units of a run.
type Summary struct {
	Migrated int
	Skipped  int
	Failed   int
	Updated  int
	Results  []*UnitResult
}

func (s *Summary) add(r *UnitResult) {
	switch r.Outcome {
	case OutcomeDone:
		s.Migrated++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
	s.Updated += r.Updated
	s.Results = append(s.Results, r)
}

// runUnit runs attempt up to RetryAttempts times. Every attempt error is
// treated as transient because hashing, querying and the guarded move are all
// idempotent. Exhausting the bound yields a failed result instead of an error,
// so one bad file never stops the batch. Cancellation ends the loop at once.
func (s *Service) runUnit(ctx context.Context, operation, source string, attempt func(ctx context.Context) (*UnitResult, error)) *UnitResult {
	start := s.clock.Now()
	attempts := 0
	var result *UnitResult

	backoff := retry.WithMaxRetries(uint64(s.opts.RetryAttempts-1), retry.NewConstant(s.opts.RetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		r, err := attempt(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if attempts < s.opts.RetryAttempts {
				s.logger.Warn("unit attempt failed, retrying", "source", source, "attempt", attempts, "error", err)
				s.metrics.ObserveRetry(operation)
			}
			return retry.RetryableError(err)
		}
		result = r
		return nil
	})
	if err != nil {
		s.logger.Error("unit failed", "source", source, "attempts", attempts, "error", err)
		result = &UnitResult{Source: source, Outcome: OutcomeFailed, Err: err}
	}
	result.Attempts = attempts
	result.DryRun = s.opts.DryRun

	s.metrics.ObserveUnit(operation, result, s.clock.Now().Sub(start))
	return result
}
