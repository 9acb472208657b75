package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"hashmove/internal/hm"
)

// RecordingNotifier records every ban request. Safe for concurrent use.
type RecordingNotifier struct {
	mu    sync.Mutex
	calls []string
	// Fail makes every Notify call return an error after recording it.
	Fail bool
}

func (n *RecordingNotifier) Notify(_ context.Context, service, user string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, service+"/"+user)
	if n.Fail {
		return errors.New("notifier unavailable")
	}
	return nil
}

// Calls returns the "service/user" keys in call order.
func (n *RecordingNotifier) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

// RecordingMetrics counts observations by operation.
type RecordingMetrics struct {
	mu       sync.Mutex
	Units    map[string][]hm.Outcome
	Retries  map[string]int
	Observed int
}

func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{
		Units:   make(map[string][]hm.Outcome),
		Retries: make(map[string]int),
	}
}

func (m *RecordingMetrics) ObserveUnit(operation string, result *hm.UnitResult, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Units[operation] = append(m.Units[operation], result.Outcome)
	m.Observed++
}

func (m *RecordingMetrics) ObserveRetry(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Retries[operation]++
}

// Compile-time checks
var (
	_ hm.Notifier = (*RecordingNotifier)(nil)
	_ hm.Metrics  = (*RecordingMetrics)(nil)
)
