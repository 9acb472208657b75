package hm

import "context"

// Notifier tells downstream caches that a user's content changed.
// Delivery is best-effort: callers log failures and carry on.
type Notifier interface {
	Notify(ctx context.Context, service, user string) error
}

// NopNotifier is used when no ban URL is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string) error { return nil }
