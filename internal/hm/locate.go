package hm

import (
	"context"
	"fmt"
	"time"
)

// DefaultSearchWindow is how long after a file's mtime its referencing rows
// are assumed to have been archived.
const DefaultSearchWindow = time.Hour

// Strategy identifies which locator pass produced a match.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyWindowed
	StrategyFullScan
	StrategyLinked
)

func (s Strategy) String() string {
	switch s {
	case StrategyWindowed:
		return "windowed"
	case StrategyFullScan:
		return "full-scan"
	case StrategyLinked:
		return "linked"
	default:
		return "none"
	}
}

// Matches is the set of rows that reference a path.
type Matches struct {
	Strategy Strategy
	Posts    []*Post
	Messages []*DiscordMessage
}

// Count returns the number of matched rows.
func (m *Matches) Count() int {
	return len(m.Posts) + len(m.Messages)
}

// Locator finds rows that reference a web path.
type Locator struct {
	Window time.Duration
}

// Locate searches rows added within Window after mtime first. Only when that
// finds nothing does it fall back to a full scan. Zero matches from both is
// not an error; the file may be orphaned or already rewritten.
func (l Locator) Locate(ctx context.Context, tx ArchiveTx, oldPath string, mtime time.Time) (*Matches, error) {
	window := l.Window
	if window <= 0 {
		window = DefaultSearchWindow
	}

	scoped := &TimeWindow{From: mtime, To: mtime.Add(window)}
	m, err := l.search(ctx, tx, oldPath, scoped)
	if err != nil {
		return nil, fmt.Errorf("windowed search: %w", err)
	}
	if m.Count() > 0 {
		m.Strategy = StrategyWindowed
		return m, nil
	}

	m, err = l.search(ctx, tx, oldPath, nil)
	if err != nil {
		return nil, fmt.Errorf("full scan: %w", err)
	}
	if m.Count() > 0 {
		m.Strategy = StrategyFullScan
	}
	return m, nil
}

// LocateLinked returns the rows linked to a file record through the
// relationship tables, regardless of their text.
func (l Locator) LocateLinked(ctx context.Context, tx ArchiveTx, fileID int64) (*Matches, error) {
	posts, err := tx.FindPostsForFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("finding linked posts: %w", err)
	}
	messages, err := tx.FindDiscordMessagesForFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("finding linked messages: %w", err)
	}
	m := &Matches{Posts: posts, Messages: messages}
	if m.Count() > 0 {
		m.Strategy = StrategyLinked
	}
	return m, nil
}

func (l Locator) search(ctx context.Context, tx ArchiveTx, oldPath string, window *TimeWindow) (*Matches, error) {
	posts, err := tx.FindPostsByPath(ctx, oldPath, window)
	if err != nil {
		return nil, fmt.Errorf("searching posts: %w", err)
	}
	messages, err := tx.FindDiscordMessagesByPath(ctx, oldPath, window)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	return &Matches{Posts: posts, Messages: messages}, nil
}
