package hm

import (
	"database/sql"
	"encoding/json"
	"time"
)

// FileRecord is a row in the files table. Hash is the identity; exactly one
// record should exist per distinct content hash.
type FileRecord struct {
	ID    int64
	Hash  string
	Mtime time.Time
	Ctime time.Time
	Mime  string
	Ext   string
}

// FilePostRelationship links a FileRecord to a post.
// Inline is true when the file is referenced from the post body text rather
// than from its attachment metadata.
type FilePostRelationship struct {
	FileID   int64
	Filename string
	Service  string
	User     string
	Post     string
	Inline   bool
}

// FileDiscordMessageRelationship links a FileRecord to a Discord message.
type FileDiscordMessageRelationship struct {
	FileID   int64
	Filename string
	Server   string
	Channel  string
	ID       string
}

// Post is the subset of a posts row that can reference a file path.
// The natural key is (Service, User, ID).
type Post struct {
	Service     string
	User        string
	ID          string
	Content     string
	File        json.RawMessage
	Attachments []json.RawMessage
	Embed       json.RawMessage
	Added       time.Time
}

// DiscordMessage is the subset of a discord_posts row that can reference a
// file path. The natural key is (Server, Channel, ID).
type DiscordMessage struct {
	Server      string
	Channel     string
	ID          string
	Attachments []json.RawMessage
	Mentions    []json.RawMessage
	Embeds      []json.RawMessage
	Added       time.Time
}

// MigrationLogEntry is one append-only audit row of a migration run.
type MigrationLogEntry struct {
	OldLocation string
	NewLocation string
	Ctime       time.Time
	Mtime       time.Time
}

// PostField is a bitmask of the posts columns a rewrite touched.
type PostField uint8

const (
	PostContent PostField = 1 << iota
	PostFile
	PostAttachments
	PostEmbed
)

// Has reports whether all bits of f are set.
func (p PostField) Has(f PostField) bool { return p&f == f }

// MessageField is a bitmask of the discord_posts columns a rewrite touched.
type MessageField uint8

const (
	MessageAttachments MessageField = 1 << iota
	MessageMentions
	MessageEmbeds
)

// Has reports whether all bits of f are set.
func (m MessageField) Has(f MessageField) bool { return m&f == f }

// TimeWindow bounds a search to rows added in [From, To).
type TimeWindow struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Run is a journaled invocation of the tool.
type Run struct {
	ID          string
	Operation   string
	MigrationID string
	DryRun      bool
	StartedAt   time.Time
	FinishedAt  sql.NullTime
	Status      string // "running", "success" or "error"
	Migrated    int64
	Skipped     int64
	Failed      int64
}
