package hm

import (
	"context"
	"time"
)

// Archive provides transactional access to the archive database.
type Archive interface {
	// RunInTx runs fn inside a single transaction on one connection.
	// If fn returns an error the transaction is rolled back and the error returned.
	// If commit is false the transaction is rolled back even when fn succeeds,
	// which is how dry runs exercise every query without persisting anything.
	RunInTx(ctx context.Context, commit bool, fn func(tx ArchiveTx) error) error

	// Close releases the underlying connections.
	Close()
}

// ArchiveTx is the set of queries a migration unit runs inside its transaction.
// Lookups that find nothing return a nil record and a nil error.
type ArchiveTx interface {
	// File records

	// UpsertFile inserts a file record, or returns the id of the existing
	// record with the same hash.
	UpsertFile(ctx context.Context, rec *FileRecord) (int64, error)

	// FindFileByHash returns the file record with the given hash.
	FindFileByHash(ctx context.Context, hash string) (*FileRecord, error)

	// RelabelFile sets the hash of an existing file record.
	RelabelFile(ctx context.Context, id int64, hash string) error

	// RepointRelationships moves every post and discord relationship from one
	// file record to another. Rows that would duplicate an existing
	// relationship of the target are dropped. Returns the number of rows moved.
	RepointRelationships(ctx context.Context, fromID, toID int64) (int64, error)

	// DeleteFile deletes a file record. Relationships must already be repointed.
	DeleteFile(ctx context.Context, id int64) error

	// Relationships

	InsertPostRelationship(ctx context.Context, rel *FilePostRelationship) error
	InsertDiscordMessageRelationship(ctx context.Context, rel *FileDiscordMessageRelationship) error

	// Reference search

	// FindPostsByPath returns posts whose content or JSON columns contain
	// fragment. A nil window searches the whole table.
	FindPostsByPath(ctx context.Context, fragment string, window *TimeWindow) ([]*Post, error)

	// FindDiscordMessagesByPath returns messages whose JSON columns contain
	// fragment. A nil window searches the whole table.
	FindDiscordMessagesByPath(ctx context.Context, fragment string, window *TimeWindow) ([]*DiscordMessage, error)

	// FindPostsForFile returns posts linked to a file record through file_post_relationships.
	FindPostsForFile(ctx context.Context, fileID int64) ([]*Post, error)

	// FindDiscordMessagesForFile returns messages linked to a file record
	// through file_discord_message_relationships.
	FindDiscordMessagesForFile(ctx context.Context, fileID int64) ([]*DiscordMessage, error)

	// Rewrites

	// UpdatePost writes back only the columns named in fields, keyed by
	// (service, user, id).
	UpdatePost(ctx context.Context, p *Post, fields PostField) error

	// UpdateDiscordMessage writes back only the columns named in fields, keyed
	// by (server, channel, id).
	UpdateDiscordMessage(ctx context.Context, m *DiscordMessage, fields MessageField) error

	// Audit

	// AppendMigrationLog appends an entry to the log table of migrationID,
	// creating the table on first use.
	AppendMigrationLog(ctx context.Context, migrationID string, entry *MigrationLogEntry) error
}

// Journal records runs and unit outcomes locally, independent of the archive database.
type Journal interface {
	// StartRun records the start of a run and returns it with its ID set.
	StartRun(id, operation, migrationID string, dryRun bool, startedAt time.Time) (*Run, error)

	// FinishRun sets the final status and counts of a run.
	FinishRun(run *Run, finishedAt time.Time) error

	// RecordUnit stores the result of one unit of a run.
	RecordUnit(runID string, result *UnitResult, recordedAt time.Time) error

	// IsMigrated reports whether a live run already migrated source.
	IsMigrated(source string) (bool, error)

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]*Run, error)

	// Close closes the journal.
	Close() error
}
