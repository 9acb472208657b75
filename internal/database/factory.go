package database

import (
	"context"
	"fmt"

	"hashmove/internal/config"
	"hashmove/internal/hm"
)

// NewJournalFromConfig creates a Journal implementation based on the journal config type.
func NewJournalFromConfig(cfg config.JournalConfig) (*SQLiteJournal, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for sqlite journal")
		}
		return NewSQLiteJournal(cfg.Path)
	case "memory":
		return NewSQLiteJournal(":memory:")
	default:
		return nil, fmt.Errorf("unknown journal type: %s", cfg.Type)
	}
}

// NewArchiveFromConfig connects to the archive database.
func NewArchiveFromConfig(ctx context.Context, cfg config.DatabaseConfig) (hm.Archive, error) {
	if cfg.Host == "" || cfg.Name == "" {
		return nil, fmt.Errorf("database host and name are required")
	}
	return NewPostgresArchive(ctx, cfg.DSN())
}
