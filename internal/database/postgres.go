package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hashmove/internal/hm"
)

// ErrDuplicateHash is returned when relabeling would give two file records the same hash.
var ErrDuplicateHash = errors.New("another file record already has this hash")

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresArchive implements hm.Archive on a pgx connection pool.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

// NewPostgresArchive connects to the archive database and pings it.
func NewPostgresArchive(ctx context.Context, dsn string) (*PostgresArchive, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to archive database: %w", err)
	}

	return &PostgresArchive{pool: pool}, nil
}

func (a *PostgresArchive) RunInTx(ctx context.Context, commit bool, fn func(tx hm.ArchiveTx) error) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(&pgTx{db: tx, logTables: make(map[string]bool)}); err != nil {
		return err
	}
	if !commit {
		return nil
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (a *PostgresArchive) Close() {
	a.pool.Close()
}

// pgTx implements hm.ArchiveTx on one transaction.
type pgTx struct {
	db        DBTX
	logTables map[string]bool
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// likePattern escapes LIKE metacharacters and wraps fragment for a substring match.
func likePattern(fragment string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(fragment) + "%"
}

// jsonLikePattern is likePattern for the text rendering of a jsonb value,
// where the fragment appears with JSON string escapes applied.
func jsonLikePattern(fragment string) string {
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fragment); err != nil {
		return likePattern(fragment)
	}
	quoted := strings.TrimSuffix(buf.String(), "\n")
	return likePattern(quoted[1 : len(quoted)-1])
}

// jsonArrayMatch matches each element of a jsonb[] column on its own; the
// text of the whole array adds a second layer of quoting.
func jsonArrayMatch(column, placeholder string) string {
	return `EXISTS (SELECT 1 FROM unnest(` + column + `) AS e WHERE e::text LIKE ` + placeholder + `)`
}

func toRaw(items []string) []json.RawMessage {
	if items == nil {
		return nil
	}
	out := make([]json.RawMessage, len(items))
	for i, s := range items {
		out[i] = json.RawMessage(s)
	}
	return out
}

func fromRaw(items []json.RawMessage) []string {
	if items == nil {
		return nil
	}
	out := make([]string, len(items))
	for i, r := range items {
		out[i] = string(r)
	}
	return out
}

func nullableJSON(r json.RawMessage) any {
	if r == nil {
		return nil
	}
	return string(r)
}

// File records

func (t *pgTx) UpsertFile(ctx context.Context, rec *hm.FileRecord) (int64, error) {
	var id int64
	err := t.db.QueryRow(ctx, `
		INSERT INTO files (hash, mtime, ctime, mime, ext)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (hash) DO UPDATE SET hash = EXCLUDED.hash
		RETURNING id`,
		rec.Hash, rec.Mtime, rec.Ctime, rec.Mime, rec.Ext).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting file %s: %w", rec.Hash, err)
	}
	return id, nil
}

func (t *pgTx) FindFileByHash(ctx context.Context, hash string) (*hm.FileRecord, error) {
	rec := &hm.FileRecord{}
	err := t.db.QueryRow(ctx, `
		SELECT id, hash, mtime, ctime, mime, ext
		FROM files
		WHERE hash = $1
		FOR UPDATE`, hash).Scan(&rec.ID, &rec.Hash, &rec.Mtime, &rec.Ctime, &rec.Mime, &rec.Ext)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding file by hash: %w", err)
	}
	return rec, nil
}

func (t *pgTx) RelabelFile(ctx context.Context, id int64, hash string) error {
	tag, err := t.db.Exec(ctx, `UPDATE files SET hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("relabeling file %d: %w", id, ErrDuplicateHash)
		}
		return fmt.Errorf("relabeling file %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("relabeling file %d: not found", id)
	}
	return nil
}

func (t *pgTx) RepointRelationships(ctx context.Context, fromID, toID int64) (int64, error) {
	statements := []string{
		`UPDATE file_post_relationships r SET file_id = $2
		WHERE r.file_id = $1 AND NOT EXISTS (
			SELECT 1 FROM file_post_relationships d
			WHERE d.file_id = $2 AND d.service = r.service AND d."user" = r."user" AND d.post = r.post)`,
		`DELETE FROM file_post_relationships WHERE file_id = $1`,
		`UPDATE file_discord_message_relationships r SET file_id = $2
		WHERE r.file_id = $1 AND NOT EXISTS (
			SELECT 1 FROM file_discord_message_relationships d
			WHERE d.file_id = $2 AND d.server = r.server AND d.channel = r.channel AND d.id = r.id)`,
		`DELETE FROM file_discord_message_relationships WHERE file_id = $1`,
	}

	var moved int64
	for i, stmt := range statements {
		var tag pgconn.CommandTag
		var err error
		if strings.HasPrefix(stmt, "DELETE") {
			tag, err = t.db.Exec(ctx, stmt, fromID)
		} else {
			tag, err = t.db.Exec(ctx, stmt, fromID, toID)
		}
		if err != nil {
			return moved, fmt.Errorf("repointing relationships (step %d): %w", i+1, err)
		}
		if tag.Update() {
			moved += tag.RowsAffected()
		}
	}
	return moved, nil
}

func (t *pgTx) DeleteFile(ctx context.Context, id int64) error {
	if _, err := t.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting file %d: %w", id, err)
	}
	return nil
}

// Relationships

func (t *pgTx) InsertPostRelationship(ctx context.Context, rel *hm.FilePostRelationship) error {
	_, err := t.db.Exec(ctx, `
		INSERT INTO file_post_relationships (file_id, filename, service, "user", post, inline)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING`,
		rel.FileID, rel.Filename, rel.Service, rel.User, rel.Post, rel.Inline)
	if err != nil {
		return fmt.Errorf("inserting post relationship: %w", err)
	}
	return nil
}

func (t *pgTx) InsertDiscordMessageRelationship(ctx context.Context, rel *hm.FileDiscordMessageRelationship) error {
	_, err := t.db.Exec(ctx, `
		INSERT INTO file_discord_message_relationships (file_id, filename, server, channel, id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING`,
		rel.FileID, rel.Filename, rel.Server, rel.Channel, rel.ID)
	if err != nil {
		return fmt.Errorf("inserting discord message relationship: %w", err)
	}
	return nil
}

// Reference search

const postColumns = `p.service, p."user", p.id, COALESCE(p.content, ''), p.file, p.attachments, p.embed, p.added`

const messageColumns = `m.server, m.channel, m.id, m.attachments, m.mentions, m.embeds, m.added`

func (t *pgTx) queryPosts(ctx context.Context, sql string, args ...any) ([]*hm.Post, error) {
	rows, err := t.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*hm.Post
	for rows.Next() {
		p := &hm.Post{}
		var file, embed []byte
		var attachments []string
		if err := rows.Scan(&p.Service, &p.User, &p.ID, &p.Content, &file, &attachments, &embed, &p.Added); err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		p.File = json.RawMessage(file)
		p.Attachments = toRaw(attachments)
		p.Embed = json.RawMessage(embed)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (t *pgTx) queryMessages(ctx context.Context, sql string, args ...any) ([]*hm.DiscordMessage, error) {
	rows, err := t.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*hm.DiscordMessage
	for rows.Next() {
		m := &hm.DiscordMessage{}
		var attachments, mentions, embeds []string
		if err := rows.Scan(&m.Server, &m.Channel, &m.ID, &attachments, &mentions, &embeds, &m.Added); err != nil {
			return nil, fmt.Errorf("scanning discord message: %w", err)
		}
		m.Attachments = toRaw(attachments)
		m.Mentions = toRaw(mentions)
		m.Embeds = toRaw(embeds)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (t *pgTx) FindPostsByPath(ctx context.Context, fragment string, window *hm.TimeWindow) ([]*hm.Post, error) {
	sql := `SELECT ` + postColumns + `
		FROM posts p
		WHERE (p.content LIKE $1 OR p.file::text LIKE $2 OR ` + jsonArrayMatch("p.attachments", "$2") + ` OR p.embed::text LIKE $2)`
	args := []any{likePattern(fragment), jsonLikePattern(fragment)}
	if window != nil {
		sql += ` AND p.added >= $3 AND p.added < $4`
		args = append(args, window.From, window.To)
	}
	sql += ` FOR UPDATE`

	posts, err := t.queryPosts(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("finding posts by path: %w", err)
	}
	return posts, nil
}

func (t *pgTx) FindDiscordMessagesByPath(ctx context.Context, fragment string, window *hm.TimeWindow) ([]*hm.DiscordMessage, error) {
	sql := `SELECT ` + messageColumns + `
		FROM discord_posts m
		WHERE (` + jsonArrayMatch("m.attachments", "$1") + ` OR ` + jsonArrayMatch("m.mentions", "$1") + ` OR ` + jsonArrayMatch("m.embeds", "$1") + `)`
	args := []any{jsonLikePattern(fragment)}
	if window != nil {
		sql += ` AND m.added >= $2 AND m.added < $3`
		args = append(args, window.From, window.To)
	}
	sql += ` FOR UPDATE`

	messages, err := t.queryMessages(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("finding discord messages by path: %w", err)
	}
	return messages, nil
}

func (t *pgTx) FindPostsForFile(ctx context.Context, fileID int64) ([]*hm.Post, error) {
	posts, err := t.queryPosts(ctx, `SELECT `+postColumns+`
		FROM posts p
		WHERE EXISTS (
			SELECT 1 FROM file_post_relationships r
			WHERE r.file_id = $1 AND r.service = p.service AND r."user" = p."user" AND r.post = p.id)
		FOR UPDATE`, fileID)
	if err != nil {
		return nil, fmt.Errorf("finding posts for file %d: %w", fileID, err)
	}
	return posts, nil
}

func (t *pgTx) FindDiscordMessagesForFile(ctx context.Context, fileID int64) ([]*hm.DiscordMessage, error) {
	messages, err := t.queryMessages(ctx, `SELECT `+messageColumns+`
		FROM discord_posts m
		WHERE EXISTS (
			SELECT 1 FROM file_discord_message_relationships r
			WHERE r.file_id = $1 AND r.server = m.server AND r.channel = m.channel AND r.id = m.id)
		FOR UPDATE`, fileID)
	if err != nil {
		return nil, fmt.Errorf("finding discord messages for file %d: %w", fileID, err)
	}
	return messages, nil
}

// Rewrites

// setClause accumulates "column = $n" assignments.
type setClause struct {
	parts []string
	args  []any
}

func (c *setClause) add(column, cast string, value any) {
	c.args = append(c.args, value)
	c.parts = append(c.parts, fmt.Sprintf("%s = $%d%s", column, len(c.args), cast))
}

func (c *setClause) where(columns ...string) string {
	conds := make([]string, len(columns))
	for i, col := range columns {
		conds[i] = fmt.Sprintf("%s = $%d", col, len(c.args)+i+1)
	}
	return strings.Join(c.parts, ", ") + " WHERE " + strings.Join(conds, " AND ")
}

func (t *pgTx) UpdatePost(ctx context.Context, p *hm.Post, fields hm.PostField) error {
	set := &setClause{}
	if fields.Has(hm.PostContent) {
		set.add("content", "", p.Content)
	}
	if fields.Has(hm.PostFile) {
		set.add("file", "::jsonb", nullableJSON(p.File))
	}
	if fields.Has(hm.PostAttachments) {
		set.add("attachments", "::jsonb[]", fromRaw(p.Attachments))
	}
	if fields.Has(hm.PostEmbed) {
		set.add("embed", "::jsonb", nullableJSON(p.Embed))
	}
	if len(set.parts) == 0 {
		return nil
	}

	sql := `UPDATE posts SET ` + set.where("service", `"user"`, "id")
	args := append(set.args, p.Service, p.User, p.ID)
	tag, err := t.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("updating post %s/%s/%s: %w", p.Service, p.User, p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating post %s/%s/%s: not found", p.Service, p.User, p.ID)
	}
	return nil
}

func (t *pgTx) UpdateDiscordMessage(ctx context.Context, m *hm.DiscordMessage, fields hm.MessageField) error {
	set := &setClause{}
	if fields.Has(hm.MessageAttachments) {
		set.add("attachments", "::jsonb[]", fromRaw(m.Attachments))
	}
	if fields.Has(hm.MessageMentions) {
		set.add("mentions", "::jsonb[]", fromRaw(m.Mentions))
	}
	if fields.Has(hm.MessageEmbeds) {
		set.add("embeds", "::jsonb[]", fromRaw(m.Embeds))
	}
	if len(set.parts) == 0 {
		return nil
	}

	sql := `UPDATE discord_posts SET ` + set.where("server", "channel", "id")
	args := append(set.args, m.Server, m.Channel, m.ID)
	tag, err := t.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("updating discord message %s/%s/%s: %w", m.Server, m.Channel, m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating discord message %s/%s/%s: not found", m.Server, m.Channel, m.ID)
	}
	return nil
}

// Audit

// MigrationLogTable returns the quoted audit table name for a migration id.
func MigrationLogTable(migrationID string) string {
	return pgx.Identifier{"sdkdd_migration_" + migrationID}.Sanitize()
}

func (t *pgTx) AppendMigrationLog(ctx context.Context, migrationID string, entry *hm.MigrationLogEntry) error {
	if migrationID == "" {
		return errors.New("appending migration log: migration id is required")
	}
	table := MigrationLogTable(migrationID)

	if !t.logTables[table] {
		_, err := t.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+table+` (
			id serial PRIMARY KEY,
			old_location varchar NOT NULL,
			new_location varchar NOT NULL,
			ctime timestamp,
			mtime timestamp,
			migrated_at timestamp NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
		if err != nil {
			return fmt.Errorf("creating migration log %s: %w", table, err)
		}
		t.logTables[table] = true
	}

	_, err := t.db.Exec(ctx, `INSERT INTO `+table+` (old_location, new_location, ctime, mtime) VALUES ($1, $2, $3, $4)`,
		entry.OldLocation, entry.NewLocation, entry.Ctime, entry.Mtime)
	if err != nil {
		return fmt.Errorf("appending migration log: %w", err)
	}
	return nil
}

// Compile-time checks
var (
	_ hm.Archive   = (*PostgresArchive)(nil)
	_ hm.ArchiveTx = (*pgTx)(nil)
)
