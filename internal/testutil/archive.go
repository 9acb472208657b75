package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"hashmove/internal/hm"
)

// ArchiveState is a deep copy of everything a MemoryArchive holds. Two
// snapshots compare equal with reflect.DeepEqual when nothing changed.
type ArchiveState struct {
	Files        map[int64]hm.FileRecord
	NextFileID   int64
	PostRels     []hm.FilePostRelationship
	MessageRels  []hm.FileDiscordMessageRelationship
	Posts        []hm.Post
	Messages     []hm.DiscordMessage
	MigrationLog map[string][]hm.MigrationLogEntry
}

func (s *ArchiveState) clone() *ArchiveState {
	c := &ArchiveState{
		Files:        make(map[int64]hm.FileRecord, len(s.Files)),
		NextFileID:   s.NextFileID,
		PostRels:     append([]hm.FilePostRelationship(nil), s.PostRels...),
		MessageRels:  append([]hm.FileDiscordMessageRelationship(nil), s.MessageRels...),
		MigrationLog: make(map[string][]hm.MigrationLogEntry, len(s.MigrationLog)),
	}
	for id, f := range s.Files {
		c.Files[id] = f
	}
	for _, p := range s.Posts {
		c.Posts = append(c.Posts, *clonePost(&p))
	}
	for _, m := range s.Messages {
		c.Messages = append(c.Messages, *cloneMessage(&m))
	}
	for k, v := range s.MigrationLog {
		c.MigrationLog[k] = append([]hm.MigrationLogEntry(nil), v...)
	}
	return c
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return append(json.RawMessage(nil), r...)
}

func cloneRawSlice(items []json.RawMessage) []json.RawMessage {
	if items == nil {
		return nil
	}
	out := make([]json.RawMessage, len(items))
	for i, it := range items {
		out[i] = cloneRaw(it)
	}
	return out
}

func clonePost(p *hm.Post) *hm.Post {
	c := *p
	c.File = cloneRaw(p.File)
	c.Attachments = cloneRawSlice(p.Attachments)
	c.Embed = cloneRaw(p.Embed)
	return &c
}

func cloneMessage(m *hm.DiscordMessage) *hm.DiscordMessage {
	c := *m
	c.Attachments = cloneRawSlice(m.Attachments)
	c.Mentions = cloneRawSlice(m.Mentions)
	c.Embeds = cloneRawSlice(m.Embeds)
	return &c
}

// MemoryArchive is an in-memory hm.Archive. Each transaction works on a copy
// of the state that replaces it only on commit. Safe for concurrent use;
// transactions are serialized.
type MemoryArchive struct {
	mu    sync.Mutex
	state *ArchiveState

	// FailCommits makes the next n transactions that would commit fail instead.
	FailCommits int

	WindowedSearches int
	FullScans        int
	Commits          int
	Rollbacks        int
}

// NewMemoryArchive creates an empty archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{state: &ArchiveState{
		Files:        make(map[int64]hm.FileRecord),
		NextFileID:   1,
		MigrationLog: make(map[string][]hm.MigrationLogEntry),
	}}
}

// AddPost seeds a post.
func (a *MemoryArchive) AddPost(p hm.Post) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Posts = append(a.state.Posts, *clonePost(&p))
}

// AddMessage seeds a discord message.
func (a *MemoryArchive) AddMessage(m hm.DiscordMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Messages = append(a.state.Messages, *cloneMessage(&m))
}

// AddFile seeds a file record and returns its id.
func (a *MemoryArchive) AddFile(rec hm.FileRecord) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec.ID = a.state.NextFileID
	a.state.NextFileID++
	a.state.Files[rec.ID] = rec
	return rec.ID
}

// AddPostRelationship seeds a post relationship.
func (a *MemoryArchive) AddPostRelationship(rel hm.FilePostRelationship) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.PostRels = append(a.state.PostRels, rel)
}

// AddMessageRelationship seeds a discord relationship.
func (a *MemoryArchive) AddMessageRelationship(rel hm.FileDiscordMessageRelationship) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.MessageRels = append(a.state.MessageRels, rel)
}

// Snapshot returns a deep copy of the committed state.
func (a *MemoryArchive) Snapshot() *ArchiveState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.clone()
}

// FileByHash returns the committed record with hash, if any.
func (a *MemoryArchive) FileByHash(hash string) *hm.FileRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range a.state.Files {
		if f.Hash == hash {
			f := f
			return &f
		}
	}
	return nil
}

func (a *MemoryArchive) RunInTx(ctx context.Context, commit bool, fn func(tx hm.ArchiveTx) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{archive: a, state: a.state.clone()}
	if err := fn(tx); err != nil {
		a.Rollbacks++
		return err
	}
	if !commit {
		a.Rollbacks++
		return nil
	}
	if a.FailCommits > 0 {
		a.FailCommits--
		a.Rollbacks++
		return errors.New("commit: injected failure")
	}
	a.state = tx.state
	a.Commits++
	return nil
}

func (a *MemoryArchive) Close() {}

type memoryTx struct {
	archive *MemoryArchive
	state   *ArchiveState
}

func (t *memoryTx) UpsertFile(_ context.Context, rec *hm.FileRecord) (int64, error) {
	for id, f := range t.state.Files {
		if f.Hash == rec.Hash {
			return id, nil
		}
	}
	r := *rec
	r.ID = t.state.NextFileID
	t.state.NextFileID++
	t.state.Files[r.ID] = r
	return r.ID, nil
}

func (t *memoryTx) FindFileByHash(_ context.Context, hash string) (*hm.FileRecord, error) {
	for _, f := range t.state.Files {
		if f.Hash == hash {
			f := f
			return &f, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) RelabelFile(_ context.Context, id int64, hash string) error {
	f, ok := t.state.Files[id]
	if !ok {
		return fmt.Errorf("file %d not found", id)
	}
	for oid, o := range t.state.Files {
		if oid != id && o.Hash == hash {
			return fmt.Errorf("duplicate key value violates unique constraint on hash %s", hash)
		}
	}
	f.Hash = hash
	t.state.Files[id] = f
	return nil
}

func (t *memoryTx) RepointRelationships(_ context.Context, fromID, toID int64) (int64, error) {
	var moved int64

	postKey := func(r hm.FilePostRelationship) string { return r.Service + "\x00" + r.User + "\x00" + r.Post }
	have := make(map[string]bool)
	for _, r := range t.state.PostRels {
		if r.FileID == toID {
			have[postKey(r)] = true
		}
	}
	var posts []hm.FilePostRelationship
	for _, r := range t.state.PostRels {
		if r.FileID == fromID {
			if have[postKey(r)] {
				continue
			}
			r.FileID = toID
			have[postKey(r)] = true
			moved++
		}
		posts = append(posts, r)
	}
	t.state.PostRels = posts

	msgKey := func(r hm.FileDiscordMessageRelationship) string { return r.Server + "\x00" + r.Channel + "\x00" + r.ID }
	haveMsg := make(map[string]bool)
	for _, r := range t.state.MessageRels {
		if r.FileID == toID {
			haveMsg[msgKey(r)] = true
		}
	}
	var msgs []hm.FileDiscordMessageRelationship
	for _, r := range t.state.MessageRels {
		if r.FileID == fromID {
			if haveMsg[msgKey(r)] {
				continue
			}
			r.FileID = toID
			haveMsg[msgKey(r)] = true
			moved++
		}
		msgs = append(msgs, r)
	}
	t.state.MessageRels = msgs

	return moved, nil
}

func (t *memoryTx) DeleteFile(_ context.Context, id int64) error {
	for _, r := range t.state.PostRels {
		if r.FileID == id {
			return fmt.Errorf("file %d still referenced by post %s/%s/%s", id, r.Service, r.User, r.Post)
		}
	}
	for _, r := range t.state.MessageRels {
		if r.FileID == id {
			return fmt.Errorf("file %d still referenced by message %s/%s/%s", id, r.Server, r.Channel, r.ID)
		}
	}
	delete(t.state.Files, id)
	return nil
}

func (t *memoryTx) InsertPostRelationship(_ context.Context, rel *hm.FilePostRelationship) error {
	for _, r := range t.state.PostRels {
		if r.FileID == rel.FileID && r.Service == rel.Service && r.User == rel.User && r.Post == rel.Post {
			return nil
		}
	}
	t.state.PostRels = append(t.state.PostRels, *rel)
	return nil
}

func (t *memoryTx) InsertDiscordMessageRelationship(_ context.Context, rel *hm.FileDiscordMessageRelationship) error {
	for _, r := range t.state.MessageRels {
		if r.FileID == rel.FileID && r.Server == rel.Server && r.Channel == rel.Channel && r.ID == rel.ID {
			return nil
		}
	}
	t.state.MessageRels = append(t.state.MessageRels, *rel)
	return nil
}

func rawContains(items []json.RawMessage, fragment []byte) bool {
	for _, it := range items {
		if bytes.Contains(it, fragment) {
			return true
		}
	}
	return false
}

func (t *memoryTx) FindPostsByPath(_ context.Context, fragment string, window *hm.TimeWindow) ([]*hm.Post, error) {
	if window != nil {
		t.archive.WindowedSearches++
	} else {
		t.archive.FullScans++
	}
	frag := []byte(fragment)
	var out []*hm.Post
	for i := range t.state.Posts {
		p := &t.state.Posts[i]
		if window != nil && !window.Contains(p.Added) {
			continue
		}
		if strings.Contains(p.Content, fragment) || bytes.Contains(p.File, frag) ||
			rawContains(p.Attachments, frag) || bytes.Contains(p.Embed, frag) {
			out = append(out, clonePost(p))
		}
	}
	return out, nil
}

func (t *memoryTx) FindDiscordMessagesByPath(_ context.Context, fragment string, window *hm.TimeWindow) ([]*hm.DiscordMessage, error) {
	frag := []byte(fragment)
	var out []*hm.DiscordMessage
	for i := range t.state.Messages {
		m := &t.state.Messages[i]
		if window != nil && !window.Contains(m.Added) {
			continue
		}
		if rawContains(m.Attachments, frag) || rawContains(m.Mentions, frag) || rawContains(m.Embeds, frag) {
			out = append(out, cloneMessage(m))
		}
	}
	return out, nil
}

func (t *memoryTx) FindPostsForFile(_ context.Context, fileID int64) ([]*hm.Post, error) {
	var out []*hm.Post
	for i := range t.state.Posts {
		p := &t.state.Posts[i]
		for _, r := range t.state.PostRels {
			if r.FileID == fileID && r.Service == p.Service && r.User == p.User && r.Post == p.ID {
				out = append(out, clonePost(p))
				break
			}
		}
	}
	return out, nil
}

func (t *memoryTx) FindDiscordMessagesForFile(_ context.Context, fileID int64) ([]*hm.DiscordMessage, error) {
	var out []*hm.DiscordMessage
	for i := range t.state.Messages {
		m := &t.state.Messages[i]
		for _, r := range t.state.MessageRels {
			if r.FileID == fileID && r.Server == m.Server && r.Channel == m.Channel && r.ID == m.ID {
				out = append(out, cloneMessage(m))
				break
			}
		}
	}
	return out, nil
}

func (t *memoryTx) UpdatePost(_ context.Context, p *hm.Post, fields hm.PostField) error {
	for i := range t.state.Posts {
		row := &t.state.Posts[i]
		if row.Service != p.Service || row.User != p.User || row.ID != p.ID {
			continue
		}
		if fields.Has(hm.PostContent) {
			row.Content = p.Content
		}
		if fields.Has(hm.PostFile) {
			row.File = cloneRaw(p.File)
		}
		if fields.Has(hm.PostAttachments) {
			row.Attachments = cloneRawSlice(p.Attachments)
		}
		if fields.Has(hm.PostEmbed) {
			row.Embed = cloneRaw(p.Embed)
		}
		return nil
	}
	return fmt.Errorf("post %s/%s/%s not found", p.Service, p.User, p.ID)
}

func (t *memoryTx) UpdateDiscordMessage(_ context.Context, m *hm.DiscordMessage, fields hm.MessageField) error {
	for i := range t.state.Messages {
		row := &t.state.Messages[i]
		if row.Server != m.Server || row.Channel != m.Channel || row.ID != m.ID {
			continue
		}
		if fields.Has(hm.MessageAttachments) {
			row.Attachments = cloneRawSlice(m.Attachments)
		}
		if fields.Has(hm.MessageMentions) {
			row.Mentions = cloneRawSlice(m.Mentions)
		}
		if fields.Has(hm.MessageEmbeds) {
			row.Embeds = cloneRawSlice(m.Embeds)
		}
		return nil
	}
	return fmt.Errorf("message %s/%s/%s not found", m.Server, m.Channel, m.ID)
}

func (t *memoryTx) AppendMigrationLog(_ context.Context, migrationID string, entry *hm.MigrationLogEntry) error {
	if migrationID == "" {
		return errors.New("migration id is required")
	}
	t.state.MigrationLog[migrationID] = append(t.state.MigrationLog[migrationID], *entry)
	return nil
}

// Compile-time checks
var (
	_ hm.Archive   = (*MemoryArchive)(nil)
	_ hm.ArchiveTx = (*memoryTx)(nil)
)
