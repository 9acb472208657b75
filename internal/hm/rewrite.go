package hm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Rewriter replaces every occurrence of an old web path with a new one.
// The legacy-domain-prefixed form ("https://legacy.example/ab/cd/x.png") is
// replaced before the bare form so the prefix does not survive the rewrite.
type Rewriter struct {
	Old    string
	New    string
	Legacy string // optional domain prefix, e.g. "https://kemono.party"
}

// Text rewrites a free-text value.
func (r Rewriter) Text(s string) string {
	if r.Old == "" || r.Old == r.New {
		return s
	}
	if r.Legacy != "" {
		s = strings.ReplaceAll(s, r.Legacy+r.Old, r.New)
	}
	return strings.ReplaceAll(s, r.Old, r.New)
}

// JSON rewrites every string leaf of a JSON document. The structure is kept
// as-is and numbers are carried through undecoded. The returned bool is false
// when nothing changed, in which case raw is returned untouched.
func (r Rewriter) JSON(raw json.RawMessage) (json.RawMessage, bool, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return raw, false, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return raw, false, fmt.Errorf("decoding json: %w", err)
	}

	doc, changed := r.walk(doc)
	if !changed {
		return raw, false, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return raw, false, fmt.Errorf("encoding json: %w", err)
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), true, nil
}

func (r Rewriter) walk(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		s := r.Text(t)
		return s, s != t
	case map[string]any:
		changed := false
		for k, child := range t {
			nv, c := r.walk(child)
			if c {
				t[k] = nv
				changed = true
			}
		}
		return t, changed
	case []any:
		changed := false
		for i, child := range t {
			nv, c := r.walk(child)
			if c {
				t[i] = nv
				changed = true
			}
		}
		return t, changed
	default:
		return v, false
	}
}

// jsonArray rewrites each element of an array-of-JSON column in place.
func (r Rewriter) jsonArray(items []json.RawMessage) (bool, error) {
	changed := false
	for i, item := range items {
		nv, c, err := r.JSON(item)
		if err != nil {
			return false, fmt.Errorf("element %d: %w", i, err)
		}
		if c {
			items[i] = nv
			changed = true
		}
	}
	return changed, nil
}

// Post rewrites a post in place and returns the columns that changed.
func (r Rewriter) Post(p *Post) (PostField, error) {
	var fields PostField

	if s := r.Text(p.Content); s != p.Content {
		p.Content = s
		fields |= PostContent
	}

	file, changed, err := r.JSON(p.File)
	if err != nil {
		return 0, fmt.Errorf("rewriting file of post %s/%s/%s: %w", p.Service, p.User, p.ID, err)
	}
	if changed {
		p.File = file
		fields |= PostFile
	}

	changed, err = r.jsonArray(p.Attachments)
	if err != nil {
		return 0, fmt.Errorf("rewriting attachments of post %s/%s/%s: %w", p.Service, p.User, p.ID, err)
	}
	if changed {
		fields |= PostAttachments
	}

	embed, changed, err := r.JSON(p.Embed)
	if err != nil {
		return 0, fmt.Errorf("rewriting embed of post %s/%s/%s: %w", p.Service, p.User, p.ID, err)
	}
	if changed {
		p.Embed = embed
		fields |= PostEmbed
	}

	return fields, nil
}

// Message rewrites a discord message in place and returns the columns that changed.
func (r Rewriter) Message(m *DiscordMessage) (MessageField, error) {
	var fields MessageField

	columns := []struct {
		items []json.RawMessage
		field MessageField
		name  string
	}{
		{m.Attachments, MessageAttachments, "attachments"},
		{m.Mentions, MessageMentions, "mentions"},
		{m.Embeds, MessageEmbeds, "embeds"},
	}
	for _, col := range columns {
		changed, err := r.jsonArray(col.items)
		if err != nil {
			return 0, fmt.Errorf("rewriting %s of message %s/%s/%s: %w", col.name, m.Server, m.Channel, m.ID, err)
		}
		if changed {
			fields |= col.field
		}
	}

	return fields, nil
}
