package hm

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Correction names a stored file whose recorded hash is wrong.
type Correction struct {
	Marker      string // first field of the list, carried but unused
	CorrectHash string
	OldPath     string // web-relative, always with a leading "/"
}

// ParseCorrections reads comma-separated "marker,correct_hash,old_path"
// lines. The old path may itself contain commas. Blank lines are skipped.
func ParseCorrections(r io.Reader) ([]Correction, error) {
	var out []Correction
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, ",", 3)
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: expected 3 comma-separated fields, got %d", lineNo, len(fields))
		}
		c := Correction{
			Marker:      strings.TrimSpace(fields[0]),
			CorrectHash: strings.ToLower(strings.TrimSpace(fields[1])),
			OldPath:     EnsureLeadingSlash(strings.TrimSpace(fields[2])),
		}
		if _, err := ShardDir(c.CorrectHash); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if c.OldPath == "/" {
			return nil, fmt.Errorf("line %d: empty old path", lineNo)
		}
		out = append(out, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading corrections: %w", err)
	}
	return out, nil
}
