package hm

import (
	"fmt"
	"path/filepath"
)

// Move is the outcome of relocating one file under one storage root.
type Move struct {
	Source string
	Dest   string
	Moved  bool
	Reason SkipReason // set when Moved is false
}

// Relocation is the outcome for the data root and the thumbnail root.
type Relocation struct {
	File      Move
	Thumbnail Move
}

// Relocator renames files into the shard layout.
type Relocator struct {
	fsmgr    FilesystemManager
	dataDir  string
	thumbDir string // empty disables thumbnail moves
}

// NewRelocator creates a Relocator for a data root and an optional thumbnail root.
func NewRelocator(fsmgr FilesystemManager, dataDir, thumbDir string) *Relocator {
	return &Relocator{fsmgr: fsmgr, dataDir: dataDir, thumbDir: thumbDir}
}

// Relocate moves srcWeb to dstWeb under the thumbnail root, then under the
// data root. The data file goes last so that a failed attempt leaves it at
// srcWeb, where a retry can hash it again. A move only happens when the
// source exists and the destination does not; an existing destination
// always wins. Callers must only relocate after the database transaction
// has committed.
func (r *Relocator) Relocate(srcWeb, dstWeb string) (*Relocation, error) {
	rel := &Relocation{Thumbnail: Move{Reason: SkipSourceMissing}}
	if r.thumbDir != "" {
		thumb, err := r.move(r.thumbDir, srcWeb, dstWeb)
		if err != nil {
			return nil, fmt.Errorf("thumbnail: %w", err)
		}
		rel.Thumbnail = *thumb
	}

	file, err := r.move(r.dataDir, srcWeb, dstWeb)
	if err != nil {
		return nil, err
	}
	rel.File = *file
	return rel, nil
}

func (r *Relocator) move(root, srcWeb, dstWeb string) (*Move, error) {
	m := &Move{Source: FSPath(root, srcWeb), Dest: FSPath(root, dstWeb)}

	if m.Source == m.Dest {
		m.Reason = SkipAlreadyCanonical
		return m, nil
	}

	srcExists, err := r.fsmgr.IsFile(m.Source)
	if err != nil {
		return nil, fmt.Errorf("checking source %s: %w", m.Source, err)
	}
	if !srcExists {
		m.Reason = SkipSourceMissing
		return m, nil
	}

	dstExists, err := r.fsmgr.IsFile(m.Dest)
	if err != nil {
		return nil, fmt.Errorf("checking destination %s: %w", m.Dest, err)
	}
	if dstExists {
		m.Reason = SkipDestinationExists
		return m, nil
	}

	if err := r.fsmgr.MkdirAll(filepath.Dir(m.Dest)); err != nil {
		return nil, fmt.Errorf("creating shard directory: %w", err)
	}
	if err := r.fsmgr.Rename(m.Source, m.Dest); err != nil {
		return nil, fmt.Errorf("renaming %s to %s: %w", m.Source, m.Dest, err)
	}
	m.Moved = true
	return m, nil
}
