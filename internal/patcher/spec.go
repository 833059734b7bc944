package patcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultStrip is the strip level when a patch does not name one.
const DefaultStrip = 1

// PatchEntry is one patch file and the strip level to apply it at.
type PatchEntry struct {
	Path  string
	Strip int
}

// PatchSpec is an ordered patch series with unique paths.
type PatchSpec struct {
	entries []PatchEntry
	seen    map[string]bool
}

// Add appends an entry. A duplicate path is a configuration error.
func (s *PatchSpec) Add(e PatchEntry) error {
	if e.Path == "" {
		return fmt.Errorf("patch entry with empty path")
	}
	if e.Strip < 0 {
		return fmt.Errorf("patch %s has negative strip level %d", e.Path, e.Strip)
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[e.Path] {
		return fmt.Errorf("duplicate patch %s", e.Path)
	}
	s.seen[e.Path] = true
	s.entries = append(s.entries, e)
	return nil
}

// AddAll appends entries in order, stopping at the first error.
func (s *PatchSpec) AddAll(entries []PatchEntry) error {
	for _, e := range entries {
		if err := s.Add(e); err != nil {
			return err
		}
	}
	return nil
}

// Entries returns the patches in application order.
func (s *PatchSpec) Entries() []PatchEntry {
	return s.entries
}

// Len returns the number of patches.
func (s *PatchSpec) Len() int {
	return len(s.entries)
}

// ParsePatchArg parses the "file[:strip]" command line form. A trailing
// colon-separated integer is the strip level; anything else is part of
// the path. Entries without a suffix get defaultStrip.
func ParsePatchArg(arg string, defaultStrip int) (PatchEntry, error) {
	path, strip := arg, defaultStrip
	if i := strings.LastIndex(arg, ":"); i >= 0 {
		if n, err := strconv.Atoi(arg[i+1:]); err == nil {
			path, strip = arg[:i], n
		}
	}
	if path == "" {
		return PatchEntry{}, fmt.Errorf("empty patch path in %q", arg)
	}
	if strip < 0 {
		return PatchEntry{}, fmt.Errorf("negative strip level in %q", arg)
	}
	return PatchEntry{Path: path, Strip: strip}, nil
}

// LoadSeries reads a quilt-style series file: one patch per line with an
// optional -pN argument, # comments and blank lines ignored, patch paths
// relative to the series file.
func LoadSeries(path string) ([]PatchEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read series file: %w", err)
	}
	dir := filepath.Dir(path)

	var entries []PatchEntry
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		entry := PatchEntry{Path: filepath.Join(dir, fields[0]), Strip: DefaultStrip}
		for _, f := range fields[1:] {
			n, ok := strings.CutPrefix(f, "-p")
			if !ok {
				return nil, fmt.Errorf("series line %d: unsupported option %q", i+1, f)
			}
			strip, err := strconv.Atoi(n)
			if err != nil || strip < 0 {
				return nil, fmt.Errorf("series line %d: bad strip level %q", i+1, f)
			}
			entry.Strip = strip
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
