package record

import (
	"fmt"
	"io"
	"sort"
)

// CompareResult represents the result of comparing two manifests.
type CompareResult struct {
	From string `json:"from"`
	To   string `json:"to"`

	Equal bool `json:"equal"`

	Summary Summary `json:"summary,omitempty"`
	Diff    Diff    `json:"diff,omitempty"`
}

// Summary provides a high-level summary of differences between two manifests.
type Summary struct {
	Changed bool `json:"changed,omitempty"`

	AddedCount    int `json:"addedCount,omitempty"`
	RemovedCount  int `json:"removedCount,omitempty"`
	ModifiedCount int `json:"modifiedCount,omitempty"`
}

// Diff lists the entries that differ between two manifests, ordered by path.
type Diff struct {
	Added    []Entry         `json:"added,omitempty"`
	Removed  []Entry         `json:"removed,omitempty"`
	Modified []ModifiedEntry `json:"modified,omitempty"`
}

// ModifiedEntry represents a path present in both manifests with
// different digest or size.
type ModifiedEntry struct {
	Path    string        `json:"path"`
	From    Entry         `json:"from"`
	To      Entry         `json:"to"`
	Changes []FieldChange `json:"changes,omitempty"`
}

// FieldChange represents a change in a single field between two entries.
type FieldChange struct {
	Field string `json:"field"`
	From  any    `json:"from,omitempty"`
	To    any    `json:"to,omitempty"`
}

// Compare diffs two manifests. The walk covers the sorted union of paths
// so output order is deterministic regardless of manifest order.
func Compare(from, to *Record) CompareResult {
	result := CompareResult{}

	paths := make([]string, 0, from.Len()+to.Len())
	seen := make(map[string]bool, from.Len()+to.Len())
	for _, e := range from.Entries() {
		if !seen[e.Path] {
			seen[e.Path] = true
			paths = append(paths, e.Path)
		}
	}
	for _, e := range to.Entries() {
		if !seen[e.Path] {
			seen[e.Path] = true
			paths = append(paths, e.Path)
		}
	}
	sort.Strings(paths)

	for _, path := range paths {
		before, inFrom := from.Get(path)
		after, inTo := to.Get(path)
		switch {
		case !inFrom:
			result.Diff.Added = append(result.Diff.Added, after)
		case !inTo:
			result.Diff.Removed = append(result.Diff.Removed, before)
		case before != after:
			result.Diff.Modified = append(result.Diff.Modified, ModifiedEntry{
				Path:    path,
				From:    before,
				To:      after,
				Changes: entryFieldChanges(before, after),
			})
		}
	}

	result.Summary = Summary{
		AddedCount:    len(result.Diff.Added),
		RemovedCount:  len(result.Diff.Removed),
		ModifiedCount: len(result.Diff.Modified),
	}
	result.Summary.Changed = result.Summary.AddedCount > 0 ||
		result.Summary.RemovedCount > 0 || result.Summary.ModifiedCount > 0
	result.Equal = !result.Summary.Changed
	return result
}

func entryFieldChanges(a, b Entry) []FieldChange {
	var changes []FieldChange
	if a.Digest != b.Digest {
		changes = append(changes, FieldChange{Field: "digest", From: a.Digest, To: b.Digest})
	}
	if a.Size != b.Size {
		changes = append(changes, FieldChange{Field: "size", From: a.Size, To: b.Size})
	}
	return changes
}

// TextOptions controls RenderText.
type TextOptions struct {
	// Mode is "diff", "summary", or "full".
	Mode string
}

// RenderText writes a human-readable rendering of the comparison. Mode
// "diff" prints only the changed entries, "summary" the counts, and
// "full" both.
func RenderText(w io.Writer, result *CompareResult, opts TextOptions) error {
	mode := opts.Mode
	if mode == "" {
		mode = "diff"
	}
	if mode != "diff" && mode != "summary" && mode != "full" {
		return fmt.Errorf("invalid mode %q (expected diff|summary|full)", mode)
	}

	fmt.Fprintf(w, "RECORD %s -> %s\n", result.From, result.To)
	if result.Equal {
		fmt.Fprintln(w, "  manifests are identical")
		return nil
	}

	if mode == "summary" || mode == "full" {
		fmt.Fprintf(w, "  added=%d removed=%d modified=%d\n",
			result.Summary.AddedCount, result.Summary.RemovedCount, result.Summary.ModifiedCount)
	}
	if mode == "summary" {
		return nil
	}

	if len(result.Diff.Added) > 0 {
		fmt.Fprintln(w, "  Added:")
		for _, e := range result.Diff.Added {
			fmt.Fprintf(w, "    + %s %s %d\n", e.Path, orBlank(e.Digest), e.Size)
		}
	}
	if len(result.Diff.Removed) > 0 {
		fmt.Fprintln(w, "  Removed:")
		for _, e := range result.Diff.Removed {
			fmt.Fprintf(w, "    - %s %s %d\n", e.Path, orBlank(e.Digest), e.Size)
		}
	}
	if len(result.Diff.Modified) > 0 {
		fmt.Fprintln(w, "  Modified:")
		for _, m := range result.Diff.Modified {
			fmt.Fprintf(w, "    ~ %s\n", m.Path)
			for _, ch := range m.Changes {
				fmt.Fprintf(w, "        %s: %v -> %v\n", ch.Field, ch.From, ch.To)
			}
		}
	}
	return nil
}

func orBlank(digest string) string {
	if digest == "" {
		return "-"
	}
	return digest
}
