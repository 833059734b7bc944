package record

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// Problem kinds reported by VerifyTree.
const (
	ProblemMissing        = "missing"
	ProblemDigestMismatch = "digest-mismatch"
	ProblemSizeMismatch   = "size-mismatch"
	ProblemUntracked      = "untracked"
)

// Problem is one verification finding for a single path.
type Problem struct {
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

func (p Problem) String() string {
	if p.Detail == "" {
		return fmt.Sprintf("%s: %s", p.Path, p.Kind)
	}
	return fmt.Sprintf("%s: %s (%s)", p.Path, p.Kind, p.Detail)
}

// VerifyTree checks every manifest entry against the extracted tree under
// root and reports mismatches, entries whose file is gone, and files on
// disk the manifest does not track. Entries without a digest are only
// checked for existence. Findings are sorted by path.
func VerifyTree(rec *Record, root string) ([]Problem, error) {
	var problems []Problem

	for _, e := range rec.Entries() {
		target := filepath.Join(root, filepath.FromSlash(e.Path))
		digest, size, err := DigestFile(target)
		if err != nil {
			problems = append(problems, Problem{Path: e.Path, Kind: ProblemMissing, Detail: err.Error()})
			continue
		}
		if e.Digest == "" {
			continue
		}
		if digest != e.Digest {
			problems = append(problems, Problem{
				Path:   e.Path,
				Kind:   ProblemDigestMismatch,
				Detail: fmt.Sprintf("recorded %s, computed %s", e.Digest, digest),
			})
		}
		if size != e.Size {
			problems = append(problems, Problem{
				Path:   e.Path,
				Kind:   ProblemSizeMismatch,
				Detail: fmt.Sprintf("recorded %d, computed %d", e.Size, size),
			})
		}
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, ok := rec.Get(rel); !ok {
			problems = append(problems, Problem{Path: rel, Kind: ProblemUntracked})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Slice(problems, func(i, j int) bool {
		if problems[i].Path != problems[j].Path {
			return problems[i].Path < problems[j].Path
		}
		return problems[i].Kind < problems[j].Kind
	})
	return problems, nil
}
