// Package repack rebuilds a wheel archive from a staged directory tree,
// recomputing the RECORD manifest so the archive stays installable after
// its contents were modified in place.
package repack

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/open-edge-platform/wheel-patcher/internal/record"
	"github.com/open-edge-platform/wheel-patcher/internal/utils/logger"
	"github.com/open-edge-platform/wheel-patcher/internal/wheel"
)

// ErrRepackage reports a failed repackage. No output archive remains on
// disk when it is returned.
var ErrRepackage = errors.New("repackage failed")

// Result describes a completed repackage.
type Result struct {
	// OutPath is the written archive.
	OutPath string

	// RecordPath is the manifest's archive path.
	RecordPath string

	// Members is the number of archive members written.
	Members int

	// Compare is the manifest diff between the staged RECORD and the
	// recomputed one, the operator-visible account of what changed.
	Compare record.CompareResult
}

// Repackager turns a staged wheel tree back into an archive.
type Repackager interface {
	Repackage(ctx context.Context, stagedDir, outPath string) (*Result, error)
}

// New returns the deterministic zip repackager.
func New() Repackager {
	return &repackager{}
}

type repackager struct{}

// Repackage recomputes the RECORD manifest for the tree under stagedDir
// and writes a deterministic archive to outPath. Files missing from the
// old manifest gain entries, entries whose file is gone are dropped, and
// digest-less entries are preserved as such. The archive is written to a
// temporary file and renamed, so a failure leaves nothing at outPath.
func (r *repackager) Repackage(ctx context.Context, stagedDir, outPath string) (*Result, error) {
	recordRel, err := findRecordPath(stagedDir)
	if err != nil {
		return nil, err
	}
	distinfoDir := strings.TrimSuffix(recordRel, "/"+record.Filename)

	oldRec, err := record.ParseFile(filepath.Join(stagedDir, filepath.FromSlash(recordRel)))
	if err != nil {
		return nil, fmt.Errorf("%w: reading manifest %s: %v", ErrRepackage, recordRel, err)
	}

	files, err := collectFiles(stagedDir, recordRel)
	if err != nil {
		return nil, err
	}

	newRec := record.New()
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRepackage, err)
		}
		if old, ok := oldRec.Get(rel); ok && old.Digest == "" {
			if err := newRec.Add(record.Entry{Path: rel}); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrRepackage, err)
			}
			continue
		}
		digest, size, err := record.DigestFile(filepath.Join(stagedDir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("%w: digesting %s: %v", ErrRepackage, rel, err)
		}
		if err := newRec.Add(record.Entry{Path: rel, Digest: digest, Size: size}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRepackage, err)
		}
	}
	if err := newRec.Add(record.Entry{Path: recordRel}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepackage, err)
	}

	recordAbs := filepath.Join(stagedDir, filepath.FromSlash(recordRel))
	if err := os.WriteFile(recordAbs, newRec.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("%w: rewriting %s: %v", ErrRepackage, recordRel, err)
	}

	members := append(files, recordRel)
	if err := writeArchive(stagedDir, distinfoDir, members, outPath); err != nil {
		return nil, err
	}
	logger.Logger().Debugf("repackaged %d members into %s", len(members), outPath)

	return &Result{
		OutPath:    outPath,
		RecordPath: recordRel,
		Members:    len(members),
		Compare:    record.Compare(oldRec, newRec),
	}, nil
}

// findRecordPath locates the single top-level dist-info RECORD of the
// staged tree. Zero or multiple dist-info directories is a failure.
func findRecordPath(stagedDir string) (string, error) {
	entries, err := os.ReadDir(stagedDir)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", ErrRepackage, stagedDir, err)
	}

	distinfo := ""
	for _, e := range entries {
		if !e.IsDir() || !strings.HasSuffix(e.Name(), ".dist-info") {
			continue
		}
		if distinfo != "" {
			return "", fmt.Errorf("%w: multiple dist-info directories under %s (%s, %s)",
				ErrRepackage, stagedDir, distinfo, e.Name())
		}
		distinfo = e.Name()
	}
	if distinfo == "" {
		return "", fmt.Errorf("%w: no dist-info directory under %s", ErrRepackage, stagedDir)
	}

	recordRel := distinfo + "/" + record.Filename
	if _, err := os.Stat(filepath.Join(stagedDir, distinfo, record.Filename)); err != nil {
		return "", fmt.Errorf("%w: %s has no %s: %v", ErrRepackage, distinfo, record.Filename, err)
	}
	return recordRel, nil
}

// collectFiles lists every file under stagedDir except the manifest as
// sorted slash-separated paths.
func collectFiles(stagedDir, recordRel string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(stagedDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return fmt.Errorf("%s is not a regular file", path)
		}
		rel, err := filepath.Rel(stagedDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == recordRel {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scanning %s: %v", ErrRepackage, stagedDir, err)
	}
	sort.Strings(files)
	return files, nil
}

// writeArchive zips members (already sorted, manifest last) from
// stagedDir into outPath via a temporary file in the same directory.
func writeArchive(stagedDir, distinfoDir string, members []string, outPath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".repack-*")
	if err != nil {
		return fmt.Errorf("%w: creating temporary archive: %v", ErrRepackage, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	w := wheel.NewWriter(tmp, distinfoDir)
	for _, rel := range members {
		if err := w.AddFile(rel, filepath.Join(stagedDir, filepath.FromSlash(rel))); err != nil {
			cleanup()
			return fmt.Errorf("%w: %v", ErrRepackage, err)
		}
	}
	if err := w.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: finishing archive: %v", ErrRepackage, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing archive: %v", ErrRepackage, err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: moving archive into place: %v", ErrRepackage, err)
	}
	return nil
}
