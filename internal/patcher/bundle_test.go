package patcher

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

func writeBundle(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var w io.Writer = f
	var closers []io.Closer
	switch filepath.Ext(path) {
	case ".gz", ".tgz":
		gz := gzip.NewWriter(f)
		closers = append(closers, gz)
		w = gz
	case ".xz", ".txz":
		xw, err := xz.NewWriter(f)
		if err != nil {
			t.Fatal(err)
		}
		closers = append(closers, xw)
		w = xw
	}

	tw := tar.NewWriter(w)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestExtractBundleFormats(t *testing.T) {
	files := map[string]string{
		"series":    "one.patch -p0\n",
		"one.patch": "--- x\n+++ x\n",
	}
	for _, name := range []string{"patches.tar", "patches.tar.gz", "patches.tar.xz"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			bundle := filepath.Join(dir, name)
			writeBundle(t, bundle, files)

			dest := filepath.Join(dir, "extracted")
			entries, err := ExtractBundle(bundle, dest)
			if err != nil {
				t.Fatalf("ExtractBundle failed: %v", err)
			}
			want := PatchEntry{Path: filepath.Join(dest, "one.patch"), Strip: 0}
			if len(entries) != 1 || entries[0] != want {
				t.Errorf("entries = %+v, want [%+v]", entries, want)
			}
			data, err := os.ReadFile(entries[0].Path)
			if err != nil {
				t.Fatalf("patch not extracted: %v", err)
			}
			if string(data) != files["one.patch"] {
				t.Errorf("patch content = %q", data)
			}
		})
	}
}

func TestExtractBundleWithoutSeries(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "patches.tar")
	writeBundle(t, bundle, map[string]string{"one.patch": "--- x\n"})

	if _, err := ExtractBundle(bundle, filepath.Join(dir, "out")); err == nil {
		t.Error("expected error for bundle without a series file")
	}
}

func TestExtractBundleRejectsEscapingMembers(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "patches.tar")
	writeBundle(t, bundle, map[string]string{"../evil.patch": "boom"})

	_, err := ExtractBundle(bundle, filepath.Join(dir, "out"))
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v, want ErrExtraction", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "evil.patch")); statErr == nil {
		t.Error("bundle member escaped the extraction root")
	}
}

func TestExtractBundleUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "patches.zip")
	if err := os.WriteFile(bundle, []byte("not a tar"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ExtractBundle(bundle, filepath.Join(dir, "out")); !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v, want ErrExtraction", err)
	}
}
