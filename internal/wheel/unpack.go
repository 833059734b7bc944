package wheel

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/open-edge-platform/wheel-patcher/internal/record"
)

// Unpack extracts a wheel archive into destDir. Member paths are
// preserved, parent directories are created as needed, and members that
// would escape destDir are rejected. Extracted files keep their archive
// permissions plus owner write so patches can modify them in place.
func Unpack(archive, destDir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archive, err)
	}
	defer zr.Close()
	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)

	for _, member := range zr.File {
		if err := extractMember(member, destDir); err != nil {
			return err
		}
	}
	return nil
}

func extractMember(member *zip.File, destDir string) error {
	rel := filepath.FromSlash(member.Name)
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("archive member %q escapes the extraction root", member.Name)
	}
	target := filepath.Join(destDir, rel)

	if member.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if !member.Mode().IsRegular() {
		return fmt.Errorf("archive member %q is not a regular file", member.Name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", member.Name, err)
	}

	mode := member.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode|0o200)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer out.Close()

	rc, err := member.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive member %s: %w", member.Name, err)
	}
	defer rc.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("failed to extract %s: %w", member.Name, err)
	}
	return out.Close()
}

// RecordFile is a wheel's RECORD manifest as found in the archive.
type RecordFile struct {
	// Path is the manifest's archive path, e.g. "mypkg-1.0.dist-info/RECORD".
	Path string

	// Raw is the manifest exactly as stored.
	Raw []byte

	// Manifest is the parsed form.
	Manifest *record.Record
}

// ReadRecord extracts and parses the RECORD manifest of a wheel without
// unpacking it. Exactly one top-level dist-info RECORD must be present.
func ReadRecord(archive string) (*RecordFile, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", archive, err)
	}
	defer zr.Close()
	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)

	var found *zip.File
	for _, member := range zr.File {
		if !isRecordPath(member.Name) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("archive %s has multiple RECORD members", archive)
		}
		found = member
	}
	if found == nil {
		return nil, fmt.Errorf("archive %s has no dist-info RECORD", archive)
	}

	rc, err := found.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", found.Name, err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", found.Name, err)
	}

	manifest, err := record.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", found.Name, err)
	}
	return &RecordFile{Path: found.Name, Raw: raw, Manifest: manifest}, nil
}

func isRecordPath(name string) bool {
	dir, base := filepath.Split(name)
	return base == record.Filename &&
		strings.HasSuffix(dir, ".dist-info/") &&
		strings.Count(name, "/") == 1
}
