// Package wheel provides the archive primitives shared by the build and
// repackage paths: a deterministic zip writer that maintains the RECORD
// manifest as members are added, an unpacker with traversal protection,
// and a wheel builder.
package wheel

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/open-edge-platform/wheel-patcher/internal/record"
)

// zipEpoch is the earliest timestamp MS-DOS zips can represent. Every
// member carries it so identical content produces identical archives.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

func registerDeflate(zw *zip.Writer) {
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
}

// Writer writes wheel archive members deterministically and tracks a
// RECORD entry for each one. Members are written in the order they are
// added; callers control ordering.
type Writer struct {
	zw            *zip.Writer
	distinfoDir   string
	stripPrefixes []string
	rec           *record.Record
}

// NewWriter returns a Writer emitting to w. distinfoDir is the archive
// path of the dist-info directory, with or without a trailing slash.
// Archive paths added via AddFile have the first matching strip prefix
// removed unless they point into the dist-info directory.
func NewWriter(w io.Writer, distinfoDir string, stripPrefixes ...string) *Writer {
	zw := zip.NewWriter(w)
	registerDeflate(zw)
	return &Writer{
		zw:            zw,
		distinfoDir:   strings.TrimSuffix(distinfoDir, "/"),
		stripPrefixes: stripPrefixes,
		rec:           record.New(),
	}
}

// DistinfoPath returns the archive path of basename inside the dist-info
// directory.
func (w *Writer) DistinfoPath(basename string) string {
	return w.distinfoDir + "/" + basename
}

// Record returns the manifest accumulated so far. The Record is live;
// callers must not modify it.
func (w *Writer) Record() *record.Record {
	return w.rec
}

func (w *Writer) arcname(name string) string {
	normalized := strings.ReplaceAll(name, string(os.PathSeparator), "/")
	if strings.HasPrefix(normalized, w.distinfoDir) {
		return normalized
	}
	for _, prefix := range w.stripPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return normalized[len(prefix):]
		}
	}
	return normalized
}

func (w *Writer) header(arcname string) *zip.FileHeader {
	hdr := &zip.FileHeader{
		Name:     strings.TrimLeft(arcname, "/"),
		Method:   zip.Deflate,
		Modified: zipEpoch,
	}
	hdr.SetMode(0o777)
	return hdr
}

// AddFile adds the file at realPath under archivePath. Directories are
// added recursively. Each file gains a RECORD entry with its digest and
// size.
func (w *Writer) AddFile(archivePath, realPath string) error {
	info, err := os.Stat(realPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", realPath, err)
	}
	if info.IsDir() {
		children, err := os.ReadDir(realPath)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", realPath, err)
		}
		for _, child := range children {
			err := w.AddFile(archivePath+"/"+child.Name(), filepath.Join(realPath, child.Name()))
			if err != nil {
				return err
			}
		}
		return nil
	}

	arcname := strings.TrimLeft(w.arcname(archivePath), "/")
	f, err := os.Open(realPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", realPath, err)
	}
	defer f.Close()

	fw, err := w.zw.CreateHeader(w.header(arcname))
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", arcname, err)
	}
	digest, size, err := record.DigestReader(io.TeeReader(f, fw))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", arcname, err)
	}
	return w.rec.Add(record.Entry{Path: arcname, Digest: digest, Size: size})
}

// AddBytes adds contents under archivePath, which is used verbatim apart
// from leading slashes. The member gains a RECORD entry.
func (w *Writer) AddBytes(archivePath string, contents []byte) error {
	arcname := strings.TrimLeft(archivePath, "/")
	fw, err := w.zw.CreateHeader(w.header(arcname))
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", arcname, err)
	}
	if _, err := fw.Write(contents); err != nil {
		return fmt.Errorf("failed to write %s: %w", arcname, err)
	}
	return w.rec.Add(record.Entry{
		Path:   arcname,
		Digest: record.Digest(contents),
		Size:   int64(len(contents)),
	})
}

// AddRecordFile serializes the accumulated manifest, appends its own
// digest-less self-entry, and writes it as the RECORD member. It must be
// the last member added. The serialized manifest is returned.
func (w *Writer) AddRecordFile() ([]byte, error) {
	recordPath := w.DistinfoPath(record.Filename)
	if err := w.rec.Add(record.Entry{Path: recordPath}); err != nil {
		return nil, err
	}
	contents := w.rec.Bytes()

	fw, err := w.zw.CreateHeader(w.header(recordPath))
	if err != nil {
		return nil, fmt.Errorf("failed to add %s: %w", recordPath, err)
	}
	if _, err := fw.Write(contents); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", recordPath, err)
	}
	return contents, nil
}

// Close finishes the archive. It does not close the underlying writer.
func (w *Writer) Close() error {
	return w.zw.Close()
}
