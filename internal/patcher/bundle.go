package patcher

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// SeriesFilename is the ordering file expected inside a patch bundle.
const SeriesFilename = "series"

// ExtractBundle unpacks a patch bundle (.tar, .tar.gz/.tgz, .tar.xz/.txz)
// into destDir and loads the series file it must contain.
func ExtractBundle(bundle, destDir string) ([]PatchEntry, error) {
	f, err := os.Open(bundle)
	if err != nil {
		return nil, fmt.Errorf("%w: opening bundle: %v", ErrExtraction, err)
	}
	defer f.Close()

	var r io.Reader = f
	switch {
	case strings.HasSuffix(bundle, ".tar.gz") || strings.HasSuffix(bundle, ".tgz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: reading gzip bundle: %v", ErrExtraction, err)
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(bundle, ".tar.xz") || strings.HasSuffix(bundle, ".txz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: reading xz bundle: %v", ErrExtraction, err)
		}
		r = xzr
	case strings.HasSuffix(bundle, ".tar"):
	default:
		return nil, fmt.Errorf("%w: unsupported bundle format %s", ErrExtraction, filepath.Base(bundle))
	}

	if err := untar(r, destDir); err != nil {
		return nil, fmt.Errorf("%w: unpacking bundle %s: %v", ErrExtraction, filepath.Base(bundle), err)
	}

	entries, err := LoadSeries(filepath.Join(destDir, SeriesFilename))
	if err != nil {
		return nil, fmt.Errorf("bundle %s: %w", filepath.Base(bundle), err)
	}
	return entries, nil
}

func untar(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		name := path.Clean(hdr.Name)
		if name == "." {
			continue
		}
		rel := filepath.FromSlash(name)
		if !filepath.IsLocal(rel) {
			return fmt.Errorf("bundle member %q escapes the extraction root", hdr.Name)
		}
		target := filepath.Join(destDir, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		case tar.TypeXGlobalHeader:
			// pax metadata, nothing to extract
		default:
			return fmt.Errorf("bundle member %q has unsupported type %q", hdr.Name, hdr.Typeflag)
		}
	}
}
