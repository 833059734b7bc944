package wheel

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/open-edge-platform/wheel-patcher/internal/wheelname"
)

// generator identifies this tool in the WHEEL file.
const generator = "wheel-patcher 1.0"

var metadataNameLine = regexp.MustCompile(`(?m)^Name: .*$`)

// Input pairs an archive path with the real file backing it.
type Input struct {
	Archive string
	Real    string
}

// ParseInput parses the "archivepath;realpath" pair format used on the
// command line and in input list files.
func ParseInput(s string) (Input, error) {
	archive, real, ok := strings.Cut(s, ";")
	if !ok || archive == "" || real == "" {
		return Input{}, fmt.Errorf("expected 'archivepath;realpath', got %q", s)
	}
	return Input{Archive: archive, Real: real}, nil
}

// BuildOptions name the wheel being assembled.
type BuildOptions struct {
	Name        string
	Version     string
	BuildTag    string
	PythonTag   string
	AbiTag      string
	PlatformTag string

	// StripPathPrefixes are removed from input archive paths outside the
	// dist-info directory, first match wins.
	StripPathPrefixes []string

	// NoNormalize keeps the given name and version spellings, applying
	// only the escaping the filename grammar requires.
	NoNormalize bool
}

// Payload is everything that goes into the archive besides the generated
// dist-info files.
type Payload struct {
	// Files are the package members. Duplicate archive paths collapse to
	// the last occurrence and members are added sorted by archive path.
	Files []Input

	// Metadata is the METADATA file contents before the canonical
	// Version header and the description are appended.
	Metadata []byte

	// Description is appended to METADATA. Installers expect UNKNOWN
	// when there is none, which is what setuptools writes.
	Description string

	// EntryPointsFile is copied to dist-info/entry_points.txt when set.
	EntryPointsFile string

	// ExtraDistinfo maps extra dist-info basenames to real files, added
	// in sorted order.
	ExtraDistinfo map[string]string
}

// Builder assembles a complete wheel from its name fields and a payload.
type Builder struct {
	opts         BuildOptions
	distribution string
	version      string
}

// NewBuilder derives the filename spellings from the raw name fields:
// packaging-convention name escaping and version canonicalization, or the
// legacy segment escaping when NoNormalize is set.
func NewBuilder(opts BuildOptions) *Builder {
	b := &Builder{opts: opts}
	if opts.NoNormalize {
		b.distribution = wheelname.EscapeSegment(opts.Name)
		b.version = wheelname.EscapeSegment(opts.Version)
	} else {
		b.distribution = wheelname.EscapeDistribution(opts.Name)
		b.version = wheelname.NormalizeVersion(opts.Version)
	}
	return b
}

// Wheelname returns the canonical filename of the assembled wheel.
func (b *Builder) Wheelname() string {
	return wheelname.Filename{
		Distribution: b.distribution,
		Version:      b.version,
		BuildTag:     b.opts.BuildTag,
		PythonTag:    b.opts.PythonTag,
		AbiTag:       b.opts.AbiTag,
		PlatformTag:  b.opts.PlatformTag,
	}.String()
}

// DistinfoDir returns the archive path of the dist-info directory.
func (b *Builder) DistinfoDir() string {
	return b.distribution + "-" + b.version + ".dist-info"
}

func (b *Builder) tag() string {
	return b.opts.PythonTag + "-" + b.opts.AbiTag + "-" + b.opts.PlatformTag
}

func (b *Builder) wheelFile() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Wheel-Version: 1.0\n")
	fmt.Fprintf(&buf, "Generator: %s\n", generator)
	fmt.Fprintf(&buf, "Root-Is-Purelib: %v\n", b.opts.PlatformTag == "any")
	fmt.Fprintf(&buf, "Tag: %s\n", b.tag())
	return buf.Bytes()
}

// metadataFile rewrites the Name header to the raw distribution name and
// appends the canonical Version header and the description.
func (b *Builder) metadataFile(metadata []byte, description string) []byte {
	var buf bytes.Buffer
	buf.Write(metadataNameLine.ReplaceAllLiteral(metadata, []byte("Name: "+b.opts.Name)))
	fmt.Fprintf(&buf, "Version: %s\n\n", b.version)
	if description == "" {
		description = "UNKNOWN"
	}
	buf.WriteString(description)
	buf.WriteString("\n")
	return buf.Bytes()
}

// Build writes the wheel to outPath. On failure no output file remains.
func (b *Builder) Build(outPath string, payload Payload) error {
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	if err := b.build(f, payload); err != nil {
		f.Close()
		os.Remove(outPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(outPath)
		return err
	}
	return nil
}

func (b *Builder) build(f io.Writer, payload Payload) error {
	w := NewWriter(f, b.DistinfoDir(), b.opts.StripPathPrefixes...)

	byArchive := make(map[string]string, len(payload.Files))
	for _, in := range payload.Files {
		byArchive[in.Archive] = in.Real
	}
	archives := make([]string, 0, len(byArchive))
	for archive := range byArchive {
		archives = append(archives, archive)
	}
	sort.Strings(archives)
	for _, archive := range archives {
		if err := w.AddFile(archive, byArchive[archive]); err != nil {
			return err
		}
	}

	if err := w.AddBytes(w.DistinfoPath("WHEEL"), b.wheelFile()); err != nil {
		return err
	}
	metadata := b.metadataFile(payload.Metadata, payload.Description)
	if err := w.AddBytes(w.DistinfoPath("METADATA"), metadata); err != nil {
		return err
	}
	if payload.EntryPointsFile != "" {
		if err := w.AddFile(w.DistinfoPath("entry_points.txt"), payload.EntryPointsFile); err != nil {
			return err
		}
	}

	extras := make([]string, 0, len(payload.ExtraDistinfo))
	for name := range payload.ExtraDistinfo {
		extras = append(extras, name)
	}
	sort.Strings(extras)
	for _, name := range extras {
		if err := w.AddFile(w.DistinfoPath(name), payload.ExtraDistinfo[name]); err != nil {
			return err
		}
	}

	if _, err := w.AddRecordFile(); err != nil {
		return err
	}
	return w.Close()
}
