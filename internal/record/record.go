// Package record models the RECORD manifest carried inside a wheel: one
// line per archive member pairing its path with a content digest and byte
// size, used to detect tampering and corruption.
package record

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"hash"
	"io"
	"os"
	"strconv"
	"strings"
)

// Filename is the manifest's basename inside the dist-info directory.
const Filename = "RECORD"

const digestPrefix = "sha256="

// Entry is one manifest line. Digest is the serialized form
// "sha256=<unpadded url-safe base64>". An empty digest marks entries that
// have none by convention, such as the manifest's own self-entry; their
// size serializes as empty too.
type Entry struct {
	Path   string `json:"path"`
	Digest string `json:"digest,omitempty"`
	Size   int64  `json:"size,omitempty"`
}

// Record is an ordered manifest with unique paths.
type Record struct {
	entries []Entry
	index   map[string]int
}

// New returns an empty Record.
func New() *Record {
	return &Record{index: make(map[string]int)}
}

// Add appends an entry. Duplicate paths are rejected.
func (r *Record) Add(e Entry) error {
	if e.Path == "" {
		return fmt.Errorf("record entry with empty path")
	}
	if _, ok := r.index[e.Path]; ok {
		return fmt.Errorf("duplicate record entry for %q", e.Path)
	}
	r.index[e.Path] = len(r.entries)
	r.entries = append(r.entries, e)
	return nil
}

// Get returns the entry for path.
func (r *Record) Get(path string) (Entry, bool) {
	i, ok := r.index[path]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Entries returns the entries in manifest order. The slice is shared;
// callers must not modify it.
func (r *Record) Entries() []Entry {
	return r.entries
}

// Len returns the number of entries.
func (r *Record) Len() int {
	return len(r.entries)
}

// Parse reads a RECORD manifest. Lines are comma separated with the path
// optionally CSV-quoted, as installers write them.
func Parse(rd io.Reader) (*Record, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rec := New()
	line := 0
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("record line %d: %w", line, err)
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("record line %d: expected 3 fields, got %d", line, len(fields))
		}

		e := Entry{Path: fields[0], Digest: fields[1]}
		if s := strings.TrimSpace(fields[2]); s != "" {
			size, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("record line %d: bad size %q: %w", line, fields[2], err)
			}
			if size < 0 {
				return nil, fmt.Errorf("record line %d: negative size %d", line, size)
			}
			e.Size = size
		}
		if err := rec.Add(e); err != nil {
			return nil, fmt.Errorf("record line %d: %w", line, err)
		}
	}
	return rec, nil
}

// ParseFile reads a RECORD manifest from disk.
func ParseFile(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Write serializes the manifest in entry order. Paths are written bare
// unless they need CSV quoting; entries without a digest get an empty
// size field, matching the self-entry convention.
func (r *Record) Write(w io.Writer) error {
	for _, e := range r.entries {
		size := ""
		if e.Digest != "" {
			size = strconv.FormatInt(e.Size, 10)
		}
		if _, err := fmt.Fprintf(w, "%s,%s,%s\n", quotePath(e.Path), e.Digest, size); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the serialized manifest.
func (r *Record) Bytes() []byte {
	var b strings.Builder
	_ = r.Write(&b)
	return []byte(b.String())
}

func quotePath(path string) string {
	if strings.ContainsAny(path, ",\"\n") {
		return `"` + strings.ReplaceAll(path, `"`, `""`) + `"`
	}
	return path
}

// Digest returns the serialized digest of b: "sha256=" plus the unpadded
// URL-safe base64 of the SHA-256 sum.
func Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return digestPrefix + base64.RawURLEncoding.EncodeToString(sum[:])
}

// DigestReader consumes r, returning its serialized digest and byte count.
func DigestReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, err
	}
	return serializeDigest(h), n, nil
}

// DigestFile returns the serialized digest and size of the file at path.
func DigestFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return DigestReader(f)
}

func serializeDigest(h hash.Hash) string {
	return digestPrefix + base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
