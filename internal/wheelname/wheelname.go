// Package wheelname splits and renders wheel filenames.
//
// The wheel naming grammar is
//
//	{distribution}-{version}(-{build_tag})?-{python_tag}-{abi_tag}-{platform_tag}.whl
//
// with every field free of dashes. The codec is a syntactic splitter: it
// performs no case folding and no version normalization, so rendering a
// parsed name reproduces the input byte for byte.
package wheelname

import (
	"errors"
	"fmt"
	"strings"
)

// Ext is the wheel archive extension.
const Ext = ".whl"

// patchedTag is appended to the build tag of rebuilt wheels.
const patchedTag = "patched"

// ErrMalformedName reports a filename that does not match the wheel grammar.
var ErrMalformedName = errors.New("malformed wheel filename")

// Filename is a decomposed wheel filename. Values are never mutated;
// derived names are produced with WithBuildTag.
type Filename struct {
	Distribution string
	Version      string
	BuildTag     string
	PythonTag    string
	AbiTag       string
	PlatformTag  string
}

// Parse decomposes a wheel filename into its fields.
//
// The three tag fields are taken from the right, the distribution is the
// first dash-delimited segment, and what remains is the version plus an
// optional build tag. A build tag absorbs any further interior dashes so
// that String is an exact inverse.
func Parse(name string) (Filename, error) {
	if !strings.HasSuffix(name, Ext) {
		return Filename{}, fmt.Errorf("%w: %q does not end in %s", ErrMalformedName, name, Ext)
	}
	if strings.ContainsAny(name, `/\`) {
		return Filename{}, fmt.Errorf("%w: %q contains a path separator", ErrMalformedName, name)
	}
	stem := strings.TrimSuffix(name, Ext)

	head, platformTag, ok := cutLast(stem)
	if !ok || platformTag == "" {
		return Filename{}, fmt.Errorf("%w: %q has no platform tag", ErrMalformedName, name)
	}
	head, abiTag, ok := cutLast(head)
	if !ok || abiTag == "" {
		return Filename{}, fmt.Errorf("%w: %q has no abi tag", ErrMalformedName, name)
	}
	head, pythonTag, ok := cutLast(head)
	if !ok || pythonTag == "" {
		return Filename{}, fmt.Errorf("%w: %q has no python tag", ErrMalformedName, name)
	}

	distribution, rest, ok := strings.Cut(head, "-")
	if !ok || distribution == "" || rest == "" {
		return Filename{}, fmt.Errorf("%w: %q has no version", ErrMalformedName, name)
	}

	version := rest
	buildTag := ""
	if v, b, found := strings.Cut(rest, "-"); found {
		if v == "" || b == "" {
			return Filename{}, fmt.Errorf("%w: %q has an empty version or build tag", ErrMalformedName, name)
		}
		version, buildTag = v, b
	}

	return Filename{
		Distribution: distribution,
		Version:      version,
		BuildTag:     buildTag,
		PythonTag:    pythonTag,
		AbiTag:       abiTag,
		PlatformTag:  platformTag,
	}, nil
}

// String renders the filename. The build-tag segment is omitted only when
// it is literally empty.
func (f Filename) String() string {
	parts := make([]string, 0, 6)
	parts = append(parts, f.Distribution, f.Version)
	if f.BuildTag != "" {
		parts = append(parts, f.BuildTag)
	}
	parts = append(parts, f.PythonTag, f.AbiTag, f.PlatformTag)
	return strings.Join(parts, "-") + Ext
}

// WithBuildTag returns a copy with the build tag replaced.
func (f Filename) WithBuildTag(tag string) Filename {
	f.BuildTag = tag
	return f
}

// Patched returns the name a patched rebuild of this wheel carries: the
// build tag, defaulting to the empty string, with "patched" appended.
func (f Filename) Patched() Filename {
	return f.WithBuildTag(f.BuildTag + patchedTag)
}

func cutLast(s string) (before, after string, found bool) {
	i := strings.LastIndex(s, "-")
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}
