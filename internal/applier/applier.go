// Package applier abstracts the host primitive that applies unified
// diffs to a staged tree. Backends register themselves by name; patch
// semantics are entirely delegated to the underlying tool.
package applier

import (
	"context"
	"errors"
	"fmt"
)

// Default is the backend used when none is configured.
const Default = "gnupatch"

// ErrPatchApplication reports a patch that failed to apply.
var ErrPatchApplication = errors.New("patch application failed")

// ApplyError carries the diagnostics of one failed patch application.
type ApplyError struct {
	Patch    string
	Strip    int
	Backend  string
	ExitCode int
	Output   string
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("patch %s (-p%d, %s) failed with exit code %d",
		e.Patch, e.Strip, e.Backend, e.ExitCode)
}

func (e *ApplyError) Unwrap() error {
	return ErrPatchApplication
}

// Applier applies one patch file to a directory tree.
type Applier interface {
	// Name is a unique ID, e.g. "gnupatch" or "gitapply".
	Name() string

	// Available reports whether the backing host command exists.
	Available() bool

	// Apply applies patchFile to the tree rooted at dir at the given
	// strip level. Failures are *ApplyError.
	Apply(ctx context.Context, dir, patchFile string, strip int) error
}

var appliers = make(map[string]Applier)

// Register makes an Applier available under its Name().
func Register(a Applier) {
	appliers[a.Name()] = a
}

// Get returns the Applier by name.
func Get(name string) (Applier, bool) {
	a, ok := appliers[name]
	return a, ok
}
