package applier

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/open-edge-platform/wheel-patcher/internal/utils/shell"
)

func init() {
	Register(&gitApply{})
}

// gitApply is the fallback for hosts without GNU patch. git apply works
// outside a repository and applies relative to the working directory.
type gitApply struct{}

func (a *gitApply) Name() string {
	return "gitapply"
}

func (a *gitApply) Available() bool {
	return shell.IsCommandExist("git")
}

func (a *gitApply) Apply(ctx context.Context, dir, patchFile string, strip int) error {
	abs, err := filepath.Abs(patchFile)
	if err != nil {
		return fmt.Errorf("failed to resolve patch path %s: %w", patchFile, err)
	}
	res, err := shell.ExecCmd(ctx, dir, nil, "git", "apply",
		"-p"+strconv.Itoa(strip), "--whitespace=nowarn", abs)
	if err != nil {
		return &ApplyError{
			Patch:    patchFile,
			Strip:    strip,
			Backend:  a.Name(),
			ExitCode: res.ExitCode,
			Output:   res.Output,
		}
	}
	return nil
}
