package applier

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/open-edge-platform/wheel-patcher/internal/utils/shell"
)

func init() {
	Register(&gnuPatch{})
}

// gnuPatch applies patches with the host's patch(1). --batch keeps it
// non-interactive and --forward rejects already-applied patches instead
// of prompting to reverse them.
type gnuPatch struct{}

func (p *gnuPatch) Name() string {
	return "gnupatch"
}

func (p *gnuPatch) Available() bool {
	return shell.IsCommandExist("patch")
}

func (p *gnuPatch) Apply(ctx context.Context, dir, patchFile string, strip int) error {
	abs, err := filepath.Abs(patchFile)
	if err != nil {
		return fmt.Errorf("failed to resolve patch path %s: %w", patchFile, err)
	}
	res, err := shell.ExecCmd(ctx, dir, nil, "patch",
		"-p"+strconv.Itoa(strip), "--batch", "--forward", "-i", abs)
	if err != nil {
		return &ApplyError{
			Patch:    patchFile,
			Strip:    strip,
			Backend:  p.Name(),
			ExitCode: res.ExitCode,
			Output:   res.Output,
		}
	}
	return nil
}
