package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/open-edge-platform/wheel-patcher/internal/utils/logger"
)

// Result holds the outcome of one command invocation.
type Result struct {
	Cmd      string
	Output   string // combined stdout and stderr
	ExitCode int
}

// IsCommandExist checks if a command exists on the host PATH.
func IsCommandExist(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// ExecCmd executes a command in dir and returns its combined output.
// Extra environment entries are appended to the host environment.
// The command is not run through a shell, so arguments need no quoting.
func ExecCmd(ctx context.Context, dir string, env []string, name string, args ...string) (*Result, error) {
	log := logger.Logger()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	cmdStr := name + " " + strings.Join(args, " ")
	log.Debugf("Exec: [%s]", cmdStr)

	output, err := cmd.CombinedOutput()
	res := &Result{Cmd: cmdStr, Output: string(output)}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
		}
		if res.Output != "" {
			log.Infof(res.Output)
		}
		if ctx.Err() != nil {
			return res, fmt.Errorf("failed to exec %s: %w", cmdStr, ctx.Err())
		}
		return res, fmt.Errorf("failed to exec %s: %w", cmdStr, err)
	}

	if res.Output != "" {
		log.Debugf(res.Output)
	}
	return res, nil
}
