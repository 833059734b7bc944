package shell

import (
	"context"
	"strings"
	"testing"
)

// checkCommandAvailable skips the test when the command is not on PATH
func checkCommandAvailable(t *testing.T, name string) {
	t.Helper()
	if !IsCommandExist(name) {
		t.Skipf("%s not available in test environment", name)
	}
}

func TestIsCommandExist(t *testing.T) {
	if IsCommandExist("definitely-not-a-real-command-9f2a") {
		t.Error("Expected false for a nonexistent command")
	}
}

func TestExecCmd(t *testing.T) {
	checkCommandAvailable(t, "echo")

	res, err := ExecCmd(context.Background(), "", nil, "echo", "test-exec-cmd")
	if err != nil {
		t.Fatalf("ExecCmd failed: %v", err)
	}
	if !strings.Contains(res.Output, "test-exec-cmd") {
		t.Errorf("Expected output to contain 'test-exec-cmd', got: %s", res.Output)
	}
	if res.ExitCode != 0 {
		t.Errorf("Expected exit code 0, got: %d", res.ExitCode)
	}
}

func TestExecCmdFailureExitCode(t *testing.T) {
	checkCommandAvailable(t, "false")

	res, err := ExecCmd(context.Background(), "", nil, "false")
	if err == nil {
		t.Fatal("Expected error from failing command")
	}
	if res.ExitCode == 0 {
		t.Errorf("Expected nonzero exit code, got: %d", res.ExitCode)
	}
}

func TestExecCmdExtraEnv(t *testing.T) {
	checkCommandAvailable(t, "env")

	res, err := ExecCmd(context.Background(), "", []string{"WHEEL_PATCHER_TEST_VAR=hello"}, "env")
	if err != nil {
		t.Fatalf("ExecCmd failed: %v", err)
	}
	if !strings.Contains(res.Output, "WHEEL_PATCHER_TEST_VAR=hello") {
		t.Errorf("Expected extra environment entry in output, got: %s", res.Output)
	}
}

func TestExecCmdDir(t *testing.T) {
	checkCommandAvailable(t, "pwd")
	dir := t.TempDir()

	res, err := ExecCmd(context.Background(), dir, nil, "pwd")
	if err != nil {
		t.Fatalf("ExecCmd failed: %v", err)
	}
	if !strings.Contains(res.Output, dir) {
		t.Errorf("Expected working directory %s in output, got: %s", dir, res.Output)
	}
}
