package wheel

import (
	"fmt"
	"os"
	"strings"
)

// ResolveStamp substitutes {KEY} placeholders in value from workspace
// status files, each holding one "KEY value" pair per line. Later files
// never override earlier substitutions because replacement is textual and
// immediate. Keys absent from the status files stay verbatim, which keeps
// unresolved placeholders visible in the output name.
func ResolveStamp(value string, statusFiles ...string) (string, error) {
	for _, path := range statusFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read status file: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSuffix(line, "\r")
			if line == "" {
				continue
			}
			key, val, ok := strings.Cut(line, " ")
			if !ok {
				continue
			}
			value = strings.ReplaceAll(value, "{"+key+"}", val)
		}
	}
	return value, nil
}
