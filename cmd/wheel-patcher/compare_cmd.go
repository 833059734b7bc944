package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/open-edge-platform/wheel-patcher/internal/record"
	"github.com/open-edge-platform/wheel-patcher/internal/utils/logger"
	"github.com/open-edge-platform/wheel-patcher/internal/wheel"
	"github.com/spf13/cobra"
)

// Output format command flags
var (
	prettyDiffJSON bool   = true // Pretty-print JSON output
	outFormat      string        // "text" | "json"
	outMode        string = ""   // "full" | "diff" | "summary"
)

// manifestReader loads the RECORD manifest out of a wheel archive.
type manifestReader interface {
	ReadManifest(path string) (*record.Record, error)
}

type archiveManifestReader struct{}

func (archiveManifestReader) ReadManifest(path string) (*record.Record, error) {
	rf, err := wheel.ReadRecord(path)
	if err != nil {
		return nil, err
	}
	return rf.Manifest, nil
}

var newManifestReader = func() manifestReader { return archiveManifestReader{} }

// createCompareCommand creates the compare subcommand
func createCompareCommand() *cobra.Command {
	compareCmd := &cobra.Command{
		Use:   "compare [flags] WHEEL1 WHEEL2",
		Short: "compares the RECORD manifests of two wheels",
		Long: `Compare reads the RECORD manifest out of two wheel archives and
		reports the files that were added, removed, or modified between
		them, including digest and size changes per file.`,
		Args: cobra.ExactArgs(2),

		RunE: executeCompare,
	}

	// Add flags
	compareCmd.Flags().BoolVar(&prettyDiffJSON, "pretty", true,
		"Pretty-print JSON output (only for --format json)")
	compareCmd.Flags().StringVar(&outFormat, "format", "text",
		"Output format: text or json")
	compareCmd.Flags().StringVar(&outMode, "mode", "",
		"Output mode: full, diff, or summary (default: diff for text, full for json)")
	return compareCmd
}

func resolveDefaults(format, mode string) (string, string) {
	format = strings.ToLower(format)
	mode = strings.ToLower(mode)

	// Set default mode if not specified
	if mode == "" {
		if format == "json" {
			mode = "full"
		} else {
			mode = "diff"
		}
	}
	return format, mode
}

// executeCompare handles the compare command execution logic
func executeCompare(cmd *cobra.Command, args []string) error {
	log := logger.Logger()
	wheelFile1 := args[0]
	wheelFile2 := args[1]
	log.Infof("Comparing wheels: %s and %s", wheelFile1, wheelFile2)

	reader := newManifestReader()

	rec1, err1 := reader.ReadManifest(wheelFile1)
	if err1 != nil {
		return fmt.Errorf("manifest extraction failed: %v", err1)
	}
	rec2, err2 := reader.ReadManifest(wheelFile2)
	if err2 != nil {
		return fmt.Errorf("manifest extraction failed: %v", err2)
	}

	compareResult := record.Compare(rec1, rec2)
	compareResult.From = filepath.Base(wheelFile1)
	compareResult.To = filepath.Base(wheelFile2)

	format, mode := resolveDefaults(outFormat, outMode)

	switch format {
	case "json":
		var payload any
		switch mode {
		case "full":
			payload = &compareResult
		case "diff":
			payload = struct {
				Equal bool        `json:"equal"`
				Diff  record.Diff `json:"diff"`
			}{Equal: compareResult.Equal, Diff: compareResult.Diff}
		case "summary":
			payload = struct {
				Equal   bool           `json:"equal"`
				Summary record.Summary `json:"summary"`
			}{Equal: compareResult.Equal, Summary: compareResult.Summary}
		default:
			return fmt.Errorf("invalid --mode %q (expected diff|summary|full)", mode)
		}
		return writeCompareResult(cmd, payload, prettyDiffJSON)

	case "text":
		return record.RenderText(cmd.OutOrStdout(), &compareResult,
			record.TextOptions{Mode: mode})

	default:
		return fmt.Errorf("invalid --format %q (expected text|json)", outFormat)
	}
}

func writeCompareResult(cmd *cobra.Command, v any, pretty bool) error {
	out := cmd.OutOrStdout()

	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	_, _ = fmt.Fprintln(out, string(b))
	return nil
}
