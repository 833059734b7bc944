package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/wheel-patcher/internal/applier"
	"github.com/open-edge-platform/wheel-patcher/internal/patcher"
	"github.com/open-edge-platform/wheel-patcher/internal/record"
	"github.com/open-edge-platform/wheel-patcher/internal/sign"
	"github.com/open-edge-platform/wheel-patcher/internal/utils/logger"
)

// Patch command flags
var (
	patchArgs    []string
	seriesFile   string
	bundleFile   string
	patchStrip   int
	outputDir    string
	stagingDir   string
	keepStaging  bool
	applierName  string
	patchTimeout time.Duration
	patchWorkers int
	signKeyFile  string
)

// newOrchestrator is overridable for tests.
var newOrchestrator = func(opts patcher.Options) (*patcher.Orchestrator, error) {
	return patcher.New(opts)
}

// createPatchCommand creates the patch subcommand
func createPatchCommand() *cobra.Command {
	patchCmd := &cobra.Command{
		Use:   "patch [flags] WHEEL...",
		Short: "apply patches to wheels and repackage them",
		Long: `Patch stages each wheel into an isolated directory, applies the
patch series in order with the selected backend, and repackages the
result with "patched" appended to the build tag. The RECORD manifest is
recomputed and the differences against the input are printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: executePatch,
	}

	patchCmd.Flags().StringArrayVarP(&patchArgs, "patch", "p", nil,
		"patch file as 'file[:strip]', applied in flag order (repeatable)")
	patchCmd.Flags().StringVar(&seriesFile, "series", "",
		"quilt-style series file listing the patches")
	patchCmd.Flags().StringVar(&bundleFile, "bundle", "",
		"patch bundle (.tar, .tar.gz, or .tar.xz) containing a series file")
	patchCmd.Flags().IntVar(&patchStrip, "strip", patcher.DefaultStrip,
		"strip level for --patch entries without an explicit one")
	patchCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "",
		"directory for patched wheels (default from config)")
	patchCmd.Flags().StringVar(&stagingDir, "staging-dir", "",
		"root for per-wheel staging directories (default from config)")
	patchCmd.Flags().BoolVar(&keepStaging, "keep-staging", false,
		"retain staging directories for debugging")
	patchCmd.Flags().StringVar(&applierName, "applier", "",
		"patch backend: gnupatch or gitapply (default from config)")
	patchCmd.Flags().DurationVar(&patchTimeout, "timeout", 0,
		"per-wheel timeout for the patch phase (default from config)")
	patchCmd.Flags().IntVar(&patchWorkers, "workers", 0,
		"concurrent wheels (default from config)")
	patchCmd.Flags().StringVar(&signKeyFile, "sign-key", "",
		"armored private key; writes a clearsigned RECORD next to each output")
	return patchCmd
}

// buildPatchSpec collects the series from the bundle, the series file,
// and the --patch flags, in that order.
func buildPatchSpec(stagingRoot string) (*patcher.PatchSpec, error) {
	spec := &patcher.PatchSpec{}

	if bundleFile != "" {
		dest, err := os.MkdirTemp(stagingRoot, "bundle-")
		if err != nil {
			return nil, fmt.Errorf("creating bundle directory: %w", err)
		}
		entries, err := patcher.ExtractBundle(bundleFile, dest)
		if err != nil {
			return nil, err
		}
		if err := spec.AddAll(entries); err != nil {
			return nil, err
		}
	}
	if seriesFile != "" {
		entries, err := patcher.LoadSeries(seriesFile)
		if err != nil {
			return nil, err
		}
		if err := spec.AddAll(entries); err != nil {
			return nil, err
		}
	}
	for _, arg := range patchArgs {
		entry, err := patcher.ParsePatchArg(arg, patchStrip)
		if err != nil {
			return nil, err
		}
		if err := spec.Add(entry); err != nil {
			return nil, err
		}
	}

	if spec.Len() == 0 {
		return nil, fmt.Errorf("no patches given: use --patch, --series, or --bundle")
	}
	return spec, nil
}

// executePatch handles the patch command execution logic
func executePatch(cmd *cobra.Command, args []string) error {
	log := logger.Logger()
	h := ensureHelpers()

	staging := stagingDir
	if staging == "" {
		var err error
		if staging, err = h.CreateStagingDir(); err != nil {
			return err
		}
	} else if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	outDir := outputDir
	if outDir == "" {
		var err error
		if outDir, err = h.CreateOutputDir(); err != nil {
			return err
		}
	} else if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	backend := applierName
	if backend == "" {
		backend = h.Applier()
	}
	a, ok := applier.Get(backend)
	if !ok {
		return fmt.Errorf("unknown applier %q", backend)
	}
	timeout := patchTimeout
	if timeout == 0 {
		timeout = h.Timeout()
	}
	signKey := signKeyFile
	if signKey == "" {
		signKey = h.SigningKey()
	}

	spec, err := buildPatchSpec(staging)
	if err != nil {
		return err
	}

	orch, err := newOrchestrator(patcher.Options{
		StagingRoot: staging,
		OutputDir:   outDir,
		Applier:     a,
		KeepStaging: keepStaging || h.KeepStaging(),
		Timeout:     timeout,
	})
	if err != nil {
		return err
	}

	var results []*patcher.Result
	if len(args) == 1 {
		res, err := orch.Patch(cmd.Context(), args[0], spec)
		if err != nil {
			return err
		}
		results = []*patcher.Result{res}
	} else {
		workers := patchWorkers
		if workers == 0 {
			workers = h.Workers()
		}
		var poolErr error
		results, poolErr = orch.PatchAll(cmd.Context(), args, spec, workers)
		if poolErr != nil {
			err = poolErr
		}
	}

	out := cmd.OutOrStdout()
	for _, res := range results {
		if res == nil {
			continue
		}
		if renderErr := record.RenderText(out, &res.Compare, record.TextOptions{Mode: "diff"}); renderErr != nil {
			return renderErr
		}
		if signKey != "" {
			if signErr := signOutput(res.Output, signKey); signErr != nil {
				return signErr
			}
			log.Infof("signed %s", res.Output)
		}
	}
	return err
}

// signOutput clearsigns the wheel's RECORD into <output>.asc.
func signOutput(wheelPath, keyFile string) error {
	key, err := os.ReadFile(keyFile)
	if err != nil {
		return fmt.Errorf("reading signing key: %w", err)
	}
	sig, err := sign.Manifest(wheelPath, string(key))
	if err != nil {
		return fmt.Errorf("signing %s: %w", wheelPath, err)
	}
	return os.WriteFile(wheelPath+".asc", sig, 0o644)
}
