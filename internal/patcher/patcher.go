// Package patcher coordinates the patch pipeline: stage a wheel into an
// isolated directory, apply a patch series in order, and repackage the
// result under its patched name. The input archive is never modified.
package patcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/open-edge-platform/wheel-patcher/internal/applier"
	"github.com/open-edge-platform/wheel-patcher/internal/record"
	"github.com/open-edge-platform/wheel-patcher/internal/repack"
	"github.com/open-edge-platform/wheel-patcher/internal/utils/logger"
	"github.com/open-edge-platform/wheel-patcher/internal/wheel"
	"github.com/open-edge-platform/wheel-patcher/internal/wheelname"
)

// ErrExtraction reports a failure to stage a wheel or a patch bundle. It
// always precedes the first patch application.
var ErrExtraction = errors.New("extraction failed")

// Options configure an Orchestrator.
type Options struct {
	// StagingRoot hosts the per-operation staging directories. Defaults
	// to the system temporary directory.
	StagingRoot string

	// OutputDir receives patched wheels. Defaults to the working
	// directory.
	OutputDir string

	// Applier applies individual patches. Defaults to the gnupatch
	// backend.
	Applier applier.Applier

	// Repackager turns patched trees back into archives. Defaults to
	// the deterministic zip repackager.
	Repackager repack.Repackager

	// KeepStaging retains staging directories for debugging instead of
	// removing them.
	KeepStaging bool

	// Timeout bounds the patch phase of one operation. Zero means no
	// limit.
	Timeout time.Duration
}

// Result describes one successfully patched wheel.
type Result struct {
	Input   string
	Output  string
	Name    wheelname.Filename
	Compare record.CompareResult
	Members int
}

// Orchestrator runs patch operations, one isolated staging directory per
// wheel.
type Orchestrator struct {
	opts Options
}

// New fills in defaults and verifies the applier is usable on this host.
func New(opts Options) (*Orchestrator, error) {
	if opts.StagingRoot == "" {
		opts.StagingRoot = os.TempDir()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.Applier == nil {
		a, ok := applier.Get(applier.Default)
		if !ok {
			return nil, fmt.Errorf("default applier %q is not registered", applier.Default)
		}
		opts.Applier = a
	}
	if !opts.Applier.Available() {
		return nil, fmt.Errorf("applier %q is not available on this host", opts.Applier.Name())
	}
	if opts.Repackager == nil {
		opts.Repackager = repack.New()
	}
	return &Orchestrator{opts: opts}, nil
}

// Patch stages the wheel, applies the series in order, and repackages
// the tree as the patched wheel in the output directory. The first patch
// failure aborts the operation; nothing is retried and no partial output
// remains. The staging directory is removed on every exit path unless
// KeepStaging is set.
func (o *Orchestrator) Patch(ctx context.Context, wheelPath string, spec *PatchSpec) (*Result, error) {
	log := logger.Logger()
	base := filepath.Base(wheelPath)

	parsed, err := wheelname.Parse(base)
	if err != nil {
		return nil, err
	}

	staging := filepath.Join(o.opts.StagingRoot, "wp-"+uuid.NewString())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating staging directory: %v", ErrExtraction, err)
	}
	defer func() {
		if o.opts.KeepStaging {
			log.Infof("staging directory retained at %s", staging)
			return
		}
		if err := os.RemoveAll(staging); err != nil {
			log.Warnf("failed to remove staging directory %s: %v", staging, err)
		}
	}()

	log.Debugf("staging %s in %s", base, staging)
	if err := wheel.Unpack(wheelPath, staging); err != nil {
		return nil, fmt.Errorf("%w: unpacking %s: %v", ErrExtraction, base, err)
	}

	applyCtx := ctx
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		applyCtx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}
	for _, entry := range spec.Entries() {
		log.Debugf("applying %s (-p%d) to %s", entry.Path, entry.Strip, base)
		if err := o.opts.Applier.Apply(applyCtx, staging, entry.Path, entry.Strip); err != nil {
			return nil, fmt.Errorf("%s: applying %s: %w", base, entry.Path, err)
		}
	}

	outName := parsed.Patched()
	outPath := filepath.Join(o.opts.OutputDir, outName.String())
	res, err := o.opts.Repackager.Repackage(ctx, staging, outPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", base, err)
	}

	compare := res.Compare
	compare.From = base
	compare.To = outName.String()

	log.Infof("patched %s -> %s (%d members)", base, outPath, res.Members)
	return &Result{
		Input:   wheelPath,
		Output:  outPath,
		Name:    outName,
		Compare: compare,
		Members: res.Members,
	}, nil
}

// PatchAll patches wheels concurrently using a pool of workers, each
// operation in its own staging directory. It shows a single progress bar
// tracking wheels completed vs total. Results come back in input order;
// failed slots are nil and the returned error counts them.
func (o *Orchestrator) PatchAll(ctx context.Context, wheels []string, spec *PatchSpec, workers int) ([]*Result, error) {
	log := logger.Logger()
	if workers < 1 {
		workers = 1
	}

	total := len(wheels)
	jobs := make(chan int, total)
	results := make([]*Result, total)
	errs := make([]error, total)
	var wg sync.WaitGroup

	bar := progressbar.NewOptions(total,
		progressbar.OptionFullWidth(),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetDescription("patching"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				name := filepath.Base(wheels[idx])
				bar.Describe(fmt.Sprintf("patching %s", name))

				res, err := o.Patch(ctx, wheels[idx], spec)
				if err != nil {
					log.Errorf("patching %s failed: %v", name, err)
					errs[idx] = err
				} else {
					results[idx] = res
				}
				bar.Add(1)
			}
		}()
	}

	for i := range wheels {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	bar.Finish()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		return results, fmt.Errorf("%d of %d wheels failed to patch", failed, total)
	}
	return results, nil
}
