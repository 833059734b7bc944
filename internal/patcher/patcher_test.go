package patcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/open-edge-platform/wheel-patcher/internal/applier"
	"github.com/open-edge-platform/wheel-patcher/internal/record"
	"github.com/open-edge-platform/wheel-patcher/internal/wheel"
	"github.com/open-edge-platform/wheel-patcher/internal/wheelname"
)

// fakeApplier mutates the staged tree directly instead of shelling out,
// so orchestration logic is testable without host tools.
type fakeApplier struct {
	mu       sync.Mutex
	calls    []PatchEntry
	fail     bool
	unusable bool
	mutate   func(dir string) error
}

func (f *fakeApplier) Name() string {
	return "fake"
}

func (f *fakeApplier) Available() bool {
	return !f.unusable
}

func (f *fakeApplier) Apply(ctx context.Context, dir, patchFile string, strip int) error {
	f.mu.Lock()
	f.calls = append(f.calls, PatchEntry{Path: patchFile, Strip: strip})
	f.mu.Unlock()

	if f.fail {
		return &applier.ApplyError{Patch: patchFile, Strip: strip, Backend: f.Name(), ExitCode: 1, Output: "hunk failed"}
	}
	if f.mutate != nil {
		return f.mutate(dir)
	}
	return nil
}

func buildTestWheel(t *testing.T, dir, name string, payload map[string]string) string {
	t.Helper()
	parsed, err := wheelname.Parse(name)
	if err != nil {
		t.Fatalf("bad test wheel name %q: %v", name, err)
	}
	distinfo := parsed.Distribution + "-" + parsed.Version + ".dist-info"

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := wheel.NewWriter(f, distinfo)
	for archive, content := range payload {
		if err := w.AddBytes(archive, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := w.AddRecordFile(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func singlePatchSpec(t *testing.T, path string, strip int) *PatchSpec {
	t.Helper()
	var spec PatchSpec
	if err := spec.Add(PatchEntry{Path: path, Strip: strip}); err != nil {
		t.Fatal(err)
	}
	return &spec
}

func TestPatchProducesPatchedWheel(t *testing.T) {
	dir := t.TempDir()
	input := buildTestWheel(t, dir, "mypkg-1.0-py3-none-any.whl", map[string]string{
		"mypkg/__init__.py": "a",
	})

	fake := &fakeApplier{mutate: func(staged string) error {
		return os.WriteFile(filepath.Join(staged, "mypkg", "__init__.py"), []byte("ab"), 0o644)
	}}
	stagingRoot := filepath.Join(dir, "staging")
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}

	orch, err := New(Options{StagingRoot: stagingRoot, OutputDir: outDir, Applier: fake})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := orch.Patch(context.Background(), input, singlePatchSpec(t, "fix.patch", 1))
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}

	wantOut := filepath.Join(outDir, "mypkg-1.0-patched-py3-none-any.whl")
	if res.Output != wantOut {
		t.Errorf("Output = %q, want %q", res.Output, wantOut)
	}
	if res.Name.BuildTag != "patched" {
		t.Errorf("BuildTag = %q, want patched", res.Name.BuildTag)
	}

	rf, err := wheel.ReadRecord(res.Output)
	if err != nil {
		t.Fatalf("output wheel unreadable: %v", err)
	}
	e, ok := rf.Manifest.Get("mypkg/__init__.py")
	if !ok {
		t.Fatal("manifest missing patched file")
	}
	if e.Digest != record.Digest([]byte("ab")) || e.Size != 2 {
		t.Errorf("patched entry = %+v, want digest of %q and size 2", e, "ab")
	}

	if res.Compare.From != "mypkg-1.0-py3-none-any.whl" || res.Compare.To != "mypkg-1.0-patched-py3-none-any.whl" {
		t.Errorf("diff endpoints = %q -> %q", res.Compare.From, res.Compare.To)
	}
	if res.Compare.Summary.ModifiedCount != 1 {
		t.Errorf("diff summary = %+v, want one modified entry", res.Compare.Summary)
	}

	// The input archive is untouched and staging is cleaned up
	in, err := wheel.ReadRecord(input)
	if err != nil {
		t.Fatal(err)
	}
	orig, _ := in.Manifest.Get("mypkg/__init__.py")
	if orig.Digest != record.Digest([]byte("a")) {
		t.Error("input archive was modified")
	}
	left, err := os.ReadDir(stagingRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("staging root not cleaned up: %v", left)
	}
}

func TestPatchExistingBuildTagGetsSuffix(t *testing.T) {
	dir := t.TempDir()
	input := buildTestWheel(t, dir, "mypkg-1.0-3-py3-none-any.whl", map[string]string{
		"mypkg/__init__.py": "a",
	})

	orch, err := New(Options{StagingRoot: dir, OutputDir: dir, Applier: &fakeApplier{}})
	if err != nil {
		t.Fatal(err)
	}
	res, err := orch.Patch(context.Background(), input, &PatchSpec{})
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	if got := filepath.Base(res.Output); got != "mypkg-1.0-3patched-py3-none-any.whl" {
		t.Errorf("output name = %q", got)
	}
}

func TestPatchKeepStaging(t *testing.T) {
	dir := t.TempDir()
	input := buildTestWheel(t, dir, "mypkg-1.0-py3-none-any.whl", map[string]string{
		"mypkg/__init__.py": "a",
	})
	stagingRoot := filepath.Join(dir, "staging")
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		t.Fatal(err)
	}

	orch, err := New(Options{StagingRoot: stagingRoot, OutputDir: dir, Applier: &fakeApplier{}, KeepStaging: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := orch.Patch(context.Background(), input, &PatchSpec{}); err != nil {
		t.Fatalf("Patch failed: %v", err)
	}

	left, err := os.ReadDir(stagingRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0].Name()[:3] != "wp-" {
		t.Errorf("expected one retained wp- staging directory, got %v", left)
	}
}

func TestPatchMalformedNameFailsBeforeStaging(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "notawheel.zip")
	if err := os.WriteFile(bad, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	stagingRoot := filepath.Join(dir, "staging")
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		t.Fatal(err)
	}

	orch, err := New(Options{StagingRoot: stagingRoot, OutputDir: dir, Applier: &fakeApplier{}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = orch.Patch(context.Background(), bad, &PatchSpec{})
	if !errors.Is(err, wheelname.ErrMalformedName) {
		t.Fatalf("err = %v, want ErrMalformedName", err)
	}
	left, _ := os.ReadDir(stagingRoot)
	if len(left) != 0 {
		t.Error("staging directory created for a rejected name")
	}
}

func TestPatchUnreadableInputIsExtractionFailure(t *testing.T) {
	dir := t.TempDir()
	orch, err := New(Options{StagingRoot: dir, OutputDir: dir, Applier: &fakeApplier{}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = orch.Patch(context.Background(), filepath.Join(dir, "mypkg-1.0-py3-none-any.whl"), &PatchSpec{})
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v, want ErrExtraction", err)
	}
}

func TestPatchFailureAbortsAndLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	input := buildTestWheel(t, dir, "mypkg-1.0-py3-none-any.whl", map[string]string{
		"mypkg/__init__.py": "a",
	})
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	fake := &fakeApplier{fail: true}

	orch, err := New(Options{StagingRoot: dir, OutputDir: outDir, Applier: fake})
	if err != nil {
		t.Fatal(err)
	}
	spec := &PatchSpec{}
	if err := spec.AddAll([]PatchEntry{{Path: "one.patch", Strip: 1}, {Path: "two.patch", Strip: 1}}); err != nil {
		t.Fatal(err)
	}

	_, err = orch.Patch(context.Background(), input, spec)
	if !errors.Is(err, applier.ErrPatchApplication) {
		t.Fatalf("err = %v, want ErrPatchApplication", err)
	}
	if len(fake.calls) != 1 {
		t.Errorf("expected the first failure to abort the series, got %d calls", len(fake.calls))
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("failed operation left output files: %v", entries)
	}
}

func TestPatchAppliesSeriesInOrder(t *testing.T) {
	dir := t.TempDir()
	input := buildTestWheel(t, dir, "mypkg-1.0-py3-none-any.whl", map[string]string{
		"mypkg/__init__.py": "a",
	})
	fake := &fakeApplier{}

	orch, err := New(Options{StagingRoot: dir, OutputDir: dir, Applier: fake})
	if err != nil {
		t.Fatal(err)
	}
	spec := &PatchSpec{}
	if err := spec.AddAll([]PatchEntry{{Path: "b.patch", Strip: 2}, {Path: "a.patch", Strip: 0}}); err != nil {
		t.Fatal(err)
	}
	if _, err := orch.Patch(context.Background(), input, spec); err != nil {
		t.Fatal(err)
	}

	want := []PatchEntry{{Path: "b.patch", Strip: 2}, {Path: "a.patch", Strip: 0}}
	if len(fake.calls) != 2 || fake.calls[0] != want[0] || fake.calls[1] != want[1] {
		t.Errorf("calls = %+v, want %+v", fake.calls, want)
	}
}

func TestNewRejectsUnavailableApplier(t *testing.T) {
	if _, err := New(Options{Applier: &fakeApplier{unusable: true}}); err == nil {
		t.Error("expected error for unavailable applier")
	}
}

func TestPatchAll(t *testing.T) {
	dir := t.TempDir()
	good := buildTestWheel(t, dir, "alpha-1.0-py3-none-any.whl", map[string]string{
		"alpha/__init__.py": "a",
	})
	missing := filepath.Join(dir, "beta-1.0-py3-none-any.whl")
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}

	orch, err := New(Options{StagingRoot: dir, OutputDir: outDir, Applier: &fakeApplier{}})
	if err != nil {
		t.Fatal(err)
	}

	results, err := orch.PatchAll(context.Background(), []string{good, missing}, &PatchSpec{}, 2)
	if err == nil {
		t.Fatal("expected an error counting the failed wheel")
	}
	if len(results) != 2 {
		t.Fatalf("results length = %d", len(results))
	}
	if results[0] == nil || filepath.Base(results[0].Output) != "alpha-1.0-patched-py3-none-any.whl" {
		t.Errorf("unexpected result for good wheel: %+v", results[0])
	}
	if results[1] != nil {
		t.Errorf("failed wheel has a result: %+v", results[1])
	}
}

func TestPatchEndToEndWithHostPatch(t *testing.T) {
	gnupatch, ok := applier.Get("gnupatch")
	if !ok {
		t.Fatal("gnupatch backend not registered")
	}
	if !gnupatch.Available() {
		t.Skip("patch command not available on this host")
	}

	dir := t.TempDir()
	input := buildTestWheel(t, dir, "mypkg-1.0-py3-none-any.whl", map[string]string{
		"mypkg/__init__.py": "a",
	})
	patchFile := filepath.Join(dir, "grow.patch")
	diff := "--- a/mypkg/__init__.py\n" +
		"+++ b/mypkg/__init__.py\n" +
		"@@ -1 +1 @@\n" +
		"-a\n" +
		"\\ No newline at end of file\n" +
		"+ab\n" +
		"\\ No newline at end of file\n"
	if err := os.WriteFile(patchFile, []byte(diff), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}

	orch, err := New(Options{StagingRoot: dir, OutputDir: outDir, Applier: gnupatch})
	if err != nil {
		t.Fatal(err)
	}
	res, err := orch.Patch(context.Background(), input, singlePatchSpec(t, patchFile, 1))
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}

	if got := filepath.Base(res.Output); got != "mypkg-1.0-patched-py3-none-any.whl" {
		t.Errorf("output name = %q", got)
	}
	rf, err := wheel.ReadRecord(res.Output)
	if err != nil {
		t.Fatal(err)
	}
	e, _ := rf.Manifest.Get("mypkg/__init__.py")
	if e.Digest != "sha256=-44g_C5MPySMYMOb1lLzwTRymLuXe4tNWQO4UFViBgM" || e.Size != 2 {
		t.Errorf("patched entry = %+v, want digest of %q and size 2", e, "ab")
	}
}
