package wheel

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/open-edge-platform/wheel-patcher/internal/record"
)

func TestBuilderNameDerivation(t *testing.T) {
	b := NewBuilder(BuildOptions{
		Name:        "My-Package.Name",
		Version:     "1.0.0-ALPHA.1",
		PythonTag:   "py3",
		AbiTag:      "none",
		PlatformTag: "any",
	})
	if got := b.Wheelname(); got != "my_package_name-1.0.0a1-py3-none-any.whl" {
		t.Errorf("Wheelname() = %q", got)
	}
	if got := b.DistinfoDir(); got != "my_package_name-1.0.0a1.dist-info" {
		t.Errorf("DistinfoDir() = %q", got)
	}

	tagged := NewBuilder(BuildOptions{
		Name: "mypkg", Version: "1.0", BuildTag: "4",
		PythonTag: "py3", AbiTag: "none", PlatformTag: "any",
	})
	if got := tagged.Wheelname(); got != "mypkg-1.0-4-py3-none-any.whl" {
		t.Errorf("Wheelname() with build tag = %q", got)
	}
}

func TestBuilderNoNormalize(t *testing.T) {
	b := NewBuilder(BuildOptions{
		Name:        "My-Package",
		Version:     "1.0+Local",
		PythonTag:   "py3",
		AbiTag:      "none",
		PlatformTag: "any",
		NoNormalize: true,
	})
	if got := b.Wheelname(); got != "My_Package-1.0_Local-py3-none-any.whl" {
		t.Errorf("Wheelname() = %q", got)
	}
}

func TestBuilderBuild(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.MkdirAll(filepath.Join(src, "mypkg"), 0o755); err != nil {
		t.Fatal(err)
	}
	payload := filepath.Join(src, "mypkg", "__init__.py")
	if err := os.WriteFile(payload, []byte("VERSION = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	entryPoints := filepath.Join(dir, "entry_points.txt")
	if err := os.WriteFile(entryPoints, []byte("[console_scripts]\nmy = mypkg:main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	license := filepath.Join(dir, "LICENSE")
	if err := os.WriteFile(license, []byte("MIT\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := NewBuilder(BuildOptions{
		Name:              "mypkg",
		Version:           "1.0",
		PythonTag:         "py3",
		AbiTag:            "none",
		PlatformTag:       "any",
		StripPathPrefixes: []string{"src/"},
	})
	out := filepath.Join(dir, b.Wheelname())
	err := b.Build(out, Payload{
		Files:           []Input{{Archive: "src/mypkg/__init__.py", Real: payload}},
		Metadata:        []byte("Metadata-Version: 2.1\nName: placeholder\n"),
		Description:     "A demo package.",
		EntryPointsFile: entryPoints,
		ExtraDistinfo:   map[string]string{"LICENSE": license},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("output is not a readable zip: %v", err)
	}
	defer zr.Close()

	var names []string
	contents := map[string]string{}
	for _, f := range zr.File {
		names = append(names, f.Name)
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		contents[f.Name] = string(data)
	}

	if names[0] != "mypkg/__init__.py" {
		t.Errorf("first member = %q, want stripped payload path", names[0])
	}
	if names[len(names)-1] != "mypkg-1.0.dist-info/RECORD" {
		t.Errorf("last member = %q, want RECORD", names[len(names)-1])
	}

	wheelFile := contents["mypkg-1.0.dist-info/WHEEL"]
	for _, want := range []string{"Wheel-Version: 1.0\n", "Root-Is-Purelib: true\n", "Tag: py3-none-any\n"} {
		if !strings.Contains(wheelFile, want) {
			t.Errorf("WHEEL missing %q:\n%s", want, wheelFile)
		}
	}

	metadata := contents["mypkg-1.0.dist-info/METADATA"]
	if !strings.Contains(metadata, "Name: mypkg\n") || strings.Contains(metadata, "placeholder") {
		t.Errorf("Name header not rewritten:\n%s", metadata)
	}
	if !strings.Contains(metadata, "Version: 1.0\n\nA demo package.\n") {
		t.Errorf("Version or description missing:\n%s", metadata)
	}

	rf, err := ReadRecord(out)
	if err != nil {
		t.Fatalf("ReadRecord failed: %v", err)
	}
	e, ok := rf.Manifest.Get("mypkg/__init__.py")
	if !ok {
		t.Fatal("manifest missing payload entry")
	}
	if want := record.Digest([]byte("VERSION = 1\n")); e.Digest != want {
		t.Errorf("payload digest = %q, want %q", e.Digest, want)
	}
	if _, ok := rf.Manifest.Get("mypkg-1.0.dist-info/LICENSE"); !ok {
		t.Error("manifest missing extra dist-info entry")
	}
}

func TestBuilderBuildNonPurelib(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(BuildOptions{
		Name: "mypkg", Version: "1.0",
		PythonTag: "cp311", AbiTag: "cp311", PlatformTag: "manylinux_2_17_x86_64",
	})
	out := filepath.Join(dir, b.Wheelname())
	if err := b.Build(out, Payload{Metadata: []byte("Name: x\n")}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	rf, err := ReadRecord(out)
	if err != nil {
		t.Fatal(err)
	}
	wheelPath := strings.TrimSuffix(rf.Path, record.Filename) + "WHEEL"
	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	rc, err := zr.Open(wheelPath)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if !strings.Contains(string(data), "Root-Is-Purelib: false\n") {
		t.Errorf("platform wheel must not be purelib:\n%s", data)
	}
}

func TestBuilderBuildFailureLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(BuildOptions{
		Name: "mypkg", Version: "1.0",
		PythonTag: "py3", AbiTag: "none", PlatformTag: "any",
	})
	out := filepath.Join(dir, b.Wheelname())
	err := b.Build(out, Payload{
		Files:    []Input{{Archive: "mypkg/a.py", Real: filepath.Join(dir, "does-not-exist")}},
		Metadata: []byte("Name: x\n"),
	})
	if err == nil {
		t.Fatal("expected failure for missing input file")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Errorf("failed build left an output file behind")
	}
}

func TestParseInput(t *testing.T) {
	in, err := ParseInput("mypkg/mod.py;/tmp/build/mod.py")
	if err != nil {
		t.Fatalf("ParseInput failed: %v", err)
	}
	if in.Archive != "mypkg/mod.py" || in.Real != "/tmp/build/mod.py" {
		t.Errorf("unexpected pair: %+v", in)
	}

	for _, bad := range []string{"", "no-separator", ";real", "archive;"} {
		if _, err := ParseInput(bad); err == nil {
			t.Errorf("ParseInput(%q) succeeded, want error", bad)
		}
	}
}
