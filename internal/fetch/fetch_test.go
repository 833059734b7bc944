package fetch

import (
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pkgs/alpha-1.0-py3-none-any.whl", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("alpha bytes"))
	})
	mux.HandleFunc("/pkgs/beta-2.0-py3-none-any.whl", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("beta bytes"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "dest")
	urls := []string{
		srv.URL + "/pkgs/alpha-1.0-py3-none-any.whl",
		srv.URL + "/pkgs/beta-2.0-py3-none-any.whl",
	}
	if err := Fetch(urls, dest, 2); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	for name, want := range map[string]string{
		"alpha-1.0-py3-none-any.whl": "alpha bytes",
		"beta-2.0-py3-none-any.whl":  "beta bytes",
	} {
		got, err := os.ReadFile(filepath.Join(dest, name))
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestFetchCountsFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/good.whl", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dest := t.TempDir()
	urls := []string{srv.URL + "/good.whl", srv.URL + "/missing.whl"}
	err := Fetch(urls, dest, 1)
	if err == nil || !strings.Contains(err.Error(), "1 of 2 downloads failed") {
		t.Fatalf("err = %v, want failure count", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "good.whl")); err != nil {
		t.Error("good file was not downloaded")
	}
	if _, err := os.Stat(filepath.Join(dest, "missing.whl")); !os.IsNotExist(err) {
		t.Error("failed download left a file behind")
	}
}

func TestFetchVerifiesDigestFragment(t *testing.T) {
	content := []byte("wheel payload")
	digest := hex.EncodeToString(func() []byte { s := sha256.Sum256(content); return s[:] }())

	mux := http.NewServeMux()
	mux.HandleFunc("/pkg.whl", func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	t.Run("match", func(t *testing.T) {
		dest := t.TempDir()
		if err := Fetch([]string{srv.URL + "/pkg.whl#sha256=" + digest}, dest, 1); err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dest, "pkg.whl")); err != nil {
			t.Error("verified file missing")
		}
	})
	t.Run("mismatch", func(t *testing.T) {
		dest := t.TempDir()
		err := Fetch([]string{srv.URL + "/pkg.whl#sha256=" + strings.Repeat("0", 64)}, dest, 1)
		if err == nil {
			t.Fatal("expected digest mismatch to fail")
		}
		if _, err := os.Stat(filepath.Join(dest, "pkg.whl")); !os.IsNotExist(err) {
			t.Error("mismatched file left behind")
		}
	})
}

func TestParseDownload(t *testing.T) {
	d, err := parseDownload("https://files.example.org/p/mypkg-1.0-py3-none-any.whl#sha256=abc123")
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "mypkg-1.0-py3-none-any.whl" || d.Digest != "abc123" {
		t.Errorf("parsed %+v", d)
	}

	d, err = parseDownload("https://files.example.org/p/pkg.whl")
	if err != nil || d.Digest != "" {
		t.Errorf("fragment-less parse: %+v, %v", d, err)
	}

	if _, err := parseDownload("https://files.example.org/"); err == nil {
		t.Error("expected error for URL without a file name")
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient()
	tr, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatal("transport is not *http.Transport")
	}
	if tr.TLSClientConfig.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", tr.TLSClientConfig.MinVersion)
	}
}
