// Package fetch downloads wheels over HTTPS using a pool of workers.
package fetch

import (
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/open-edge-platform/wheel-patcher/internal/utils/logger"
)

// NewClient returns an http.Client with a restricted TLS configuration.
// Callers can reuse this instead of re-defining the TLS settings everywhere.
func NewClient() *http.Client {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS13,

		// CipherSuites applies only to TLS 1.0-1.2
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		},
	}

	transport := &http.Transport{
		TLSClientConfig:   tlsConfig,
		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
	}
}

// download is one parsed fetch target.
type download struct {
	URL    string
	Name   string
	Digest string // hex sha256 from a #sha256= fragment, may be empty
}

// parseDownload derives the destination file name from the URL path and
// picks up a PyPI-style "#sha256=<hex>" fragment when one is present.
func parseDownload(rawURL string) (download, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return download{}, err
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return download{}, fmt.Errorf("no file name in URL path %q", u.Path)
	}
	d := download{URL: rawURL, Name: name}
	if digest, ok := strings.CutPrefix(u.Fragment, "sha256="); ok {
		d.Digest = digest
	}
	return d, nil
}

// Fetch downloads the given URLs into destDir using a pool of workers.
// It shows a single progress bar tracking files completed vs total. Failed
// downloads are logged, counted, and reported in the returned error.
func Fetch(urls []string, destDir string, workers int) error {
	log := logger.Logger()
	if workers < 1 {
		workers = 1
	}

	client := NewClient()

	total := len(urls)
	jobs := make(chan string, total)
	var (
		mu     sync.Mutex
		failed int
	)
	var wg sync.WaitGroup

	// create a single progress bar for total files
	bar := progressbar.NewOptions(total,
		progressbar.OptionFullWidth(),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)

	// start worker goroutines
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rawURL := range jobs {
				d, err := parseDownload(rawURL)
				if err == nil {
					// update description to current file
					bar.Describe(fmt.Sprintf("downloading %s", d.Name))
					err = fetchOne(client, d, destDir)
				}
				if err != nil {
					log.Errorf("downloading %s failed: %v", rawURL, err)
					mu.Lock()
					failed++
					mu.Unlock()
				} else {
					logger.GlobalStringListReport.Append(d.Name)
				}
				bar.Add(1)
			}
		}()
	}

	// enqueue jobs
	for _, u := range urls {
		jobs <- u
	}
	close(jobs)

	wg.Wait()
	bar.Finish()

	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, total)
	}
	return nil
}

func fetchOne(client *http.Client, d download, destDir string) error {
	resp, err := client.Get(d.URL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	// ensure destination directory exists
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	destPath := filepath.Join(destDir, d.Name)
	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	sum := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, sum), resp.Body); err != nil {
		os.Remove(destPath)
		return err
	}
	if d.Digest != "" {
		if got := hex.EncodeToString(sum.Sum(nil)); !strings.EqualFold(got, d.Digest) {
			os.Remove(destPath)
			return fmt.Errorf("sha256 mismatch for %s: downloaded %s, fragment says %s", d.Name, got, d.Digest)
		}
	}
	return nil
}
