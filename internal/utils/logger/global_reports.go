package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// StringListReport collects names accumulated during a run, written out
// as a plain list for follow-up scripting.
type StringListReport struct {
	mu    sync.Mutex
	Title string
	Items []string
}

// GlobalStringListReport collects the wheels fetched during this run.
var GlobalStringListReport = StringListReport{Title: "FetchedWheels"}

// ReportPath is the directory list reports are written to.
var ReportPath = "."

// Append adds an item to the report. Safe for concurrent use.
func (r *StringListReport) Append(item string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Items = append(r.Items, item)
}

// WriteListFetchedToFile appends the collected items to a text file
// named after the report title, e.g. fetched-FetchedWheels.txt, one item
// per line with a blank line separating runs. The list is cleared
// afterwards. Nothing is written when the list is empty.
func WriteListFetchedToFile() error {
	r := &GlobalStringListReport
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Items) == 0 {
		return nil
	}
	if err := os.MkdirAll(ReportPath, 0755); err != nil {
		return fmt.Errorf("creating report path: %w", err)
	}

	// Sanitize the title for use in a filename
	title := r.Title
	if title == "" {
		title = "untitled"
	}
	safeTitle := ""
	for _, c := range title {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			safeTitle += string(c)
		} else {
			safeTitle += "_"
		}
	}

	reportFullPath := filepath.Join(ReportPath, fmt.Sprintf("fetched-%s.txt", safeTitle))

	f, err := os.OpenFile(reportFullPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	for _, item := range r.Items {
		if _, err := fmt.Fprintln(f, item); err != nil {
			return fmt.Errorf("writing to file: %w", err)
		}
	}
	if _, err := fmt.Fprintln(f); err != nil {
		return fmt.Errorf("writing new line to file: %w", err)
	}

	r.Items = nil
	return nil
}
