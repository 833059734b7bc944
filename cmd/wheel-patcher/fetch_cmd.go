package main

import (
	"github.com/spf13/cobra"

	"github.com/open-edge-platform/wheel-patcher/internal/fetch"
	"github.com/open-edge-platform/wheel-patcher/internal/utils/logger"
)

// Fetch command flags
var (
	fetchDest    string
	fetchWorkers int
)

// createFetchCommand creates the fetch subcommand
func createFetchCommand() *cobra.Command {
	fetchCmd := &cobra.Command{
		Use:   "fetch [flags] URL...",
		Short: "download wheels for patching",
		Long: `Fetch downloads the given wheel URLs concurrently. A '#sha256=<hex>'
URL fragment, as found on package index download pages, is verified
against the downloaded content.`,
		Args: cobra.MinimumNArgs(1),
		RunE: executeFetch,
	}

	fetchCmd.Flags().StringVar(&fetchDest, "dest", ".",
		"directory to download into")
	fetchCmd.Flags().IntVar(&fetchWorkers, "workers", 0,
		"concurrent downloads (default from config)")
	return fetchCmd
}

// executeFetch handles the fetch command execution logic
func executeFetch(cmd *cobra.Command, args []string) error {
	log := logger.Logger()
	h := ensureHelpers()

	workers := fetchWorkers
	if workers == 0 {
		workers = h.Workers()
	}
	fetchErr := fetch.Fetch(args, fetchDest, workers)

	logger.ReportPath = fetchDest
	if err := logger.WriteListFetchedToFile(); err != nil {
		log.Warnf("writing fetch report: %v", err)
	}
	return fetchErr
}
