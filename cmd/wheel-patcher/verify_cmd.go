package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/wheel-patcher/internal/record"
	"github.com/open-edge-platform/wheel-patcher/internal/sign"
	"github.com/open-edge-platform/wheel-patcher/internal/utils/logger"
	"github.com/open-edge-platform/wheel-patcher/internal/wheel"
)

// Verify command flags
var (
	verifySigFile string
	verifyKeyFile string
)

// createVerifyCommand creates the verify subcommand
func createVerifyCommand() *cobra.Command {
	verifyCmd := &cobra.Command{
		Use:   "verify [flags] WHEEL",
		Short: "check a wheel's contents against its RECORD manifest",
		Long: `Verify recomputes the digest and size of every member and compares
them with the RECORD manifest, reporting missing, modified, and
untracked files. With --signature and --key it additionally checks a
clearsigned RECORD against the archive.`,
		Args: cobra.ExactArgs(1),
		RunE: executeVerify,
	}

	verifyCmd.Flags().StringVar(&verifySigFile, "signature", "",
		"clearsigned RECORD (.asc) to check against the wheel")
	verifyCmd.Flags().StringVar(&verifyKeyFile, "key", "",
		"armored public key for --signature")
	return verifyCmd
}

// executeVerify handles the verify command execution logic
func executeVerify(cmd *cobra.Command, args []string) error {
	log := logger.Logger()
	wheelPath := args[0]
	log.Infof("Verifying wheel: %s", wheelPath)

	rf, err := wheel.ReadRecord(wheelPath)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "wp-verify-")
	if err != nil {
		return fmt.Errorf("creating verify directory: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := wheel.Unpack(wheelPath, dir); err != nil {
		return err
	}
	problems, err := record.VerifyTree(rf.Manifest, dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintln(out, p.String())
		}
		return fmt.Errorf("%s: %d problems found", filepath.Base(wheelPath), len(problems))
	}
	fmt.Fprintf(out, "%s: OK (%d entries)\n", filepath.Base(wheelPath), rf.Manifest.Len())

	if verifySigFile != "" {
		if verifyKeyFile == "" {
			return fmt.Errorf("--signature requires --key")
		}
		sigData, err := os.ReadFile(verifySigFile)
		if err != nil {
			return fmt.Errorf("reading signature: %w", err)
		}
		pubData, err := os.ReadFile(verifyKeyFile)
		if err != nil {
			return fmt.Errorf("reading public key: %w", err)
		}
		if err := sign.VerifyManifest(wheelPath, sigData, pubData); err != nil {
			return err
		}
		fmt.Fprintln(out, "signature: OK")
	}
	return nil
}
