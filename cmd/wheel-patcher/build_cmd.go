package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/wheel-patcher/internal/utils/logger"
	"github.com/open-edge-platform/wheel-patcher/internal/wheel"
)

// Build command flags
var (
	buildName       string
	buildVersion    string
	buildTag        string
	pythonTag       string
	abiTag          string
	platformTag     string
	addFiles        []string
	addListFiles    []string
	stripPrefixes   []string
	metadataFile    string
	descriptionFile string
	entryPointsFile string
	extraDistinfo   []string
	stampFiles      []string
	noNormalize     bool
	buildOutDir     string
	nameFile        string
	buildSignKey    string
)

// createBuildCommand creates the build subcommand
func createBuildCommand() *cobra.Command {
	buildCmd := &cobra.Command{
		Use:   "build [flags]",
		Short: "assemble a wheel from a file list and metadata",
		Long: `Build constructs a complete wheel archive from 'archivepath;realpath'
input pairs and a METADATA file, generating the dist-info directory and
the RECORD manifest. Name and version are normalized to the packaging
conventions unless --no-normalize is given.`,
		Args: cobra.NoArgs,
		RunE: executeBuild,
	}

	buildCmd.Flags().StringVar(&buildName, "name", "",
		"distribution name (required)")
	buildCmd.Flags().StringVar(&buildVersion, "version", "",
		"distribution version (required)")
	buildCmd.Flags().StringVar(&buildTag, "build-tag", "",
		"optional build tag")
	buildCmd.Flags().StringVar(&pythonTag, "python-tag", "py3",
		"python tag, e.g. py2 or py3")
	buildCmd.Flags().StringVar(&abiTag, "abi-tag", "none",
		"ABI tag")
	buildCmd.Flags().StringVar(&platformTag, "platform-tag", "any",
		"target platform tag")
	buildCmd.Flags().StringArrayVar(&addFiles, "add", nil,
		"'archivepath;realpath' pair to include (repeatable)")
	buildCmd.Flags().StringArrayVar(&addListFiles, "add-list", nil,
		"file with one 'archivepath;realpath' pair per line (repeatable)")
	buildCmd.Flags().StringArrayVar(&stripPrefixes, "strip-path-prefix", nil,
		"path prefix stripped from input archive paths, first match wins (repeatable)")
	buildCmd.Flags().StringVar(&metadataFile, "metadata-file", "",
		"METADATA file contents before the description is appended (required)")
	buildCmd.Flags().StringVar(&descriptionFile, "description-file", "",
		"file with the package description")
	buildCmd.Flags().StringVar(&entryPointsFile, "entry-points-file", "",
		"correctly formatted entry_points.txt file")
	buildCmd.Flags().StringArrayVar(&extraDistinfo, "extra-distinfo-file", nil,
		"'basename;realpath' pair added to the dist-info directory (repeatable)")
	buildCmd.Flags().StringArrayVar(&stampFiles, "stamp-file", nil,
		"workspace status file resolving {VAR} tokens in --name and --version (repeatable)")
	buildCmd.Flags().BoolVar(&noNormalize, "no-normalize", false,
		"keep the name and version spellings as given")
	buildCmd.Flags().StringVar(&buildOutDir, "out-dir", "",
		"output directory, the file name is derived (default from config)")
	buildCmd.Flags().StringVar(&nameFile, "name-file", "",
		"write the derived wheel file name to this file")
	buildCmd.Flags().StringVar(&buildSignKey, "sign-key", "",
		"armored private key; writes a clearsigned RECORD next to the output")
	return buildCmd
}

// collectInputs merges the --add pairs with the contents of every
// --add-list file, one pair per line.
func collectInputs() ([]wheel.Input, error) {
	var inputs []wheel.Input
	for _, arg := range addFiles {
		in, err := wheel.ParseInput(arg)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	for _, listFile := range addListFiles {
		data, err := os.ReadFile(listFile)
		if err != nil {
			return nil, fmt.Errorf("reading input list: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			in, err := wheel.ParseInput(line)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", listFile, err)
			}
			inputs = append(inputs, in)
		}
	}
	return inputs, nil
}

// executeBuild handles the build command execution logic
func executeBuild(cmd *cobra.Command, args []string) error {
	log := logger.Logger()
	h := ensureHelpers()

	if buildName == "" || buildVersion == "" {
		return fmt.Errorf("--name and --version are required")
	}
	if metadataFile == "" {
		return fmt.Errorf("--metadata-file is required")
	}

	// Stamping may rewrite the name fields, so resolve before deriving
	// the output file name.
	name := buildName
	version := buildVersion
	if len(stampFiles) > 0 {
		var err error
		if name, err = wheel.ResolveStamp(name, stampFiles...); err != nil {
			return err
		}
		if version, err = wheel.ResolveStamp(version, stampFiles...); err != nil {
			return err
		}
	}

	metadata, err := os.ReadFile(metadataFile)
	if err != nil {
		return fmt.Errorf("reading metadata: %w", err)
	}
	description := ""
	if descriptionFile != "" {
		data, err := os.ReadFile(descriptionFile)
		if err != nil {
			return fmt.Errorf("reading description: %w", err)
		}
		description = string(data)
	}

	inputs, err := collectInputs()
	if err != nil {
		return err
	}

	extra := make(map[string]string, len(extraDistinfo))
	for _, arg := range extraDistinfo {
		in, err := wheel.ParseInput(arg)
		if err != nil {
			return err
		}
		extra[in.Archive] = in.Real
	}

	outDir := buildOutDir
	if outDir == "" {
		if outDir, err = h.CreateOutputDir(); err != nil {
			return err
		}
	} else if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	builder := wheel.NewBuilder(wheel.BuildOptions{
		Name:              name,
		Version:           version,
		BuildTag:          buildTag,
		PythonTag:         pythonTag,
		AbiTag:            abiTag,
		PlatformTag:       platformTag,
		StripPathPrefixes: stripPrefixes,
		NoNormalize:       noNormalize,
	})

	outPath := filepath.Join(outDir, builder.Wheelname())
	if err := builder.Build(outPath, wheel.Payload{
		Files:           inputs,
		Metadata:        metadata,
		Description:     description,
		EntryPointsFile: entryPointsFile,
		ExtraDistinfo:   extra,
	}); err != nil {
		return err
	}
	log.Infof("built %s", outPath)

	if nameFile != "" {
		if err := os.WriteFile(nameFile, []byte(builder.Wheelname()), 0o644); err != nil {
			return fmt.Errorf("writing name file: %w", err)
		}
	}
	signKey := buildSignKey
	if signKey == "" {
		signKey = h.SigningKey()
	}
	if signKey != "" {
		if err := signOutput(outPath, signKey); err != nil {
			return err
		}
		log.Infof("signed %s", outPath)
	}
	fmt.Fprintln(cmd.OutOrStdout(), outPath)
	return nil
}
