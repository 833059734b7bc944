// Package config loads the tool-wide configuration file. Documents are
// schema-validated before decoding, so a bad config fails with a schema
// path instead of a zero value somewhere downstream.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/open-edge-platform/wheel-patcher/internal/config/validate"
)

// DefaultConfigFile is looked up in the working directory when no
// explicit path is given.
const DefaultConfigFile = "wheel-patcher.yml"

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}

// SigningConfig points at the armored signing key.
type SigningConfig struct {
	KeyFile string `yaml:"keyFile,omitempty"`
}

// GlobalConfig is the tool-wide configuration document.
type GlobalConfig struct {
	Workers        int           `yaml:"workers,omitempty"`
	StagingDir     string        `yaml:"stagingDir,omitempty"`
	OutputDir      string        `yaml:"outputDir,omitempty"`
	TempDir        string        `yaml:"tempDir,omitempty"`
	Applier        string        `yaml:"applier,omitempty"`
	KeepStaging    bool          `yaml:"keepStaging,omitempty"`
	TimeoutSeconds int           `yaml:"timeoutSeconds,omitempty"`
	Logging        LoggingConfig `yaml:"logging,omitempty"`
	Signing        SigningConfig `yaml:"signing,omitempty"`
}

// Default returns the built-in configuration used when no file exists.
func Default() *GlobalConfig {
	return &GlobalConfig{
		Workers:   4,
		OutputDir: ".",
		Applier:   "gnupatch",
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Load reads the configuration at path. An empty path means the default
// file name, and its absence is not an error; a named file must exist.
func Load(path string) (*GlobalConfig, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg, err := parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// parseYAML validates the document against the embedded schema, then
// decodes it over the defaults so absent keys keep their default values.
// Unknown keys are rejected.
func parseYAML(data []byte) (*GlobalConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Default(), nil
	}

	jsonData, err := sigsyaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("converting to JSON: %w", err)
	}
	// a comments-only document converts to JSON null
	if bytes.Equal(jsonData, []byte("null")) {
		return Default(), nil
	}
	if err := validate.ValidateConfigJSON(jsonData); err != nil {
		return nil, err
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding: %w", err)
	}
	return cfg, nil
}
