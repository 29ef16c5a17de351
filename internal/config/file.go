// Package config loads workspace configuration and resolves the runtime
// settings from flags, environment, and the config file in that order.
// Credentials never live in the config file; the API token comes from the
// environment only.
package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/fs"
)

// FileConfig is the on-disk workspace configuration.
type FileConfig struct {
	BaseURL           string   `yaml:"base_url,omitempty"`
	Email             string   `yaml:"email,omitempty"`
	SpaceKey          string   `yaml:"space,omitempty"`
	ParentPageID      string   `yaml:"parent,omitempty"`
	Labels            []string `yaml:"labels,omitempty"`
	FidelityThreshold float64  `yaml:"fidelity_threshold,omitempty"`
	LogLevel          string   `yaml:"log_level,omitempty"`
	LogFormat         string   `yaml:"log_format,omitempty"`
}

// LoadFile reads the workspace config file. A missing file yields a zero
// config; commands that need specific values fail later during resolution.
func LoadFile(workspace *fs.SafeFS, path string) (FileConfig, error) {
	if path == "" {
		path = contracts.DefaultConfigFilePath
	}

	raw, err := workspace.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return FileConfig{}, nil
		}
		return FileConfig{}, &Error{Code: ErrorCodeReadFailed, Path: path, Err: err}
	}

	var file FileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return FileConfig{}, &Error{Code: ErrorCodeParseFailed, Path: path, Err: err}
	}
	return file, nil
}

// SaveFile writes the workspace config file atomically.
func SaveFile(workspace *fs.SafeFS, path string, file FileConfig) error {
	if path == "" {
		path = contracts.DefaultConfigFilePath
	}

	raw, err := yaml.Marshal(file)
	if err != nil {
		return &Error{Code: ErrorCodeWriteFailed, Path: path, Err: err}
	}
	if err := workspace.WriteFileAtomic(path, raw, 0o644); err != nil {
		return &Error{Code: ErrorCodeWriteFailed, Path: path, Err: err}
	}
	return nil
}
