// Package commands implements the CLI command bodies. Each command produces
// an output.Report; the shared output layer renders it and derives the exit
// code, so command logic never touches stdout directly.
package commands

import (
	"errors"

	"github.com/fbain/confluence-markdown-sync/internal/config"
	"github.com/fbain/confluence-markdown-sync/internal/confluence"
	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/fs"
	"github.com/fbain/confluence-markdown-sync/internal/logging"
	"github.com/fbain/confluence-markdown-sync/internal/mapping"
)

// Session bundles the workspace handles every command needs.
type Session struct {
	Workspace *fs.SafeFS
	Settings  config.RuntimeSettings
	Logs      logging.Provider
}

type SessionOptions struct {
	Flags       config.RuntimeFlags
	Environment config.Environment
	Logs        logging.Provider
	// RequireCredentials is set by commands that reach the remote API.
	RequireCredentials bool
}

// OpenSession loads the workspace config and resolves the runtime settings.
// A zero Environment falls back to the process environment.
func OpenSession(workDir string, options SessionOptions) (Session, error) {
	workspace, err := fs.NewSafeFS(workDir)
	if err != nil {
		return Session{}, err
	}

	fileConfig, err := config.LoadFile(workspace, "")
	if err != nil {
		return Session{}, err
	}

	environment := options.Environment
	if environment == (config.Environment{}) {
		environment = config.EnvironmentFromOS()
	}

	settings, err := config.Resolve(fileConfig, options.Flags, environment, config.ResolveOptions{
		RequireCredentials: options.RequireCredentials,
	})
	if err != nil {
		return Session{}, err
	}

	logs := options.Logs
	if logs == nil {
		logs, err = logging.NewProvider(logging.Config{Level: settings.LogLevel, Format: settings.LogFormat})
		if err != nil {
			return Session{}, err
		}
	}

	return Session{Workspace: workspace, Settings: settings, Logs: logs}, nil
}

func newAPI(settings config.RuntimeSettings, injected confluence.API) (confluence.API, error) {
	if injected != nil {
		return injected, nil
	}
	return confluence.NewClient(confluence.ClientOptions{
		BaseURL:  settings.BaseURL,
		Email:    settings.Email,
		APIToken: settings.APIToken,
	})
}

func newBackend(session Session) *mapping.FileBackend {
	return mapping.NewFileBackend(session.Workspace, "")
}

// FatalKindFor classifies a command-level failure for exit-code resolution.
// Config loading and settings resolution failures are configuration errors;
// anything else defers to the transport classification.
func FatalKindFor(err error) contracts.FailureKind {
	var resolveErr *config.ResolveError
	if errors.As(err, &resolveErr) {
		return contracts.FailureKindConfig
	}
	var configErr *config.Error
	if errors.As(err, &configErr) {
		return contracts.FailureKindConfig
	}
	return confluence.FailureKindFor(err)
}

// mappedPaths lists every mapped local path in mapping order. Commands that
// accept an optional path list fall back to it when no paths are given.
func mappedPaths(backend mapping.Backend) ([]string, error) {
	store, err := backend.Load()
	if err != nil {
		return nil, err
	}
	entries := store.List()
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		paths = append(paths, entry.LocalPath)
	}
	return paths, nil
}
