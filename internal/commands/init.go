package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fbain/confluence-markdown-sync/internal/config"
	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/fs"
	"github.com/fbain/confluence-markdown-sync/internal/mapping"
	"github.com/fbain/confluence-markdown-sync/internal/output"
)

type InitOptions struct {
	BaseURL      string
	Email        string
	SpaceKey     string
	ParentPageID string
	Force        bool
}

// RunInit creates the workspace directory with a config file and an empty
// mapping file. An existing config is preserved unless --force is given.
func RunInit(workDir string, options InitOptions) (output.Report, error) {
	report := output.Report{CommandName: string(contracts.CommandInit)}

	workspace, err := fs.NewSafeFS(workDir)
	if err != nil {
		report.FatalKind = contracts.FailureKindConfig
		return report, err
	}

	if !options.Force {
		if _, err := workspace.ReadFile(contracts.DefaultConfigFilePath); err == nil {
			report.FatalKind = contracts.FailureKindConfig
			return report, fmt.Errorf("config already exists at %s (use --force to overwrite)",
				contracts.DefaultConfigFilePath)
		} else if !errors.Is(err, os.ErrNotExist) {
			report.FatalKind = contracts.FailureKindConfig
			return report, err
		}
	}

	if err := workspace.EnsureDir(contracts.DefaultWorkspaceDir, 0o755); err != nil {
		report.FatalKind = contracts.FailureKindConfig
		return report, err
	}

	fileConfig := config.FileConfig{
		BaseURL:      strings.TrimSpace(options.BaseURL),
		Email:        strings.TrimSpace(options.Email),
		SpaceKey:     strings.TrimSpace(options.SpaceKey),
		ParentPageID: strings.TrimSpace(options.ParentPageID),
	}
	if err := config.SaveFile(workspace, "", fileConfig); err != nil {
		report.FatalKind = contracts.FailureKindConfig
		return report, err
	}

	backend := mapping.NewFileBackend(workspace, "")
	if _, err := workspace.ReadFile(contracts.DefaultMappingPath); errors.Is(err, os.ErrNotExist) {
		if err := backend.Save(mapping.NewStore()); err != nil {
			report.FatalKind = contracts.FailureKindConfig
			return report, err
		}
	}

	action := "create"
	if options.Force {
		action = "update"
	}
	report.Documents = append(report.Documents, contracts.PerDocumentResult{
		LocalPath: contracts.DefaultWorkspaceDir,
		Action:    action,
		Status:    contracts.DocumentStatusSuccess,
		Messages: []contracts.ResultMessage{{
			Level: "info",
			Text:  "config=" + contracts.DefaultConfigFilePath + " mapping=" + contracts.DefaultMappingPath,
		}},
	})
	return report, nil
}
