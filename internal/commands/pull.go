package commands

import (
	"context"

	"github.com/fbain/confluence-markdown-sync/internal/confluence"
	"github.com/fbain/confluence-markdown-sync/internal/config"
	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/logging"
	"github.com/fbain/confluence-markdown-sync/internal/output"
	"github.com/fbain/confluence-markdown-sync/internal/syncer"
)

type PullOptions struct {
	Paths       []string
	DryRun      bool
	Flags       config.RuntimeFlags
	Environment config.Environment
	API         confluence.API
	Logs        logging.Provider
}

// RunPull fetches mapped remote pages and overwrites the local documents.
// With no paths it pulls every mapped document.
func RunPull(ctx context.Context, workDir string, options PullOptions) (output.Report, error) {
	report := output.Report{CommandName: string(contracts.CommandPull), DryRun: options.DryRun}

	session, err := OpenSession(workDir, SessionOptions{
		Flags:              options.Flags,
		Environment:        options.Environment,
		Logs:               options.Logs,
		RequireCredentials: true,
	})
	if err != nil {
		report.FatalKind = FatalKindFor(err)
		return report, err
	}

	api, err := newAPI(session.Settings, options.API)
	if err != nil {
		report.FatalKind = FatalKindFor(err)
		return report, err
	}

	puller := &syncer.Puller{
		API:       api,
		Backend:   newBackend(session),
		Workspace: session.Workspace,
		DryRun:    options.DryRun,
		Logger:    session.Logs.GetLogger("pull"),
	}

	results, err := puller.Pull(ctx, options.Paths)
	report.Documents = results
	if err != nil {
		report.FatalKind = FatalKindFor(err)
		return report, err
	}
	return report, nil
}
