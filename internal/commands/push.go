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

type PushOptions struct {
	Paths       []string
	DryRun      bool
	Flags       config.RuntimeFlags
	Environment config.Environment
	API         confluence.API
	Logs        logging.Provider
}

// RunPush converts the given Markdown documents and submits them to the
// remote wiki. With no paths it pushes every mapped document.
func RunPush(ctx context.Context, workDir string, options PushOptions) (output.Report, error) {
	report := output.Report{CommandName: string(contracts.CommandPush), DryRun: options.DryRun}

	session, err := OpenSession(workDir, SessionOptions{
		Flags:              options.Flags,
		Environment:        options.Environment,
		Logs:               options.Logs,
		RequireCredentials: !options.DryRun,
	})
	if err != nil {
		report.FatalKind = FatalKindFor(err)
		return report, err
	}

	api := options.API
	if !options.DryRun {
		api, err = newAPI(session.Settings, options.API)
		if err != nil {
			report.FatalKind = FatalKindFor(err)
			return report, err
		}
	}

	backend := newBackend(session)
	paths := options.Paths
	if len(paths) == 0 {
		paths, err = mappedPaths(backend)
		if err != nil {
			report.FatalKind = FatalKindFor(err)
			return report, err
		}
	}

	pusher := &syncer.Pusher{
		API:       api,
		Backend:   backend,
		Workspace: session.Workspace,
		Defaults: syncer.Defaults{
			SpaceKey:     session.Settings.SpaceKey,
			ParentPageID: session.Settings.ParentPageID,
			Labels:       session.Settings.Labels,
		},
		DryRun: options.DryRun,
		Logger: session.Logs.GetLogger("push"),
	}

	results, err := pusher.Push(ctx, paths)
	report.Documents = results
	if err != nil {
		report.FatalKind = FatalKindFor(err)
		return report, err
	}
	return report, nil
}
