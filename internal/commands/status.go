package commands

import (
	"errors"
	"os"

	"github.com/fbain/confluence-markdown-sync/internal/config"
	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/logging"
	"github.com/fbain/confluence-markdown-sync/internal/output"
	"github.com/fbain/confluence-markdown-sync/internal/syncer"
)

type StatusOptions struct {
	Flags       config.RuntimeFlags
	Environment config.Environment
	Logs        logging.Provider
}

// RunStatus reports, per mapped document, whether the local file changed
// since the recorded sync. It never touches the remote API.
func RunStatus(workDir string, options StatusOptions) (output.Report, error) {
	report := output.Report{CommandName: string(contracts.CommandStatus)}

	session, err := OpenSession(workDir, SessionOptions{
		Flags:       options.Flags,
		Environment: options.Environment,
		Logs:        options.Logs,
	})
	if err != nil {
		report.FatalKind = FatalKindFor(err)
		return report, err
	}

	store, err := newBackend(session).Load()
	if err != nil {
		report.FatalKind = FatalKindFor(err)
		return report, err
	}

	for _, entry := range store.List() {
		result := contracts.PerDocumentResult{
			LocalPath: entry.LocalPath,
			PageID:    entry.PageID,
			Action:    "none",
			Revision:  entry.LastSyncedRevision,
		}

		raw, err := session.Workspace.ReadFile(entry.LocalPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			result.Status = contracts.DocumentStatusFailed
			result.FailureKind = contracts.FailureKindConversion
			result.Messages = []contracts.ResultMessage{{Level: "error", Text: "local file is missing"}}
		case err != nil:
			result.Status = contracts.DocumentStatusFailed
			result.FailureKind = contracts.FailureKindConversion
			result.Messages = []contracts.ResultMessage{{Level: "error", Text: err.Error()}}
		case entry.ContentHash != "" && syncer.ContentHash(raw) == entry.ContentHash:
			result.Status = contracts.DocumentStatusSkipped
			result.Messages = []contracts.ResultMessage{{Level: "info", Text: "unchanged since last sync"}}
		default:
			result.Status = contracts.DocumentStatusSuccess
			result.Messages = []contracts.ResultMessage{{Level: "info", Text: "modified since last sync"}}
		}

		report.Documents = append(report.Documents, result)
	}
	return report, nil
}
