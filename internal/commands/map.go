package commands

import (
	"fmt"
	"strings"

	"github.com/fbain/confluence-markdown-sync/internal/config"
	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/logging"
	"github.com/fbain/confluence-markdown-sync/internal/mapping"
	"github.com/fbain/confluence-markdown-sync/internal/output"
)

type MapAddOptions struct {
	LocalPath    string
	PageID       string
	SpaceKey     string
	ParentPageID string
	Revision     int
	Flags        config.RuntimeFlags
	Environment  config.Environment
	Logs         logging.Provider
}

// RunMapAdd links an existing local document to an existing remote page
// without pushing or pulling content. The next push or pull reconciles them.
func RunMapAdd(workDir string, options MapAddOptions) (output.Report, error) {
	report := output.Report{CommandName: string(contracts.CommandMap)}

	session, err := OpenSession(workDir, SessionOptions{
		Flags:       options.Flags,
		Environment: options.Environment,
		Logs:        options.Logs,
	})
	if err != nil {
		report.FatalKind = FatalKindFor(err)
		return report, err
	}

	localPath := strings.TrimSpace(options.LocalPath)
	if localPath == "" {
		report.FatalKind = contracts.FailureKindConfig
		return report, fmt.Errorf("a local path is required")
	}
	spaceKey := strings.TrimSpace(options.SpaceKey)
	if spaceKey == "" {
		spaceKey = session.Settings.SpaceKey
	}
	if spaceKey == "" {
		report.FatalKind = contracts.FailureKindConfig
		return report, fmt.Errorf("a space key is required: pass --space or set it in the config file")
	}

	backend := newBackend(session)
	store, err := backend.Load()
	if err != nil {
		report.FatalKind = FatalKindFor(err)
		return report, err
	}

	entry := mapping.Entry{
		LocalPath:          localPath,
		PageID:             strings.TrimSpace(options.PageID),
		SpaceKey:           spaceKey,
		ParentPageID:       strings.TrimSpace(options.ParentPageID),
		LastSyncedRevision: options.Revision,
	}
	if err := store.Put(entry); err != nil {
		report.FatalKind = contracts.FailureKindConfig
		return report, err
	}
	if err := backend.Save(store); err != nil {
		report.FatalKind = FatalKindFor(err)
		return report, err
	}

	report.Documents = append(report.Documents, contracts.PerDocumentResult{
		LocalPath: localPath,
		PageID:    entry.PageID,
		Action:    "create",
		Status:    contracts.DocumentStatusSuccess,
		Revision:  entry.LastSyncedRevision,
		Messages:  []contracts.ResultMessage{{Level: "info", Text: "mapped to page " + entry.PageID}},
	})
	return report, nil
}

type MapRemoveOptions struct {
	LocalPath   string
	Flags       config.RuntimeFlags
	Environment config.Environment
	Logs        logging.Provider
}

// RunMapRemove forgets the link for a local document. The local file and the
// remote page are both left untouched.
func RunMapRemove(workDir string, options MapRemoveOptions) (output.Report, error) {
	report := output.Report{CommandName: string(contracts.CommandMap)}

	session, err := OpenSession(workDir, SessionOptions{
		Flags:       options.Flags,
		Environment: options.Environment,
		Logs:        options.Logs,
	})
	if err != nil {
		report.FatalKind = FatalKindFor(err)
		return report, err
	}

	backend := newBackend(session)
	store, err := backend.Load()
	if err != nil {
		report.FatalKind = FatalKindFor(err)
		return report, err
	}

	localPath := strings.TrimSpace(options.LocalPath)
	entry, err := store.Get(localPath)
	if err != nil {
		report.FatalKind = contracts.FailureKindConfig
		return report, err
	}
	if err := store.Remove(localPath); err != nil {
		report.FatalKind = contracts.FailureKindConfig
		return report, err
	}
	if err := backend.Save(store); err != nil {
		report.FatalKind = FatalKindFor(err)
		return report, err
	}

	report.Documents = append(report.Documents, contracts.PerDocumentResult{
		LocalPath: localPath,
		PageID:    entry.PageID,
		Action:    "none",
		Status:    contracts.DocumentStatusSuccess,
		Messages:  []contracts.ResultMessage{{Level: "info", Text: "mapping removed"}},
	})
	return report, nil
}

type MapListOptions struct {
	Flags       config.RuntimeFlags
	Environment config.Environment
	Logs        logging.Provider
}

// RunMapList reports every mapping entry in insertion order.
func RunMapList(workDir string, options MapListOptions) (output.Report, error) {
	report := output.Report{CommandName: string(contracts.CommandMap)}

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
		report.Documents = append(report.Documents, contracts.PerDocumentResult{
			LocalPath: entry.LocalPath,
			PageID:    entry.PageID,
			Action:    "none",
			Status:    contracts.DocumentStatusSuccess,
			Revision:  entry.LastSyncedRevision,
			Messages: []contracts.ResultMessage{{
				Level: "info",
				Text:  "space=" + entry.SpaceKey,
			}},
		})
	}
	return report, nil
}
