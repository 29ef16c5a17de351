package syncer

import (
	"context"

	"github.com/fbain/confluence-markdown-sync/internal/confluence"
	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/converter"
	"github.com/fbain/confluence-markdown-sync/internal/fs"
	"github.com/fbain/confluence-markdown-sync/internal/logging"
	"github.com/fbain/confluence-markdown-sync/internal/mapping"
)

// Puller fetches mapped remote pages, converts them back to Markdown and
// overwrites the local files. The remote page is the source of truth on
// pull; local edits that were never pushed are replaced.
type Puller struct {
	API       confluence.API
	Backend   mapping.Backend
	Workspace *fs.SafeFS
	DryRun    bool
	Logger    logging.Logger
}

func (p *Puller) Pull(ctx context.Context, localPaths []string) ([]contracts.PerDocumentResult, error) {
	logger := p.Logger
	if logger == nil {
		logger = logging.NoOp()
	}

	store, err := p.Backend.Load()
	if err != nil {
		return nil, err
	}

	if len(localPaths) == 0 {
		for _, entry := range store.List() {
			localPaths = append(localPaths, entry.LocalPath)
		}
	}

	results := make([]contracts.PerDocumentResult, 0, len(localPaths))
	for _, localPath := range localPaths {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := p.pullOne(ctx, logger, store, localPath)
		results = append(results, result)

		if result.Status == contracts.DocumentStatusSuccess && !p.DryRun {
			if err := p.Backend.Save(store); err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

func (p *Puller) pullOne(ctx context.Context, logger logging.Logger, store *mapping.Store, localPath string) contracts.PerDocumentResult {
	entry, err := store.Get(localPath)
	if err != nil {
		logger.Error("cannot pull unmapped document", "path", localPath)
		return failedResult(localPath, "", ActionPull, contracts.FailureKindConfig, err)
	}

	remote, err := p.API.GetPage(ctx, entry.PageID)
	if err != nil {
		logger.Error("failed to fetch remote page", "path", localPath, "page_id", entry.PageID, "error", err)
		return failedResult(localPath, entry.PageID, ActionPull, confluence.FailureKindFor(err), err)
	}

	if remote.Version == entry.LastSyncedRevision {
		logger.Debug("remote unchanged since last sync", "path", localPath, "revision", remote.Version)
		return contracts.PerDocumentResult{
			LocalPath: localPath,
			PageID:    entry.PageID,
			Action:    ActionNone,
			Status:    contracts.DocumentStatusSkipped,
			Revision:  remote.Version,
			Messages:  []contracts.ResultMessage{{Level: "info", Text: "remote unchanged since last sync"}},
		}
	}

	tree, parseWarnings, err := converter.ParseStorage([]byte(remote.StorageBody))
	if err != nil {
		logger.Error("failed to convert remote page", "path", localPath, "page_id", entry.PageID, "error", err)
		return failedResult(localPath, entry.PageID, ActionPull, contracts.FailureKindConversion, err)
	}
	rendered := converter.RenderMarkdown(tree)
	warnings := append(parseWarnings, rendered.Warnings...)

	if p.DryRun {
		logger.Info("dry run, stopping after conversion", "path", localPath, "page_id", entry.PageID)
		return contracts.PerDocumentResult{
			LocalPath: localPath,
			PageID:    entry.PageID,
			Action:    ActionPull,
			Status:    contracts.DocumentStatusSkipped,
			Revision:  remote.Version,
			Messages:  warningMessages(warnings),
		}
	}

	body := []byte(rendered.Output)
	if err := p.Workspace.WriteFileAtomic(localPath, body, 0o644); err != nil {
		logger.Error("failed to write local document", "path", localPath, "error", err)
		return failedResult(localPath, entry.PageID, ActionPull, contracts.FailureKindConfig, err)
	}

	entry.LastSyncedRevision = remote.Version
	entry.ContentHash = ContentHash(body)
	if remote.SpaceKey != "" {
		entry.SpaceKey = remote.SpaceKey
	}
	if remote.ParentPageID != "" {
		entry.ParentPageID = remote.ParentPageID
	}
	if err := store.Put(entry); err != nil {
		return failedResult(localPath, entry.PageID, ActionPull, contracts.FailureKindConfig, err)
	}

	logger.Info("page pulled", "path", localPath, "page_id", entry.PageID, "revision", remote.Version)
	return contracts.PerDocumentResult{
		LocalPath: localPath,
		PageID:    entry.PageID,
		Action:    ActionPull,
		Status:    contracts.DocumentStatusSuccess,
		Revision:  remote.Version,
		Messages:  warningMessages(warnings),
	}
}
