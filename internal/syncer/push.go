package syncer

import (
	"context"

	"github.com/fbain/confluence-markdown-sync/internal/confluence"
	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/converter"
	"github.com/fbain/confluence-markdown-sync/internal/document"
	"github.com/fbain/confluence-markdown-sync/internal/fs"
	"github.com/fbain/confluence-markdown-sync/internal/logging"
	"github.com/fbain/confluence-markdown-sync/internal/mapping"
)

// Pusher converts local documents to storage format and submits them to the
// remote wiki. Each document is isolated: one failure never aborts the
// batch, and the mapping file is saved after every successful submission.
type Pusher struct {
	API       confluence.API
	Backend   mapping.Backend
	Workspace *fs.SafeFS
	Defaults  Defaults
	DryRun    bool
	Logger    logging.Logger
}

func (p *Pusher) Push(ctx context.Context, localPaths []string) ([]contracts.PerDocumentResult, error) {
	logger := p.Logger
	if logger == nil {
		logger = logging.NoOp()
	}

	store, err := p.Backend.Load()
	if err != nil {
		return nil, err
	}

	results := make([]contracts.PerDocumentResult, 0, len(localPaths))
	for _, localPath := range localPaths {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := p.pushOne(ctx, logger, store, localPath)
		results = append(results, result)

		if result.Status == contracts.DocumentStatusSuccess && !p.DryRun {
			if err := p.Backend.Save(store); err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

func (p *Pusher) pushOne(ctx context.Context, logger logging.Logger, store *mapping.Store, localPath string) contracts.PerDocumentResult {
	doc, err := document.Load(p.Workspace, localPath)
	if err != nil {
		logger.Error("failed to load document", "path", localPath, "error", err)
		return failedResult(localPath, "", ActionNone, contracts.FailureKindConversion, err)
	}

	tree, parseWarnings, err := converter.ParseMarkdown(doc.Body)
	if err != nil {
		logger.Error("conversion failed", "path", localPath, "error", err)
		return failedResult(localPath, "", ActionNone, contracts.FailureKindConversion, err)
	}
	rendered := converter.RenderStorage(tree)
	warnings := append(parseWarnings, rendered.Warnings...)

	entry, getErr := store.Get(localPath)
	mapped := getErr == nil

	spaceKey := firstNonEmpty(doc.Overrides.SpaceKey, entry.SpaceKey, p.Defaults.SpaceKey)
	if spaceKey == "" {
		return failedResult(localPath, entry.PageID, ActionNone, contracts.FailureKindConfig,
			&configFieldError{localPath: localPath, field: "space key"})
	}
	parentPageID := firstNonEmpty(doc.Overrides.ParentPageID, entry.ParentPageID, p.Defaults.ParentPageID)
	labels := doc.Overrides.Labels
	if len(labels) == 0 {
		labels = p.Defaults.Labels
	}

	action := ActionCreate
	if mapped {
		action = ActionUpdate
	}

	hash := ContentHash(doc.Body)
	if mapped && entry.ContentHash == hash {
		logger.Debug("document unchanged since last sync", "path", localPath)
		return contracts.PerDocumentResult{
			LocalPath: localPath,
			PageID:    entry.PageID,
			Action:    ActionNone,
			Status:    contracts.DocumentStatusSkipped,
			Revision:  entry.LastSyncedRevision,
			Messages:  []contracts.ResultMessage{{Level: "info", Text: "unchanged since last sync"}},
		}
	}

	if p.DryRun {
		logger.Info("dry run, stopping after conversion", "path", localPath, "action", action)
		return contracts.PerDocumentResult{
			LocalPath: localPath,
			PageID:    entry.PageID,
			Action:    action,
			Status:    contracts.DocumentStatusSkipped,
			Revision:  entry.LastSyncedRevision,
			Messages:  warningMessages(warnings),
		}
	}

	if mapped {
		remote, err := p.API.GetPage(ctx, entry.PageID)
		if err != nil {
			logger.Error("failed to fetch remote page", "path", localPath, "page_id", entry.PageID, "error", err)
			return failedResult(localPath, entry.PageID, action, confluence.FailureKindFor(err), err)
		}
		if err := CheckRevision(entry, remote); err != nil {
			logger.Warn("version conflict, refusing to overwrite remote edits",
				"path", localPath, "page_id", entry.PageID,
				"last_synced", entry.LastSyncedRevision, "remote", remote.Version)
			return failedResult(localPath, entry.PageID, action, contracts.FailureKindConflict, err)
		}

		updated, err := p.API.UpdatePage(ctx, confluence.UpdatePageRequest{
			PageID:      entry.PageID,
			Title:       doc.Title,
			SpaceKey:    spaceKey,
			BaseVersion: remote.Version,
			StorageBody: rendered.Output,
			Labels:      labels,
		})
		if err != nil {
			logger.Error("update failed", "path", localPath, "page_id", entry.PageID, "error", err)
			return failedResult(localPath, entry.PageID, action, confluence.FailureKindFor(err), err)
		}

		entry.SpaceKey = spaceKey
		entry.ParentPageID = parentPageID
		entry.LastSyncedRevision = updated.Version
		entry.ContentHash = hash
		if err := store.Put(entry); err != nil {
			return failedResult(localPath, entry.PageID, action, contracts.FailureKindConfig, err)
		}

		logger.Info("page updated", "path", localPath, "page_id", entry.PageID, "revision", updated.Version)
		return contracts.PerDocumentResult{
			LocalPath: localPath,
			PageID:    entry.PageID,
			Action:    ActionUpdate,
			Status:    contracts.DocumentStatusSuccess,
			Revision:  updated.Version,
			Messages:  warningMessages(warnings),
		}
	}

	created, err := p.API.CreatePage(ctx, confluence.CreatePageRequest{
		Title:        doc.Title,
		SpaceKey:     spaceKey,
		ParentPageID: parentPageID,
		StorageBody:  rendered.Output,
		Labels:       labels,
	})
	if err != nil {
		logger.Error("create failed", "path", localPath, "error", err)
		return failedResult(localPath, "", action, confluence.FailureKindFor(err), err)
	}

	newEntry := mapping.Entry{
		LocalPath:          localPath,
		PageID:             created.ID,
		SpaceKey:           spaceKey,
		ParentPageID:       parentPageID,
		LastSyncedRevision: created.Version,
		ContentHash:        hash,
	}
	if err := store.Put(newEntry); err != nil {
		return failedResult(localPath, created.ID, action, contracts.FailureKindConfig, err)
	}

	logger.Info("page created", "path", localPath, "page_id", created.ID, "revision", created.Version)
	return contracts.PerDocumentResult{
		LocalPath: localPath,
		PageID:    created.ID,
		Action:    ActionCreate,
		Status:    contracts.DocumentStatusSuccess,
		Revision:  created.Version,
		Messages:  warningMessages(warnings),
	}
}

type configFieldError struct {
	localPath string
	field     string
}

func (err *configFieldError) Error() string {
	return "no " + err.field + " configured for " + err.localPath +
		": set it in front matter or workspace configuration"
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
