package syncer

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/converter"
)

// Actions recorded in per-document results.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionPull   = "pull"
	ActionNone   = "none"
)

// Defaults are the workspace-level values applied when a document does not
// override them in front matter and the mapping entry carries none.
type Defaults struct {
	SpaceKey     string
	ParentPageID string
	Labels       []string
}

// ContentHash fingerprints a document body. Matching hashes mean the local
// file has not changed since the recorded sync.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func warningMessages(warnings []converter.Warning) []contracts.ResultMessage {
	if len(warnings) == 0 {
		return nil
	}
	messages := make([]contracts.ResultMessage, 0, len(warnings))
	for _, warning := range warnings {
		text := warning.Message
		if warning.Location != "" {
			text = warning.Location + ": " + text
		}
		messages = append(messages, contracts.ResultMessage{Level: "warn", Text: text})
	}
	return messages
}

func failedResult(localPath, pageID, action string, kind contracts.FailureKind, err error) contracts.PerDocumentResult {
	return contracts.PerDocumentResult{
		LocalPath:   localPath,
		PageID:      pageID,
		Action:      action,
		Status:      contracts.DocumentStatusFailed,
		FailureKind: kind,
		Messages: []contracts.ResultMessage{
			{Level: "error", Text: err.Error()},
		},
	}
}
