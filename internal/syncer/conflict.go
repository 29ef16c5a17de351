// Package syncer implements the push and pull pipelines that move content
// between local Markdown files and remote pages, guarded by optimistic
// revision checks.
package syncer

import (
	"errors"
	"fmt"

	"github.com/fbain/confluence-markdown-sync/internal/confluence"
	"github.com/fbain/confluence-markdown-sync/internal/mapping"
)

// VersionConflictError reports that the remote page moved past the revision
// the local file was last synced against. The push pipeline never writes
// when this is returned.
type VersionConflictError struct {
	LocalPath string
	PageID    string
	Expected  int
	Actual    int
}

func (err *VersionConflictError) Error() string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("version conflict on %s (page %s): last synced revision %d, remote revision %d",
		err.LocalPath, err.PageID, err.Expected, err.Actual)
}

func IsVersionConflict(err error) bool {
	var conflictErr *VersionConflictError
	if errors.As(err, &conflictErr) {
		return true
	}
	return confluence.IsErrorCode(err, confluence.ErrorCodeVersionConflict)
}

// CheckRevision compares the remote revision against the entry's last
// synced revision. Any difference is a conflict, including the remote
// moving backwards; equality is the only safe state.
func CheckRevision(entry mapping.Entry, remote confluence.Page) error {
	if remote.Version == entry.LastSyncedRevision {
		return nil
	}
	return &VersionConflictError{
		LocalPath: entry.LocalPath,
		PageID:    entry.PageID,
		Expected:  entry.LastSyncedRevision,
		Actual:    remote.Version,
	}
}
