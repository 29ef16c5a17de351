// Package mapping maintains the durable link between local Markdown files
// and remote pages. The store is an insertion-ordered set of entries keyed
// by local path, persisted as a single versioned JSON document.
package mapping

import (
	"fmt"
	"strings"
)

// Entry links one local file to one remote page. A local path and a page ID
// each appear in at most one entry.
type Entry struct {
	LocalPath          string `json:"local_path"`
	PageID             string `json:"page_id"`
	SpaceKey           string `json:"space_key"`
	ParentPageID       string `json:"parent_page_id,omitempty"`
	LastSyncedRevision int    `json:"last_synced_revision"`
	ContentHash        string `json:"content_hash,omitempty"`
}

// Store holds the mapping entries in insertion order. It is not safe for
// concurrent use; command-level locking serializes access.
type Store struct {
	entries []Entry
	byPath  map[string]int
	byPage  map[string]int
}

func NewStore() *Store {
	return &Store{
		byPath: make(map[string]int),
		byPage: make(map[string]int),
	}
}

func (s *Store) Len() int {
	return len(s.entries)
}

// Get returns the entry for a local path.
func (s *Store) Get(localPath string) (Entry, error) {
	index, ok := s.byPath[localPath]
	if !ok {
		return Entry{}, &Error{
			Code:    ErrorCodeNotFound,
			Message: fmt.Sprintf("no mapping for %s", localPath),
		}
	}
	return s.entries[index], nil
}

// GetByPageID returns the entry for a remote page ID.
func (s *Store) GetByPageID(pageID string) (Entry, error) {
	index, ok := s.byPage[pageID]
	if !ok {
		return Entry{}, &Error{
			Code:    ErrorCodeNotFound,
			Message: fmt.Sprintf("no mapping for page %s", pageID),
		}
	}
	return s.entries[index], nil
}

// Put inserts or updates the entry for entry.LocalPath. The page ID of an
// existing entry is immutable; remapping a path requires removing it first.
func (s *Store) Put(entry Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}

	if index, ok := s.byPath[entry.LocalPath]; ok {
		existing := s.entries[index]
		if existing.PageID != entry.PageID {
			return &Error{
				Code: ErrorCodePageIDImmutable,
				Message: fmt.Sprintf("%s is mapped to page %s; remove the mapping before remapping to %s",
					entry.LocalPath, existing.PageID, entry.PageID),
			}
		}
		s.entries[index] = entry
		return nil
	}

	if other, ok := s.byPage[entry.PageID]; ok {
		return &Error{
			Code: ErrorCodeDuplicatePage,
			Message: fmt.Sprintf("page %s is already mapped to %s",
				entry.PageID, s.entries[other].LocalPath),
		}
	}

	s.byPath[entry.LocalPath] = len(s.entries)
	s.byPage[entry.PageID] = len(s.entries)
	s.entries = append(s.entries, entry)
	return nil
}

// Remove deletes the entry for a local path, preserving the order of the
// remaining entries.
func (s *Store) Remove(localPath string) error {
	index, ok := s.byPath[localPath]
	if !ok {
		return &Error{
			Code:    ErrorCodeNotFound,
			Message: fmt.Sprintf("no mapping for %s", localPath),
		}
	}

	removed := s.entries[index]
	s.entries = append(s.entries[:index], s.entries[index+1:]...)
	delete(s.byPath, localPath)
	delete(s.byPage, removed.PageID)
	for i := index; i < len(s.entries); i++ {
		s.byPath[s.entries[i].LocalPath] = i
		s.byPage[s.entries[i].PageID] = i
	}
	return nil
}

// List returns the entries in insertion order. The slice is a copy.
func (s *Store) List() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func validateEntry(entry Entry) error {
	if strings.TrimSpace(entry.LocalPath) == "" {
		return &Error{Code: ErrorCodeInvalidEntry, Message: "entry local path must not be empty"}
	}
	if strings.TrimSpace(entry.PageID) == "" {
		return &Error{Code: ErrorCodeInvalidEntry, Message: "entry page id must not be empty"}
	}
	if strings.TrimSpace(entry.SpaceKey) == "" {
		return &Error{Code: ErrorCodeInvalidEntry, Message: "entry space key must not be empty"}
	}
	if entry.LastSyncedRevision < 0 {
		return &Error{Code: ErrorCodeInvalidEntry, Message: "entry revision must not be negative"}
	}
	return nil
}
