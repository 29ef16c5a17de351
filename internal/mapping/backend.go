package mapping

import (
	"errors"
	"os"

	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/fs"
)

// Backend persists a Store. Implementations must make Save atomic: after a
// crash the mapping file holds either the previous or the new document,
// never a torn write.
type Backend interface {
	Load() (*Store, error)
	Save(store *Store) error
}

// FileBackend stores the mapping document inside the workspace directory,
// writing through SafeFS so saves are temp-file-plus-rename atomic.
type FileBackend struct {
	workspace *fs.SafeFS
	path      string
}

func NewFileBackend(workspace *fs.SafeFS, path string) *FileBackend {
	if path == "" {
		path = contracts.DefaultMappingPath
	}
	return &FileBackend{workspace: workspace, path: path}
}

// Load reads and validates the mapping file. A missing file is an empty
// store, not an error.
func (b *FileBackend) Load() (*Store, error) {
	raw, err := b.workspace.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewStore(), nil
		}
		return nil, err
	}
	return DecodeDocument(raw)
}

func (b *FileBackend) Save(store *Store) error {
	raw, err := EncodeDocument(store)
	if err != nil {
		return err
	}
	return b.workspace.WriteFileAtomic(b.path, raw, 0o644)
}

// MemoryBackend keeps the store in memory, for tests and dry runs.
type MemoryBackend struct {
	document []byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Load() (*Store, error) {
	if b.document == nil {
		return NewStore(), nil
	}
	return DecodeDocument(b.document)
}

func (b *MemoryBackend) Save(store *Store) error {
	raw, err := EncodeDocument(store)
	if err != nil {
		return err
	}
	b.document = raw
	return nil
}
