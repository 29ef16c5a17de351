package syncer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/fbain/confluence-markdown-sync/internal/confluence"
	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/fs"
	"github.com/fbain/confluence-markdown-sync/internal/mapping"
)

type fakeAPI struct {
	pages       map[string]confluence.Page
	getErr      map[string]error
	updateErr   error
	createErr   error
	nextID      int
	getCalls    int
	createCalls int
	updateCalls int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{pages: make(map[string]confluence.Page), getErr: make(map[string]error), nextID: 1000}
}

func (f *fakeAPI) GetPage(ctx context.Context, pageID string) (confluence.Page, error) {
	f.getCalls++
	if err := f.getErr[pageID]; err != nil {
		return confluence.Page{}, err
	}
	page, ok := f.pages[pageID]
	if !ok {
		return confluence.Page{}, &confluence.Error{Code: confluence.ErrorCodeNotFound, Message: "page not found"}
	}
	return page, nil
}

func (f *fakeAPI) CreatePage(ctx context.Context, request confluence.CreatePageRequest) (confluence.Page, error) {
	f.createCalls++
	if f.createErr != nil {
		return confluence.Page{}, f.createErr
	}
	f.nextID++
	page := confluence.Page{
		ID:           strconv.Itoa(f.nextID),
		Title:        request.Title,
		SpaceKey:     request.SpaceKey,
		ParentPageID: request.ParentPageID,
		Version:      1,
		StorageBody:  request.StorageBody,
		Labels:       request.Labels,
	}
	f.pages[page.ID] = page
	return page, nil
}

func (f *fakeAPI) UpdatePage(ctx context.Context, request confluence.UpdatePageRequest) (confluence.Page, error) {
	f.updateCalls++
	if f.updateErr != nil {
		return confluence.Page{}, f.updateErr
	}
	page := f.pages[request.PageID]
	page.Title = request.Title
	page.Version = request.BaseVersion + 1
	page.StorageBody = request.StorageBody
	f.pages[request.PageID] = page
	return page, nil
}

func newWorkspace(t *testing.T, files map[string]string) *fs.SafeFS {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	workspace, err := fs.NewSafeFS(root)
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	return workspace
}

func seedBackend(t *testing.T, entries ...mapping.Entry) *mapping.MemoryBackend {
	t.Helper()
	backend := mapping.NewMemoryBackend()
	store, err := backend.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, entry := range entries {
		if err := store.Put(entry); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := backend.Save(store); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return backend
}

func TestPushCreatesUnmappedDocument(t *testing.T) {
	workspace := newWorkspace(t, map[string]string{
		"guide.md": "# Guide\n\nSome **content** here.\n",
	})
	api := newFakeAPI()
	backend := seedBackend(t)

	pusher := &Pusher{
		API:       api,
		Backend:   backend,
		Workspace: workspace,
		Defaults:  Defaults{SpaceKey: "DOCS"},
	}

	results, err := pusher.Push(context.Background(), []string{"guide.md"})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}

	result := results[0]
	if result.Status != contracts.DocumentStatusSuccess || result.Action != ActionCreate {
		t.Fatalf("unexpected result: %#v", result)
	}
	if api.createCalls != 1 {
		t.Fatalf("create calls = %d, want 1", api.createCalls)
	}

	store, err := backend.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	entry, err := store.Get("guide.md")
	if err != nil {
		t.Fatalf("mapping entry not persisted: %v", err)
	}
	if entry.PageID != result.PageID || entry.LastSyncedRevision != 1 {
		t.Fatalf("unexpected entry: %#v", entry)
	}
	if entry.SpaceKey != "DOCS" {
		t.Fatalf("space = %q, want default DOCS", entry.SpaceKey)
	}
	if entry.ContentHash == "" {
		t.Fatal("content hash must be recorded")
	}
}

func TestPushUpdatesMappedDocument(t *testing.T) {
	workspace := newWorkspace(t, map[string]string{
		"guide.md": "# Guide\n\nRevised content.\n",
	})
	api := newFakeAPI()
	api.pages["500"] = confluence.Page{ID: "500", SpaceKey: "DOCS", Version: 3}
	backend := seedBackend(t, mapping.Entry{
		LocalPath:          "guide.md",
		PageID:             "500",
		SpaceKey:           "DOCS",
		LastSyncedRevision: 3,
		ContentHash:        "sha256:stale",
	})

	pusher := &Pusher{API: api, Backend: backend, Workspace: workspace}

	results, err := pusher.Push(context.Background(), []string{"guide.md"})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	result := results[0]
	if result.Status != contracts.DocumentStatusSuccess || result.Action != ActionUpdate {
		t.Fatalf("unexpected result: %#v", result)
	}
	if result.Revision != 4 {
		t.Fatalf("revision = %d, want 4", result.Revision)
	}

	store, _ := backend.Load()
	entry, _ := store.Get("guide.md")
	if entry.LastSyncedRevision != 4 {
		t.Fatalf("entry revision = %d, want 4", entry.LastSyncedRevision)
	}
}

func TestPushConflictWritesNothing(t *testing.T) {
	workspace := newWorkspace(t, map[string]string{
		"guide.md": "# Guide\n\nLocal edit.\n",
	})
	api := newFakeAPI()
	// Remote moved from revision 3 to 5 since the last sync.
	api.pages["500"] = confluence.Page{ID: "500", SpaceKey: "DOCS", Version: 5}
	seeded := mapping.Entry{
		LocalPath:          "guide.md",
		PageID:             "500",
		SpaceKey:           "DOCS",
		LastSyncedRevision: 3,
		ContentHash:        "sha256:stale",
	}
	backend := seedBackend(t, seeded)

	pusher := &Pusher{API: api, Backend: backend, Workspace: workspace}

	results, err := pusher.Push(context.Background(), []string{"guide.md"})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	result := results[0]
	if result.Status != contracts.DocumentStatusFailed {
		t.Fatalf("expected failed result, got %#v", result)
	}
	if result.FailureKind != contracts.FailureKindConflict {
		t.Fatalf("failure kind = %q, want conflict", result.FailureKind)
	}
	if api.updateCalls != 0 {
		t.Fatalf("conflict must block the write, got %d update calls", api.updateCalls)
	}

	store, _ := backend.Load()
	entry, _ := store.Get("guide.md")
	if entry != seeded {
		t.Fatalf("mapping entry changed on conflict: %#v", entry)
	}

	if contracts.ResolveExitCode(results, contracts.FailureKindNone) != contracts.ExitCodeAPI {
		t.Fatalf("conflict must map to exit code %d", contracts.ExitCodeAPI)
	}
}

func TestPushBatchIsolation(t *testing.T) {
	workspace := newWorkspace(t, map[string]string{
		"a.md": "# A\n\nfine\n",
		"b.md": "# B\n\n```go\nunterminated\n",
		"c.md": "# C\n\nalso fine\n",
	})
	api := newFakeAPI()
	backend := seedBackend(t)

	pusher := &Pusher{
		API:       api,
		Backend:   backend,
		Workspace: workspace,
		Defaults:  Defaults{SpaceKey: "DOCS"},
	}

	results, err := pusher.Push(context.Background(), []string{"a.md", "b.md", "c.md"})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if results[0].Status != contracts.DocumentStatusSuccess {
		t.Fatalf("a.md should succeed: %#v", results[0])
	}
	if results[1].Status != contracts.DocumentStatusFailed || results[1].FailureKind != contracts.FailureKindConversion {
		t.Fatalf("b.md should fail conversion: %#v", results[1])
	}
	if results[2].Status != contracts.DocumentStatusSuccess {
		t.Fatalf("c.md should still be processed after b.md failed: %#v", results[2])
	}

	if api.createCalls != 2 {
		t.Fatalf("create calls = %d, want 2", api.createCalls)
	}
	if code := contracts.ResolveExitCode(results, contracts.FailureKindNone); code != contracts.ExitCodeConversion {
		t.Fatalf("exit code = %d, want %d", code, contracts.ExitCodeConversion)
	}
}

func TestPushDryRunStopsAfterConversion(t *testing.T) {
	workspace := newWorkspace(t, map[string]string{
		"guide.md": "# Guide\n\ncontent\n",
	})
	api := newFakeAPI()
	backend := seedBackend(t)

	pusher := &Pusher{
		API:       api,
		Backend:   backend,
		Workspace: workspace,
		Defaults:  Defaults{SpaceKey: "DOCS"},
		DryRun:    true,
	}

	results, err := pusher.Push(context.Background(), []string{"guide.md"})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	result := results[0]
	if result.Status != contracts.DocumentStatusSkipped || result.Action != ActionCreate {
		t.Fatalf("unexpected dry-run result: %#v", result)
	}
	if api.getCalls+api.createCalls+api.updateCalls != 0 {
		t.Fatal("dry run must not touch the remote API")
	}

	store, _ := backend.Load()
	if store.Len() != 0 {
		t.Fatal("dry run must not persist mapping entries")
	}
}

func TestPushSkipsUnchangedDocument(t *testing.T) {
	body := "# Guide\n\ncontent\n"
	workspace := newWorkspace(t, map[string]string{"guide.md": body})
	api := newFakeAPI()
	backend := seedBackend(t, mapping.Entry{
		LocalPath:          "guide.md",
		PageID:             "500",
		SpaceKey:           "DOCS",
		LastSyncedRevision: 3,
		ContentHash:        ContentHash([]byte(body)),
	})

	pusher := &Pusher{API: api, Backend: backend, Workspace: workspace}

	results, err := pusher.Push(context.Background(), []string{"guide.md"})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	result := results[0]
	if result.Status != contracts.DocumentStatusSkipped || result.Action != ActionNone {
		t.Fatalf("unexpected result: %#v", result)
	}
	if api.getCalls != 0 {
		t.Fatal("unchanged document must not hit the API")
	}
}

func TestPushMissingSpaceIsConfigFailure(t *testing.T) {
	workspace := newWorkspace(t, map[string]string{
		"guide.md": "# Guide\n\ncontent\n",
	})
	pusher := &Pusher{API: newFakeAPI(), Backend: seedBackend(t), Workspace: workspace}

	results, err := pusher.Push(context.Background(), []string{"guide.md"})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	result := results[0]
	if result.FailureKind != contracts.FailureKindConfig {
		t.Fatalf("failure kind = %q, want config", result.FailureKind)
	}
	if code := contracts.ResolveExitCode(results, contracts.FailureKindNone); code != contracts.ExitCodeConfig {
		t.Fatalf("exit code = %d, want %d", code, contracts.ExitCodeConfig)
	}
}

func TestPushMappingWriteFailureIsConfigFailure(t *testing.T) {
	workspace := newWorkspace(t, map[string]string{
		"guide.md": "# Guide\n\ncontent\n",
	})
	api := newFakeAPI()
	// The fake hands out page 1001 first; seeding it under another path
	// makes the mapping store reject the new entry after the create.
	backend := seedBackend(t, mapping.Entry{
		LocalPath:          "other.md",
		PageID:             "1001",
		SpaceKey:           "DOCS",
		LastSyncedRevision: 1,
	})

	pusher := &Pusher{
		API:       api,
		Backend:   backend,
		Workspace: workspace,
		Defaults:  Defaults{SpaceKey: "DOCS"},
	}

	results, err := pusher.Push(context.Background(), []string{"guide.md"})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if api.createCalls != 1 {
		t.Fatalf("create calls = %d, want 1", api.createCalls)
	}

	result := results[0]
	if result.Status != contracts.DocumentStatusFailed {
		t.Fatalf("expected failed result, got %#v", result)
	}
	if result.FailureKind != contracts.FailureKindConfig {
		t.Fatalf("failure kind = %q, want config", result.FailureKind)
	}
	if code := contracts.ResolveExitCode(results, contracts.FailureKindNone); code != contracts.ExitCodeConfig {
		t.Fatalf("exit code = %d, want %d", code, contracts.ExitCodeConfig)
	}
}

func TestCheckRevision(t *testing.T) {
	testCases := []struct {
		name         string
		lastSynced   int
		remote       int
		wantConflict bool
	}{
		{name: "equal revisions", lastSynced: 4, remote: 4, wantConflict: false},
		{name: "remote ahead", lastSynced: 4, remote: 5, wantConflict: true},
		{name: "remote behind", lastSynced: 4, remote: 3, wantConflict: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entry := mapping.Entry{LocalPath: "a.md", PageID: "1", LastSyncedRevision: tc.lastSynced}
			err := CheckRevision(entry, confluence.Page{ID: "1", Version: tc.remote})
			if tc.wantConflict {
				if !IsVersionConflict(err) {
					t.Fatalf("expected conflict, got %v", err)
				}
				wantFragment := fmt.Sprintf("remote revision %d", tc.remote)
				if !strings.Contains(err.Error(), wantFragment) {
					t.Fatalf("error message missing %q: %v", wantFragment, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected conflict: %v", err)
			}
		})
	}
}
