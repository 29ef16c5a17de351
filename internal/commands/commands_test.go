package commands

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/fbain/confluence-markdown-sync/internal/config"
	"github.com/fbain/confluence-markdown-sync/internal/confluence"
	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/fs"
	"github.com/fbain/confluence-markdown-sync/internal/logging"
	"github.com/fbain/confluence-markdown-sync/internal/mapping"
	"github.com/fbain/confluence-markdown-sync/internal/output"
	"github.com/fbain/confluence-markdown-sync/internal/syncer"
)

func testEnv() config.Environment {
	return config.Environment{
		BaseURL:  "https://example.atlassian.net/wiki",
		Email:    "user@example.com",
		APIToken: "secret-token",
	}
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

func seedMapping(t *testing.T, root string, entries ...mapping.Entry) {
	t.Helper()
	workspace, err := fs.NewSafeFS(root)
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	backend := mapping.NewFileBackend(workspace, "")
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
}

func loadMapping(t *testing.T, root string) *mapping.Store {
	t.Helper()
	workspace, err := fs.NewSafeFS(root)
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	store, err := mapping.NewFileBackend(workspace, "").Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return store
}

func readFile(t *testing.T, root, name string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(root, name))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(raw)
}

func apiCreateRequest(title, spaceKey, storageBody string) confluence.CreatePageRequest {
	return confluence.CreatePageRequest{Title: title, SpaceKey: spaceKey, StorageBody: storageBody}
}

type fakeAPI struct {
	pages       map[string]confluence.Page
	nextID      int
	getCalls    int
	createCalls int
	updateCalls int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{pages: make(map[string]confluence.Page), nextID: 1000}
}

func (f *fakeAPI) GetPage(ctx context.Context, pageID string) (confluence.Page, error) {
	f.getCalls++
	page, ok := f.pages[pageID]
	if !ok {
		return confluence.Page{}, &confluence.Error{Code: confluence.ErrorCodeNotFound, Message: "page not found"}
	}
	return page, nil
}

func (f *fakeAPI) CreatePage(ctx context.Context, request confluence.CreatePageRequest) (confluence.Page, error) {
	f.createCalls++
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
	page := f.pages[request.PageID]
	page.Title = request.Title
	page.Version = request.BaseVersion + 1
	page.StorageBody = request.StorageBody
	f.pages[request.PageID] = page
	return page, nil
}

func TestInitCreatesWorkspace(t *testing.T) {
	root := t.TempDir()

	report, err := RunInit(root, InitOptions{SpaceKey: "DOCS", BaseURL: "https://example.atlassian.net/wiki"})
	if err != nil {
		t.Fatalf("RunInit: %v", err)
	}
	if len(report.Documents) != 1 || report.Documents[0].Status != contracts.DocumentStatusSuccess {
		t.Fatalf("unexpected report: %#v", report.Documents)
	}

	if _, err := os.Stat(filepath.Join(root, ".cmt", "config.yaml")); err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, ".cmt", "map.json")); err != nil {
		t.Fatalf("mapping file missing: %v", err)
	}

	workspace, err := fs.NewSafeFS(root)
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	fileConfig, err := config.LoadFile(workspace, "")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if fileConfig.SpaceKey != "DOCS" {
		t.Fatalf("space = %q", fileConfig.SpaceKey)
	}
}

func TestInitRefusesToOverwriteWithoutForce(t *testing.T) {
	root := t.TempDir()

	if _, err := RunInit(root, InitOptions{SpaceKey: "DOCS"}); err != nil {
		t.Fatalf("first RunInit: %v", err)
	}

	report, err := RunInit(root, InitOptions{SpaceKey: "OTHER"})
	if err == nil {
		t.Fatal("expected failure on existing config")
	}
	if report.FatalKind != contracts.FailureKindConfig {
		t.Fatalf("fatal kind = %q", report.FatalKind)
	}
	if code := output.ResolveExitCode(report); code != contracts.ExitCodeConfig {
		t.Fatalf("exit code = %d, want %d", code, contracts.ExitCodeConfig)
	}

	if _, err := RunInit(root, InitOptions{SpaceKey: "OTHER", Force: true}); err != nil {
		t.Fatalf("RunInit with force: %v", err)
	}
}

func TestMapAddListRemove(t *testing.T) {
	root := t.TempDir()
	logs := logging.NoOpProvider()

	report, err := RunMapAdd(root, MapAddOptions{
		LocalPath: "docs/guide.md",
		PageID:    "7001",
		SpaceKey:  "DOCS",
		Revision:  4,
		Logs:      logs,
	})
	if err != nil {
		t.Fatalf("RunMapAdd: %v", err)
	}
	if report.Documents[0].PageID != "7001" {
		t.Fatalf("unexpected result: %#v", report.Documents[0])
	}

	// Mapping the same page to a second path must be rejected.
	if _, err := RunMapAdd(root, MapAddOptions{
		LocalPath: "docs/other.md",
		PageID:    "7001",
		SpaceKey:  "DOCS",
		Logs:      logs,
	}); !mapping.IsErrorCode(err, mapping.ErrorCodeDuplicatePage) {
		t.Fatalf("expected duplicate page error, got %v", err)
	}

	listReport, err := RunMapList(root, MapListOptions{Logs: logs})
	if err != nil {
		t.Fatalf("RunMapList: %v", err)
	}
	if len(listReport.Documents) != 1 || listReport.Documents[0].LocalPath != "docs/guide.md" {
		t.Fatalf("unexpected listing: %#v", listReport.Documents)
	}

	if _, err := RunMapRemove(root, MapRemoveOptions{LocalPath: "docs/guide.md", Logs: logs}); err != nil {
		t.Fatalf("RunMapRemove: %v", err)
	}
	if store := loadMapping(t, root); store.Len() != 0 {
		t.Fatalf("expected empty mapping, got %d entries", store.Len())
	}
}

func TestStatusClassifiesLocalState(t *testing.T) {
	root := t.TempDir()
	unchanged := "# Same\n\nbody\n"
	writeFiles(t, root, map[string]string{
		"same.md":    unchanged,
		"changed.md": "# Changed\n\nnew body\n",
	})
	seedMapping(t, root,
		mapping.Entry{LocalPath: "same.md", PageID: "1", SpaceKey: "DOCS",
			LastSyncedRevision: 2, ContentHash: syncer.ContentHash([]byte(unchanged))},
		mapping.Entry{LocalPath: "changed.md", PageID: "2", SpaceKey: "DOCS",
			LastSyncedRevision: 2, ContentHash: "sha256:stale"},
		mapping.Entry{LocalPath: "gone.md", PageID: "3", SpaceKey: "DOCS", LastSyncedRevision: 2},
	)

	report, err := RunStatus(root, StatusOptions{Logs: logging.NoOpProvider()})
	if err != nil {
		t.Fatalf("RunStatus: %v", err)
	}
	if len(report.Documents) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Documents))
	}

	if report.Documents[0].Status != contracts.DocumentStatusSkipped {
		t.Fatalf("same.md should be unchanged: %#v", report.Documents[0])
	}
	if report.Documents[1].Status != contracts.DocumentStatusSuccess {
		t.Fatalf("changed.md should be modified: %#v", report.Documents[1])
	}
	if report.Documents[2].Status != contracts.DocumentStatusFailed {
		t.Fatalf("gone.md should be missing: %#v", report.Documents[2])
	}
}
