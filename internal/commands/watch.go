package commands

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fbain/confluence-markdown-sync/internal/confluence"
	"github.com/fbain/confluence-markdown-sync/internal/config"
	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/logging"
	"github.com/fbain/confluence-markdown-sync/internal/output"
	"github.com/fbain/confluence-markdown-sync/internal/syncer"
)

type WatchOptions struct {
	Debounce    time.Duration
	DryRun      bool
	Flags       config.RuntimeFlags
	Environment config.Environment
	API         confluence.API
	Logs        logging.Provider
	// OnBatch receives the report for each debounced push. The CLI renders
	// it; tests inspect it.
	OnBatch func(report output.Report, err error)
}

// RunWatch pushes Markdown files as they change. Events are debounced so an
// editor's save burst becomes a single push, and the workspace directory
// itself is never watched for content.
func RunWatch(ctx context.Context, workDir string, options WatchOptions) error {
	session, err := OpenSession(workDir, SessionOptions{
		Flags:              options.Flags,
		Environment:        options.Environment,
		Logs:               options.Logs,
		RequireCredentials: !options.DryRun,
	})
	if err != nil {
		return err
	}
	logger := session.Logs.GetLogger("watch")

	api := options.API
	if !options.DryRun {
		api, err = newAPI(session.Settings, options.API)
		if err != nil {
			return err
		}
	}

	pusher := &syncer.Pusher{
		API:       api,
		Backend:   newBackend(session),
		Workspace: session.Workspace,
		Defaults: syncer.Defaults{
			SpaceKey:     session.Settings.SpaceKey,
			ParentPageID: session.Settings.ParentPageID,
			Labels:       session.Settings.Labels,
		},
		DryRun: options.DryRun,
		Logger: logger,
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	root := session.Workspace.Root()
	if err := watchTree(watcher, root); err != nil {
		return err
	}

	debounce := options.Debounce
	if debounce <= 0 {
		debounce = contracts.DefaultWatchDebounce
	}

	pending := make(map[string]struct{})
	var timer *time.Timer
	var flush <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if rel := relativeTo(root, event.Name); rel != "" && !underWorkspaceDir(rel) {
						if err := watchTree(watcher, event.Name); err != nil {
							logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
						}
					}
					continue
				}
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			rel := relativeTo(root, event.Name)
			if rel == "" || underWorkspaceDir(rel) || !strings.HasSuffix(rel, ".md") {
				continue
			}

			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			flush = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)

		case <-flush:
			flush = nil
			timer = nil
			if len(pending) == 0 {
				continue
			}

			paths := make([]string, 0, len(pending))
			for path := range pending {
				paths = append(paths, path)
			}
			sort.Strings(paths)
			pending = make(map[string]struct{})

			results, pushErr := pusher.Push(ctx, paths)
			report := output.Report{
				CommandName: string(contracts.CommandWatch),
				DryRun:      options.DryRun,
				Documents:   results,
			}
			if pushErr != nil {
				report.FatalKind = FatalKindFor(pushErr)
				logger.Error("push failed", "error", pushErr)
			}
			if options.OnBatch != nil {
				options.OnBatch(report, pushErr)
			}
		}
	}
}

func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		name := entry.Name()
		if path != root && (name == contracts.DefaultWorkspaceDir || strings.HasPrefix(name, ".")) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel)
}

func underWorkspaceDir(rel string) bool {
	return rel == contracts.DefaultWorkspaceDir ||
		strings.HasPrefix(rel, contracts.DefaultWorkspaceDir+"/")
}
