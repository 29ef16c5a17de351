// Package cli wires the Cobra command tree to the command bodies, the
// workspace lock, and the shared output plumbing.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fbain/confluence-markdown-sync/internal/cli/middleware"
	"github.com/fbain/confluence-markdown-sync/internal/commands"
	"github.com/fbain/confluence-markdown-sync/internal/config"
	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/lock"
	"github.com/fbain/confluence-markdown-sync/internal/output"
)

type AppContext struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Now     func() time.Time
	WorkDir string
}

type GlobalFlags struct {
	JSON      bool
	BaseURL   string
	Email     string
	Space     string
	Parent    string
	LogLevel  string
	LogFormat string
}

func (flags GlobalFlags) runtimeFlags() config.RuntimeFlags {
	return config.RuntimeFlags{
		BaseURL:      flags.BaseURL,
		Email:        flags.Email,
		SpaceKey:     flags.Space,
		ParentPageID: flags.Parent,
		LogLevel:     flags.LogLevel,
		LogFormat:    flags.LogFormat,
	}
}

type executionState struct {
	global      GlobalFlags
	commandName string
	dryRun      bool
}

func (state *executionState) outputMode() contracts.OutputMode {
	if state.global.JSON {
		return contracts.OutputModeJSON
	}
	return contracts.OutputModeHuman
}

func (state *executionState) resolvedCommandName() string {
	if state.commandName != "" {
		return state.commandName
	}
	return "root"
}

// Run executes the CLI using shared output and exit-code plumbing.
func Run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) int {
	app := normalizeAppContext(AppContext{
		Stdout: stdout,
		Stderr: stderr,
		Now:    time.Now,
	})

	root, state := newRootCommand(app)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return int(contracts.ExitCodeSuccess)
	}

	var exitErr *codedExitError
	if errors.As(err, &exitErr) {
		return int(exitErr.Code)
	}

	report := output.Report{
		CommandName: state.resolvedCommandName(),
		DryRun:      state.dryRun,
		FatalKind:   commands.FatalKindFor(err),
	}
	if renderErr := output.Write(state.outputMode(), app.Stdout, app.Stderr, report, 0, err); renderErr != nil {
		_, _ = fmt.Fprintln(app.Stderr, output.FormatDiagnostic(renderErr))
	}

	code := output.ResolveExitCode(report)
	if code == contracts.ExitCodeSuccess {
		code = contracts.ExitCodeConfig
	}
	return int(code)
}

// NewRootCommand constructs the Cobra command tree for the CLI.
func NewRootCommand(app AppContext) *cobra.Command {
	root, _ := newRootCommand(app)
	return root
}

func newRootCommand(app AppContext) (*cobra.Command, *executionState) {
	app = normalizeAppContext(app)
	state := &executionState{}

	root := &cobra.Command{
		Use:           "cmt",
		Short:         "Sync Markdown files with Confluence wiki pages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.BoolVar(&state.global.JSON, "json", false, "emit machine-readable JSON envelope output")
	flags.StringVar(&state.global.BaseURL, "base-url", "", "Confluence base URL (overrides config and environment)")
	flags.StringVar(&state.global.Email, "email", "", "account email for API authentication")
	flags.StringVar(&state.global.Space, "space", "", "default space key for new pages")
	flags.StringVar(&state.global.Parent, "parent", "", "default parent page ID for new pages")
	flags.StringVar(&state.global.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&state.global.LogFormat, "log-format", "", "log format (console, json, pretty)")

	root.AddCommand(
		newInitCommand(app, state),
		newPushCommand(app, state),
		newPullCommand(app, state),
		newMapCommand(app, state),
		newStatusCommand(app, state),
		newValidateCommand(app, state),
		newWatchCommand(app, state),
	)

	return root, state
}

func newInitCommand(app AppContext, state *executionState) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:    "init",
		Short:  "Initialize the sync workspace",
		Args:   cobra.NoArgs,
		PreRun: recordCommand(state, contracts.CommandInit, nil),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocked(cmd.Context(), app, state, contracts.CommandInit, func(ctx context.Context) (output.Report, error) {
				return commands.RunInit(app.WorkDir, commands.InitOptions{
					BaseURL:      state.global.BaseURL,
					Email:        state.global.Email,
					SpaceKey:     state.global.Space,
					ParentPageID: state.global.Parent,
					Force:        force,
				})
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func newPushCommand(app AppContext, state *executionState) *cobra.Command {
	dryRun := false

	cmd := &cobra.Command{
		Use:    "push [path...]",
		Short:  "Push local Markdown documents to the wiki",
		PreRun: recordCommand(state, contracts.CommandPush, &dryRun),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocked(cmd.Context(), app, state, contracts.CommandPush, func(ctx context.Context) (output.Report, error) {
				return commands.RunPush(ctx, app.WorkDir, commands.PushOptions{
					Paths:  args,
					DryRun: dryRun,
					Flags:  state.global.runtimeFlags(),
				})
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "convert and report without remote writes")
	return cmd
}

func newPullCommand(app AppContext, state *executionState) *cobra.Command {
	dryRun := false

	cmd := &cobra.Command{
		Use:    "pull [path...]",
		Short:  "Pull mapped wiki pages into local Markdown files",
		PreRun: recordCommand(state, contracts.CommandPull, &dryRun),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocked(cmd.Context(), app, state, contracts.CommandPull, func(ctx context.Context) (output.Report, error) {
				return commands.RunPull(ctx, app.WorkDir, commands.PullOptions{
					Paths:  args,
					DryRun: dryRun,
					Flags:  state.global.runtimeFlags(),
				})
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "convert and report without local writes")
	return cmd
}

func newMapCommand(app AppContext, state *executionState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Manage links between local files and wiki pages",
	}

	var revision int
	add := &cobra.Command{
		Use:    "add LOCAL_PATH PAGE_ID",
		Short:  "Link a local file to an existing wiki page",
		Args:   cobra.ExactArgs(2),
		PreRun: recordCommand(state, contracts.CommandMap, nil),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocked(cmd.Context(), app, state, contracts.CommandMap, func(ctx context.Context) (output.Report, error) {
				return commands.RunMapAdd(app.WorkDir, commands.MapAddOptions{
					LocalPath:    args[0],
					PageID:       args[1],
					SpaceKey:     state.global.Space,
					ParentPageID: state.global.Parent,
					Revision:     revision,
					Flags:        state.global.runtimeFlags(),
				})
			})
		},
	}
	add.Flags().IntVar(&revision, "revision", 0, "remote revision to record as last synced")

	remove := &cobra.Command{
		Use:    "remove LOCAL_PATH",
		Short:  "Forget the link for a local file",
		Args:   cobra.ExactArgs(1),
		PreRun: recordCommand(state, contracts.CommandMap, nil),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocked(cmd.Context(), app, state, contracts.CommandMap, func(ctx context.Context) (output.Report, error) {
				return commands.RunMapRemove(app.WorkDir, commands.MapRemoveOptions{
					LocalPath: args[0],
					Flags:     state.global.runtimeFlags(),
				})
			})
		},
	}

	list := &cobra.Command{
		Use:    "list",
		Short:  "List all mapped documents",
		Args:   cobra.NoArgs,
		PreRun: recordCommand(state, contracts.CommandMap, nil),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocked(cmd.Context(), app, state, contracts.CommandMap, func(ctx context.Context) (output.Report, error) {
				return commands.RunMapList(app.WorkDir, commands.MapListOptions{
					Flags: state.global.runtimeFlags(),
				})
			})
		},
	}

	cmd.AddCommand(add, remove, list)
	return cmd
}

func newStatusCommand(app AppContext, state *executionState) *cobra.Command {
	return &cobra.Command{
		Use:    "status",
		Short:  "Show which mapped documents changed locally",
		Args:   cobra.NoArgs,
		PreRun: recordCommand(state, contracts.CommandStatus, nil),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocked(cmd.Context(), app, state, contracts.CommandStatus, func(ctx context.Context) (output.Report, error) {
				return commands.RunStatus(app.WorkDir, commands.StatusOptions{
					Flags: state.global.runtimeFlags(),
				})
			})
		},
	}
}

func newValidateCommand(app AppContext, state *executionState) *cobra.Command {
	var fixturesDir string
	var threshold float64
	var floor float64

	cmd := &cobra.Command{
		Use:    "validate",
		Short:  "Round-trip the fixture corpus and gate on fidelity",
		Args:   cobra.NoArgs,
		PreRun: recordCommand(state, contracts.CommandValidate, nil),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocked(cmd.Context(), app, state, contracts.CommandValidate, func(ctx context.Context) (output.Report, error) {
				return commands.RunValidate(app.WorkDir, commands.ValidateOptions{
					Dir:             fixturesDir,
					Threshold:       threshold,
					PerFixtureFloor: floor,
					Flags:           state.global.runtimeFlags(),
				})
			})
		},
	}

	cmd.Flags().StringVar(&fixturesDir, "fixtures", "fixtures", "fixture corpus directory, relative to the workspace")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum corpus-average fidelity score")
	cmd.Flags().Float64Var(&floor, "floor", 0, "minimum per-fixture fidelity score, 0 disables")
	return cmd
}

func newWatchCommand(app AppContext, state *executionState) *cobra.Command {
	var debounce time.Duration
	dryRun := false

	cmd := &cobra.Command{
		Use:    "watch",
		Short:  "Push Markdown files automatically as they change",
		Args:   cobra.NoArgs,
		PreRun: recordCommand(state, contracts.CommandWatch, &dryRun),
		RunE: func(cmd *cobra.Command, args []string) error {
			locker := newLocker(app, contracts.CommandWatch)
			runner := middleware.WithCommandLock(contracts.CommandWatch, locker, func(ctx context.Context) error {
				err := commands.RunWatch(ctx, app.WorkDir, commands.WatchOptions{
					Debounce: debounce,
					DryRun:   dryRun,
					Flags:    state.global.runtimeFlags(),
					OnBatch: func(report output.Report, batchErr error) {
						if writeErr := output.Write(state.outputMode(), app.Stdout, app.Stderr, report, 0, nil); writeErr != nil {
							_, _ = fmt.Fprintln(app.Stderr, output.FormatDiagnostic(writeErr))
						}
					},
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			return runner(cmd.Context())
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", contracts.DefaultWatchDebounce, "quiet period before pushing accumulated changes")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "convert and report without remote writes")
	return cmd
}

func recordCommand(state *executionState, name contracts.CommandName, dryRun *bool) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		state.commandName = string(name)
		if dryRun != nil {
			state.dryRun = *dryRun
		}
	}
}

func newLocker(app AppContext, command contracts.CommandName) lock.Locker {
	lockPath := filepath.Join(app.WorkDir, contracts.DefaultLockFilePath)
	return lock.NewFileLock(lockPath, lock.Options{Command: string(command)})
}

// runLocked executes a command body under its lock policy, renders the
// report, and converts it to the contract exit code.
func runLocked(ctx context.Context, app AppContext, state *executionState, name contracts.CommandName, body func(context.Context) (output.Report, error)) error {
	locker := newLocker(app, name)
	runner := middleware.WithCommandLock(name, locker, func(ctx context.Context) error {
		start := app.Now()
		report, runErr := body(ctx)
		duration := app.Now().Sub(start)

		if writeErr := output.Write(state.outputMode(), app.Stdout, app.Stderr, report, duration, runErr); writeErr != nil {
			return writeErr
		}

		code := output.ResolveExitCode(report)
		if code == contracts.ExitCodeSuccess && runErr == nil {
			return nil
		}
		if code == contracts.ExitCodeSuccess {
			code = contracts.ExitCodeConfig
		}
		return &codedExitError{Code: code}
	})
	return runner(ctx)
}

func normalizeAppContext(app AppContext) AppContext {
	if app.Now == nil {
		app.Now = time.Now
	}
	if app.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			app.WorkDir = wd
		} else {
			app.WorkDir = "."
		}
	}
	return app
}

type codedExitError struct {
	Code contracts.ExitCode
}

func (err codedExitError) Error() string {
	return fmt.Sprintf("exit with code %d", err.Code)
}
