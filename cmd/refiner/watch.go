package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dukex/refiner/pkg/cmd"
	"github.com/dukex/refiner/pkg/log"
	"github.com/dukex/refiner/pkg/workflowfile"
	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v3"
)

var ErrOutputInsideWatched = errors.New("output directory must differ from the watched directory")

// FileHandler processes one changed workflow file.
type FileHandler func(ctx context.Context, path string) error

// Watcher runs a handler for every workflow file written or created in a directory.
type Watcher struct {
	dir     string
	handle  FileHandler
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

func NewWatcher(dir string, handle FileHandler, logger *slog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()

		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:     dir,
		handle:  handle,
		logger:  logger.With("module", "watcher", "dir", dir),
		watcher: watcher,
	}, nil
}

// Run dispatches file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Watching workflow files")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			w.HandleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}

			w.logger.ErrorContext(ctx, "fsnotify error", "error", err)
		}
	}
}

// HandleEvent runs the handler when event writes or creates a workflow file. It
// reports whether the handler ran.
func (w *Watcher) HandleEvent(ctx context.Context, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}

	if !workflowfile.IsWorkflowFile(event.Name) {
		return false
	}

	w.logger.DebugContext(ctx, "Workflow file changed", "op", event.Op.String(), "file", event.Name)

	if err := w.handle(ctx, event.Name); err != nil {
		w.logger.ErrorContext(ctx, "Failed to refine workflow file", "file", event.Name, "error", err)
	}

	return true
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// refineFile refines the workflow at path in the tree it belongs to and writes the
// result under out with the same file name. Repeated edits of a file share the
// limits of that tree.
func refineFile(r *refiner, out string, logger *slog.Logger) FileHandler {
	return func(ctx context.Context, path string) error {
		workflow, err := workflowfile.Load(path)
		if err != nil {
			return err
		}

		outcome, err := r.orchestrator.Refine(ctx, workflow, cmd.RunOptions(r.config))
		if err != nil {
			return err
		}

		target := filepath.Join(out, filepath.Base(path))
		if err := workflowfile.Save(target, outcome.Workflow); err != nil {
			return err
		}

		summary := summarize(outcome)
		logger.InfoContext(ctx, "Refined workflow file",
			"file", path,
			"output", target,
			"root_id", summary.RootID,
			"state", summary.State,
			"accepted", summary.Accepted,
		)

		return nil
	}
}

// sameDir reports whether a and b resolve to the same directory.
func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)

	return errA == nil && errB == nil && filepath.Clean(absA) == filepath.Clean(absB)
}

func NewWatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Aliases:   []string{"w"},
		Usage:     "Refine workflow files whenever they change",
		ArgsUsage: "<directory>",
		Flags: append(refinerFlags(),
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Usage:    "Directory the refined workflow files are written to",
				Required: true,
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("refiner").With("action", "watch")

			dir := command.Args().First()
			if dir == "" {
				return ErrNoWorkflows
			}

			out := command.String("out")
			if sameDir(dir, out) {
				return ErrOutputInsideWatched
			}

			if err := os.MkdirAll(out, 0o750); err != nil {
				return fmt.Errorf("failed to create output directory %s: %w", out, err)
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r, err := newRefiner(ctx, command, logger)
			if err != nil {
				return err
			}
			defer r.Close(context.Background(), logger)

			watcher, err := NewWatcher(dir, refineFile(r, out, logger), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := watcher.Close(); err != nil {
					logger.Error("Failed to close watcher", "error", err)
				}
			}()

			return watcher.Run(ctx)
		},
	}
}
