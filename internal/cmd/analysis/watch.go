package analysis

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/plancast/internal/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// DefaultDebounce collapses the burst of events most editors emit for a
// single save.
const DefaultDebounce = 200 * time.Millisecond

type watchOptions struct {
	debounce time.Duration
}

func newWatchCmd() *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch <project-file>",
		Short: "Reschedule a project file every time it changes",
		Long: `Load a project file, then watch it and reschedule on every save.

Each reload prints the task count, the project finish and the critical
path. A save that leaves the file invalid prints the problems and keeps
the last good schedule. Stop with Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0], opts)
		},
	}
	cmd.Flags().DurationVar(&opts.debounce, "debounce", DefaultDebounce, "quiet period after a change before reloading")
	return cmd
}

// RegisterWatchCmd registers the watch command with the given parent command.
func RegisterWatchCmd(parent *cobra.Command) {
	parent.AddCommand(newWatchCmd())
}

func runWatch(cmd *cobra.Command, path string, opts *watchOptions) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	s, err := openProject(cmd, target)
	if err != nil {
		return err
	}
	defer s.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()
	// Watch the directory so saves that replace the file are still seen.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s.summary()
	s.out.linef("%s", s.out.paint(s.out.muted, "Watching "+path+" for changes. Press Ctrl+C to stop."))

	watchLoop(ctx, watcher, target, opts.debounce, s.logger, func() {
		if err := s.load(); err != nil {
			if !IsReported(err) {
				s.out.linef("%s", s.out.paint(s.out.fail, "reload failed: "+err.Error()))
			}
			s.out.linef("%s", s.out.paint(s.out.muted, "Keeping the last good schedule."))
			return
		}
		s.summary()
	})
	return nil
}

// summary prints a one-screen report of the loaded schedule.
func (s *session) summary() {
	r := s.out
	store := s.engine.Store()
	r.blank()
	r.titlef("[%s] %s", time.Now().Format(time.TimeOnly), filepath.Base(s.path))

	res, err := s.engine.CriticalPath()
	if err != nil {
		r.warn(err.Error())
		return
	}
	r.linef("  Tasks:    %d", store.Len())
	r.linef("  Finish:   %s", r.date(res.ProjectFinish))
	names := make([]string, 0, len(res.CriticalPath))
	for _, id := range res.CriticalPath {
		if t, ok := store.Task(id); ok {
			names = append(names, t.Name)
		}
	}
	if len(names) > 0 {
		r.linef("  Critical: %s", r.paint(r.critical, strings.Join(names, " → ")))
	}
}

// watchLoop calls onChange once per burst of writes to target, after no
// further event has arrived for debounce. It returns when ctx is done or
// the watcher is closed.
func watchLoop(ctx context.Context, w *fsnotify.Watcher, target string, debounce time.Duration, logger *logging.Logger, onChange func()) {
	timer := time.NewTimer(0)
	<-timer.C // drain initial timer
	defer timer.Stop()

	target = filepath.Clean(target)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("project file changed", "op", event.Op.String())
			timer.Reset(debounce)

		case <-timer.C:
			onChange()

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("file watcher error", "error", err.Error())
		}
	}
}
