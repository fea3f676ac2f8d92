package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/migueldvb/fwrap/tracking"
)

// sourceWatcher reacts to changes of tracked files once events have been
// quiet for the debounce period.
type sourceWatcher struct {
	tracked  map[string]bool
	debounce time.Duration
	react    func(ctx context.Context) error
	log      *zap.SugaredLogger
}

func (w *sourceWatcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	return w.tracked[filepath.Clean(ev.Name)]
}

// run consumes events until ctx is done or a channel closes. Errors from
// react and the watcher are logged; they do not stop the loop.
func (w *sourceWatcher) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debugw("Source changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Stop()
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := w.react(ctx); err != nil {
				w.log.Errorw("Reacting to change failed", "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				return
			}
			w.log.Warnw("Watcher error", "error", err)
		}
	}
}

func (a *app) watchAction(ctx context.Context, cmd *cli.Command) error {
	orch, err := a.orchestrator(cmd)
	if err != nil {
		return err
	}
	name := a.name(cmd)
	st, err := orch.Status(ctx, name)
	if err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating file watcher")
	}
	defer fw.Close()

	tracked := make(map[string]bool, len(st.Files))
	dirs := make(map[string]bool)
	for _, f := range st.Files {
		p := filepath.Join(a.cfg.Dir, filepath.FromSlash(f.Path))
		tracked[p] = true
		dirs[filepath.Dir(p)] = true
	}
	for d := range dirs {
		if err := fw.Add(d); err != nil {
			return errors.Wrapf(err, "watching %s", d)
		}
	}

	a.log.Infow("Watching sources", "artifact", name, "files", len(tracked))
	w := &sourceWatcher{
		tracked:  tracked,
		debounce: cmd.Duration("debounce"),
		react:    a.reaction(orch, name, cmd.Bool("update")),
		log:      a.log,
	}
	w.run(ctx, fw.Events, fw.Errors)
	return nil
}

// reaction reports the artifact status after a change, or updates a stale
// artifact when update is set. Changes are ignored while an update branch
// is checked out: its sources belong to the old head.
func (a *app) reaction(orch *tracking.Orchestrator, name string, update bool) func(context.Context) error {
	return func(ctx context.Context) error {
		st, err := orch.Status(ctx, name)
		if err != nil {
			return err
		}
		if st.Pending != "" {
			a.log.Infow("Update branch checked out, ignoring changes until it is merged", "branch", st.Pending)
			return nil
		}
		if !update || !st.NeedsUpdate {
			return renderStatus(a.stdout, st, "text", false)
		}
		res, err := orch.Update(ctx, name, tracking.UpdateOptions{})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "updated on branch %s (head %s)\n", res.Branch, res.Head)
		return nil
	}
}
