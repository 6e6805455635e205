package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const defaultDebounce = 100 * time.Millisecond

var watchCmd = cobra.Command{
	Use:   "watch <template> <data> <output>",
	Short: "Re-render whenever the template or the data changes",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		debounce, _ := cmd.Flags().GetDuration("debounce")
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return watch(ctx, cmd, args[0], args[1], args[2], debounce)
	},
}

// watch renders once and then again after every change to one of the
// inputs. Render failures are logged and do not stop the watch.
func watch(ctx context.Context, cmd *cobra.Command, tplPath, dataPath, out string, debounce time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	// Editors often replace files instead of writing them, so the
	// directories are watched and events filtered by name.
	inputs := map[string]bool{}
	for _, p := range []string{tplPath, dataPath} {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		inputs[abs] = true
		if err := w.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
	}

	rebuild := func() {
		start := time.Now()
		t, err := app.parse(ctx, tplPath)
		if err == nil {
			err = renderTo(cmd, t, dataPath, out)
		}
		if err != nil {
			app.logger.Error("render failed", "template", tplPath, "error", err)
			return
		}
		app.logger.Info("rendered", "output", out, "took", time.Since(start).Round(time.Millisecond))
	}
	rebuild()

	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if abs, _ := filepath.Abs(event.Name); !inputs[abs] {
				continue
			}
			app.logger.Debug("input changed", "path", event.Name, "op", event.Op.String())
			timer.Reset(debounce)
		case <-timer.C:
			rebuild()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			app.logger.Warn("watcher error", "error", err)
		}
	}
}
