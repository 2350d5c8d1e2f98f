package source

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/feustey/mcp/internal/mcperr"
)

// Watch watches a local directory for writes/creates and pushes the changed
// path's URI onto changed until ctx is cancelled. Continuous ingestion of
// file:// sources (spec §2 C2 "continuously... updates a shadow index")
// uses this instead of a poll loop.
func Watch(ctx context.Context, dir string, changed chan<- string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return mcperr.New(mcperr.Transient, "ingestion.source", "create fs watcher", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return mcperr.New(mcperr.Invalid, "ingestion.source", "watch "+dir, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					select {
					case changed <- "file://" + ev.Name:
					case <-ctx.Done():
						return
					}
				}
			case <-w.Errors:
				// best-effort: a watcher error doesn't stop the loop, the next
				// scheduled ingest pass will catch up.
			}
		}
	}()
	return nil
}
