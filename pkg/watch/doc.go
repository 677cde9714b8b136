// Package watch screens files as they appear in a directory.
//
// A Watcher subscribes to filesystem events with fsnotify, ignores files
// whose extension is not configured, waits for writes to a file to settle,
// and then sends the file's contents through an analyzer. Each outcome is
// delivered to a Handler as a Result.
//
//	w, err := watch.New(watch.FromConfig(cfg.Watch, dir), a, logger)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	return w.Watch(ctx, func(r watch.Result) {
//	    if r.Err != nil {
//	        logger.Error("screening failed", "path", r.Path, "error", r.Err)
//	        return
//	    }
//	    fmt.Printf("%s: %.2f\n", r.Path, r.Score.OverallScore)
//	})
//
// Subdirectories present when Watch starts are watched too; directories
// created later are added as they appear.
package watch
