// Package analyzer orchestrates content safety analysis.
//
// An Analyzer combines a model registry, a result cache and a bounded
// worker pool. Each request is fingerprinted; cached scores are returned
// as copies without touching the pool. Misses run on the pool, where every
// ready model screens the text and their category scores are merged under
// <model>_<category> keys. The caller waits at most the configured
// timeout.
//
//	a := analyzer.New(cfg.Analyzer, nil, nil, analyzer.WithLogger(logger))
//	defer a.Close()
//
//	if err := a.Register(detector.DefaultModelName, detector.NewModel(nil)); err != nil {
//	    return err
//	}
//
//	score, err := a.Analyze(ctx, "some text")
//	if errors.Is(err, safety.ErrProcessingTimeout) {
//	    // the job was cancelled; nothing was cached
//	}
//
// Batch preserves input order. In parallel mode each item runs on its own
// goroutine; the first error cancels the rest.
package analyzer
