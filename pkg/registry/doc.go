// Package registry holds the named analysis models used by the analyzer.
//
// Models implement Capability. The registry is read-mostly: models are
// registered at startup and queried on every analysis.
//
//	reg := registry.New(logger)
//	if err := reg.Register("rules", detector.NewModel(nil)); err != nil {
//		return err
//	}
//	fragments, err := reg.Query(ctx, safety.Request{Text: text})
package registry
