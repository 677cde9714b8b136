// Package tracing provides OpenTelemetry tracing for Aegis.
//
// A Tracer built from config.TracingConfig exports spans over OTLP gRPC.
// When tracing is disabled the Tracer hands out noop spans, so callers
// never need to check whether tracing is on:
//
//	tracer, err := tracing.New(cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	a := analyzer.New(cfg.Analyzer, reg, store, analyzer.WithTracer(tracer.Tracer()))
//
// # Spans
//
// The analyzer opens one span per analysis (analyzer.analyze) and one per
// batch (analyzer.batch). Span attributes live in the "aegis.*" namespace
// and never include the analyzed text, only its length and fingerprint.
//
// # Sampling
//
// Three strategies are supported, each wrapped in a parent-based sampler
// so a sampled parent always yields sampled children:
//
//	telemetry:
//	  tracing:
//	    sampler: ratio     # always, never or ratio
//	    sample_ratio: 0.1
package tracing
