// Package logging provides structured logging with PII redaction.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON, text, and console formats
//   - Automatic PII redaction implemented as a slog.Handler
//   - Context-aware logging with analysis IDs and fingerprints
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//
//	// Components take the plain *slog.Logger
//	reg := registry.New(logger.Slog())
//
//	ctx = logging.WithAnalysisID(ctx, id)
//	logger.InfoContext(ctx, "analysis completed", "duration_ms", 12)
//
// # PII Redaction
//
// Attributes named text, content, context, evidence or prompt are always
// replaced with [REDACTED]; analyzed content never reaches the log. Other
// string values are scrubbed with pattern rules:
//
//   - Emails: user@example.com → ***@example.com
//   - SSN: 123-45-6789 → ***-**-****
//   - IP addresses: 192.168.1.100 → 192.*.*.*
//   - Credit cards: 4111-1111-1111-1111 → ****-****-****-****
package logging
