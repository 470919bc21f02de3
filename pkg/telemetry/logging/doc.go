// Package logging builds the process logger and carries correlation ids
// through contexts.
//
// # Overview
//
// The logging package configures a log/slog logger with:
//   - JSON, text, and console output formats
//   - Configurable log levels (debug, info, warn, error)
//   - Redaction of credentials (S3 keys, DSN passwords, tokens)
//   - Context helpers attaching run, plan and partition ids
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:         "info",
//	    Format:        "json",
//	    RedactSecrets: true,
//	})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
// Components keep their own logger and derive a per-operation one from the
// context:
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithPartition(ctx, 2)
//	logging.FromContext(ctx, p.logger).Info("partition pruned")
//	// {"msg":"partition pruned","run_id":"...","partition":2}
//
// When the context carries a recording span, trace_id and span_id are added
// as well.
package logging
