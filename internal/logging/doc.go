// Package logging provides structured logging for plancast.
//
// The package wraps Go's log/slog to emit one JSON object per line. Engine
// components receive a *Logger and derive child loggers that carry context:
//
//	log := logger.WithComponent("scheduler")
//	log.WithTask(12).Debug("recomputed", "start", start, "end", end)
//
//	runLog := logger.WithComponent("forecast").WithRun(runID)
//	runLog.Info("forecast complete", "iterations", n, "p80", p80)
//
// The CLI creates the logger from the logging section of the configuration:
//
//	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
// Reports are written to stdout, so the logger never targets stdout. An
// empty directory selects stderr. Tests and library callers that do not
// care about logs use [NopLogger].
//
// # Thread Safety
//
// [Logger] is safe for concurrent use. Child loggers share the underlying
// handler, so Monte Carlo workers can log through the same instance.
package logging
