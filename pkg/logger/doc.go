// Package logger provides the structured logging interface used across knexport.
//
// It wraps zerolog with a small interface so components can take a Logger
// and tests can substitute NewNopLogger or NewTestLogger.
//
// Basic usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("run_id", run.ID)
//	log.InfoWithFields("page fetched", map[string]interface{}{"page": 2})
//
// Console output is colorized and written to stderr. When logging.file is set
// the same events are also appended to that file as JSON lines.
package logger
