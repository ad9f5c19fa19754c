// Package logger provides the structured logging interface used across the
// harvester.
//
// It wraps zerolog: pretty console output on stderr, optional JSON lines to
// a file, and fields bound with WithField/WithFields.
//
// Basic Usage:
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("handle", "sample_user").Info("Harvest started")
//	log.InfoWithFields("Batch processed", map[string]interface{}{
//	    "saved": 20,
//	    "total_saved": 140,
//	})
//
// Tests use NewTestLogger to capture messages and assert on them, or
// NewNopLogger to discard output.
package logger
