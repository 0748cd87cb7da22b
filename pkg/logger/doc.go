// Package logger provides the structured logging interface used across
// mediagrab. It wraps zerolog with a small field-oriented API.
//
//	logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("component", "router")
//	log.InfoWithFields("Download completed", map[string]interface{}{
//	    "identifier": "C1a2b3c4d5e",
//	    "strategy":   "ytdlp",
//	})
//
// Components take a Logger in their constructor; tests pass NewTestLogger
// to assert on emitted messages or NewNopLogger to silence output.
package logger
