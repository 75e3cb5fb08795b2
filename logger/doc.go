// Package logger is viewkit's structured logger, a thin layer over
// zerolog with map-based fields and a small set of shared field keys.
//
// Pipelines log one info line per run and one debug line per stage;
// stores log at open and on slow or failed queries.
//
//	logging:
//	  level: debug     # trace, debug, info, warn, error, disabled
//	  format: json     # json or console
//	  output: stderr   # stdout or stderr
//
//	log := logger.New(&cfg.Logging, "viewkit").WithComponent("aggregate")
//	log.Info("pipeline run completed", logger.Fields(logger.FieldView, "orders"))
package logger
