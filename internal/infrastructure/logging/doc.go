// Package logging builds the process logger on uber/zap.
//
// Production loggers write JSON for machine parsing; development loggers
// write colored console output.
//
//	logger, err := logging.New(logging.Config{Level: "debug"})
//	logger.Info("Server starting", zap.String("addr", addr))
package logging
