// Package logging provides structured logging using uber/zap.
//
// Both the desktop shell and every window process log through this package:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Window processes tag every entry with their window label so interleaved
// output from several windows stays readable.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Shell starting", zap.String("port", "8420"))
//	log := logger.ForWindow(id.MainWindow)
//	log.Warn("Reattach abandoned", zap.Error(err))
package logging
