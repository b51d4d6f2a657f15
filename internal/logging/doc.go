// Package logging provides structured logging for easycontrols.
//
// This package wraps a zap logger with package-level convenience functions so
// the protocol client, the bridge and the CLI share one configuration.
//
// # Log Levels
//
//   - Debug: frame hex dumps, poll decisions
//   - Info: bridge and API lifecycle, commands sent
//   - Warn: unexpected acknowledgements, read failures, unit going offline
//   - Error: startup failures
//
// # Structured Logging
//
//	logging.Info("Mode switched",
//	    zap.String("host", "192.168.1.50"),
//	    zap.Stringer("mode", protocol.ModeAway),
//	)
//
// # Frame Logging
//
//	logging.LogExchange(url, "sent", frame)
//	logging.LogExchange(url, "received", resp)
//
// # Configuration
//
// Logging is silent until initialized. The CLI initializes it from the
// --log-level flag, falling back to the KWL_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize(level); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Output goes to stderr so that JSON written to stdout stays parseable.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use once initialized.
package logging
