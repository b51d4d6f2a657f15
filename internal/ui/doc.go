// Package ui renders kwlctl output with Lip Gloss and Bubble Tea.
//
// One-shot commands print a Header, then either a snapshot (RenderSnapshot
// or RenderJSON) or a Result box. Failure boxes carry troubleshooting tips
// derived from the error kind: transport, timeout, decode or mode errors.
//
// The watch command runs a WatchModel, a full-screen dashboard that refreshes
// a unit on an interval and re-renders the snapshot.
//
// Logging is controlled with the KWL_LOG_LEVEL environment variable. When it
// is unset zap stays silent, so log lines never interleave with the rendered
// output.
package ui
