// Package tracing provides a thin wrapper around OpenTelemetry tracing
// so that the rest of the code-base can create spans through a small
// stable surface (Init, StartSpan, EndSpan) without depending on the
// upstream packages directly.
package tracing
