// Package otel bridges the engine's in-process counters to OpenTelemetry
// observable instruments. Counters are read lazily on collection; the hot
// path stays free of OTel calls.
package otel
