// Package model contains the in-memory representation of worker
// configuration and status shared between the registry, the engines and
// the RPC layer.
//
// A SimulationConfig is typically decoded from JSON-RPC params or a
// YAML document, completed with ApplyDefaults and checked with
// Validate before any worker is constructed from it.
package model
