// Package mdbridge provides a control daemon for molecular-simulation
// workers driven over line-delimited JSON-RPC.
//
// The daemon keeps an authoritative registry of workers, each bound to
// a unique TCP port, and exposes start/stop/status/list/shutdown
// operations plus a ping over a newline-delimited JSON-RPC 2.0 stream
// (stdin/stdout when run as a bridge process). The service layers are:
//
//   - registry  – worker bookkeeping, port allocation, shutdown latch
//   - engine    – pluggable simulation engines behind a small boundary
//   - rpc       – request dispatch and the transport loop
//
// mdbridge is designed to be embedded as well as run as a binary.
// Host applications interact via the high-level Service façade:
//
//	srv := mdbridge.New()
//	rt  := srv.Runtime()
//	_ = rt.Run(ctx, os.Stdin, os.Stdout)
//
// For more details see the individual sub-packages.
package mdbridge
