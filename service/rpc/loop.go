package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mdbridge/mdbridge/service/registry"
)

// maxLineBytes bounds a single request line.
const maxLineBytes = 1 << 20

// Loop reads newline-delimited JSON requests from an input stream and
// writes exactly one response line per request, flushed immediately. A
// malformed line yields a parse-error envelope and never halts the
// loop. The loop is single-threaded and cooperative; it ends on EOF or
// context cancellation, invoking the registry's ShutdownAll on the way
// out.
type Loop struct {
	in         io.Reader
	out        io.Writer
	dispatcher *Dispatcher
	registry   *registry.Service
	logger     *slog.Logger
}

// NewLoop creates a transport loop over in/out.
func NewLoop(in io.Reader, out io.Writer, dispatcher *Dispatcher, reg *registry.Service) *Loop {
	return &Loop{in: in, out: out, dispatcher: dispatcher, registry: reg, logger: dispatcher.logger}
}

// Run serves requests until the input stream ends or ctx is cancelled.
// End of stream is a normal termination condition; only an actual read
// failure is returned as an error.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		_ = l.registry.ShutdownAll(ctx)
	}()

	scanner := bufio.NewScanner(l.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			l.logger.Info("transport loop cancelled")
			return nil
		default:
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			// no identifier is available on a malformed line
			l.write(&response{
				JSONRPC: "2.0",
				Error:   &rpcError{Code: CodeParseError, Message: fmt.Sprintf("Parse error: %v", err)},
			})
			continue
		}
		l.write(l.dispatcher.Dispatch(ctx, &req))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request stream: %w", err)
	}
	l.logger.Info("request stream ended")
	return nil
}

// write emits one response line and flushes it.
func (l *Loop) write(resp *response) {
	data, err := json.Marshal(resp)
	if err != nil {
		// result types are plain structs; treat this as a dispatch fault
		data, _ = json.Marshal(errorResponse(resp.ID, CodeInternalError, fmt.Sprintf("failed to encode response: %v", err)))
	}
	if _, err := l.out.Write(append(data, '\n')); err != nil {
		l.logger.Error("failed to write response", "error", err)
		return
	}
	if flusher, ok := l.out.(interface{ Flush() error }); ok {
		_ = flusher.Flush()
	}
}
