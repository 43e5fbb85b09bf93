// Package rpc implements the JSON-RPC 2.0 control surface: a
// dispatcher translating requests into registry operations and a
// newline-delimited transport loop.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mdbridge/mdbridge/model"
	"github.com/mdbridge/mdbridge/service/registry"
	"github.com/mdbridge/mdbridge/tracing"
)

// JSON-RPC 2.0 error codes used on the wire.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// DefaultVersion is reported by ping unless overridden.
const DefaultVersion = "0.1.0"

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type idParams struct {
	ServerID *int `json:"server_id"`
}

type startResult struct {
	Status        string `json:"status"`
	ServerID      int    `json:"server_id"`
	Port          int    `json:"port"`
	NumAtoms      int    `json:"num_atoms"`
	StructureFile string `json:"structure_file"`
}

type stopResult struct {
	Status   string `json:"status"`
	ServerID int    `json:"server_id"`
}

type appErrorResult struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type statusResult struct {
	Status        string `json:"status"`
	ServerID      int    `json:"server_id"`
	Port          int    `json:"port"`
	NumAtoms      int    `json:"num_atoms"`
	StructureFile string `json:"structure_file"`
}

type notFoundResult struct {
	Status   string `json:"status"`
	ServerID int    `json:"server_id"`
}

type serverEntry struct {
	ServerID int  `json:"server_id"`
	Port     int  `json:"port"`
	NumAtoms int  `json:"num_atoms"`
	Running  bool `json:"running"`
}

type listResult struct {
	Status  string        `json:"status"`
	Servers []serverEntry `json:"servers"`
}

type shutdownResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type pingResult struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// DispatcherOption customises the dispatcher.
type DispatcherOption func(d *Dispatcher)

// WithVersion sets the version string reported by ping.
func WithVersion(version string) DispatcherOption {
	return func(d *Dispatcher) {
		d.version = version
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithRegisterer registers the per-method request counter with reg.
func WithRegisterer(reg prometheus.Registerer) DispatcherOption {
	return func(d *Dispatcher) {
		d.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mdbridge",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Dispatched JSON-RPC requests by method.",
		}, []string{"method"})
		reg.MustRegister(d.requests)
	}
}

// Dispatcher turns one parsed request at a time into a registry
// operation and wraps the outcome in a JSON-RPC envelope. It carries no
// state between requests beyond the registry itself.
type Dispatcher struct {
	registry *registry.Service
	logger   *slog.Logger
	version  string
	requests *prometheus.CounterVec
}

// NewDispatcher creates a dispatcher over the supplied registry.
func NewDispatcher(reg *registry.Service, options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{registry: reg, version: DefaultVersion}
	for _, option := range options {
		option(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Dispatch handles one request. It never lets a fault escape: any
// panic in a handler is converted into an internal-error envelope so
// that the transport loop survives.
func (d *Dispatcher) Dispatch(ctx context.Context, req *request) (resp *response) {
	started := time.Now()
	ctx, span := tracing.StartSpan(ctx, "rpc."+req.Method, "SERVER")
	defer func() {
		if r := recover(); r != nil {
			resp = errorResponse(req.ID, CodeInternalError, fmt.Sprintf("internal error: %v", r))
		}
		var dispatchErr error
		if resp != nil && resp.Error != nil {
			dispatchErr = errors.New(resp.Error.Message)
			d.logger.Error("rpc failed", "method", req.Method, "rpc_code", resp.Error.Code, "latency_ms", time.Since(started).Milliseconds())
		} else {
			d.logger.Info("rpc response", "method", req.Method, "latency_ms", time.Since(started).Milliseconds())
		}
		tracing.EndSpan(span, dispatchErr)
	}()
	if d.requests != nil {
		d.requests.WithLabelValues(req.Method).Inc()
	}

	switch req.Method {
	case "start_server":
		return d.startServer(ctx, req)
	case "stop_server":
		return d.stopServer(ctx, req)
	case "get_status":
		return d.getStatus(ctx, req)
	case "list_servers":
		return d.listServers(ctx, req)
	case "shutdown_all":
		return d.shutdownAll(ctx, req)
	case "ping":
		return resultResponse(req.ID, pingResult{Status: "pong", Version: d.version})
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("Method not found: %v", req.Method))
	}
}

func (d *Dispatcher) startServer(ctx context.Context, req *request) *response {
	var cfg model.SimulationConfig
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &cfg); err != nil {
			return errorResponse(req.ID, CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
	}
	record, err := d.registry.Start(ctx, cfg)
	if err != nil {
		return errorResponse(req.ID, CodeInternalError, err.Error())
	}
	return resultResponse(req.ID, startResult{
		Status:        "success",
		ServerID:      record.ID,
		Port:          record.Port,
		NumAtoms:      record.AtomCount,
		StructureFile: record.Config.StructurePath,
	})
}

func (d *Dispatcher) stopServer(ctx context.Context, req *request) *response {
	id, resp := requireServerID(req)
	if resp != nil {
		return resp
	}
	if err := d.registry.Stop(ctx, id); err != nil {
		var notFound *registry.NotFoundError
		if errors.As(err, &notFound) {
			// application-level error, not a transport failure
			return resultResponse(req.ID, appErrorResult{Status: "error", Error: err.Error()})
		}
		return errorResponse(req.ID, CodeInternalError, err.Error())
	}
	return resultResponse(req.ID, stopResult{Status: "success", ServerID: id})
}

func (d *Dispatcher) getStatus(ctx context.Context, req *request) *response {
	id, resp := requireServerID(req)
	if resp != nil {
		return resp
	}
	view, err := d.registry.Status(ctx, id)
	if err != nil {
		var notFound *registry.NotFoundError
		if errors.As(err, &notFound) {
			return resultResponse(req.ID, notFoundResult{Status: "not_found", ServerID: id})
		}
		return errorResponse(req.ID, CodeInternalError, err.Error())
	}
	return resultResponse(req.ID, statusResult{
		Status:        view.State,
		ServerID:      view.ServerID,
		Port:          view.Port,
		NumAtoms:      view.NumAtoms,
		StructureFile: view.StructureFile,
	})
}

func (d *Dispatcher) listServers(ctx context.Context, req *request) *response {
	views := d.registry.List(ctx)
	servers := make([]serverEntry, 0, len(views))
	for _, view := range views {
		servers = append(servers, serverEntry{
			ServerID: view.ServerID,
			Port:     view.Port,
			NumAtoms: view.NumAtoms,
			Running:  view.Running,
		})
	}
	return resultResponse(req.ID, listResult{Status: "success", Servers: servers})
}

func (d *Dispatcher) shutdownAll(ctx context.Context, req *request) *response {
	if err := d.registry.ShutdownAll(ctx); err != nil {
		return errorResponse(req.ID, CodeInternalError, err.Error())
	}
	return resultResponse(req.ID, shutdownResult{Status: "success", Message: "all servers shut down"})
}

func requireServerID(req *request) (int, *response) {
	var params idParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return 0, errorResponse(req.ID, CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
	}
	if params.ServerID == nil {
		return 0, errorResponse(req.ID, CodeInvalidParams, "server_id is required")
	}
	return *params.ServerID, nil
}

func resultResponse(id json.RawMessage, result any) *response {
	return &response{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string) *response {
	return &response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}}
}
