package agentrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/dusk-indust/typecache/internal/classcache"
)

// eventBuffer is the per-subscriber channel size of the /events stream.
const eventBuffer = 256

// Start binds addr, registers routes, and begins serving in a background
// goroutine. Bind errors are returned synchronously.
func (s *Server) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /", s.handleJSONRPC)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.addr = ln.Addr().String()
	s.http = &http.Server{
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("agent rpc server stopped", "addr", s.addr, "error", err)
		}
	}()
	s.logger.Info("agent rpc server listening", "addr", s.addr)
	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	return s.addr
}

// Stop ends open event streams and gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleEvents streams cache events until the client goes away or the
// server stops.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.NotFound(w, r)
		return
	}
	sse, err := NewSSEWriter(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	id, ch := s.events.Subscribe(eventBuffer)
	defer s.events.Unsubscribe(id)
	s.logger.Debug("event stream opened", "subscriber", id)

	sse.Init()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := sse.WriteEvent(ev); err != nil {
				s.logger.Debug("event stream closed", "subscriber", id, "error", err)
				return
			}
		}
	}
}

// handleJSONRPC processes incoming JSON-RPC 2.0 requests and dispatches them
// to the handler.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONRPCError(w, nil, ErrCodeParse, "Parse error: "+err.Error())
		return
	}
	if req.JSONRPC != JSONRPCVersion {
		writeJSONRPCError(w, req.ID, ErrCodeInvalidRequest, fmt.Sprintf("Invalid request: jsonrpc must be %q", JSONRPCVersion))
		return
	}

	ctx := r.Context()

	switch req.Method {
	case MethodMerge:
		dispatch(ctx, s, w, &req, s.handler.HandleMerge)
	case MethodAnalyze:
		dispatch(ctx, s, w, &req, s.handler.HandleAnalyze)
	case MethodFind:
		dispatch(ctx, s, w, &req, s.handler.HandleFind)
	case MethodResults:
		dispatch(ctx, s, w, &req, s.handler.HandleResults)
	case MethodResultsByHash:
		dispatch(ctx, s, w, &req, s.handler.HandleResultsByHash)
	default:
		writeJSONRPCError(w, req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

// dispatch unmarshals params into P and calls fn. Missing params decode as
// the zero value.
func dispatch[P, R any](ctx context.Context, s *Server, w http.ResponseWriter, req *JSONRPCRequest, fn func(context.Context, P) (R, error)) {
	var params P
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
			return
		}
	}

	result, err := fn(ctx, params)
	if err != nil {
		code := errorCode(err)
		if code == ErrCodeInternal {
			s.logger.Error("rpc failed", "method", req.Method, "error", err)
		}
		writeJSONRPCError(w, req.ID, code, err.Error())
		return
	}

	writeJSONRPCResult(w, req.ID, result)
}

func errorCode(err error) int {
	var merr *classcache.ModificationError
	switch {
	case errors.As(err, &merr):
		return ErrCodeModification
	case errors.Is(err, ErrInvalidParams):
		return ErrCodeInvalidParams
	default:
		return ErrCodeInternal
	}
}

// writeJSONRPCResult writes a successful JSON-RPC response.
func writeJSONRPCResult(w http.ResponseWriter, id any, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		writeJSONRPCError(w, id, ErrCodeInternal, "Failed to marshal result: "+err.Error())
		return
	}

	resp := JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  data,
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSONRPCError writes a JSON-RPC error response.
func writeJSONRPCError(w http.ResponseWriter, id any, code int, message string) {
	resp := JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}
