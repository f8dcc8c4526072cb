// Package agentrpc exposes a class cache to instrumentation agents over
// JSON-RPC 2.0 and streams cache events as Server-Sent Events.
package agentrpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/dusk-indust/typecache/internal/classcache"
)

// ErrInvalidParams marks handler errors caused by the request itself.
var ErrInvalidParams = errors.New("invalid params")

// Handler processes agent requests.
type Handler interface {
	HandleMerge(ctx context.Context, req MergeRequest) (*MergeResponse, error)
	HandleAnalyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error)
	HandleFind(ctx context.Context, req FindRequest) (*FindResponse, error)
	HandleResults(ctx context.Context, req ResultsRequest) (*ResultsResponse, error)
	HandleResultsByHash(ctx context.Context, req ResultsRequest) (*ResultsByHashResponse, error)
}

// Server is the HTTP server that exposes a Handler and an event stream.
type Server struct {
	handler Handler
	events  *Broadcaster
	logger  *slog.Logger

	http     *http.Server
	addr     string
	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a server for handler. events may be nil, in which case
// /events answers 404.
func NewServer(handler Handler, events *Broadcaster, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		handler: handler,
		events:  events,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// CacheHandler answers agent requests from a ClassCache. Analyze requests
// are instrumented with the configured agent profile and appliers.
type CacheHandler struct {
	cache    *classcache.ClassCache
	agent    classcache.AgentConfig
	appliers []classcache.InstrumentationApplier
}

var _ Handler = (*CacheHandler)(nil)

// NewCacheHandler creates a handler over cache. appliers may be empty, in
// which case analyzed types only report existing instrumentation.
func NewCacheHandler(cache *classcache.ClassCache, agent classcache.AgentConfig, appliers []classcache.InstrumentationApplier) *CacheHandler {
	return &CacheHandler{cache: cache, agent: agent, appliers: appliers}
}

// HandleMerge merges each type on its own; a rejected type is reported in
// its result without failing the others.
func (h *CacheHandler) HandleMerge(ctx context.Context, req MergeRequest) (*MergeResponse, error) {
	if len(req.Types) == 0 {
		return nil, fmt.Errorf("%w: no types", ErrInvalidParams)
	}
	resp := &MergeResponse{Results: make([]MergeResult, 0, len(req.Types))}
	for _, d := range req.Types {
		res := MergeResult{}
		if d != nil {
			res.FQN = d.FQN
		}
		events, err := h.cache.Modification().Merge(ctx, d)
		if err != nil {
			var merr *classcache.ModificationError
			if !errors.As(err, &merr) {
				return nil, err
			}
			res.Error = err.Error()
		}
		res.Events = events.Strings()
		resp.Results = append(resp.Results, res)
	}
	return resp, nil
}

// HandleAnalyze merges a type and returns its instrumentation.
func (h *CacheHandler) HandleAnalyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	events, err := h.cache.Modification().Merge(ctx, req.Type)
	if err != nil {
		return nil, err
	}
	resp := &AnalyzeResponse{Events: events.Strings()}

	t := h.cache.Lookup().FindByFQN(req.Type.FQN)
	resp.Instrumentation = h.cache.Instrumentation().AddAndGetInstrumentationResult(ctx, t, h.agent, h.appliers)
	if resp.Instrumentation == nil && t != nil {
		if defs := h.cache.Instrumentation().GetInstrumentationResultsFor([]*classcache.Type{t}); len(defs) > 0 {
			resp.Instrumentation = &defs[0]
		}
	}
	return resp, nil
}

// HandleFind looks types up by hash or by pattern and kind.
func (h *CacheHandler) HandleFind(ctx context.Context, req FindRequest) (*FindResponse, error) {
	lookup := h.cache.Lookup()
	var found []*classcache.Type
	if req.Hash != "" {
		if t := lookup.FindByHash(req.Hash); t != nil {
			found = []*classcache.Type{t}
		}
	} else {
		pattern := req.Pattern
		if pattern == "" {
			pattern = "*"
		}
		switch req.Kind {
		case "":
			found = lookup.FindByPattern(pattern, req.OnlyInitialized)
		case string(classcache.KindClass):
			found = lookup.FindClassTypesByPattern(pattern, req.OnlyInitialized)
		case string(classcache.KindInterface):
			found = lookup.FindInterfaceTypesByPattern(pattern, req.OnlyInitialized)
		case string(classcache.KindAnnotation):
			found = lookup.FindAnnotationTypesByPattern(pattern, req.OnlyInitialized)
		case "exception":
			found = lookup.FindExceptionTypesByPattern(pattern, req.OnlyInitialized)
		default:
			return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidParams, req.Kind)
		}
	}

	resp := &FindResponse{Types: []TypeSummary{}, Total: len(found)}
	if req.Limit > 0 && len(found) > req.Limit {
		found = found[:req.Limit]
	}
	err := h.cache.ExecuteWithReadLock(func() error {
		for _, t := range found {
			resp.Types = append(resp.Types, Summarize(t))
		}
		return nil
	})
	return resp, err
}

// HandleResults lists every instrumentation definition.
func (h *CacheHandler) HandleResults(ctx context.Context, _ ResultsRequest) (*ResultsResponse, error) {
	defs := h.cache.Instrumentation().GetInstrumentationResults()
	if defs == nil {
		defs = []classcache.InstrumentationDefinition{}
	}
	return &ResultsResponse{Definitions: defs}, nil
}

// HandleResultsByHash lists the definitions keyed by class hash.
func (h *CacheHandler) HandleResultsByHash(ctx context.Context, _ ResultsRequest) (*ResultsByHashResponse, error) {
	defs := h.cache.Instrumentation().GetInstrumentationResultsWithHashes()
	if defs == nil {
		defs = map[string]classcache.InstrumentationDefinition{}
	}
	return &ResultsByHashResponse{Definitions: defs}, nil
}
