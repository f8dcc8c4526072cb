package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/typecache/internal/agentrpc"
	"github.com/dusk-indust/typecache/internal/classcache"
	"github.com/dusk-indust/typecache/internal/export"
	"github.com/dusk-indust/typecache/internal/ingest"
	"github.com/dusk-indust/typecache/internal/typeparse"
)

const defaultFindLimit = 50

// TypeCacheService holds the cache and the collaborators MCP tool handlers
// delegate to. The ingester may be nil, in which case ingest_sources fails.
type TypeCacheService struct {
	cache    *classcache.ClassCache
	handler  agentrpc.Handler
	ingester *ingest.Ingester
	defaults ingest.Options
}

// NewTypeCacheService creates the service. defaults are the ingest options
// the tool inputs are layered over.
func NewTypeCacheService(cache *classcache.ClassCache, handler agentrpc.Handler, ingester *ingest.Ingester, defaults ingest.Options) *TypeCacheService {
	return &TypeCacheService{cache: cache, handler: handler, ingester: ingester, defaults: defaults}
}

// FindTypes searches cached types by FQN pattern.
func (s *TypeCacheService) FindTypes(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FindTypesInput,
) (*mcp.CallToolResult, FindTypesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultFindLimit
	}

	resp, err := s.handler.HandleFind(ctx, agentrpc.FindRequest{
		Pattern:         input.Pattern,
		Kind:            strings.ToLower(input.Kind),
		OnlyInitialized: input.OnlyInitialized,
		Limit:           limit,
	})
	if err != nil {
		return nil, FindTypesOutput{}, fmt.Errorf("find types: %w", err)
	}

	return nil, FindTypesOutput{Types: resp.Types, Total: resp.Total}, nil
}

// DescribeType returns a type with its references and methods.
func (s *TypeCacheService) DescribeType(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DescribeTypeInput,
) (*mcp.CallToolResult, DescribeTypeOutput, error) {
	if input.FQN == "" {
		return nil, DescribeTypeOutput{}, fmt.Errorf("fqn is required")
	}
	t := s.cache.Lookup().FindByFQN(input.FQN)
	if t == nil {
		return nil, DescribeTypeOutput{}, fmt.Errorf("type %s is not cached", input.FQN)
	}
	return s.describe(t)
}

// FindByHash returns the type that owns a class hash.
func (s *TypeCacheService) FindByHash(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FindByHashInput,
) (*mcp.CallToolResult, DescribeTypeOutput, error) {
	if input.Hash == "" {
		return nil, DescribeTypeOutput{}, fmt.Errorf("hash is required")
	}
	t := s.cache.Lookup().FindByHash(input.Hash)
	if t == nil {
		return nil, DescribeTypeOutput{}, fmt.Errorf("no type with hash %s", input.Hash)
	}
	return s.describe(t)
}

func (s *TypeCacheService) describe(t *classcache.Type) (*mcp.CallToolResult, DescribeTypeOutput, error) {
	var out DescribeTypeOutput
	err := s.cache.ExecuteWithReadLock(func() error {
		if !t.Attached() {
			return errors.New("type was removed concurrently")
		}
		out.Type = export.Describe(t)
		return nil
	})
	if err != nil {
		return nil, DescribeTypeOutput{}, fmt.Errorf("describe %s: %w", t.FQN(), err)
	}
	return nil, out, nil
}

// IngestSources parses a source tree and merges its types into the cache.
func (s *TypeCacheService) IngestSources(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestSourcesInput,
) (*mcp.CallToolResult, IngestSourcesOutput, error) {
	if s.ingester == nil {
		return nil, IngestSourcesOutput{}, fmt.Errorf("ingestion is not available")
	}
	if input.Root == "" {
		return nil, IngestSourcesOutput{}, fmt.Errorf("root is required")
	}

	opts := s.defaults
	if len(input.Languages) > 0 {
		langs, unknown := typeparse.ParseLanguages(input.Languages)
		if len(unknown) > 0 {
			return nil, IngestSourcesOutput{}, fmt.Errorf("unknown languages: %s", strings.Join(unknown, ", "))
		}
		opts.Languages = langs
	}
	opts.ExcludeDirs = append(append([]string(nil), s.defaults.ExcludeDirs...), input.ExcludeDirs...)

	stats, err := s.ingester.Run(ctx, input.Root, opts)
	if err != nil {
		return nil, IngestSourcesOutput{}, fmt.Errorf("ingest: %w", err)
	}
	return nil, IngestSourcesOutput{Stats: *stats}, nil
}

// InstrumentationResults lists the current instrumentation definitions.
func (s *TypeCacheService) InstrumentationResults(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input InstrumentationResultsInput,
) (*mcp.CallToolResult, InstrumentationResultsOutput, error) {
	var defs []classcache.InstrumentationDefinition
	if input.ClassPattern != "" {
		classes := s.cache.Lookup().FindClassTypesByPattern(input.ClassPattern, true)
		defs = s.cache.Instrumentation().GetInstrumentationResultsFor(classes)
	} else {
		resp, err := s.handler.HandleResults(ctx, agentrpc.ResultsRequest{})
		if err != nil {
			return nil, InstrumentationResultsOutput{}, fmt.Errorf("instrumentation results: %w", err)
		}
		defs = resp.Definitions
	}
	if defs == nil {
		defs = []classcache.InstrumentationDefinition{}
	}
	return nil, InstrumentationResultsOutput{Definitions: defs}, nil
}

// ClassDiagram renders the matching types as a Mermaid class diagram.
func (s *TypeCacheService) ClassDiagram(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ClassDiagramInput,
) (*mcp.CallToolResult, ClassDiagramOutput, error) {
	snap, err := export.TakeSnapshot(s.cache, input.Pattern)
	if err != nil {
		return nil, ClassDiagramOutput{}, err
	}
	return nil, ClassDiagramOutput{
		Mermaid: export.GenerateMermaid(snap.Types),
		Types:   len(snap.Types),
	}, nil
}
