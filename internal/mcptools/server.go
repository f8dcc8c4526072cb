// Package mcptools exposes the class cache as Model Context Protocol tools.
package mcptools

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewTypeCacheMCPServer creates an MCP server with every type cache tool
// registered.
func NewTypeCacheMCPServer(svc *TypeCacheService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "typecache",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_types",
		Description: "Search cached types by fully qualified name pattern. '*' matches any run of characters. Optionally restrict to a kind and to initialized types.",
	}, svc.FindTypes)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "describe_type",
		Description: "Describe one cached type: modifiers, hashes, superclasses, interfaces, annotations, subtypes and methods with their instrumentation sensors.",
	}, svc.DescribeType)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_by_hash",
		Description: "Find the type that owns a class content hash and describe it.",
	}, svc.FindByHash)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_sources",
		Description: "Parse a source tree with tree-sitter and merge every declared type into the cache. Returns ingest statistics.",
	}, svc.IngestSources)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "instrumentation_results",
		Description: "List the instrumentation definitions computed for cached classes, optionally restricted to a class pattern.",
	}, svc.InstrumentationResults)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "class_diagram",
		Description: "Render the cached types matching a pattern as a Mermaid class diagram.",
	}, svc.ClassDiagram)

	return server
}

// RunStdio runs server on the stdio transport, blocking until stdin is
// closed or ctx is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves server over streamable HTTP at addr until ctx is
// cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
