package mcptools

import (
	"github.com/dusk-indust/typecache/internal/agentrpc"
	"github.com/dusk-indust/typecache/internal/classcache"
	"github.com/dusk-indust/typecache/internal/export"
	"github.com/dusk-indust/typecache/internal/ingest"
)

// --- MCP Tool Input Types ---
// The MCP Go SDK derives each tool's JSON schema from these struct tags.

// FindTypesInput is the input for the find_types MCP tool.
type FindTypesInput struct {
	Pattern         string `json:"pattern,omitempty" jsonschema:"FQN pattern, '*' matches any run of characters (default: *)"`
	Kind            string `json:"kind,omitempty" jsonschema:"restrict to a kind: class, interface, annotation or exception"`
	OnlyInitialized bool   `json:"onlyInitialized,omitempty" jsonschema:"skip types only known from references"`
	Limit           int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 50)"`
}

// FindTypesOutput is the result of the find_types MCP tool.
type FindTypesOutput struct {
	Types []agentrpc.TypeSummary `json:"types"`
	Total int                    `json:"total"`
}

// DescribeTypeInput is the input for the describe_type MCP tool.
type DescribeTypeInput struct {
	FQN string `json:"fqn" jsonschema:"fully qualified name of the type"`
}

// FindByHashInput is the input for the find_by_hash MCP tool.
type FindByHashInput struct {
	Hash string `json:"hash" jsonschema:"content hash of a class version"`
}

// DescribeTypeOutput is the result of describe_type and find_by_hash.
type DescribeTypeOutput struct {
	Type export.TypeRecord `json:"type"`
}

// IngestSourcesInput is the input for the ingest_sources MCP tool.
type IngestSourcesInput struct {
	Root        string   `json:"root" jsonschema:"the absolute path of the source tree to ingest"`
	Languages   []string `json:"languages,omitempty" jsonschema:"languages to parse (default: all). Values: go, typescript, python, rust"`
	ExcludeDirs []string `json:"excludeDirs,omitempty" jsonschema:"directory names to skip in addition to the configured ones"`
}

// IngestSourcesOutput is the result of the ingest_sources MCP tool.
type IngestSourcesOutput struct {
	Stats ingest.Stats `json:"stats"`
}

// InstrumentationResultsInput is the input for the instrumentation_results
// MCP tool.
type InstrumentationResultsInput struct {
	ClassPattern string `json:"classPattern,omitempty" jsonschema:"only report classes whose FQN matches this pattern"`
}

// InstrumentationResultsOutput is the result of the instrumentation_results
// MCP tool.
type InstrumentationResultsOutput struct {
	Definitions []classcache.InstrumentationDefinition `json:"definitions"`
}

// ClassDiagramInput is the input for the class_diagram MCP tool.
type ClassDiagramInput struct {
	Pattern string `json:"pattern,omitempty" jsonschema:"FQN pattern of the types to draw (default: *)"`
}

// ClassDiagramOutput is the result of the class_diagram MCP tool.
type ClassDiagramOutput struct {
	Mermaid string `json:"mermaid"`
	Types   int    `json:"types"`
}
