package agentrpc

import (
	"github.com/dusk-indust/typecache/internal/classcache"
)

// MergeRequest carries type descriptions to fold into the cache. Each one is
// merged on its own; a rejected description does not stop the others.
type MergeRequest struct {
	Types []*classcache.TypeDescription `json:"types"`
}

// MergeResult is the outcome of one description of a MergeRequest.
type MergeResult struct {
	FQN    string   `json:"fqn"`
	Events []string `json:"events,omitempty"`
	Error  string   `json:"error,omitempty"`
}

type MergeResponse struct {
	Results []MergeResult `json:"results"`
}

// AnalyzeRequest asks for the instrumentation of a class the agent is about
// to load. The description is merged first.
type AnalyzeRequest struct {
	Type *classcache.TypeDescription `json:"type"`
}

// AnalyzeResponse holds the definition for the analyzed class, or nil when
// no sensor assignment matched it.
type AnalyzeResponse struct {
	Events          []string                              `json:"events,omitempty"`
	Instrumentation *classcache.InstrumentationDefinition `json:"instrumentation,omitempty"`
}

// FindRequest selects types by FQN pattern or by hash. Kind narrows a
// pattern search to "class", "interface", "annotation" or "exception".
type FindRequest struct {
	Pattern         string `json:"pattern,omitempty"`
	Hash            string `json:"hash,omitempty"`
	Kind            string `json:"kind,omitempty"`
	OnlyInitialized bool   `json:"onlyInitialized,omitempty"`
	Limit           int    `json:"limit,omitempty"`
}

type FindResponse struct {
	Types []TypeSummary `json:"types"`
	Total int           `json:"total"`
}

// TypeSummary is the wire form of a cached type.
type TypeSummary struct {
	FQN         string   `json:"fqn"`
	Kind        string   `json:"kind"`
	Modifiers   string   `json:"modifiers,omitempty"`
	Initialized bool     `json:"initialized"`
	Hashes      []string `json:"hashes,omitempty"`
}

// Summarize builds the wire form of t. Callers hold the cache's read lock.
func Summarize(t *classcache.Type) TypeSummary {
	return TypeSummary{
		FQN:         t.FQN(),
		Kind:        string(t.Kind()),
		Modifiers:   t.Modifiers().String(),
		Initialized: t.IsInitialized(),
		Hashes:      t.Hashes(),
	}
}

type ResultsRequest struct{}

type ResultsResponse struct {
	Definitions []classcache.InstrumentationDefinition `json:"definitions"`
}

type ResultsByHashResponse struct {
	Definitions map[string]classcache.InstrumentationDefinition `json:"definitions"`
}

// CacheEvent is the wire form of a node or reference event on the /events
// stream. Seq increases by one per event within a session.
type CacheEvent struct {
	Session string `json:"session"`
	Seq     uint64 `json:"seq"`

	// Node events.
	FQN    string `json:"fqn,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Type   string `json:"type,omitempty"`
	Detail string `json:"detail,omitempty"`

	// Reference events.
	Reference string `json:"reference,omitempty"`
	Owner     string `json:"owner,omitempty"`
	Referred  string `json:"referred,omitempty"`

	// Err is set by ReadEvents for a frame it could not decode.
	Err error `json:"-"`
}
