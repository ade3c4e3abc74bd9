// Package cluster groups documents into topic clusters, asking an injected
// topic suggester first and falling back to a deterministic folder grouping.
package cluster

import "context"

// RequestKind tags a topic request so responses can be matched to it.
type RequestKind string

// KindClusterDocuments asks for a topic grouping of indexed document summaries.
const KindClusterDocuments RequestKind = "cluster-documents"

// Request is a typed clustering request.
type Request struct {
	Kind          RequestKind
	Prompt        string
	DocumentCount int
}

// Response carries free text expected to contain one JSON object.
type Response struct {
	Kind RequestKind
	Text string
}

// TopicSuggester is the single-method AI capability consumed by the clusterer.
type TopicSuggester interface {
	SuggestTopics(ctx context.Context, req Request) (Response, error)
}

// payload is the JSON shape the suggester is asked to return.
type payload struct {
	Clusters        []payloadCluster `json:"clusters"`
	StaleFiles      []int            `json:"staleFiles"`
	StandaloneFiles []int            `json:"standaloneFiles"`
}

type payloadCluster struct {
	Name                  string `json:"name"`
	Description           string `json:"description"`
	FileIndices           []int  `json:"fileIndices"`
	SuggestedFilename     string `json:"suggestedFilename"`
	ConsolidationStrategy string `json:"consolidationStrategy"`
	Reasoning             string `json:"reasoning"`
}
