package models

import (
	"fmt"

	"github.com/starford/laguz/internal/apperr"
)

// ClusterStrategy is how a topic cluster should be consolidated.
type ClusterStrategy string

const (
	ClusterMerge     ClusterStrategy = "merge"
	ClusterSummarize ClusterStrategy = "summarize"
	ClusterLinkOnly  ClusterStrategy = "link-only"
)

// ParseClusterStrategy accepts the wire names used by topic suggestions.
func ParseClusterStrategy(s string) (ClusterStrategy, error) {
	switch ClusterStrategy(s) {
	case ClusterMerge, ClusterSummarize, ClusterLinkOnly:
		return ClusterStrategy(s), nil
	}
	return "", fmt.Errorf("cluster strategy %q: %w", s, apperr.ErrUnknownStrategy)
}

// TopicCluster is a named group of documents destined for one output.
type TopicCluster struct {
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Documents         []*Document     `json:"-"`
	SuggestedFilename string          `json:"suggested_filename"`
	Strategy          ClusterStrategy `json:"strategy"`
	Reasoning         string          `json:"reasoning,omitempty"`
}

// PlanStrategy selects the renderer used by the executor.
type PlanStrategy string

const (
	PlanMergeByTopic      PlanStrategy = "merge-by-topic"
	PlanMergeByFolder     PlanStrategy = "merge-by-folder"
	PlanSummarizeCluster  PlanStrategy = "summarize-cluster"
	PlanCreateSuperReadme PlanStrategy = "create-super-readme"
	PlanArchiveStale      PlanStrategy = "archive-stale"
)

// ConsolidationPlan is the executable unit turning a group of documents into one output.
type ConsolidationPlan struct {
	Strategy          PlanStrategy `json:"strategy"`
	Cluster           string       `json:"cluster,omitempty"`
	Inputs            []*Document  `json:"-"`
	OutputFile        string       `json:"output_file"`
	PreserveOriginals bool         `json:"preserve_originals"`
	Confidence        float64      `json:"confidence"`
	Reasoning         string       `json:"reasoning"`
}

// InputPaths returns the absolute input paths.
func (p ConsolidationPlan) InputPaths() []string {
	return Paths(p.Inputs)
}

// ConsolidationResult reports the outcome of executing one plan.
type ConsolidationResult struct {
	Success    bool            `json:"success"`
	OutputFile string          `json:"output_file"`
	InputCount int             `json:"input_count"`
	Strategy   PlanStrategy    `json:"strategy"`
	ManifestID string          `json:"manifest_id,omitempty"`
	Manifest   *BackupManifest `json:"-"`
	Error      string          `json:"error,omitempty"`
}

// ValidationResult reports output checks. Valid is true when Errors is empty.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}
