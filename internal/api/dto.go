package api

import (
	"github.com/starford/laguz/internal/autoconsolidate"
	"github.com/starford/laguz/internal/docservice"
	"github.com/starford/laguz/internal/models"
)

// DocumentItem is a scanned document (aliased from the domain layer).
type DocumentItem = docservice.DocumentItem

// DocumentListResponse wraps a scan.
type DocumentListResponse struct {
	Documents []DocumentItem `json:"documents" validate:"required"`
	Total     int            `json:"total" example:"12" validate:"required"`
}

// RelevanceResponse wraps relevance scores, highest first.
type RelevanceResponse struct {
	Scores []models.RelevanceScore `json:"scores" validate:"required"`
}

// PlanResponse is a plan preview (aliased from the domain layer).
type PlanResponse = docservice.PlanView

// HubResponse carries the rendered navigation hub.
type HubResponse struct {
	Content string `json:"content" example:"# Documentation Hub" validate:"required"`
	Path    string `json:"path,omitempty" example:"/repo/DOCUMENTATION.md"`
}

// RunRequest is the request body for starting a run.
type RunRequest = docservice.RunRequest

// RunResponse is the summary of a finished run.
type RunResponse = autoconsolidate.Summary

// ManifestListResponse wraps backup manifests, newest first.
type ManifestListResponse struct {
	Manifests []models.BackupManifest `json:"manifests" validate:"required"`
}

// RestoreResponse lists the restored files.
type RestoreResponse struct {
	ManifestID string   `json:"manifest_id" validate:"required"`
	Restored   []string `json:"restored" validate:"required"`
}
