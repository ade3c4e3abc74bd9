package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/laguz/internal/docservice"
	"github.com/starford/laguz/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

func boolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// ListDocuments handles GET /api/scan.
//
//	@Summary		Scan a directory for markdown documents
//	@Tags			documents
//	@Produce		json
//	@Param			root		query		string	false	"Directory relative to the base"
//	@Param			recursive	query		bool	false	"Descend into subdirectories"
//	@Success		200			{object}	DocumentListResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scan [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListDocuments(r.Context(), r.URL.Query().Get("root"), boolParam(r, "recursive"))
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: len(items)})
}

// Relevance handles GET /api/relevance.
//
//	@Summary		Score documents by relevance
//	@Tags			documents
//	@Produce		json
//	@Param			root		query		string	false	"Directory relative to the base"
//	@Param			recursive	query		bool	false	"Descend into subdirectories"
//	@Success		200			{object}	RelevanceResponse
//	@Security		BearerAuth
//	@Router			/relevance [get]
func (h *Handler) Relevance(w http.ResponseWriter, r *http.Request) {
	scores, err := h.svc.Relevance(r.Context(), r.URL.Query().Get("root"), boolParam(r, "recursive"))
	if err != nil {
		writeError(w, "relevance", err)
		return
	}
	writeJSON(w, http.StatusOK, RelevanceResponse{Scores: scores})
}

// Plan handles GET /api/plan.
//
//	@Summary		Preview a consolidation plan
//	@Tags			plans
//	@Produce		json
//	@Param			root	query		string	false	"Directory relative to the base"
//	@Param			max		query		int		false	"Maximum number of output files"
//	@Success		200		{object}	PlanResponse
//	@Security		BearerAuth
//	@Router			/plan [get]
func (h *Handler) Plan(w http.ResponseWriter, r *http.Request) {
	maxFiles, _ := strconv.Atoi(r.URL.Query().Get("max"))
	view, err := h.svc.Plan(r.Context(), r.URL.Query().Get("root"), maxFiles)
	if err != nil {
		writeError(w, "plan", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Hub handles GET /api/hub.
//
//	@Summary		Render the navigation hub
//	@Tags			hub
//	@Produce		json
//	@Param			root	query		string	false	"Directory relative to the base"
//	@Success		200		{object}	HubResponse
//	@Security		BearerAuth
//	@Router			/hub [get]
func (h *Handler) Hub(w http.ResponseWriter, r *http.Request) {
	content, err := h.svc.Hub(r.Context(), r.URL.Query().Get("root"))
	if err != nil {
		writeError(w, "hub", err)
		return
	}
	writeJSON(w, http.StatusOK, HubResponse{Content: content})
}

// WriteHub handles POST /api/hub.
//
//	@Summary		Regenerate DOCUMENTATION.md
//	@Tags			hub
//	@Produce		json
//	@Param			root	query		string	false	"Directory relative to the base"
//	@Success		200		{object}	HubResponse
//	@Security		BearerAuth
//	@Router			/hub [post]
func (h *Handler) WriteHub(w http.ResponseWriter, r *http.Request) {
	root := r.URL.Query().Get("root")
	path, err := h.svc.WriteHub(r.Context(), root)
	if err != nil {
		writeError(w, "write hub", err)
		return
	}
	content, err := h.svc.Hub(r.Context(), root)
	if err != nil {
		writeError(w, "hub", err)
		return
	}
	writeJSON(w, http.StatusOK, HubResponse{Content: content, Path: path})
}

// Run handles POST /api/runs.
//
//	@Summary		Run the compress or document-archive workflow
//	@Tags			runs
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RunRequest	true	"Run options"
//	@Success		200		{object}	RunResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs [post]
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	sum, err := h.svc.Run(r.Context(), req)
	if err != nil {
		writeError(w, "run", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ListManifests handles GET /api/manifests.
//
//	@Summary		List backup manifests
//	@Tags			backups
//	@Produce		json
//	@Success		200	{object}	ManifestListResponse
//	@Security		BearerAuth
//	@Router			/manifests [get]
func (h *Handler) ListManifests(w http.ResponseWriter, r *http.Request) {
	manifests, err := h.svc.Manifests(r.Context())
	if err != nil {
		writeError(w, "list manifests", err)
		return
	}
	if manifests == nil {
		manifests = []models.BackupManifest{}
	}
	writeJSON(w, http.StatusOK, ManifestListResponse{Manifests: manifests})
}

// GetManifest handles GET /api/manifests/{id}.
//
//	@Summary		Get one backup manifest
//	@Tags			backups
//	@Produce		json
//	@Param			id	path		string	true	"Manifest ID"
//	@Success		200	{object}	models.BackupManifest
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/manifests/{id} [get]
func (h *Handler) GetManifest(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Manifest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get manifest", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Restore handles POST /api/manifests/{id}/restore.
//
//	@Summary		Restore every file of a manifest
//	@Tags			backups
//	@Produce		json
//	@Param			id	path		string	true	"Manifest ID"
//	@Success		200	{object}	RestoreResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/manifests/{id}/restore [post]
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	restored, err := h.svc.Restore(r.Context(), id)
	if err != nil {
		writeError(w, "restore", err)
		return
	}
	if restored == nil {
		restored = []string{}
	}
	writeJSON(w, http.StatusOK, RestoreResponse{ManifestID: id, Restored: restored})
}
