package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/finmon/pkg/auth"
	"github.com/ekaya-inc/finmon/pkg/models"
	"github.com/ekaya-inc/finmon/pkg/services"
)

// CreateProjectRequest is the body of POST /api/projects.
type CreateProjectRequest struct {
	Name        string         `json:"name" validate:"required,max=255"`
	Description *string        `json:"description"`
	Type        string         `json:"type" validate:"omitempty,oneof=project template"`
	Status      string         `json:"status" validate:"omitempty,oneof=draft ongoing completed archived deleted"`
	Tags        []string       `json:"tags" validate:"omitempty,dive,max=64"`
	Extra       map[string]any `json:"extra"`
}

// UpdateProjectRequest is the body of PATCH /api/projects/{pid}.
// Omitted fields are left unchanged.
type UpdateProjectRequest struct {
	Name        *string        `json:"name" validate:"omitempty,max=255"`
	Description *string        `json:"description"`
	Status      *string        `json:"status" validate:"omitempty,oneof=draft ongoing completed archived deleted"`
	Tags        []string       `json:"tags" validate:"omitempty,dive,max=64"`
	Extra       map[string]any `json:"extra"`
}

// ProjectsHandler handles project HTTP requests.
type ProjectsHandler struct {
	projectService services.ProjectService
	logger         *zap.Logger
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(projectService services.ProjectService, logger *zap.Logger) *ProjectsHandler {
	return &ProjectsHandler{
		projectService: projectService,
		logger:         logger,
	}
}

// RegisterRoutes registers the projects handler's routes on the given mux.
func (h *ProjectsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/projects", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("POST /api/projects", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/projects/{pid}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PATCH /api/projects/{pid}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/projects/{pid}", authMiddleware.RequireAuth(h.Delete))
}

// List handles GET /api/projects
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	projects, meta, err := h.projectService.List(r.Context(), userID, parseListOptions(r), r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, h.logger, "list projects", err, zap.String("user_id", userID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: projects, Meta: meta}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/projects
// The project is created together with its root folder.
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateProjectRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	project, err := h.projectService.Create(r.Context(), userID, &models.Project{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Status:      req.Status,
		Tags:        req.Tags,
		Extra:       req.Extra,
	})
	if err != nil {
		writeServiceError(w, h.logger, "create project", err, zap.String("name", req.Name))
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: project}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/projects/{pid}
// Returns the project with its nested event tree.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	tree, err := h.projectService.GetTree(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, h.logger, "get project tree", err, zap.String("project_id", projectID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: tree}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/projects/{pid}
func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	project, err := h.projectService.Update(r.Context(), userID, projectID, &models.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Tags:        req.Tags,
		Extra:       req.Extra,
	})
	if err != nil {
		writeServiceError(w, h.logger, "update project", err, zap.String("project_id", projectID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: project}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/projects/{pid}
// Removes the project, its events and their cost records.
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.projectService.Delete(r.Context(), userID, projectID); err != nil {
		writeServiceError(w, h.logger, "delete project", err, zap.String("project_id", projectID.String()))
		return
	}

	h.logger.Info("Project deleted", zap.String("project_id", projectID.String()))

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Project deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
