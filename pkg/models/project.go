// Package models contains domain types for finmon.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Project owns a tree of project events.
type Project struct {
	ID          uuid.UUID      `json:"id"`
	UserID      uuid.UUID      `json:"user_id"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	Extra       map[string]any `json:"extra"`
	Type        string         `json:"type"`
	Status      string         `json:"status"`
	Tags        []string       `json:"tags"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Project type constants.
const (
	ProjectTypeProject  = "project"
	ProjectTypeTemplate = "template"
)

// Project status constants.
const (
	ProjectStatusDraft     = "draft"
	ProjectStatusOngoing   = "ongoing"
	ProjectStatusCompleted = "completed"
	ProjectStatusArchived  = "archived"
	ProjectStatusDeleted   = "deleted"
)

// ValidProjectStatuses contains all valid project status values.
var ValidProjectStatuses = []string{
	ProjectStatusDraft,
	ProjectStatusOngoing,
	ProjectStatusCompleted,
	ProjectStatusArchived,
	ProjectStatusDeleted,
}

// IsValidProjectStatus checks if the given status is valid.
func IsValidProjectStatus(status string) bool {
	for _, s := range ValidProjectStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsValidProjectType checks if the given project type is valid.
func IsValidProjectType(projectType string) bool {
	return projectType == ProjectTypeProject || projectType == ProjectTypeTemplate
}

// ProjectPatch holds the optional fields of a project update.
type ProjectPatch struct {
	Name        *string
	Description *string
	Status      *string
	Tags        []string
	Extra       map[string]any
}

// ProjectTree is a project with its events assembled as a tree.
type ProjectTree struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	Status      string       `json:"status"`
	Events      []*EventNode `json:"events"`
}
