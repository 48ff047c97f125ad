package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/finmon/pkg/apperrors"
	"github.com/ekaya-inc/finmon/pkg/database"
	"github.com/ekaya-inc/finmon/pkg/eventpath"
	"github.com/ekaya-inc/finmon/pkg/models"
	"github.com/ekaya-inc/finmon/pkg/repositories"
)

// Sortable project list columns.
var projectSorts = []string{"name", "status", "created_at", "updated_at"}

// ProjectService defines the interface for project operations.
// Every method is scoped to the calling user; projects owned by someone
// else are reported as ErrNotFound.
type ProjectService interface {
	// Create inserts the project together with its root folder.
	Create(ctx context.Context, userID uuid.UUID, project *models.Project) (*models.Project, error)
	Get(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error)
	// GetTree returns the project with its events nested under their parents.
	GetTree(ctx context.Context, userID, projectID uuid.UUID) (*models.ProjectTree, error)
	List(ctx context.Context, userID uuid.UUID, opts models.ListOptions, status string) ([]*models.Project, models.PageMeta, error)
	Update(ctx context.Context, userID, projectID uuid.UUID, patch *models.ProjectPatch) (*models.Project, error)
	// Delete removes the project, its events and their cost rows.
	Delete(ctx context.Context, userID, projectID uuid.UUID) error
}

type projectService struct {
	projectRepo repositories.ProjectRepository
	eventRepo   repositories.EventRepository
	costRepo    repositories.CostRepository
	uow         database.UnitOfWork
	logger      *zap.Logger
}

// NewProjectService creates a new project service with dependencies.
func NewProjectService(
	projectRepo repositories.ProjectRepository,
	eventRepo repositories.EventRepository,
	costRepo repositories.CostRepository,
	uow database.UnitOfWork,
	logger *zap.Logger,
) ProjectService {
	return &projectService{
		projectRepo: projectRepo,
		eventRepo:   eventRepo,
		costRepo:    costRepo,
		uow:         uow,
		logger:      logger.Named("projects"),
	}
}

func (s *projectService) Create(ctx context.Context, userID uuid.UUID, project *models.Project) (*models.Project, error) {
	project.Name = strings.TrimSpace(project.Name)
	if project.Name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrInvalidInput)
	}
	if project.Type != "" && !models.IsValidProjectType(project.Type) {
		return nil, fmt.Errorf("%w: invalid project type %q", apperrors.ErrInvalidInput, project.Type)
	}
	if project.Status != "" && !models.IsValidProjectStatus(project.Status) {
		return nil, fmt.Errorf("%w: invalid project status %q", apperrors.ErrInvalidInput, project.Status)
	}

	project.ID = uuid.New()
	project.UserID = userID

	rootID := uuid.New()
	root := &models.ProjectEvent{
		ID:        rootID,
		ProjectID: project.ID,
		UserID:    &userID,
		Name:      models.RootEventName,
		EventType: models.EventTypeFolder,
		Path:      eventpath.Root(rootID.String()),
		Extra:     map[string]any{},
	}

	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.projectRepo.Create(ctx, project); err != nil {
			return err
		}
		if err := s.eventRepo.Create(ctx, root); err != nil {
			return fmt.Errorf("failed to create root folder: %w", err)
		}
		return s.costRepo.CreateFolderSummary(ctx, root.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Created project",
		zap.String("project_id", project.ID.String()),
		zap.String("root_event_id", root.ID.String()),
		zap.String("user_id", userID.String()))

	return project, nil
}

func (s *projectService) Get(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error) {
	return ownedProject(ctx, s.projectRepo, userID, projectID)
}

func (s *projectService) GetTree(ctx context.Context, userID, projectID uuid.UUID) (*models.ProjectTree, error) {
	project, err := ownedProject(ctx, s.projectRepo, userID, projectID)
	if err != nil {
		return nil, err
	}

	events, err := s.eventRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	costs, err := s.costRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	withCost := make([]*models.EventWithCost, 0, len(events))
	for _, ev := range events {
		cost, ok := costs[ev.ID]
		if !ok {
			cost = emptyCost(ev)
		}
		withCost = append(withCost, &models.EventWithCost{ProjectEvent: ev, Cost: cost})
	}

	return &models.ProjectTree{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		Status:      project.Status,
		Events:      models.BuildEventTree(withCost),
	}, nil
}

func (s *projectService) List(ctx context.Context, userID uuid.UUID, opts models.ListOptions, status string) ([]*models.Project, models.PageMeta, error) {
	if status != "" && !models.IsValidProjectStatus(status) {
		return nil, models.PageMeta{}, fmt.Errorf("%w: invalid project status %q", apperrors.ErrInvalidInput, status)
	}
	opts.Normalize("created_at", projectSorts...)

	projects, total, err := s.projectRepo.List(ctx, userID, opts, status)
	if err != nil {
		return nil, models.PageMeta{}, err
	}
	return projects, models.NewPageMeta(total, opts), nil
}

func (s *projectService) Update(ctx context.Context, userID, projectID uuid.UUID, patch *models.ProjectPatch) (*models.Project, error) {
	project, err := ownedProject(ctx, s.projectRepo, userID, projectID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", apperrors.ErrInvalidInput)
		}
		project.Name = name
	}
	if patch.Description != nil {
		project.Description = patch.Description
	}
	if patch.Status != nil {
		if !models.IsValidProjectStatus(*patch.Status) {
			return nil, fmt.Errorf("%w: invalid project status %q", apperrors.ErrInvalidInput, *patch.Status)
		}
		project.Status = *patch.Status
	}
	if patch.Tags != nil {
		project.Tags = patch.Tags
	}
	if patch.Extra != nil {
		project.Extra = patch.Extra
	}

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *projectService) Delete(ctx context.Context, userID, projectID uuid.UUID) error {
	if _, err := ownedProject(ctx, s.projectRepo, userID, projectID); err != nil {
		return err
	}

	// Events go with the project row through the foreign key cascade.
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.costRepo.DeleteByProject(ctx, projectID); err != nil {
			return err
		}
		return s.projectRepo.Delete(ctx, projectID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Deleted project",
		zap.String("project_id", projectID.String()),
		zap.String("user_id", userID.String()))
	return nil
}

// ownedProject loads a project and hides it from everyone but its owner.
func ownedProject(ctx context.Context, repo repositories.ProjectRepository, userID, projectID uuid.UUID) (*models.Project, error) {
	project, err := repo.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return project, nil
}

// emptyCost is the cost of an event whose cost row is missing.
func emptyCost(event *models.ProjectEvent) models.Cost {
	if event.IsFolder() {
		return models.CostSummary{}
	}
	return &models.FileCost{ProjectEventID: event.ID}
}

// isNotFound is shorthand used where a missing row is tolerated.
func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}

// Ensure projectService implements ProjectService at compile time.
var _ ProjectService = (*projectService)(nil)
