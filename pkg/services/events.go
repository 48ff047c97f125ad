package services

import (
	"context"
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

// Sortable event list columns.
var eventSorts = []string{"name", "event_type", "created_at", "updated_at"}

// EventService defines the interface for project event operations.
// Every mutation that changes a file cost recomputes all folders above it
// in the same transaction.
type EventService interface {
	Create(ctx context.Context, userID uuid.UUID, input *models.NewEventInput) (*models.EventWithCost, error)
	Get(ctx context.Context, userID, eventID uuid.UUID) (*models.EventWithCost, error)
	List(ctx context.Context, userID, projectID uuid.UUID, filter models.EventFilter) ([]*models.ProjectEvent, models.PageMeta, error)
	// Update changes event metadata and, for files only, applies a cost patch.
	Update(ctx context.Context, userID, eventID uuid.UUID, patch models.EventPatch, cost *models.FileCostPatch) (*models.EventWithCost, error)
	UpdateFileCost(ctx context.Context, userID, eventID uuid.UUID, patch models.FileCostPatch) (*models.EventWithCost, error)
	// Delete removes the event with its subtree. The project root cannot be deleted.
	Delete(ctx context.Context, userID, eventID uuid.UUID) error
	// Recompute rebuilds the event's summary (folders) and every summary above it.
	Recompute(ctx context.Context, userID, eventID uuid.UUID) (*models.EventWithCost, error)
}

type eventService struct {
	projectRepo       repositories.ProjectRepository
	eventRepo         repositories.EventRepository
	costRepo          repositories.CostRepository
	aggregator        CostAggregator
	propagator        CostPropagator
	uow               database.UnitOfWork
	normalizeCurrency bool
	logger            *zap.Logger
}

// NewEventService creates a new event service with dependencies.
// When normalizeCurrency is set, currency codes are trimmed and upper-cased
// before they are written.
func NewEventService(
	projectRepo repositories.ProjectRepository,
	eventRepo repositories.EventRepository,
	costRepo repositories.CostRepository,
	aggregator CostAggregator,
	propagator CostPropagator,
	uow database.UnitOfWork,
	normalizeCurrency bool,
	logger *zap.Logger,
) EventService {
	return &eventService{
		projectRepo:       projectRepo,
		eventRepo:         eventRepo,
		costRepo:          costRepo,
		aggregator:        aggregator,
		propagator:        propagator,
		uow:               uow,
		normalizeCurrency: normalizeCurrency,
		logger:            logger.Named("events"),
	}
}

func (s *eventService) Create(ctx context.Context, userID uuid.UUID, input *models.NewEventInput) (*models.EventWithCost, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrInvalidInput)
	}
	eventType := input.EventType
	if eventType == "" {
		eventType = models.EventTypeFolder
	}
	if !eventType.IsValid() {
		return nil, fmt.Errorf("%w: invalid event type %q", apperrors.ErrInvalidInput, eventType)
	}
	if err := checkAmounts(input.Cost); err != nil {
		return nil, err
	}

	project, err := ownedProject(ctx, s.projectRepo, userID, input.ProjectID)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	var path string

	if input.ParentID == nil {
		// Only a project without a root may get one, and it must be a folder.
		_, err := s.eventRepo.GetRoot(ctx, project.ID)
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: project already has a root folder, parent_id is required", apperrors.ErrInvalidState)
		case !isNotFound(err):
			return nil, err
		case eventType != models.EventTypeFolder:
			return nil, fmt.Errorf("%w: the project root must be a folder", apperrors.ErrInvalidState)
		}
		path = eventpath.Root(id.String())
	} else {
		parent, err := s.eventRepo.Get(ctx, *input.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.ProjectID != project.ID {
			return nil, fmt.Errorf("%w: parent belongs to another project", apperrors.ErrInvalidState)
		}
		if !parent.IsFolder() {
			return nil, fmt.Errorf("%w: parent is not a folder", apperrors.ErrInvalidState)
		}
		path = eventpath.Child(parent.Path, id.String())
	}

	event := &models.ProjectEvent{
		ID:          id,
		ProjectID:   project.ID,
		UserID:      &userID,
		ParentID:    input.ParentID,
		Name:        name,
		Description: input.Description,
		Extra:       input.Extra,
		EventType:   eventType,
		SortOrder:   input.SortOrder,
		Path:        path,
	}
	if event.Extra == nil {
		event.Extra = map[string]any{}
	}

	var cost models.Cost
	err = s.uow.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.eventRepo.Create(ctx, event); err != nil {
			return err
		}

		if event.IsFolder() {
			cost = models.CostSummary{}
			return s.costRepo.CreateFolderSummary(ctx, event.ID)
		}

		fileCost := &models.FileCost{ProjectEventID: event.ID}
		if input.Cost != nil {
			input.Cost.Apply(fileCost, s.normalizeCurrency)
		}
		if err := s.costRepo.CreateFileCost(ctx, fileCost); err != nil {
			return err
		}
		cost = fileCost
		return s.propagator.PropagateCostUpward(ctx, event.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Created project event",
		zap.String("event_id", event.ID.String()),
		zap.String("project_id", project.ID.String()),
		zap.String("event_type", string(event.EventType)),
		zap.Int("depth", event.Depth))

	return &models.EventWithCost{ProjectEvent: event, Cost: cost}, nil
}

func (s *eventService) Get(ctx context.Context, userID, eventID uuid.UUID) (*models.EventWithCost, error) {
	event, err := s.ownedEvent(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	return s.withCost(ctx, event)
}

func (s *eventService) List(ctx context.Context, userID, projectID uuid.UUID, filter models.EventFilter) ([]*models.ProjectEvent, models.PageMeta, error) {
	if filter.EventType != "" && !filter.EventType.IsValid() {
		return nil, models.PageMeta{}, fmt.Errorf("%w: invalid event type %q", apperrors.ErrInvalidInput, filter.EventType)
	}
	if _, err := ownedProject(ctx, s.projectRepo, userID, projectID); err != nil {
		return nil, models.PageMeta{}, err
	}

	filter.Normalize("created_at", eventSorts...)
	events, total, err := s.eventRepo.List(ctx, projectID, filter)
	if err != nil {
		return nil, models.PageMeta{}, err
	}
	return events, models.NewPageMeta(total, filter.ListOptions), nil
}

func (s *eventService) Update(ctx context.Context, userID, eventID uuid.UUID, patch models.EventPatch, cost *models.FileCostPatch) (*models.EventWithCost, error) {
	event, err := s.ownedEvent(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if cost != nil && event.IsFolder() {
		return nil, fmt.Errorf("%w: folder costs are derived and cannot be written", apperrors.ErrInvalidState)
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", apperrors.ErrInvalidInput)
	}
	if err := checkAmounts(cost); err != nil {
		return nil, err
	}

	var updatedCost models.Cost
	err = s.uow.WithinTx(ctx, func(ctx context.Context) error {
		if !patch.IsEmpty() {
			patch.Apply(event)
			if err := s.eventRepo.Update(ctx, event); err != nil {
				return err
			}
		}
		if cost == nil {
			return nil
		}

		fileCost, err := s.applyCost(ctx, event, *cost)
		if err != nil {
			return err
		}
		updatedCost = fileCost
		return s.propagator.PropagateCostUpward(ctx, event.ID)
	})
	if err != nil {
		return nil, err
	}

	if updatedCost != nil {
		return &models.EventWithCost{ProjectEvent: event, Cost: updatedCost}, nil
	}
	return s.withCost(ctx, event)
}

func (s *eventService) UpdateFileCost(ctx context.Context, userID, eventID uuid.UUID, patch models.FileCostPatch) (*models.EventWithCost, error) {
	return s.Update(ctx, userID, eventID, models.EventPatch{}, &patch)
}

func (s *eventService) Delete(ctx context.Context, userID, eventID uuid.UUID) error {
	event, err := s.ownedEvent(ctx, userID, eventID)
	if err != nil {
		return err
	}
	if event.IsRoot() {
		return fmt.Errorf("%w: the project root is deleted with its project", apperrors.ErrInvalidState)
	}

	parentID := *event.ParentID
	var deleted int64
	err = s.uow.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.eventRepo.DeleteSubtree(ctx, event)
		if err != nil {
			return err
		}
		deleted = n
		return s.propagator.PropagateFromParent(ctx, parentID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Deleted project event",
		zap.String("event_id", event.ID.String()),
		zap.String("parent_id", parentID.String()),
		zap.Int64("events_deleted", deleted))
	return nil
}

func (s *eventService) Recompute(ctx context.Context, userID, eventID uuid.UUID) (*models.EventWithCost, error) {
	event, err := s.ownedEvent(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}

	err = s.uow.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.aggregator.Recompute(ctx, event); err != nil {
			return err
		}
		return s.propagator.PropagateCostUpward(ctx, event.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.withCost(ctx, event)
}

// applyCost patches the file's stored cost, starting from zero values when
// the row is missing.
func (s *eventService) applyCost(ctx context.Context, event *models.ProjectEvent, patch models.FileCostPatch) (*models.FileCost, error) {
	fileCost, err := s.costRepo.GetFileCost(ctx, event.ID)
	if err != nil {
		if !isNotFound(err) {
			return nil, err
		}
		fileCost = &models.FileCost{ProjectEventID: event.ID}
	}

	patch.Apply(fileCost, s.normalizeCurrency)
	if err := s.costRepo.UpdateFileCost(ctx, fileCost); err != nil {
		return nil, err
	}
	return fileCost, nil
}

// checkAmounts rejects amounts the NUMERIC(18, 2) columns would round or
// overflow.
func checkAmounts(patch *models.FileCostPatch) error {
	if patch == nil {
		return nil
	}
	if bad := patch.InvalidAmounts(); len(bad) > 0 {
		return fmt.Errorf("%w: %s must have at most %d decimal places and %d integer digits",
			apperrors.ErrInvalidInput, strings.Join(bad, ", "), models.AmountScale, models.AmountIntegerDigits)
	}
	return nil
}

// ownedEvent loads an event and checks the caller owns its project.
func (s *eventService) ownedEvent(ctx context.Context, userID, eventID uuid.UUID) (*models.ProjectEvent, error) {
	event, err := s.eventRepo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if _, err := ownedProject(ctx, s.projectRepo, userID, event.ProjectID); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *eventService) withCost(ctx context.Context, event *models.ProjectEvent) (*models.EventWithCost, error) {
	var cost models.Cost
	var err error
	if event.IsFolder() {
		cost, err = s.costRepo.GetFolderSummary(ctx, event.ID)
	} else {
		cost, err = s.costRepo.GetFileCost(ctx, event.ID)
	}
	if err != nil {
		if !isNotFound(err) {
			return nil, err
		}
		cost = emptyCost(event)
	}
	return &models.EventWithCost{ProjectEvent: event, Cost: cost}, nil
}

// Ensure eventService implements EventService at compile time.
var _ EventService = (*eventService)(nil)
