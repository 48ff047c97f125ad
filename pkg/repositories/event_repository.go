package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/finmon/pkg/apperrors"
	"github.com/ekaya-inc/finmon/pkg/database"
	"github.com/ekaya-inc/finmon/pkg/models"
)

// EventRepository defines the interface for project event data access.
type EventRepository interface {
	Create(ctx context.Context, event *models.ProjectEvent) error
	Get(ctx context.Context, id uuid.UUID) (*models.ProjectEvent, error)
	GetRoot(ctx context.Context, projectID uuid.UUID) (*models.ProjectEvent, error)
	Update(ctx context.Context, event *models.ProjectEvent) error
	// ListByProject returns every event of the project ordered by path.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectEvent, error)
	// List returns one page of the project's events and the total match count.
	List(ctx context.Context, projectID uuid.UUID, filter models.EventFilter) ([]*models.ProjectEvent, int, error)
	// DeleteSubtree removes the event, all descendants and their cost rows.
	DeleteSubtree(ctx context.Context, event *models.ProjectEvent) (int64, error)
}

// eventRepository implements EventRepository using PostgreSQL.
type eventRepository struct{}

// NewEventRepository creates a new event repository.
func NewEventRepository() EventRepository {
	return &eventRepository{}
}

const eventColumns = `id, project_id, user_id, parent_id, name, description, extra,
	event_type::text, sort_order, path::text, depth, note, created_at, updated_at`

var eventSortColumns = map[string]string{
	"name":       "name",
	"event_type": "event_type",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// Create inserts a new event. The caller sets ID and Path before the insert
// because the id is the last label of the path.
func (r *eventRepository) Create(ctx context.Context, event *models.ProjectEvent) error {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	if event.ID == uuid.Nil {
		return fmt.Errorf("event id must be set before insert")
	}

	extra, err := marshalJSONObject(event.Extra)
	if err != nil {
		return err
	}

	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now

	query := `
		INSERT INTO project_events (id, project_id, user_id, parent_id, name, description, extra,
			event_type, sort_order, path, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::ltree, $11, $12, $13)
		RETURNING depth`

	err = q.QueryRow(ctx, query,
		event.ID,
		event.ProjectID,
		event.UserID,
		event.ParentID,
		event.Name,
		event.Description,
		extra,
		string(event.EventType),
		event.SortOrder,
		event.Path,
		event.Note,
		event.CreatedAt,
		event.UpdatedAt,
	).Scan(&event.Depth)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return apperrors.ErrNotFound
		}
		if isPgError(err, pgUniqueViolation) {
			if event.ParentID == nil {
				return fmt.Errorf("%w: project already has a root folder", apperrors.ErrInvalidState)
			}
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create project event: %w", err)
	}

	return nil
}

// Get retrieves an event by ID.
func (r *eventRepository) Get(ctx context.Context, id uuid.UUID) (*models.ProjectEvent, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + eventColumns + ` FROM project_events WHERE id = $1`

	event, err := scanEvent(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project event: %w", err)
	}
	return event, nil
}

// GetRoot retrieves the root folder of a project.
func (r *eventRepository) GetRoot(ctx context.Context, projectID uuid.UUID) (*models.ProjectEvent, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + eventColumns + ` FROM project_events WHERE project_id = $1 AND parent_id IS NULL`

	event, err := scanEvent(q.QueryRow(ctx, query, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get root event: %w", err)
	}
	return event, nil
}

// Update writes the mutable metadata of an event.
func (r *eventRepository) Update(ctx context.Context, event *models.ProjectEvent) error {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	extra, err := marshalJSONObject(event.Extra)
	if err != nil {
		return err
	}

	event.UpdatedAt = time.Now()

	query := `
		UPDATE project_events
		SET name = $2, description = $3, sort_order = $4, extra = $5, note = $6, updated_at = $7
		WHERE id = $1`

	result, err := q.Exec(ctx, query,
		event.ID,
		event.Name,
		event.Description,
		event.SortOrder,
		extra,
		event.Note,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update project event: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// ListByProject returns all events of a project ordered by path, so parents
// always precede their children.
func (r *eventRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectEvent, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + eventColumns + ` FROM project_events WHERE project_id = $1 ORDER BY path`

	rows, err := q.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// List returns a filtered, sorted page of the project's events.
func (r *eventRepository) List(ctx context.Context, projectID uuid.UUID, filter models.EventFilter) ([]*models.ProjectEvent, int, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, 0, err
	}

	conditions := []string{"project_id = $1"}
	args := []any{projectID}

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if filter.EventType != "" {
		args = append(args, string(filter.EventType))
		conditions = append(conditions, fmt.Sprintf("event_type = $%d::project_event_type", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM project_events WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count project events: %w", err)
	}

	order := orderClause(eventSortColumns, filter.Sort, filter.Order, "created_at")
	args = append(args, filter.Limit, filter.Offset())
	query := fmt.Sprintf(`SELECT %s FROM project_events WHERE %s ORDER BY %s, id LIMIT $%d OFFSET $%d`,
		eventColumns, where, order, len(args)-1, len(args))

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list project events: %w", err)
	}
	defer rows.Close()

	events, err := collectEvents(rows)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// DeleteSubtree removes the event and everything below it, cost rows first.
// Returns the number of events deleted.
func (r *eventRepository) DeleteSubtree(ctx context.Context, event *models.ProjectEvent) (int64, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return 0, err
	}

	_, err = q.Exec(ctx, `
		DELETE FROM projects_cost
		WHERE project_event_id IN (
			SELECT id FROM project_events WHERE project_id = $1 AND path <@ $2::ltree
		)`, event.ProjectID, event.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to delete subtree costs: %w", err)
	}

	result, err := q.Exec(ctx,
		`DELETE FROM project_events WHERE project_id = $1 AND path <@ $2::ltree`,
		event.ProjectID, event.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to delete subtree events: %w", err)
	}

	if result.RowsAffected() == 0 {
		return 0, apperrors.ErrNotFound
	}

	return result.RowsAffected(), nil
}

func scanEvent(row pgx.Row) (*models.ProjectEvent, error) {
	var event models.ProjectEvent
	var extra []byte
	var eventType string

	err := row.Scan(
		&event.ID,
		&event.ProjectID,
		&event.UserID,
		&event.ParentID,
		&event.Name,
		&event.Description,
		&extra,
		&eventType,
		&event.SortOrder,
		&event.Path,
		&event.Depth,
		&event.Note,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.EventType = models.EventType(eventType)
	if event.Extra, err = unmarshalJSONObject(extra); err != nil {
		return nil, err
	}
	return &event, nil
}

func collectEvents(rows pgx.Rows) ([]*models.ProjectEvent, error) {
	events := []*models.ProjectEvent{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project events: %w", err)
	}
	return events, nil
}

// Ensure eventRepository implements EventRepository at compile time.
var _ EventRepository = (*eventRepository)(nil)
