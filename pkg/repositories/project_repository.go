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

// ProjectRepository defines the interface for project data access.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	// List returns one page of the owner's projects and the total match count.
	// An empty status matches every status.
	List(ctx context.Context, ownerID uuid.UUID, opts models.ListOptions, status string) ([]*models.Project, int, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// projectRepository implements ProjectRepository using PostgreSQL.
type projectRepository struct{}

// NewProjectRepository creates a new project repository.
func NewProjectRepository() ProjectRepository {
	return &projectRepository{}
}

const projectColumns = `id, user_id, name, description, extra, type::text, status::text, tags, created_at, updated_at`

var projectSortColumns = map[string]string{
	"name":       "name",
	"status":     "status",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// Create inserts a new project. A duplicate name for the same owner returns ErrConflict.
func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}

	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	if project.Status == "" {
		project.Status = models.ProjectStatusDraft
	}
	if project.Type == "" {
		project.Type = models.ProjectTypeProject
	}
	if project.Tags == nil {
		project.Tags = []string{}
	}

	extra, err := marshalJSONObject(project.Extra)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO projects (id, user_id, name, description, extra, type, status, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = q.Exec(ctx, query,
		project.ID,
		project.UserID,
		project.Name,
		project.Description,
		extra,
		project.Type,
		project.Status,
		project.Tags,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// Get retrieves a project by ID.
func (r *projectRepository) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	project, err := scanProject(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// List returns the owner's projects filtered by search and status.
func (r *projectRepository) List(ctx context.Context, ownerID uuid.UUID, opts models.ListOptions, status string) ([]*models.Project, int, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, 0, err
	}

	conditions := []string{"user_id = $1"}
	args := []any{ownerID}

	if search := strings.TrimSpace(opts.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if status != "" {
		args = append(args, status)
		conditions = append(conditions, fmt.Sprintf("status = $%d::project_status", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM projects WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	order := orderClause(projectSortColumns, opts.Sort, opts.Order, "created_at")
	args = append(args, opts.Limit, opts.Offset())
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE %s ORDER BY %s, id LIMIT $%d OFFSET $%d`,
		projectColumns, where, order, len(args)-1, len(args))

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []*models.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, total, nil
}

// Update writes the mutable fields of a project.
func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	project.UpdatedAt = time.Now()
	if project.Tags == nil {
		project.Tags = []string{}
	}

	extra, err := marshalJSONObject(project.Extra)
	if err != nil {
		return err
	}

	query := `
		UPDATE projects
		SET name = $2, description = $3, status = $4, tags = $5, extra = $6, updated_at = $7
		WHERE id = $1`

	result, err := q.Exec(ctx, query,
		project.ID,
		project.Name,
		project.Description,
		project.Status,
		project.Tags,
		extra,
		project.UpdatedAt,
	)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to update project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes a project by ID.
// Events and cost rows are removed via CASCADE.
func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var project models.Project
	var extra []byte

	err := row.Scan(
		&project.ID,
		&project.UserID,
		&project.Name,
		&project.Description,
		&extra,
		&project.Type,
		&project.Status,
		&project.Tags,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if project.Extra, err = unmarshalJSONObject(extra); err != nil {
		return nil, err
	}
	return &project, nil
}

// Ensure projectRepository implements ProjectRepository at compile time.
var _ ProjectRepository = (*projectRepository)(nil)
