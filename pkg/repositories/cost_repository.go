package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/finmon/pkg/apperrors"
	"github.com/ekaya-inc/finmon/pkg/database"
	"github.com/ekaya-inc/finmon/pkg/models"
)

// CostRepository defines the interface for projects_cost data access.
// File events own the scalar amount columns; folder events own event_summary.
type CostRepository interface {
	CreateFileCost(ctx context.Context, cost *models.FileCost) error
	CreateFolderSummary(ctx context.Context, eventID uuid.UUID) error
	GetFileCost(ctx context.Context, eventID uuid.UUID) (*models.FileCost, error)
	// UpdateFileCost writes all amount columns, creating the row if it is missing.
	UpdateFileCost(ctx context.Context, cost *models.FileCost) error
	GetFolderSummary(ctx context.Context, eventID uuid.UUID) (models.CostSummary, error)
	WriteFolderSummary(ctx context.Context, eventID uuid.UUID, summary models.CostSummary) error
	// ListDescendantFileCosts returns the cost rows of all file events strictly
	// below path in the project.
	ListDescendantFileCosts(ctx context.Context, projectID uuid.UUID, path string) ([]*models.FileCost, error)
	// ListByProject returns every cost of the project keyed by event id.
	ListByProject(ctx context.Context, projectID uuid.UUID) (map[uuid.UUID]models.Cost, error)
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

// costRepository implements CostRepository using PostgreSQL.
type costRepository struct{}

// NewCostRepository creates a new cost repository.
func NewCostRepository() CostRepository {
	return &costRepository{}
}

const fileCostColumns = `c.project_event_id,
	COALESCE(c.budget_income_currency::text, ''), c.budget_income::text,
	COALESCE(c.budget_expense_currency::text, ''), c.budget_expense::text,
	COALESCE(c.real_income_currency::text, ''), c.real_income::text, c.real_income_created_at,
	COALESCE(c.real_expense_currency::text, ''), c.real_expense::text, c.real_expense_created_at`

var errAmountOutOfRange = fmt.Errorf("%w: cost amount out of range", apperrors.ErrInvalidInput)

func (r *costRepository) CreateFileCost(ctx context.Context, cost *models.FileCost) error {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO projects_cost (project_event_id,
			budget_income_currency, budget_income, budget_expense_currency, budget_expense,
			real_income_currency, real_income, real_income_created_at,
			real_expense_currency, real_expense, real_expense_created_at)
		VALUES ($1, $2, $3::numeric, $4, $5::numeric, $6, $7::numeric, $8, $9, $10::numeric, $11)`

	_, err = q.Exec(ctx, query, fileCostArgs(cost)...)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return apperrors.ErrConflict
		}
		if isPgError(err, pgNumericOutOfRange) {
			return errAmountOutOfRange
		}
		return fmt.Errorf("failed to create file cost: %w", err)
	}
	return nil
}

func (r *costRepository) CreateFolderSummary(ctx context.Context, eventID uuid.UUID) error {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx,
		`INSERT INTO projects_cost (project_event_id, event_summary) VALUES ($1, '{}'::jsonb)`,
		eventID)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create folder summary: %w", err)
	}
	return nil
}

func (r *costRepository) GetFileCost(ctx context.Context, eventID uuid.UUID) (*models.FileCost, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + fileCostColumns + ` FROM projects_cost c WHERE c.project_event_id = $1`

	cost, err := scanFileCost(q.QueryRow(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get file cost: %w", err)
	}
	return cost, nil
}

func (r *costRepository) UpdateFileCost(ctx context.Context, cost *models.FileCost) error {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO projects_cost (project_event_id,
			budget_income_currency, budget_income, budget_expense_currency, budget_expense,
			real_income_currency, real_income, real_income_created_at,
			real_expense_currency, real_expense, real_expense_created_at)
		VALUES ($1, $2, $3::numeric, $4, $5::numeric, $6, $7::numeric, $8, $9, $10::numeric, $11)
		ON CONFLICT (project_event_id) DO UPDATE
		SET budget_income_currency = EXCLUDED.budget_income_currency,
		    budget_income = EXCLUDED.budget_income,
		    budget_expense_currency = EXCLUDED.budget_expense_currency,
		    budget_expense = EXCLUDED.budget_expense,
		    real_income_currency = EXCLUDED.real_income_currency,
		    real_income = EXCLUDED.real_income,
		    real_income_created_at = EXCLUDED.real_income_created_at,
		    real_expense_currency = EXCLUDED.real_expense_currency,
		    real_expense = EXCLUDED.real_expense,
		    real_expense_created_at = EXCLUDED.real_expense_created_at,
		    updated_at = now()`

	if _, err := q.Exec(ctx, query, fileCostArgs(cost)...); err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return apperrors.ErrNotFound
		}
		if isPgError(err, pgNumericOutOfRange) {
			return errAmountOutOfRange
		}
		return fmt.Errorf("failed to update file cost: %w", err)
	}
	return nil
}

func (r *costRepository) GetFolderSummary(ctx context.Context, eventID uuid.UUID) (models.CostSummary, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = q.QueryRow(ctx,
		`SELECT event_summary FROM projects_cost WHERE project_event_id = $1`,
		eventID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get folder summary: %w", err)
	}
	return decodeSummary(raw)
}

// WriteFolderSummary replaces the folder's summary, creating the row if it is missing.
func (r *costRepository) WriteFolderSummary(ctx context.Context, eventID uuid.UUID, summary models.CostSummary) error {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	data, err := encodeSummary(summary)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO projects_cost (project_event_id, event_summary, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_event_id) DO UPDATE
		SET event_summary = EXCLUDED.event_summary,
		    updated_at = EXCLUDED.updated_at`

	if _, err := q.Exec(ctx, query, eventID, data, time.Now()); err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to write folder summary: %w", err)
	}
	return nil
}

func (r *costRepository) ListDescendantFileCosts(ctx context.Context, projectID uuid.UUID, path string) ([]*models.FileCost, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + fileCostColumns + `
		FROM projects_cost c
		JOIN project_events e ON e.id = c.project_event_id
		WHERE e.project_id = $1
		  AND e.event_type = 'file'
		  AND e.path <@ $2::ltree
		  AND e.path <> $2::ltree`

	rows, err := q.Query(ctx, query, projectID, path)
	if err != nil {
		return nil, fmt.Errorf("failed to list descendant file costs: %w", err)
	}
	defer rows.Close()

	costs := []*models.FileCost{}
	for rows.Next() {
		cost, err := scanFileCost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file cost: %w", err)
		}
		costs = append(costs, cost)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file costs: %w", err)
	}
	return costs, nil
}

func (r *costRepository) ListByProject(ctx context.Context, projectID uuid.UUID) (map[uuid.UUID]models.Cost, error) {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT e.event_type::text, c.event_summary, ` + fileCostColumns + `
		FROM projects_cost c
		JOIN project_events e ON e.id = c.project_event_id
		WHERE e.project_id = $1`

	rows, err := q.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project costs: %w", err)
	}
	defer rows.Close()

	costs := make(map[uuid.UUID]models.Cost)
	for rows.Next() {
		var eventType string
		var summary []byte
		var fc fileCostRow
		dest := append([]any{&eventType, &summary}, fc.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan project cost: %w", err)
		}

		if models.EventType(eventType) == models.EventTypeFolder {
			s, err := decodeSummary(summary)
			if err != nil {
				return nil, err
			}
			costs[fc.cost.ProjectEventID] = s
			continue
		}

		cost, err := fc.finish()
		if err != nil {
			return nil, err
		}
		costs[cost.ProjectEventID] = cost
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project costs: %w", err)
	}
	return costs, nil
}

func (r *costRepository) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	q, err := database.GetQuerier(ctx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		DELETE FROM projects_cost
		WHERE project_event_id IN (SELECT id FROM project_events WHERE project_id = $1)`,
		projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project costs: %w", err)
	}
	return nil
}

func fileCostArgs(c *models.FileCost) []any {
	return []any{
		c.ProjectEventID,
		nullIfEmpty(c.BudgetIncomeCurrency),
		c.BudgetIncome.String(),
		nullIfEmpty(c.BudgetExpenseCurrency),
		c.BudgetExpense.String(),
		nullIfEmpty(c.RealIncomeCurrency),
		c.RealIncome.String(),
		c.RealIncomeCreatedAt,
		nullIfEmpty(c.RealExpenseCurrency),
		c.RealExpense.String(),
		c.RealExpenseCreatedAt,
	}
}

// fileCostRow holds the text-encoded amounts of a scanned cost row.
type fileCostRow struct {
	cost                                                  models.FileCost
	budgetIncome, budgetExpense, realIncome, realExpense string
}

func (f *fileCostRow) dest() []any {
	return []any{
		&f.cost.ProjectEventID,
		&f.cost.BudgetIncomeCurrency, &f.budgetIncome,
		&f.cost.BudgetExpenseCurrency, &f.budgetExpense,
		&f.cost.RealIncomeCurrency, &f.realIncome, &f.cost.RealIncomeCreatedAt,
		&f.cost.RealExpenseCurrency, &f.realExpense, &f.cost.RealExpenseCreatedAt,
	}
}

func (f *fileCostRow) finish() (*models.FileCost, error) {
	var err error
	if f.cost.BudgetIncome, err = parseAmount(f.budgetIncome); err != nil {
		return nil, err
	}
	if f.cost.BudgetExpense, err = parseAmount(f.budgetExpense); err != nil {
		return nil, err
	}
	if f.cost.RealIncome, err = parseAmount(f.realIncome); err != nil {
		return nil, err
	}
	if f.cost.RealExpense, err = parseAmount(f.realExpense); err != nil {
		return nil, err
	}
	cost := f.cost
	return &cost, nil
}

func scanFileCost(row pgx.Row) (*models.FileCost, error) {
	var fc fileCostRow
	if err := row.Scan(fc.dest()...); err != nil {
		return nil, err
	}
	return fc.finish()
}

// storedTotals is the event_summary encoding of one currency. The column
// keeps camelCase keys; the API uses snake_case through models.CurrencyTotals.
type storedTotals struct {
	BudgetIncome  decimal.Decimal `json:"budgetIncome"`
	BudgetExpense decimal.Decimal `json:"budgetExpense"`
	RealIncome    decimal.Decimal `json:"realIncome"`
	RealExpense   decimal.Decimal `json:"realExpense"`
}

func encodeSummary(summary models.CostSummary) ([]byte, error) {
	stored := make(map[string]storedTotals, len(summary))
	for currency, t := range summary {
		stored[currency] = storedTotals(t)
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal folder summary: %w", err)
	}
	return data, nil
}

func decodeSummary(raw []byte) (models.CostSummary, error) {
	summary := models.CostSummary{}
	if len(raw) == 0 {
		return summary, nil
	}
	var stored map[string]storedTotals
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal folder summary: %w", err)
	}
	for currency, t := range stored {
		summary[currency] = models.CurrencyTotals(t)
	}
	return summary, nil
}

// Ensure costRepository implements CostRepository at compile time.
var _ CostRepository = (*costRepository)(nil)
