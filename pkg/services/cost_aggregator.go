package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/finmon/pkg/metrics"
	"github.com/ekaya-inc/finmon/pkg/models"
	"github.com/ekaya-inc/finmon/pkg/repositories"
)

// CostAggregator rebuilds a folder's summary from the file costs below it.
type CostAggregator interface {
	// RecomputeFolderCost loads the event and recomputes it. Files are a no-op
	// and return a nil summary.
	RecomputeFolderCost(ctx context.Context, folderID uuid.UUID) (models.CostSummary, error)
	// Recompute recomputes an already loaded event.
	Recompute(ctx context.Context, event *models.ProjectEvent) (models.CostSummary, error)
}

type costAggregator struct {
	eventRepo repositories.EventRepository
	costRepo  repositories.CostRepository
	logger    *zap.Logger
}

// NewCostAggregator creates a new cost aggregator.
func NewCostAggregator(
	eventRepo repositories.EventRepository,
	costRepo repositories.CostRepository,
	logger *zap.Logger,
) CostAggregator {
	return &costAggregator{
		eventRepo: eventRepo,
		costRepo:  costRepo,
		logger:    logger.Named("cost-aggregator"),
	}
}

func (a *costAggregator) RecomputeFolderCost(ctx context.Context, folderID uuid.UUID) (models.CostSummary, error) {
	event, err := a.eventRepo.Get(ctx, folderID)
	if err != nil {
		return nil, err
	}
	return a.Recompute(ctx, event)
}

func (a *costAggregator) Recompute(ctx context.Context, event *models.ProjectEvent) (models.CostSummary, error) {
	if !event.IsFolder() {
		return nil, nil
	}

	start := time.Now()
	costs, err := a.costRepo.ListDescendantFileCosts(ctx, event.ProjectID, event.Path)
	if err != nil {
		metrics.RecordRecompute(time.Since(start).Seconds(), 0, err)
		return nil, err
	}

	summary := SummarizeFileCosts(costs)
	if err := a.costRepo.WriteFolderSummary(ctx, event.ID, summary); err != nil {
		metrics.RecordRecompute(time.Since(start).Seconds(), len(costs), err)
		return nil, err
	}
	metrics.RecordRecompute(time.Since(start).Seconds(), len(costs), nil)

	a.logger.Debug("Recomputed folder cost",
		zap.String("event_id", event.ID.String()),
		zap.Int("files", len(costs)),
		zap.Int("currencies", len(summary)))

	return summary, nil
}

// SummarizeFileCosts groups file costs by their budget income currency and
// sums the four amounts. Costs without a currency are left out.
func SummarizeFileCosts(costs []*models.FileCost) models.CostSummary {
	summary := models.CostSummary{}
	for _, c := range costs {
		if c == nil {
			continue
		}
		currency := c.SummaryCurrency()
		if currency == "" {
			continue
		}
		summary[currency] = summary[currency].Add(c)
	}
	return summary
}

// Ensure costAggregator implements CostAggregator at compile time.
var _ CostAggregator = (*costAggregator)(nil)
