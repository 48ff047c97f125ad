package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/finmon/pkg/apperrors"
	"github.com/ekaya-inc/finmon/pkg/metrics"
	"github.com/ekaya-inc/finmon/pkg/repositories"
)

// DefaultMaxTreeDepth bounds a propagation walk when no limit is configured.
const DefaultMaxTreeDepth = 256

// CostPropagator keeps every folder on the path to the root up to date.
type CostPropagator interface {
	// PropagateCostUpward recomputes every ancestor of startID, parent first.
	PropagateCostUpward(ctx context.Context, startID uuid.UUID) error
	// PropagateFromParent recomputes parentID and every ancestor above it.
	PropagateFromParent(ctx context.Context, parentID uuid.UUID) error
}

type costPropagator struct {
	eventRepo  repositories.EventRepository
	aggregator CostAggregator
	maxDepth   int
	logger     *zap.Logger
}

// NewCostPropagator creates a propagator whose walks stop after maxDepth
// ancestors.
func NewCostPropagator(
	eventRepo repositories.EventRepository,
	aggregator CostAggregator,
	maxDepth int,
	logger *zap.Logger,
) CostPropagator {
	if maxDepth < 1 {
		maxDepth = DefaultMaxTreeDepth
	}
	return &costPropagator{
		eventRepo:  eventRepo,
		aggregator: aggregator,
		maxDepth:   maxDepth,
		logger:     logger.Named("cost-propagator"),
	}
}

func (p *costPropagator) PropagateCostUpward(ctx context.Context, startID uuid.UUID) error {
	start, err := p.eventRepo.Get(ctx, startID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			p.inconsistent(startID, metrics.ReasonMissingNode, 0)
			return nil
		}
		return err
	}

	if start.ParentID == nil {
		metrics.PropagationSteps.Observe(0)
		return nil
	}
	return p.walk(ctx, *start.ParentID)
}

func (p *costPropagator) PropagateFromParent(ctx context.Context, parentID uuid.UUID) error {
	return p.walk(ctx, parentID)
}

// walk recomputes id and then follows parent links until the root is done.
// A broken chain stops the walk without failing the caller; the next
// mutation below the same folder recomputes it again.
func (p *costPropagator) walk(ctx context.Context, id uuid.UUID) error {
	current := id
	steps := 0

	for {
		if steps >= p.maxDepth {
			p.inconsistent(current, metrics.ReasonDepthExceeded, steps)
			break
		}

		node, err := p.eventRepo.Get(ctx, current)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				p.inconsistent(current, metrics.ReasonMissingNode, steps)
				break
			}
			return fmt.Errorf("failed to load ancestor %s: %w", current, err)
		}

		if _, err := p.aggregator.Recompute(ctx, node); err != nil {
			return fmt.Errorf("failed to recompute ancestor %s: %w", current, err)
		}
		steps++

		if node.ParentID == nil {
			break
		}
		current = *node.ParentID
	}

	metrics.PropagationSteps.Observe(float64(steps))
	return nil
}

func (p *costPropagator) inconsistent(id uuid.UUID, reason string, steps int) {
	metrics.PropagationInconsistencies.WithLabelValues(reason).Inc()
	p.logger.Warn("Stopped cost propagation",
		zap.String("event_id", id.String()),
		zap.String("reason", reason),
		zap.Int("steps", steps),
		zap.Error(apperrors.ErrAggregationInconsistency))
}

// Ensure costPropagator implements CostPropagator at compile time.
var _ CostPropagator = (*costPropagator)(nil)
