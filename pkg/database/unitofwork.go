package database

import (
	"context"
	"fmt"
)

// UnitOfWork manages transactional boundaries. The callback receives a
// context carrying the transaction; repositories resolve it via GetQuerier,
// so every statement issued inside fn commits or rolls back together.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// pgxUnitOfWork opens transactions on the request-scoped connection.
// Nested calls open a savepoint on the outer transaction.
type pgxUnitOfWork struct{}

// NewUnitOfWork creates a UnitOfWork backed by pgx transactions.
func NewUnitOfWork() UnitOfWork {
	return &pgxUnitOfWork{}
}

func (u *pgxUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	q, err := GetQuerier(ctx)
	if err != nil {
		return err
	}

	tx, err := q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(SetTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
