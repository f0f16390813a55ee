package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"batchledger/internal/core/entity"
	"batchledger/internal/core/id"
	"batchledger/internal/domain/ledger"
	"batchledger/internal/infrastructure/storage/postgres"
)

const allocationsTable = "ledger_allocations"

var allocationColumns = []string{
	"line_id", "consumer_id", "consumer_type", "consumer_line_id",
	"lock_version", "batch_id", "quantity_used", "unit_price", "created_at",
}

// AllocationRepo implements ledger.AllocationStore.
type AllocationRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewAllocationRepo creates a new allocation repository.
func NewAllocationRepo(txManager *postgres.TxManager) *AllocationRepo {
	return &AllocationRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateMany inserts allocation records. Uses COPY inside a transaction.
func (r *AllocationRepo) CreateMany(ctx context.Context, records []entity.AllocationRecord) error {
	if len(records) == 0 {
		return nil
	}

	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(records))
		for _, rec := range records {
			rows = append(rows, []any{
				rec.LineID, rec.ConsumerID, rec.ConsumerType, rec.ConsumerLineID,
				rec.LockVersion, rec.BatchID, rec.QuantityUsed, rec.UnitPrice, rec.CreatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, allocationsTable, allocationColumns, rows); err != nil {
			return fmt.Errorf("copy allocations: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(allocationsTable).Columns(allocationColumns...)
	for _, rec := range records {
		q = q.Values(
			rec.LineID, rec.ConsumerID, rec.ConsumerType, rec.ConsumerLineID,
			rec.LockVersion, rec.BatchID, rec.QuantityUsed, rec.UnitPrice, rec.CreatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err = querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert allocations: %w", err)
	}

	return nil
}

// ListByConsumer returns all allocation records made by a document.
func (r *AllocationRepo) ListByConsumer(ctx context.Context, consumerID id.ID) ([]entity.AllocationRecord, error) {
	q := r.builder.Select(allocationColumns...).
		From(allocationsTable).
		Where(squirrel.Eq{"consumer_id": consumerID}).
		OrderBy("created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []entity.AllocationRecord
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &records, sql, args...); err != nil {
		return nil, fmt.Errorf("select allocations: %w", err)
	}

	return records, nil
}

// ListByBatch returns all allocation records drawing from a batch.
func (r *AllocationRepo) ListByBatch(ctx context.Context, batchID id.ID) ([]entity.AllocationRecord, error) {
	q := r.builder.Select(allocationColumns...).
		From(allocationsTable).
		Where(squirrel.Eq{"batch_id": batchID}).
		OrderBy("created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []entity.AllocationRecord
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &records, sql, args...); err != nil {
		return nil, fmt.Errorf("select allocations: %w", err)
	}

	return records, nil
}

// DeleteByConsumer removes all allocation records of a document.
func (r *AllocationRepo) DeleteByConsumer(ctx context.Context, consumerID id.ID) error {
	q := r.builder.Delete(allocationsTable).
		Where(squirrel.Eq{"consumer_id": consumerID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err = querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete allocations: %w", err)
	}

	return nil
}

// Ensure interface compliance.
var _ ledger.AllocationStore = (*AllocationRepo)(nil)
