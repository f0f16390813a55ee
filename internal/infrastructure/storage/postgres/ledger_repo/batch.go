// Package ledger_repo provides PostgreSQL implementations for the batch
// ledger stores.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/entity"
	"batchledger/internal/core/id"
	"batchledger/internal/core/types"
	"batchledger/internal/domain/ledger"
	"batchledger/internal/infrastructure/storage/postgres"
)

const batchesTable = "ledger_batches"

var batchColumns = []string{
	"id", "warehouse_id", "material_id", "unit_id",
	"source_id", "source_type", "source_code",
	"transaction_date", "costing_method",
	"quantity", "unit_price", "remaining_quantity",
	"batch_label", "created_at",
}

// BatchRepo implements ledger.BatchStore.
type BatchRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewBatchRepo creates a new batch repository.
func NewBatchRepo(txManager *postgres.TxManager) *BatchRepo {
	return &BatchRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a single batch.
func (r *BatchRepo) Create(ctx context.Context, b *entity.Batch) error {
	q := r.builder.Insert(batchesTable).
		Columns(batchColumns...).
		Values(
			b.ID, b.WarehouseID, b.MaterialID, b.UnitID,
			b.SourceID, b.SourceType, b.SourceCode,
			b.TransactionDate, b.Method,
			b.Quantity, b.UnitPrice, b.RemainingQuantity,
			b.Label, b.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err = querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	return nil
}

// CreateMany batch inserts batches. Uses COPY inside a transaction.
func (r *BatchRepo) CreateMany(ctx context.Context, batches []entity.Batch) error {
	if len(batches) == 0 {
		return nil
	}

	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(batches))
		for _, b := range batches {
			rows = append(rows, []any{
				b.ID, b.WarehouseID, b.MaterialID, b.UnitID,
				b.SourceID, b.SourceType, b.SourceCode,
				b.TransactionDate, b.Method,
				b.Quantity, b.UnitPrice, b.RemainingQuantity,
				b.Label, b.CreatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, batchesTable, batchColumns, rows); err != nil {
			return fmt.Errorf("copy batches: %w", err)
		}
		return nil
	}

	// Fallback: multi-row insert. Prefer calling CreateMany within tx.
	q := r.builder.Insert(batchesTable).Columns(batchColumns...)
	for _, b := range batches {
		q = q.Values(
			b.ID, b.WarehouseID, b.MaterialID, b.UnitID,
			b.SourceID, b.SourceType, b.SourceCode,
			b.TransactionDate, b.Method,
			b.Quantity, b.UnitPrice, b.RemainingQuantity,
			b.Label, b.CreatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err = querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert batches: %w", err)
	}

	return nil
}

// Get retrieves a batch by ID.
func (r *BatchRepo) Get(ctx context.Context, batchID id.ID) (*entity.Batch, error) {
	return r.get(ctx, batchID, "")
}

// GetForUpdate retrieves a batch with a row lock.
func (r *BatchRepo) GetForUpdate(ctx context.Context, batchID id.ID) (*entity.Batch, error) {
	return r.get(ctx, batchID, "FOR UPDATE")
}

func (r *BatchRepo) get(ctx context.Context, batchID id.ID, suffix string) (*entity.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"id": batchID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var b entity.Batch
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("batch", batchID.String())
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}

	return &b, nil
}

// ListAvailable returns live batches ordered for FIFO consumption.
func (r *BatchRepo) ListAvailable(ctx context.Context, warehouseID, materialID string) ([]entity.Batch, error) {
	return r.listAvailable(ctx, warehouseID, materialID, "")
}

// ListAvailableForUpdate locks the rows it returns.
func (r *BatchRepo) ListAvailableForUpdate(ctx context.Context, warehouseID, materialID string) ([]entity.Batch, error) {
	return r.listAvailable(ctx, warehouseID, materialID, "FOR UPDATE")
}

func (r *BatchRepo) listAvailable(ctx context.Context, warehouseID, materialID, suffix string) ([]entity.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"warehouse_id": warehouseID, "material_id": materialID}).
		Where(squirrel.Gt{"remaining_quantity": decimal.Zero}).
		OrderBy("transaction_date ASC", "created_at ASC")
	if suffix != "" {
		q = q.Suffix(suffix)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batches []entity.Batch
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}

	return batches, nil
}

// ListBySource returns all batches created by a document.
func (r *BatchRepo) ListBySource(ctx context.Context, sourceID id.ID) ([]entity.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"source_id": sourceID}).
		OrderBy("created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batches []entity.Batch
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}

	return batches, nil
}

// ListLiveByWarehouse returns live batches across materials of a warehouse.
func (r *BatchRepo) ListLiveByWarehouse(ctx context.Context, warehouseID string) ([]entity.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"warehouse_id": warehouseID}).
		Where(squirrel.Gt{"remaining_quantity": decimal.Zero}).
		OrderBy("material_id ASC", "transaction_date ASC", "created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batches []entity.Batch
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}

	return batches, nil
}

// SumRemaining returns the current stock level for warehouse+material.
func (r *BatchRepo) SumRemaining(ctx context.Context, warehouseID, materialID string) (types.Quantity, error) {
	sql := `
		SELECT COALESCE(SUM(remaining_quantity), 0)
		FROM ledger_batches
		WHERE warehouse_id = $1 AND material_id = $2
	`

	var total decimal.Decimal
	querier := r.txManager.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, warehouseID, materialID).Scan(&total)
	if err != nil && err != pgx.ErrNoRows {
		return types.Zero(), fmt.Errorf("sum remaining: %w", err)
	}

	return total, nil
}

// Debit performs a conditional decrement. The WHERE guard keeps
// remaining_quantity from going negative under concurrency; a miss means
// another transaction got there first.
func (r *BatchRepo) Debit(ctx context.Context, batchID id.ID, qty types.Quantity) error {
	sql := `
		UPDATE ledger_batches
		SET remaining_quantity = remaining_quantity - $2
		WHERE id = $1 AND remaining_quantity >= $2
	`

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, batchID, qty)
	if err != nil {
		return fmt.Errorf("debit batch: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("batch", batchID.String())
	}

	return nil
}

// Credit adds quantity back to a batch.
func (r *BatchRepo) Credit(ctx context.Context, batchID id.ID, qty types.Quantity) error {
	sql := `
		UPDATE ledger_batches
		SET remaining_quantity = remaining_quantity + $2
		WHERE id = $1
	`

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, batchID, qty)
	if err != nil {
		return fmt.Errorf("credit batch: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("batch", batchID.String())
	}

	return nil
}

// DeleteBySource removes all batches created by a document.
func (r *BatchRepo) DeleteBySource(ctx context.Context, sourceID id.ID) error {
	q := r.builder.Delete(batchesTable).
		Where(squirrel.Eq{"source_id": sourceID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err = querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete batches: %w", err)
	}

	return nil
}

// Ensure interface compliance.
var _ ledger.BatchStore = (*BatchRepo)(nil)
