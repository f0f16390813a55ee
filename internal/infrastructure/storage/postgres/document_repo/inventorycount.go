package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"batchledger/internal/core/id"
	"batchledger/internal/domain"
	"batchledger/internal/domain/documents/inventorycount"
	"batchledger/internal/infrastructure/storage/postgres"
)

const (
	inventoryCountsTable     = "doc_inventory_counts"
	inventoryCountItemsTable = "doc_inventory_count_items"
)

// InventoryCountRepo implements inventorycount.Repository.
type InventoryCountRepo struct {
	*BaseDocumentRepo[*inventorycount.InventoryCount]
}

// NewInventoryCountRepo creates a new inventory count repository.
func NewInventoryCountRepo(txManager *postgres.TxManager) *InventoryCountRepo {
	return &InventoryCountRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*inventorycount.InventoryCount](
			txManager,
			inventoryCountsTable,
			postgres.ExtractDBColumns[inventorycount.InventoryCount](),
			func() *inventorycount.InventoryCount { return &inventorycount.InventoryCount{} },
		),
	}
}

func (r *InventoryCountRepo) GetItems(ctx context.Context, docID id.ID) ([]inventorycount.CountItem, error) {
	q := r.Builder().
		Select(
			"line_id", "line_no", "batch_id", "material_id", "unit_id",
			"unit_price", "system_quantity", "counted_quantity",
			"counted_by", "counted_at",
		).
		From(inventoryCountItemsTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []inventorycount.CountItem
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}

	return items, nil
}

func (r *InventoryCountRepo) SaveItems(ctx context.Context, docID id.ID, items []inventorycount.CountItem) error {
	querier := r.getTxManager(ctx).GetQuerier(ctx)

	deleteSQL := "DELETE FROM " + inventoryCountItemsTable + " WHERE document_id = $1"
	if _, err := querier.Exec(ctx, deleteSQL, docID); err != nil {
		return fmt.Errorf("delete existing items: %w", err)
	}

	if len(items) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(inventoryCountItemsTable).
		Columns(
			"line_id", "document_id", "line_no", "batch_id", "material_id", "unit_id",
			"unit_price", "system_quantity", "counted_quantity",
			"counted_by", "counted_at",
		)

	for _, item := range items {
		q = q.Values(
			item.LineID, docID, item.LineNo, item.BatchID, item.MaterialID, item.UnitID,
			item.UnitPrice, item.SystemQuantity, item.CountedQuantity,
			item.CountedBy, item.CountedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert items: %w", err)
	}

	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert items: %w", err)
	}

	return nil
}

func (r *InventoryCountRepo) List(ctx context.Context, filter inventorycount.ListFilter) (domain.ListResult[*inventorycount.InventoryCount], error) {
	result := domain.ListResult[*inventorycount.InventoryCount]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect(ctx)

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}

	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}

	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}

	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
	}

	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"code": "%" + filter.Search + "%"})
	}

	countQ := r.Builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("select: %w", err)
	}

	return result, nil
}

var _ inventorycount.Repository = (*InventoryCountRepo)(nil)
