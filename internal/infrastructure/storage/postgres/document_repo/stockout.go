package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"batchledger/internal/core/id"
	"batchledger/internal/domain"
	"batchledger/internal/domain/documents/stockout"
	"batchledger/internal/infrastructure/storage/postgres"
)

const (
	stockOutsTable     = "doc_stock_outs"
	stockOutItemsTable = "doc_stock_out_items"
)

// StockOutRepo implements stockout.Repository.
type StockOutRepo struct {
	*BaseDocumentRepo[*stockout.StockOut]
}

// NewStockOutRepo creates a new stock-out repository.
func NewStockOutRepo(txManager *postgres.TxManager) *StockOutRepo {
	return &StockOutRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*stockout.StockOut](
			txManager,
			stockOutsTable,
			postgres.ExtractDBColumns[stockout.StockOut](),
			func() *stockout.StockOut { return &stockout.StockOut{} },
		),
	}
}

func (r *StockOutRepo) GetItems(ctx context.Context, docID id.ID) ([]stockout.StockOutItem, error) {
	q := r.Builder().
		Select(
			"line_id", "line_no", "material_id", "unit_id",
			"quantity", "notes",
		).
		From(stockOutItemsTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []stockout.StockOutItem
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}

	return items, nil
}

func (r *StockOutRepo) SaveItems(ctx context.Context, docID id.ID, items []stockout.StockOutItem) error {
	querier := r.getTxManager(ctx).GetQuerier(ctx)

	deleteSQL := "DELETE FROM " + stockOutItemsTable + " WHERE document_id = $1"
	if _, err := querier.Exec(ctx, deleteSQL, docID); err != nil {
		return fmt.Errorf("delete existing items: %w", err)
	}

	if len(items) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(stockOutItemsTable).
		Columns(
			"line_id", "document_id", "line_no", "material_id", "unit_id",
			"quantity", "notes",
		)

	for _, item := range items {
		q = q.Values(
			item.LineID, docID, item.LineNo, item.MaterialID, item.UnitID,
			item.Quantity, item.Notes,
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

func (r *StockOutRepo) List(ctx context.Context, filter stockout.ListFilter) (domain.ListResult[*stockout.StockOut], error) {
	result := domain.ListResult[*stockout.StockOut]{
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

	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
	}

	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}

	if filter.Locked != nil {
		q = q.Where(squirrel.Eq{"is_locked": *filter.Locked})
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

var _ stockout.Repository = (*StockOutRepo)(nil)
