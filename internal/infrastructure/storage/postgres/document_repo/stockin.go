package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/id"
	"batchledger/internal/domain"
	"batchledger/internal/domain/documents/stockin"
	"batchledger/internal/infrastructure/storage/postgres"
)

const (
	stockInsTable     = "doc_stock_ins"
	stockInItemsTable = "doc_stock_in_items"
)

// StockInRepo implements stockin.Repository.
type StockInRepo struct {
	*BaseDocumentRepo[*stockin.StockIn]
}

// NewStockInRepo creates a new stock-in repository.
func NewStockInRepo(txManager *postgres.TxManager) *StockInRepo {
	return &StockInRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*stockin.StockIn](
			txManager,
			stockInsTable,
			postgres.ExtractDBColumns[stockin.StockIn](),
			func() *stockin.StockIn { return &stockin.StockIn{} },
		),
	}
}

// GetByTransferSource finds the receipt a transfer stock-out created.
func (r *StockInRepo) GetByTransferSource(ctx context.Context, sourceID id.ID) (*stockin.StockIn, error) {
	doc := &stockin.StockIn{}
	q := r.baseSelect(ctx).
		Where(squirrel.Eq{"transfer_source_id": sourceID}).
		Where(squirrel.Eq{"deletion_mark": false})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("transfer receipt", sourceID.String())
		}
		return nil, fmt.Errorf("get by transfer source: %w", err)
	}

	return doc, nil
}

func (r *StockInRepo) GetItems(ctx context.Context, docID id.ID) ([]stockin.StockInItem, error) {
	q := r.Builder().
		Select(
			"line_id", "line_no", "material_id", "unit_id",
			"quantity", "unit_price", "batch_label", "notes",
		).
		From(stockInItemsTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []stockin.StockInItem
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}

	return items, nil
}

func (r *StockInRepo) SaveItems(ctx context.Context, docID id.ID, items []stockin.StockInItem) error {
	querier := r.getTxManager(ctx).GetQuerier(ctx)

	deleteSQL := "DELETE FROM " + stockInItemsTable + " WHERE document_id = $1"
	if _, err := querier.Exec(ctx, deleteSQL, docID); err != nil {
		return fmt.Errorf("delete existing items: %w", err)
	}

	if len(items) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(stockInItemsTable).
		Columns(
			"line_id", "document_id", "line_no", "material_id", "unit_id",
			"quantity", "unit_price", "batch_label", "notes",
		)

	for _, item := range items {
		q = q.Values(
			item.LineID, docID, item.LineNo, item.MaterialID, item.UnitID,
			item.Quantity, item.UnitPrice, item.BatchLabel, item.Notes,
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

func (r *StockInRepo) List(ctx context.Context, filter stockin.ListFilter) (domain.ListResult[*stockin.StockIn], error) {
	result := domain.ListResult[*stockin.StockIn]{
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

	if filter.SupplierID != nil {
		q = q.Where(squirrel.Eq{"supplier_id": *filter.SupplierID})
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

var _ stockin.Repository = (*StockInRepo)(nil)
