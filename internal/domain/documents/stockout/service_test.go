package stockout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/entity"
	"batchledger/internal/core/id"
	"batchledger/internal/core/numerator"
	"batchledger/internal/core/security"
	"batchledger/internal/core/types"
	"batchledger/internal/domain"
	"batchledger/internal/domain/documents/stockin"
	"batchledger/internal/domain/ledger"
	"batchledger/internal/domain/ledger/ledgertest"
	"batchledger/internal/domain/posting"
)

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- in-memory repositories ---

type stockInRepo struct {
	docs  map[id.ID]stockin.StockIn
	items map[id.ID][]stockin.StockInItem
}

func newStockInRepo() *stockInRepo {
	return &stockInRepo{
		docs:  make(map[id.ID]stockin.StockIn),
		items: make(map[id.ID][]stockin.StockInItem),
	}
}

func (r *stockInRepo) Create(ctx context.Context, doc *stockin.StockIn) error {
	r.docs[doc.ID] = *doc
	return nil
}

func (r *stockInRepo) GetByID(ctx context.Context, docID id.ID) (*stockin.StockIn, error) {
	doc, ok := r.docs[docID]
	if !ok || doc.DeletionMark {
		return nil, apperror.NewNotFound("stock-in", docID.String())
	}
	copied := doc
	return &copied, nil
}

func (r *stockInRepo) GetByCode(ctx context.Context, code string) (*stockin.StockIn, error) {
	for _, doc := range r.docs {
		if doc.Code == code {
			copied := doc
			return &copied, nil
		}
	}
	return nil, apperror.NewNotFound("stock-in", code)
}

func (r *stockInRepo) GetByTransferSource(ctx context.Context, sourceID id.ID) (*stockin.StockIn, error) {
	for _, doc := range r.docs {
		if doc.TransferSourceID != nil && *doc.TransferSourceID == sourceID && !doc.DeletionMark {
			copied := doc
			return &copied, nil
		}
	}
	return nil, apperror.NewNotFound("stock-in", sourceID.String())
}

func (r *stockInRepo) Update(ctx context.Context, doc *stockin.StockIn) error {
	if _, ok := r.docs[doc.ID]; !ok {
		return apperror.NewNotFound("stock-in", doc.ID.String())
	}
	r.docs[doc.ID] = *doc
	return nil
}

func (r *stockInRepo) Delete(ctx context.Context, docID id.ID) error {
	doc, ok := r.docs[docID]
	if !ok {
		return apperror.NewNotFound("stock-in", docID.String())
	}
	doc.DeletionMark = true
	r.docs[docID] = doc
	return nil
}

func (r *stockInRepo) GetItems(ctx context.Context, docID id.ID) ([]stockin.StockInItem, error) {
	return append([]stockin.StockInItem(nil), r.items[docID]...), nil
}

func (r *stockInRepo) SaveItems(ctx context.Context, docID id.ID, items []stockin.StockInItem) error {
	r.items[docID] = append([]stockin.StockInItem(nil), items...)
	return nil
}

func (r *stockInRepo) List(ctx context.Context, filter stockin.ListFilter) (domain.ListResult[*stockin.StockIn], error) {
	var result domain.ListResult[*stockin.StockIn]
	for _, doc := range r.docs {
		copied := doc
		result.Items = append(result.Items, &copied)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *stockInRepo) GetForUpdate(ctx context.Context, docID id.ID) (*stockin.StockIn, error) {
	return r.GetByID(ctx, docID)
}

type stockOutRepo struct {
	docs  map[id.ID]StockOut
	items map[id.ID][]StockOutItem
}

func newStockOutRepo() *stockOutRepo {
	return &stockOutRepo{
		docs:  make(map[id.ID]StockOut),
		items: make(map[id.ID][]StockOutItem),
	}
}

func (r *stockOutRepo) Create(ctx context.Context, doc *StockOut) error {
	r.docs[doc.ID] = *doc
	return nil
}

func (r *stockOutRepo) GetByID(ctx context.Context, docID id.ID) (*StockOut, error) {
	doc, ok := r.docs[docID]
	if !ok || doc.DeletionMark {
		return nil, apperror.NewNotFound("stock-out", docID.String())
	}
	copied := doc
	return &copied, nil
}

func (r *stockOutRepo) GetByCode(ctx context.Context, code string) (*StockOut, error) {
	for _, doc := range r.docs {
		if doc.Code == code {
			copied := doc
			return &copied, nil
		}
	}
	return nil, apperror.NewNotFound("stock-out", code)
}

func (r *stockOutRepo) Update(ctx context.Context, doc *StockOut) error {
	if _, ok := r.docs[doc.ID]; !ok {
		return apperror.NewNotFound("stock-out", doc.ID.String())
	}
	r.docs[doc.ID] = *doc
	return nil
}

func (r *stockOutRepo) Delete(ctx context.Context, docID id.ID) error {
	doc, ok := r.docs[docID]
	if !ok {
		return apperror.NewNotFound("stock-out", docID.String())
	}
	doc.DeletionMark = true
	r.docs[docID] = doc
	return nil
}

func (r *stockOutRepo) GetItems(ctx context.Context, docID id.ID) ([]StockOutItem, error) {
	return append([]StockOutItem(nil), r.items[docID]...), nil
}

func (r *stockOutRepo) SaveItems(ctx context.Context, docID id.ID, items []StockOutItem) error {
	r.items[docID] = append([]StockOutItem(nil), items...)
	return nil
}

func (r *stockOutRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockOut], error) {
	var result domain.ListResult[*StockOut]
	for _, doc := range r.docs {
		copied := doc
		result.Items = append(result.Items, &copied)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *stockOutRepo) GetForUpdate(ctx context.Context, docID id.ID) (*StockOut, error) {
	return r.GetByID(ctx, docID)
}

// --- wiring ---

type testEnv struct {
	batches   *ledgertest.BatchStore
	ledgerSvc *ledger.Service
	inSvc     *stockin.Service
	inRepo    *stockInRepo
	outSvc    *Service
	allocator *ledger.Allocator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	batches := ledgertest.NewBatchStore()
	allocations := ledgertest.NewAllocationStore()
	ledgerSvc := ledger.NewService(batches)
	allocator := ledger.NewAllocator(batches, allocations)
	engine := posting.NewEngine(ledgerSvc, allocator, passthroughTx{}, security.OpenPolicy{}, nil)

	gen := &numerator.MockGenerator{}
	inRepo := newStockInRepo()
	inSvc := stockin.NewService(inRepo, engine, gen, passthroughTx{})
	outRepo := newStockOutRepo()
	outSvc := NewService(outRepo, engine, allocator, inSvc, gen, passthroughTx{})

	return &testEnv{
		batches:   batches,
		ledgerSvc: ledgerSvc,
		inSvc:     inSvc,
		inRepo:    inRepo,
		outSvc:    outSvc,
		allocator: allocator,
	}
}

func (e *testEnv) receive(t *testing.T, warehouseID, materialID, qty, price string, date time.Time) *stockin.StockIn {
	t.Helper()
	ctx := context.Background()

	doc := stockin.NewStockIn(warehouseID, stockin.TypePurchase, entity.CostingFIFO)
	doc.SupplierID = "sup-1"
	doc.Date = date
	doc.AddItem(materialID, "pcs", types.MustQuantity(qty), types.MustMoney(price))

	require.NoError(t, e.inSvc.Create(ctx, doc))
	require.NoError(t, e.inSvc.Lock(ctx, doc.ID))
	return doc
}

func (e *testEnv) stock(t *testing.T, warehouseID, materialID string) types.Quantity {
	t.Helper()
	total, err := e.ledgerSvc.CurrentStock(context.Background(), warehouseID, materialID)
	require.NoError(t, err)
	return total
}

func day(n int) time.Time {
	return time.Date(2026, 3, n, 0, 0, 0, 0, time.UTC)
}

func newSale(warehouseID, materialID, qty string, date time.Time) *StockOut {
	doc := NewStockOut(warehouseID, TypeSale, entity.CostingFIFO)
	doc.CustomerID = "cust-1"
	doc.Date = date
	doc.AddItem(materialID, "pcs", types.MustQuantity(qty))
	return doc
}

// --- tests ---

func TestLock_SaleConsumesFIFO(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.receive(t, "wh-1", "mat-1", "10", "5.00", day(1))
	env.receive(t, "wh-1", "mat-1", "5", "6.00", day(2))

	doc := newSale("wh-1", "mat-1", "15", day(3))
	require.NoError(t, env.outSvc.Create(ctx, doc))
	require.NoError(t, env.outSvc.Lock(ctx, doc.ID))

	assert.True(t, env.stock(t, "wh-1", "mat-1").IsZero())

	records, err := env.allocator.ListByConsumer(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].QuantityUsed.Equal(types.MustQuantity("10")))
	assert.True(t, records[0].UnitPrice.Equal(types.MustMoney("5.00")))
	assert.True(t, records[1].QuantityUsed.Equal(types.MustQuantity("5")))
	assert.True(t, records[1].UnitPrice.Equal(types.MustMoney("6.00")))

	saved, err := env.outSvc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, saved.Locked)
}

func TestLock_PartialConsumptionPersistsAcrossCalls(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.receive(t, "wh-1", "mat-1", "10", "5.00", day(1))
	env.receive(t, "wh-1", "mat-1", "10", "6.00", day(2))

	first := newSale("wh-1", "mat-1", "6", day(3))
	require.NoError(t, env.outSvc.Create(ctx, first))
	require.NoError(t, env.outSvc.Lock(ctx, first.ID))

	second := newSale("wh-1", "mat-1", "6", day(4))
	require.NoError(t, env.outSvc.Create(ctx, second))
	require.NoError(t, env.outSvc.Lock(ctx, second.ID))

	records, err := env.allocator.ListByConsumer(ctx, second.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].QuantityUsed.Equal(types.MustQuantity("4")))
	assert.True(t, records[1].QuantityUsed.Equal(types.MustQuantity("2")))

	assert.True(t, env.stock(t, "wh-1", "mat-1").Equal(types.MustQuantity("8")))
}

func TestLock_InsufficientStockLeavesDraft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.receive(t, "wh-1", "mat-1", "10", "5.00", day(1))

	doc := newSale("wh-1", "mat-1", "12", day(2))
	require.NoError(t, env.outSvc.Create(ctx, doc))

	err := env.outSvc.Lock(ctx, doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	saved, getErr := env.outSvc.GetByID(ctx, doc.ID)
	require.NoError(t, getErr)
	assert.False(t, saved.Locked)
	assert.True(t, env.stock(t, "wh-1", "mat-1").Equal(types.MustQuantity("10")))
}

func TestLock_TransferCreatesReceiptAtAverageCost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.receive(t, "wh-1", "mat-1", "10", "5.00", day(1))
	env.receive(t, "wh-1", "mat-1", "5", "6.00", day(2))

	doc := NewStockOut("wh-1", TypeInternalTransfer, entity.CostingFIFO)
	doc.DestinationWarehouseID = "wh-2"
	doc.Date = day(3)
	doc.AddItem("mat-1", "pcs", types.MustQuantity("12"))
	require.NoError(t, env.outSvc.Create(ctx, doc))
	require.NoError(t, env.outSvc.Lock(ctx, doc.ID))

	assert.True(t, env.stock(t, "wh-1", "mat-1").Equal(types.MustQuantity("3")))
	assert.True(t, env.stock(t, "wh-2", "mat-1").Equal(types.MustQuantity("12")))

	receipt, err := env.inSvc.GetByTransferSource(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, receipt.Locked)
	assert.Equal(t, stockin.TypeInternalTransfer, receipt.Type)
	require.Len(t, receipt.Items, 1)

	// (10*5.00 + 2*6.00) / 12 = 5.1666..., rounded to 5.17
	assert.True(t, receipt.Items[0].UnitPrice.Equal(types.MustMoney("5.17")),
		"got %s", receipt.Items[0].UnitPrice)

	created, err := env.ledgerSvc.ListBySource(ctx, receipt.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "wh-2", created[0].WarehouseID)
	assert.True(t, created[0].UnitPrice.Equal(types.MustMoney("5.17")))
}

func TestUnlock_TransferRemovesReceipt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.receive(t, "wh-1", "mat-1", "10", "5.00", day(1))

	doc := NewStockOut("wh-1", TypeInternalTransfer, entity.CostingFIFO)
	doc.DestinationWarehouseID = "wh-2"
	doc.Date = day(2)
	doc.AddItem("mat-1", "pcs", types.MustQuantity("4"))
	require.NoError(t, env.outSvc.Create(ctx, doc))
	require.NoError(t, env.outSvc.Lock(ctx, doc.ID))

	require.NoError(t, env.outSvc.Unlock(ctx, doc.ID))

	assert.True(t, env.stock(t, "wh-1", "mat-1").Equal(types.MustQuantity("10")))
	assert.True(t, env.stock(t, "wh-2", "mat-1").IsZero())

	_, err := env.inSvc.GetByTransferSource(ctx, doc.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestUnlock_TransferBlockedWhenDestinationConsumed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.receive(t, "wh-1", "mat-1", "10", "5.00", day(1))

	transfer := NewStockOut("wh-1", TypeInternalTransfer, entity.CostingFIFO)
	transfer.DestinationWarehouseID = "wh-2"
	transfer.Date = day(2)
	transfer.AddItem("mat-1", "pcs", types.MustQuantity("4"))
	require.NoError(t, env.outSvc.Create(ctx, transfer))
	require.NoError(t, env.outSvc.Lock(ctx, transfer.ID))

	sale := newSale("wh-2", "mat-1", "1", day(3))
	require.NoError(t, env.outSvc.Create(ctx, sale))
	require.NoError(t, env.outSvc.Lock(ctx, sale.ID))

	err := env.outSvc.Unlock(ctx, transfer.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeUnlockBlocked))
}

func TestPreview_ShowsPlanWithoutMutation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.receive(t, "wh-1", "mat-1", "10", "5.00", day(1))
	env.receive(t, "wh-1", "mat-1", "5", "6.00", day(2))

	doc := newSale("wh-1", "mat-1", "12", day(3))
	require.NoError(t, env.outSvc.Create(ctx, doc))

	preview, err := env.outSvc.Preview(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, preview.Takes, 2)
	assert.True(t, preview.TotalQuantity.Equal(types.MustQuantity("12")))
	// 10*5.00 + 2*6.00 = 62.00
	assert.True(t, preview.TotalCost.Equal(types.MustMoney("62.00")))

	assert.True(t, env.stock(t, "wh-1", "mat-1").Equal(types.MustQuantity("15")))

	saved, err := env.outSvc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, saved.Locked)
}
