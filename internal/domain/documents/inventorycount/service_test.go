package inventorycount

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
	"batchledger/internal/domain/documents/adjustment"
	"batchledger/internal/domain/ledger"
	"batchledger/internal/domain/ledger/ledgertest"
	"batchledger/internal/domain/posting"
)

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- in-memory repositories ---

type countRepo struct {
	docs  map[id.ID]InventoryCount
	items map[id.ID][]CountItem
}

func newCountRepo() *countRepo {
	return &countRepo{
		docs:  make(map[id.ID]InventoryCount),
		items: make(map[id.ID][]CountItem),
	}
}

func (r *countRepo) Create(ctx context.Context, doc *InventoryCount) error {
	r.docs[doc.ID] = *doc
	return nil
}

func (r *countRepo) GetByID(ctx context.Context, docID id.ID) (*InventoryCount, error) {
	doc, ok := r.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("inventory count", docID.String())
	}
	copied := doc
	return &copied, nil
}

func (r *countRepo) GetByCode(ctx context.Context, code string) (*InventoryCount, error) {
	for _, doc := range r.docs {
		if doc.Code == code {
			copied := doc
			return &copied, nil
		}
	}
	return nil, apperror.NewNotFound("inventory count", code)
}

func (r *countRepo) Update(ctx context.Context, doc *InventoryCount) error {
	if _, ok := r.docs[doc.ID]; !ok {
		return apperror.NewNotFound("inventory count", doc.ID.String())
	}
	r.docs[doc.ID] = *doc
	return nil
}

func (r *countRepo) Delete(ctx context.Context, docID id.ID) error {
	delete(r.docs, docID)
	return nil
}

func (r *countRepo) GetItems(ctx context.Context, docID id.ID) ([]CountItem, error) {
	return append([]CountItem(nil), r.items[docID]...), nil
}

func (r *countRepo) SaveItems(ctx context.Context, docID id.ID, items []CountItem) error {
	r.items[docID] = append([]CountItem(nil), items...)
	return nil
}

func (r *countRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*InventoryCount], error) {
	var result domain.ListResult[*InventoryCount]
	for _, doc := range r.docs {
		copied := doc
		result.Items = append(result.Items, &copied)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *countRepo) GetForUpdate(ctx context.Context, docID id.ID) (*InventoryCount, error) {
	return r.GetByID(ctx, docID)
}

type adjustmentRepo struct {
	docs  map[id.ID]adjustment.Adjustment
	items map[id.ID][]adjustment.AdjustmentItem
}

func newAdjustmentRepo() *adjustmentRepo {
	return &adjustmentRepo{
		docs:  make(map[id.ID]adjustment.Adjustment),
		items: make(map[id.ID][]adjustment.AdjustmentItem),
	}
}

func (r *adjustmentRepo) Create(ctx context.Context, doc *adjustment.Adjustment) error {
	r.docs[doc.ID] = *doc
	return nil
}

func (r *adjustmentRepo) GetByID(ctx context.Context, docID id.ID) (*adjustment.Adjustment, error) {
	doc, ok := r.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("adjustment", docID.String())
	}
	copied := doc
	return &copied, nil
}

func (r *adjustmentRepo) GetByCode(ctx context.Context, code string) (*adjustment.Adjustment, error) {
	for _, doc := range r.docs {
		if doc.Code == code {
			copied := doc
			return &copied, nil
		}
	}
	return nil, apperror.NewNotFound("adjustment", code)
}

func (r *adjustmentRepo) Update(ctx context.Context, doc *adjustment.Adjustment) error {
	if _, ok := r.docs[doc.ID]; !ok {
		return apperror.NewNotFound("adjustment", doc.ID.String())
	}
	r.docs[doc.ID] = *doc
	return nil
}

func (r *adjustmentRepo) Delete(ctx context.Context, docID id.ID) error {
	delete(r.docs, docID)
	return nil
}

func (r *adjustmentRepo) GetItems(ctx context.Context, docID id.ID) ([]adjustment.AdjustmentItem, error) {
	return append([]adjustment.AdjustmentItem(nil), r.items[docID]...), nil
}

func (r *adjustmentRepo) SaveItems(ctx context.Context, docID id.ID, items []adjustment.AdjustmentItem) error {
	r.items[docID] = append([]adjustment.AdjustmentItem(nil), items...)
	return nil
}

func (r *adjustmentRepo) List(ctx context.Context, filter adjustment.ListFilter) (domain.ListResult[*adjustment.Adjustment], error) {
	var result domain.ListResult[*adjustment.Adjustment]
	for _, doc := range r.docs {
		copied := doc
		result.Items = append(result.Items, &copied)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *adjustmentRepo) GetForUpdate(ctx context.Context, docID id.ID) (*adjustment.Adjustment, error) {
	return r.GetByID(ctx, docID)
}

// --- wiring ---

type testEnv struct {
	batches   *ledgertest.BatchStore
	ledgerSvc *ledger.Service
	adjSvc    *adjustment.Service
	countSvc  *Service
}

func newTestEnv(t *testing.T, policy security.CountCompletionPolicy) *testEnv {
	t.Helper()

	batches := ledgertest.NewBatchStore()
	allocations := ledgertest.NewAllocationStore()
	ledgerSvc := ledger.NewService(batches)
	allocator := ledger.NewAllocator(batches, allocations)
	engine := posting.NewEngine(ledgerSvc, allocator, passthroughTx{}, security.OpenPolicy{}, nil)

	gen := &numerator.MockGenerator{}
	adjSvc := adjustment.NewService(newAdjustmentRepo(), engine, gen, passthroughTx{})
	countSvc := NewService(newCountRepo(), ledgerSvc, adjSvc, policy, gen, passthroughTx{})

	return &testEnv{
		batches:   batches,
		ledgerSvc: ledgerSvc,
		adjSvc:    adjSvc,
		countSvc:  countSvc,
	}
}

func (e *testEnv) seedBatch(t *testing.T, materialID, qty, price string, date time.Time) entity.Batch {
	t.Helper()
	b := entity.Batch{
		ID:                id.New(),
		WarehouseID:       "wh-1",
		MaterialID:        materialID,
		UnitID:            "pcs",
		SourceID:          id.New(),
		SourceType:        "StockIn",
		TransactionDate:   date,
		Method:            entity.CostingFIFO,
		Quantity:          types.MustQuantity(qty),
		UnitPrice:         types.MustMoney(price),
		RemainingQuantity: types.MustQuantity(qty),
		CreatedAt:         date,
	}
	require.NoError(t, e.batches.Create(context.Background(), &b))
	return b
}

func (e *testEnv) startedCount(t *testing.T) *InventoryCount {
	t.Helper()
	ctx := context.Background()

	doc := NewInventoryCount("wh-1", entity.CostingFIFO)
	doc.Date = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, e.countSvc.Create(ctx, doc))
	require.NoError(t, e.countSvc.Start(ctx, doc.ID))

	started, err := e.countSvc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	return started
}

func day(n int) time.Time {
	return time.Date(2026, 3, n, 0, 0, 0, 0, time.UTC)
}

// --- tests ---

func TestStart_SnapshotsLiveBatches(t *testing.T) {
	env := newTestEnv(t, nil)
	b1 := env.seedBatch(t, "mat-1", "50", "2.00", day(1))
	env.seedBatch(t, "mat-2", "8", "3.00", day(2))

	count := env.startedCount(t)
	assert.Equal(t, StatusInProgress, count.Status)
	require.Len(t, count.Items, 2)

	var item *CountItem
	for i := range count.Items {
		if count.Items[i].BatchID == b1.ID {
			item = &count.Items[i]
		}
	}
	require.NotNil(t, item)
	assert.Equal(t, "mat-1", item.MaterialID)
	assert.True(t, item.SystemQuantity.Equal(types.MustQuantity("50")))
	assert.True(t, item.UnitPrice.Equal(types.MustMoney("2.00")))
	assert.False(t, item.IsCounted())
}

func TestStart_RequiresDraft(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedBatch(t, "mat-1", "10", "2.00", day(1))

	count := env.startedCount(t)
	err := env.countSvc.Start(context.Background(), count.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))
}

func TestComplete_ShortageConsumesPinnedBatch(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	b := env.seedBatch(t, "mat-1", "50", "2.00", day(1))
	count := env.startedCount(t)
	require.Len(t, count.Items, 1)

	require.NoError(t, env.countSvc.RecordCount(ctx, count.ID, count.Items[0].LineID, types.MustQuantity("45")))

	recorded, err := env.countSvc.GetByID(ctx, count.ID)
	require.NoError(t, err)
	require.NotNil(t, recorded.Items[0].CountedAt)

	require.NoError(t, env.countSvc.Complete(ctx, count.ID))

	completed, err := env.countSvc.GetByID(ctx, count.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	require.NotNil(t, completed.AdjustmentID)

	adj, err := env.adjSvc.GetByID(ctx, *completed.AdjustmentID)
	require.NoError(t, err)
	assert.True(t, adj.Locked)
	assert.Equal(t, adjustment.TypeInventoryCount, adj.Type)
	require.NotNil(t, adj.CountID)
	assert.Equal(t, count.ID, *adj.CountID)
	require.Len(t, adj.Items, 1)
	assert.Equal(t, adjustment.DirectionDecrease, adj.Items[0].Direction)
	assert.True(t, adj.Items[0].Quantity.Equal(types.MustQuantity("5")))
	require.NotNil(t, adj.Items[0].PinnedBatchID)
	assert.Equal(t, b.ID, *adj.Items[0].PinnedBatchID)

	after, err := env.ledgerSvc.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, after.RemainingQuantity.Equal(types.MustQuantity("45")))
}

func TestComplete_SurplusCreatesBatchAtPinnedPrice(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.seedBatch(t, "mat-1", "20", "4.25", day(1))
	count := env.startedCount(t)

	require.NoError(t, env.countSvc.RecordCount(ctx, count.ID, count.Items[0].LineID, types.MustQuantity("23")))
	require.NoError(t, env.countSvc.Complete(ctx, count.ID))

	completed, err := env.countSvc.GetByID(ctx, count.ID)
	require.NoError(t, err)
	require.NotNil(t, completed.AdjustmentID)

	created, err := env.ledgerSvc.ListBySource(ctx, *completed.AdjustmentID)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.True(t, created[0].Quantity.Equal(types.MustQuantity("3")))
	assert.True(t, created[0].UnitPrice.Equal(types.MustMoney("4.25")))

	stock, err := env.ledgerSvc.CurrentStock(ctx, "wh-1", "mat-1")
	require.NoError(t, err)
	assert.True(t, stock.Equal(types.MustQuantity("23")))
}

func TestComplete_NoVarianceSkipsAdjustment(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.seedBatch(t, "mat-1", "10", "1.00", day(1))
	count := env.startedCount(t)

	require.NoError(t, env.countSvc.RecordCount(ctx, count.ID, count.Items[0].LineID, types.MustQuantity("10")))
	require.NoError(t, env.countSvc.Complete(ctx, count.ID))

	completed, err := env.countSvc.GetByID(ctx, count.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	assert.Nil(t, completed.AdjustmentID)
}

func TestComplete_TerminalIsFinal(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.seedBatch(t, "mat-1", "10", "1.00", day(1))
	count := env.startedCount(t)
	require.NoError(t, env.countSvc.Complete(ctx, count.ID))

	err := env.countSvc.Complete(ctx, count.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))

	err = env.countSvc.Cancel(ctx, count.ID)
	require.Error(t, err)
}

func TestComplete_PolicyGatesPartialCount(t *testing.T) {
	env := newTestEnv(t, security.MustCELCountPolicy("counted == live"))
	ctx := context.Background()

	env.seedBatch(t, "mat-1", "10", "1.00", day(1))
	env.seedBatch(t, "mat-2", "5", "1.00", day(2))
	count := env.startedCount(t)
	require.Len(t, count.Items, 2)

	require.NoError(t, env.countSvc.RecordCount(ctx, count.ID, count.Items[0].LineID, types.MustQuantity("9")))

	err := env.countSvc.Complete(ctx, count.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))

	still, getErr := env.countSvc.GetByID(ctx, count.ID)
	require.NoError(t, getErr)
	assert.Equal(t, StatusInProgress, still.Status)
}

func TestComplete_FailsWhenPinnedBatchDepleted(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	b := env.seedBatch(t, "mat-1", "10", "1.00", day(1))
	count := env.startedCount(t)

	require.NoError(t, env.countSvc.RecordCount(ctx, count.ID, count.Items[0].LineID, types.MustQuantity("5")))

	// Unrelated activity drains the batch between capture and completion.
	require.NoError(t, env.batches.Debit(ctx, b.ID, types.MustQuantity("10")))

	err := env.countSvc.Complete(ctx, count.ID)
	require.Error(t, err)

	still, getErr := env.countSvc.GetByID(ctx, count.ID)
	require.NoError(t, getErr)
	assert.Equal(t, StatusInProgress, still.Status)
	assert.Nil(t, still.AdjustmentID)
}

func TestCancel_NoLedgerEffect(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.seedBatch(t, "mat-1", "10", "1.00", day(1))
	count := env.startedCount(t)
	require.NoError(t, env.countSvc.RecordCount(ctx, count.ID, count.Items[0].LineID, types.MustQuantity("7")))

	require.NoError(t, env.countSvc.Cancel(ctx, count.ID))

	cancelled, err := env.countSvc.GetByID(ctx, count.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	stock, err := env.ledgerSvc.CurrentStock(ctx, "wh-1", "mat-1")
	require.NoError(t, err)
	assert.True(t, stock.Equal(types.MustQuantity("10")))
}
