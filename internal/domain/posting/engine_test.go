package posting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/entity"
	"batchledger/internal/core/id"
	"batchledger/internal/core/security"
	"batchledger/internal/core/types"
	"batchledger/internal/domain/ledger"
	"batchledger/internal/domain/ledger/ledgertest"
)

// passthroughTx runs fn directly. The in-memory stores are not
// transactional, so tests assert on final state only.
type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stockDoc struct {
	entity.Document
	docType   string
	creations []ledger.BatchSpec
	demands   []ledger.Demand
}

func (d *stockDoc) GetDocumentType() string { return d.docType }

func (d *stockDoc) LedgerEffects(ctx context.Context) (*EffectSet, error) {
	return &EffectSet{Creations: d.creations, Demands: d.demands}, nil
}

type testEnv struct {
	engine      *Engine
	batches     *ledgertest.BatchStore
	allocations *ledgertest.AllocationStore
	svc         *ledger.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	batches := ledgertest.NewBatchStore()
	allocations := ledgertest.NewAllocationStore()
	svc := ledger.NewService(batches)
	alloc := ledger.NewAllocator(batches, allocations)
	engine := NewEngine(svc, alloc, passthroughTx{}, security.OpenPolicy{}, nil)
	return &testEnv{engine: engine, batches: batches, allocations: allocations, svc: svc}
}

func newStockIn(qty, price string, date time.Time) *stockDoc {
	doc := &stockDoc{
		Document: entity.NewDocument("wh-1"),
		docType:  "StockIn",
	}
	doc.Date = date
	doc.Code = "IN-2026-000001"
	doc.creations = []ledger.BatchSpec{{
		WarehouseID:     "wh-1",
		MaterialID:      "mat-1",
		SourceID:        doc.ID,
		SourceType:      "StockIn",
		SourceCode:      doc.Code,
		TransactionDate: date,
		Method:          entity.CostingFIFO,
		Quantity:        types.MustQuantity(qty),
		UnitPrice:       types.MustMoney(price),
	}}
	return doc
}

func newStockOut(qty string, date time.Time) *stockDoc {
	doc := &stockDoc{
		Document: entity.NewDocument("wh-1"),
		docType:  "StockOut",
	}
	doc.Date = date
	doc.Code = "OUT-2026-000001"
	doc.demands = []ledger.Demand{{
		LineID:      id.New(),
		WarehouseID: "wh-1",
		MaterialID:  "mat-1",
		Quantity:    types.MustQuantity(qty),
		Method:      entity.CostingFIFO,
	}}
	return doc
}

func noopUpdate(ctx context.Context) error { return nil }

func TestLock_CreatesBatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := newStockIn("10", "5.00", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, env.engine.Lock(ctx, doc, noopUpdate))

	assert.True(t, doc.IsLocked())
	assert.Equal(t, 1, doc.GetLockVersion())

	created, err := env.svc.ListBySource(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.True(t, created[0].RemainingQuantity.Equal(types.MustQuantity("10")))

	stock, err := env.svc.CurrentStock(ctx, "wh-1", "mat-1")
	require.NoError(t, err)
	assert.True(t, stock.Equal(types.MustQuantity("10")))
}

func TestLock_AlreadyLocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := newStockIn("10", "5.00", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, env.engine.Lock(ctx, doc, noopUpdate))

	err := env.engine.Lock(ctx, doc, noopUpdate)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeLockState))
}

func TestLock_ConsumesStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := newStockIn("10", "5.00", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, env.engine.Lock(ctx, in, noopUpdate))

	out := newStockOut("4", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, env.engine.Lock(ctx, out, noopUpdate))

	stock, err := env.svc.CurrentStock(ctx, "wh-1", "mat-1")
	require.NoError(t, err)
	assert.True(t, stock.Equal(types.MustQuantity("6")))

	records, err := env.allocations.ListByConsumer(ctx, out.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].QuantityUsed.Equal(types.MustQuantity("4")))
	assert.True(t, records[0].UnitPrice.Equal(types.MustMoney("5.00")))
	assert.Equal(t, 1, records[0].LockVersion)
}

func TestLock_InsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := newStockIn("10", "5.00", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, env.engine.Lock(ctx, in, noopUpdate))

	out := newStockOut("12", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	err := env.engine.Lock(ctx, out, noopUpdate)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// Nothing consumed.
	stock, err := env.svc.CurrentStock(ctx, "wh-1", "mat-1")
	require.NoError(t, err)
	assert.True(t, stock.Equal(types.MustQuantity("10")))
}

func TestUnlock_RestoresStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := newStockIn("10", "5.00", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, env.engine.Lock(ctx, in, noopUpdate))

	out := newStockOut("4", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, env.engine.Lock(ctx, out, noopUpdate))

	require.NoError(t, env.engine.Unlock(ctx, out, noopUpdate))
	assert.False(t, out.IsLocked())

	stock, err := env.svc.CurrentStock(ctx, "wh-1", "mat-1")
	require.NoError(t, err)
	assert.True(t, stock.Equal(types.MustQuantity("10")))

	records, err := env.allocations.ListByConsumer(ctx, out.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUnlock_DeletesCreatedBatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := newStockIn("10", "5.00", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, env.engine.Lock(ctx, in, noopUpdate))
	require.NoError(t, env.engine.Unlock(ctx, in, noopUpdate))

	created, err := env.svc.ListBySource(ctx, in.ID)
	require.NoError(t, err)
	assert.Empty(t, created)

	stock, err := env.svc.CurrentStock(ctx, "wh-1", "mat-1")
	require.NoError(t, err)
	assert.True(t, stock.IsZero())
}

func TestUnlock_BlockedWhenBatchConsumed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := newStockIn("10", "5.00", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, env.engine.Lock(ctx, in, noopUpdate))

	out := newStockOut("3", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, env.engine.Lock(ctx, out, noopUpdate))

	err := env.engine.Unlock(ctx, in, noopUpdate)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeUnlockBlocked))
	assert.True(t, in.IsLocked())

	// Reversing the consumer makes the batch intact again.
	require.NoError(t, env.engine.Unlock(ctx, out, noopUpdate))
	require.NoError(t, env.engine.Unlock(ctx, in, noopUpdate))
	assert.False(t, in.IsLocked())
}

func TestUnlock_NotLocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := newStockIn("10", "5.00", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	err := env.engine.Unlock(ctx, doc, noopUpdate)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeLockState))
}

func TestLock_RelockBumpsVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := newStockIn("10", "5.00", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, env.engine.Lock(ctx, doc, noopUpdate))
	require.NoError(t, env.engine.Unlock(ctx, doc, noopUpdate))
	require.NoError(t, env.engine.Lock(ctx, doc, noopUpdate))

	assert.Equal(t, 2, doc.GetLockVersion())
}

func TestLock_PeriodClosed(t *testing.T) {
	batches := ledgertest.NewBatchStore()
	allocations := ledgertest.NewAllocationStore()
	svc := ledger.NewService(batches)
	alloc := ledger.NewAllocator(batches, allocations)

	closedUntil := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	engine := NewEngine(svc, alloc, passthroughTx{}, security.NewStrictPolicy(closedUntil), nil)

	doc := newStockIn("10", "5.00", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	err := engine.Lock(context.Background(), doc, noopUpdate)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodePeriodClosed))
}

func TestPreview_DoesNotWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := newStockIn("10", "5.00", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, env.engine.Lock(ctx, in, noopUpdate))

	out := newStockOut("4", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	takes, err := env.engine.Preview(ctx, out)
	require.NoError(t, err)
	require.Len(t, takes, 1)
	assert.True(t, takes[0].Used.Equal(types.MustQuantity("4")))

	assert.False(t, out.IsLocked())
	stock, err := env.svc.CurrentStock(ctx, "wh-1", "mat-1")
	require.NoError(t, err)
	assert.True(t, stock.Equal(types.MustQuantity("10")))
}
