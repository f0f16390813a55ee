package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/entity"
	"batchledger/internal/core/id"
	"batchledger/internal/core/types"
	"batchledger/internal/domain/ledger/ledgertest"
)

func day(n int) time.Time {
	return time.Date(2026, 3, n, 0, 0, 0, 0, time.UTC)
}

func seedBatch(t *testing.T, store *ledgertest.BatchStore, date time.Time, qty, price string) entity.Batch {
	t.Helper()
	b := entity.Batch{
		ID:                id.New(),
		WarehouseID:       "wh-1",
		MaterialID:        "mat-1",
		SourceID:          id.New(),
		SourceType:        "StockIn",
		TransactionDate:   date,
		Method:            entity.CostingFIFO,
		Quantity:          types.MustQuantity(qty),
		UnitPrice:         types.MustMoney(price),
		RemainingQuantity: types.MustQuantity(qty),
		CreatedAt:         date,
	}
	require.NoError(t, store.Create(context.Background(), &b))
	return b
}

func TestAllocate_FIFOOrder(t *testing.T) {
	ctx := context.Background()
	batches := ledgertest.NewBatchStore()
	alloc := NewAllocator(batches, ledgertest.NewAllocationStore())

	b1 := seedBatch(t, batches, day(1), "10", "5.00")
	b2 := seedBatch(t, batches, day(2), "5", "6.00")

	takes, err := alloc.Allocate(ctx, []Demand{{
		LineID:      id.New(),
		WarehouseID: "wh-1",
		MaterialID:  "mat-1",
		Quantity:    types.MustQuantity("15"),
		Method:      entity.CostingFIFO,
	}})
	require.NoError(t, err)
	require.Len(t, takes, 2)

	assert.Equal(t, b1.ID, takes[0].Batch.ID)
	assert.True(t, takes[0].Used.Equal(types.MustQuantity("10")))
	assert.Equal(t, b2.ID, takes[1].Batch.ID)
	assert.True(t, takes[1].Used.Equal(types.MustQuantity("5")))
}

func TestAllocate_LIFOOrder(t *testing.T) {
	ctx := context.Background()
	batches := ledgertest.NewBatchStore()
	alloc := NewAllocator(batches, ledgertest.NewAllocationStore())

	b1 := seedBatch(t, batches, day(1), "10", "5.00")
	b2 := seedBatch(t, batches, day(2), "5", "6.00")

	takes, err := alloc.Allocate(ctx, []Demand{{
		LineID:      id.New(),
		WarehouseID: "wh-1",
		MaterialID:  "mat-1",
		Quantity:    types.MustQuantity("8"),
		Method:      entity.CostingLIFO,
	}})
	require.NoError(t, err)
	require.Len(t, takes, 2)

	// newest batch drains first
	assert.Equal(t, b2.ID, takes[0].Batch.ID)
	assert.True(t, takes[0].Used.Equal(types.MustQuantity("5")))
	assert.Equal(t, b1.ID, takes[1].Batch.ID)
	assert.True(t, takes[1].Used.Equal(types.MustQuantity("3")))
}

func TestAllocate_InsufficientStockCarriesShortfall(t *testing.T) {
	ctx := context.Background()
	batches := ledgertest.NewBatchStore()
	alloc := NewAllocator(batches, ledgertest.NewAllocationStore())

	seedBatch(t, batches, day(1), "10", "5.00")

	_, err := alloc.Allocate(ctx, []Demand{{
		LineID:      id.New(),
		WarehouseID: "wh-1",
		MaterialID:  "mat-1",
		Quantity:    types.MustQuantity("12"),
		Method:      entity.CostingFIFO,
	}})
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, "2", appErr.Details["shortfall"])

	// nothing changed in the ledger
	remaining, err := batches.SumRemaining(ctx, "wh-1", "mat-1")
	require.NoError(t, err)
	assert.True(t, remaining.Equal(types.MustQuantity("10")))
}

func TestAllocate_SecondLineFailureFailsWhole(t *testing.T) {
	ctx := context.Background()
	batches := ledgertest.NewBatchStore()
	allocations := ledgertest.NewAllocationStore()
	alloc := NewAllocator(batches, allocations)

	seedBatch(t, batches, day(1), "10", "5.00")

	_, err := alloc.Allocate(ctx, []Demand{
		{
			LineID:      id.New(),
			WarehouseID: "wh-1",
			MaterialID:  "mat-1",
			Quantity:    types.MustQuantity("6"),
			Method:      entity.CostingFIFO,
		},
		{
			LineID:      id.New(),
			WarehouseID: "wh-1",
			MaterialID:  "mat-1",
			Quantity:    types.MustQuantity("6"),
			Method:      entity.CostingFIFO,
		},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// the first line's draw was planned in memory only
	remaining, err := batches.SumRemaining(ctx, "wh-1", "mat-1")
	require.NoError(t, err)
	assert.True(t, remaining.Equal(types.MustQuantity("10")))

	records, err := allocations.ListByConsumer(ctx, id.New())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestApplyAndReverse_RoundTrip(t *testing.T) {
	ctx := context.Background()
	batches := ledgertest.NewBatchStore()
	allocations := ledgertest.NewAllocationStore()
	alloc := NewAllocator(batches, allocations)

	b1 := seedBatch(t, batches, day(1), "10", "5.00")
	b2 := seedBatch(t, batches, day(2), "5", "6.00")

	consumer := ConsumerRef{ID: id.New(), Type: "StockOut", LockVersion: 1}

	takes, err := alloc.Allocate(ctx, []Demand{{
		LineID:      id.New(),
		WarehouseID: "wh-1",
		MaterialID:  "mat-1",
		Quantity:    types.MustQuantity("12"),
		Method:      entity.CostingFIFO,
	}})
	require.NoError(t, err)

	records, err := alloc.Apply(ctx, consumer, takes)
	require.NoError(t, err)
	require.Len(t, records, 2)

	remaining, err := batches.SumRemaining(ctx, "wh-1", "mat-1")
	require.NoError(t, err)
	assert.True(t, remaining.Equal(types.MustQuantity("3")))

	// record prices copied from batches at consumption
	assert.True(t, records[0].UnitPrice.Equal(types.MustMoney("5.00")))
	assert.True(t, records[1].UnitPrice.Equal(types.MustMoney("6.00")))

	require.NoError(t, alloc.Reverse(ctx, consumer.ID))

	got1, err := batches.Get(ctx, b1.ID)
	require.NoError(t, err)
	assert.True(t, got1.IsIntact())

	got2, err := batches.Get(ctx, b2.ID)
	require.NoError(t, err)
	assert.True(t, got2.IsIntact())

	left, err := allocations.ListByConsumer(ctx, consumer.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestAllocate_PinnedBatch(t *testing.T) {
	ctx := context.Background()
	batches := ledgertest.NewBatchStore()
	alloc := NewAllocator(batches, ledgertest.NewAllocationStore())

	b1 := seedBatch(t, batches, day(1), "10", "5.00")
	b2 := seedBatch(t, batches, day(2), "5", "6.00")

	// pinned demand ignores FIFO order and draws from b2 only
	takes, err := alloc.Allocate(ctx, []Demand{{
		LineID:        id.New(),
		WarehouseID:   "wh-1",
		MaterialID:    "mat-1",
		Quantity:      types.MustQuantity("4"),
		PinnedBatchID: &b2.ID,
	}})
	require.NoError(t, err)
	require.Len(t, takes, 1)
	assert.Equal(t, b2.ID, takes[0].Batch.ID)

	// a pinned demand never spills into other batches
	_, err = alloc.Allocate(ctx, []Demand{{
		LineID:        id.New(),
		WarehouseID:   "wh-1",
		MaterialID:    "mat-1",
		Quantity:      types.MustQuantity("7"),
		PinnedBatchID: &b2.ID,
	}})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
	_ = b1
}

func TestApply_StalePlanConflicts(t *testing.T) {
	ctx := context.Background()
	batches := ledgertest.NewBatchStore()
	alloc := NewAllocator(batches, ledgertest.NewAllocationStore())

	seedBatch(t, batches, day(1), "10", "5.00")

	demand := func() []Demand {
		return []Demand{{
			LineID:      id.New(),
			WarehouseID: "wh-1",
			MaterialID:  "mat-1",
			Quantity:    types.MustQuantity("6"),
			Method:      entity.CostingFIFO,
		}}
	}

	// two plans computed against the same snapshot; only one can win
	plan1, err := alloc.Allocate(ctx, demand())
	require.NoError(t, err)
	plan2, err := alloc.Allocate(ctx, demand())
	require.NoError(t, err)

	_, err = alloc.Apply(ctx, ConsumerRef{ID: id.New(), Type: "StockOut", LockVersion: 1}, plan1)
	require.NoError(t, err)

	_, err = alloc.Apply(ctx, ConsumerRef{ID: id.New(), Type: "StockOut", LockVersion: 1}, plan2)
	require.Error(t, err)
	assert.True(t, apperror.IsConcurrentModification(err))
}

func TestPreview_DoesNotWrite(t *testing.T) {
	ctx := context.Background()
	batches := ledgertest.NewBatchStore()
	alloc := NewAllocator(batches, ledgertest.NewAllocationStore())

	seedBatch(t, batches, day(1), "10", "5.00")

	takes, err := alloc.Preview(ctx, []Demand{{
		LineID:      id.New(),
		WarehouseID: "wh-1",
		MaterialID:  "mat-1",
		Quantity:    types.MustQuantity("4"),
		Method:      entity.CostingFIFO,
	}})
	require.NoError(t, err)
	require.Len(t, takes, 1)

	remaining, err := batches.SumRemaining(ctx, "wh-1", "mat-1")
	require.NoError(t, err)
	assert.True(t, remaining.Equal(types.MustQuantity("10")))
}

func TestWeightedAverage(t *testing.T) {
	b1 := entity.Batch{UnitPrice: types.MustMoney("5.00")}
	b2 := entity.Batch{UnitPrice: types.MustMoney("6.50")}

	takes := []Take{
		{Batch: b1, Used: types.MustQuantity("10")},
		{Batch: b2, Used: types.MustQuantity("5")},
	}

	// (50 + 32.5) / 15 = 5.5
	avg := WeightedAverage(takes)
	assert.True(t, avg.Equal(types.MustMoney("5.50")), "got %s", avg)
}
