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

func TestCreateBatch_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(ledgertest.NewBatchStore())

	base := BatchSpec{
		WarehouseID:     "wh-1",
		MaterialID:      "mat-1",
		SourceID:        id.New(),
		SourceType:      "StockIn",
		TransactionDate: day(1),
		Method:          entity.CostingFIFO,
		Quantity:        types.MustQuantity("10"),
		UnitPrice:       types.MustMoney("2.50"),
	}

	t.Run("valid", func(t *testing.T) {
		b, err := svc.CreateBatch(ctx, base)
		require.NoError(t, err)
		assert.True(t, b.RemainingQuantity.Equal(b.Quantity))
		assert.True(t, b.IsIntact())
	})

	t.Run("zero quantity", func(t *testing.T) {
		spec := base
		spec.Quantity = types.Zero()
		_, err := svc.CreateBatch(ctx, spec)
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	})

	t.Run("negative price", func(t *testing.T) {
		spec := base
		spec.UnitPrice = types.MustMoney("-1")
		_, err := svc.CreateBatch(ctx, spec)
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	})

	t.Run("zero price allowed", func(t *testing.T) {
		spec := base
		spec.UnitPrice = types.Zero()
		_, err := svc.CreateBatch(ctx, spec)
		require.NoError(t, err)
	})

	t.Run("bad method", func(t *testing.T) {
		spec := base
		spec.Method = "WAVG"
		_, err := svc.CreateBatch(ctx, spec)
		require.Error(t, err)
	})
}

func TestCurrentStock_SumsLiveBatchesOnly(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.NewBatchStore()
	svc := NewService(store)

	b1 := seedBatch(t, store, day(1), "10", "5.00")
	seedBatch(t, store, day(2), "5", "6.00")

	// deplete the first batch entirely
	require.NoError(t, store.Debit(ctx, b1.ID, types.MustQuantity("10")))

	stock, err := svc.CurrentStock(ctx, "wh-1", "mat-1")
	require.NoError(t, err)
	assert.True(t, stock.Equal(types.MustQuantity("5")))

	// unknown dimension reads as zero
	stock, err = svc.CurrentStock(ctx, "wh-1", "mat-unknown")
	require.NoError(t, err)
	assert.True(t, stock.IsZero())
}

func TestListAvailable_Ordering(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.NewBatchStore()
	svc := NewService(store)

	b1 := seedBatch(t, store, day(1), "10", "5.00")
	b2 := seedBatch(t, store, day(3), "5", "6.00")
	b3 := seedBatch(t, store, day(2), "7", "4.00")

	fifo, err := svc.ListAvailable(ctx, "wh-1", "mat-1", entity.CostingFIFO)
	require.NoError(t, err)
	require.Len(t, fifo, 3)
	assert.Equal(t, []id.ID{b1.ID, b3.ID, b2.ID}, []id.ID{fifo[0].ID, fifo[1].ID, fifo[2].ID})

	lifo, err := svc.ListAvailable(ctx, "wh-1", "mat-1", entity.CostingLIFO)
	require.NoError(t, err)
	require.Len(t, lifo, 3)
	assert.Equal(t, b2.ID, lifo[0].ID)
}

func TestListAvailable_SameDateOrderedByCreation(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.NewBatchStore()
	svc := NewService(store)

	mk := func(created time.Time) entity.Batch {
		b := entity.Batch{
			ID:                id.New(),
			WarehouseID:       "wh-1",
			MaterialID:        "mat-1",
			SourceID:          id.New(),
			SourceType:        "StockIn",
			TransactionDate:   day(1),
			Method:            entity.CostingFIFO,
			Quantity:          types.MustQuantity("1"),
			UnitPrice:         types.Zero(),
			RemainingQuantity: types.MustQuantity("1"),
			CreatedAt:         created,
		}
		require.NoError(t, store.Create(ctx, &b))
		return b
	}

	later := mk(day(1).Add(2 * time.Hour))
	earlier := mk(day(1).Add(1 * time.Hour))

	fifo, err := svc.ListAvailable(ctx, "wh-1", "mat-1", entity.CostingFIFO)
	require.NoError(t, err)
	require.Len(t, fifo, 2)
	assert.Equal(t, earlier.ID, fifo[0].ID)
	assert.Equal(t, later.ID, fifo[1].ID)
}

func TestLoadBatchesForCount_GroupsByMaterial(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.NewBatchStore()
	svc := NewService(store)

	seedBatch(t, store, day(1), "10", "5.00")
	seedBatch(t, store, day(2), "5", "6.00")

	other := entity.Batch{
		ID:                id.New(),
		WarehouseID:       "wh-1",
		MaterialID:        "mat-2",
		SourceID:          id.New(),
		SourceType:        "StockIn",
		TransactionDate:   day(1),
		Method:            entity.CostingFIFO,
		Quantity:          types.MustQuantity("3"),
		UnitPrice:         types.Zero(),
		RemainingQuantity: types.MustQuantity("3"),
		CreatedAt:         day(1),
	}
	require.NoError(t, store.Create(ctx, &other))

	summaries, err := svc.LoadBatchesForCount(ctx, "wh-1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	byMaterial := map[string]BatchSummary{}
	for _, s := range summaries {
		byMaterial[s.MaterialID] = s
	}

	assert.Len(t, byMaterial["mat-1"].Batches, 2)
	assert.True(t, byMaterial["mat-1"].TotalStock.Equal(types.MustQuantity("15")))
	assert.Len(t, byMaterial["mat-2"].Batches, 1)
	assert.True(t, byMaterial["mat-2"].TotalStock.Equal(types.MustQuantity("3")))
}
