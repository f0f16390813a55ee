package stockin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batchledger/internal/core/entity"
	"batchledger/internal/core/id"
	"batchledger/internal/core/types"
)

func validDoc() *StockIn {
	doc := NewStockIn("wh-1", TypePurchase, entity.CostingFIFO)
	doc.SupplierID = "sup-1"
	doc.Code = "IN-2026-00001"
	doc.Date = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	doc.AddItem("mat-1", "pcs", types.MustQuantity("10"), types.MustMoney("5.00"))
	return doc
}

func TestStockIn_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validDoc().Validate(ctx))
	})

	t.Run("unknown type", func(t *testing.T) {
		doc := validDoc()
		doc.Type = "RETURN"
		assert.Error(t, doc.Validate(ctx))
	})

	t.Run("purchase without supplier", func(t *testing.T) {
		doc := validDoc()
		doc.SupplierID = ""
		assert.Error(t, doc.Validate(ctx))
	})

	t.Run("transfer without supplier is fine", func(t *testing.T) {
		doc := validDoc()
		doc.Type = TypeInternalTransfer
		doc.SupplierID = ""
		assert.NoError(t, doc.Validate(ctx))
	})

	t.Run("no items", func(t *testing.T) {
		doc := validDoc()
		doc.Items = nil
		assert.Error(t, doc.Validate(ctx))
	})

	t.Run("zero quantity item", func(t *testing.T) {
		doc := validDoc()
		doc.AddItem("mat-2", "pcs", types.MustQuantity("0"), types.MustMoney("1.00"))
		assert.Error(t, doc.Validate(ctx))
	})

	t.Run("negative price item", func(t *testing.T) {
		doc := validDoc()
		doc.AddItem("mat-2", "pcs", types.MustQuantity("1"), types.MustMoney("-0.01"))
		assert.Error(t, doc.Validate(ctx))
	})

	t.Run("bad costing method", func(t *testing.T) {
		doc := validDoc()
		doc.Method = "WAVG"
		assert.Error(t, doc.Validate(ctx))
	})
}

func TestStockIn_LedgerEffects(t *testing.T) {
	doc := validDoc()
	doc.AddItem("mat-2", "kg", types.MustQuantity("3.5"), types.MustMoney("12.40")).BatchLabel = "LOT-7"

	effects, err := doc.LedgerEffects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, effects.Demands)
	require.Len(t, effects.Creations, 2)

	first := effects.Creations[0]
	assert.Equal(t, "wh-1", first.WarehouseID)
	assert.Equal(t, "mat-1", first.MaterialID)
	assert.Equal(t, doc.ID, first.SourceID)
	assert.Equal(t, "StockIn", first.SourceType)
	assert.Equal(t, doc.Code, first.SourceCode)
	assert.Equal(t, entity.CostingFIFO, first.Method)
	assert.True(t, first.Quantity.Equal(types.MustQuantity("10")))
	assert.True(t, first.UnitPrice.Equal(types.MustMoney("5.00")))

	second := effects.Creations[1]
	assert.Equal(t, "LOT-7", second.Label)
	assert.True(t, second.Quantity.Equal(types.MustQuantity("3.5")))
}

func TestStockIn_AddItemNumbersLines(t *testing.T) {
	doc := validDoc()
	doc.AddItem("mat-2", "pcs", types.MustQuantity("1"), types.MustMoney("1.00"))
	doc.AddItem("mat-3", "pcs", types.MustQuantity("2"), types.MustMoney("2.00"))

	require.Len(t, doc.Items, 3)
	for i, item := range doc.Items {
		assert.Equal(t, i+1, item.LineNo)
		assert.False(t, id.IsNil(item.LineID))
	}
}
