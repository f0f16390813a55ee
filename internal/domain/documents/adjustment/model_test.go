package adjustment

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

func draft(docType string) *Adjustment {
	doc := NewAdjustment("wh-1", docType, entity.CostingFIFO)
	doc.Code = "ADJ-2026-00001"
	doc.Date = time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	return doc
}

func TestAdjustment_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("increase valid", func(t *testing.T) {
		doc := draft(TypeIncrease)
		doc.AddIncreaseItem("mat-1", "pcs", types.MustQuantity("5"), types.MustMoney("2.00"))
		assert.NoError(t, doc.Validate(ctx))
	})

	t.Run("decrease valid without price", func(t *testing.T) {
		doc := draft(TypeDecrease)
		doc.AddDecreaseItem("mat-1", "pcs", types.MustQuantity("5"), nil)
		assert.NoError(t, doc.Validate(ctx))
	})

	t.Run("decrease item on increase document", func(t *testing.T) {
		doc := draft(TypeIncrease)
		doc.AddDecreaseItem("mat-1", "pcs", types.MustQuantity("5"), nil)
		assert.Error(t, doc.Validate(ctx))
	})

	t.Run("increase item on decrease document", func(t *testing.T) {
		doc := draft(TypeDecrease)
		doc.AddIncreaseItem("mat-1", "pcs", types.MustQuantity("5"), types.MustMoney("2.00"))
		assert.Error(t, doc.Validate(ctx))
	})

	t.Run("count type mixes directions", func(t *testing.T) {
		doc := draft(TypeInventoryCount)
		pinned := id.New()
		doc.AddIncreaseItem("mat-1", "pcs", types.MustQuantity("2"), types.MustMoney("2.00"))
		doc.AddDecreaseItem("mat-2", "pcs", types.MustQuantity("3"), &pinned)
		assert.NoError(t, doc.Validate(ctx))
	})

	t.Run("no items", func(t *testing.T) {
		doc := draft(TypeIncrease)
		assert.Error(t, doc.Validate(ctx))
	})
}

func TestAdjustment_LedgerEffects(t *testing.T) {
	doc := draft(TypeInventoryCount)
	countID := id.New()
	doc.CountID = &countID

	pinned := id.New()
	doc.AddIncreaseItem("mat-1", "pcs", types.MustQuantity("2"), types.MustMoney("4.50"))
	doc.AddDecreaseItem("mat-2", "pcs", types.MustQuantity("3"), &pinned)
	doc.AddDecreaseItem("mat-3", "pcs", types.MustQuantity("1"), nil)

	effects, err := doc.LedgerEffects(context.Background())
	require.NoError(t, err)

	require.Len(t, effects.Creations, 1)
	creation := effects.Creations[0]
	assert.Equal(t, "mat-1", creation.MaterialID)
	assert.Equal(t, "Adjustment", creation.SourceType)
	assert.True(t, creation.UnitPrice.Equal(types.MustMoney("4.50")))

	require.Len(t, effects.Demands, 2)
	assert.Equal(t, "mat-2", effects.Demands[0].MaterialID)
	require.NotNil(t, effects.Demands[0].PinnedBatchID)
	assert.Equal(t, pinned, *effects.Demands[0].PinnedBatchID)
	assert.Nil(t, effects.Demands[1].PinnedBatchID)
}

func TestAdjustment_IsCountOrigin(t *testing.T) {
	doc := draft(TypeInventoryCount)
	assert.False(t, doc.IsCountOrigin())

	countID := id.New()
	doc.CountID = &countID
	assert.True(t, doc.IsCountOrigin())
}
