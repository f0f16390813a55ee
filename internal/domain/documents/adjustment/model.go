// Package adjustment provides the Adjustment document: manual increases
// and decreases of stock, plus the synthesized reconciliation document an
// inventory count produces on completion.
package adjustment

import (
	"context"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/entity"
	"batchledger/internal/core/id"
	"batchledger/internal/core/types"
	"batchledger/internal/domain/ledger"
	"batchledger/internal/domain/posting"
)

// Adjustment sub-types.
const (
	TypeIncrease       = "INCREASE"
	TypeDecrease       = "DECREASE"
	TypeInventoryCount = "INVENTORY_COUNT"
)

// Item directions. INCREASE/DECREASE documents carry a single direction;
// INVENTORY_COUNT documents mix both.
const (
	DirectionIncrease = "INCREASE"
	DirectionDecrease = "DECREASE"
)

// Adjustment represents a stock correction document. Increase items
// create cost layers like a stock-in; decrease items consume batches
// like a stock-out, optionally pinned to one specific batch.
type Adjustment struct {
	entity.Document

	// Type is the adjustment sub-type (INCREASE, DECREASE, INVENTORY_COUNT)
	Type string `db:"type" json:"type"`

	// Reason is a free-text justification
	Reason string `db:"reason" json:"reason,omitempty"`

	// CountID references the inventory count that synthesized this
	// document (INVENTORY_COUNT type only)
	CountID *id.ID `db:"count_id" json:"countId,omitempty"`

	// Method is the costing method for created and consumed batches
	Method entity.CostingMethod `db:"costing_method" json:"costingMethod"`

	Items []AdjustmentItem `db:"-" json:"items"`
}

// AdjustmentItem is one corrected material position.
type AdjustmentItem struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	entity.PricedLine

	// Direction is the item-level effect. Fixed by the document type
	// except for INVENTORY_COUNT, where surpluses and shortages mix.
	Direction string `db:"direction" json:"direction"`

	// PinnedBatchID targets one specific batch for decrease items.
	// The allocator draws from that batch only; exceeding its remaining
	// quantity is an error, not a spill to other batches.
	PinnedBatchID *id.ID `db:"pinned_batch_id" json:"pinnedBatchId,omitempty"`

	Notes string `db:"notes" json:"notes,omitempty"`
}

// NewAdjustment creates a draft adjustment document.
func NewAdjustment(warehouseID, docType string, method entity.CostingMethod) *Adjustment {
	return &Adjustment{
		Document: entity.NewDocument(warehouseID),
		Type:     docType,
		Method:   method,
		Items:    make([]AdjustmentItem, 0),
	}
}

// AddIncreaseItem appends a position that creates a new batch.
func (d *Adjustment) AddIncreaseItem(materialID, unitID string, quantity types.Quantity, unitPrice types.Money) *AdjustmentItem {
	item := AdjustmentItem{
		LineID: id.New(),
		LineNo: len(d.Items) + 1,
		PricedLine: entity.PricedLine{
			MaterialLine: entity.MaterialLine{
				MaterialID: materialID,
				UnitID:     unitID,
				Quantity:   quantity,
			},
			UnitPrice: unitPrice,
		},
		Direction: DirectionIncrease,
	}
	d.Items = append(d.Items, item)
	return &d.Items[len(d.Items)-1]
}

// AddDecreaseItem appends a position that consumes existing batches.
// pinnedBatchID may be nil to let the allocator walk batches in costing
// order.
func (d *Adjustment) AddDecreaseItem(materialID, unitID string, quantity types.Quantity, pinnedBatchID *id.ID) *AdjustmentItem {
	item := AdjustmentItem{
		LineID: id.New(),
		LineNo: len(d.Items) + 1,
		PricedLine: entity.PricedLine{
			MaterialLine: entity.MaterialLine{
				MaterialID: materialID,
				UnitID:     unitID,
				Quantity:   quantity,
			},
		},
		Direction:     DirectionDecrease,
		PinnedBatchID: pinnedBatchID,
	}
	d.Items = append(d.Items, item)
	return &d.Items[len(d.Items)-1]
}

// IsCountOrigin reports whether an inventory count synthesized this
// document.
func (d *Adjustment) IsCountOrigin() bool {
	return d.CountID != nil
}

// Validate implements entity.Validatable.
func (d *Adjustment) Validate(ctx context.Context) error {
	if err := d.Document.Validate(ctx); err != nil {
		return err
	}

	switch d.Type {
	case TypeIncrease, TypeDecrease, TypeInventoryCount:
	default:
		return apperror.NewValidation("unknown adjustment type").
			WithDetail("field", "type").
			WithDetail("value", d.Type)
	}

	if !d.Method.Valid() {
		return apperror.NewValidation("unknown costing method").
			WithDetail("field", "costingMethod").
			WithDetail("value", string(d.Method))
	}

	if len(d.Items) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}

	for i, item := range d.Items {
		if err := d.validateItem(ctx, item); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("lineNo", i+1)
			}
			return err
		}
	}

	return nil
}

func (d *Adjustment) validateItem(ctx context.Context, item AdjustmentItem) error {
	switch item.Direction {
	case DirectionIncrease:
		if d.Type == TypeDecrease {
			return apperror.NewValidation("increase item on a decrease adjustment")
		}
		return item.ValidatePricedLine(ctx)
	case DirectionDecrease:
		if d.Type == TypeIncrease {
			return apperror.NewValidation("decrease item on an increase adjustment")
		}
		return item.ValidateMaterialLine(ctx)
	default:
		return apperror.NewValidation("unknown item direction").
			WithDetail("field", "direction").
			WithDetail("value", item.Direction)
	}
}

// GetDocumentType implements posting.Lockable.
func (d *Adjustment) GetDocumentType() string { return "Adjustment" }

// CanLock implements posting.Lockable.
func (d *Adjustment) CanLock(ctx context.Context) error {
	return d.Validate(ctx)
}

// LedgerEffects maps increase items to cost layers and decrease items to
// demands (pinned or in costing order).
func (d *Adjustment) LedgerEffects(ctx context.Context) (*posting.EffectSet, error) {
	effects := &posting.EffectSet{}
	for _, item := range d.Items {
		switch item.Direction {
		case DirectionIncrease:
			effects.Creations = append(effects.Creations, ledger.BatchSpec{
				WarehouseID:     d.WarehouseID,
				MaterialID:      item.MaterialID,
				UnitID:          item.UnitID,
				SourceID:        d.ID,
				SourceType:      d.GetDocumentType(),
				SourceCode:      d.Code,
				TransactionDate: d.Date,
				Method:          d.Method,
				Quantity:        item.Quantity,
				UnitPrice:       item.UnitPrice,
			})
		case DirectionDecrease:
			effects.Demands = append(effects.Demands, ledger.Demand{
				LineID:        item.LineID,
				WarehouseID:   d.WarehouseID,
				MaterialID:    item.MaterialID,
				Quantity:      item.Quantity,
				Method:        d.Method,
				PinnedBatchID: item.PinnedBatchID,
			})
		}
	}
	return effects, nil
}

var _ posting.Lockable = (*Adjustment)(nil)
