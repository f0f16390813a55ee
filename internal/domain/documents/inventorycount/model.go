// Package inventorycount provides the InventoryCount session: physical
// counting of live batches and reconciliation of variances through a
// synthesized adjustment.
package inventorycount

import (
	"context"
	"time"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/entity"
	"batchledger/internal/core/id"
	"batchledger/internal/core/types"
)

// Count lifecycle states. COMPLETED and CANCELLED are terminal.
const (
	StatusDraft      = "DRAFT"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
)

// InventoryCount is a counting session over one warehouse. Unlike the
// transaction documents it never locks; its ledger effect is carried by
// the adjustment it synthesizes on completion.
type InventoryCount struct {
	entity.Document

	// Status drives the DRAFT -> IN_PROGRESS -> COMPLETED|CANCELLED machine
	Status string `db:"status" json:"status"`

	// Method is the costing method passed to the synthesized adjustment
	Method entity.CostingMethod `db:"costing_method" json:"costingMethod"`

	// AdjustmentID references the reconciliation adjustment (set on completion)
	AdjustmentID *id.ID `db:"adjustment_id" json:"adjustmentId,omitempty"`

	Items []CountItem `db:"-" json:"items"`
}

// CountItem pins one live batch and captures what the operator found.
// SystemQuantity is snapshotted when the item is created and never
// re-read, so stock movement during a long count does not shift the
// variance basis.
type CountItem struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	BatchID    id.ID  `db:"batch_id" json:"batchId"`
	MaterialID string `db:"material_id" json:"materialId"`
	UnitID     string `db:"unit_id" json:"unitId,omitempty"`

	// UnitPrice is copied from the batch; surplus found on this batch is
	// priced at it
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`

	// SystemQuantity is the batch's remaining quantity at snapshot time
	SystemQuantity types.Quantity `db:"system_quantity" json:"systemQuantity"`

	// CountedQuantity is nil until the operator records a count
	CountedQuantity *types.Quantity `db:"counted_quantity" json:"countedQuantity,omitempty"`

	// CountedBy/CountedAt record who counted the item and when
	CountedBy string     `db:"counted_by" json:"countedBy,omitempty"`
	CountedAt *time.Time `db:"counted_at" json:"countedAt,omitempty"`
}

// IsCounted reports whether the operator has recorded this item.
func (i CountItem) IsCounted() bool {
	return i.CountedQuantity != nil
}

// Difference returns counted minus system. Zero when not counted.
func (i CountItem) Difference() types.Quantity {
	if i.CountedQuantity == nil {
		return types.Zero()
	}
	return i.CountedQuantity.Sub(i.SystemQuantity)
}

// NewInventoryCount creates a draft counting session.
func NewInventoryCount(warehouseID string, method entity.CostingMethod) *InventoryCount {
	doc := &InventoryCount{
		Document: entity.NewDocument(warehouseID),
		Status:   StatusDraft,
		Method:   method,
		Items:    make([]CountItem, 0),
	}
	return doc
}

// IsTerminal reports whether the session reached a final state.
func (c *InventoryCount) IsTerminal() bool {
	return c.Status == StatusCompleted || c.Status == StatusCancelled
}

// CountedItems returns how many items have a recorded quantity.
func (c *InventoryCount) CountedItems() int {
	n := 0
	for _, item := range c.Items {
		if item.IsCounted() {
			n++
		}
	}
	return n
}

// Validate implements entity.Validatable.
func (c *InventoryCount) Validate(ctx context.Context) error {
	if err := c.Document.Validate(ctx); err != nil {
		return err
	}

	switch c.Status {
	case StatusDraft, StatusInProgress, StatusCompleted, StatusCancelled:
	default:
		return apperror.NewValidation("unknown count status").
			WithDetail("field", "status").
			WithDetail("value", c.Status)
	}

	if !c.Method.Valid() {
		return apperror.NewValidation("unknown costing method").
			WithDetail("field", "costingMethod").
			WithDetail("value", string(c.Method))
	}

	return nil
}

// requireStatus returns a typed error when the session is not in one of
// the given states.
func (c *InventoryCount) requireStatus(allowed ...string) error {
	for _, s := range allowed {
		if c.Status == s {
			return nil
		}
	}
	return apperror.NewBusinessRule(
		apperror.CodeBusinessRule,
		"Operation not allowed in current count status",
	).WithDetail("status", c.Status).
		WithDetail("count_id", c.ID.String())
}
