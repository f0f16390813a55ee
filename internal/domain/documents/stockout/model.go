// Package stockout provides the StockOut issuing document.
package stockout

import (
	"context"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/entity"
	"batchledger/internal/core/id"
	"batchledger/internal/core/types"
	"batchledger/internal/domain/ledger"
	"batchledger/internal/domain/posting"
)

// StockOut sub-types.
const (
	TypeSale             = "SALE"
	TypeInternalTransfer = "INTERNAL_TRANSFER"
	TypeDisposal         = "DISPOSAL"
)

// StockOut represents an issuing document. Locking it consumes batches
// in costing order, one allocation per touched batch.
type StockOut struct {
	entity.Document

	// Type is the issuing sub-type (SALE, INTERNAL_TRANSFER, DISPOSAL)
	Type string `db:"type" json:"type"`

	// CustomerID references the customer (sales only)
	CustomerID string `db:"customer_id" json:"customerId,omitempty"`

	// DestinationWarehouseID is where transferred stock lands
	// (internal transfers only)
	DestinationWarehouseID string `db:"destination_warehouse_id" json:"destinationWarehouseId,omitempty"`

	// DisposalReason is a free-text reason (disposals only)
	DisposalReason string `db:"disposal_reason" json:"disposalReason,omitempty"`

	// Method is the costing method used to pick batches
	Method entity.CostingMethod `db:"costing_method" json:"costingMethod"`

	Items []StockOutItem `db:"-" json:"items"`
}

// StockOutItem is one issued material position.
type StockOutItem struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	entity.MaterialLine

	Notes string `db:"notes" json:"notes,omitempty"`
}

// NewStockOut creates a draft issuing document.
func NewStockOut(warehouseID, docType string, method entity.CostingMethod) *StockOut {
	return &StockOut{
		Document: entity.NewDocument(warehouseID),
		Type:     docType,
		Method:   method,
		Items:    make([]StockOutItem, 0),
	}
}

// AddItem appends an issued position.
func (d *StockOut) AddItem(materialID, unitID string, quantity types.Quantity) *StockOutItem {
	item := StockOutItem{
		LineID: id.New(),
		LineNo: len(d.Items) + 1,
		MaterialLine: entity.MaterialLine{
			MaterialID: materialID,
			UnitID:     unitID,
			Quantity:   quantity,
		},
	}
	d.Items = append(d.Items, item)
	return &d.Items[len(d.Items)-1]
}

// IsTransfer reports whether locking this document feeds a destination
// warehouse receipt.
func (d *StockOut) IsTransfer() bool {
	return d.Type == TypeInternalTransfer
}

// Validate implements entity.Validatable.
func (d *StockOut) Validate(ctx context.Context) error {
	if err := d.Document.Validate(ctx); err != nil {
		return err
	}

	switch d.Type {
	case TypeSale, TypeInternalTransfer, TypeDisposal:
	default:
		return apperror.NewValidation("unknown stock-out type").
			WithDetail("field", "type").
			WithDetail("value", d.Type)
	}

	if !d.Method.Valid() {
		return apperror.NewValidation("unknown costing method").
			WithDetail("field", "costingMethod").
			WithDetail("value", string(d.Method))
	}

	if d.Type == TypeSale && d.CustomerID == "" {
		return apperror.NewValidation("customer is required").
			WithDetail("field", "customerId")
	}

	if d.Type == TypeInternalTransfer {
		if d.DestinationWarehouseID == "" {
			return apperror.NewValidation("destination warehouse is required").
				WithDetail("field", "destinationWarehouseId")
		}
		if d.DestinationWarehouseID == d.WarehouseID {
			return apperror.NewValidation("destination must differ from source warehouse").
				WithDetail("field", "destinationWarehouseId")
		}
	}

	if len(d.Items) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}

	for i, item := range d.Items {
		if err := item.ValidateMaterialLine(ctx); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("lineNo", i+1)
			}
			return err
		}
	}

	return nil
}

// GetDocumentType implements posting.Lockable.
func (d *StockOut) GetDocumentType() string { return "StockOut" }

// CanLock implements posting.Lockable.
func (d *StockOut) CanLock(ctx context.Context) error {
	return d.Validate(ctx)
}

// LedgerEffects places one demand per item against the source warehouse.
func (d *StockOut) LedgerEffects(ctx context.Context) (*posting.EffectSet, error) {
	effects := &posting.EffectSet{}
	for _, item := range d.Items {
		effects.Demands = append(effects.Demands, ledger.Demand{
			LineID:      item.LineID,
			WarehouseID: d.WarehouseID,
			MaterialID:  item.MaterialID,
			Quantity:    item.Quantity,
			Method:      d.Method,
		})
	}
	return effects, nil
}

var _ posting.Lockable = (*StockOut)(nil)
