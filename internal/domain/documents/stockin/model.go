// Package stockin provides the StockIn receiving document.
package stockin

import (
	"context"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/entity"
	"batchledger/internal/core/id"
	"batchledger/internal/core/types"
	"batchledger/internal/domain/ledger"
	"batchledger/internal/domain/posting"
)

// StockIn sub-types.
const (
	TypePurchase         = "PURCHASE"
	TypeInternalTransfer = "INTERNAL_TRANSFER"
)

// StockIn represents a receiving document. Locking it creates one cost
// layer per item.
type StockIn struct {
	entity.Document

	// Type is the receiving sub-type (PURCHASE, INTERNAL_TRANSFER)
	Type string `db:"type" json:"type"`

	// SupplierID references the supplier (purchases only)
	SupplierID string `db:"supplier_id" json:"supplierId,omitempty"`

	// TransferSourceID references the stock-out document that fed this
	// receipt (internal transfers only)
	TransferSourceID *id.ID `db:"transfer_source_id" json:"transferSourceId,omitempty"`

	// Method is the costing method stamped on every batch this document creates
	Method entity.CostingMethod `db:"costing_method" json:"costingMethod"`

	// ReferenceNo is the supplier's delivery note or invoice number
	ReferenceNo string `db:"reference_no" json:"referenceNo,omitempty"`

	// ReceivedBy names who physically accepted the goods
	ReceivedBy string `db:"received_by" json:"receivedBy,omitempty"`

	Items []StockInItem `db:"-" json:"items"`
}

// StockInItem is one received material position.
type StockInItem struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	entity.PricedLine

	// BatchLabel is an optional lot/batch marking carried onto the ledger
	BatchLabel string `db:"batch_label" json:"batchLabel,omitempty"`

	Notes string `db:"notes" json:"notes,omitempty"`
}

// NewStockIn creates a draft receiving document.
func NewStockIn(warehouseID, docType string, method entity.CostingMethod) *StockIn {
	return &StockIn{
		Document: entity.NewDocument(warehouseID),
		Type:     docType,
		Method:   method,
		Items:    make([]StockInItem, 0),
	}
}

// AddItem appends a received position.
func (d *StockIn) AddItem(materialID, unitID string, quantity types.Quantity, unitPrice types.Money) *StockInItem {
	item := StockInItem{
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
	}
	d.Items = append(d.Items, item)
	return &d.Items[len(d.Items)-1]
}

// Validate implements entity.Validatable.
func (d *StockIn) Validate(ctx context.Context) error {
	if err := d.Document.Validate(ctx); err != nil {
		return err
	}

	switch d.Type {
	case TypePurchase, TypeInternalTransfer:
	default:
		return apperror.NewValidation("unknown stock-in type").
			WithDetail("field", "type").
			WithDetail("value", d.Type)
	}

	if !d.Method.Valid() {
		return apperror.NewValidation("unknown costing method").
			WithDetail("field", "costingMethod").
			WithDetail("value", string(d.Method))
	}

	if d.Type == TypePurchase && d.SupplierID == "" {
		return apperror.NewValidation("supplier is required").
			WithDetail("field", "supplierId")
	}

	if len(d.Items) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}

	for i, item := range d.Items {
		if err := item.ValidatePricedLine(ctx); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("lineNo", i+1)
			}
			return err
		}
	}

	return nil
}

// GetDocumentType implements posting.Lockable.
func (d *StockIn) GetDocumentType() string { return "StockIn" }

// CanLock implements posting.Lockable.
func (d *StockIn) CanLock(ctx context.Context) error {
	return d.Validate(ctx)
}

// LedgerEffects creates one cost layer per item.
func (d *StockIn) LedgerEffects(ctx context.Context) (*posting.EffectSet, error) {
	effects := &posting.EffectSet{}
	for _, item := range d.Items {
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
			Label:           item.BatchLabel,
		})
	}
	return effects, nil
}

var _ posting.Lockable = (*StockIn)(nil)
