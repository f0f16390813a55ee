package entity

import (
	"context"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/types"
)

// MaterialLine is a trait for document items that reference a material
// with a quantity. Used for composition in StockIn, StockOut and
// adjustment items.
type MaterialLine struct {
	MaterialID string `db:"material_id" json:"materialId"`

	UnitID string `db:"unit_id" json:"unitId,omitempty"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`
}

// ValidateMaterialLine checks the material reference and that the
// quantity is strictly positive.
func (l *MaterialLine) ValidateMaterialLine(ctx context.Context) error {
	if l.MaterialID == "" {
		return apperror.NewValidation("material is required").
			WithDetail("field", "materialId")
	}
	if !l.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity").
			WithDetail("value", l.Quantity.String())
	}
	return nil
}

// PricedLine extends MaterialLine with a unit price for items that
// create cost layers.
type PricedLine struct {
	MaterialLine

	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`
}

// ValidatePricedLine checks the line and that the price is not negative.
func (l *PricedLine) ValidatePricedLine(ctx context.Context) error {
	if err := l.ValidateMaterialLine(ctx); err != nil {
		return err
	}
	if l.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price cannot be negative").
			WithDetail("field", "unitPrice").
			WithDetail("value", l.UnitPrice.String())
	}
	return nil
}
