package entity

import (
	"context"
	"time"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/id"
)

// Document is the base type for inventory transactions.
// Examples: StockIn, StockOut, AdjustmentTransaction, InventoryCount.
type Document struct {
	BaseDocument

	// Code is the document code (auto-generated, unique within type+period)
	Code string `db:"code" json:"code"`

	// Date is the business date of the transaction
	Date time.Time `db:"date" json:"date"`

	// Locked indicates the document's ledger effects are applied.
	// A locked document is immutable until it is unlocked.
	Locked bool `db:"is_locked" json:"isLocked"`

	// LockVersion tracks lock iterations for effect reconciliation.
	// Incremented each time the document is locked.
	LockVersion int `db:"lock_version" json:"lockVersion"`

	// WarehouseID is the primary warehouse the document acts on
	WarehouseID string `db:"warehouse_id" json:"warehouseId"`

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a new Document with generated ID.
func NewDocument(warehouseID string) Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         time.Now().UTC(),
		WarehouseID:  warehouseID,
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.WarehouseID == "" {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}

	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}

	return nil
}

// CanModify checks if document can be modified.
// Locked documents require unlocking first.
func (d *Document) CanModify() error {
	if d.Locked {
		return apperror.NewBusinessRule(
			apperror.CodeLockState,
			"Cannot modify locked document. Unlock first.",
		).WithDetail("document_id", d.ID.String())
	}
	return nil
}

// MarkLocked sets the locked flag and increments the lock version.
// Version is not touched here: the repository bumps it on update and the
// optimistic check compares against the loaded value.
func (d *Document) MarkLocked() {
	d.Locked = true
	d.LockVersion++
}

// MarkUnlocked clears the locked flag.
func (d *Document) MarkUnlocked() {
	d.Locked = false
}

// IsBackdated checks if document date is in the past.
func (d *Document) IsBackdated() bool {
	return d.Date.Before(time.Now().UTC().Truncate(24 * time.Hour))
}

// --- Lockable interface default implementations ---
// Document-specific types only need to implement GetDocumentType() and
// LedgerEffects().

// GetID returns the document ID (Lockable interface).
func (d *Document) GetID() id.ID {
	return d.ID
}

// GetCode returns the document code (Lockable interface).
func (d *Document) GetCode() string {
	return d.Code
}

// GetDate returns the business date (Lockable interface).
func (d *Document) GetDate() time.Time {
	return d.Date
}

// GetLockVersion returns the current lock version (Lockable interface).
func (d *Document) GetLockVersion() int {
	return d.LockVersion
}

// IsLocked returns true if the document is currently locked (Lockable interface).
func (d *Document) IsLocked() bool {
	return d.Locked
}

// CanLock validates if the document can be locked (Lockable interface default).
// Override in specific document types if additional validation is needed.
func (d *Document) CanLock(ctx context.Context) error {
	return d.Validate(ctx)
}
