// Package entity provides core domain entities.
package entity

import (
	"time"

	"batchledger/internal/core/id"
	"batchledger/internal/core/types"
)

// CostingMethod selects the order in which batches are consumed.
type CostingMethod string

const (
	// CostingFIFO consumes the oldest batches first
	CostingFIFO CostingMethod = "FIFO"
	// CostingLIFO consumes the newest batches first
	CostingLIFO CostingMethod = "LIFO"
)

// Valid reports whether the method is a known costing method.
func (m CostingMethod) Valid() bool {
	return m == CostingFIFO || m == CostingLIFO
}

// Batch is one row of the batch ledger: a cost layer created when stock
// enters a warehouse. RemainingQuantity is the only mutable field; it is
// drawn down by allocations and restored by reversals.
type Batch struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Dimensions
	WarehouseID string `db:"warehouse_id" json:"warehouseId"`
	MaterialID  string `db:"material_id" json:"materialId"`
	UnitID      string `db:"unit_id" json:"unitId,omitempty"`

	// SourceID is the document that created this batch
	SourceID id.ID `db:"source_id" json:"sourceId"`

	// SourceType is the document type (e.g. "StockIn", "AdjustmentTransaction")
	SourceType string `db:"source_type" json:"sourceType"`

	// SourceCode is the human-readable code of the source document
	SourceCode string `db:"source_code" json:"sourceCode"`

	// TransactionDate is the business date of the source document.
	// Batch consumption order is (TransactionDate, CreatedAt) ascending
	// for FIFO and descending for LIFO.
	TransactionDate time.Time `db:"transaction_date" json:"transactionDate"`

	// Method records the costing method the batch was created under
	Method CostingMethod `db:"costing_method" json:"costingMethod"`

	// Quantity is the original quantity, immutable after creation
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// UnitPrice is the acquisition cost per unit, immutable after creation
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`

	// RemainingQuantity is the undepleted part, 0 <= remaining <= quantity
	RemainingQuantity types.Quantity `db:"remaining_quantity" json:"remainingQuantity"`

	// Label is an optional human-readable batch number
	Label string `db:"batch_label" json:"batchLabel,omitempty"`

	// CreatedAt orders batches created on the same transaction date
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// IsDepleted returns true when nothing remains in the batch.
func (b *Batch) IsDepleted() bool {
	return b.RemainingQuantity.IsZero()
}

// IsIntact returns true when the batch has never been consumed.
func (b *Batch) IsIntact() bool {
	return b.RemainingQuantity.Equal(b.Quantity)
}

// AllocationRecord links a consuming document line to the batch it drew
// from. Records are immutable; reversal credits QuantityUsed back to the
// batch and deletes the record, never recomputing from totals.
type AllocationRecord struct {
	// LineID is the unique identifier for this allocation line (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// ConsumerID is the document that consumed the stock
	ConsumerID id.ID `db:"consumer_id" json:"consumerId"`

	// ConsumerType is the document type (e.g. "StockOut")
	ConsumerType string `db:"consumer_type" json:"consumerType"`

	// ConsumerLineID identifies the document item the allocation belongs to
	ConsumerLineID id.ID `db:"consumer_line_id" json:"consumerLineId"`

	// LockVersion tracks which lock iteration created this record.
	// Allows cleanup: DELETE WHERE consumer_id = X AND lock_version < Y.
	LockVersion int `db:"lock_version" json:"lockVersion"`

	// BatchID is the batch the quantity was taken from
	BatchID id.ID `db:"batch_id" json:"batchId"`

	// QuantityUsed is the exact quantity taken from the batch
	QuantityUsed types.Quantity `db:"quantity_used" json:"quantityUsed"`

	// UnitPrice is copied from the batch at consumption time
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`

	// CreatedAt is when the allocation was recorded
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewAllocationRecord creates an allocation record with generated LineID.
func NewAllocationRecord(consumerID id.ID, consumerType string, consumerLineID id.ID, lockVersion int, batch *Batch, used types.Quantity) AllocationRecord {
	return AllocationRecord{
		LineID:         id.New(),
		ConsumerID:     consumerID,
		ConsumerType:   consumerType,
		ConsumerLineID: consumerLineID,
		LockVersion:    lockVersion,
		BatchID:        batch.ID,
		QuantityUsed:   used,
		UnitPrice:      batch.UnitPrice,
		CreatedAt:      time.Now().UTC(),
	}
}

// Cost returns the monetary value of the allocation (quantity * unit price).
func (r *AllocationRecord) Cost() types.Money {
	return r.QuantityUsed.Mul(r.UnitPrice)
}
