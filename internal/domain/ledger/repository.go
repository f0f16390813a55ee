// Package ledger provides the batch ledger: cost layers and their
// consumption records.
package ledger

import (
	"context"

	"batchledger/internal/core/entity"
	"batchledger/internal/core/id"
	"batchledger/internal/core/types"
)

// BatchStore defines persistence operations for ledger batches.
type BatchStore interface {
	// Create inserts a single batch
	Create(ctx context.Context, b *entity.Batch) error

	// CreateMany batch inserts batches (used during document locking)
	CreateMany(ctx context.Context, batches []entity.Batch) error

	// Get retrieves a batch by ID
	Get(ctx context.Context, batchID id.ID) (*entity.Batch, error)

	// GetForUpdate retrieves a batch with a row lock
	GetForUpdate(ctx context.Context, batchID id.ID) (*entity.Batch, error)

	// ListAvailable returns batches with remaining quantity for the
	// dimension, ordered by (transaction_date, created_at) ascending.
	// LIFO consumers reverse the slice.
	ListAvailable(ctx context.Context, warehouseID, materialID string) ([]entity.Batch, error)

	// ListAvailableForUpdate is ListAvailable with row locks, for use
	// inside an allocation transaction
	ListAvailableForUpdate(ctx context.Context, warehouseID, materialID string) ([]entity.Batch, error)

	// ListBySource returns all batches created by a document
	ListBySource(ctx context.Context, sourceID id.ID) ([]entity.Batch, error)

	// ListLiveByWarehouse returns batches with remaining quantity in a
	// warehouse across all materials (count sheet preparation)
	ListLiveByWarehouse(ctx context.Context, warehouseID string) ([]entity.Batch, error)

	// SumRemaining returns the current stock level for the dimension
	SumRemaining(ctx context.Context, warehouseID, materialID string) (types.Quantity, error)

	// Debit decrements remaining quantity only if enough remains.
	// Returns CONCURRENT_MODIFICATION when the conditional update
	// matches no row.
	Debit(ctx context.Context, batchID id.ID, qty types.Quantity) error

	// Credit adds quantity back to a batch (allocation reversal)
	Credit(ctx context.Context, batchID id.ID, qty types.Quantity) error

	// DeleteBySource removes all batches created by a document
	DeleteBySource(ctx context.Context, sourceID id.ID) error
}

// AllocationStore defines persistence operations for allocation records.
type AllocationStore interface {
	// CreateMany batch inserts allocation records
	CreateMany(ctx context.Context, records []entity.AllocationRecord) error

	// ListByConsumer returns all records created by a document
	ListByConsumer(ctx context.Context, consumerID id.ID) ([]entity.AllocationRecord, error)

	// ListByBatch returns all records drawing from a batch
	ListByBatch(ctx context.Context, batchID id.ID) ([]entity.AllocationRecord, error)

	// DeleteByConsumer removes all records created by a document
	DeleteByConsumer(ctx context.Context, consumerID id.ID) error
}
