package inventorycount

import (
	"context"
	"time"

	"batchledger/internal/core/id"
	"batchledger/internal/domain"
)

// Repository defines operations for counting sessions.
type Repository interface {
	Create(ctx context.Context, doc *InventoryCount) error
	GetByID(ctx context.Context, docID id.ID) (*InventoryCount, error)
	GetByCode(ctx context.Context, code string) (*InventoryCount, error)
	Update(ctx context.Context, doc *InventoryCount) error
	Delete(ctx context.Context, docID id.ID) error

	GetItems(ctx context.Context, docID id.ID) ([]CountItem, error)
	SaveItems(ctx context.Context, docID id.ID, items []CountItem) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*InventoryCount], error)
	GetForUpdate(ctx context.Context, docID id.ID) (*InventoryCount, error)
}

// ListFilter for filtering counting sessions.
type ListFilter struct {
	domain.ListFilter

	WarehouseID *string
	Status      *string
	DateFrom    *time.Time
	DateTo      *time.Time
}
