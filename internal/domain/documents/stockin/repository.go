package stockin

import (
	"context"
	"time"

	"batchledger/internal/core/id"
	"batchledger/internal/domain"
)

// Repository defines operations for receiving documents.
type Repository interface {
	Create(ctx context.Context, doc *StockIn) error
	GetByID(ctx context.Context, docID id.ID) (*StockIn, error)
	GetByCode(ctx context.Context, code string) (*StockIn, error)
	GetByTransferSource(ctx context.Context, sourceID id.ID) (*StockIn, error)
	Update(ctx context.Context, doc *StockIn) error
	Delete(ctx context.Context, docID id.ID) error

	GetItems(ctx context.Context, docID id.ID) ([]StockInItem, error)
	SaveItems(ctx context.Context, docID id.ID, items []StockInItem) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockIn], error)
	GetForUpdate(ctx context.Context, docID id.ID) (*StockIn, error)
}

// ListFilter for filtering receiving documents.
type ListFilter struct {
	domain.ListFilter

	WarehouseID *string
	SupplierID  *string
	Type        *string
	Locked      *bool
	DateFrom    *time.Time
	DateTo      *time.Time
}
