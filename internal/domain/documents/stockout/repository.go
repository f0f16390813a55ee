package stockout

import (
	"context"
	"time"

	"batchledger/internal/core/id"
	"batchledger/internal/domain"
)

// Repository defines operations for issuing documents.
type Repository interface {
	Create(ctx context.Context, doc *StockOut) error
	GetByID(ctx context.Context, docID id.ID) (*StockOut, error)
	GetByCode(ctx context.Context, code string) (*StockOut, error)
	Update(ctx context.Context, doc *StockOut) error
	Delete(ctx context.Context, docID id.ID) error

	GetItems(ctx context.Context, docID id.ID) ([]StockOutItem, error)
	SaveItems(ctx context.Context, docID id.ID, items []StockOutItem) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockOut], error)
	GetForUpdate(ctx context.Context, docID id.ID) (*StockOut, error)
}

// ListFilter for filtering issuing documents.
type ListFilter struct {
	domain.ListFilter

	WarehouseID *string
	CustomerID  *string
	Type        *string
	Locked      *bool
	DateFrom    *time.Time
	DateTo      *time.Time
}
