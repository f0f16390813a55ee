package adjustment

import (
	"context"
	"time"

	"batchledger/internal/core/id"
	"batchledger/internal/domain"
)

// Repository defines operations for adjustment documents.
type Repository interface {
	Create(ctx context.Context, doc *Adjustment) error
	GetByID(ctx context.Context, docID id.ID) (*Adjustment, error)
	GetByCode(ctx context.Context, code string) (*Adjustment, error)
	Update(ctx context.Context, doc *Adjustment) error
	Delete(ctx context.Context, docID id.ID) error

	GetItems(ctx context.Context, docID id.ID) ([]AdjustmentItem, error)
	SaveItems(ctx context.Context, docID id.ID, items []AdjustmentItem) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Adjustment], error)
	GetForUpdate(ctx context.Context, docID id.ID) (*Adjustment, error)
}

// ListFilter for filtering adjustments.
type ListFilter struct {
	domain.ListFilter

	WarehouseID *string
	Type        *string
	CountID     *id.ID
	Locked      *bool
	DateFrom    *time.Time
	DateTo      *time.Time
}
