// Package ledger provides the batch ledger service.
package ledger

import (
	"context"
	"fmt"
	"time"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/entity"
	"batchledger/internal/core/id"
	"batchledger/internal/core/types"
	"batchledger/pkg/logger"
)

// BatchSpec describes a cost layer to be created.
type BatchSpec struct {
	WarehouseID string
	MaterialID  string
	UnitID      string

	SourceID   id.ID
	SourceType string
	SourceCode string

	TransactionDate time.Time
	Method          entity.CostingMethod

	Quantity  types.Quantity
	UnitPrice types.Money
	Label     string
}

// Validate checks that the spec describes a creatable batch.
func (s BatchSpec) Validate() error {
	if s.WarehouseID == "" {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if s.MaterialID == "" {
		return apperror.NewValidation("material is required").WithDetail("field", "materialId")
	}
	if !s.Quantity.IsPositive() {
		return apperror.NewValidation("batch quantity must be positive").
			WithDetail("field", "quantity").
			WithDetail("value", s.Quantity.String())
	}
	if s.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price cannot be negative").
			WithDetail("field", "unitPrice").
			WithDetail("value", s.UnitPrice.String())
	}
	if !s.Method.Valid() {
		return apperror.NewValidation("unknown costing method").
			WithDetail("field", "costingMethod").
			WithDetail("value", string(s.Method))
	}
	return nil
}

// BatchSummary groups live batches of one material for count preparation.
type BatchSummary struct {
	MaterialID string         `json:"materialId"`
	UnitID     string         `json:"unitId,omitempty"`
	Batches    []entity.Batch `json:"batches"`
	TotalStock types.Quantity `json:"totalStock"`
}

// Service provides business operations on the batch ledger.
// Transactions are managed by the caller (posting engine).
type Service struct {
	batches BatchStore
}

// NewService creates a new ledger service.
func NewService(batches BatchStore) *Service {
	return &Service{batches: batches}
}

// CreateBatch creates one cost layer from a spec.
func (s *Service) CreateBatch(ctx context.Context, spec BatchSpec) (*entity.Batch, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	b := &entity.Batch{
		ID:                id.New(),
		WarehouseID:       spec.WarehouseID,
		MaterialID:        spec.MaterialID,
		UnitID:            spec.UnitID,
		SourceID:          spec.SourceID,
		SourceType:        spec.SourceType,
		SourceCode:        spec.SourceCode,
		TransactionDate:   spec.TransactionDate,
		Method:            spec.Method,
		Quantity:          spec.Quantity,
		UnitPrice:         spec.UnitPrice,
		RemainingQuantity: spec.Quantity,
		Label:             spec.Label,
		CreatedAt:         time.Now().UTC(),
	}

	if err := s.batches.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	logger.Info(ctx, "created batch",
		"batch_id", b.ID,
		"material_id", b.MaterialID,
		"quantity", b.Quantity.String(),
	)

	return b, nil
}

// CreateBatches creates cost layers for all specs at once.
func (s *Service) CreateBatches(ctx context.Context, specs []BatchSpec) ([]entity.Batch, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	batches := make([]entity.Batch, 0, len(specs))
	now := time.Now().UTC()
	for i, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("batch spec %d: %w", i, err)
		}
		batches = append(batches, entity.Batch{
			ID:                id.New(),
			WarehouseID:       spec.WarehouseID,
			MaterialID:        spec.MaterialID,
			UnitID:            spec.UnitID,
			SourceID:          spec.SourceID,
			SourceType:        spec.SourceType,
			SourceCode:        spec.SourceCode,
			TransactionDate:   spec.TransactionDate,
			Method:            spec.Method,
			Quantity:          spec.Quantity,
			UnitPrice:         spec.UnitPrice,
			RemainingQuantity: spec.Quantity,
			Label:             spec.Label,
			CreatedAt:         now,
		})
	}

	if err := s.batches.CreateMany(ctx, batches); err != nil {
		return nil, fmt.Errorf("create batches: %w", err)
	}

	return batches, nil
}

// GetBatch retrieves a single batch.
func (s *Service) GetBatch(ctx context.Context, batchID id.ID) (*entity.Batch, error) {
	return s.batches.Get(ctx, batchID)
}

// CurrentStock returns the stock level for warehouse+material: the sum
// of remaining quantities over live batches. Depleted batches stay in
// the ledger for history but contribute nothing.
func (s *Service) CurrentStock(ctx context.Context, warehouseID, materialID string) (types.Quantity, error) {
	total, err := s.batches.SumRemaining(ctx, warehouseID, materialID)
	if err != nil {
		return types.Zero(), fmt.Errorf("sum remaining: %w", err)
	}
	return total, nil
}

// ListAvailable returns live batches in consumption order for the method.
func (s *Service) ListAvailable(ctx context.Context, warehouseID, materialID string, method entity.CostingMethod) ([]entity.Batch, error) {
	if !method.Valid() {
		return nil, apperror.NewValidation("unknown costing method").
			WithDetail("value", string(method))
	}

	batches, err := s.batches.ListAvailable(ctx, warehouseID, materialID)
	if err != nil {
		return nil, fmt.Errorf("list available: %w", err)
	}

	if method == entity.CostingLIFO {
		reverse(batches)
	}
	return batches, nil
}

// LoadBatchesForCount returns all live batches in a warehouse grouped by
// material. This is the countable universe for an inventory count sheet.
func (s *Service) LoadBatchesForCount(ctx context.Context, warehouseID string) ([]BatchSummary, error) {
	batches, err := s.batches.ListLiveByWarehouse(ctx, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("list live batches: %w", err)
	}

	index := make(map[string]int)
	var summaries []BatchSummary
	for _, b := range batches {
		i, ok := index[b.MaterialID]
		if !ok {
			i = len(summaries)
			index[b.MaterialID] = i
			summaries = append(summaries, BatchSummary{
				MaterialID: b.MaterialID,
				UnitID:     b.UnitID,
			})
		}
		summaries[i].Batches = append(summaries[i].Batches, b)
		summaries[i].TotalStock = summaries[i].TotalStock.Add(b.RemainingQuantity)
	}

	return summaries, nil
}

// ListBySource returns batches created by a document.
func (s *Service) ListBySource(ctx context.Context, sourceID id.ID) ([]entity.Batch, error) {
	return s.batches.ListBySource(ctx, sourceID)
}

// GetBatchForUpdate retrieves a batch with a row lock for intactness checks.
func (s *Service) GetBatchForUpdate(ctx context.Context, batchID id.ID) (*entity.Batch, error) {
	return s.batches.GetForUpdate(ctx, batchID)
}

// DeleteBySource removes the cost layers a document created. Callers must
// verify each batch is intact first.
func (s *Service) DeleteBySource(ctx context.Context, sourceID id.ID) error {
	return s.batches.DeleteBySource(ctx, sourceID)
}

func reverse(batches []entity.Batch) {
	for i, j := 0, len(batches)-1; i < j; i, j = i+1, j-1 {
		batches[i], batches[j] = batches[j], batches[i]
	}
}
