// Package ledgertest provides in-memory ledger stores for unit tests.
// Behavior mirrors the postgres repositories, including conditional
// debit semantics and consumption ordering.
package ledgertest

import (
	"context"
	"sort"
	"sync"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/entity"
	"batchledger/internal/core/id"
	"batchledger/internal/core/types"
)

// BatchStore is an in-memory ledger.BatchStore.
type BatchStore struct {
	mu      sync.Mutex
	batches map[id.ID]*entity.Batch
}

// NewBatchStore creates an empty store.
func NewBatchStore() *BatchStore {
	return &BatchStore{batches: make(map[id.ID]*entity.Batch)}
}

func (s *BatchStore) Create(ctx context.Context, b *entity.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.batches[b.ID] = &cp
	return nil
}

func (s *BatchStore) CreateMany(ctx context.Context, batches []entity.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range batches {
		cp := batches[i]
		s.batches[cp.ID] = &cp
	}
	return nil
}

func (s *BatchStore) Get(ctx context.Context, batchID id.ID) (*entity.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return nil, apperror.NewNotFound("batch", batchID)
	}
	cp := *b
	return &cp, nil
}

func (s *BatchStore) GetForUpdate(ctx context.Context, batchID id.ID) (*entity.Batch, error) {
	return s.Get(ctx, batchID)
}

func (s *BatchStore) ListAvailable(ctx context.Context, warehouseID, materialID string) ([]entity.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []entity.Batch
	for _, b := range s.batches {
		if b.WarehouseID == warehouseID && b.MaterialID == materialID && b.RemainingQuantity.IsPositive() {
			result = append(result, *b)
		}
	}
	sortBatches(result)
	return result, nil
}

func (s *BatchStore) ListAvailableForUpdate(ctx context.Context, warehouseID, materialID string) ([]entity.Batch, error) {
	return s.ListAvailable(ctx, warehouseID, materialID)
}

func (s *BatchStore) ListBySource(ctx context.Context, sourceID id.ID) ([]entity.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []entity.Batch
	for _, b := range s.batches {
		if b.SourceID == sourceID {
			result = append(result, *b)
		}
	}
	sortBatches(result)
	return result, nil
}

func (s *BatchStore) ListLiveByWarehouse(ctx context.Context, warehouseID string) ([]entity.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []entity.Batch
	for _, b := range s.batches {
		if b.WarehouseID == warehouseID && b.RemainingQuantity.IsPositive() {
			result = append(result, *b)
		}
	}
	sortBatches(result)
	return result, nil
}

func (s *BatchStore) SumRemaining(ctx context.Context, warehouseID, materialID string) (types.Quantity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := types.Zero()
	for _, b := range s.batches {
		if b.WarehouseID == warehouseID && b.MaterialID == materialID {
			total = total.Add(b.RemainingQuantity)
		}
	}
	return total, nil
}

func (s *BatchStore) Debit(ctx context.Context, batchID id.ID, qty types.Quantity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok || b.RemainingQuantity.LessThan(qty) {
		return apperror.NewConcurrentModification("batch", batchID)
	}
	b.RemainingQuantity = b.RemainingQuantity.Sub(qty)
	return nil
}

func (s *BatchStore) Credit(ctx context.Context, batchID id.ID, qty types.Quantity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return apperror.NewNotFound("batch", batchID)
	}
	b.RemainingQuantity = b.RemainingQuantity.Add(qty)
	return nil
}

func (s *BatchStore) DeleteBySource(ctx context.Context, sourceID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for batchID, b := range s.batches {
		if b.SourceID == sourceID {
			delete(s.batches, batchID)
		}
	}
	return nil
}

func sortBatches(batches []entity.Batch) {
	sort.Slice(batches, func(i, j int) bool {
		if !batches[i].TransactionDate.Equal(batches[j].TransactionDate) {
			return batches[i].TransactionDate.Before(batches[j].TransactionDate)
		}
		return batches[i].CreatedAt.Before(batches[j].CreatedAt)
	})
}

// AllocationStore is an in-memory ledger.AllocationStore.
type AllocationStore struct {
	mu      sync.Mutex
	records []entity.AllocationRecord
}

// NewAllocationStore creates an empty store.
func NewAllocationStore() *AllocationStore {
	return &AllocationStore{}
}

func (s *AllocationStore) CreateMany(ctx context.Context, records []entity.AllocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *AllocationStore) ListByConsumer(ctx context.Context, consumerID id.ID) ([]entity.AllocationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []entity.AllocationRecord
	for _, r := range s.records {
		if r.ConsumerID == consumerID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (s *AllocationStore) ListByBatch(ctx context.Context, batchID id.ID) ([]entity.AllocationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []entity.AllocationRecord
	for _, r := range s.records {
		if r.BatchID == batchID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (s *AllocationStore) DeleteByConsumer(ctx context.Context, consumerID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, r := range s.records {
		if r.ConsumerID != consumerID {
			kept = append(kept, r)
		}
	}
	s.records = kept
	return nil
}
