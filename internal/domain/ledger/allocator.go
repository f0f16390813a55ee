package ledger

import (
	"context"
	"fmt"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/entity"
	"batchledger/internal/core/id"
	"batchledger/internal/core/types"
	"batchledger/pkg/logger"
)

// Demand is one document line's requirement against the ledger.
type Demand struct {
	// LineID identifies the document item the demand belongs to
	LineID id.ID

	WarehouseID string
	MaterialID  string

	Quantity types.Quantity
	Method   entity.CostingMethod

	// PinnedBatchID restricts the demand to a single batch
	// (count-origin adjustments). Ordering does not apply.
	PinnedBatchID *id.ID
}

// Take is a planned draw from one batch. Takes are computed in memory
// first; nothing is persisted until Apply.
type Take struct {
	Batch  entity.Batch
	LineID id.ID
	Used   types.Quantity
}

// ConsumerRef identifies the document the allocation belongs to.
type ConsumerRef struct {
	ID          id.ID
	Type        string
	LockVersion int
}

// Allocator walks batches in costing order and records consumption.
type Allocator struct {
	batches     BatchStore
	allocations AllocationStore
}

// NewAllocator creates a new allocator.
func NewAllocator(batches BatchStore, allocations AllocationStore) *Allocator {
	return &Allocator{batches: batches, allocations: allocations}
}

// Allocate plans all demands against row-locked batches. Either every
// demand is satisfiable and the full plan is returned, or the first
// shortage fails the whole call with INSUFFICIENT_STOCK carrying the
// shortfall. Nothing is written.
//
// Batches are locked with FOR UPDATE so concurrent allocations against
// the same material serialize. Demands within the call share a working
// set: two lines consuming the same material see each other's draws.
func (a *Allocator) Allocate(ctx context.Context, demands []Demand) ([]Take, error) {
	return a.plan(ctx, demands, true)
}

// Preview is a read-only dry run: same planning as Allocate but without
// row locks. The result may be stale by the time a real lock happens.
func (a *Allocator) Preview(ctx context.Context, demands []Demand) ([]Take, error) {
	return a.plan(ctx, demands, false)
}

func (a *Allocator) plan(ctx context.Context, demands []Demand, lock bool) ([]Take, error) {
	// working set keyed by warehouse+material so multiple demands for
	// the same dimension draw from one in-memory view
	type dimKey struct{ warehouse, material string }
	working := make(map[dimKey][]entity.Batch)
	pinned := make(map[id.ID]*entity.Batch)

	var takes []Take

	for i := range demands {
		d := demands[i]
		if !d.Quantity.IsPositive() {
			return nil, apperror.NewValidation("demand quantity must be positive").
				WithDetail("line_id", d.LineID.String()).
				WithDetail("value", d.Quantity.String())
		}

		if d.PinnedBatchID != nil {
			take, err := a.planPinned(ctx, d, pinned, lock)
			if err != nil {
				return nil, err
			}
			takes = append(takes, take)
			continue
		}

		if !d.Method.Valid() {
			return nil, apperror.NewValidation("unknown costing method").
				WithDetail("line_id", d.LineID.String()).
				WithDetail("value", string(d.Method))
		}

		key := dimKey{d.WarehouseID, d.MaterialID}
		batches, ok := working[key]
		if !ok {
			var err error
			if lock {
				batches, err = a.batches.ListAvailableForUpdate(ctx, d.WarehouseID, d.MaterialID)
			} else {
				batches, err = a.batches.ListAvailable(ctx, d.WarehouseID, d.MaterialID)
			}
			if err != nil {
				return nil, fmt.Errorf("load batches for %s: %w", d.MaterialID, err)
			}
			working[key] = batches
		}

		order := consumptionOrder(batches, d.Method)

		needed := d.Quantity
		available := types.Zero()
		for _, idx := range order {
			available = available.Add(batches[idx].RemainingQuantity)
		}
		if available.LessThan(needed) {
			return nil, apperror.NewInsufficientStock(d.MaterialID, needed, available).
				WithDetail("warehouse_id", d.WarehouseID).
				WithDetail("line_id", d.LineID.String())
		}

		for _, idx := range order {
			if !needed.IsPositive() {
				break
			}
			b := &batches[idx]
			if b.RemainingQuantity.IsZero() {
				continue
			}

			used := b.RemainingQuantity
			if needed.LessThan(used) {
				used = needed
			}

			takes = append(takes, Take{Batch: *b, LineID: d.LineID, Used: used})
			b.RemainingQuantity = b.RemainingQuantity.Sub(used)
			needed = needed.Sub(used)
		}
	}

	return takes, nil
}

// planPinned resolves a demand pinned to one batch. A pinned demand
// exceeding the batch remainder fails; it never spills to other batches.
func (a *Allocator) planPinned(ctx context.Context, d Demand, cache map[id.ID]*entity.Batch, lock bool) (Take, error) {
	b, ok := cache[*d.PinnedBatchID]
	if !ok {
		var err error
		if lock {
			b, err = a.batches.GetForUpdate(ctx, *d.PinnedBatchID)
		} else {
			b, err = a.batches.Get(ctx, *d.PinnedBatchID)
		}
		if err != nil {
			return Take{}, fmt.Errorf("load pinned batch: %w", err)
		}
		cache[*d.PinnedBatchID] = b
	}

	if b.RemainingQuantity.LessThan(d.Quantity) {
		return Take{}, apperror.NewInsufficientStock(d.MaterialID, d.Quantity, b.RemainingQuantity).
			WithDetail("batch_id", b.ID.String()).
			WithDetail("line_id", d.LineID.String())
	}

	take := Take{Batch: *b, LineID: d.LineID, Used: d.Quantity}
	b.RemainingQuantity = b.RemainingQuantity.Sub(d.Quantity)
	return take, nil
}

// Apply persists a plan: conditionally debits every batch and inserts
// the allocation records. Must run inside the transaction that produced
// the plan. Returns the created records.
func (a *Allocator) Apply(ctx context.Context, consumer ConsumerRef, takes []Take) ([]entity.AllocationRecord, error) {
	if len(takes) == 0 {
		return nil, nil
	}

	records := make([]entity.AllocationRecord, 0, len(takes))
	for i := range takes {
		t := &takes[i]
		if err := a.batches.Debit(ctx, t.Batch.ID, t.Used); err != nil {
			return nil, fmt.Errorf("debit batch %s: %w", t.Batch.ID, err)
		}
		records = append(records, entity.NewAllocationRecord(
			consumer.ID, consumer.Type, t.LineID, consumer.LockVersion, &t.Batch, t.Used,
		))
	}

	if err := a.allocations.CreateMany(ctx, records); err != nil {
		return nil, fmt.Errorf("create allocation records: %w", err)
	}

	logger.Info(ctx, "applied allocation",
		"consumer_id", consumer.ID,
		"consumer_type", consumer.Type,
		"records", len(records),
	)

	return records, nil
}

// Reverse credits back every allocation record of a consumer and deletes
// the records. Restoration uses the stored QuantityUsed of each record;
// totals are never re-derived.
func (a *Allocator) Reverse(ctx context.Context, consumerID id.ID) error {
	records, err := a.allocations.ListByConsumer(ctx, consumerID)
	if err != nil {
		return fmt.Errorf("list allocations: %w", err)
	}

	for _, r := range records {
		if err := a.batches.Credit(ctx, r.BatchID, r.QuantityUsed); err != nil {
			return fmt.Errorf("credit batch %s: %w", r.BatchID, err)
		}
	}

	if err := a.allocations.DeleteByConsumer(ctx, consumerID); err != nil {
		return fmt.Errorf("delete allocations: %w", err)
	}

	logger.Info(ctx, "reversed allocation",
		"consumer_id", consumerID,
		"records", len(records),
	)

	return nil
}

// ListByConsumer returns the allocation records of a document.
func (a *Allocator) ListByConsumer(ctx context.Context, consumerID id.ID) ([]entity.AllocationRecord, error) {
	return a.allocations.ListByConsumer(ctx, consumerID)
}

// consumptionOrder returns batch indexes in draw order. Stores return
// batches ordered (transaction_date, created_at) ascending; LIFO walks
// them from the end.
func consumptionOrder(batches []entity.Batch, method entity.CostingMethod) []int {
	order := make([]int, len(batches))
	if method == entity.CostingLIFO {
		for i := range batches {
			order[i] = len(batches) - 1 - i
		}
		return order
	}
	for i := range batches {
		order[i] = i
	}
	return order
}

// PlanCost sums quantity*price over a plan. Used to price internal
// transfer receipts at the average cost of the consumed batches.
func PlanCost(takes []Take) (total types.Money, quantity types.Quantity) {
	total = types.Zero()
	quantity = types.Zero()
	for _, t := range takes {
		total = total.Add(t.Used.Mul(t.Batch.UnitPrice))
		quantity = quantity.Add(t.Used)
	}
	return total, quantity
}

// WeightedAverage returns the average unit cost of a plan rounded to
// money scale. Zero quantity yields zero.
func WeightedAverage(takes []Take) types.Money {
	total, qty := PlanCost(takes)
	if qty.IsZero() {
		return types.Zero()
	}
	return types.RoundMoney(total.Div(qty))
}
