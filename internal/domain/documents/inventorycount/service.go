package inventorycount

import (
	"context"
	"fmt"
	"time"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/id"
	"batchledger/internal/core/numerator"
	"batchledger/internal/core/security"
	"batchledger/internal/core/tx"
	"batchledger/internal/core/types"
	"batchledger/internal/domain"
	"batchledger/internal/domain/audit"
	"batchledger/internal/domain/documents/adjustment"
	"batchledger/internal/domain/ledger"
	"batchledger/pkg/logger"
)

// Service runs counting sessions and reconciles their variances.
//
// Completion is the only place in the system where one document spawns
// and locks another: non-zero differences become items of a single
// INVENTORY_COUNT adjustment, locked in the same transaction that
// completes the count.
type Service struct {
	repo        Repository
	ledger      *ledger.Service
	adjustments *adjustment.Service
	policy      security.CountCompletionPolicy
	numerator   numerator.Generator
	txManager   tx.Manager
}

// NewService creates a new inventory count service.
func NewService(
	repo Repository,
	ledgerSvc *ledger.Service,
	adjustments *adjustment.Service,
	policy security.CountCompletionPolicy,
	gen numerator.Generator,
	txManager tx.Manager,
) *Service {
	if policy == nil {
		policy = security.AllowPartialCounts
	}
	return &Service{
		repo:        repo,
		ledger:      ledgerSvc,
		adjustments: adjustments,
		policy:      policy,
		numerator:   gen,
		txManager:   txManager,
	}
}

// Create creates a draft counting session.
func (s *Service) Create(ctx context.Context, doc *InventoryCount) error {
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	if err := s.assignCode(ctx, doc); err != nil {
		return err
	}

	audit.EnrichCreatedByDirect(ctx, &doc.CreatedBy, &doc.UpdatedBy)

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create count: %w", err)
		}
		return s.repo.SaveItems(ctx, doc.ID, doc.Items)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "inventory count created", "id", doc.ID, "code", doc.Code)
	return nil
}

// GetByID retrieves a counting session with items.
func (s *Service) GetByID(ctx context.Context, countID id.ID) (*InventoryCount, error) {
	doc, err := s.repo.GetByID(ctx, countID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.GetItems(ctx, countID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	doc.Items = items

	return doc, nil
}

// Start snapshots the countable universe and moves the session to
// IN_PROGRESS: one item per live batch of the warehouse, each pinning
// the batch's remaining quantity and unit price.
func (s *Service) Start(ctx context.Context, countID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, countID)
		if err != nil {
			return err
		}

		if err := doc.requireStatus(StatusDraft); err != nil {
			return err
		}

		summaries, err := s.ledger.LoadBatchesForCount(ctx, doc.WarehouseID)
		if err != nil {
			return fmt.Errorf("load batches: %w", err)
		}

		doc.Items = doc.Items[:0]
		for _, summary := range summaries {
			for _, b := range summary.Batches {
				doc.Items = append(doc.Items, CountItem{
					LineID:         id.New(),
					LineNo:         len(doc.Items) + 1,
					BatchID:        b.ID,
					MaterialID:     b.MaterialID,
					UnitID:         b.UnitID,
					UnitPrice:      b.UnitPrice,
					SystemQuantity: b.RemainingQuantity,
				})
			}
		}

		doc.Status = StatusInProgress
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update count: %w", err)
		}
		if err := s.repo.SaveItems(ctx, doc.ID, doc.Items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}

		logger.Info(ctx, "inventory count started",
			"id", doc.ID,
			"warehouse_id", doc.WarehouseID,
			"batches", len(doc.Items),
		)
		return nil
	})
}

// RecordCount stores the operator's counted quantity for one item.
func (s *Service) RecordCount(ctx context.Context, countID, lineID id.ID, counted types.Quantity) error {
	if counted.IsNegative() {
		return apperror.NewValidation("counted quantity cannot be negative").
			WithDetail("value", counted.String())
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, countID)
		if err != nil {
			return err
		}

		if err := doc.requireStatus(StatusInProgress); err != nil {
			return err
		}

		items, err := s.repo.GetItems(ctx, countID)
		if err != nil {
			return fmt.Errorf("get items: %w", err)
		}

		found := false
		now := time.Now().UTC()
		for i := range items {
			if items[i].LineID == lineID {
				q := counted
				items[i].CountedQuantity = &q
				items[i].CountedBy = security.GetUserID(ctx)
				items[i].CountedAt = &now
				found = true
				break
			}
		}
		if !found {
			return apperror.NewNotFound("count item", lineID.String())
		}

		if err := s.repo.SaveItems(ctx, countID, items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}
		return s.repo.Update(ctx, doc)
	})
}

// Complete reconciles the session: every counted item with a non-zero
// difference becomes one adjustment item (surplus creates a new batch at
// the counted batch's price, shortage consumes the pinned batch), and the
// resulting adjustment is locked atomically with the status change. A
// failed lock leaves the count IN_PROGRESS.
func (s *Service) Complete(ctx context.Context, countID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, countID)
		if err != nil {
			return err
		}

		if err := doc.requireStatus(StatusDraft, StatusInProgress); err != nil {
			return err
		}

		items, err := s.repo.GetItems(ctx, countID)
		if err != nil {
			return fmt.Errorf("get items: %w", err)
		}
		doc.Items = items

		if err := s.policy.CanComplete(ctx, doc.CountedItems(), len(doc.Items)); err != nil {
			return err
		}

		adj := s.buildAdjustment(doc)
		if adj != nil {
			if err := s.adjustments.LockAndSave(ctx, adj); err != nil {
				return fmt.Errorf("lock reconciliation adjustment: %w", err)
			}
			doc.AdjustmentID = &adj.ID
		}

		doc.Status = StatusCompleted
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update count: %w", err)
		}

		logger.Info(ctx, "inventory count completed",
			"id", doc.ID,
			"counted", doc.CountedItems(),
			"items", len(doc.Items),
			"has_adjustment", adj != nil,
		)
		return nil
	})
}

// Cancel abandons the session without ledger effect. Completed counts
// cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, countID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, countID)
		if err != nil {
			return err
		}

		if err := doc.requireStatus(StatusDraft, StatusInProgress); err != nil {
			return err
		}

		doc.Status = StatusCancelled
		return s.repo.Update(ctx, doc)
	})
}

// List retrieves counting sessions with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*InventoryCount], error) {
	return s.repo.List(ctx, filter)
}

// buildAdjustment turns non-zero differences into one INVENTORY_COUNT
// adjustment. Returns nil when everything matched.
func (s *Service) buildAdjustment(doc *InventoryCount) *adjustment.Adjustment {
	adj := adjustment.NewAdjustment(doc.WarehouseID, adjustment.TypeInventoryCount, doc.Method)
	adj.Date = doc.Date
	adj.CountID = &doc.ID
	adj.Reason = fmt.Sprintf("Inventory count %s reconciliation", doc.Code)

	for _, item := range doc.Items {
		diff := item.Difference()
		if diff.IsZero() {
			continue
		}

		if diff.IsPositive() {
			adj.AddIncreaseItem(item.MaterialID, item.UnitID, diff, item.UnitPrice)
		} else {
			batchID := item.BatchID
			adj.AddDecreaseItem(item.MaterialID, item.UnitID, diff.Abs(), &batchID)
		}
	}

	if len(adj.Items) == 0 {
		return nil
	}
	return adj
}

func (s *Service) assignCode(ctx context.Context, doc *InventoryCount) error {
	if doc.Code != "" {
		return nil
	}

	cfg := numerator.DefaultConfig(CodePrefix)
	code, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: NumeratorStrategy}, time.Now())
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	doc.Code = code
	return nil
}
