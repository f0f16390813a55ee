package stockout

import (
	"context"
	"fmt"
	"time"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/entity"
	"batchledger/internal/core/id"
	"batchledger/internal/core/numerator"
	"batchledger/internal/core/tx"
	"batchledger/internal/core/types"
	"batchledger/internal/domain"
	"batchledger/internal/domain/audit"
	"batchledger/internal/domain/documents/stockin"
	"batchledger/internal/domain/ledger"
	"batchledger/internal/domain/posting"
	"batchledger/pkg/logger"
)

// Service provides business operations for issuing documents.
//
// Internal transfers pair the stock-out with an auto-generated stock-in
// at the destination warehouse, priced at the weighted-average cost of
// the consumed batches. Both documents lock in one transaction.
type Service struct {
	repo      Repository
	engine    *posting.Engine
	allocator *ledger.Allocator
	receipts  *stockin.Service
	numerator numerator.Generator
	txManager tx.Manager
}

// NewService creates a new stock-out service.
func NewService(
	repo Repository,
	engine *posting.Engine,
	allocator *ledger.Allocator,
	receipts *stockin.Service,
	gen numerator.Generator,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:      repo,
		engine:    engine,
		allocator: allocator,
		receipts:  receipts,
		numerator: gen,
		txManager: txManager,
	}
}

// Create creates a new draft issuing document.
func (s *Service) Create(ctx context.Context, doc *StockOut) error {
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	if err := s.assignCode(ctx, doc); err != nil {
		return err
	}

	audit.EnrichCreatedByDirect(ctx, &doc.CreatedBy, &doc.UpdatedBy)

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := s.repo.SaveItems(ctx, doc.ID, doc.Items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "stock-out created", "id", doc.ID, "code", doc.Code)
	return nil
}

// GetByID retrieves an issuing document with items.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*StockOut, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.GetItems(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	doc.Items = items

	return doc, nil
}

// Update updates a draft issuing document.
func (s *Service) Update(ctx context.Context, doc *StockOut) error {
	if err := doc.CanModify(); err != nil {
		return err
	}

	if err := doc.Validate(ctx); err != nil {
		return err
	}

	audit.EnrichUpdatedByDirect(ctx, &doc.UpdatedBy)

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.repo.SaveItems(ctx, doc.ID, doc.Items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}
		return nil
	})
}

// Delete soft-deletes a draft issuing document.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	if doc.Locked {
		return doc.CanModify()
	}

	return s.repo.Delete(ctx, docID)
}

// Lock consumes batches for every item. All items are allocated before
// any batch is debited; a shortfall on any line fails the whole call.
//
// For internal transfers, the destination receipt is created and locked
// in the same transaction.
func (s *Service) Lock(ctx context.Context, docID id.ID) error {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	if !doc.IsTransfer() {
		return s.engine.Lock(ctx, doc, s.updateFn(doc))
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.engine.Lock(ctx, doc, s.updateFn(doc)); err != nil {
			return err
		}

		receipt, err := s.buildTransferReceipt(ctx, doc)
		if err != nil {
			return err
		}

		if err := s.receipts.LockAndSave(ctx, receipt); err != nil {
			return fmt.Errorf("lock transfer receipt: %w", err)
		}

		logger.Info(ctx, "transfer receipt locked",
			"source_id", doc.ID,
			"receipt_id", receipt.ID,
			"receipt_code", receipt.Code,
		)
		return nil
	})
}

// Unlock reverses the document's allocations. For internal transfers the
// destination receipt is unlocked and removed first; if its batches were
// already consumed downstream, the whole unlock fails.
func (s *Service) Unlock(ctx context.Context, docID id.ID) error {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	if !doc.IsTransfer() {
		return s.engine.Unlock(ctx, doc, s.updateFn(doc))
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		receipt, err := s.receipts.GetByTransferSource(ctx, doc.ID)
		if err != nil && !apperror.IsNotFound(err) {
			return fmt.Errorf("find transfer receipt: %w", err)
		}

		if receipt != nil {
			if err := s.receipts.Unlock(ctx, receipt.ID); err != nil {
				return fmt.Errorf("unlock transfer receipt: %w", err)
			}
			if err := s.receipts.Delete(ctx, receipt.ID); err != nil {
				return fmt.Errorf("delete transfer receipt: %w", err)
			}
		}

		return s.engine.Unlock(ctx, doc, s.updateFn(doc))
	})
}

// AllocationPreview is the dry-run result of Preview.
type AllocationPreview struct {
	Takes         []ledger.Take  `json:"takes"`
	TotalCost     types.Money    `json:"totalCost"`
	TotalQuantity types.Quantity `json:"totalQuantity"`
}

// Preview shows what locking would consume, without mutating state.
func (s *Service) Preview(ctx context.Context, docID id.ID) (*AllocationPreview, error) {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	takes, err := s.engine.Preview(ctx, doc)
	if err != nil {
		return nil, err
	}

	total, qty := ledger.PlanCost(takes)
	return &AllocationPreview{
		Takes:         takes,
		TotalCost:     types.RoundMoney(total),
		TotalQuantity: qty,
	}, nil
}

// List retrieves issuing documents with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockOut], error) {
	return s.repo.List(ctx, filter)
}

// buildTransferReceipt prices the destination receipt from the stock-out's
// freshly written allocation records: per item, weighted-average cost of
// the batches that item consumed, rounded to money scale.
func (s *Service) buildTransferReceipt(ctx context.Context, doc *StockOut) (*stockin.StockIn, error) {
	records, err := s.allocator.ListByConsumer(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}

	byLine := make(map[id.ID][]entity.AllocationRecord)
	for _, rec := range records {
		byLine[rec.ConsumerLineID] = append(byLine[rec.ConsumerLineID], rec)
	}

	receipt := stockin.NewStockIn(doc.DestinationWarehouseID, stockin.TypeInternalTransfer, doc.Method)
	receipt.Date = doc.Date
	receipt.TransferSourceID = &doc.ID
	receipt.Comment = fmt.Sprintf("Transfer from warehouse %s, document %s", doc.WarehouseID, doc.Code)

	for _, item := range doc.Items {
		lineRecords := byLine[item.LineID]
		if len(lineRecords) == 0 {
			return nil, apperror.NewInternal(fmt.Errorf("no allocations for line %s", item.LineID))
		}

		total := types.Zero()
		qty := types.Zero()
		for _, rec := range lineRecords {
			total = total.Add(rec.Cost())
			qty = qty.Add(rec.QuantityUsed)
		}

		price := types.Zero()
		if !qty.IsZero() {
			price = types.RoundMoney(total.Div(qty))
		}

		receipt.AddItem(item.MaterialID, item.UnitID, item.Quantity, price)
	}

	return receipt, nil
}

func (s *Service) assignCode(ctx context.Context, doc *StockOut) error {
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

func (s *Service) updateFn(doc *StockOut) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return s.repo.Update(ctx, doc)
	}
}
