package adjustment

import (
	"context"
	"fmt"
	"time"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/id"
	"batchledger/internal/core/numerator"
	"batchledger/internal/core/tx"
	"batchledger/internal/domain"
	"batchledger/internal/domain/audit"
	"batchledger/internal/domain/posting"
	"batchledger/pkg/logger"
)

// Service provides business operations for adjustment documents.
type Service struct {
	repo      Repository
	engine    *posting.Engine
	numerator numerator.Generator
	txManager tx.Manager
}

// NewService creates a new adjustment service.
func NewService(
	repo Repository,
	engine *posting.Engine,
	gen numerator.Generator,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:      repo,
		engine:    engine,
		numerator: gen,
		txManager: txManager,
	}
}

// Create creates a new draft adjustment.
func (s *Service) Create(ctx context.Context, doc *Adjustment) error {
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

	logger.Info(ctx, "adjustment created", "id", doc.ID, "code", doc.Code, "type", doc.Type)
	return nil
}

// GetByID retrieves an adjustment with items.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Adjustment, error) {
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

// Update updates a draft adjustment. Count-synthesized adjustments are
// not editable by hand; the count owns them.
func (s *Service) Update(ctx context.Context, doc *Adjustment) error {
	if doc.IsCountOrigin() {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"Adjustment synthesized by an inventory count cannot be edited",
		).WithDetail("count_id", doc.CountID.String())
	}

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

// Delete soft-deletes a draft adjustment.
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

// Lock applies the adjustment's ledger effects.
func (s *Service) Lock(ctx context.Context, docID id.ID) error {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	return s.engine.Lock(ctx, doc, s.updateFn(doc))
}

// Unlock reverses the adjustment's ledger effects. Blocked when created
// batches were consumed downstream.
func (s *Service) Unlock(ctx context.Context, docID id.ID) error {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	return s.engine.Unlock(ctx, doc, s.updateFn(doc))
}

// LockAndSave creates the adjustment and locks it atomically. Used by
// the inventory count reconciler to apply variances in one transaction.
func (s *Service) LockAndSave(ctx context.Context, doc *Adjustment) error {
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	if err := s.assignCode(ctx, doc); err != nil {
		return err
	}

	isNew := doc.Version == 1
	if isNew {
		audit.EnrichCreatedByDirect(ctx, &doc.CreatedBy, &doc.UpdatedBy)
	}
	updateDoc := func(ctx context.Context) error {
		if isNew {
			if err := s.repo.Create(ctx, doc); err != nil {
				return err
			}
			return s.repo.SaveItems(ctx, doc.ID, doc.Items)
		}
		return s.repo.Update(ctx, doc)
	}

	return s.engine.Lock(ctx, doc, updateDoc)
}

// List retrieves adjustments with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Adjustment], error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) assignCode(ctx context.Context, doc *Adjustment) error {
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

func (s *Service) updateFn(doc *Adjustment) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return s.repo.Update(ctx, doc)
	}
}
