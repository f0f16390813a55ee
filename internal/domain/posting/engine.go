// Package posting implements the lock/unlock engine for ledger documents.
//
// Locking a document applies its ledger effects: consuming demands are
// allocated against live batches and new cost layers are created. Unlocking
// reverses those effects exactly, using the stored allocation records.
// Both directions run inside a single transaction.
package posting

import (
	"context"
	"fmt"
	"time"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/id"
	"batchledger/internal/core/security"
	"batchledger/internal/core/tx"
	"batchledger/internal/domain/ledger"
	"batchledger/pkg/logger"
)

// EffectSet describes what locking a document does to the ledger.
type EffectSet struct {
	// Creations are cost layers the document brings into stock.
	Creations []ledger.BatchSpec

	// Demands are quantities the document draws out of stock.
	Demands []ledger.Demand
}

// Lockable is implemented by documents the engine can lock and unlock.
// entity.Document provides defaults for everything except GetDocumentType
// and LedgerEffects.
type Lockable interface {
	GetID() id.ID
	GetDocumentType() string
	GetCode() string
	GetDate() time.Time
	GetLockVersion() int
	IsLocked() bool

	// CanLock validates document state before locking
	CanLock(ctx context.Context) error

	MarkLocked()
	MarkUnlocked()

	// LedgerEffects computes the batch creations and stock demands that
	// locking this document produces
	LedgerEffects(ctx context.Context) (*EffectSet, error)
}

// Auditor records lock state transitions. Optional.
type Auditor interface {
	LogLockEvent(ctx context.Context, documentType string, documentID id.ID, action string, changes map[string]any) error
}

// Engine applies and reverses document ledger effects atomically.
type Engine struct {
	ledger    *ledger.Service
	allocator *ledger.Allocator
	txManager tx.Manager
	policy    security.LockPolicy
	auditor   Auditor
}

// NewEngine creates a posting engine. auditor may be nil.
func NewEngine(
	ledgerSvc *ledger.Service,
	allocator *ledger.Allocator,
	txManager tx.Manager,
	policy security.LockPolicy,
	auditor Auditor,
) *Engine {
	return &Engine{
		ledger:    ledgerSvc,
		allocator: allocator,
		txManager: txManager,
		policy:    policy,
		auditor:   auditor,
	}
}

// Lock applies the document's ledger effects and persists the document via
// updateDoc in one transaction. Either everything is applied or nothing is.
//
// On error the in-memory document may carry a stale lock state; callers
// should discard it and re-fetch.
func (e *Engine) Lock(ctx context.Context, doc Lockable, updateDoc func(ctx context.Context) error) error {
	if doc.IsLocked() {
		return apperror.NewLockState(doc.GetDocumentType(), doc.GetID().String(), "locked")
	}

	if err := e.policy.CanLock(ctx, doc.GetDate()); err != nil {
		return err
	}

	if err := doc.CanLock(ctx); err != nil {
		return err
	}

	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		effects, err := doc.LedgerEffects(ctx)
		if err != nil {
			return err
		}

		var takes []ledger.Take
		if len(effects.Demands) > 0 {
			takes, err = e.allocator.Allocate(ctx, effects.Demands)
			if err != nil {
				return err
			}
		}

		doc.MarkLocked()

		if len(takes) > 0 {
			consumer := ledger.ConsumerRef{
				ID:          doc.GetID(),
				Type:        doc.GetDocumentType(),
				LockVersion: doc.GetLockVersion(),
			}
			if _, err := e.allocator.Apply(ctx, consumer, takes); err != nil {
				return err
			}
		}

		if len(effects.Creations) > 0 {
			if _, err := e.ledger.CreateBatches(ctx, effects.Creations); err != nil {
				return err
			}
		}

		if err := updateDoc(ctx); err != nil {
			return fmt.Errorf("update document: %w", err)
		}

		return e.recordEvent(ctx, doc, "lock")
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "document locked",
		"type", doc.GetDocumentType(),
		"id", doc.GetID(),
		"code", doc.GetCode(),
		"lock_version", doc.GetLockVersion(),
	)
	return nil
}

// Unlock reverses the document's ledger effects. It fails with
// UNLOCK_BLOCKED when any batch the document created has been partially
// consumed by another document.
func (e *Engine) Unlock(ctx context.Context, doc Lockable, updateDoc func(ctx context.Context) error) error {
	if !doc.IsLocked() {
		return apperror.NewLockState(doc.GetDocumentType(), doc.GetID().String(), "unlocked")
	}

	if err := e.policy.CanUnlock(ctx, doc.GetDate()); err != nil {
		return err
	}

	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		created, err := e.ledger.ListBySource(ctx, doc.GetID())
		if err != nil {
			return fmt.Errorf("list created batches: %w", err)
		}

		// Every created batch must be untouched, under row lock so no
		// concurrent allocation slips in between check and delete.
		for _, b := range created {
			locked, err := e.ledger.GetBatchForUpdate(ctx, b.ID)
			if err != nil {
				return err
			}
			if !locked.IsIntact() {
				return apperror.NewUnlockBlocked(doc.GetDocumentType(), doc.GetID().String()).
					WithDetail("batch_id", b.ID.String()).
					WithDetail("quantity", locked.Quantity.String()).
					WithDetail("remaining", locked.RemainingQuantity.String())
			}
		}

		if err := e.allocator.Reverse(ctx, doc.GetID()); err != nil {
			return err
		}

		if len(created) > 0 {
			if err := e.ledger.DeleteBySource(ctx, doc.GetID()); err != nil {
				return fmt.Errorf("delete created batches: %w", err)
			}
		}

		doc.MarkUnlocked()

		if err := updateDoc(ctx); err != nil {
			return fmt.Errorf("update document: %w", err)
		}

		return e.recordEvent(ctx, doc, "unlock")
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "document unlocked",
		"type", doc.GetDocumentType(),
		"id", doc.GetID(),
		"code", doc.GetCode(),
	)
	return nil
}

// Preview computes the allocation plan for the document's demands without
// writing anything. Row locks are not taken, so the plan is advisory.
func (e *Engine) Preview(ctx context.Context, doc Lockable) ([]ledger.Take, error) {
	if doc.IsLocked() {
		return nil, apperror.NewLockState(doc.GetDocumentType(), doc.GetID().String(), "locked")
	}

	effects, err := doc.LedgerEffects(ctx)
	if err != nil {
		return nil, err
	}
	if len(effects.Demands) == 0 {
		return nil, nil
	}

	return e.allocator.Preview(ctx, effects.Demands)
}

func (e *Engine) recordEvent(ctx context.Context, doc Lockable, action string) error {
	if e.auditor == nil {
		return nil
	}

	err := e.auditor.LogLockEvent(ctx, doc.GetDocumentType(), doc.GetID(), action, map[string]any{
		"code":         doc.GetCode(),
		"lock_version": doc.GetLockVersion(),
	})
	if err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}
