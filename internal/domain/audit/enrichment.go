// Package audit stamps documents with the acting user.
package audit

import (
	"context"

	"batchledger/internal/core/security"
)

// EnrichCreatedByDirect sets CreatedBy/UpdatedBy from the context user.
// No-op when the request carries no identity.
func EnrichCreatedByDirect(ctx context.Context, createdBy, updatedBy *string) {
	userID := security.GetUserID(ctx)
	if userID != "" && createdBy != nil && updatedBy != nil {
		*createdBy = userID
		*updatedBy = userID
	}
}

// EnrichUpdatedByDirect sets only UpdatedBy from the context user.
func EnrichUpdatedByDirect(ctx context.Context, updatedBy *string) {
	userID := security.GetUserID(ctx)
	if userID != "" && updatedBy != nil {
		*updatedBy = userID
	}
}
