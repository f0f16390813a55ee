package dto

import (
	"time"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/entity"
	"batchledger/internal/core/id"
	"batchledger/internal/core/types"
	"batchledger/internal/domain/documents/adjustment"
)

// --- Request DTOs ---

type CreateAdjustmentRequest struct {
	Date            time.Time               `json:"date" binding:"required"`
	Type            string                  `json:"type" binding:"required"`
	WarehouseID     string                  `json:"warehouseId" binding:"required"`
	Reason          string                  `json:"reason,omitempty"`
	CostingMethod   string                  `json:"costingMethod" binding:"required"`
	Comment         string                  `json:"comment,omitempty"`
	Items           []AdjustmentItemRequest `json:"items" binding:"required,min=1,dive"`
	LockImmediately bool                    `json:"lockImmediately,omitempty"`
}

type AdjustmentItemRequest struct {
	Direction     string `json:"direction" binding:"required"`
	MaterialID    string `json:"materialId" binding:"required"`
	UnitID        string `json:"unitId,omitempty"`
	Quantity      string `json:"quantity" binding:"required"`
	UnitPrice     string `json:"unitPrice,omitempty"`
	PinnedBatchID string `json:"pinnedBatchId,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

func (r *CreateAdjustmentRequest) ToEntity() (*adjustment.Adjustment, error) {
	doc := adjustment.NewAdjustment(r.WarehouseID, r.Type, entity.CostingMethod(r.CostingMethod))
	doc.Date = r.Date
	doc.Reason = r.Reason
	doc.Comment = r.Comment

	for i, item := range r.Items {
		qty, err := types.QuantityFromString(item.Quantity)
		if err != nil {
			return nil, apperror.NewValidation("invalid quantity").
				WithDetail("line", i+1).
				WithDetail("value", item.Quantity)
		}

		switch item.Direction {
		case adjustment.DirectionIncrease:
			price := types.Zero()
			if item.UnitPrice != "" {
				price, err = types.MoneyFromString(item.UnitPrice)
				if err != nil {
					return nil, apperror.NewValidation("invalid unit price").
						WithDetail("line", i+1).
						WithDetail("value", item.UnitPrice)
				}
			}
			added := doc.AddIncreaseItem(item.MaterialID, item.UnitID, qty, price)
			added.Notes = item.Notes

		case adjustment.DirectionDecrease:
			var pinned *id.ID
			if item.PinnedBatchID != "" {
				parsed, err := id.Parse(item.PinnedBatchID)
				if err != nil {
					return nil, apperror.NewValidation("invalid pinned batch id").
						WithDetail("line", i+1).
						WithDetail("value", item.PinnedBatchID)
				}
				pinned = &parsed
			}
			added := doc.AddDecreaseItem(item.MaterialID, item.UnitID, qty, pinned)
			added.Notes = item.Notes

		default:
			return nil, apperror.NewValidation("unknown direction").
				WithDetail("line", i+1).
				WithDetail("value", item.Direction)
		}
	}

	return doc, nil
}

// --- Response DTOs ---

type AdjustmentResponse struct {
	ID            string                   `json:"id"`
	Code          string                   `json:"code"`
	Date          time.Time                `json:"date"`
	Type          string                   `json:"type"`
	WarehouseID   string                   `json:"warehouseId"`
	Reason        string                   `json:"reason,omitempty"`
	CountID       *string                  `json:"countId,omitempty"`
	CostingMethod string                   `json:"costingMethod"`
	Locked        bool                     `json:"isLocked"`
	LockVersion   int                      `json:"lockVersion,omitempty"`
	Comment       string                   `json:"comment,omitempty"`
	Items         []AdjustmentItemResponse `json:"items,omitempty"`
	DeletionMark  bool                     `json:"deletionMark,omitempty"`
	Version       int                      `json:"version"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

type AdjustmentItemResponse struct {
	LineID        string  `json:"lineId"`
	LineNo        int     `json:"lineNo"`
	Direction     string  `json:"direction"`
	MaterialID    string  `json:"materialId"`
	UnitID        string  `json:"unitId,omitempty"`
	Quantity      string  `json:"quantity"`
	UnitPrice     string  `json:"unitPrice,omitempty"`
	PinnedBatchID *string `json:"pinnedBatchId,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

func FromAdjustment(doc *adjustment.Adjustment) *AdjustmentResponse {
	resp := &AdjustmentResponse{
		ID:            doc.ID.String(),
		Code:          doc.Code,
		Date:          doc.Date,
		Type:          doc.Type,
		WarehouseID:   doc.WarehouseID,
		Reason:        doc.Reason,
		CostingMethod: string(doc.Method),
		Locked:        doc.Locked,
		LockVersion:   doc.LockVersion,
		Comment:       doc.Comment,
		DeletionMark:  doc.DeletionMark,
		Version:       doc.Version,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}

	if doc.CountID != nil {
		s := doc.CountID.String()
		resp.CountID = &s
	}

	resp.Items = make([]AdjustmentItemResponse, len(doc.Items))
	for i, item := range doc.Items {
		itemResp := AdjustmentItemResponse{
			LineID:     item.LineID.String(),
			LineNo:     item.LineNo,
			Direction:  item.Direction,
			MaterialID: item.MaterialID,
			UnitID:     item.UnitID,
			Quantity:   item.Quantity.String(),
			Notes:      item.Notes,
		}
		if item.Direction == adjustment.DirectionIncrease {
			itemResp.UnitPrice = item.UnitPrice.String()
		}
		if item.PinnedBatchID != nil {
			s := item.PinnedBatchID.String()
			itemResp.PinnedBatchID = &s
		}
		resp.Items[i] = itemResp
	}

	return resp
}

type AdjustmentListResponse struct {
	Items      []*AdjustmentResponse `json:"items"`
	TotalCount int                   `json:"totalCount"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`
}
