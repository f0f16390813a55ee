package dto

import (
	"time"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/entity"
	"batchledger/internal/core/types"
	"batchledger/internal/domain/documents/inventorycount"
)

// --- Request DTOs ---

type CreateInventoryCountRequest struct {
	Date          time.Time `json:"date" binding:"required"`
	WarehouseID   string    `json:"warehouseId" binding:"required"`
	CostingMethod string    `json:"costingMethod" binding:"required"`
	Comment       string    `json:"comment,omitempty"`
}

func (r *CreateInventoryCountRequest) ToEntity() *inventorycount.InventoryCount {
	doc := inventorycount.NewInventoryCount(r.WarehouseID, entity.CostingMethod(r.CostingMethod))
	doc.Date = r.Date
	doc.Comment = r.Comment
	return doc
}

// RecordCountRequest submits one counted line.
type RecordCountRequest struct {
	CountedQuantity string `json:"countedQuantity" binding:"required"`
}

func (r *RecordCountRequest) Quantity() (types.Quantity, error) {
	qty, err := types.QuantityFromString(r.CountedQuantity)
	if err != nil {
		return types.Zero(), apperror.NewValidation("invalid counted quantity").
			WithDetail("value", r.CountedQuantity)
	}
	return qty, nil
}

// --- Response DTOs ---

type InventoryCountResponse struct {
	ID            string              `json:"id"`
	Code          string              `json:"code"`
	Date          time.Time           `json:"date"`
	Status        string              `json:"status"`
	WarehouseID   string              `json:"warehouseId"`
	CostingMethod string              `json:"costingMethod"`
	AdjustmentID  *string             `json:"adjustmentId,omitempty"`
	Comment       string              `json:"comment,omitempty"`
	Items         []CountItemResponse `json:"items,omitempty"`
	Version       int                 `json:"version"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

type CountItemResponse struct {
	LineID          string  `json:"lineId"`
	LineNo          int     `json:"lineNo"`
	BatchID         string  `json:"batchId"`
	MaterialID      string  `json:"materialId"`
	UnitID          string  `json:"unitId,omitempty"`
	UnitPrice       string  `json:"unitPrice"`
	SystemQuantity  string  `json:"systemQuantity"`
	CountedQuantity *string    `json:"countedQuantity,omitempty"`
	CountedBy       string     `json:"countedBy,omitempty"`
	CountedAt       *time.Time `json:"countedAt,omitempty"`
	Difference      string     `json:"difference"`
}

func FromInventoryCount(doc *inventorycount.InventoryCount) *InventoryCountResponse {
	resp := &InventoryCountResponse{
		ID:            doc.ID.String(),
		Code:          doc.Code,
		Date:          doc.Date,
		Status:        doc.Status,
		WarehouseID:   doc.WarehouseID,
		CostingMethod: string(doc.Method),
		Comment:       doc.Comment,
		Version:       doc.Version,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}

	if doc.AdjustmentID != nil {
		s := doc.AdjustmentID.String()
		resp.AdjustmentID = &s
	}

	resp.Items = make([]CountItemResponse, len(doc.Items))
	for i, item := range doc.Items {
		itemResp := CountItemResponse{
			LineID:         item.LineID.String(),
			LineNo:         item.LineNo,
			BatchID:        item.BatchID.String(),
			MaterialID:     item.MaterialID,
			UnitID:         item.UnitID,
			UnitPrice:      item.UnitPrice.String(),
			SystemQuantity: item.SystemQuantity.String(),
			CountedBy:      item.CountedBy,
			CountedAt:      item.CountedAt,
			Difference:     item.Difference().String(),
		}
		if item.CountedQuantity != nil {
			s := item.CountedQuantity.String()
			itemResp.CountedQuantity = &s
		}
		resp.Items[i] = itemResp
	}

	return resp
}

type InventoryCountListResponse struct {
	Items      []*InventoryCountResponse `json:"items"`
	TotalCount int                       `json:"totalCount"`
	Limit      int                       `json:"limit"`
	Offset     int                       `json:"offset"`
}
