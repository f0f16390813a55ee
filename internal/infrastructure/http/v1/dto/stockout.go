package dto

import (
	"time"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/entity"
	"batchledger/internal/core/types"
	"batchledger/internal/domain/documents/stockout"
)

// --- Request DTOs ---

type CreateStockOutRequest struct {
	Date                   time.Time             `json:"date" binding:"required"`
	Type                   string                `json:"type" binding:"required"`
	WarehouseID            string                `json:"warehouseId" binding:"required"`
	CustomerID             string                `json:"customerId,omitempty"`
	DestinationWarehouseID string                `json:"destinationWarehouseId,omitempty"`
	DisposalReason         string                `json:"disposalReason,omitempty"`
	CostingMethod          string                `json:"costingMethod" binding:"required"`
	Comment                string                `json:"comment,omitempty"`
	Items                  []StockOutItemRequest `json:"items" binding:"required,min=1,dive"`
	LockImmediately        bool                  `json:"lockImmediately,omitempty"`
}

type StockOutItemRequest struct {
	MaterialID string `json:"materialId" binding:"required"`
	UnitID     string `json:"unitId,omitempty"`
	Quantity   string `json:"quantity" binding:"required"`
	Notes      string `json:"notes,omitempty"`
}

func (r *CreateStockOutRequest) ToEntity() (*stockout.StockOut, error) {
	doc := stockout.NewStockOut(r.WarehouseID, r.Type, entity.CostingMethod(r.CostingMethod))
	doc.Date = r.Date
	doc.CustomerID = r.CustomerID
	doc.DestinationWarehouseID = r.DestinationWarehouseID
	doc.DisposalReason = r.DisposalReason
	doc.Comment = r.Comment

	for i, item := range r.Items {
		qty, err := types.QuantityFromString(item.Quantity)
		if err != nil {
			return nil, apperror.NewValidation("invalid quantity").
				WithDetail("line", i+1).
				WithDetail("value", item.Quantity)
		}

		added := doc.AddItem(item.MaterialID, item.UnitID, qty)
		added.Notes = item.Notes
	}

	return doc, nil
}

// --- Response DTOs ---

type StockOutResponse struct {
	ID                     string                 `json:"id"`
	Code                   string                 `json:"code"`
	Date                   time.Time              `json:"date"`
	Type                   string                 `json:"type"`
	WarehouseID            string                 `json:"warehouseId"`
	CustomerID             string                 `json:"customerId,omitempty"`
	DestinationWarehouseID string                 `json:"destinationWarehouseId,omitempty"`
	DisposalReason         string                 `json:"disposalReason,omitempty"`
	CostingMethod          string                 `json:"costingMethod"`
	Locked                 bool                   `json:"isLocked"`
	LockVersion            int                    `json:"lockVersion,omitempty"`
	Comment                string                 `json:"comment,omitempty"`
	Items                  []StockOutItemResponse `json:"items,omitempty"`
	DeletionMark           bool                   `json:"deletionMark,omitempty"`
	Version                int                    `json:"version"`
	CreatedAt              time.Time              `json:"createdAt"`
	UpdatedAt              time.Time              `json:"updatedAt"`
}

type StockOutItemResponse struct {
	LineID     string `json:"lineId"`
	LineNo     int    `json:"lineNo"`
	MaterialID string `json:"materialId"`
	UnitID     string `json:"unitId,omitempty"`
	Quantity   string `json:"quantity"`
	Notes      string `json:"notes,omitempty"`
}

func FromStockOut(doc *stockout.StockOut) *StockOutResponse {
	resp := &StockOutResponse{
		ID:                     doc.ID.String(),
		Code:                   doc.Code,
		Date:                   doc.Date,
		Type:                   doc.Type,
		WarehouseID:            doc.WarehouseID,
		CustomerID:             doc.CustomerID,
		DestinationWarehouseID: doc.DestinationWarehouseID,
		DisposalReason:         doc.DisposalReason,
		CostingMethod:          string(doc.Method),
		Locked:                 doc.Locked,
		LockVersion:            doc.LockVersion,
		Comment:                doc.Comment,
		DeletionMark:           doc.DeletionMark,
		Version:                doc.Version,
		CreatedAt:              doc.CreatedAt,
		UpdatedAt:              doc.UpdatedAt,
	}

	resp.Items = make([]StockOutItemResponse, len(doc.Items))
	for i, item := range doc.Items {
		resp.Items[i] = StockOutItemResponse{
			LineID:     item.LineID.String(),
			LineNo:     item.LineNo,
			MaterialID: item.MaterialID,
			UnitID:     item.UnitID,
			Quantity:   item.Quantity.String(),
			Notes:      item.Notes,
		}
	}

	return resp
}

type StockOutListResponse struct {
	Items      []*StockOutResponse `json:"items"`
	TotalCount int                 `json:"totalCount"`
	Limit      int                 `json:"limit"`
	Offset     int                 `json:"offset"`
}
