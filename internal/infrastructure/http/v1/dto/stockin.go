package dto

import (
	"time"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/entity"
	"batchledger/internal/core/types"
	"batchledger/internal/domain/documents/stockin"
)

// --- Request DTOs ---

type CreateStockInRequest struct {
	Date          time.Time            `json:"date" binding:"required"`
	Type          string               `json:"type" binding:"required"`
	WarehouseID   string               `json:"warehouseId" binding:"required"`
	SupplierID    string               `json:"supplierId,omitempty"`
	CostingMethod string               `json:"costingMethod" binding:"required"`
	ReferenceNo   string               `json:"referenceNo,omitempty"`
	ReceivedBy    string               `json:"receivedBy,omitempty"`
	Comment       string               `json:"comment,omitempty"`
	Items         []StockInItemRequest `json:"items" binding:"required,min=1,dive"`
	LockImmediately bool               `json:"lockImmediately,omitempty"`
}

type StockInItemRequest struct {
	MaterialID string `json:"materialId" binding:"required"`
	UnitID     string `json:"unitId,omitempty"`
	Quantity   string `json:"quantity" binding:"required"`
	UnitPrice  string `json:"unitPrice" binding:"required"`
	BatchLabel string `json:"batchLabel,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

func (r *CreateStockInRequest) ToEntity() (*stockin.StockIn, error) {
	doc := stockin.NewStockIn(r.WarehouseID, r.Type, entity.CostingMethod(r.CostingMethod))
	doc.Date = r.Date
	doc.SupplierID = r.SupplierID
	doc.ReferenceNo = r.ReferenceNo
	doc.ReceivedBy = r.ReceivedBy
	doc.Comment = r.Comment

	for i, item := range r.Items {
		qty, err := types.QuantityFromString(item.Quantity)
		if err != nil {
			return nil, apperror.NewValidation("invalid quantity").
				WithDetail("line", i+1).
				WithDetail("value", item.Quantity)
		}
		price, err := types.MoneyFromString(item.UnitPrice)
		if err != nil {
			return nil, apperror.NewValidation("invalid unit price").
				WithDetail("line", i+1).
				WithDetail("value", item.UnitPrice)
		}

		added := doc.AddItem(item.MaterialID, item.UnitID, qty, price)
		added.BatchLabel = item.BatchLabel
		added.Notes = item.Notes
	}

	return doc, nil
}

// --- Response DTOs ---

type StockInResponse struct {
	ID               string                `json:"id"`
	Code             string                `json:"code"`
	Date             time.Time             `json:"date"`
	Type             string                `json:"type"`
	WarehouseID      string                `json:"warehouseId"`
	SupplierID       string                `json:"supplierId,omitempty"`
	TransferSourceID *string               `json:"transferSourceId,omitempty"`
	CostingMethod    string                `json:"costingMethod"`
	ReferenceNo      string                `json:"referenceNo,omitempty"`
	ReceivedBy       string                `json:"receivedBy,omitempty"`
	Locked           bool                  `json:"isLocked"`
	LockVersion      int                   `json:"lockVersion,omitempty"`
	Comment          string                `json:"comment,omitempty"`
	Items            []StockInItemResponse `json:"items,omitempty"`
	DeletionMark     bool                  `json:"deletionMark,omitempty"`
	Version          int                   `json:"version"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

type StockInItemResponse struct {
	LineID     string `json:"lineId"`
	LineNo     int    `json:"lineNo"`
	MaterialID string `json:"materialId"`
	UnitID     string `json:"unitId,omitempty"`
	Quantity   string `json:"quantity"`
	UnitPrice  string `json:"unitPrice"`
	BatchLabel string `json:"batchLabel,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

func FromStockIn(doc *stockin.StockIn) *StockInResponse {
	resp := &StockInResponse{
		ID:            doc.ID.String(),
		Code:          doc.Code,
		Date:          doc.Date,
		Type:          doc.Type,
		WarehouseID:   doc.WarehouseID,
		SupplierID:    doc.SupplierID,
		CostingMethod: string(doc.Method),
		ReferenceNo:   doc.ReferenceNo,
		ReceivedBy:    doc.ReceivedBy,
		Locked:        doc.Locked,
		LockVersion:   doc.LockVersion,
		Comment:       doc.Comment,
		DeletionMark:  doc.DeletionMark,
		Version:       doc.Version,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}

	if doc.TransferSourceID != nil {
		s := doc.TransferSourceID.String()
		resp.TransferSourceID = &s
	}

	resp.Items = make([]StockInItemResponse, len(doc.Items))
	for i, item := range doc.Items {
		resp.Items[i] = StockInItemResponse{
			LineID:     item.LineID.String(),
			LineNo:     item.LineNo,
			MaterialID: item.MaterialID,
			UnitID:     item.UnitID,
			Quantity:   item.Quantity.String(),
			UnitPrice:  item.UnitPrice.String(),
			BatchLabel: item.BatchLabel,
			Notes:      item.Notes,
		}
	}

	return resp
}

type StockInListResponse struct {
	Items      []*StockInResponse `json:"items"`
	TotalCount int                `json:"totalCount"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}
