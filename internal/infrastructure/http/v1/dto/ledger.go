package dto

import (
	"time"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/entity"
	"batchledger/internal/core/types"
	"batchledger/internal/domain/ledger"
)

// --- Stock level ---

type StockResponse struct {
	WarehouseID string `json:"warehouseId"`
	MaterialID  string `json:"materialId"`
	Stock       string `json:"stock"`
}

// --- Batch listing ---

type BatchResponse struct {
	ID                string    `json:"id"`
	WarehouseID       string    `json:"warehouseId"`
	MaterialID        string    `json:"materialId"`
	UnitID            string    `json:"unitId,omitempty"`
	SourceID          string    `json:"sourceId"`
	SourceType        string    `json:"sourceType"`
	SourceCode        string    `json:"sourceCode,omitempty"`
	TransactionDate   time.Time `json:"transactionDate"`
	CostingMethod     string    `json:"costingMethod"`
	Quantity          string    `json:"quantity"`
	UnitPrice         string    `json:"unitPrice"`
	RemainingQuantity string    `json:"remainingQuantity"`
	BatchLabel        string    `json:"batchLabel,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

func FromBatch(b entity.Batch) BatchResponse {
	return BatchResponse{
		ID:                b.ID.String(),
		WarehouseID:       b.WarehouseID,
		MaterialID:        b.MaterialID,
		UnitID:            b.UnitID,
		SourceID:          b.SourceID.String(),
		SourceType:        b.SourceType,
		SourceCode:        b.SourceCode,
		TransactionDate:   b.TransactionDate,
		CostingMethod:     string(b.Method),
		Quantity:          b.Quantity.String(),
		UnitPrice:         b.UnitPrice.String(),
		RemainingQuantity: b.RemainingQuantity.String(),
		BatchLabel:        b.Label,
		CreatedAt:         b.CreatedAt,
	}
}

type BatchSummaryResponse struct {
	MaterialID string          `json:"materialId"`
	UnitID     string          `json:"unitId,omitempty"`
	Batches    []BatchResponse `json:"batches"`
	TotalStock string          `json:"totalStock"`
}

func FromBatchSummary(s ledger.BatchSummary) BatchSummaryResponse {
	batches := make([]BatchResponse, len(s.Batches))
	for i, b := range s.Batches {
		batches[i] = FromBatch(b)
	}
	return BatchSummaryResponse{
		MaterialID: s.MaterialID,
		UnitID:     s.UnitID,
		Batches:    batches,
		TotalStock: s.TotalStock.String(),
	}
}

// --- Dry-run allocation ---

// PreviewRequest asks what an issue would consume, without mutating state.
type PreviewRequest struct {
	WarehouseID   string               `json:"warehouseId" binding:"required"`
	CostingMethod string               `json:"costingMethod" binding:"required"`
	Items         []PreviewItemRequest `json:"items" binding:"required,min=1,dive"`
}

type PreviewItemRequest struct {
	MaterialID string `json:"materialId" binding:"required"`
	Quantity   string `json:"quantity" binding:"required"`
}

// ToDemands converts the request into allocator demands.
func (r *PreviewRequest) ToDemands() ([]ledger.Demand, error) {
	method := entity.CostingMethod(r.CostingMethod)
	if !method.Valid() {
		return nil, apperror.NewValidation("unknown costing method").
			WithDetail("value", r.CostingMethod)
	}

	demands := make([]ledger.Demand, 0, len(r.Items))
	for i, item := range r.Items {
		qty, err := types.QuantityFromString(item.Quantity)
		if err != nil {
			return nil, apperror.NewValidation("invalid quantity").
				WithDetail("line", i+1).
				WithDetail("value", item.Quantity)
		}
		demands = append(demands, ledger.Demand{
			WarehouseID: r.WarehouseID,
			MaterialID:  item.MaterialID,
			Quantity:    qty,
			Method:      method,
		})
	}
	return demands, nil
}

// PreviewResponse reports the planned takes.
type PreviewResponse struct {
	Takes         []PreviewTakeResponse `json:"takes"`
	TotalQuantity string                `json:"totalQuantity"`
	TotalCost     string                `json:"totalCost"`
}

type PreviewTakeResponse struct {
	BatchID      string `json:"batchId"`
	MaterialID   string `json:"materialId"`
	QuantityUsed string `json:"quantityUsed"`
	UnitPrice    string `json:"unitPrice"`
	Cost         string `json:"cost"`
}

func FromTakes(takes []ledger.Take) *PreviewResponse {
	resp := &PreviewResponse{
		Takes: make([]PreviewTakeResponse, len(takes)),
	}
	for i, t := range takes {
		cost := types.RoundMoney(t.Used.Mul(t.Batch.UnitPrice))
		resp.Takes[i] = PreviewTakeResponse{
			BatchID:      t.Batch.ID.String(),
			MaterialID:   t.Batch.MaterialID,
			QuantityUsed: t.Used.String(),
			UnitPrice:    t.Batch.UnitPrice.String(),
			Cost:         cost.String(),
		}
	}

	total, qty := ledger.PlanCost(takes)
	resp.TotalCost = types.RoundMoney(total).String()
	resp.TotalQuantity = qty.String()
	return resp
}
