package handlers

import (
	"github.com/gin-gonic/gin"

	"batchledger/internal/core/apperror"
	"batchledger/internal/domain/ledger"
	"batchledger/internal/infrastructure/http/v1/dto"
)

// LedgerHandler exposes read-only ledger queries and dry-run allocation.
type LedgerHandler struct {
	*BaseHandler
	ledger    *ledger.Service
	allocator *ledger.Allocator
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(base *BaseHandler, ledgerSvc *ledger.Service, allocator *ledger.Allocator) *LedgerHandler {
	return &LedgerHandler{BaseHandler: base, ledger: ledgerSvc, allocator: allocator}
}

// Stock returns the current stock level for warehouse+material.
// GET /ledger/stock?warehouseId=&materialId=
func (h *LedgerHandler) Stock(c *gin.Context) {
	warehouseID := c.Query("warehouseId")
	materialID := c.Query("materialId")
	if warehouseID == "" || materialID == "" {
		h.Error(c, apperror.NewValidation("warehouseId and materialId are required"))
		return
	}

	stock, err := h.ledger.CurrentStock(c.Request.Context(), warehouseID, materialID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.StockResponse{
		WarehouseID: warehouseID,
		MaterialID:  materialID,
		Stock:       stock.String(),
	})
}

// Batches returns live batches of a warehouse grouped by material.
// GET /ledger/batches?warehouseId=
func (h *LedgerHandler) Batches(c *gin.Context) {
	warehouseID := c.Query("warehouseId")
	if warehouseID == "" {
		h.Error(c, apperror.NewValidation("warehouseId is required"))
		return
	}

	summaries, err := h.ledger.LoadBatchesForCount(c.Request.Context(), warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	resp := make([]dto.BatchSummaryResponse, len(summaries))
	for i, s := range summaries {
		resp[i] = dto.FromBatchSummary(s)
	}

	h.OK(c, resp)
}

// Preview plans an allocation without writing anything.
// POST /ledger/preview
func (h *LedgerHandler) Preview(c *gin.Context) {
	var req dto.PreviewRequest
	if !h.BindJSON(c, &req) {
		return
	}

	demands, err := req.ToDemands()
	if err != nil {
		h.Error(c, err)
		return
	}

	takes, err := h.allocator.Preview(c.Request.Context(), demands)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTakes(takes))
}

// RegisterRoutes registers ledger routes.
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stock", h.Stock)
	rg.GET("/batches", h.Batches)
	rg.POST("/preview", h.Preview)
}
