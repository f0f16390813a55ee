package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/id"
	"batchledger/internal/domain"
	"batchledger/internal/domain/documents/inventorycount"
	"batchledger/internal/infrastructure/http/v1/dto"
)

// InventoryCountHandler handles HTTP requests for counting sessions.
type InventoryCountHandler struct {
	*BaseHandler
	service *inventorycount.Service
}

// NewInventoryCountHandler creates a new inventory count handler.
func NewInventoryCountHandler(base *BaseHandler, service *inventorycount.Service) *InventoryCountHandler {
	return &InventoryCountHandler{BaseHandler: base, service: service}
}

func (h *InventoryCountHandler) Create(c *gin.Context) {
	var req dto.CreateInventoryCountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), doc); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromInventoryCount(doc))
}

func (h *InventoryCountHandler) Get(c *gin.Context) {
	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromInventoryCount(doc))
}

func (h *InventoryCountHandler) List(c *gin.Context) {
	filter := inventorycount.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.Query("orderBy")

	if warehouseID := c.Query("warehouseId"); warehouseID != "" {
		filter.WarehouseID = &warehouseID
	}
	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}
	if dateFrom := c.Query("dateFrom"); dateFrom != "" {
		if parsed, err := time.Parse(time.RFC3339, dateFrom); err == nil {
			filter.DateFrom = &parsed
		}
	}
	if dateTo := c.Query("dateTo"); dateTo != "" {
		if parsed, err := time.Parse(time.RFC3339, dateTo); err == nil {
			filter.DateTo = &parsed
		}
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.InventoryCountResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromInventoryCount(doc)
	}

	h.OK(c, dto.InventoryCountListResponse{
		Items:      items,
		TotalCount: int(result.TotalCount),
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Start snapshots the live batches and opens the session for counting.
// POST /:id/start
func (h *InventoryCountHandler) Start(c *gin.Context) {
	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Start(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromInventoryCount(doc))
}

// RecordCount stores a counted quantity for one sheet line.
// PUT /:id/items/:lineId
func (h *InventoryCountHandler) RecordCount(c *gin.Context) {
	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	lineID, err := id.Parse(c.Param("lineId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid line id format"))
		return
	}

	var req dto.RecordCountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	qty, err := req.Quantity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.RecordCount(c.Request.Context(), docID, lineID, qty); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "count recorded")
}

// Complete reconciles the session into a locked adjustment.
// POST /:id/complete
func (h *InventoryCountHandler) Complete(c *gin.Context) {
	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Complete(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromInventoryCount(doc))
}

// Cancel abandons the session without touching the ledger.
// POST /:id/cancel
func (h *InventoryCountHandler) Cancel(c *gin.Context) {
	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Cancel(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "count cancelled")
}

// RegisterRoutes registers inventory count routes.
func (h *InventoryCountHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/start", h.Start)
	rg.PUT("/:id/items/:lineId", h.RecordCount)
	rg.POST("/:id/complete", h.Complete)
	rg.POST("/:id/cancel", h.Cancel)
}
