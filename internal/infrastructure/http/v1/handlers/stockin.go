package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/id"
	"batchledger/internal/domain"
	"batchledger/internal/domain/documents/stockin"
	"batchledger/internal/infrastructure/http/v1/dto"
)

// StockInHandler handles HTTP requests for StockIn documents.
type StockInHandler struct {
	*BaseHandler
	service *stockin.Service
}

// NewStockInHandler creates a new stock-in handler.
func NewStockInHandler(base *BaseHandler, service *stockin.Service) *StockInHandler {
	return &StockInHandler{BaseHandler: base, service: service}
}

func (h *StockInHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateStockInRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if req.LockImmediately {
		err = h.service.LockAndSave(ctx, doc)
	} else {
		err = h.service.Create(ctx, doc)
	}
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromStockIn(doc))
}

func (h *StockInHandler) Get(c *gin.Context) {
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

	h.OK(c, dto.FromStockIn(doc))
}

func (h *StockInHandler) List(c *gin.Context) {
	filter := stockin.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.Query("orderBy")
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"

	if warehouseID := c.Query("warehouseId"); warehouseID != "" {
		filter.WarehouseID = &warehouseID
	}
	if supplierID := c.Query("supplierId"); supplierID != "" {
		filter.SupplierID = &supplierID
	}
	if docType := c.Query("type"); docType != "" {
		filter.Type = &docType
	}
	if locked := c.Query("isLocked"); locked != "" {
		val := locked == "true"
		filter.Locked = &val
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

	items := make([]*dto.StockInResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromStockIn(doc)
	}

	h.OK(c, dto.StockInListResponse{
		Items:      items,
		TotalCount: int(result.TotalCount),
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

func (h *StockInHandler) Delete(c *gin.Context) {
	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Lock applies the document to the ledger.
// POST /:id/lock
func (h *StockInHandler) Lock(c *gin.Context) {
	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Lock(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "document locked")
}

// Unlock reverses the document's ledger effects.
// POST /:id/unlock
func (h *StockInHandler) Unlock(c *gin.Context) {
	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Unlock(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "document unlocked")
}

// RegisterRoutes registers stock-in routes.
func (h *StockInHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/lock", h.Lock)
	rg.POST("/:id/unlock", h.Unlock)
}
