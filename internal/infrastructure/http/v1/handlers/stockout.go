package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/id"
	"batchledger/internal/domain"
	"batchledger/internal/domain/documents/stockout"
	"batchledger/internal/infrastructure/http/v1/dto"
)

// StockOutHandler handles HTTP requests for StockOut documents.
type StockOutHandler struct {
	*BaseHandler
	service *stockout.Service
}

// NewStockOutHandler creates a new stock-out handler.
func NewStockOutHandler(base *BaseHandler, service *stockout.Service) *StockOutHandler {
	return &StockOutHandler{BaseHandler: base, service: service}
}

func (h *StockOutHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateStockOutRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	if req.LockImmediately {
		if err := h.service.Lock(ctx, doc.ID); err != nil {
			h.Error(c, err)
			return
		}
		doc, err = h.service.GetByID(ctx, doc.ID)
		if err != nil {
			h.Error(c, err)
			return
		}
	}

	c.JSON(http.StatusCreated, dto.FromStockOut(doc))
}

func (h *StockOutHandler) Get(c *gin.Context) {
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

	h.OK(c, dto.FromStockOut(doc))
}

func (h *StockOutHandler) List(c *gin.Context) {
	filter := stockout.ListFilter{
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
	if customerID := c.Query("customerId"); customerID != "" {
		filter.CustomerID = &customerID
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

	items := make([]*dto.StockOutResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromStockOut(doc)
	}

	h.OK(c, dto.StockOutListResponse{
		Items:      items,
		TotalCount: int(result.TotalCount),
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

func (h *StockOutHandler) Delete(c *gin.Context) {
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

// Lock consumes stock; transfers also create the destination receipt.
// POST /:id/lock
func (h *StockOutHandler) Lock(c *gin.Context) {
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

// Unlock restores consumed stock.
// POST /:id/unlock
func (h *StockOutHandler) Unlock(c *gin.Context) {
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

// Preview shows what locking the document would consume.
// GET /:id/preview
func (h *StockOutHandler) Preview(c *gin.Context) {
	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	preview, err := h.service.Preview(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	resp := dto.FromTakes(preview.Takes)
	h.OK(c, resp)
}

// RegisterRoutes registers stock-out routes.
func (h *StockOutHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/lock", h.Lock)
	rg.POST("/:id/unlock", h.Unlock)
	rg.GET("/:id/preview", h.Preview)
}
