package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"batchledger/internal/core/apperror"
	"batchledger/internal/core/id"
	"batchledger/internal/domain"
	"batchledger/internal/domain/documents/adjustment"
	"batchledger/internal/infrastructure/http/v1/dto"
)

// AdjustmentHandler handles HTTP requests for Adjustment documents.
type AdjustmentHandler struct {
	*BaseHandler
	service *adjustment.Service
}

// NewAdjustmentHandler creates a new adjustment handler.
func NewAdjustmentHandler(base *BaseHandler, service *adjustment.Service) *AdjustmentHandler {
	return &AdjustmentHandler{BaseHandler: base, service: service}
}

func (h *AdjustmentHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateAdjustmentRequest
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

	c.JSON(http.StatusCreated, dto.FromAdjustment(doc))
}

func (h *AdjustmentHandler) Get(c *gin.Context) {
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

	h.OK(c, dto.FromAdjustment(doc))
}

func (h *AdjustmentHandler) List(c *gin.Context) {
	filter := adjustment.ListFilter{
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
	if docType := c.Query("type"); docType != "" {
		filter.Type = &docType
	}
	if countID := c.Query("countId"); countID != "" {
		if parsed, err := id.Parse(countID); err == nil {
			filter.CountID = &parsed
		}
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

	items := make([]*dto.AdjustmentResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromAdjustment(doc)
	}

	h.OK(c, dto.AdjustmentListResponse{
		Items:      items,
		TotalCount: int(result.TotalCount),
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

func (h *AdjustmentHandler) Delete(c *gin.Context) {
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

// Lock applies increases and decreases to the ledger atomically.
// POST /:id/lock
func (h *AdjustmentHandler) Lock(c *gin.Context) {
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

// Unlock reverses the adjustment's ledger effects.
// POST /:id/unlock
func (h *AdjustmentHandler) Unlock(c *gin.Context) {
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

// RegisterRoutes registers adjustment routes.
func (h *AdjustmentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/lock", h.Lock)
	rg.POST("/:id/unlock", h.Unlock)
}
