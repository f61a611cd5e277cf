package handler

import (
	"github.com/erp/shopledger/internal/application/ledger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SaleHandler handles sale endpoints
type SaleHandler struct {
	BaseHandler
	saleService  *ledger.SaleService
	queryService *ledger.QueryService
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(saleService *ledger.SaleService, queryService *ledger.QueryService, logger *zap.Logger) *SaleHandler {
	return &SaleHandler{
		BaseHandler:  newBaseHandler(logger),
		saleService:  saleService,
		queryService: queryService,
	}
}

// CreateSale records a sale and its opening ledger state
// POST /sales
func (h *SaleHandler) CreateSale(c *gin.Context) {
	var req ledger.CreateSaleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	sale, err := h.saleService.CreateSale(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, sale)
}

// GetSale returns a sale with its effective ledger state
// GET /sales/:id
func (h *SaleHandler) GetSale(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	sale, err := h.saleService.GetSale(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sale)
}

// UpdateSaleNotes replaces the notes of a sale; amounts are never touched
// PATCH /sales/:id/notes
func (h *SaleHandler) UpdateSaleNotes(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req ledger.UpdateSaleNotesRequest
	if !h.bindJSON(c, &req) {
		return
	}

	sale, err := h.saleService.UpdateSaleNotes(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sale)
}

// GetRecoveryHistory returns a sale with every recovery against it
// GET /sales/:id/recoveries
func (h *SaleHandler) GetRecoveryHistory(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	history, err := h.queryService.GetSaleRecoveryHistory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, history)
}
