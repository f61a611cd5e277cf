package handler

import (
	"context"
	"net/http"

	"github.com/erp/shopledger/internal/application/ledger"
	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/erp/shopledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader lets a till retry a payment without recording it twice
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLength = 128

// RecoveryHandler handles recovery endpoints and the ledger views
type RecoveryHandler struct {
	BaseHandler
	recoveryService  *ledger.RecoveryService
	queryService     *ledger.QueryService
	migrationService *ledger.MigrationService
}

// NewRecoveryHandler creates a new RecoveryHandler
func NewRecoveryHandler(
	recoveryService *ledger.RecoveryService,
	queryService *ledger.QueryService,
	migrationService *ledger.MigrationService,
	logger *zap.Logger,
) *RecoveryHandler {
	return &RecoveryHandler{
		BaseHandler:      newBaseHandler(logger),
		recoveryService:  recoveryService,
		queryService:     queryService,
		migrationService: migrationService,
	}
}

// AddRecovery records a payment against a sale
// POST /recoveries
func (h *RecoveryHandler) AddRecovery(c *gin.Context) {
	var req ledger.AddRecoveryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)
	if len(req.IdempotencyKey) > maxIdempotencyKeyLength {
		h.BadRequest(c, dto.ErrCodeBadRequest, "Idempotency-Key is too long")
		return
	}

	result, err := h.recoveryService.AddRecovery(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Replayed {
		h.Success(c, result)
		return
	}
	h.Created(c, result)
}

// UpdateRecoveryStatus confirms, parks or cancels a recovery
// PATCH /recoveries/:id/status
func (h *RecoveryHandler) UpdateRecoveryStatus(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req ledger.UpdateRecoveryStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.recoveryService.UpdateRecoveryStatus(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ListOutstanding lists sales that still carry a balance
// GET /recoveries/outstanding?customer_id=&page=&limit=
func (h *RecoveryHandler) ListOutstanding(c *gin.Context) {
	h.list(c, h.queryService.ListOutstanding)
}

// ListOverdue lists sales with a balance past their due date
// GET /recoveries/overdue
func (h *RecoveryHandler) ListOverdue(c *gin.Context) {
	h.list(c, h.queryService.ListOverdue)
}

// ListFullyPaid lists settled sales
// GET /recoveries/fully-paid
func (h *RecoveryHandler) ListFullyPaid(c *gin.Context) {
	h.list(c, h.queryService.ListFullyPaid)
}

type listFunc func(context.Context, ledger.ListFilter) (shared.Page[ledger.SaleResponse], error)

func (h *RecoveryHandler) list(c *gin.Context, fn listFunc) {
	var filter ledger.ListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	if raw := c.Query("customer_id"); raw != "" {
		customerID, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, dto.ErrCodeInvalidID, "customer_id must be a UUID")
			return
		}
		filter.CustomerID = &customerID
	}

	page, err := fn(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPageResponse(page))
}

// GetCustomerSummary aggregates one customer's ledger
// GET /recoveries/customers/:id/summary
func (h *RecoveryHandler) GetCustomerSummary(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	summary, err := h.queryService.GetCustomerRecoverySummary(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// GetDashboard returns the shop-wide ledger overview
// GET /recoveries/dashboard
func (h *RecoveryHandler) GetDashboard(c *gin.Context) {
	summary, err := h.queryService.GetDashboardSummary(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// MigrateExistingSales backfills the ledger columns of legacy sales
// POST /recoveries/migrate
func (h *RecoveryHandler) MigrateExistingSales(c *gin.Context) {
	result, err := h.migrationService.MigrateExistingSales(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RefreshOverdue persists the overdue status of sales past their due date
// POST /recoveries/refresh-overdue
func (h *RecoveryHandler) RefreshOverdue(c *gin.Context) {
	result, err := h.migrationService.RefreshOverdueStatuses(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
