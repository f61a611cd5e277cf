// Package handler holds the gin handlers of the ledger API.
package handler

import (
	"errors"
	"net/http"

	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/erp/shopledger/internal/infrastructure/logger"
	"github.com/erp/shopledger/internal/interfaces/http/dto"
	"github.com/erp/shopledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct {
	logger *zap.Logger
}

func newBaseHandler(l *zap.Logger) BaseHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return BaseHandler{logger: l}
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, code, message string) {
	h.Error(c, http.StatusBadRequest, code, message)
}

// HandleError converts an error returned by a ledger service into a response.
// Domain errors are mapped by code, then kind; anything else is logged and
// reported as a generic 500 so internals never leak to the client.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) || domainErr.Kind == shared.KindInternal {
		logger.L(c.Request.Context(), h.logger).Error("request failed",
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
		return
	}

	code := dto.NormalizeErrorCode(domainErr.Code)
	status := dto.StatusFor(domainErr.Kind, code)
	if domainErr.Kind == shared.KindConflict {
		logger.L(c.Request.Context(), h.logger).Warn("write conflict",
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
	}
	h.Error(c, status, code, domainErr.Message)
}

// bindJSON binds the body into req, answering 400 on failure
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.FormatValidationErrors(err, middleware.GetRequestID(c)))
		return false
	}
	return true
}

// bindQuery binds the query string into req, answering 400 on failure
func (h *BaseHandler) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.FormatValidationErrors(err, middleware.GetRequestID(c)))
		return false
	}
	return true
}

// pathID parses the :id path parameter, answering 400 when it is not a UUID
func (h *BaseHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, dto.ErrCodeInvalidID, "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
