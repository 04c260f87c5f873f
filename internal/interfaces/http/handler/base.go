package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/revalya/tenantaccess/internal/application/access"
	"github.com/revalya/tenantaccess/internal/domain/shared"
	"github.com/revalya/tenantaccess/internal/infrastructure/logger"
	"github.com/revalya/tenantaccess/internal/interfaces/http/dto"
	"github.com/revalya/tenantaccess/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

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

// BadRequest sends a 400 validation error response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, message)
}

// Denied sends a 403 response for a denied access decision
func (h *BaseHandler) Denied(c *gin.Context, d access.Decision) {
	h.Error(c, http.StatusForbidden, dto.ErrCodeAccessDenied, "access denied: "+d.Reason)
}

// HandleError converts domain and access errors to HTTP responses.
// Unknown errors answer 500 without leaking their message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	code := dto.ErrCodeInternal
	message := "An unexpected error occurred"

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code = dto.NormalizeErrorCode(domainErr.Code)
		message = domainErr.Message
	}

	status := dto.GetHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		logger.L(c.Request.Context()).Error("request failed",
			zap.String("code", code),
			zap.Error(err))
	}
	_ = c.Error(err)
	h.Error(c, status, code, message)
}
