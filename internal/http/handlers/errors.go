package handlers

import (
	"errors"

	"github.com/crowdfund-escrow/backend/internal/escrow"
	"github.com/crowdfund-escrow/backend/internal/http/dto"
	"github.com/crowdfund-escrow/backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// statusFor maps escrow error kinds to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, escrow.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, escrow.ErrAuthorization):
		return fiber.StatusForbidden
	case errors.Is(err, escrow.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, escrow.ErrState), errors.Is(err, escrow.ErrResource):
		return fiber.StatusConflict
	case errors.Is(err, escrow.ErrArithmetic):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err as the JSON error body. Domain errors expose their
// code and message, anything else is logged and hidden behind a 500.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	reqID := middleware.GetRequestID(c)
	status := statusFor(err)

	var domainErr *escrow.Error
	if status == fiber.StatusInternalServerError || !errors.As(err, &domainErr) {
		log.Error("request failed",
			zap.String("request_id", reqID),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error:     "internal server error",
			Code:      "internal",
			RequestID: reqID,
		})
	}

	if status == fiber.StatusConflict && errors.Is(err, escrow.ErrTransferFailed) {
		log.Warn("custodial transfer failed", zap.String("request_id", reqID), zap.Error(err))
	}
	return c.Status(status).JSON(dto.ErrorResponse{
		Error:     domainErr.Message,
		Code:      domainErr.Code,
		RequestID: reqID,
	})
}

func badRequest(c *fiber.Ctx, code, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error:     msg,
		Code:      code,
		RequestID: middleware.GetRequestID(c),
	})
}
