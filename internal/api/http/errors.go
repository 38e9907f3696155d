package httpapi

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/i474232898/road-watch/internal/roadcond"
	"github.com/i474232898/road-watch/internal/store"
	"github.com/i474232898/road-watch/internal/watch"
)

// ErrorHandler is the centralized Fiber error handler. It maps domain errors
// to status codes and renders {"error":true,"message":...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		log.WithFields(log.Fields{
			"method": c.Method(),
			"path":   c.Path(),
			"status": code,
		}).WithError(err).Warn("request failed")
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

func statusFor(err error) int {
	var fe *fiber.Error
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &ve),
		errors.Is(err, watch.ErrInvalidSelection),
		errors.Is(err, watch.ErrRangeRequired),
		errors.Is(err, store.ErrInvalidName):
		return fiber.StatusBadRequest
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, watch.ErrUnknownCity),
		errors.Is(err, roadcond.ErrEmptyBucket):
		return fiber.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, watch.ErrUpstream):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}
