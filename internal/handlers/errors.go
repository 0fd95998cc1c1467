package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/dto"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/query"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/retention"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/store"
)

var errInvalidBody = errors.New("invalid request body")

// fail maps service errors onto HTTP responses. Unexpected errors are
// logged and answered with a generic 500 carrying msg.
func fail(c *fiber.Ctx, err error, msg string) error {
	var verr *query.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Error: true, Message: verr.Message, Field: verr.Field,
		})
	case errors.Is(err, errInvalidBody):
		return badRequest(c, "Invalid request body")
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrPresetMissing):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, store.ErrInvalidStatus), errors.Is(err, retention.ErrInvalidDays):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}

	slog.ErrorContext(c.UserContext(), msg, "error", err, "path", c.Path())
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Message: msg,
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: msg,
	})
}

// decode parses a JSON request body and checks its validate tags.
func decode(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return errInvalidBody
	}
	return query.ValidateStruct(out)
}
