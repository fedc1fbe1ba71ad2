// services/errors.go
package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Every rejected operation fails with one of these kinds, so calling layers
// can render a precise message. The propagation policy is "fail the whole
// operation, mutate nothing": a returned error means no state was written and
// no value moved.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidAmount    = errors.New("reward amount must be positive")
	ErrInvalidDeadline  = errors.New("deadline must be strictly in the future")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("caller lacks the required role")
	ErrInvalidState     = errors.New("operation not valid for current bounty status")
	ErrExpired          = errors.New("bounty deadline has passed")
	ErrAlreadySubmitted = errors.New("a hunter is already assigned to this bounty")
	ErrSeverityTooLow   = errors.New("assessed severity is below the bounty minimum")
	ErrNoHunterAssigned = errors.New("no hunter assigned")
	ErrTransferFailed   = errors.New("ledger transfer failed")
)

// errorCodes are the machine-readable kinds exposed on the wire.
var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{ErrInvalidInput, "INVALID_INPUT", fiber.StatusBadRequest},
	{ErrInvalidAmount, "INVALID_AMOUNT", fiber.StatusBadRequest},
	{ErrInvalidDeadline, "INVALID_DEADLINE", fiber.StatusBadRequest},
	{ErrNotFound, "NOT_FOUND", fiber.StatusNotFound},
	{ErrForbidden, "FORBIDDEN", fiber.StatusForbidden},
	{ErrInvalidState, "INVALID_STATE", fiber.StatusConflict},
	{ErrExpired, "EXPIRED", fiber.StatusConflict},
	{ErrAlreadySubmitted, "ALREADY_SUBMITTED", fiber.StatusConflict},
	{ErrSeverityTooLow, "SEVERITY_TOO_LOW", fiber.StatusUnprocessableEntity},
	{ErrNoHunterAssigned, "NO_HUNTER_ASSIGNED", fiber.StatusConflict},
	{ErrTransferFailed, "TRANSFER_FAILED", fiber.StatusBadGateway},
}

// ErrorCode returns the wire code for a typed error, or "INTERNAL".
func ErrorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "INTERNAL"
}

// errorResponse renders a typed operation error as JSON. Unknown errors are
// deliberately not echoed back to the client.
func errorResponse(c *fiber.Ctx, err error) error {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return c.Status(e.status).JSON(fiber.Map{
				"error": err.Error(),
				"code":  e.code,
			})
		}
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal error",
		"code":  "INTERNAL",
	})
}
