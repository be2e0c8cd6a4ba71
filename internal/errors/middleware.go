package errors

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/reputrack/creditledger/internal/constants"
	"github.com/reputrack/creditledger/internal/service"
)

func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var serviceErr service.Error
		if errors.As(err, &serviceErr) {
			return handleServiceError(c, serviceErr)
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal server error",
			"message": "Could not process the request",
		})
	}
}

func handleServiceError(c *fiber.Ctx, err service.Error) error {
	statusMap := map[string]int{
		constants.ErrCodeValidationFailed:    fiber.StatusBadRequest,
		constants.ErrCodeUserNotFound:        fiber.StatusNotFound,
		constants.ErrCodeInsufficientBalance: fiber.StatusBadRequest,
		constants.ErrCodeLockTimeout:         fiber.StatusConflict,
		constants.ErrCodeStorageFailed:       fiber.StatusServiceUnavailable,
		constants.ErrCodeDataIntegrity:       fiber.StatusInternalServerError,
		constants.ErrCodeOperationFailed:     fiber.StatusInternalServerError,
	}

	status, ok := statusMap[err.Code]
	if !ok {
		status = fiber.StatusInternalServerError
	}

	body := fiber.Map{
		"code":    err.Code,
		"message": constants.GetErrorMessage(err.Code),
	}

	// Insufficient-balance rejections tell the caller what was available so
	// clients can size a retry without another round trip.
	var insufficientErr service.InsufficientBalanceError
	if errors.As(err, &insufficientErr) {
		body["available"] = insufficientErr.Available
		body["requested"] = insufficientErr.Requested
	}

	return c.Status(status).JSON(body)
}
