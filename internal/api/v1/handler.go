package v1

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/reputrack/creditledger/internal/api/contract"
	"github.com/reputrack/creditledger/internal/api/validator"
	"github.com/reputrack/creditledger/internal/constants"
	"github.com/reputrack/creditledger/internal/service"
	"go.uber.org/zap"
)

const maxHistoryLimit = 500

type Handler struct {
	logger       *zap.Logger
	assignments  service.AssignmentService
	consumptions service.ConsumptionService
	balances     service.BalanceService
	reports      service.ReportService
	XValidator   validator.IXValidator
}

func NewHandler(logger *zap.Logger, assignments service.AssignmentService,
	consumptions service.ConsumptionService, balances service.BalanceService,
	reports service.ReportService, XValidator validator.IXValidator) *Handler {
	return &Handler{
		logger:       logger,
		assignments:  assignments,
		consumptions: consumptions,
		balances:     balances,
		reports:      reports,
		XValidator:   XValidator,
	}
}

func (h *Handler) Pong(c *fiber.Ctx) error {
	return c.SendString("pong")
}

func (h *Handler) Grant(c *fiber.Ctx) error {
	var handlerRequest GrantRequest

	responseError := h.XValidator.Validator(&handlerRequest, constants.MessageErrorFormat, c)
	if responseError.Code != "" {
		h.logger.Error("Error Validator", zap.Any("request", handlerRequest))
		return c.JSON(responseError)
	}

	cmd := service.GrantCommand{
		UserID:         handlerRequest.UserID,
		Amount:         handlerRequest.Amount,
		Reason:         handlerRequest.Reason,
		Source:         handlerRequest.Source,
		IdempotencyKey: handlerRequest.IdempotencyKey,
	}

	result, err := h.assignments.Grant(c.UserContext(), cmd)
	if err != nil {
		return err
	}

	status := fiber.StatusCreated
	if result.Replayed {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(contract.Response{
		Successful: true,
		Code:       "success",
		Message:    "credits granted",
		Result:     result,
	})
}

func (h *Handler) Consume(c *fiber.Ctx) error {
	var handlerRequest ConsumeRequest

	responseError := h.XValidator.Validator(&handlerRequest, constants.MessageErrorFormat, c)
	if responseError.Code != "" {
		h.logger.Error("Error Validator", zap.Any("request", handlerRequest))
		return c.JSON(responseError)
	}

	cmd := service.ConsumeCommand{
		UserID:         handlerRequest.UserID,
		Amount:         handlerRequest.Amount,
		Reason:         handlerRequest.Reason,
		IdempotencyKey: handlerRequest.IdempotencyKey,
	}

	result, err := h.consumptions.RequestConsumption(c.UserContext(), cmd)
	if err != nil {
		return err
	}

	status := fiber.StatusCreated
	if result.Replayed {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(contract.Response{
		Successful: true,
		Code:       "success",
		Message:    "credits consumed",
		Result:     result,
	})
}

func (h *Handler) GetBalance(c *fiber.Ctx) error {
	userID := c.Params("userID")
	if userID == "" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(contract.ResponseError{
			Code:    constants.ErrCodeValidationFailed,
			Message: "user id is required",
		})
	}

	// ?at= returns the balance as of that instant instead of the current one.
	if at := c.Query("at"); at != "" {
		t, err := parseTime(at)
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(contract.ResponseError{
				Code:    constants.ErrCodeValidationFailed,
				Message: "invalid 'at' timestamp",
			})
		}

		balance, err := h.balances.At(userID, t)
		if err != nil {
			return err
		}

		return c.JSON(contract.Response{
			Successful: true,
			Code:       "success",
			Result:     fiber.Map{"user_id": userID, "balance": balance, "at": t.UTC()},
		})
	}

	balance, err := h.balances.Current(userID)
	if err != nil {
		return err
	}

	return c.JSON(contract.Response{
		Successful: true,
		Code:       "success",
		Result:     fiber.Map{"user_id": userID, "balance": balance},
	})
}

func (h *Handler) GetHistory(c *fiber.Ctx) error {
	userID := c.Params("userID")
	if userID == "" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(contract.ResponseError{
			Code:    constants.ErrCodeValidationFailed,
			Message: "user id is required",
		})
	}

	limit := c.QueryInt("limit", maxHistoryLimit)
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := h.balances.History(userID, limit)
	if err != nil {
		return err
	}

	// Running balances accumulate oldest-first; newest-first is presentation
	// only.
	if c.Query("order") == "desc" {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}

	return c.JSON(contract.Response{
		Successful: true,
		Code:       "success",
		Result:     entries,
	})
}

func (h *Handler) GetSummary(c *fiber.Ctx) error {
	from, to, ok := h.parseRange(c)
	if !ok {
		return nil
	}

	series, err := h.reports.Summarize(c.Query("user_id"), service.Bucket(c.Query("bucket", "day")), from, to)
	if err != nil {
		return err
	}

	return c.JSON(contract.Response{
		Successful: true,
		Code:       "success",
		Result:     series,
	})
}

func (h *Handler) GetTopConsumers(c *fiber.Ctx) error {
	from, to, ok := h.parseRange(c)
	if !ok {
		return nil
	}

	ranks, err := h.reports.TopConsumers(from, to, c.QueryInt("limit", 10))
	if err != nil {
		return err
	}

	return c.JSON(contract.Response{
		Successful: true,
		Code:       "success",
		Result:     ranks,
	})
}

func (h *Handler) parseRange(c *fiber.Ctx) (time.Time, time.Time, bool) {
	from, errFrom := parseTime(c.Query("from"))
	to, errTo := parseTime(c.Query("to"))
	if errFrom != nil || errTo != nil {
		_ = c.Status(fiber.StatusUnprocessableEntity).JSON(contract.ResponseError{
			Code:    constants.ErrCodeValidationFailed,
			Message: "'from' and 'to' must be RFC3339 timestamps or YYYY-MM-DD dates",
		})
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}
