package consumers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/reputrack/creditledger/internal/constants"
	"github.com/reputrack/creditledger/internal/model"
	"github.com/reputrack/creditledger/internal/service"
	"github.com/reputrack/creditledger/pkg/mq"
	"go.uber.org/zap"
)

const QueuePaymentsConfirmed = "payments.confirmed"

// PaymentConfirmedMessage is what the payment processor's webhook bridge
// publishes once a payment settles.
type PaymentConfirmedMessage struct {
	PaymentID string `json:"payment_id"`
	UserID    string `json:"user_id"`
	Credits   int64  `json:"credits"`
}

type PaymentConsumer interface {
	Consume(ctx context.Context) error
}

type paymentConsumer struct {
	assignments service.AssignmentService
	consumer    mq.Consumer
	logger      *zap.Logger
}

func NewPaymentConsumer(assignments service.AssignmentService, consumer mq.Consumer, logger *zap.Logger) PaymentConsumer {
	return &paymentConsumer{assignments: assignments, consumer: consumer, logger: logger}
}

func (p *paymentConsumer) Consume(ctx context.Context) error {
	return p.consumer.Consume(ctx, 1, QueuePaymentsConfirmed, p.handleMessage)
}

func (p *paymentConsumer) handleMessage(ctx context.Context, body []byte) error {
	var msg PaymentConfirmedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		p.logger.Warn("invalid payment confirmation", zap.Error(err))
		return err
	}

	cmd := service.GrantCommand{
		UserID: msg.UserID,
		Amount: msg.Credits,
		Reason: "payment confirmation",
		Source: model.SourcePayment,
		// The payment ID doubles as the idempotency key, so redelivery of the
		// same confirmation grants at most once.
		IdempotencyKey: "payment:" + msg.PaymentID,
	}

	result, err := p.assignments.Grant(ctx, cmd)
	if err != nil {
		var serviceErr service.Error
		if errors.As(err, &serviceErr) && serviceErr.Code == constants.ErrCodeStorageFailed {
			return mq.Temporary(err)
		}

		p.logger.Error("dropping payment confirmation",
			zap.String("payment_id", msg.PaymentID),
			zap.String("user_id", msg.UserID),
			zap.Error(err),
		)
		return err
	}

	p.logger.Info("payment credited",
		zap.String("payment_id", msg.PaymentID),
		zap.String("user_id", msg.UserID),
		zap.Int64("credits", msg.Credits),
		zap.Bool("replayed", result.Replayed),
	)
	return nil
}
