package publishers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/reputrack/creditledger/internal/model"
	"github.com/reputrack/creditledger/pkg/mq"
	"go.uber.org/zap"
)

const QueueLedgerTransactions = "ledger.transactions"

type TransactionEvent struct {
	TransactionID string       `json:"transaction_id"`
	UserID        string       `json:"user_id"`
	Amount        int64        `json:"amount"`
	Kind          model.TxKind `json:"kind"`
	Reason        string       `json:"reason"`
	Source        string       `json:"source,omitempty"`
	Sequence      int64        `json:"sequence"`
	Balance       int64        `json:"balance"`
	CommittedAt   time.Time    `json:"committed_at"`
}

// LedgerPublisher feeds committed transactions to the analytics pipeline.
// Publishing is best-effort: a broker failure is logged and never fails the
// request that produced the transaction.
type LedgerPublisher interface {
	PublishCommitted(ctx context.Context, tx model.Transaction, balance int64)
}

type ledgerPublisher struct {
	publisher mq.Publisher
	logger    *zap.Logger
}

func NewLedgerPublisher(publisher mq.Publisher, logger *zap.Logger) LedgerPublisher {
	return &ledgerPublisher{publisher: publisher, logger: logger}
}

func (p *ledgerPublisher) PublishCommitted(ctx context.Context, tx model.Transaction, balance int64) {
	event := TransactionEvent{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Amount:        tx.Amount,
		Kind:          tx.Kind,
		Reason:        tx.Reason,
		Source:        tx.Source,
		Sequence:      tx.Sequence,
		Balance:       balance,
		CommittedAt:   tx.CreatedAt,
	}

	body, _ := json.Marshal(event)
	if err := p.publisher.Publish(ctx, "", QueueLedgerTransactions, body); err != nil {
		p.logger.Error("Failed to publish ledger event",
			zap.Error(err),
			zap.String("transaction_id", tx.ID),
			zap.String("user_id", tx.UserID))
	}
}
