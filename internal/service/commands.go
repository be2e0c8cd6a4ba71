package service

import (
	"time"

	"github.com/reputrack/creditledger/internal/model"
)

type GrantCommand struct {
	UserID         string
	Amount         int64
	Reason         string
	Source         string
	IdempotencyKey string
}

type GrantResult struct {
	Transaction model.Transaction `json:"transaction"`
	Balance     int64             `json:"balance"`
	Replayed    bool              `json:"-"`
}

type ConsumeCommand struct {
	UserID         string
	Amount         int64
	Reason         string
	IdempotencyKey string
}

type ConsumeResult struct {
	Transaction model.Transaction `json:"transaction"`
	Balance     int64             `json:"balance"`
	Replayed    bool              `json:"-"`
}

type HistoryEntry struct {
	Transaction    model.Transaction `json:"transaction"`
	RunningBalance int64             `json:"running_balance"`
}

type ReconcileResult struct {
	UserID   string `json:"user_id"`
	Cached   int64  `json:"cached"`
	Computed int64  `json:"computed"`
	Rebuilt  bool   `json:"rebuilt"`
}

type BucketSummary struct {
	BucketStart time.Time `json:"bucket_start"`
	Assigned    int64     `json:"assigned"`
	Consumed    int64     `json:"consumed"`
	Net         int64     `json:"net"`
}

type ConsumerRank struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	Consumed int64  `json:"consumed"`
}
