package service

import (
	"fmt"
	"time"

	"github.com/reputrack/creditledger/internal/constants"
	"github.com/reputrack/creditledger/internal/model"
	"github.com/reputrack/creditledger/internal/repository"
	"go.uber.org/zap"
)

type Bucket string

const (
	BucketDay   Bucket = "day"
	BucketWeek  Bucket = "week"
	BucketMonth Bucket = "month"
)

// ReportService aggregates the log for dashboards. It only reads committed,
// immutable rows, so it never touches the per-user lock.
type ReportService interface {
	Summarize(userID string, bucket Bucket, from, to time.Time) ([]BucketSummary, error)
	TopConsumers(from, to time.Time, limit int) ([]ConsumerRank, error)
}

type reportService struct {
	ledger repository.LedgerRepository
	log    *zap.Logger
}

func NewReportService(ledger repository.LedgerRepository, log *zap.Logger) ReportService {
	return &reportService{ledger: ledger, log: log}
}

// Summarize buckets assignments and consumptions between from and to. An
// empty userID aggregates across all users. Only buckets with activity are
// emitted, oldest first.
func (s *reportService) Summarize(userID string, bucket Bucket, from, to time.Time) ([]BucketSummary, error) {
	if bucket != BucketDay && bucket != BucketWeek && bucket != BucketMonth {
		return nil, NewServiceError(constants.ErrCodeValidationFailed,
			fmt.Errorf("unknown bucket %q", bucket))
	}
	if to.Before(from) {
		return nil, NewServiceError(constants.ErrCodeValidationFailed,
			fmt.Errorf("range end %s precedes start %s", to.Format(time.RFC3339), from.Format(time.RFC3339)))
	}

	var series []BucketSummary
	err := s.ledger.StreamRange(userID, from, to, func(tx model.Transaction) error {
		start := bucketStart(tx.CreatedAt, bucket)

		if len(series) == 0 || !series[len(series)-1].BucketStart.Equal(start) {
			series = append(series, BucketSummary{BucketStart: start})
		}

		current := &series[len(series)-1]
		switch tx.Kind {
		case model.TxKindAssignment:
			current.Assigned += tx.Amount
		case model.TxKindConsumption:
			current.Consumed += tx.Amount
		}
		current.Net = current.Assigned - current.Consumed
		return nil
	})
	if err != nil {
		return nil, NewServiceError(constants.ErrCodeStorageFailed, err)
	}

	return series, nil
}

func (s *reportService) TopConsumers(from, to time.Time, limit int) ([]ConsumerRank, error) {
	if limit <= 0 {
		limit = 10
	}

	totals, err := s.ledger.TopConsumers(from, to, limit)
	if err != nil {
		return nil, NewServiceError(constants.ErrCodeStorageFailed, err)
	}

	ranks := make([]ConsumerRank, 0, len(totals))
	for i, t := range totals {
		ranks = append(ranks, ConsumerRank{Rank: i + 1, UserID: t.UserID, Consumed: t.Consumed})
	}
	return ranks, nil
}

// bucketStart truncates t to its UTC bucket boundary. Weeks start on Monday.
func bucketStart(t time.Time, bucket Bucket) time.Time {
	t = t.UTC()
	switch bucket {
	case BucketWeek:
		offset := (int(t.Weekday()) + 6) % 7
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return start.AddDate(0, 0, -offset)
	case BucketMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}
