package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/reputrack/creditledger/internal/model"
	"gorm.io/gorm"
)

var (
	ErrTransactionExisted = errors.New("TRANSACTION_EXISTED")
	ErrSequenceConflict   = errors.New("SEQUENCE_CONFLICT")
)

// Grants take no per-user lock, so two concurrent appends can compute the
// same next sequence. The losing insert hits uq_transactions_user_seq and is
// retried with a fresh sequence.
const appendRetries = 3

type ListFilter struct {
	Kind          *model.TxKind
	From          *time.Time
	To            *time.Time
	AfterSequence int64
	Limit         int
}

type ConsumerTotal struct {
	UserID   string `gorm:"column:user_id" json:"user_id"`
	Consumed int64  `gorm:"column:consumed" json:"consumed"`
}

// LedgerRepository persists the append-only transaction log. There is no
// update or delete on purpose: committed rows are immutable.
type LedgerRepository interface {
	Append(ctx context.Context, tx *model.Transaction) error
	FindByIdempotencyKey(userID, key string) (*model.Transaction, error)
	ListByUser(userID string, filter ListFilter) ([]model.Transaction, error)
	FoldBalance(userID string, until *time.Time) (int64, error)
	FoldBalanceThroughSequence(userID string, sequence int64) (int64, error)
	MaxSequence(userID string) (int64, error)
	StreamRange(userID string, from, to time.Time, fn func(model.Transaction) error) error
	TopConsumers(from, to time.Time, limit int) ([]ConsumerTotal, error)
}

type ledger struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledger{db: db}
}

func (l *ledger) Append(ctx context.Context, tx *model.Transaction) error {
	db := GetTx(ctx, l.db)

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		seq, err := l.nextSequence(db, tx.UserID)
		if err != nil {
			return err
		}
		tx.Sequence = seq

		err = db.Create(tx).Error
		if err == nil {
			return nil
		}

		lastErr = classifyDuplicate(err)
		if !errors.Is(lastErr, ErrSequenceConflict) {
			return lastErr
		}
	}

	return lastErr
}

func (l *ledger) nextSequence(db *gorm.DB, userID string) (int64, error) {
	max, err := maxSequence(db, userID)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

func maxSequence(db *gorm.DB, userID string) (int64, error) {
	var max int64
	err := db.Model(&model.Transaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&max).Error
	return max, err
}

func classifyDuplicate(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		if strings.Contains(mysqlErr.Message, "uq_transactions_user_idem") {
			return ErrTransactionExisted
		}
		return ErrSequenceConflict
	}
	return err
}

func (l *ledger) FindByIdempotencyKey(userID, key string) (*model.Transaction, error) {
	var tx model.Transaction
	err := l.db.Where("user_id = ? AND idempotency_key = ?", userID, key).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (l *ledger) ListByUser(userID string, filter ListFilter) ([]model.Transaction, error) {
	q := l.db.Where("user_id = ?", userID)
	if filter.Kind != nil {
		q = q.Where("kind = ?", *filter.Kind)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}
	if filter.AfterSequence > 0 {
		q = q.Where("sequence > ?", filter.AfterSequence)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var out []model.Transaction
	err := q.Order("created_at ASC, sequence ASC").Find(&out).Error
	return out, err
}

func (l *ledger) FoldBalance(userID string, until *time.Time) (int64, error) {
	q := l.db.Model(&model.Transaction{}).Where("user_id = ?", userID)
	if until != nil {
		q = q.Where("created_at <= ?", *until)
	}

	var balance int64
	err := q.Select("COALESCE(SUM(CASE WHEN kind = ? THEN amount ELSE -amount END), 0)", model.TxKindAssignment).
		Scan(&balance).Error
	return balance, err
}

// FoldBalanceThroughSequence reproduces the balance a caller saw right after
// the transaction with the given sequence committed. Used for idempotent
// replays so a retried request gets the original response back.
func (l *ledger) FoldBalanceThroughSequence(userID string, sequence int64) (int64, error) {
	var balance int64
	err := l.db.Model(&model.Transaction{}).
		Where("user_id = ? AND sequence <= ?", userID, sequence).
		Select("COALESCE(SUM(CASE WHEN kind = ? THEN amount ELSE -amount END), 0)", model.TxKindAssignment).
		Scan(&balance).Error
	return balance, err
}

func (l *ledger) MaxSequence(userID string) (int64, error) {
	return maxSequence(l.db, userID)
}

func (l *ledger) StreamRange(userID string, from, to time.Time, fn func(model.Transaction) error) error {
	q := l.db.Model(&model.Transaction{}).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Order("created_at ASC, sequence ASC")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}

	rows, err := q.Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tx model.Transaction
		if err := l.db.ScanRows(rows, &tx); err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (l *ledger) TopConsumers(from, to time.Time, limit int) ([]ConsumerTotal, error) {
	var out []ConsumerTotal
	err := l.db.Model(&model.Transaction{}).
		Select("user_id, SUM(amount) AS consumed").
		Where("kind = ? AND created_at >= ? AND created_at <= ?", model.TxKindConsumption, from, to).
		Group("user_id").
		Order("consumed DESC, user_id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
