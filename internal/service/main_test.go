package service_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/reputrack/creditledger/internal/metrics"
	"github.com/reputrack/creditledger/internal/model"
	"github.com/reputrack/creditledger/internal/repository"
	"gorm.io/gorm"
)

// promauto registers against the global registry, so the package shares one
// instance across tests.
var testMetrics = metrics.NewMetrics()

// memoryLedger is a stateful in-memory LedgerRepository for the tests that
// exercise real interleavings (concurrent consumption, idempotent replay
// races) where canned mock returns would hide the behavior under test.
type memoryLedger struct {
	mu   sync.Mutex
	seq  map[string]int64
	txs  []model.Transaction
	next int
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{seq: make(map[string]int64)}
}

func (l *memoryLedger) Append(_ context.Context, tx *model.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tx.IdempotencyKey != nil {
		for _, existing := range l.txs {
			if existing.UserID == tx.UserID && existing.IdempotencyKey != nil &&
				*existing.IdempotencyKey == *tx.IdempotencyKey {
				return repository.ErrTransactionExisted
			}
		}
	}

	l.seq[tx.UserID]++
	tx.Sequence = l.seq[tx.UserID]
	if tx.ID == "" {
		l.next++
		tx.ID = fmt.Sprintf("tx-%d", l.next)
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	l.txs = append(l.txs, *tx)
	return nil
}

func (l *memoryLedger) FindByIdempotencyKey(userID, key string) (*model.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, tx := range l.txs {
		if tx.UserID == userID && tx.IdempotencyKey != nil && *tx.IdempotencyKey == key {
			found := tx
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (l *memoryLedger) ListByUser(userID string, filter repository.ListFilter) ([]model.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []model.Transaction
	for _, tx := range l.txs {
		if tx.UserID != userID {
			continue
		}
		if filter.Kind != nil && tx.Kind != *filter.Kind {
			continue
		}
		out = append(out, tx)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (l *memoryLedger) FoldBalance(userID string, until *time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var balance int64
	for _, tx := range l.txs {
		if tx.UserID != userID {
			continue
		}
		if until != nil && tx.CreatedAt.After(*until) {
			continue
		}
		balance += tx.SignedAmount()
	}
	return balance, nil
}

func (l *memoryLedger) FoldBalanceThroughSequence(userID string, sequence int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var balance int64
	for _, tx := range l.txs {
		if tx.UserID == userID && tx.Sequence <= sequence {
			balance += tx.SignedAmount()
		}
	}
	return balance, nil
}

func (l *memoryLedger) MaxSequence(userID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq[userID], nil
}

func (l *memoryLedger) StreamRange(userID string, from, to time.Time, fn func(model.Transaction) error) error {
	l.mu.Lock()
	txs := make([]model.Transaction, len(l.txs))
	copy(txs, l.txs)
	l.mu.Unlock()

	for _, tx := range txs {
		if userID != "" && tx.UserID != userID {
			continue
		}
		if tx.CreatedAt.Before(from) || tx.CreatedAt.After(to) {
			continue
		}
		if err := fn(tx); err != nil {
			return err
		}
	}
	return nil
}

func (l *memoryLedger) TopConsumers(from, to time.Time, limit int) ([]repository.ConsumerTotal, error) {
	return nil, errors.New("not implemented")
}

type memoryCache struct {
	mu   sync.Mutex
	rows map[string]model.BalanceCache
}

func newMemoryCache() *memoryCache {
	return &memoryCache{rows: make(map[string]model.BalanceCache)}
}

func (c *memoryCache) Get(userID string) (model.BalanceCache, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	row, ok := c.rows[userID]
	if !ok {
		return model.BalanceCache{}, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (c *memoryCache) Apply(_ context.Context, userID string, delta, sequence int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := c.rows[userID]
	row.UserID = userID
	row.Balance += delta
	row.LastSequence = sequence
	row.UpdatedAt = time.Now().UTC()
	c.rows[userID] = row
	return nil
}

func (c *memoryCache) Rewrite(_ context.Context, userID string, balance, lastSequence, expectedSequence int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	row, ok := c.rows[userID]
	if ok && row.LastSequence != expectedSequence {
		return false, nil
	}
	if !ok && expectedSequence != 0 {
		return false, nil
	}

	c.rows[userID] = model.BalanceCache{
		UserID:       userID,
		Balance:      balance,
		LastSequence: lastSequence,
		UpdatedAt:    time.Now().UTC(),
	}
	return true, nil
}

func (c *memoryCache) ListUserIDs(afterUserID string, limit int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []string
	for id := range c.rows {
		if id > afterUserID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type inlineTxManager struct{}

func (inlineTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
