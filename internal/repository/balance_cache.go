package repository

import (
	"context"
	"time"

	"github.com/reputrack/creditledger/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BalanceCacheRepository maintains the materialized balances. Apply must run
// inside the same DB transaction as the append that triggered it; the delta
// update is relative so a stale in-memory snapshot can never be written back.
type BalanceCacheRepository interface {
	Get(userID string) (model.BalanceCache, error)
	Apply(ctx context.Context, userID string, delta, sequence int64) error
	Rewrite(ctx context.Context, userID string, balance, lastSequence, expectedSequence int64) (bool, error)
	ListUserIDs(afterUserID string, limit int) ([]string, error)
}

type balanceCache struct {
	db *gorm.DB
}

func NewBalanceCacheRepository(db *gorm.DB) BalanceCacheRepository {
	return &balanceCache{db: db}
}

func (r *balanceCache) Get(userID string) (model.BalanceCache, error) {
	var bc model.BalanceCache
	if err := r.db.Where("user_id = ?", userID).First(&bc).Error; err != nil {
		return model.BalanceCache{}, err
	}
	return bc, nil
}

func (r *balanceCache) Apply(ctx context.Context, userID string, delta, sequence int64) error {
	db := GetTx(ctx, r.db)

	row := model.BalanceCache{
		UserID:       userID,
		Balance:      delta,
		LastSequence: sequence,
		UpdatedAt:    time.Now().UTC(),
	}

	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance":       gorm.Expr("balance + ?", delta),
			"last_sequence": sequence,
			"updated_at":    row.UpdatedAt,
		}),
	}).Create(&row).Error
}

// Rewrite rebuilds the row from the log, guarded by the sequence the caller
// observed when it detected the divergence. A row advanced by a concurrent
// append no longer matches expectedSequence and is left alone rather than
// clobbered with a stale rebuild; the caller learns via the bool whether the
// write applied.
func (r *balanceCache) Rewrite(ctx context.Context, userID string, balance, lastSequence, expectedSequence int64) (bool, error) {
	db := GetTx(ctx, r.db)
	now := time.Now().UTC()

	res := db.Model(&model.BalanceCache{}).
		Where("user_id = ? AND last_sequence = ?", userID, expectedSequence).
		Updates(map[string]interface{}{
			"balance":       balance,
			"last_sequence": lastSequence,
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	if expectedSequence > 0 {
		return false, nil
	}

	// No row observed: insert, yielding to any append that created one since.
	row := model.BalanceCache{
		UserID:       userID,
		Balance:      balance,
		LastSequence: lastSequence,
		UpdatedAt:    now,
	}
	res = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *balanceCache) ListUserIDs(afterUserID string, limit int) ([]string, error) {
	var ids []string
	err := r.db.Model(&model.BalanceCache{}).
		Where("user_id > ?", afterUserID).
		Order("user_id ASC").
		Limit(limit).
		Pluck("user_id", &ids).Error
	return ids, err
}
