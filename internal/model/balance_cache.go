package model

import "time"

// BalanceCache is the materialized per-user balance. It is a read
// acceleration only; the transaction log stays authoritative and the row is
// written exclusively inside the same DB transaction as the append that
// changed it.
type BalanceCache struct {
	UserID       string    `gorm:"column:user_id;primaryKey;type:varchar(64)" json:"user_id"`
	Balance      int64     `gorm:"column:balance;not null;default:0" json:"balance"`
	LastSequence int64     `gorm:"column:last_sequence;not null;default:0" json:"last_sequence"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (BalanceCache) TableName() string {
	return "balance_caches"
}
