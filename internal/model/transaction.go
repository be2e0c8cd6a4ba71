package model

import "time"

type TxKind string

const (
	TxKindAssignment  TxKind = "assignment"
	TxKindConsumption TxKind = "consumption"
)

// Assignment provenance values recorded on grants.
const (
	SourcePlanPurchase = "plan_purchase"
	SourceAdminGrant   = "admin_grant"
	SourcePromotional  = "promotional"
	SourcePayment      = "payment"
)

// Transaction is one committed ledger entry. Rows are append-only: nothing in
// the service updates or deletes them once written.
type Transaction struct {
	ID             string    `gorm:"column:id;primaryKey;type:char(36)" json:"id"`
	UserID         string    `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:uq_transactions_user_seq,priority:1;uniqueIndex:uq_transactions_user_idem,priority:1" json:"user_id"`
	Amount         int64     `gorm:"column:amount;not null" json:"amount"`
	Kind           TxKind    `gorm:"column:kind;type:varchar(20);not null" json:"kind"`
	Reason         string    `gorm:"column:reason;type:varchar(255);not null" json:"reason"`
	Source         string    `gorm:"column:source;type:varchar(50)" json:"source,omitempty"`
	Sequence       int64     `gorm:"column:sequence;not null;uniqueIndex:uq_transactions_user_seq,priority:2" json:"sequence"`
	IdempotencyKey *string   `gorm:"column:idempotency_key;type:varchar(128);uniqueIndex:uq_transactions_user_idem,priority:2" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// SignedAmount is the transaction's effect on the balance.
func (t Transaction) SignedAmount() int64 {
	if t.Kind == TxKindConsumption {
		return -t.Amount
	}
	return t.Amount
}
