package v1

type GrantRequest struct {
	UserID         string `json:"user_id" validate:"required,max=64"`
	Amount         int64  `json:"amount" validate:"required,min=1"`
	Reason         string `json:"reason" validate:"required,max=255"`
	Source         string `json:"source" validate:"required,grant_source"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=128"`
}

type ConsumeRequest struct {
	UserID         string `json:"user_id" validate:"required,max=64"`
	Amount         int64  `json:"amount" validate:"required,min=1"`
	Reason         string `json:"reason" validate:"required,max=255"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=128"`
}
