package constants

const MessageErrorFormat = "The '%s' format is invalid"

const (
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeLockTimeout         = "LOCK_TIMEOUT"
	ErrCodeDataIntegrity       = "DATA_INTEGRITY"
	ErrCodeStorageFailed       = "STORAGE_FAILED"
	ErrCodeOperationFailed     = "OPERATION_FAILED"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
)

const (
	ErrMsgUserNotFound        = "user not found"
	ErrMsgInsufficientBalance = "insufficient balance"
	ErrMsgLockTimeout         = "could not acquire the balance lock, retry later"
	ErrMsgDataIntegrity       = "cached balance diverged from the ledger"
	ErrMsgStorageFailed       = "storage unavailable"
	ErrMsgOperationFailed     = "operation failed"
)

var errorMessages = map[string]string{
	ErrCodeUserNotFound:        ErrMsgUserNotFound,
	ErrCodeInsufficientBalance: ErrMsgInsufficientBalance,
	ErrCodeLockTimeout:         ErrMsgLockTimeout,
	ErrCodeDataIntegrity:       ErrMsgDataIntegrity,
	ErrCodeStorageFailed:       ErrMsgStorageFailed,
	ErrCodeOperationFailed:     ErrMsgOperationFailed,
}

func GetErrorMessage(code string) string {
	msg, exists := errorMessages[code]
	if !exists {
		return ""
	}
	return msg
}
