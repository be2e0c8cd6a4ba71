package validator

import (
	"github.com/go-playground/validator/v10"
	"github.com/reputrack/creditledger/internal/model"
)

const (
	GrantSourceTag = "grant_source"
)

var grantSources = map[string]struct{}{
	model.SourcePlanPurchase: {},
	model.SourceAdminGrant:   {},
	model.SourcePromotional:  {},
	model.SourcePayment:      {},
}

var valid = map[string]func(fl validator.FieldLevel) bool{
	GrantSourceTag: ValidateGrantSource,
}

func ValidateGrantSource(fl validator.FieldLevel) bool {
	_, ok := grantSources[fl.Field().String()]
	return ok
}
