package database

import (
	"context"
	"fmt"

	"github.com/reputrack/creditledger/internal/config"
	"github.com/reputrack/creditledger/internal/model"
	"github.com/reputrack/creditledger/pkg/mysql"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewConnection(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	db, err := mysql.NewConnection(context.Background(), cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	// The ledger tables carry their unique indexes in the model tags; the
	// component contract exposes no UPDATE or DELETE on transactions.
	if err := db.AutoMigrate(&model.Transaction{}, &model.BalanceCache{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return db, nil
}
