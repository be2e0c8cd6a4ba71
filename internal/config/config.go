package config

import (
	"fmt"
	"time"

	"github.com/reputrack/creditledger/internal/jobs"
	"github.com/reputrack/creditledger/internal/lock"
	"github.com/reputrack/creditledger/pkg/mq"
	"github.com/reputrack/creditledger/pkg/mysql"
	"github.com/spf13/viper"
)

type Config struct {
	API       API                   `mapstructure:"api"`
	Database  mysql.Config          `mapstructure:"database"`
	Redis     Redis                 `mapstructure:"redis"`
	MQ        mq.Config             `mapstructure:"mq"`
	Lock      Lock                  `mapstructure:"lock"`
	Reconcile jobs.ReconcilerConfig `mapstructure:"reconcile"`
}

type API struct {
	Port string `mapstructure:"port"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type Lock struct {
	// "redis" for multi-node deployments, "local" for single-node and tests.
	Mode     string      `mapstructure:"mode"`
	Settings lock.Config `mapstructure:"settings"`
}

func Load() (cfg *Config, err error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath("./config")

	viper.SetDefault("lock.mode", "redis")
	viper.SetDefault("lock.settings.ttl", 30*time.Second)
	viper.SetDefault("lock.settings.acquire_timeout", 3*time.Second)
	viper.SetDefault("lock.settings.retry_interval", 25*time.Millisecond)
	viper.SetDefault("reconcile.interval", 10*time.Minute)
	viper.SetDefault("reconcile.page_size", 200)

	err = viper.ReadInConfig()
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}

	err = viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
