package main

import (
	"fmt"
	"os"
	"time"

	"arbiter/internal/common/cache"
	"arbiter/internal/common/db"
	"arbiter/internal/common/mq"
	"arbiter/internal/common/storage"
	"arbiter/internal/contest/service"
	"arbiter/internal/jobstore"
	"arbiter/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// ConsumerConfig holds result consumer subscription settings.
type ConsumerConfig struct {
	Group       string        `yaml:"group"`
	Concurrency int           `yaml:"concurrency"`
	MaxRetries  int           `yaml:"maxRetries"`
	RetryDelay  time.Duration `yaml:"retryDelay"`
	DeadLetter  string        `yaml:"deadLetter"`
}

func (c ConsumerConfig) toSubscribeOptions() mq.SubscribeOptions {
	return mq.SubscribeOptions{
		ConsumerGroup:   c.Group,
		Concurrency:     c.Concurrency,
		MaxRetries:      c.MaxRetries,
		RetryDelay:      c.RetryDelay,
		DeadLetterTopic: c.DeadLetter,
	}
}

// ContestConfig holds submission and leaderboard settings.
type ContestConfig struct {
	SourceBucket    string                `yaml:"sourceBucket"`
	SourceKeyPrefix string                `yaml:"sourceKeyPrefix"`
	MaxCodeBytes    int                   `yaml:"maxCodeBytes"`
	Languages       []string              `yaml:"languages"`
	ResultsTopic    string                `yaml:"resultsTopic"`
	ResultsConsumer ConsumerConfig        `yaml:"resultsConsumer"`
	StandingsTTL    time.Duration         `yaml:"standingsTTL"`
	Timeouts        service.TimeoutConfig `yaml:"timeouts"`
}

// AppConfig holds contest-service configuration.
type AppConfig struct {
	Server   ServerConfig         `yaml:"server"`
	Logger   logger.Config        `yaml:"logger"`
	Database db.PoolConfig        `yaml:"database"`
	Redis    cache.RedisConfig    `yaml:"redis"`
	Kafka    mq.KafkaConfig       `yaml:"kafka"`
	MinIO    storage.MinIOConfig  `yaml:"minio"`
	JobStore jobstore.RedisConfig `yaml:"jobStore"`
	Contest  ContestConfig        `yaml:"contest"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if cfg.JobStore.Addr == "" {
		cfg.JobStore.Addr = cfg.Redis.Addr
	}

	if cfg.Contest.SourceBucket == "" {
		cfg.Contest.SourceBucket = cfg.MinIO.Bucket
	}
	if cfg.Contest.MaxCodeBytes == 0 {
		cfg.Contest.MaxCodeBytes = 256 * 1024
	}
	if cfg.Contest.ResultsTopic == "" {
		cfg.Contest.ResultsTopic = "evaluation.results"
	}
	if cfg.Contest.StandingsTTL == 0 {
		cfg.Contest.StandingsTTL = 30 * time.Second
	}
	if cfg.Contest.Timeouts.DB == 0 {
		cfg.Contest.Timeouts.DB = 3 * time.Second
	}
	if cfg.Contest.Timeouts.Cache == 0 {
		cfg.Contest.Timeouts.Cache = 1 * time.Second
	}
	if cfg.Contest.Timeouts.JobStore == 0 {
		cfg.Contest.Timeouts.JobStore = 2 * time.Second
	}
	if cfg.Contest.Timeouts.Storage == 0 {
		cfg.Contest.Timeouts.Storage = 5 * time.Second
	}

	return &cfg, nil
}
