package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"groupId"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
}

type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"useSSL"`
}

type AuthConfig struct {
	// Secret signs both session JWTs and download capability tokens.
	Secret           string `yaml:"secret"`
	DownloadTTLHours int    `yaml:"downloadTTLHours"`
}

type WorkerConfig struct {
	SampleIntervalSeconds int `yaml:"sampleIntervalSeconds"`
	JobTimeoutSeconds     int `yaml:"jobTimeoutSeconds"`
	HeartbeatSeconds      int `yaml:"heartbeatSeconds"`
}

type ReconcilerConfig struct {
	SweepIntervalSeconds int `yaml:"sweepIntervalSeconds"`
	StalledAfterSeconds  int `yaml:"stalledAfterSeconds"`
	BatchSize            int `yaml:"batchSize"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Sender   string `yaml:"sender"`
	BaseURL  string `yaml:"baseURL"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	Auth       AuthConfig       `yaml:"auth"`
	Worker     WorkerConfig     `yaml:"worker"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	SMTP       SMTPConfig       `yaml:"smtp"`
}

// Load reads the YAML config file, fills defaults and lets a handful of
// environment variables override the secret-bearing fields so those never
// have to live in the file.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}
	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("auth secret is empty")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "video-dispatch",
			GroupID: "frame-workers",
		},
		Redis:   RedisConfig{Addr: "localhost:6379"},
		Storage: StorageConfig{Bucket: "frames"},
		Auth:    AuthConfig{DownloadTTLHours: 24},
		Worker: WorkerConfig{
			SampleIntervalSeconds: 20,
			JobTimeoutSeconds:     3600,
			HeartbeatSeconds:      15,
		},
		Reconciler: ReconcilerConfig{
			SweepIntervalSeconds: 60,
			StalledAfterSeconds:  300,
			BatchSize:            100,
		},
		SMTP: SMTPConfig{Port: 587, BaseURL: "http://localhost:8080"},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("STORAGE_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}
}

func (c *Config) DownloadTTL() time.Duration {
	return time.Duration(c.Auth.DownloadTTLHours) * time.Hour
}

func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.Worker.SampleIntervalSeconds) * time.Second
}

func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Worker.JobTimeoutSeconds) * time.Second
}

func (c *Config) Heartbeat() time.Duration {
	return time.Duration(c.Worker.HeartbeatSeconds) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Reconciler.SweepIntervalSeconds) * time.Second
}

func (c *Config) StalledAfter() time.Duration {
	return time.Duration(c.Reconciler.StalledAfterSeconds) * time.Second
}
