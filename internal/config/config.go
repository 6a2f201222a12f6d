// Package config loads the server configuration from a YAML file with
// defaults and environment overrides for secrets.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/validation"
)

// Переменные окружения, переопределяющие секреты из файла
const (
	EnvJWTSecret   = "LMSSYNC_JWT_SECRET"
	EnvCourseToken = "LMSSYNC_COURSE_TOKEN"
	EnvForumAPIKey = "LMSSYNC_FORUM_API_KEY"
)

// Config конфигурация сервера синхронизации
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Course   CourseConfig   `yaml:"course"`
	Forum    ForumConfig    `yaml:"forum"`
	Sync     SyncConfig     `yaml:"sync"`
	Queue    QueueConfig    `yaml:"queue"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// ServerConfig HTTP API оператора
type ServerConfig struct {
	Address         string        `yaml:"address" validate:"required,hostname_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
	RateLimit       int           `yaml:"rate_limit" validate:"gte=0"`
}

// StorageConfig пути к базам данных
type StorageConfig struct {
	// SQLitePath система учета: состояния, журнал транзакций, очередь, сопоставления
	SQLitePath string `yaml:"sqlite_path" validate:"required"`
	// BoltPath идентичность узла и метаданные проходов
	BoltPath string `yaml:"bolt_path" validate:"required"`
}

// LogConfig параметры журналирования
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// AuthConfig учетные данные операторов и подпись токенов
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" validate:"required,min=32"`
	TokenTTL  time.Duration `yaml:"token_ttl" validate:"gt=0"`
	Operators []Operator    `yaml:"operators" validate:"dive"`
}

// Operator учетная запись оператора; пароль хранится как argon2id-хеш
type Operator struct {
	Username     string `yaml:"username" validate:"required,username"`
	PasswordHash string `yaml:"password_hash" validate:"required"`
}

// CourseConfig платформа курсов
type CourseConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,http_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// ForumConfig платформа обсуждений
type ForumConfig struct {
	BaseURL     string        `yaml:"base_url" validate:"required,http_url"`
	APIKey      string        `yaml:"api_key"`
	APIUsername string        `yaml:"api_username"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
}

// SyncConfig параметры движка синхронизации
type SyncConfig struct {
	// Direction направление переноса при полной синхронизации
	Direction string `yaml:"direction" validate:"oneof=course_to_forum forum_to_course"`
	// AdvanceClockOnFailure продвигать часы источника и после неудачной попытки
	AdvanceClockOnFailure *bool         `yaml:"advance_clock_on_failure"`
	BodyTimeout           time.Duration `yaml:"body_timeout" validate:"gt=0"`
	ProbeTimeout          time.Duration `yaml:"probe_timeout" validate:"gt=0"`
}

// QueueConfig параметры очереди повторов
type QueueConfig struct {
	BatchSize         int           `yaml:"batch_size" validate:"gt=0,lte=1000"`
	Concurrency       int           `yaml:"concurrency" validate:"gt=0,lte=64"`
	MaxAttempts       int           `yaml:"max_attempts" validate:"gt=0,lte=100"`
	ProcessingTimeout time.Duration `yaml:"processing_timeout" validate:"gt=0"`
	Retention         time.Duration `yaml:"retention" validate:"gte=0"`
}

// ScheduleConfig интервалы фоновых задач; 0 отключает задачу
type ScheduleConfig struct {
	FullSyncInterval     time.Duration `yaml:"full_sync_interval" validate:"gte=0"`
	DrainInterval        time.Duration `yaml:"drain_interval" validate:"gte=0"`
	MaintenanceInterval  time.Duration `yaml:"maintenance_interval" validate:"gte=0"`
	TransactionRetention time.Duration `yaml:"transaction_retention" validate:"gte=0"`
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	advance := true
	return &Config{
		Server: ServerConfig{
			Address:         "localhost:8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       20,
		},
		Storage: StorageConfig{
			SQLitePath: "lmssync.db",
			BoltPath:   "lmssync-node.db",
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Auth: AuthConfig{
			TokenTTL: 12 * time.Hour,
		},
		Course: CourseConfig{Timeout: 30 * time.Second},
		Forum:  ForumConfig{Timeout: 30 * time.Second, APIUsername: "system"},
		Sync: SyncConfig{
			Direction:             string(models.DirectionCourseToForum),
			AdvanceClockOnFailure: &advance,
			BodyTimeout:           2 * time.Minute,
			ProbeTimeout:          5 * time.Second,
		},
		Queue: QueueConfig{
			BatchSize:         10,
			Concurrency:       4,
			MaxAttempts:       3,
			ProcessingTimeout: 5 * time.Minute,
			Retention:         7 * 24 * time.Hour,
		},
		Schedule: ScheduleConfig{
			FullSyncInterval:     time.Hour,
			DrainInterval:        time.Minute,
			MaintenanceInterval:  10 * time.Minute,
			TransactionRetention: 30 * 24 * time.Hour,
		},
	}
}

// Load читает конфигурацию из файла поверх значений по умолчанию,
// применяет переменные окружения и проверяет результат.
// Пустой path - только значения по умолчанию и окружение.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse разбирает YAML поверх cfg; неизвестные поля считаются ошибкой
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvJWTSecret); ok {
		c.Auth.JWTSecret = v
	}
	if v, ok := lookup(EnvCourseToken); ok {
		c.Course.Token = v
	}
	if v, ok := lookup(EnvForumAPIKey); ok {
		c.Forum.APIKey = v
	}
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Auth.Operators))
	for _, op := range c.Auth.Operators {
		if _, dup := seen[op.Username]; dup {
			return fmt.Errorf("invalid config: %w: duplicate operator %q", validation.ErrInvalid, op.Username)
		}
		seen[op.Username] = struct{}{}
	}

	// sweep не должен возвращать в очередь перенос, который еще выполняется
	if c.Queue.ProcessingTimeout <= c.Sync.BodyTimeout {
		return fmt.Errorf("invalid config: %w: queue.processing_timeout (%s) must exceed sync.body_timeout (%s)",
			validation.ErrInvalid, c.Queue.ProcessingTimeout, c.Sync.BodyTimeout)
	}

	return nil
}

// Direction направление полной синхронизации
func (c *Config) Direction() models.Direction {
	return models.Direction(c.Sync.Direction)
}

// CommitOnlyClock true, если часы источника продвигаются только после commit
func (c *Config) CommitOnlyClock() bool {
	return c.Sync.AdvanceClockOnFailure != nil && !*c.Sync.AdvanceClockOnFailure
}

// LogLevel уровень slog из конфигурации
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Operator ищет оператора по имени
func (c *Config) Operator(username string) (Operator, bool) {
	for _, op := range c.Auth.Operators {
		if op.Username == username {
			return op, true
		}
	}
	return Operator{}, false
}
