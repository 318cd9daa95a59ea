package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"odds-value-alerts/internal/logging"
	"odds-value-alerts/internal/oddsmodel"
	"odds-value-alerts/internal/signals"
)

// EnvPrefix prefixes every environment override, e.g. ODDSWATCHER_ODDSAPI_API_KEY.
const EnvPrefix = "ODDSWATCHER"

// Config materialises application configuration.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Logging      logging.Config     `mapstructure:"logging"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	OddsAPI      OddsAPIConfig      `mapstructure:"oddsapi"`
	Model        ModelConfig        `mapstructure:"model"`
	Movement     MovementConfig     `mapstructure:"movement"`
	Disagreement DisagreementConfig `mapstructure:"disagreement"`
	Snapshots    SnapshotsConfig    `mapstructure:"snapshots"`
	Alerting     AlertingConfig     `mapstructure:"alerting"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Server       ServerConfig       `mapstructure:"server"`
	Export       ExportConfig       `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN disables the audit trail.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	Retention       time.Duration `mapstructure:"retention"`
}

// SchedulerConfig governs polling cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	RunImmediately  bool          `mapstructure:"run_immediately"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// OddsAPIConfig captures the-odds-api connectivity.
type OddsAPIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Regions        string        `mapstructure:"regions"`
	Markets        string        `mapstructure:"markets"`
	OddsFormat     string        `mapstructure:"odds_format"`
	Leagues        []string      `mapstructure:"leagues"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// ModelConfig holds the fair value blend and edge grading.
type ModelConfig struct {
	SharpWeight float64 `mapstructure:"sharp_weight"`
	MoveWeight  float64 `mapstructure:"move_weight"`
	StrongEdge  float64 `mapstructure:"strong_edge"`
	MediumEdge  float64 `mapstructure:"medium_edge"`
}

// MovementConfig tunes line movement detection.
type MovementConfig struct {
	SharpThreshold  float64 `mapstructure:"sharp_threshold"`
	OutcomeMatching string  `mapstructure:"outcome_matching"`
}

// DisagreementConfig tunes outlier detection.
type DisagreementConfig struct {
	DeviationThreshold float64 `mapstructure:"deviation_threshold"`
}

// SnapshotsConfig locates the snapshot log and archives.
type SnapshotsConfig struct {
	HistoryPath string `mapstructure:"history_path"`
	ArchiveDir  string `mapstructure:"archive_dir"`
	BackupDir   string `mapstructure:"backup_dir"`
	Timezone    string `mapstructure:"timezone"`
}

// AlertingConfig defines alert delivery.
type AlertingConfig struct {
	Enabled       bool           `mapstructure:"enabled"`
	MinInterval   time.Duration  `mapstructure:"min_interval"`
	RetryPadding  time.Duration  `mapstructure:"retry_padding"`
	Cooldown      time.Duration  `mapstructure:"cooldown"`
	ValueAlerts   bool           `mapstructure:"value_alerts"`
	MaxMessageLen int            `mapstructure:"max_message_len"`
	Telegram      TelegramConfig `mapstructure:"telegram"`
	Redis         RedisConfig    `mapstructure:"redis"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RedisConfig points the alert cooldown at Redis. An empty address keeps it in memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// KafkaConfig enables the signal fan-out.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// ServerConfig enables the status server.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "oddswatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("scheduler.interval", "3m")
	v.SetDefault("scheduler.align_to_bucket", false)
	v.SetDefault("scheduler.run_immediately", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6f646473))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("oddsapi.base_url", "https://api.the-odds-api.com/v4")
	v.SetDefault("oddsapi.api_key", "")
	v.SetDefault("oddsapi.regions", "eu")
	v.SetDefault("oddsapi.markets", "h2h")
	v.SetDefault("oddsapi.odds_format", "decimal")
	v.SetDefault("oddsapi.leagues", []string{
		"soccer_epl",
		"soccer_uefa_champs_league",
		"soccer_france_ligue_one",
		"soccer_spain_la_liga",
		"soccer_italy_serie_a",
		"soccer_germany_bundesliga",
	})
	v.SetDefault("oddsapi.request_timeout", "10s")
	v.SetDefault("oddsapi.user_agent", "")

	v.SetDefault("model.sharp_weight", 0.65)
	v.SetDefault("model.move_weight", 0.35)
	v.SetDefault("model.strong_edge", 0.20)
	v.SetDefault("model.medium_edge", 0.10)

	v.SetDefault("movement.sharp_threshold", 0.20)
	v.SetDefault("movement.outcome_matching", "name")

	v.SetDefault("disagreement.deviation_threshold", 0.25)

	v.SetDefault("snapshots.history_path", "data/odds_history.jsonl")
	v.SetDefault("snapshots.archive_dir", "backups/daily")
	v.SetDefault("snapshots.backup_dir", "data/backup")
	v.SetDefault("snapshots.timezone", "Local")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.min_interval", "1100ms")
	v.SetDefault("alerting.retry_padding", "1s")
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.value_alerts", false)
	v.SetDefault("alerting.max_message_len", 4000)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.request_timeout", "10s")
	v.SetDefault("alerting.redis.addr", "")
	v.SetDefault("alerting.redis.password", "")
	v.SetDefault("alerting.redis.db", 0)
	v.SetDefault("alerting.redis.prefix", "oddswatcher:alert")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "odds.signals")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.retention", "720h")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if len(c.OddsAPI.Leagues) == 0 {
		return fmt.Errorf("oddsapi.leagues must list at least one league")
	}

	if err := c.Weights().Validate(); err != nil {
		return fmt.Errorf("model weights: %w", err)
	}
	if err := c.EdgeThresholds().Validate(); err != nil {
		return fmt.Errorf("model edges: %w", err)
	}
	if c.Movement.SharpThreshold < 0 || math.IsNaN(c.Movement.SharpThreshold) {
		return fmt.Errorf("movement.sharp_threshold cannot be negative")
	}
	if _, err := signals.ParseOutcomeMatching(c.Movement.OutcomeMatching); err != nil {
		return fmt.Errorf("movement.outcome_matching: %w", err)
	}
	if c.Disagreement.DeviationThreshold < 0 || math.IsNaN(c.Disagreement.DeviationThreshold) {
		return fmt.Errorf("disagreement.deviation_threshold cannot be negative")
	}

	if c.Snapshots.HistoryPath == "" || c.Snapshots.ArchiveDir == "" {
		return fmt.Errorf("snapshots.history_path and snapshots.archive_dir are required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	if c.Alerting.MinInterval < 0 || c.Alerting.RetryPadding < 0 || c.Alerting.Cooldown < 0 {
		return fmt.Errorf("alerting durations cannot be negative")
	}
	if c.Alerting.MaxMessageLen <= 0 || c.Alerting.MaxMessageLen > 4096 {
		return fmt.Errorf("alerting.max_message_len must be within 1..4096")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	return nil
}

// Weights returns the fair value blend.
func (c *Config) Weights() oddsmodel.Weights {
	return oddsmodel.Weights{Sharp: c.Model.SharpWeight, Move: c.Model.MoveWeight}
}

// EdgeThresholds returns the edge grading cutoffs.
func (c *Config) EdgeThresholds() oddsmodel.EdgeThresholds {
	return oddsmodel.EdgeThresholds{Strong: c.Model.StrongEdge, Medium: c.Model.MediumEdge}
}

// SignalsConfig assembles the analyzer tuning.
func (c *Config) SignalsConfig() signals.Config {
	matching, _ := signals.ParseOutcomeMatching(c.Movement.OutcomeMatching)
	return signals.Config{
		Weights:            c.Weights(),
		Thresholds:         c.EdgeThresholds(),
		SharpThreshold:     c.Movement.SharpThreshold,
		DeviationThreshold: c.Disagreement.DeviationThreshold,
		OutcomeMatching:    matching,
	}
}

// Location resolves the zone used to cut archive days.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Snapshots.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("snapshots.timezone: %w", err)
	}
	return loc, nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
