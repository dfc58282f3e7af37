package config

import (
	"bytes"
	_ "embed"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	MySQL      DatabaseConfig   `mapstructure:"mysql"`
	Business   DatabaseConfig   `mapstructure:"business"`
	ClickHouse DatabaseConfig   `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Directory  DirectoryConfig  `mapstructure:"directory"`
	Quota      QuotaConfig      `mapstructure:"quota"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Usage      UsageConfig      `mapstructure:"usage"`
	Executor   ExecutorConfig   `mapstructure:"executor"`
	Limits     LimitsConfig     `mapstructure:"limits"`
	Plans      []PlanConfig     `mapstructure:"plans"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Customers  []CustomerConfig `mapstructure:"customers"`
	AuditSink  AuditSinkConfig  `mapstructure:"audit_sink"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	AuditTopic     string   `mapstructure:"audit_topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

// DirectoryConfig selects where customers are loaded from: "mysql" or "static"
// (the customers section, for local runs).
type DirectoryConfig struct {
	Source          string        `mapstructure:"source"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// QuotaConfig selects the counter store: "redis" or "memory".
type QuotaConfig struct {
	Backend   string `mapstructure:"backend"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// AuditConfig selects the audit sink: "clickhouse", "kafka" or "memory".
type AuditConfig struct {
	Sink         string        `mapstructure:"sink"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxRetries   uint64        `mapstructure:"max_retries"`
}

// UsageConfig selects the usage ledger store: "mysql" or "memory".
type UsageConfig struct {
	Store        string        `mapstructure:"store"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxRetries   uint64        `mapstructure:"max_retries"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type ExecutorConfig struct {
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	Breaker      BreakerConfig `mapstructure:"breaker"`
}

// LimitsConfig.Policy is "clamp" or "reject" for result-limit arguments above
// the plan ceiling.
type LimitsConfig struct {
	Policy string `mapstructure:"policy"`
}

// PlanConfig mirrors one entry of the plans section. Nil quota or max rows
// means unlimited; a tools list of ["*"] allows every catalog tool.
type PlanConfig struct {
	ID            string   `mapstructure:"id"`
	DailyQuota    *uint64  `mapstructure:"daily_quota"`
	AllowedTools  []string `mapstructure:"allowed_tools"`
	MaxResultRows *uint64  `mapstructure:"max_result_rows"`
}

type PricingConfig struct {
	DefaultCost uint64            `mapstructure:"default_cost"`
	Tools       map[string]uint64 `mapstructure:"tools"`
}

// CustomerConfig is a statically provisioned customer used by the static
// directory source and by the seed command.
type CustomerConfig struct {
	ID     int64  `mapstructure:"id"`
	Name   string `mapstructure:"name"`
	APIKey string `mapstructure:"api_key"`
	PlanID string `mapstructure:"plan_id"`
	Active bool   `mapstructure:"active"`
}

type AuditSinkConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	BatchWait time.Duration `mapstructure:"batch_wait"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (INTENTGW_*).
func Load(path string) (Config, error) {
	v, err := newViper(path)
	if err != nil {
		return Config{}, err
	}
	return decode(v)
}

// Watch loads the config like Load and calls onChange with the re-decoded
// config every time the user file changes on disk. Decode errors are passed
// to onChange so the caller can keep its previous state.
func Watch(path string, onChange func(Config, error)) (Config, error) {
	v, err := newViper(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		v.OnConfigChange(func(fsnotify.Event) {
			onChange(decode(v))
		})
		v.WatchConfig()
	}
	return cfg, nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (INTENTGW_*), nested keys use "_" (INTENTGW_REDIS_ADDR)
	v.SetEnvPrefix("INTENTGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
