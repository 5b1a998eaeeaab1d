package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Beds       BedsConfig       `yaml:"beds"`
	Session    SessionConfig    `yaml:"session"`
	Sync       SyncConfig       `yaml:"sync"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Alarm      AlarmConfig      `yaml:"alarm"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// BedsConfig describes the fixed set of treatment stations.
type BedsConfig struct {
	Count int `yaml:"count"`
	// TractionBed is the dedicated traction station. Defaults to the last
	// bed; -1 means there is none.
	TractionBed int `yaml:"traction_bed"`
}

// SessionConfig controls how treatment sessions are scheduled and ticked.
type SessionConfig struct {
	Scheduling string        `yaml:"scheduling"` // "queue" or "linear"
	TickMillis int           `yaml:"tick_millis"`
	Tick       time.Duration `yaml:"-"`
}

// SyncConfig holds the dual-write and reconciliation settings.
type SyncConfig struct {
	SuppressionWindowMillis int           `yaml:"suppression_window_millis"`
	SuppressionWindow       time.Duration `yaml:"-"`
	ZombieMaxAgeHours       int           `yaml:"zombie_max_age_hours"`
	ZombieMaxAge            time.Duration `yaml:"-"`
	StorageKey              string        `yaml:"storage_key"`
	LocalPath               string        `yaml:"local_path"`
	WriteQueueSize          int           `yaml:"write_queue_size"`
	PollIntervalMillis      int           `yaml:"poll_interval_millis"`
	PollInterval            time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Enabled                bool   `yaml:"enabled"`
	Driver                 string `yaml:"driver"` // "postgres" or "sqlite"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds the change-notification channel configuration.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// MQTTConfig holds the bedside bridge configuration.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// AlarmConfig holds the initial alarm preferences.
type AlarmConfig struct {
	SoundEnabled bool `yaml:"sound_enabled"`
}

// LogConfig selects the zap logger flavour.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields and derives the duration fields.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.Beds.Count <= 0 {
		cfg.Beds.Count = 11
	}
	switch {
	case cfg.Beds.TractionBed < 0:
		cfg.Beds.TractionBed = 0
	case cfg.Beds.TractionBed == 0 || cfg.Beds.TractionBed > cfg.Beds.Count:
		cfg.Beds.TractionBed = cfg.Beds.Count
	}

	if cfg.Session.Scheduling == "" {
		cfg.Session.Scheduling = "queue"
	}
	if cfg.Session.TickMillis <= 0 {
		cfg.Session.TickMillis = 1000
	}
	cfg.Session.Tick = time.Duration(cfg.Session.TickMillis) * time.Millisecond

	if cfg.Sync.SuppressionWindowMillis <= 0 {
		cfg.Sync.SuppressionWindowMillis = 5000
	}
	cfg.Sync.SuppressionWindow = time.Duration(cfg.Sync.SuppressionWindowMillis) * time.Millisecond
	if cfg.Sync.ZombieMaxAgeHours <= 0 {
		cfg.Sync.ZombieMaxAgeHours = 12
	}
	cfg.Sync.ZombieMaxAge = time.Duration(cfg.Sync.ZombieMaxAgeHours) * time.Hour
	if cfg.Sync.StorageKey == "" {
		cfg.Sync.StorageKey = "physiotrack-beds-v1"
	}
	if cfg.Sync.LocalPath == "" {
		cfg.Sync.LocalPath = "./data"
	}
	if cfg.Sync.WriteQueueSize <= 0 {
		cfg.Sync.WriteQueueSize = 256
	}
	if cfg.Sync.PollIntervalMillis <= 0 {
		cfg.Sync.PollIntervalMillis = 3000
	}
	cfg.Sync.PollInterval = time.Duration(cfg.Sync.PollIntervalMillis) * time.Millisecond

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "physiotrack:beds"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "physiotrack"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "physiotrackd"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}
