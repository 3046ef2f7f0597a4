// Initializing common application configuration
package config

import (
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Push       PushConfig       `mapstructure:"push"`
	Scanner    ScannerConfig    `mapstructure:"scanner"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
}

type ServerConfig struct {
	AppVersion   string `json:"appVersion"`
	Host         string `json:"host" validate:"required"`
	Port         string `json:"port" validate:"required"`
	Timeout      time.Duration
	Idle_timeout time.Duration
	Env          string `json:"environment"`
	Mode         string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string `json:"URL"`
	Host     string `json:"host" validate:"required"`
	Port     int    `json:"port" validate:"required"`
	Password string `json:"password" validate:"required"`
	DB       int    `json:"db" validate:"required"`

	MaxRetries   int
	PoolSize     int
	MinIdleConns int
	MaxIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
}

// PushConfig holds the operator-side web push credentials. The private key
// must never appear in logs, whole or truncated.
type PushConfig struct {
	VAPIDPublicKey  string        `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string        `mapstructure:"vapid_private_key"`
	Subscriber      string        `mapstructure:"subscriber"` // mailto: contact passed to the push service
	TTL             int           `mapstructure:"ttl"`        // seconds the push service may hold the message
	Timeout         time.Duration `mapstructure:"timeout"`
}

type ScannerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`         // heartbeat-driven scan cadence
	FutureTolerance time.Duration `mapstructure:"future_tolerance"` // reminders this far ahead still count as due
}

type DispatcherConfig struct {
	CronSpec     string        `mapstructure:"cron_spec"`     // server-side schedule, decoupled from clients
	StaleCeiling time.Duration `mapstructure:"stale_ceiling"` // force-ack reminders older than this
	ScanLockTTL  time.Duration `mapstructure:"scan_lock_ttl"`
	DLQKey       string        `mapstructure:"dlq_key"`
}

type ReconcilerConfig struct {
	HealthInterval       time.Duration `mapstructure:"health_interval"`        // stable-state re-verification cadence
	FailureInterval      time.Duration `mapstructure:"failure_interval"`       // shortened interval right after a failure
	MaxSubscribeAttempts int           `mapstructure:"max_subscribe_attempts"` // bounded retries before the unavailable state
	BackoffBase          time.Duration `mapstructure:"backoff_base"`
}

func LoadConfig() (*viper.Viper, error) {

	viperInstance := viper.New()

	viperInstance.AddConfigPath("./config")
	viperInstance.SetConfigName("config")
	viperInstance.SetConfigType("yaml")

	setDefaults(viperInstance)

	err := viperInstance.ReadInConfig()

	if err != nil {
		return nil, err
	}
	return viperInstance, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {

	var c Config

	err := v.Unmarshal(&c)
	if err != nil {
		log.Fatalf("unable to decode config into struct, %v", err)
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.mode", "debug")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Push defaults
	v.SetDefault("push.ttl", 60)
	v.SetDefault("push.timeout", 10*time.Second)

	// Scanner defaults: 1 minute cadence, 5 minutes of forward tolerance
	v.SetDefault("scanner.interval", time.Minute)
	v.SetDefault("scanner.future_tolerance", 5*time.Minute)

	// Dispatcher defaults
	v.SetDefault("dispatcher.cron_spec", "@every 1m")
	v.SetDefault("dispatcher.stale_ceiling", 30*time.Minute)
	v.SetDefault("dispatcher.scan_lock_ttl", 50*time.Second)
	v.SetDefault("dispatcher.dlq_key", "reminders:dlq")

	// Reconciler defaults
	v.SetDefault("reconciler.health_interval", 5*time.Minute)
	v.SetDefault("reconciler.failure_interval", 30*time.Second)
	v.SetDefault("reconciler.max_subscribe_attempts", 4)
	v.SetDefault("reconciler.backoff_base", 2*time.Second)
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
