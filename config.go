package yolo

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// Config is the production configuration for the game suite
type Config struct {
	// Game config
	Game *GameConfig `mapstructure:"game"`

	// Redis config
	Redis *RedisConfig `mapstructure:"redis"`

	// Circuit breaker config
	CircuitBreaker *CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// Validate checks the whole configuration tree
func (c *Config) Validate() error {
	if c.Game.RoundDuration <= 0 {
		return ErrConfigInvalid.WithDetails("round duration must be positive")
	}
	if c.Game.Winners < 1 || c.Game.Winners > MaxWinners {
		return ErrConfigInvalid.WithDetails("winners must be between 1 and %d", MaxWinners)
	}
	if c.Game.RNGCapacity < 0 {
		return ErrConfigInvalid.WithDetails("rng capacity must not be negative")
	}
	if c.Game.KeeperInterval <= 0 {
		return ErrConfigInvalid.WithDetails("keeper interval must be positive")
	}
	if c.Game.StallWarning <= 0 {
		return ErrConfigInvalid.WithDetails("stall warning must be positive")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}
	if c.Redis.PoolSize <= 0 {
		return fmt.Errorf("redis pool size must be positive")
	}

	return nil
}

// GameConfig holds the round and keeper parameters
type GameConfig struct {
	RoundDuration  time.Duration `mapstructure:"round_duration"`
	Winners        int           `mapstructure:"winners"`
	RNGCapacity    int           `mapstructure:"rng_capacity"`
	KeeperInterval time.Duration `mapstructure:"keeper_interval"`
	StallWarning   time.Duration `mapstructure:"stall_warning"`
}

// DefaultGameConfig returns the default game parameters
func DefaultGameConfig() *GameConfig {
	return &GameConfig{
		RoundDuration:  DefaultRoundDuration,
		Winners:        DefaultWinners,
		RNGCapacity:    DefaultRNGCapacity,
		KeeperInterval: DefaultKeeperInterval,
		StallWarning:   DefaultStallWarning,
	}
}

// LotConfig builds the per-round template from the game parameters
func (g *GameConfig) LotConfig() *LotConfig {
	return &LotConfig{
		Winners:       g.Winners,
		RoundDuration: g.RoundDuration,
	}
}

// RedisConfig holds the Redis connection parameters
type RedisConfig struct {
	// Connection
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// Pool
	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
	MaxRetries   int `mapstructure:"max_retries"`

	// Timeouts
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`

	// Cluster
	ClusterMode  bool     `mapstructure:"cluster_mode"`
	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	// TLS
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	CAFile     string `mapstructure:"ca_file"`
}

// CircuitBreakerConfig holds the oracle circuit breaker parameters
type CircuitBreakerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Name          string        `mapstructure:"name"`
	MaxRequests   uint32        `mapstructure:"max_requests"`
	Interval      time.Duration `mapstructure:"interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	FailureRatio  float64       `mapstructure:"failure_ratio"`
	MinRequests   uint32        `mapstructure:"min_requests"`
	OnStateChange bool          `mapstructure:"on_state_change"`
}

// DefaultCircuitBreakerConfig returns the default circuit breaker configuration
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Enabled:       true,
		Name:          DefaultCircuitBreakerName,
		MaxRequests:   DefaultCircuitBreakerMaxRequests,
		Interval:      DefaultCircuitBreakerInterval,
		Timeout:       DefaultCircuitBreakerTimeout,
		FailureRatio:  DefaultCircuitBreakerFailureRatio,
		MinRequests:   DefaultCircuitBreakerMinRequests,
		OnStateChange: DefaultCircuitBreakerOnStateChange,
	}
}

// ConfigManager loads and watches the configuration
type ConfigManager struct {
	viper  *viper.Viper
	config *Config
}

// NewConfigManager creates a configuration manager with file
// discovery and YOLO_ environment overrides
func NewConfigManager() *ConfigManager {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/yolo")
	v.AddConfigPath("$HOME/.yolo")

	v.SetEnvPrefix("YOLO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &ConfigManager{
		viper: v,
	}
}

// LoadConfig reads, unmarshals, and validates the configuration.
// A missing config file falls back to the defaults.
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	cm.setDefaults()

	if err := cm.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{}
	if err := cm.viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cm.config = config
	return config, nil
}

// setDefaults seeds viper with the default configuration values
func (cm *ConfigManager) setDefaults() {
	// Game defaults
	cm.viper.SetDefault("game.round_duration", "168h")
	cm.viper.SetDefault("game.winners", DefaultWinners)
	cm.viper.SetDefault("game.rng_capacity", DefaultRNGCapacity)
	cm.viper.SetDefault("game.keeper_interval", "30s")
	cm.viper.SetDefault("game.stall_warning", "10m")

	// Redis defaults
	cm.viper.SetDefault("redis.addr", "localhost:6379")
	cm.viper.SetDefault("redis.password", "")
	cm.viper.SetDefault("redis.db", 0)
	cm.viper.SetDefault("redis.pool_size", DefaultRedisPoolSize)
	cm.viper.SetDefault("redis.min_idle_conns", DefaultRedisMinIdleConns)
	cm.viper.SetDefault("redis.max_retries", DefaultRedisMaxRetries)
	cm.viper.SetDefault("redis.dial_timeout", "5s")
	cm.viper.SetDefault("redis.read_timeout", "3s")
	cm.viper.SetDefault("redis.write_timeout", "3s")
	cm.viper.SetDefault("redis.pool_timeout", "4s")
	cm.viper.SetDefault("redis.cluster_mode", false)
	cm.viper.SetDefault("redis.tls_enabled", false)

	// Circuit breaker defaults
	cm.viper.SetDefault("circuit_breaker.enabled", true)
	cm.viper.SetDefault("circuit_breaker.name", DefaultCircuitBreakerName)
	cm.viper.SetDefault("circuit_breaker.max_requests", DefaultCircuitBreakerMaxRequests)
	cm.viper.SetDefault("circuit_breaker.interval", "60s")
	cm.viper.SetDefault("circuit_breaker.timeout", "30s")
	cm.viper.SetDefault("circuit_breaker.failure_ratio", DefaultCircuitBreakerFailureRatio)
	cm.viper.SetDefault("circuit_breaker.min_requests", DefaultCircuitBreakerMinRequests)
	cm.viper.SetDefault("circuit_breaker.on_state_change", true)
}

// WatchConfig reloads the configuration on file changes. Invalid
// updates are dropped and the last good configuration stays active.
func (cm *ConfigManager) WatchConfig(callback func(*Config)) error {
	cm.viper.WatchConfig()
	cm.viper.OnConfigChange(func(e fsnotify.Event) {
		config := &Config{}
		if err := cm.viper.Unmarshal(config); err != nil {
			return
		}

		if err := config.Validate(); err != nil {
			return
		}

		cm.config = config
		if callback != nil {
			callback(config)
		}
	})

	return nil
}

// GetConfig returns the currently loaded configuration
func (cm *ConfigManager) GetConfig() *Config { return cm.config }

// ReloadConfig reloads the configuration from disk
func (cm *ConfigManager) ReloadConfig() (*Config, error) { return cm.LoadConfig() }

// NewDefaultConfigManager creates a manager pre-seeded with defaults
func NewDefaultConfigManager() *ConfigManager {
	cm := NewConfigManager()
	cm.setDefaults()

	cm.config = &Config{
		Game:           DefaultGameConfig(),
		Redis:          DefaultRedisConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
	}
	return cm
}

// DefaultRedisConfig returns the default Redis configuration
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         DefaultRedisAddr,
		Password:     DefaultRedisPassword,
		DB:           DefaultRedisDB,
		PoolSize:     DefaultRedisPoolSize,
		MinIdleConns: DefaultRedisMinIdleConns,
		MaxRetries:   DefaultRedisMaxRetries,
		DialTimeout:  DefaultRedisDialTimeout,
		ReadTimeout:  DefaultRedisReadTimeout,
		WriteTimeout: DefaultRedisWriteTimeout,
		PoolTimeout:  DefaultRedisPoolTimeout,
		ClusterMode:  DefaultRedisClusterMode,
		TLSEnabled:   DefaultRedisTLSEnabled,
	}
}

// NewRedisClient creates a Redis client with the default configuration
func NewRedisClient() *redis.Client {
	return NewRedisClientFromConfig(DefaultRedisConfig())
}

// NewRedisClientFromConfig creates a Redis client from configuration
func NewRedisClientFromConfig(config *RedisConfig) *redis.Client {
	if config == nil {
		config = DefaultRedisConfig()
	}

	return redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolTimeout:  config.PoolTimeout,
	})
}
