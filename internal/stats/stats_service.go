package stats

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ojstats/internal/common/cache"
	"ojstats/internal/common/db"
	"ojstats/internal/common/mq"
)

// ConfigSource defines a pluggable source for stats service configuration.
type ConfigSource interface {
	LoadStatsServiceConfig(ctx context.Context) (StatsServiceConfig, error)
}

// StatsServiceConfig aggregates database, redis, kafka and tuning
// configuration.
type StatsServiceConfig struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Stats    StatsConfig
}

// DatabaseConfig mirrors MySQL settings for external configuration.
type DatabaseConfig struct {
	DSN                string        `yaml:"dsn"`
	MaxOpenConnections *int          `yaml:"maxOpenConnections"`
	MaxIdleConnections *int          `yaml:"maxIdleConnections"`
	ConnMaxLifetime    *timeDuration `yaml:"connMaxLifetime"`
	ConnMaxIdleTime    *timeDuration `yaml:"connMaxIdleTime"`
}

// RedisConfig mirrors redis settings for external configuration.
type RedisConfig struct {
	Addr            string        `yaml:"addr"`
	Password        string        `yaml:"password"`
	DB              *int          `yaml:"db"`
	MaxRetries      *int          `yaml:"maxRetries"`
	MinRetryBackoff *timeDuration `yaml:"minRetryBackoff"`
	MaxRetryBackoff *timeDuration `yaml:"maxRetryBackoff"`
	DialTimeout     *timeDuration `yaml:"dialTimeout"`
	ReadTimeout     *timeDuration `yaml:"readTimeout"`
	WriteTimeout    *timeDuration `yaml:"writeTimeout"`
	PoolSize        *int          `yaml:"poolSize"`
	MinIdleConns    *int          `yaml:"minIdleConns"`
	PoolTimeout     *timeDuration `yaml:"poolTimeout"`
	ConnMaxIdleTime *timeDuration `yaml:"connMaxIdleTime"`
	ConnMaxLifetime *timeDuration `yaml:"connMaxLifetime"`
}

// KafkaConfig mirrors kafka producer settings for external configuration.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	ClientID     string        `yaml:"clientId"`
	BatchSize    *int          `yaml:"batchSize"`
	BatchTimeout *timeDuration `yaml:"batchTimeout"`
	DialTimeout  *timeDuration `yaml:"dialTimeout"`
	WriteTimeout *timeDuration `yaml:"writeTimeout"`
}

// StatsConfig carries the statistics tuning knobs and the auth secret.
// Zero values fall back to the service defaults.
type StatsConfig struct {
	AuthSecret        string        `yaml:"authSecret"`
	IDSetTTL          *timeDuration `yaml:"idSetTtl"`
	ResultDataTTL     *timeDuration `yaml:"resultDataTtl"`
	HotProblemsTTL    *timeDuration `yaml:"hotProblemsTtl"`
	HotWindow         *timeDuration `yaml:"hotWindow"`
	HotLimit          *int          `yaml:"hotLimit"`
	HotMinPoints      *float64      `yaml:"hotMinPoints"`
	HotMaxPoints      *float64      `yaml:"hotMaxPoints"`
	RejudgeBatchLimit *int          `yaml:"rejudgeBatchLimit"`
}

// timeDuration wraps time.Duration for YAML unmarshalling.
type timeDuration struct {
	value time.Duration
}

// UnmarshalYAML supports duration strings like "5s" or "2m".
func (d *timeDuration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration failed: %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration failed: %w", err)
	}
	d.value = parsed
	return nil
}

// Duration returns the underlying time.Duration.
func (d *timeDuration) Duration() time.Duration {
	if d == nil {
		return 0
	}
	return d.value
}

// FileConfigSource loads configuration from local YAML files.
type FileConfigSource struct {
	DatabasePath string
	RedisPath    string
	KafkaPath    string
	StatsPath    string
}

// NewFileConfigSource creates a file-based config source.
func NewFileConfigSource(databasePath, redisPath, kafkaPath, statsPath string) *FileConfigSource {
	return &FileConfigSource{
		DatabasePath: databasePath,
		RedisPath:    redisPath,
		KafkaPath:    kafkaPath,
		StatsPath:    statsPath,
	}
}

// LoadStatsServiceConfig reads all configuration sections from files.
func (f *FileConfigSource) LoadStatsServiceConfig(ctx context.Context) (StatsServiceConfig, error) {
	if f == nil {
		return StatsServiceConfig{}, errors.New("config source cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return StatsServiceConfig{}, fmt.Errorf("context error before config load: %w", err)
	}
	if f.DatabasePath == "" || f.RedisPath == "" || f.KafkaPath == "" || f.StatsPath == "" {
		return StatsServiceConfig{}, errors.New("config file paths cannot be empty")
	}

	var cfg StatsServiceConfig
	if err := readYAMLFile(f.DatabasePath, &cfg.Database); err != nil {
		return StatsServiceConfig{}, fmt.Errorf("load database config failed: %w", err)
	}
	if err := readYAMLFile(f.RedisPath, &cfg.Redis); err != nil {
		return StatsServiceConfig{}, fmt.Errorf("load redis config failed: %w", err)
	}
	if err := readYAMLFile(f.KafkaPath, &cfg.Kafka); err != nil {
		return StatsServiceConfig{}, fmt.Errorf("load kafka config failed: %w", err)
	}
	if err := readYAMLFile(f.StatsPath, &cfg.Stats); err != nil {
		return StatsServiceConfig{}, fmt.Errorf("load stats config failed: %w", err)
	}
	return cfg, nil
}

// Dependencies contains initialized infrastructure for the stats service.
type Dependencies struct {
	Database db.Database
	Cache    cache.Cache
	Producer mq.Producer
	Config   StatsServiceConfig
}

// Close releases initialized resources.
func (d *Dependencies) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.Producer != nil {
		if err := d.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka producer failed: %w", err))
		}
	}
	if d.Cache != nil {
		if err := d.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis cache failed: %w", err))
		}
	}
	if d.Database != nil {
		if err := d.Database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database failed: %w", err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// InitStatsService initializes database, redis and kafka clients from the
// given config source.
func InitStatsService(ctx context.Context, source ConfigSource) (*Dependencies, error) {
	if source == nil {
		return nil, errors.New("config source cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error before initialization: %w", err)
	}

	cfg, err := source.LoadStatsServiceConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Stats.AuthSecret == "" {
		return nil, errors.New("auth secret cannot be empty")
	}

	dbConfig, err := cfg.Database.toMySQLConfig()
	if err != nil {
		return nil, err
	}
	database, err := db.NewMySQLWithConfig(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("init database failed: %w", err)
	}

	redisConfig, err := cfg.Redis.toRedisConfig()
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	redisCache, err := cache.NewRedisCacheWithConfig(redisConfig)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("init redis failed: %w", err)
	}

	kafkaConfig, err := cfg.Kafka.toKafkaConfig()
	if err != nil {
		_ = redisCache.Close()
		_ = database.Close()
		return nil, err
	}
	producer, err := mq.NewKafkaProducer(kafkaConfig)
	if err != nil {
		_ = redisCache.Close()
		_ = database.Close()
		return nil, fmt.Errorf("init kafka producer failed: %w", err)
	}

	return &Dependencies{
		Database: database,
		Cache:    redisCache,
		Producer: producer,
		Config:   cfg,
	}, nil
}

func (c DatabaseConfig) toMySQLConfig() (*db.MySQLConfig, error) {
	if c.DSN == "" {
		return nil, errors.New("database DSN cannot be empty")
	}

	config := db.DefaultMySQLConfig()
	config.DSN = c.DSN
	if c.MaxOpenConnections != nil {
		config.MaxOpenConnections = *c.MaxOpenConnections
	}
	if c.MaxIdleConnections != nil {
		config.MaxIdleConnections = *c.MaxIdleConnections
	}
	if c.ConnMaxLifetime != nil {
		config.ConnMaxLifetime = c.ConnMaxLifetime.Duration()
	}
	if c.ConnMaxIdleTime != nil {
		config.ConnMaxIdleTime = c.ConnMaxIdleTime.Duration()
	}
	return config, nil
}

func (c RedisConfig) toRedisConfig() (*cache.RedisConfig, error) {
	if c.Addr == "" {
		return nil, errors.New("redis addr cannot be empty")
	}

	config := cache.DefaultRedisConfig()
	config.Addr = c.Addr
	config.Password = c.Password
	if c.DB != nil {
		config.DB = *c.DB
	}
	if c.MaxRetries != nil {
		config.MaxRetries = *c.MaxRetries
	}
	if c.MinRetryBackoff != nil {
		config.MinRetryBackoff = c.MinRetryBackoff.Duration()
	}
	if c.MaxRetryBackoff != nil {
		config.MaxRetryBackoff = c.MaxRetryBackoff.Duration()
	}
	if c.DialTimeout != nil {
		config.DialTimeout = c.DialTimeout.Duration()
	}
	if c.ReadTimeout != nil {
		config.ReadTimeout = c.ReadTimeout.Duration()
	}
	if c.WriteTimeout != nil {
		config.WriteTimeout = c.WriteTimeout.Duration()
	}
	if c.PoolSize != nil {
		config.PoolSize = *c.PoolSize
	}
	if c.MinIdleConns != nil {
		config.MinIdleConns = *c.MinIdleConns
	}
	if c.PoolTimeout != nil {
		config.PoolTimeout = c.PoolTimeout.Duration()
	}
	if c.ConnMaxIdleTime != nil {
		config.ConnMaxIdleTime = c.ConnMaxIdleTime.Duration()
	}
	if c.ConnMaxLifetime != nil {
		config.ConnMaxLifetime = c.ConnMaxLifetime.Duration()
	}
	return config, nil
}

func (c KafkaConfig) toKafkaConfig() (mq.KafkaConfig, error) {
	if len(c.Brokers) == 0 {
		return mq.KafkaConfig{}, errors.New("kafka brokers cannot be empty")
	}

	config := mq.KafkaConfig{
		Brokers:  c.Brokers,
		ClientID: c.ClientID,
	}
	if c.BatchSize != nil {
		config.BatchSize = *c.BatchSize
	}
	if c.BatchTimeout != nil {
		config.BatchTimeout = c.BatchTimeout.Duration()
	}
	if c.DialTimeout != nil {
		config.DialTimeout = c.DialTimeout.Duration()
	}
	if c.WriteTimeout != nil {
		config.WriteTimeout = c.WriteTimeout.Duration()
	}
	return config, nil
}

func readYAMLFile(path string, target interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal yaml failed: %w", err)
	}
	return nil
}

// IntOrDefault dereferences an optional int config value.
func IntOrDefault(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// FloatOrDefault dereferences an optional float config value.
func FloatOrDefault(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// DurationOrDefault dereferences an optional duration config value.
func DurationOrDefault(v *timeDuration) time.Duration {
	return v.Duration()
}
