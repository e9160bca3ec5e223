package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// Config holds application level configuration merged from config files and environment variables.
type Config struct {
	Env      string         `mapstructure:"-"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Faucet   FaucetConfig   `mapstructure:"faucet"`
	Mail     MailConfig     `mapstructure:"mail"`
	Log      LogConfig      `mapstructure:"log"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type ServerConfig struct {
	Port               int           `mapstructure:"port"`
	SwaggerHost        string        `mapstructure:"swaggerHost"`
	CORSOrigins        []string      `mapstructure:"corsOrigins"`
	RateLimitPerMinute int           `mapstructure:"rateLimitPerMinute"`
	TrustedProxies     []string      `mapstructure:"trustedProxies"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdownTimeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// FaucetConfig controls payouts. Amounts are in satoshis.
type FaucetConfig struct {
	SatsToSend     int64         `mapstructure:"satsToSend"`
	SatsPerHour    int64         `mapstructure:"satsPerHour"`
	SatsPerByte    int64         `mapstructure:"satsPerByte"`
	AppAddress     string        `mapstructure:"appAddress"`
	Network        string        `mapstructure:"network"`
	WalletFile     string        `mapstructure:"walletFile"`
	APIServer      string        `mapstructure:"apiServer"`
	APIToken       string        `mapstructure:"apiToken"`
	APITimeout     time.Duration `mapstructure:"apiTimeout"`
	AllowedOrigins []string      `mapstructure:"allowedOrigins"`
	IPBlacklist    []string      `mapstructure:"ipBlacklist"`
	IPRetention    time.Duration `mapstructure:"ipRetention"`
	SweepInterval  time.Duration `mapstructure:"sweepInterval"`
	CounterBackend string        `mapstructure:"counterBackend"`
}

type MailConfig struct {
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	Username         string `mapstructure:"username"`
	Password         string `mapstructure:"password"`
	From             string `mapstructure:"from"`
	DefaultRecipient string `mapstructure:"defaultRecipient"`
}

type LogConfig struct {
	Dir       string        `mapstructure:"dir"`
	App       string        `mapstructure:"app"`
	Level     string        `mapstructure:"level"`
	Retention time.Duration `mapstructure:"retention"`
	Password  string        `mapstructure:"password"`
}

type AdminConfig struct {
	Username       string `mapstructure:"username"`
	Email          string `mapstructure:"email"`
	CredentialsDir string `mapstructure:"credentialsDir"`
}

// Load reads config/common.yaml, merges config/<env>.yaml over it and applies FAUCET_* overrides.
// The profile is chosen by FAUCET_ENV and defaults to development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env, err := normalizeEnv(getEnv("FAUCET_ENV", EnvDevelopment))
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.AddConfigPath(getEnv("FAUCET_CONFIG_DIR", "config"))

	v.SetConfigName("common")
	if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("read common config: %w", err)
	}
	v.SetConfigName(env)
	if err := v.MergeInConfig(); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("read %s config: %w", env, err)
	}

	v.SetEnvPrefix("FAUCET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Env = env

	if cfg.Faucet.SatsPerHour == 0 {
		cfg.Faucet.SatsPerHour = cfg.Faucet.SatsToSend * 10
	}
	if cfg.JWT.Secret == "" {
		return nil, errors.New("jwt.secret is required")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 7654)
	v.SetDefault("server.swaggerHost", "")
	v.SetDefault("server.corsOrigins", []string{"*"})
	v.SetDefault("server.rateLimitPerMinute", 60)
	v.SetDefault("server.trustedProxies", []string{})
	v.SetDefault("server.shutdownTimeout", 10*time.Second)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "user:password@tcp(localhost:3306)/bchfaucet?charset=utf8mb4&parseTime=True&loc=Local")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "change-me")
	v.SetDefault("jwt.ttl", 0)

	v.SetDefault("faucet.satsToSend", 1000000)
	v.SetDefault("faucet.satsPerHour", 0)
	v.SetDefault("faucet.satsPerByte", 1)
	v.SetDefault("faucet.appAddress", "bchtest:qqmd9unmhkpx4pkmr6fkrr8rm6y77vckjvqe8aey35")
	v.SetDefault("faucet.network", "testnet")
	v.SetDefault("faucet.walletFile", "wallet.json")
	v.SetDefault("faucet.apiServer", "https://api.fullstack.cash/v3/")
	v.SetDefault("faucet.apiToken", "")
	v.SetDefault("faucet.apiTimeout", 15*time.Second)
	v.SetDefault("faucet.allowedOrigins", []string{})
	v.SetDefault("faucet.ipBlacklist", []string{})
	v.SetDefault("faucet.ipRetention", 24*time.Hour)
	v.SetDefault("faucet.sweepInterval", time.Hour)
	v.SetDefault("faucet.counterBackend", "memory")

	v.SetDefault("mail.host", "localhost")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "noreply@bch-faucet.dev")
	v.SetDefault("mail.defaultRecipient", "")

	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.app", "faucet")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.retention", 5*24*time.Hour)
	v.SetDefault("log.password", "test")

	v.SetDefault("admin.username", "system")
	v.SetDefault("admin.email", "system@bch-faucet.dev")
	v.SetDefault("admin.credentialsDir", "config")
}

func normalizeEnv(env string) (string, error) {
	switch strings.ToLower(env) {
	case "dev", EnvDevelopment:
		return EnvDevelopment, nil
	case EnvTest:
		return EnvTest, nil
	case "prod", EnvProduction:
		return EnvProduction, nil
	default:
		return "", fmt.Errorf("unknown FAUCET_ENV %q", env)
	}
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound)
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}
