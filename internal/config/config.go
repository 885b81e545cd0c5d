package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/yukikurage/rollout-ready-api/internal/constants"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	DB      DBConfig      `koanf:"db"`
	Redis   RedisConfig   `koanf:"redis"`
	Session SessionConfig `koanf:"session"`
	Storage StorageConfig `koanf:"storage"`
	Log     LogConfig     `koanf:"log"`
	CORS    CORSConfig    `koanf:"cors"`
	OpenAI  OpenAIConfig  `koanf:"openai"`
	Jobs    JobsConfig    `koanf:"jobs"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	Mode            string        `koanf:"mode"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DBConfig struct {
	Driver   string `koanf:"driver"`
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	// Path is the database file when Driver is sqlite.
	Path string `koanf:"path"`
}

type RedisConfig struct {
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	Password string `koanf:"password"`
}

type SessionConfig struct {
	Secret string        `koanf:"secret"`
	TTL    time.Duration `koanf:"ttl"`
	Secure bool          `koanf:"secure"`
}

type StorageConfig struct {
	Driver string `koanf:"driver"`
	Dir    string `koanf:"dir"`
	Bucket string `koanf:"bucket"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type CORSConfig struct {
	Origins []string `koanf:"origins"`
}

type OpenAIConfig struct {
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model"`
}

type JobsConfig struct {
	SessionCleanup string        `koanf:"session_cleanup"`
	OrphanSweep    string        `koanf:"orphan_sweep"`
	OrphanGrace    time.Duration `koanf:"orphan_grace"`
}

// sections lists the environment prefixes that map onto Config.
var sections = map[string]bool{
	"server": true, "db": true, "redis": true, "session": true, "storage": true,
	"log": true, "cors": true, "openai": true, "jobs": true,
}

// Load reads .env (if present), the YAML file named by CONFIG_FILE (if set) and
// then the environment. Environment variables win: DB_HOST maps to db.host,
// OPENAI_API_KEY to openai.api_key.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// unmarshalConf decodes durations and comma separated lists, so
// CORS_ORIGINS=http://a,http://b becomes two origins.
func unmarshalConf() koanf.UnmarshalConf {
	return koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
		},
	}
}

func envKey(s string) string {
	parts := strings.SplitN(strings.ToLower(s), "_", 2)
	if len(parts) != 2 || !sections[parts[0]] {
		return ""
	}
	return parts[0] + "." + parts[1]
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.DB.Driver == "" {
		c.DB.Driver = "mysql"
	}
	if c.DB.Host == "" {
		c.DB.Host = "localhost"
	}
	if c.DB.Port == "" {
		switch c.DB.Driver {
		case "postgres":
			c.DB.Port = "5432"
		default:
			c.DB.Port = "3306"
		}
	}
	if c.DB.User == "" {
		c.DB.User = "rollout"
	}
	if c.DB.Name == "" {
		c.DB.Name = "rollout_ready"
	}
	if c.DB.Path == "" {
		c.DB.Path = "rollout_ready.db"
	}

	if c.Redis.Port == "" {
		c.Redis.Port = "6379"
	}

	if c.Session.TTL == 0 {
		c.Session.TTL = constants.DefaultSessionTTL
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "local"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "uploads/tasks"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}

	if c.Jobs.SessionCleanup == "" {
		c.Jobs.SessionCleanup = "@hourly"
	}
	if c.Jobs.OrphanSweep == "" {
		c.Jobs.OrphanSweep = "@daily"
	}
	if c.Jobs.OrphanGrace == 0 {
		c.Jobs.OrphanGrace = time.Hour
	}
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DB.Driver)
	}

	switch c.Storage.Driver {
	case "local":
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required for the gcs driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}

	if c.Server.Mode == "release" && c.Session.Secret == "" {
		return fmt.Errorf("SESSION_SECRET must be set in release mode")
	}
	if c.Session.TTL < 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	return nil
}

// SessionSecret returns the cookie signing key, falling back to a development key outside release mode.
func (c *Config) SessionSecret() []byte {
	if c.Session.Secret == "" {
		return []byte("development-secret-change-me")
	}
	return []byte(c.Session.Secret)
}

// RedisAddr returns host:port, or "" when Redis is not configured.
func (c *Config) RedisAddr() string {
	if c.Redis.Host == "" {
		return ""
	}
	return c.Redis.Host + ":" + c.Redis.Port
}
