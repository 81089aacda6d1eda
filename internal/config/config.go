package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, with "." in keys
// replaced by "_" (MEDCHAT_PROVIDERS_LOCAL_BASE_URL).
const EnvPrefix = "MEDCHAT"

// Provider kinds understood by the orchestrator wiring.
const (
	KindLocal  = "local"
	KindHosted = "hosted"
	KindOpenAI = "openai"
	KindClaude = "claude"
	KindGemini = "gemini"
)

// Config represents runtime configuration for the service.
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Assistant AssistantConfig           `mapstructure:"assistant"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Database  DatabaseConfig            `mapstructure:"database"`
	Redis     RedisConfig               `mapstructure:"redis"`
	Cache     CacheConfig               `mapstructure:"cache"`
	Worker    WorkerConfig              `mapstructure:"worker"`
	Log       LogConfig                 `mapstructure:"log"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type AssistantConfig struct {
	RuleBasedOnly   bool          `mapstructure:"rule_based_only"`
	ProviderOrder   []string      `mapstructure:"provider_order"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	ContextWindow   int           `mapstructure:"context_window"`
	SystemPrompt    string        `mapstructure:"system_prompt"`
}

type ProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Kind    string `mapstructure:"kind"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Params   string `mapstructure:"params"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type WorkerConfig struct {
	Workers     int           `mapstructure:"workers"`
	MinWorkers  int           `mapstructure:"min_workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8090")

	v.SetDefault("assistant.rule_based_only", false)
	v.SetDefault("assistant.provider_order", []string{KindLocal, KindHosted})
	v.SetDefault("assistant.provider_timeout", 15*time.Second)
	v.SetDefault("assistant.context_window", 6)
	v.SetDefault("assistant.system_prompt", "")

	providerDefaults := map[string]ProviderConfig{
		KindLocal:  {Enabled: true, Kind: KindLocal, BaseURL: "http://localhost:11434/api/chat", Model: "llama3"},
		KindHosted: {Enabled: true, Kind: KindHosted, Model: "mistralai/Mistral-7B-Instruct-v0.2"},
		KindOpenAI: {Kind: KindOpenAI, Model: "gpt-4o-mini"},
		KindClaude: {Kind: KindClaude, Model: "claude-3-5-haiku-latest"},
		KindGemini: {Kind: KindGemini, Model: "gemini-2.0-flash"},
	}
	for name, p := range providerDefaults {
		prefix := "providers." + name + "."
		v.SetDefault(prefix+"enabled", p.Enabled)
		v.SetDefault(prefix+"kind", p.Kind)
		v.SetDefault(prefix+"base_url", p.BaseURL)
		v.SetDefault(prefix+"model", p.Model)
		v.SetDefault(prefix+"api_key", "")
	}

	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "medchat")
	v.SetDefault("database.params", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.ttl", 10*time.Minute)

	v.SetDefault("worker.workers", 8)
	v.SetDefault("worker.min_workers", 2)
	v.SetDefault("worker.queue_size", 256)
	v.SetDefault("worker.idle_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads defaults, then the optional file at path (JSON, YAML or TOML by
// extension), then MEDCHAT_* environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Assistant.ProviderOrder = splitOrder(cfg.Assistant.ProviderOrder)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitOrder normalises provider_order whether it came from a list or from a
// single comma separated env value.
func splitOrder(in []string) []string {
	var out []string
	for _, item := range in {
		for _, name := range strings.Split(item, ",") {
			if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Assistant.ProviderTimeout <= 0 {
		return fmt.Errorf("assistant.provider_timeout must be positive, got %s", c.Assistant.ProviderTimeout)
	}
	if c.Assistant.ContextWindow <= 0 {
		return fmt.Errorf("assistant.context_window must be positive, got %d", c.Assistant.ContextWindow)
	}
	for name, p := range c.Providers {
		switch p.Kind {
		case KindLocal, KindHosted, KindOpenAI, KindClaude, KindGemini:
		default:
			return fmt.Errorf("providers.%s.kind %q is not supported", name, p.Kind)
		}
	}
	for _, name := range c.Assistant.ProviderOrder {
		if _, ok := c.Providers[name]; !ok {
			return fmt.Errorf("assistant.provider_order references unknown provider %q", name)
		}
	}
	switch strings.ToLower(c.Database.Driver) {
	case "", "sqlite", "sqlite3", "mysql":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Redis.Enabled && c.Redis.Port <= 0 {
		return fmt.Errorf("redis.port must be positive when redis is enabled")
	}
	if c.Worker.Workers <= 0 || c.Worker.QueueSize <= 0 {
		return fmt.Errorf("worker.workers and worker.queue_size must be positive")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be \"json\" or \"console\", got %q", c.Log.Format)
	}
	return nil
}

// Provider returns the named provider config.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	p, ok := c.Providers[name]
	return p, ok
}
