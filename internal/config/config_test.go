package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":8090" {
		t.Errorf("expected default address :8090, got %s", cfg.Server.Address)
	}
	if cfg.Assistant.ProviderTimeout != 15*time.Second {
		t.Errorf("expected 15s timeout, got %s", cfg.Assistant.ProviderTimeout)
	}
	if !reflect.DeepEqual(cfg.Assistant.ProviderOrder, []string{"local", "hosted"}) {
		t.Errorf("unexpected provider order %v", cfg.Assistant.ProviderOrder)
	}
	local, ok := cfg.Provider("local")
	if !ok || !local.Enabled || local.Kind != KindLocal || local.BaseURL == "" {
		t.Errorf("unexpected local provider %+v", local)
	}
	if openai, _ := cfg.Provider("openai"); openai.Enabled {
		t.Errorf("openai must be disabled by default")
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("expected 10m cache ttl, got %s", cfg.Cache.TTL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MEDCHAT_ASSISTANT_RULE_BASED_ONLY", "true")
	t.Setenv("MEDCHAT_ASSISTANT_PROVIDER_ORDER", "hosted,local")
	t.Setenv("MEDCHAT_ASSISTANT_PROVIDER_TIMEOUT", "3s")
	t.Setenv("MEDCHAT_PROVIDERS_LOCAL_ENABLED", "false")
	t.Setenv("MEDCHAT_PROVIDERS_LOCAL_BASE_URL", "http://inference:8080/v1/chat")
	t.Setenv("MEDCHAT_PROVIDERS_HOSTED_API_KEY", "hf_secret")
	t.Setenv("MEDCHAT_SERVER_ADDRESS", ":9999")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Assistant.RuleBasedOnly {
		t.Errorf("expected rule-based override")
	}
	if !reflect.DeepEqual(cfg.Assistant.ProviderOrder, []string{"hosted", "local"}) {
		t.Errorf("unexpected provider order %v", cfg.Assistant.ProviderOrder)
	}
	if cfg.Assistant.ProviderTimeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %s", cfg.Assistant.ProviderTimeout)
	}
	local, _ := cfg.Provider("local")
	if local.Enabled || local.BaseURL != "http://inference:8080/v1/chat" {
		t.Errorf("unexpected local provider %+v", local)
	}
	if hosted, _ := cfg.Provider("hosted"); hosted.APIKey != "hf_secret" {
		t.Errorf("expected hosted api key from env")
	}
	if cfg.Server.Address != ":9999" {
		t.Errorf("expected address from env, got %s", cfg.Server.Address)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medchat.json")
	body := `{
		"assistant": {"provider_order": ["openai"], "context_window": 4},
		"providers": {"openai": {"enabled": true, "api_key": "sk-test"}},
		"log": {"level": "debug", "format": "console"}
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	openai, _ := cfg.Provider("openai")
	if !openai.Enabled || openai.APIKey != "sk-test" || openai.Kind != KindOpenAI {
		t.Errorf("unexpected openai provider %+v", openai)
	}
	if cfg.Assistant.ContextWindow != 4 || cfg.Log.Format != "console" {
		t.Errorf("file values not applied: %+v %+v", cfg.Assistant, cfg.Log)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		return cfg
	}
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown order", func(c *Config) { c.Assistant.ProviderOrder = []string{"nope"} }, "unknown provider"},
		{"bad kind", func(c *Config) { c.Providers["local"] = ProviderConfig{Kind: "grpc"} }, "not supported"},
		{"zero timeout", func(c *Config) { c.Assistant.ProviderTimeout = 0 }, "provider_timeout"},
		{"zero window", func(c *Config) { c.Assistant.ContextWindow = 0 }, "context_window"},
		{"bad driver", func(c *Config) { c.Database.Driver = "postgres" }, "database.driver"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tc := range cases {
		cfg := base()
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}
