package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Provider is how the rest of the gateway reads configuration. Current
// returns the last successfully loaded snapshot; Reload re-reads the
// backing source. Services call Reload at every decision point that an
// operator may want to change without a restart (the blacklist and the
// admin set) and fall back to Current when a reload fails mid-flight.
type Provider interface {
	Current() *Config
	Reload() (*Config, error)
}

// FileProvider loads configuration from a YAML file via viper, with
// environment overrides under the AUTHGATE_ prefix (nested keys joined
// with underscores, e.g. AUTHGATE_ICAT_URL).
type FileProvider struct {
	path string

	mu  sync.RWMutex
	cur *Config
}

// NewFileProvider reads the file once and fails fast on an unreadable or
// invalid config, so a broken deployment never starts serving.
func NewFileProvider(path string) (*FileProvider, error) {
	p := &FileProvider{path: path}
	if _, err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Current returns the last successfully loaded configuration.
func (p *FileProvider) Current() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cur
}

// Reload re-reads and validates the config file. On failure the previous
// snapshot stays in place and remains reachable through Current.
func (p *FileProvider) Reload() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(p.path)
	v.SetEnvPrefix("AUTHGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", p.path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", p.path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cur = cfg
	p.mu.Unlock()

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.env", "dev")
	v.SetDefault("api.log_level", "info")
	v.SetDefault("api.log_format", "json")
	v.SetDefault("api.shutdown_grace_seconds", 10)
	v.SetDefault("icat.certificate_validation", true)
	v.SetDefault("icat.request_timeout_seconds", 10)
	v.SetDefault("auth.jwt_algorithm", "RS256")
	v.SetDefault("auth.access_token_validity_minutes", 10)
	v.SetDefault("auth.refresh_token_validity_days", 7)
	v.SetDefault("maintenance.maintenance_path", "maintenance.json")
	v.SetDefault("maintenance.scheduled_maintenance_path", "scheduled_maintenance.json")
}

// Static wraps a fixed configuration value, for tests.
func Static(cfg *Config) *StaticProvider { return &StaticProvider{cfg: cfg} }

// StaticProvider serves a fixed config. Swap replaces it, letting tests
// change the blacklist or admin set between calls the way an operator
// edit would.
type StaticProvider struct {
	mu  sync.RWMutex
	cfg *Config
}

func (p *StaticProvider) Current() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

func (p *StaticProvider) Reload() (*Config, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg, nil
}

func (p *StaticProvider) Swap(cfg *Config) {
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}
