package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig                 `yaml:"app"`
	Gateways  map[string]GatewayConfig  `yaml:"gateways"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Relays    []RelayConfig             `yaml:"relays"`
	Agent     AgentConfig               `yaml:"agent"`
	Render    RenderConfig              `yaml:"render"`
	Memory    MemoryConfig              `yaml:"memory"`
}

type AppConfig struct {
	Name string `yaml:"name"`
}

type GatewayConfig struct {
	Token   string `yaml:"token"`
	Enabled bool   `yaml:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url,omitempty"`
	Enabled bool   `yaml:"enabled"`
}

// RelayConfig describes one outbound fetch relay. Endpoint is a template
// containing %s for the url-encoded target.
type RelayConfig struct {
	Name      string `yaml:"name"`
	Endpoint  string `yaml:"endpoint"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

func (r RelayConfig) Timeout() time.Duration {
	if r.TimeoutMS <= 0 {
		return 20 * time.Second
	}
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

type AgentConfig struct {
	// Planner selects the planning strategy: "template" (default) or
	// "freeform".
	Planner       string `yaml:"planner"`
	ChunkSize     int    `yaml:"chunk_size"`
	MaxChunks     int    `yaml:"max_chunks"`
	MaxReadTotal  int    `yaml:"max_read_total"`
	SummaryBudget int    `yaml:"summary_budget"`
	ReadsPerTerm  int    `yaml:"reads_per_term"`
	LoopThreshold int    `yaml:"loop_threshold"`
}

type RenderConfig struct {
	Enabled   bool `yaml:"enabled"`
	TimeoutMS int  `yaml:"timeout_ms"`
}

type MemoryConfig struct {
	Path string `yaml:"path"`
}

func LoadConfig(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("failed to decode config file: %v", err)
	}
	return &cfg
}

// GetDefaultProvider returns the first enabled provider
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	for name, p := range c.Providers {
		if p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetGateway returns a gateway config if enabled
func (c *Config) GetGateway(name string) (GatewayConfig, bool) {
	gw, ok := c.Gateways[name]
	if ok && gw.Enabled && gw.Token != "" {
		return gw, true
	}
	return GatewayConfig{}, false
}
