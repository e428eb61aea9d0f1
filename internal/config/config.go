// Package config loads the YAML configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Scout configuration
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Model    ModelConfig   `yaml:"model"`
	Agent    AgentConfig   `yaml:"agent"`
	Tools    ToolsConfig   `yaml:"tools"`
	Store    StoreConfig   `yaml:"store"`
	Tracing  TracingConfig `yaml:"tracing"`
	MCP      MCPConfig     `yaml:"mcp"`
}

// ModelConfig selects and tunes the model endpoint
type ModelConfig struct {
	Provider          string  `yaml:"provider"` // "openai" (any OpenAI-compatible server)
	Name              string  `yaml:"name"`
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"` // ${VAR} supported; falls back to OPENAI_API_KEY
	Temperature       float32 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	RequestsPerMinute int     `yaml:"requests_per_minute"` // 0 disables rate limiting
	Burst             int     `yaml:"burst"`
}

// AgentConfig contains loop settings
type AgentConfig struct {
	SystemPrompt    string `yaml:"system_prompt"` // empty keeps the built-in prompt
	MaxRounds       int    `yaml:"max_rounds"`
	ParallelTools   bool   `yaml:"parallel_tools"`
	Concurrency     int    `yaml:"concurrency"`
	ReRequestOnText bool   `yaml:"rerequest_on_text"`
	ChunkWords      int    `yaml:"chunk_words"`
	HistoryLimit    int    `yaml:"history_limit"` // messages kept between questions, 0 keeps all
}

// ToolsConfig configures the built-in research tools and approval prompts
type ToolsConfig struct {
	Handbook  HandbookConfig  `yaml:"handbook"`
	WebPage   WebPageConfig   `yaml:"web_page"`
	WebSearch WebSearchConfig `yaml:"web_search"`

	// Confirm lists tools that need user confirmation before they run
	Confirm []string `yaml:"confirm"`
	// ConfirmAnswer asks the user to accept every final answer
	ConfirmAnswer bool `yaml:"confirm_answer"`
}

type HandbookConfig struct {
	Path        string `yaml:"path"` // empty disables search_handbook
	MaxSections int    `yaml:"max_sections"`
}

type WebPageConfig struct {
	Disabled bool          `yaml:"disabled"`
	Timeout  time.Duration `yaml:"timeout"`
	MaxChars int           `yaml:"max_chars"`
	MaxBytes int64         `yaml:"max_bytes"`
}

type WebSearchConfig struct {
	Provider       string   `yaml:"provider"` // "searxng"
	BaseURL        string   `yaml:"base_url"` // empty disables web_search
	Language       string   `yaml:"language"`
	AllowedDomains []string `yaml:"allowed_domains"`
	Count          int      `yaml:"count"`
}

// StoreConfig selects where conversations are persisted
type StoreConfig struct {
	Driver     string `yaml:"driver"` // "sqlite", "memory" or "none"
	Path       string `yaml:"path"`
	MemorySize int    `yaml:"memory_size"`
}

// TracingConfig enables OTLP export of agent spans
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"` // host:port, empty disables export
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// MCPConfig contains MCP-specific settings
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig defines a single MCP server
type MCPServerConfig struct {
	Name      string            `yaml:"name"`      // Unique server identifier
	Transport string            `yaml:"transport"` // "stdio" (only supported initially)
	Command   string            `yaml:"command"`   // Executable to run
	Args      []string          `yaml:"args"`      // Command arguments
	Env       map[string]string `yaml:"env"`       // Environment variables with ${VAR} support
	Disabled  bool              `yaml:"disabled"`  // Skip this server if true
}

// Defaults returns the configuration used when no file is found.
func Defaults() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the YAML config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, fills defaults and
// validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with fallback to default locations
// Checks: ./scout.yaml, ./configs/scout.yaml, ~/.config/scout/scout.yaml, /etc/scout/scout.yaml
func LoadWithDefaults() (*Config, error) {
	for _, loc := range searchPaths() {
		if _, err := os.Stat(loc); err == nil {
			return Load(loc)
		}
	}

	// No config found - defaults only (not an error)
	return Defaults(), nil
}

func searchPaths() []string {
	locations := []string{
		"./scout.yaml",
		"./configs/scout.yaml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "scout", "scout.yaml"))
	}
	return append(locations, "/etc/scout/scout.yaml")
}

func (c *Config) expandEnv() {
	c.Model.APIKey = ExpandEnv(c.Model.APIKey)
	c.Model.BaseURL = ExpandEnv(c.Model.BaseURL)
	c.Tools.Handbook.Path = ExpandEnv(c.Tools.Handbook.Path)
	c.Tools.WebSearch.BaseURL = ExpandEnv(c.Tools.WebSearch.BaseURL)
	c.Store.Path = ExpandEnv(c.Store.Path)
	c.Tracing.Endpoint = ExpandEnv(c.Tracing.Endpoint)
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Model.Provider == "" {
		c.Model.Provider = "openai"
	}
	if c.Model.Name == "" {
		c.Model.Name = "gpt-4o"
	}
	if c.Model.APIKey == "" {
		c.Model.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Model.RequestsPerMinute > 0 && c.Model.Burst <= 0 {
		c.Model.Burst = 1
	}

	if c.Agent.MaxRounds == 0 {
		c.Agent.MaxRounds = 8
	}
	if c.Agent.ChunkWords == 0 {
		c.Agent.ChunkWords = 3
	}

	if c.Tools.Handbook.MaxSections == 0 {
		c.Tools.Handbook.MaxSections = 5
	}
	if c.Tools.WebPage.Timeout == 0 {
		c.Tools.WebPage.Timeout = 30 * time.Second
	}
	if c.Tools.WebSearch.Provider == "" {
		c.Tools.WebSearch.Provider = "searxng"
	}
	if c.Tools.WebSearch.Count == 0 {
		c.Tools.WebSearch.Count = 5
	}

	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		c.Store.Path = defaultStorePath()
	}
	if c.Store.MemorySize == 0 {
		c.Store.MemorySize = 64
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "scout"
	}

	for i := range c.MCP.Servers {
		if c.MCP.Servers[i].Transport == "" {
			c.MCP.Servers[i].Transport = "stdio"
		}
	}
}

func defaultStorePath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "scout", "conversations.db")
	}
	return "scout.db"
}

// Validate checks config correctness
func (c *Config) Validate() error {
	if c.Model.Provider != "openai" {
		return fmt.Errorf("model: unsupported provider %q (only 'openai' is supported)", c.Model.Provider)
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("model: temperature %.2f out of range [0, 2]", c.Model.Temperature)
	}
	if c.Model.MaxTokens < 0 {
		return fmt.Errorf("model: max_tokens cannot be negative")
	}
	if c.Agent.MaxRounds < 1 {
		return fmt.Errorf("agent: max_rounds must be at least 1, got %d", c.Agent.MaxRounds)
	}
	if c.Agent.HistoryLimit < 0 {
		return fmt.Errorf("agent: history_limit cannot be negative")
	}
	if c.Tools.WebSearch.Provider != "searxng" {
		return fmt.Errorf("tools.web_search: unsupported provider %q", c.Tools.WebSearch.Provider)
	}

	switch c.Store.Driver {
	case "sqlite", "memory", "none":
	default:
		return fmt.Errorf("store: unsupported driver %q", c.Store.Driver)
	}

	// Check for duplicate server names
	names := make(map[string]bool)
	for i, server := range c.MCP.Servers {
		if server.Name == "" {
			return fmt.Errorf("server #%d: name cannot be empty", i+1)
		}

		if names[server.Name] {
			return fmt.Errorf("duplicate server name: %s", server.Name)
		}
		names[server.Name] = true

		if err := server.Validate(); err != nil {
			return fmt.Errorf("server %s: %w", server.Name, err)
		}
	}

	return nil
}

// Validate checks a single server config
func (s *MCPServerConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	// Server names prefix tool names, which must match ^[a-zA-Z0-9_-]+$
	for _, ch := range s.Name {
		if !((ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' || ch == '-') {
			return fmt.Errorf("server name '%s' contains invalid character '%c' (only alphanumeric, underscore, and hyphen allowed)", s.Name, ch)
		}
	}

	if s.Transport != "stdio" {
		return fmt.Errorf("unsupported transport: %s (only 'stdio' is supported)", s.Transport)
	}

	if s.Command == "" {
		return fmt.Errorf("command is required")
	}

	return nil
}
