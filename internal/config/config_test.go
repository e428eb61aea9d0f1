package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Full(t *testing.T) {
	t.Setenv("SCOUT_TEST_KEY", "sk-test")
	t.Setenv("SCOUT_TEST_TOKEN", "ghp_abc")

	cfg, err := Parse([]byte(`
log_level: debug
model:
  name: gpt-4o-mini
  api_key: ${SCOUT_TEST_KEY}
  requests_per_minute: 60
agent:
  max_rounds: 4
  parallel_tools: true
tools:
  handbook:
    path: ./handbook.md
  web_page:
    timeout: 10s
  web_search:
    base_url: http://localhost:8888
    allowed_domains: [overheid.nl, rijksoverheid.nl]
  confirm: [web_search]
  confirm_answer: true
store:
  driver: memory
mcp:
  servers:
    - name: github
      command: github-mcp
      env:
        TOKEN: "Bearer ${SCOUT_TEST_TOKEN}"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Model.APIKey != "sk-test" {
		t.Errorf("api key not expanded: %q", cfg.Model.APIKey)
	}
	if cfg.Model.Burst != 1 {
		t.Errorf("burst default = %d, want 1", cfg.Model.Burst)
	}
	if cfg.Agent.MaxRounds != 4 || !cfg.Agent.ParallelTools {
		t.Errorf("agent section = %+v", cfg.Agent)
	}
	if cfg.Tools.WebPage.Timeout != 10*time.Second {
		t.Errorf("timeout = %v", cfg.Tools.WebPage.Timeout)
	}
	if len(cfg.Tools.WebSearch.AllowedDomains) != 2 {
		t.Errorf("allowed domains = %v", cfg.Tools.WebSearch.AllowedDomains)
	}
	if cfg.MCP.Servers[0].Transport != "stdio" {
		t.Errorf("transport default = %q", cfg.MCP.Servers[0].Transport)
	}
	// MCP env is expanded when the server starts, not at load time.
	if cfg.MCP.Servers[0].Env["TOKEN"] != "Bearer ${SCOUT_TEST_TOKEN}" {
		t.Errorf("env = %v", cfg.MCP.Servers[0].Env)
	}
}

func TestDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")

	cfg := Defaults()
	if cfg.Model.Name != "gpt-4o" {
		t.Errorf("model = %q", cfg.Model.Name)
	}
	if cfg.Model.APIKey != "from-env" {
		t.Errorf("api key = %q", cfg.Model.APIKey)
	}
	if cfg.Agent.MaxRounds != 8 {
		t.Errorf("max rounds = %d", cfg.Agent.MaxRounds)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path == "" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad provider", "model: {provider: anthropic}", "unsupported provider"},
		{"negative rounds", "agent: {max_rounds: -1}", "max_rounds"},
		{"bad store", "store: {driver: postgres}", "unsupported driver"},
		{"duplicate server", "mcp: {servers: [{name: a, command: x}, {name: a, command: y}]}", "duplicate server name"},
		{"bad server name", "mcp: {servers: [{name: 'a b', command: x}]}", "invalid character"},
		{"missing command", "mcp: {servers: [{name: a}]}", "command is required"},
		{"bad transport", "mcp: {servers: [{name: a, command: x, transport: sse}]}", "unsupported transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Parse() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadWithDefaults_FindsLocalFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.WriteFile("scout.yaml", []byte("model: {name: local-model}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWithDefaults()
	if err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.Model.Name != "local-model" {
		t.Errorf("model = %q, want local-model", cfg.Model.Name)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("SCOUT_A", "1")

	tests := map[string]string{
		"${SCOUT_A}":         "1",
		"$SCOUT_A-x":         "1-x",
		"pre ${SCOUT_UNSET}": "pre ",
		"plain":              "plain",
	}
	for in, want := range tests {
		if got := ExpandEnv(in); got != want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", in, got, want)
		}
	}

	if ExpandEnvMap(nil) != nil {
		t.Error("ExpandEnvMap(nil) should be nil")
	}
	if got := ExpandEnvMap(map[string]string{"K": "${SCOUT_A}"}); got["K"] != "1" {
		t.Errorf("ExpandEnvMap = %v", got)
	}
}
