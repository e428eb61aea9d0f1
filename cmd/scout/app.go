package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"scout/internal/agent"
	"scout/internal/cli"
	"scout/internal/config"
	"scout/internal/hook"
	"scout/internal/hook/handlers"
	"scout/internal/llm/openai"
	"scout/internal/logger"
	"scout/internal/mcp"
	"scout/internal/schema"
	"scout/internal/store"
	"scout/internal/tool"
	"scout/internal/tool/builtin"
	"scout/internal/tracing"
)

type appOptions struct {
	// requireModel fails early when no API key is configured.
	requireModel bool
	// storeOnly skips tools, MCP servers and the model client.
	storeOnly      bool
	conversationID string
}

// app is everything one CLI invocation needs.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	out      *cli.StreamingWriter
	stdin    *bufio.Reader
	registry *tool.Registry
	mcp      *mcp.Manager
	store    store.Store
	agent    *agent.Agent
	session  *session
	shutdown tracing.ShutdownFunc
}

func newApp(ctx context.Context, f *flags, opts appOptions) (*app, error) {
	cfg, err := loadConfig(f)
	if err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if f.verbose {
		level = logger.LevelDebug
	}
	color := !f.noColor && term.IsTerminal(int(os.Stdout.Fd()))

	log := logger.NewLogger(os.Stderr, level)
	log.SetColorMode(color)
	out := cli.NewStreamingWriter(os.Stdout)
	out.SetColorMode(color)

	a := &app{
		cfg:      cfg,
		log:      log,
		out:      out,
		stdin:    bufio.NewReader(os.Stdin),
		registry: tool.NewRegistry(),
		shutdown: func(context.Context) error { return nil },
	}
	a.mcp = mcp.NewManager(a.registry)

	if a.store, err = store.Open(cfg.Store); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if opts.storeOnly {
		return a, nil
	}

	if opts.requireModel && cfg.Model.APIKey == "" {
		a.Close()
		return nil, fmt.Errorf("OpenAI API key required (set OPENAI_API_KEY, model.api_key or use --api-key)")
	}

	shutdown, err := tracing.Setup(ctx, cfg.Tracing, version)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.shutdown = shutdown

	if err := a.registerTools(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if err := a.buildAgent(); err != nil {
		a.Close()
		return nil, err
	}

	if opts.conversationID != "" {
		if a.session, err = openSession(ctx, a.store, a.agent, opts.conversationID, cfg.Agent.HistoryLimit); err != nil {
			a.Close()
			return nil, err
		}
		log.Debug("Conversation %s (%d messages)", opts.conversationID, len(a.agent.History()))
	}

	return a, nil
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(f *flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.Load(f.configPath)
	} else {
		cfg, err = config.LoadWithDefaults()
	}
	if err != nil {
		return nil, err
	}

	if f.apiKey != "" {
		cfg.Model.APIKey = f.apiKey
	}
	if f.apiBaseURL != "" {
		cfg.Model.BaseURL = f.apiBaseURL
	}
	if f.model != "" {
		cfg.Model.Name = f.model
	}
	if f.maxRounds != 0 {
		cfg.Agent.MaxRounds = f.maxRounds
	}
	return cfg, cfg.Validate()
}

// registerTools registers the built-in research tools that are configured
// and the tools of the MCP servers.
func (a *app) registerTools(ctx context.Context) error {
	tc := a.cfg.Tools

	var tools []tool.Tool
	if tc.Handbook.Path != "" {
		tools = append(tools, builtin.NewSearchHandbookTool(tc.Handbook.Path, tc.Handbook.MaxSections))
	}
	if !tc.WebPage.Disabled {
		tools = append(tools, builtin.NewGetWebPageTool(
			builtin.WithHTTPClient(newHTTPClient(tc.WebPage.Timeout)),
			builtin.WithMaxChars(tc.WebPage.MaxChars),
			builtin.WithMaxBytes(tc.WebPage.MaxBytes),
		))
	}
	if tc.WebSearch.BaseURL != "" {
		provider := builtin.NewSearXNG(tc.WebSearch.BaseURL, tc.WebSearch.Language)
		tools = append(tools, builtin.NewWebSearchTool(provider, tc.WebSearch.AllowedDomains, tc.WebSearch.Count))
	}
	for _, t := range tools {
		if err := a.registry.Register(t); err != nil {
			return err
		}
	}

	// Servers that fail to start are skipped; the others stay usable.
	if err := a.mcp.Initialize(ctx, a.cfg.MCP); err != nil {
		a.log.Warn("%v", err)
	}

	names := make([]string, 0, a.registry.Len())
	for _, t := range a.registry.List() {
		names = append(names, t.Name())
	}
	a.log.Debug("Registered %d tools: %s", len(names), strings.Join(names, ", "))
	return nil
}

func (a *app) buildAgent() error {
	mc := a.cfg.Model
	client := openai.NewClient(mc.APIKey, mc.Name,
		openai.WithBaseURL(mc.BaseURL),
		openai.WithRateLimit(mc.RequestsPerMinute, mc.Burst),
	)

	hooks := hook.NewManager()
	if len(a.cfg.Tools.Confirm) > 0 {
		hooks.Register(handlers.NewToolConfirmHandlerWithIO(a.stdin, os.Stdout, a.cfg.Tools.Confirm...))
	}
	if a.cfg.Tools.ConfirmAnswer {
		hooks.Register(handlers.NewAnswerConfirmHandlerWithIO(a.stdin, os.Stdout))
	}

	ac := a.cfg.Agent
	mode := tool.ExecutionModeSequential
	if ac.ParallelTools {
		mode = tool.ExecutionModeParallel
	}

	opts := []agent.Option{
		agent.WithMaxRounds(ac.MaxRounds),
		agent.WithExecutionMode(mode, ac.Concurrency),
		agent.WithHookManager(hooks),
		agent.WithLogger(a.log),
		agent.WithTemperature(mc.Temperature),
		agent.WithMaxTokens(mc.MaxTokens),
		agent.WithReRequestOnText(ac.ReRequestOnText),
		agent.WithChunkWords(ac.ChunkWords),
	}
	if ac.SystemPrompt != "" {
		opts = append(opts, agent.WithSystemPrompt(ac.SystemPrompt))
	}

	ag, err := agent.New(client, a.registry, opts...)
	if err != nil {
		return err
	}
	a.agent = ag
	a.log.Debug("Agent created (model: %s, max_rounds=%d, tools=%d)", mc.Name, ac.MaxRounds, a.registry.Len())
	return nil
}

// ask answers one question, prints it and saves the new messages.
func (a *app) ask(ctx context.Context, query string, stream bool) error {
	before := len(a.agent.History())

	var err error
	if stream {
		err = a.askStreaming(ctx, query)
	} else {
		err = a.askPlain(ctx, query)
	}
	if err != nil {
		return err
	}

	if a.session != nil {
		if err := a.session.persist(ctx, before); err != nil {
			a.log.Warn("Conversation not saved: %v", err)
		}
	}
	return nil
}

func (a *app) askPlain(ctx context.Context, query string) error {
	progress := cli.NewProgressIndicator(a.out)
	if a.log.Level() > logger.LevelInfo {
		progress.Start("Thinking...")
	}
	ans, err := a.agent.Ask(ctx, query)
	progress.Stop()
	if err != nil {
		return err
	}

	a.out.RenderToolCalls(a.agent.LastToolCalls())
	a.out.RenderAnswer(ans)
	return nil
}

func (a *app) askStreaming(ctx context.Context, query string) error {
	chunks := make(chan string)
	type result struct {
		ans *schema.Answer
		err error
	}
	done := make(chan result, 1)
	go func() {
		ans, err := a.agent.AskStream(ctx, query, chunks)
		done <- result{ans, err}
	}()

	// The answer has validated once the first chunk arrives, so the tool
	// calls are final and can be shown ahead of the text.
	first, ok := <-chunks
	if !ok {
		// Either the question failed or the answer text is empty.
		r := <-done
		if r.err != nil {
			return r.err
		}
		a.out.RenderToolCalls(a.agent.LastToolCalls())
		a.out.RenderAnswer(r.ans)
		return nil
	}
	a.out.RenderToolCalls(a.agent.LastToolCalls())

	rest := make(chan string, 1)
	rest <- first
	go func() {
		defer close(rest)
		for c := range chunks {
			select {
			case rest <- c:
			case <-ctx.Done():
			}
		}
	}()
	if _, err := a.out.RenderChunks(ctx, rest); err != nil {
		return err
	}

	r := <-done
	if r.err != nil {
		return r.err
	}
	a.out.RenderCitations(r.ans.Citations)
	return nil
}

func (a *app) listConversations(ctx context.Context) error {
	if a.store == nil {
		return errors.New("conversation storage is disabled (store.driver: none)")
	}
	list, err := a.store.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.out.WriteLine("No stored conversations.")
		return nil
	}
	for _, c := range list {
		a.out.WriteLine(fmt.Sprintf("%s  %3d messages  %s", c.ID, c.Messages, c.UpdatedAt.Format(time.DateTime)))
	}
	return nil
}

func (a *app) showConversation(ctx context.Context, id string) error {
	if a.store == nil {
		return errors.New("conversation storage is disabled (store.driver: none)")
	}
	msgs, err := a.store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("conversation %s: %w", id, err)
	}
	a.out.RenderConversation(msgs)
	return nil
}

// Close releases the store, MCP sessions and tracing exporter.
func (a *app) Close() {
	if a.mcp != nil {
		if err := a.mcp.Close(); err != nil {
			a.log.Warn("closing MCP servers: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing store: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.log.Warn("flushing traces: %v", err)
	}
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
