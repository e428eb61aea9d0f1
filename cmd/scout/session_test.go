package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"scout/internal/agent"
	"scout/internal/cli"
	"scout/internal/llm/llmtest"
	"scout/internal/store"
	"scout/internal/tool"
)

func newTestAgent(t *testing.T, client *llmtest.Client) *agent.Agent {
	t.Helper()
	ag, err := agent.New(client, tool.NewRegistry())
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	return ag
}

func TestSession_PersistAndResume(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewMemoryStore(4)
	if err != nil {
		t.Fatal(err)
	}

	ag := newTestAgent(t, llmtest.NewClient(llmtest.Text("first answer")))
	s, err := openSession(ctx, st, ag, "conv-1", 0)
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}

	before := len(ag.History())
	if _, err := ag.Ask(ctx, "first question"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if err := s.persist(ctx, before); err != nil {
		t.Fatalf("persist: %v", err)
	}

	// A new agent resumes the stored conversation.
	client := llmtest.NewClient(llmtest.Text("second answer"))
	resumed := newTestAgent(t, client)
	if _, err := openSession(ctx, st, resumed, "conv-1", 0); err != nil {
		t.Fatalf("openSession: %v", err)
	}
	if got := len(resumed.History()); got != 2 {
		t.Fatalf("resumed history has %d messages, want 2", got)
	}
	if _, err := resumed.Ask(ctx, "second question"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if sent := client.Requests()[0].Messages; len(sent) != 3 || sent[1].Content != "first answer" {
		t.Errorf("resumed request messages = %+v", sent)
	}
}

func TestSession_ResetDeletesStoredConversation(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "scout.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	ag := newTestAgent(t, llmtest.NewClient(llmtest.Text("answer")))
	s, err := openSession(ctx, st, ag, "conv-2", 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ag.Ask(ctx, "question"); err != nil {
		t.Fatal(err)
	}
	if err := s.persist(ctx, 0); err != nil {
		t.Fatal(err)
	}

	if err := s.reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(ag.History()) != 0 {
		t.Error("agent history not cleared")
	}
	if _, err := st.Load(ctx, "conv-2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Load after reset = %v, want ErrNotFound", err)
	}
}

func TestSession_LimitCompactsHistory(t *testing.T) {
	ctx := context.Background()
	ag := newTestAgent(t, llmtest.NewClient(llmtest.Text("a1"), llmtest.Text("a2")))
	s, err := openSession(ctx, nil, ag, "conv-3", 2)
	if err != nil {
		t.Fatal(err)
	}

	for _, q := range []string{"q1", "q2"} {
		before := len(ag.History())
		if _, err := ag.Ask(ctx, q); err != nil {
			t.Fatal(err)
		}
		if err := s.persist(ctx, before); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(ag.History()); got != 2 {
		t.Errorf("history has %d messages, want 2", got)
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scout.yaml")
	writeFile(t, path, "model:\n  name: from-file\nagent:\n  max_rounds: 3\n")

	cfg, err := loadConfig(&flags{configPath: path, model: "from-flag", apiKey: "sk-flag"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Model.Name != "from-flag" || cfg.Model.APIKey != "sk-flag" {
		t.Errorf("model = %+v", cfg.Model)
	}
	if cfg.Agent.MaxRounds != 3 {
		t.Errorf("max rounds = %d, want 3 from file", cfg.Agent.MaxRounds)
	}

	if _, err := loadConfig(&flags{configPath: path, maxRounds: -2}); err == nil {
		t.Error("expected validation error for negative max rounds")
	}
}

func TestAskStreaming_RendersTextAndCitations(t *testing.T) {
	var buf bytes.Buffer
	a := &app{
		out: cli.NewStreamingWriter(&buf),
		agent: newTestAgent(t, llmtest.NewClient(llmtest.Answer(map[string]any{
			"answer":    "IAMA is required.",
			"citations": []map[string]string{{"text": "IAMA is mandatory", "source": "3.2"}},
		}))),
	}

	if err := a.askStreaming(context.Background(), "Is IAMA required?"); err != nil {
		t.Fatalf("askStreaming: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"No tools needed", "IAMA is required.", "Citations:", "3.2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAskStreaming_EmptyAnswerStillRendersCitations(t *testing.T) {
	var buf bytes.Buffer
	a := &app{
		out: cli.NewStreamingWriter(&buf),
		agent: newTestAgent(t, llmtest.NewClient(llmtest.Answer(map[string]any{
			"answer":    "",
			"citations": []map[string]string{{"text": "See the handbook", "source": "1.1"}},
		}))),
	}

	if err := a.askStreaming(context.Background(), "Anything?"); err != nil {
		t.Fatalf("askStreaming: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"No tools needed", "Assistant:", "Citations:", "1.1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAskStreaming_ReturnsQuestionError(t *testing.T) {
	var buf bytes.Buffer
	a := &app{
		out:   cli.NewStreamingWriter(&buf),
		agent: newTestAgent(t, llmtest.NewClient(llmtest.Fail(errors.New("endpoint down")))),
	}

	if err := a.askStreaming(context.Background(), "Anything?"); err == nil || !strings.Contains(err.Error(), "endpoint down") {
		t.Fatalf("askStreaming error = %v", err)
	}
	if strings.Contains(buf.String(), "Assistant:") {
		t.Errorf("failed question rendered output:\n%s", buf.String())
	}
}
