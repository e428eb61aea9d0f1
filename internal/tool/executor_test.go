package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"scout/internal/hook"
	"scout/internal/llm"
)

func call(id, name, args string) *llm.ToolCall {
	return &llm.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func TestExecutor_ValidatesWholeRoundFirst(t *testing.T) {
	var runs atomic.Int32
	registry := NewRegistry()
	_ = registry.Register(&mockTool{name: "count", run: func(ctx context.Context, params json.RawMessage) (*Result, error) {
		runs.Add(1)
		return &Result{Success: true, Output: "ok"}, nil
	}})

	exec := NewExecutor(registry)
	_, err := exec.Execute(context.Background(), []*llm.ToolCall{
		call("1", "count", `{"query":"a"}`),
		call("2", "count", `{"query":1}`),
	})
	if !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", err)
	}
	if runs.Load() != 0 {
		t.Fatalf("no tool may run when any call in the round is invalid, ran %d", runs.Load())
	}

	_, err = exec.Execute(context.Background(), []*llm.ToolCall{call("3", "nope", `{}`)})
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestExecutor_FoldsFailuresAndPanics(t *testing.T) {
	registry := NewRegistry()
	_ = registry.Register(&mockTool{name: "fail", run: func(ctx context.Context, params json.RawMessage) (*Result, error) {
		return nil, errors.New("timeout")
	}})
	_ = registry.Register(&mockTool{name: "panic", run: func(ctx context.Context, params json.RawMessage) (*Result, error) {
		panic("bad state")
	}})
	_ = registry.Register(&mockTool{name: "empty", run: func(ctx context.Context, params json.RawMessage) (*Result, error) {
		return &Result{Success: true}, nil
	}})

	results, err := NewExecutor(registry).Execute(context.Background(), []*llm.ToolCall{
		call("1", "fail", `{"query":"a"}`),
		call("2", "panic", `{"query":"a"}`),
		call("3", "empty", `{"query":"a"}`),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if results[0].Result.Success || results[0].Result.Text() != "Error: timeout" {
		t.Errorf("failure not folded: %+v", results[0].Result)
	}
	if results[1].Result.Success || !strings.Contains(results[1].Result.Text(), "bad state") {
		t.Errorf("panic not folded: %+v", results[1].Result)
	}
	if results[2].Result.Text() != EmptyOutputPlaceholder {
		t.Errorf("empty output = %q", results[2].Result.Text())
	}
}

func TestExecutor_ParallelPreservesRequestOrder(t *testing.T) {
	registry := NewRegistry()
	_ = registry.Register(&mockTool{name: "sleep", run: func(ctx context.Context, params json.RawMessage) (*Result, error) {
		var args struct {
			Query string `json:"query"`
		}
		_ = json.Unmarshal(params, &args)
		// The first call finishes last.
		if args.Query == "A" {
			time.Sleep(30 * time.Millisecond)
		}
		return &Result{Success: true, Output: args.Query}, nil
	}})

	exec := NewExecutor(registry)
	exec.SetMode(ExecutionModeParallel)

	results, err := exec.Execute(context.Background(), []*llm.ToolCall{
		call("a", "sleep", `{"query":"A"}`),
		call("b", "sleep", `{"query":"B"}`),
		call("c", "sleep", `{"query":"C"}`),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for i, want := range []string{"A", "B", "C"} {
		if results[i].Result.Output != want || results[i].CallID != strings.ToLower(want) {
			t.Errorf("results[%d] = %s/%s, want %s", i, results[i].CallID, results[i].Result.Output, want)
		}
	}
}

func TestExecutor_HookDenialIsNotFatal(t *testing.T) {
	var ran bool
	registry := NewRegistry()
	_ = registry.Register(&mockTool{name: "guarded", run: func(ctx context.Context, params json.RawMessage) (*Result, error) {
		ran = true
		return &Result{Success: true, Output: "done"}, nil
	}})

	var after []string
	manager := hook.NewManager()
	manager.Register(hook.HandlerFunc{
		HandlerName: "deny",
		Point:       hook.BeforeToolExecution,
		Fn: func(ctx context.Context, data *hook.HookData) (*hook.Feedback, error) {
			return hook.DenyFeedback("not now"), nil
		},
	})
	manager.Register(hook.HandlerFunc{
		HandlerName: "after",
		Point:       hook.AfterToolExecution,
		Fn: func(ctx context.Context, data *hook.HookData) (*hook.Feedback, error) {
			after = append(after, data.ToolName)
			return nil, nil
		},
	})

	exec := NewExecutor(registry)
	exec.SetHookManager(manager)

	results, err := exec.Execute(context.Background(), []*llm.ToolCall{call("1", "guarded", `{"query":"x"}`)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ran {
		t.Fatal("denied tool must not run")
	}
	if !results[0].Denied || !strings.Contains(results[0].Result.Text(), "not now") {
		t.Errorf("unexpected result %+v", results[0].Result)
	}
	if len(after) != 0 {
		t.Errorf("after hooks must not fire for denied calls, got %v", after)
	}
}

func TestExecutor_StopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	registry := NewRegistry()
	var runs int
	_ = registry.Register(&mockTool{name: "cancel", run: func(context.Context, json.RawMessage) (*Result, error) {
		runs++
		cancel()
		return &Result{Success: true, Output: "ok"}, nil
	}})

	_, err := NewExecutor(registry).Execute(ctx, []*llm.ToolCall{
		call("1", "cancel", `{"query":"a"}`),
		call("2", "cancel", `{"query":"b"}`),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if runs != 1 {
		t.Fatalf("second call must not run after cancellation, ran %d", runs)
	}
}
