package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func plain(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(&buf, level)
	l.SetColorMode(false)
	l.SetShowTime(false)
	return l, &buf
}

func TestLogger_Levels(t *testing.T) {
	l, buf := plain(LevelTool)

	l.Debug("hidden %d", 1)
	l.Info("hidden too")
	l.Warn("careful")
	l.Error("broken")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below the level should be dropped:\n%s", out)
	}
	if !strings.Contains(out, "[WARN] careful") || !strings.Contains(out, "[ERROR] broken") {
		t.Errorf("missing messages:\n%s", out)
	}
}

func TestLogger_ToolResultIsShortened(t *testing.T) {
	l, buf := plain(LevelDebug)
	l.ToolResult("web_search", true, "one\ntwo\nthree", 1500*time.Microsecond)

	out := buf.String()
	if !strings.Contains(out, "Tool Result: web_search [✅ Success] (2ms)") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if strings.Contains(out, "three") || !strings.Contains(out, "one\ntwo\n...") {
		t.Errorf("output should be cut to two lines:\n%s", out)
	}
}

func TestShorten(t *testing.T) {
	if got := Shorten("ééééé", 2, 3); got != "ééé..." {
		t.Errorf("Shorten = %q", got)
	}
	if got := Shorten("short", 2, 10); got != "short" {
		t.Errorf("Shorten = %q", got)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("nothing")
	l.SessionEnd(time.Second, 1, 2)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"debug": LevelDebug, "": LevelInfo, "WARN": LevelWarn, "off": LevelSilent} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}
