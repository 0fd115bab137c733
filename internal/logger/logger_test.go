package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/samvad-hq/samvad-rpc-client/internal/config"
)

func TestInitHonoursLevelAndWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	if _, err := initWithWriter(&config.Config{AppName: "t", LogLevel: "warn"}, &buf); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer func() { S = nil }()

	InfoObj("hidden", "k", 1)
	WarnObj("shown", "call", map[string]any{"kind": "no_response"})
	_ = Close()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"kind":"no_response"`) {
		t.Fatalf("missing structured warn line: %s", out)
	}
	if !strings.Contains(out, `"app":"t"`) {
		t.Fatalf("missing app field: %s", out)
	}
}

func TestHelpersAreSafeBeforeInit(t *testing.T) {
	S = nil
	InfoObj("x", "k", nil)
	Zap{}.ErrorObj("x", "k", nil)
	if err := Close(); err != nil {
		t.Fatalf("Close before Init: %v", err)
	}
}

func TestLevelOf(t *testing.T) {
	if levelOf("warning") != levelOf("warn") {
		t.Fatalf("warning should alias warn")
	}
	if levelOf("bogus") != levelOf("info") {
		t.Fatalf("unknown levels default to info")
	}
}
