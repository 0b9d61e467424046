package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/harvester/browser/browsertest"
	"github.com/use-agent/harvester/config"
	"github.com/use-agent/harvester/orchestrator"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Harvest: config.HarvestConfig{
			BatchSize:    2,
			SettleDelay:  time.Millisecond,
			PollInterval: time.Millisecond,
			PollAttempts: 1,
		},
		State: config.StateConfig{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "h.db")},
	}
}

func TestAssemble_RunsAgainstHost(t *testing.T) {
	host := browsertest.New()
	host.Serve("https://www.example.it/immobile/1/", browsertest.Fixture{HTML: `<span class="price">€ 1.000</span>`})

	a, err := Assemble(testConfig(t), host)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	defer a.Close()

	final, err := a.Orchestrator.Run(context.Background(), "https://www.example.it/immobile/1/", orchestrator.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(final.Records) != 1 || *final.Records[0].Price != 1000 {
		t.Errorf("final = %+v", final)
	}
	snap, err := a.Store.Snapshot(context.Background())
	if err != nil || snap.ID != final.ID {
		t.Errorf("snapshot = %+v, %v", snap, err)
	}
}

func TestAssemble_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.State.Backend = "redis"
	if _, err := Assemble(cfg, browsertest.New()); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf).Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}

	buf.Reset()
	NewLogger(config.LogConfig{Level: "debug", Format: "json"}, &buf).Debug("shown", "k", 1)
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil || line["msg"] != "shown" {
		t.Errorf("json line = %q (%v)", buf.String(), err)
	}

	buf.Reset()
	NewLogger(config.LogConfig{Format: "text"}, &buf).Info("hello", "k", "v")
	if out := buf.String(); !strings.Contains(out, "hello") || !strings.Contains(out, "k=v") || strings.Contains(out, "\x1b[") {
		t.Errorf("tint output = %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
