package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/flowkit/internal/demo/screens"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestListCommand(t *testing.T) {
	out, err := execute(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, sc := range screens.All() {
		if !strings.Contains(out, sc.Name()) {
			t.Errorf("list output misses %s:\n%s", sc.Name(), out)
		}
	}
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "flow-on", "--tick", "1ms")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "flow-on [result] 256") {
		t.Errorf("run output misses the result:\n%s", out)
	}
}

func TestRunCommandJSON(t *testing.T) {
	out, err := execute(t, "run", "state-flow", "--tick", "1ms", "--json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var last screens.Event
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("last line is not an event: %v", err)
	}
	if last.Screen != "state-flow" || last.Value != "LongRunningTaskCompleted" {
		t.Errorf("last event = %+v", last)
	}
}

func TestRunUnknownScreen(t *testing.T) {
	if _, err := execute(t, "run", "nope"); err == nil || !strings.Contains(err.Error(), "unknown screen") {
		t.Errorf("err = %v, want unknown screen", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info map[string]any
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("version output is not JSON: %v\n%s", err, out)
	}
	if _, ok := info["go_version"]; !ok {
		t.Errorf("version output misses go_version: %v", info)
	}
}

func TestDemoConfigDefaults(t *testing.T) {
	cfg := &DemoConfig{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Name != serviceName || cfg.Tick != screens.DefaultTick {
		t.Errorf("defaults = %s / %s", cfg.Name, cfg.Tick)
	}
	if !cfg.Store.InMemory {
		t.Error("store should default to memory")
	}
	if cfg.API.Latency != 10*cfg.Tick {
		t.Errorf("api latency = %s", cfg.API.Latency)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("logging output = %s", cfg.Logging.Output)
	}
}

func TestSplitAddr(t *testing.T) {
	tests := []struct {
		addr    string
		host    string
		port    int
		wantErr bool
	}{
		{":9090", "", 9090, false},
		{"127.0.0.1:0", "127.0.0.1", 0, false},
		{"localhost", "", 0, true},
		{"host:http", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			host, port, err := splitAddr(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (host != tt.host || port != tt.port) {
				t.Errorf("got %s:%d", host, port)
			}
		})
	}
}
