package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/rconctl/internal/rcon"
	"github.com/danmuck/rconctl/internal/testutil/rcontest"
	"github.com/danmuck/rconctl/internal/testutil/testlog"
)

func TestExecCommandPrintsStrippedAnswer(t *testing.T) {
	testlog.Start(t)
	srv := rcontest.Start(t, rcontest.Options{
		Password: "pw",
		Handler: func(cmd string) ([]string, bool) {
			return []string{"§6" + cmd + "§r"}, true
		},
	})

	cmd := execCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--addr", srv.Addr(), "--password", "pw", "say", "hi"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "say hi§r" {
		t.Fatalf("unexpected output %q", got)
	}
	if cmds := srv.Commands(); len(cmds) != 1 || cmds[0] != "say hi" {
		t.Fatalf("unexpected server commands %v", cmds)
	}
}

func TestExecCommandReportsAuthFailure(t *testing.T) {
	testlog.Start(t)
	srv := rcontest.Start(t, rcontest.Options{Password: "pw"})

	cmd := execCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--addr", srv.Addr(), "--password", "wrong", "--timeout", "200ms", "list"})
	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected auth failure")
	}
}

func TestRunShellExecutesUntilExit(t *testing.T) {
	testlog.Start(t)
	srv := rcontest.Start(t, rcontest.Options{Password: "pw"})
	tgt, err := (&targetFlags{addr: srv.Addr(), password: "pw"}).resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	client, err := tgt.connect(nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	var out bytes.Buffer
	editor := newScannerEditor(strings.NewReader("list\n\n  time query  \nexit\nnever\n"), &out)
	if err := runShell(context.Background(), client, editor, &out, false); err != nil {
		t.Fatalf("shell: %v", err)
	}

	cmds := srv.Commands()
	if len(cmds) != 2 || cmds[0] != "list" || cmds[1] != "time query" {
		t.Fatalf("unexpected server commands %v", cmds)
	}
	if !strings.Contains(out.String(), "rcon> list\n") {
		t.Fatalf("expected prompt and echo in output, got %q", out.String())
	}
}

func TestConfigInitWritesTemplates(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	bridgePath := filepath.Join(dir, "bridge.toml")

	cmd := configCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"init", "--kind", "bridge", bridgePath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	cfg, err := loadBridgeConfig(bridgePath)
	if err != nil {
		t.Fatalf("load written template: %v", err)
	}
	if cfg.Profile != "local" || !cfg.StripColors {
		t.Fatalf("unexpected template values %+v", cfg)
	}

	cmd = configCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"init", "--kind", "bridge", bridgePath})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected existing file to be kept without --force")
	}
	if _, err := os.Stat(bridgePath); err != nil {
		t.Fatalf("stat: %v", err)
	}
}

func TestRunShellRecoversAfterServerRestart(t *testing.T) {
	testlog.Start(t)
	srv := rcontest.Start(t, rcontest.Options{Password: "pw"})
	addr := srv.Addr()
	tgt, err := (&targetFlags{addr: addr, password: "pw", timeout: 200 * time.Millisecond}).resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	client, err := tgt.connect(nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	srv.Close()
	deadline := time.Now().Add(2 * time.Second)
	for client.State() != rcon.StateDisconnected {
		if time.Now().After(deadline) {
			t.Fatalf("client never noticed the drop, state=%s", client.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
	var out bytes.Buffer
	editor := newScannerEditor(strings.NewReader("list\n"), &out)
	if err := runShell(context.Background(), client, editor, &out, false); err != nil {
		t.Fatalf("shell: %v", err)
	}
	if !strings.Contains(out.String(), "error:") {
		t.Fatalf("expected a reported failure while down, got %q", out.String())
	}
	if client.State() != rcon.StateUnconfigured {
		t.Fatalf("state=%s", client.State())
	}

	restarted := rcontest.Start(t, rcontest.Options{Addr: addr, Password: "pw"})
	out.Reset()
	editor = newScannerEditor(strings.NewReader("time query\n"), &out)
	if err := runShell(context.Background(), client, editor, &out, false); err != nil {
		t.Fatalf("shell: %v", err)
	}
	if !strings.Contains(out.String(), "time query\n") || strings.Contains(out.String(), "error:") {
		t.Fatalf("expected the command to go through after restart, got %q", out.String())
	}
	if cmds := restarted.Commands(); len(cmds) != 1 || cmds[0] != "time query" {
		t.Fatalf("unexpected server commands %v", cmds)
	}
}
