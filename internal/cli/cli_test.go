package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommand_Help(t *testing.T) {
	cmd := rootCmd
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("root --help failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "monitor") {
		t.Error("expected 'monitor' in help output")
	}
	for _, sub := range []string{"serve", "now", "check", "run", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected %q subcommand in help output", sub)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	SetBuildInfo("test-v0.0.1", "abc123", "2026-01-01")
	defer SetBuildInfo("dev", "none", "unknown")

	ver, _, err := rootCmd.Find([]string{"version"})
	if err != nil {
		t.Fatalf("failed to find 'version' command: %v", err)
	}
	if ver.Use != "version" {
		t.Errorf("expected Use='version', got %q", ver.Use)
	}
	if version != "test-v0.0.1" {
		t.Errorf("expected version 'test-v0.0.1', got %q", version)
	}
}

func TestRootCommand_LogFlags(t *testing.T) {
	cmd := rootCmd

	logLevel := cmd.PersistentFlags().Lookup("log-level")
	if logLevel == nil {
		t.Fatal("expected --log-level persistent flag")
	}
	if logLevel.DefValue != "info" {
		t.Errorf("expected default log-level 'info', got %q", logLevel.DefValue)
	}

	logFormat := cmd.PersistentFlags().Lookup("log-format")
	if logFormat == nil {
		t.Fatal("expected --log-format persistent flag")
	}
	if logFormat.DefValue != "text" {
		t.Errorf("expected default log-format 'text', got %q", logFormat.DefValue)
	}

	dbFlag := cmd.PersistentFlags().Lookup("db")
	if dbFlag == nil {
		t.Fatal("expected --db persistent flag")
	}
}

func TestNowCommand_Flags(t *testing.T) {
	now, _, err := rootCmd.Find([]string{"now"})
	if err != nil {
		t.Fatalf("failed to find 'now' command: %v", err)
	}

	if now.Flags().Lookup("output") == nil {
		t.Error("expected --output flag on 'now' command")
	}
	if now.Flags().ShorthandLookup("o") == nil {
		t.Error("expected -o shorthand for --output")
	}
}

func TestServeCommand_Flags(t *testing.T) {
	serve, _, err := rootCmd.Find([]string{"serve"})
	if err != nil {
		t.Fatalf("failed to find 'serve' command: %v", err)
	}

	for _, name := range []string{"listen", "headless-capture"} {
		if serve.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag on 'serve' command", name)
		}
	}
}
