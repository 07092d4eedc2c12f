package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"alphareel/internal/config"
	"alphareel/internal/engine"
	"alphareel/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	engine     *testsupport.Engine
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("ALPHAREEL_SCRATCH_DIR", "")
	t.Setenv("ALPHAREEL_FFMPEG", "")

	cfg := testsupport.NewConfig(t, opts...)
	cfg.Logging.Level = "error"
	configPath := filepath.Join(base, "alphareel.toml")
	writeTestConfig(t, configPath, cfg)

	eng := testsupport.NewEngine()
	orig := newEngineFactory
	newEngineFactory = func(*config.Config, *slog.Logger) engine.Factory {
		return eng.Factory()
	}
	t.Cleanup(func() { newEngineFactory = orig })

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
		engine:     eng,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeFrames(t *testing.T, dir string, names ...string) [][]byte {
	t.Helper()
	var data [][]byte
	for i, name := range names {
		path := testsupport.WritePNG(t, dir, name, i+1)
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		data = append(data, content)
	}
	return data
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
