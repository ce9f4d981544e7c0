package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestLoadConfigWithPath_NewConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "speakerid", "config.yaml")

	cfg, err := LoadConfigWithPath("speakerid", configPath)
	if err != nil {
		t.Fatalf("LoadConfigWithPath error: %v", err)
	}

	if cfg.AppName != "speakerid" {
		t.Errorf("AppName = %q, want %q", cfg.AppName, "speakerid")
	}
	if cfg.Threshold != 0.75 || cfg.Model != "fbank" || cfg.History != "badger" {
		t.Errorf("defaults = %+v", cfg)
	}
	if !cfg.AutoRegisterOnStart {
		t.Error("AutoRegisterOnStart should default to true")
	}

	// Verify config file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file should be created")
	}
}

func TestLoadConfigWithPath_PartialFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	data := "threshold: 0.6\ninclude:\n  - \"*.wav\"\nserver:\n  addr: 127.0.0.1:9000\n"
	if err := os.WriteFile(configPath, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigWithPath("speakerid", configPath)
	if err != nil {
		t.Fatalf("LoadConfigWithPath error: %v", err)
	}
	if cfg.Threshold != 0.6 {
		t.Errorf("Threshold = %v, want 0.6", cfg.Threshold)
	}
	if !slices.Equal(cfg.Include, []string{"*.wav"}) {
		t.Errorf("Include = %v", cfg.Include)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	// Absent keys keep their defaults.
	if cfg.RecordSeconds != 5 || cfg.MinDuration != "2s" || !cfg.AutoRegisterOnStart {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfigWithPath_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"model", "model: \"\"\n"},
		{"history", "history: \"\"\n"},
		{"min duration", "min_duration: soon\n"},
		{"record seconds", "record_seconds: 0\n"},
		{"pattern", "include: [\"[oops\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			os.WriteFile(configPath, []byte(tt.data), 0o600)
			_, err := LoadConfigWithPath("speakerid", configPath)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

// maxThreshold stands in for a check owned by another package.
func maxThreshold(c *Config) error {
	if c.Threshold > 0.9 {
		return fmt.Errorf("%w: threshold %.2f", ErrInvalidConfig, c.Threshold)
	}
	return nil
}

func TestLoadConfigWithPath_Checks(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("threshold: 0.95\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigWithPath("speakerid", configPath); err != nil {
		t.Fatalf("without checks: %v", err)
	}
	_, err := LoadConfigWithPath("speakerid", configPath, maxThreshold)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestConfig_Path(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg, err := LoadConfigWithPath("speakerid", configPath)
	if err != nil {
		t.Fatalf("LoadConfigWithPath error: %v", err)
	}

	if cfg.Path() != configPath {
		t.Errorf("Path() = %q, want %q", cfg.Path(), configPath)
	}
	if cfg.Dir() != tmpDir {
		t.Errorf("Dir() = %q, want %q", cfg.Dir(), tmpDir)
	}
}

func TestConfig_ResolveDir(t *testing.T) {
	tmpDir := t.TempDir()
	cfg, err := LoadConfigWithPath("speakerid", filepath.Join(tmpDir, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	home, _ := os.UserHomeDir()

	if got := cfg.DataPath(); got != filepath.Join(tmpDir, "data") {
		t.Errorf("DataPath() = %q", got)
	}
	if got := cfg.ReferencePath(); got != filepath.Join(tmpDir, "ref_voices") {
		t.Errorf("ReferencePath() = %q", got)
	}
	if got := cfg.ResolveDir("/abs/dir"); got != "/abs/dir" {
		t.Errorf("ResolveDir(abs) = %q", got)
	}
	if got := cfg.ResolveDir("~/voices"); home != "" && got != filepath.Join(home, "voices") {
		t.Errorf("ResolveDir(~) = %q", got)
	}
}

func TestConfig_SetGet(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	cfg, err := LoadConfigWithPath("speakerid", configPath)
	if err != nil {
		t.Fatal(err)
	}

	sets := map[string]string{
		"threshold":              "0.8",
		"include":                "*.wav, voices/**/*.mp3",
		"record_seconds":         "3",
		"history":                "memory",
		"auto_register_on_start": "false",
		"server.addr":            "127.0.0.1:9999",
	}
	for k, v := range sets {
		if err := cfg.Set(k, v); err != nil {
			t.Fatalf("Set(%s, %s): %v", k, v, err)
		}
	}
	if got, _ := cfg.Get("include"); got != "*.wav,voices/**/*.mp3" {
		t.Errorf("Get(include) = %q", got)
	}
	if cfg.RecordDuration() != 3*time.Second {
		t.Errorf("RecordDuration() = %v", cfg.RecordDuration())
	}

	// Persisted.
	cfg2, err := LoadConfigWithPath("speakerid", configPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg2.Threshold != 0.8 || cfg2.History != "memory" || cfg2.AutoRegisterOnStart {
		t.Errorf("reloaded = %+v", cfg2)
	}
	for _, k := range Keys() {
		if _, err := cfg2.Get(k); err != nil {
			t.Errorf("Get(%s): %v", k, err)
		}
	}
}

func TestConfig_SetRejects(t *testing.T) {
	cfg, err := LoadConfigWithPath("speakerid", filepath.Join(t.TempDir(), "config.yaml"), maxThreshold)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct{ key, value string }{
		{"threshold", "high"},
		{"threshold", "0.92"},
		{"cache_size", "-1"},
		{"min_duration", "0s"},
		{"history", ""},
	}
	for _, tt := range tests {
		if err := cfg.Set(tt.key, tt.value); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Set(%s, %s) = %v, want ErrInvalidConfig", tt.key, tt.value, err)
		}
	}
	if err := cfg.Set("nope", "1"); err == nil {
		t.Error("Set(nope) should fail")
	}
	if cfg.Threshold != 0.75 || cfg.CacheSize != 64 {
		t.Errorf("config mutated by rejected sets: %+v", cfg)
	}
}

func TestConfig_AddCheck(t *testing.T) {
	cfg := DefaultConfig("speakerid")
	cfg.Threshold = 0.95
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	cfg.AddCheck(maxThreshold)
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
	}
}
