package commands

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/haivivi/speakerid/pkg/cli"
)

func TestConfigChecks(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"defaults", "sample_rate: 16000\n", false},
		{"memory history", "history: memory\n", false},
		{"off history", "history: \"off\"\n", false},
		{"threshold low", "threshold: 0.1\n", true},
		{"threshold high", "threshold: 0.99\n", true},
		{"history", "history: redis\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.data), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := cli.LoadConfigWithPath(appName, configPath, configChecks...)
			if tt.wantErr != errors.Is(err, cli.ErrInvalidConfig) {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigSetRunsChecks(t *testing.T) {
	cfg, err := cli.LoadConfigWithPath(appName, filepath.Join(t.TempDir(), "config.yaml"), configChecks...)
	if err != nil {
		t.Fatal(err)
	}
	for _, kv := range [][2]string{{"threshold", "0.2"}, {"history", "sqlite"}} {
		if err := cfg.Set(kv[0], kv[1]); !errors.Is(err, cli.ErrInvalidConfig) {
			t.Errorf("Set(%s, %s) = %v, want ErrInvalidConfig", kv[0], kv[1], err)
		}
	}
	if err := cfg.Set("threshold", "0.9"); err != nil {
		t.Fatalf("Set(threshold, 0.9) = %v", err)
	}
	if cfg.History != "badger" || cfg.Threshold != 0.9 {
		t.Errorf("config = %+v", cfg)
	}
}
