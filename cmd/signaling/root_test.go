package main

import (
	"errors"
	"testing"
)

func TestLoadConfigFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENVIRONMENT", "staging")

	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--port", "9100", "--log-level", "warn"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("Port = %q, want 9100", cfg.Port)
	}
	if cfg.Environment != "staging" {
		t.Errorf("Environment = %q, want staging", cfg.Environment)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "env port", env: map[string]string{"PORT": "http"}},
		{name: "flag port", args: []string{"--port", "70000"}},
		{name: "send buffer", env: map[string]string{"SEND_BUFFER": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cmd := newRootCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("parse flags: %v", err)
			}

			_, err := loadConfig(cmd)
			if !errors.Is(err, errConfig) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if code := exitCode(err); code != 2 {
				t.Fatalf("exit code = %d, want 2", code)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	if code := exitCode(nil); code != 0 {
		t.Errorf("exitCode(nil) = %d", code)
	}
	if code := exitCode(errors.New("listen failed")); code != 1 {
		t.Errorf("exitCode(runtime error) = %d", code)
	}
}
