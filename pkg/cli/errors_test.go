package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigError(t *testing.T) {
	tests := []struct {
		err  *ConfigError
		want string
	}{
		{NewConfigError("store.backend", "unknown backend"), "config error in store.backend: unknown backend"},
		{NewConfigError("", "file not found"), "config error: file not found"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestCommandError(t *testing.T) {
	inner := errors.New("store unreachable")
	err := NewCommandError("retention prune", inner)

	if got, want := err.Error(), "command retention prune failed: store unreachable"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, inner) {
		t.Error("CommandError should unwrap to the inner error")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", errors.New("boom"), ExitFailure},
		{"config", NewConfigError("", "bad"), ExitConfig},
		{"wrapped config", fmt.Errorf("load: %w", NewConfigError("x", "bad")), ExitConfig},
		{"command default", NewCommandError("ranges", errors.New("x")), ExitFailure},
		{"command with code", &CommandError{Command: "restore plan", Err: errors.New("x"), Code: ExitNoPlan}, ExitNoPlan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
