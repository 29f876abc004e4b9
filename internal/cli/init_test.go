package cli

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/charles-997/budge/internal/log"
)

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("PORT", "8099")

	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatalf("LoadAndValidateConfig() error = %v", err)
	}
	if cfg.Port != "8099" {
		t.Errorf("Port = %v, want 8099", cfg.Port)
	}

	t.Setenv("DATA_BACKEND", "sheets")
	if _, err := LoadAndValidateConfig(); err == nil {
		t.Error("expected validation error for unknown backend")
	}
}

func TestGracefulShutdown_Signal(t *testing.T) {
	ctx, cancel := GracefulShutdown(context.Background(), log.New(log.DefaultConfig()))
	defer cancel()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("kill: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after SIGTERM")
	}
}

func TestGracefulShutdown_ParentCancel(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := GracefulShutdown(parent, log.New(log.DefaultConfig()))
	defer cancel()

	cancelParent()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled with parent")
	}
}
