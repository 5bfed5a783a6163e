package logger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medcourier.log")
	log := NewWithOptions(Options{Namespace: "test", Level: "info", File: path})

	log.Debug("hidden below info")
	log.With(String("load_id", "l-1")).Info("load scheduled", Int("attempt", 1))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log output in file")
	}
}

func TestBadLevelFallsBack(t *testing.T) {
	log := NewWithOptions(Options{Level: "loud"})
	log.Info("still works")
}

func TestNop(t *testing.T) {
	log := NewNop()
	log.Error("ignored", Error(os.ErrClosed))
	if err := log.With(Bool("x", true)).Sync(); err != nil {
		t.Errorf("nop sync: %v", err)
	}
}
