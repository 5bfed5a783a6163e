package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"medcourier/pkg/rate"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "9191")
	t.Setenv("NOTIFY_TIMEOUT", "250ms")

	cfg := Load()
	if cfg.AppPort != 9191 {
		t.Errorf("AppPort = %d", cfg.AppPort)
	}
	if cfg.NotifyTimeout != 250*time.Millisecond {
		t.Errorf("NotifyTimeout = %s", cfg.NotifyTimeout)
	}
	if cfg.DistanceTimeout != 3*time.Second {
		t.Errorf("DistanceTimeout = %s", cfg.DistanceTimeout)
	}
}

func TestLoadRates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.yaml")
	body := `
routine:
  per_mile: 2.5
  bounds:
    min_per_mile: 1
    max_per_mile: 12
    min_total: 15
    max_total: 5000
after_hours_flat_fee: 40
holidays:
  - "2026-12-24"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadRates(path)
	if err != nil {
		t.Fatalf("LoadRates: %v", err)
	}
	def := rate.DefaultConfig()
	if cfg.Routine.PerMile != 2.5 {
		t.Errorf("routine per mile = %v", cfg.Routine.PerMile)
	}
	if cfg.AfterHoursFlatFee != 40 {
		t.Errorf("flat fee = %v", cfg.AfterHoursFlatFee)
	}
	if cfg.Stat.PerMile != def.Stat.PerMile {
		t.Errorf("stat per mile should keep default, got %v", cfg.Stat.PerMile)
	}
	if len(cfg.Holidays) != 1 || cfg.Holidays[0] != "2026-12-24" {
		t.Errorf("holidays = %v", cfg.Holidays)
	}
	if _, err := rate.NewEngine(cfg, nil); err != nil {
		t.Errorf("loaded config rejected: %v", err)
	}
}

func TestLoadRatesMissingFile(t *testing.T) {
	if _, err := LoadRates(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	cfg, err := LoadRates("")
	if err != nil || cfg.Routine.PerMile != rate.DefaultConfig().Routine.PerMile {
		t.Fatalf("empty path should return defaults, got %v %v", cfg, err)
	}
}
