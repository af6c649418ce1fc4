package config

import "testing"

func TestLoad_MissingDatabaseURLFails(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load to fail without DATABASE_URL set")
	}
	var cfgErr *ConfigError
	if ce, ok := err.(*ConfigError); ok {
		cfgErr = ce
	}
	if cfgErr == nil || cfgErr.Key != "DATABASE_URL" {
		t.Errorf("expected a ConfigError naming DATABASE_URL, got %v", err)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WhaleThresholdMode != "fixed" {
		t.Errorf("WhaleThresholdMode = %q, want fixed", cfg.WhaleThresholdMode)
	}
	if cfg.TierLeviathanBTC != 1000 {
		t.Errorf("TierLeviathanBTC = %v, want 1000", cfg.TierLeviathanBTC)
	}
	if len(cfg.Timeframes) != 1 || cfg.Timeframes[0] != "1h" {
		t.Errorf("Timeframes = %v, want [1h]", cfg.Timeframes)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
}

func TestLoad_MalformedIntFails(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")

	_, err := Load()
	if err == nil {
		t.Fatal("expected Load to fail on a malformed integer env var")
	}
}

func TestLoad_TimeframesSplitAndTrimmed(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("TIMEFRAMES", " 1h, 4h ,1d")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"1h", "4h", "1d"}
	if len(cfg.Timeframes) != len(want) {
		t.Fatalf("Timeframes = %v, want %v", cfg.Timeframes, want)
	}
	for i, tf := range want {
		if cfg.Timeframes[i] != tf {
			t.Errorf("Timeframes[%d] = %q, want %q", i, cfg.Timeframes[i], tf)
		}
	}
}
