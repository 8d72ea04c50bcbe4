package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	p := cfg.Preference
	if p.DecayFactor != 0.8 || p.MaxShare != 0.5 || p.EmbeddingThreshold != 0.4 {
		t.Errorf("unexpected preference defaults: %+v", p)
	}
	if p.RuleWeight != 0.3 || p.EmbeddingWeight != 0.7 || p.RuleConfidence != 0.5 {
		t.Errorf("unexpected hybrid defaults: %+v", p)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PREF_DECAY_FACTOR", "0.7")
	t.Setenv("PREF_EMBEDDING_TIMEOUT", "750ms")
	t.Setenv("CORS_ORIGINS", "http://a.test, ,http://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Preference.DecayFactor != 0.7 {
		t.Errorf("DecayFactor = %v, want 0.7", cfg.Preference.DecayFactor)
	}
	if cfg.EmbeddingTimeout != 750*time.Millisecond {
		t.Errorf("EmbeddingTimeout = %v", cfg.EmbeddingTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v, want 2 entries", cfg.AllowedOrigins)
	}
}

func TestLoadRejectsOutOfRangeDecay(t *testing.T) {
	t.Setenv("PREF_DECAY_FACTOR", "1.5")
	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted decay factor 1.5")
	}
}
