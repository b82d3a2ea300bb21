package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DEADLINE_SWEEP_INTERVAL_SECONDS", "")

	cfg := Load()
	if cfg.JWTSecret != defaultJWTSecret {
		t.Errorf("JWTSecret = %q, want default", cfg.JWTSecret)
	}
	if cfg.DeadlineSweepInterval != time.Minute {
		t.Errorf("DeadlineSweepInterval = %v, want 1m", cfg.DeadlineSweepInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TON_PROOF_ALLOWED_DOMAINS", " app.example.com, ,fund.example.org ")
	t.Setenv("LITE_SERVER_PORT", "not-a-number")
	t.Setenv("JWT_EXPIRATION_HOURS", "2")

	cfg := Load()
	if len(cfg.TONProofAllowedDomains) != 2 || cfg.TONProofAllowedDomains[1] != "fund.example.org" {
		t.Errorf("unexpected domains: %v", cfg.TONProofAllowedDomains)
	}
	if cfg.LiteServerPort != 4443 {
		t.Errorf("LiteServerPort = %d, want fallback 4443", cfg.LiteServerPort)
	}
	if cfg.JWTExpiration != 2*time.Hour {
		t.Errorf("JWTExpiration = %v, want 2h", cfg.JWTExpiration)
	}
}
