package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SUBMISSION_POLICY", "")
	t.Setenv("AI_RATE_LIMIT", "")
	t.Setenv("REDIS_URI", "redis://cache:6379")
	t.Setenv("GEMINI_API_KEY", "")

	cfg := Load()

	if cfg.SubmissionPolicy != PolicyReject {
		t.Errorf("expected reject policy, got %q", cfg.SubmissionPolicy)
	}
	if cfg.AIRateLimit != 10 || cfg.AIRateWindow != time.Minute {
		t.Errorf("unexpected AI limiter defaults: %d per %s", cfg.AIRateLimit, cfg.AIRateWindow)
	}
	if cfg.RedisAddr != "cache:6379" {
		t.Errorf("expected scheme stripped, got %q", cfg.RedisAddr)
	}
	if cfg.AI.IsEnabled() {
		t.Errorf("AI must be disabled without a key")
	}
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("SUBMISSION_POLICY", "whatever")
	if got := Load().SubmissionPolicy; got != PolicyReject {
		t.Fatalf("expected fallback to reject, got %q", got)
	}

	t.Setenv("SUBMISSION_POLICY", PolicyOverwrite)
	if got := Load().SubmissionPolicy; got != PolicyOverwrite {
		t.Fatalf("expected overwrite, got %q", got)
	}
}
