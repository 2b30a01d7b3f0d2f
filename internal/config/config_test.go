package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_STORE", "")
	t.Setenv("SCHEDULE_EDIT_MARGIN_SECONDS", "")
	t.Setenv("PARTIAL_MARKS_ROUNDING", "")
	t.Setenv("SESSION_RETENTION_HOURS", "")

	cfg := Load()
	if cfg.SessionStore != StorePostgres {
		t.Errorf("SessionStore = %q, want %q", cfg.SessionStore, StorePostgres)
	}
	if cfg.ScheduleEditMargin != 15*time.Second {
		t.Errorf("ScheduleEditMargin = %v, want 15s", cfg.ScheduleEditMargin)
	}
	if cfg.SessionRetention != 7*24*time.Hour {
		t.Errorf("SessionRetention = %v, want 168h", cfg.SessionRetention)
	}
	if cfg.Scoring.PartialRounding != "floor" || !cfg.Scoring.ClampPerQuestion || cfg.Scoring.QuestionFloor != 0 {
		t.Errorf("unexpected scoring defaults: %+v", cfg.Scoring)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_STORE", "Redis")
	t.Setenv("SCHEDULE_EDIT_MARGIN_SECONDS", "30")
	t.Setenv("CLAMP_PER_QUESTION", "false")
	t.Setenv("NEGATIVE_MARK_FLOOR", "-1.5")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()
	if cfg.SessionStore != StoreRedis {
		t.Errorf("SessionStore = %q, want %q", cfg.SessionStore, StoreRedis)
	}
	if cfg.ScheduleEditMargin != 30*time.Second {
		t.Errorf("ScheduleEditMargin = %v, want 30s", cfg.ScheduleEditMargin)
	}
	if cfg.Scoring.ClampPerQuestion {
		t.Error("ClampPerQuestion should be false")
	}
	if cfg.Scoring.QuestionFloor != -1.5 {
		t.Errorf("QuestionFloor = %v, want -1.5", cfg.Scoring.QuestionFloor)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v, want 2 entries", cfg.AllowedOrigins)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("MAX_DB_CONNS", "lots")
	t.Setenv("NEGATIVE_MARK_FLOOR", "none")

	cfg := Load()
	if cfg.MaxDBConns != 16 {
		t.Errorf("MaxDBConns = %d, want fallback 16", cfg.MaxDBConns)
	}
	if cfg.Scoring.QuestionFloor != 0 {
		t.Errorf("QuestionFloor = %v, want fallback 0", cfg.Scoring.QuestionFloor)
	}
}
