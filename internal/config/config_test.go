package config

import (
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.Engine.Backend != "ollama" {
		t.Errorf("default backend = %q, want ollama", cfg.Engine.Backend)
	}
	if cfg.Gap.Policy != "strict" {
		t.Errorf("default gap policy = %q, want strict", cfg.Gap.Policy)
	}
	if cfg.Gap.ChartCap != 12 {
		t.Errorf("default chart cap = %d, want 12", cfg.Gap.ChartCap)
	}
	if cfg.Recommend.TopK != 3 {
		t.Errorf("default recommend top-k = %d, want 3", cfg.Recommend.TopK)
	}
	if cfg.Advisor.HistoryWindow != 5 {
		t.Errorf("default history window = %d, want 5", cfg.Advisor.HistoryWindow)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SKILLSAGE_PORT", "9001")
	t.Setenv("SKILLSAGE_GAP_POLICY", "lenient")
	t.Setenv("SKILLSAGE_DISTANCE_THRESHOLD", "0.6")
	t.Setenv("SKILLSAGE_CHAT_MODEL", "phi3.5")

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.Server.Port != 9001 {
		t.Errorf("port = %d, want 9001", cfg.Server.Port)
	}
	if cfg.Gap.Policy != "lenient" {
		t.Errorf("gap policy = %q, want lenient", cfg.Gap.Policy)
	}
	if cfg.Retrieval.DistanceThreshold != 0.6 {
		t.Errorf("distance threshold = %v, want 0.6", cfg.Retrieval.DistanceThreshold)
	}
	if cfg.Engine.ChatModel != "phi3.5" {
		t.Errorf("chat model = %q, want phi3.5", cfg.Engine.ChatModel)
	}
}

func TestValidate_GeminiRequiresKey(t *testing.T) {
	cfg := defaults()
	cfg.Engine.Backend = "gemini"

	if err := validate(cfg); err == nil {
		t.Fatal("expected error for gemini backend without API key")
	}

	cfg.Engine.GeminiAPIKey = "test-key"
	if err := validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RejectsUnknownPolicy(t *testing.T) {
	cfg := defaults()
	cfg.Gap.Policy = "fuzzy"

	if err := validate(cfg); err == nil {
		t.Fatal("expected error for unknown gap policy")
	}
}
