package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Engine    EngineConfig
	Storage   StorageConfig
	Retrieval RetrievalConfig
	Advisor   AdvisorConfig
	Gap       GapConfig
	Recommend RecommendConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

// EngineConfig selects and configures the inference backend.
// Backend is "ollama" (local) or "gemini" (hosted).
type EngineConfig struct {
	Backend      string
	OllamaURL    string
	ChatModel    string
	EmbedModel   string
	GeminiAPIKey string
}

type StorageConfig struct {
	DataDir string
}

type RetrievalConfig struct {
	// TopK is the per-collection result bound for knowledge retrieval.
	TopK int
	// DistanceThreshold excludes results with 1-similarity >= threshold.
	// Zero disables the floor.
	DistanceThreshold float64
}

type AdvisorConfig struct {
	// HistoryWindow bounds how many prior turns are included as grounding.
	HistoryWindow int
}

type GapConfig struct {
	// Policy selects the missing-skill decision rule: "strict" or "lenient".
	Policy string
	// ChartCap bounds the per-goal chart axis width.
	ChartCap int
}

type RecommendConfig struct {
	TopK int
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Engine: EngineConfig{
			Backend:    "ollama",
			OllamaURL:  "http://localhost:11434",
			ChatModel:  "mistral-nemo",
			EmbedModel: "nomic-embed-text",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Retrieval: RetrievalConfig{
			TopK:              3,
			DistanceThreshold: 0,
		},
		Advisor: AdvisorConfig{
			HistoryWindow: 5,
		},
		Gap: GapConfig{
			Policy:   "strict",
			ChartCap: 12,
		},
		Recommend: RecommendConfig{
			TopK: 3,
		},
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "skillsage")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".skillsage"
	}
	return filepath.Join(home, ".local", "share", "skillsage")
}

// Load reads configuration from defaults, an optional .env file in the
// working directory, and SKILLSAGE_* environment variables (highest
// precedence). The Gemini backend requires SKILLSAGE_GEMINI_API_KEY.
func Load() (Config, error) {
	// A missing .env file is fine; env vars still apply.
	_ = godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.APIToken, "SKILLSAGE_API_TOKEN")
	setInt(&cfg.Server.Port, "SKILLSAGE_PORT")

	setString(&cfg.Engine.Backend, "SKILLSAGE_ENGINE")
	setString(&cfg.Engine.OllamaURL, "SKILLSAGE_OLLAMA_URL")
	setString(&cfg.Engine.ChatModel, "SKILLSAGE_CHAT_MODEL")
	setString(&cfg.Engine.EmbedModel, "SKILLSAGE_EMBED_MODEL")
	setString(&cfg.Engine.GeminiAPIKey, "SKILLSAGE_GEMINI_API_KEY")

	setString(&cfg.Storage.DataDir, "SKILLSAGE_DATA_DIR")

	setInt(&cfg.Retrieval.TopK, "SKILLSAGE_RETRIEVAL_TOP_K")
	setFloat(&cfg.Retrieval.DistanceThreshold, "SKILLSAGE_DISTANCE_THRESHOLD")

	setInt(&cfg.Advisor.HistoryWindow, "SKILLSAGE_HISTORY_WINDOW")

	setString(&cfg.Gap.Policy, "SKILLSAGE_GAP_POLICY")
	setInt(&cfg.Gap.ChartCap, "SKILLSAGE_CHART_CAP")

	setInt(&cfg.Recommend.TopK, "SKILLSAGE_RECOMMEND_TOP_K")
}

func validate(cfg Config) error {
	switch cfg.Engine.Backend {
	case "ollama":
	case "gemini":
		if cfg.Engine.GeminiAPIKey == "" {
			return fmt.Errorf("missing required config: Gemini API key. Set SKILLSAGE_GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown engine backend %q (expected ollama or gemini)", cfg.Engine.Backend)
	}

	switch strings.ToLower(cfg.Gap.Policy) {
	case "strict", "lenient":
	default:
		return fmt.Errorf("unknown gap policy %q (expected strict or lenient)", cfg.Gap.Policy)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Server.Port)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
