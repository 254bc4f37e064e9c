package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Supabase (cloud asset storage; local disk is used when not configured)
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// Local storage fallback
	LocalAssetDir string // directory for stored assets when Supabase is off
	PublicBaseURL string // external base URL assets are served under

	// OpenAI (optional greeting planning)
	OpenAIKey   string
	PlanModel   string
	PlanEnabled bool

	// Gemini (video generation and narration share the same key)
	GeminiKey       string
	VeoFastModel    string
	VeoQualityModel string
	TTSModel        string
	DefaultVoice    string

	// Audio
	DefaultMusicPath string // default background music bed

	// Worker
	MaxConcurrentJobs int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "greeting-videos"),
		LocalAssetDir:         getEnv("LOCAL_ASSET_DIR", "data/assets"),
		PublicBaseURL:         getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		PlanModel:             getEnv("PLAN_MODEL", "gpt-5-mini"),
		PlanEnabled:           getEnvBool("PLAN_ENABLED", true),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		VeoFastModel:          getEnv("VEO_FAST_MODEL", "veo-3.1-fast-generate-preview"),
		VeoQualityModel:       getEnv("VEO_MODEL", "veo-3.1-generate-preview"),
		TTSModel:              getEnv("TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		DefaultVoice:          getEnv("DEFAULT_VOICE", "Kore"),
		DefaultMusicPath:      getEnv("DEFAULT_MUSIC_PATH", "assets/music/ambient.wav"),
		MaxConcurrentJobs:     getEnvInt("MAX_CONCURRENT_JOBS", 3),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.GeminiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	// Planning degrades to the raw message without a key
	if cfg.OpenAIKey == "" {
		cfg.PlanEnabled = false
	}

	// Supabase config must be all-or-nothing
	if (cfg.SupabaseURL == "") != (cfg.SupabaseServiceKey == "") {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set together")
	}

	return cfg, nil
}

// CloudStorageEnabled reports whether assets go to Supabase instead of local disk.
func (c *Config) CloudStorageEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
