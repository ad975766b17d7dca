// Package config loads runtime settings from the environment and holds the
// policy constants and jurisdiction directory used by the report pipeline.
package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full set of runtime settings for the server and admin CLI.
type Config struct {
	Port string
	Env  string

	StoreDriver string // "postgres" or "memory"
	DatabaseURL string
	// CacheTTL > 0 caches report reads in the server. Writes from other
	// processes reach the cache only through Redis invalidations.
	CacheTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret      string
	AllowAnonymous bool

	ClassifyTimeout time.Duration
	OpenAIKey       string
	OpenAIModel     string
	OpenAIBaseURL   string

	TelegramToken     string
	TelegramChatIDs   map[string]int64 // department code -> chat, "*" for the fallback chat
	TelegramMinThreat string

	DepartmentsFile string
	UploadDir       string
	Language        string

	SubmitRate  float64 // submissions per second per caller
	SubmitBurst int
}

// Production reports whether the server runs in release mode.
func (c *Config) Production() bool {
	return c.Env == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "host=localhost user=user password=password dbname=nagarpalika port=5432 sslmode=disable")
	v.SetDefault("CACHE_TTL", "0s")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SECRET", "default-dev-secret-change-me")
	v.SetDefault("ALLOW_ANONYMOUS", false)
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("TELEGRAM_MIN_THREAT", "High")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("LANGUAGE", "en")
	v.SetDefault("SUBMIT_RATE", 0.2)
	v.SetDefault("SUBMIT_BURST", 5)
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("WARN: no .env file found, using environment variables")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	chatIDs, err := parseChatIDs(v.GetString("TELEGRAM_CHAT_IDS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:              v.GetString("PORT"),
		Env:               v.GetString("ENV"),
		StoreDriver:       strings.ToLower(v.GetString("STORE_DRIVER")),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		CacheTTL:          v.GetDuration("CACHE_TTL"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		AllowAnonymous:    v.GetBool("ALLOW_ANONYMOUS"),
		ClassifyTimeout:   classifyTimeout(v),
		OpenAIKey:         v.GetString("OPENAI_API_KEY"),
		OpenAIModel:       v.GetString("OPENAI_MODEL"),
		OpenAIBaseURL:     v.GetString("OPENAI_BASE_URL"),
		TelegramToken:     v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChatIDs:   chatIDs,
		TelegramMinThreat: v.GetString("TELEGRAM_MIN_THREAT"),
		DepartmentsFile:   v.GetString("DEPARTMENTS_FILE"),
		UploadDir:         v.GetString("UPLOAD_DIR"),
		Language:          v.GetString("LANGUAGE"),
		SubmitRate:        v.GetFloat64("SUBMIT_RATE"),
		SubmitBurst:       v.GetInt("SUBMIT_BURST"),
	}

	switch cfg.StoreDriver {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.ClassifyTimeout < 0 {
		return nil, fmt.Errorf("CLASSIFY_TIMEOUT must not be negative")
	}

	return cfg, nil
}

// classifyTimeout is CLASSIFY_TIMEOUT when given. Otherwise the keyword
// classifier runs unbounded and the OpenAI classifier gets OpenAIClassifyTimeout,
// which keeps a slow model call inside the HTTP write timeout.
func classifyTimeout(v *viper.Viper) time.Duration {
	if strings.TrimSpace(v.GetString("CLASSIFY_TIMEOUT")) != "" {
		return v.GetDuration("CLASSIFY_TIMEOUT")
	}
	if v.GetString("OPENAI_API_KEY") != "" {
		return OpenAIClassifyTimeout
	}
	return 0
}

// parseChatIDs parses "KTM-W01=-1001,*=-1002" into a code -> chat id map.
func parseChatIDs(raw string) (map[string]int64, error) {
	out := make(map[string]int64)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		code, id, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_IDS entry %q (expected CODE=CHAT_ID)", pair)
		}
		chatID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id for %s: %w", code, err)
		}
		out[strings.TrimSpace(code)] = chatID
	}
	return out, nil
}
