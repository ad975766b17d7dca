package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nagarpalika/backend/internal/analysis"
	"nagarpalika/backend/internal/api/handler"
	"nagarpalika/backend/internal/config"
	"nagarpalika/backend/internal/hub"
	"nagarpalika/backend/internal/lifecycle"
	"nagarpalika/backend/internal/localization"
	"nagarpalika/backend/internal/models"
	"nagarpalika/backend/internal/notify"
	"nagarpalika/backend/internal/storage"
	"nagarpalika/backend/internal/telegram"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func setupClassifier(cfg *config.Config) analysis.Classifier {
	keyword := analysis.NewKeywordClassifier()
	if cfg.OpenAIKey == "" {
		log.Println("INFO: OPENAI_API_KEY not set, using keyword classifier")
		return keyword
	}
	ai, err := analysis.NewOpenAIClassifier(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	if err != nil {
		log.Printf("WARN: OpenAI classifier disabled: %v", err)
		return keyword
	}
	log.Printf("INFO: Using OpenAI classifier (%s) with keyword fallback", cfg.OpenAIModel)
	return &analysis.FallbackClassifier{Primary: ai, Secondary: keyword}
}

// setupRedis returns nil when REDIS_ADDR is unset or the server is unreachable.
func setupRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Printf("WARN: Redis unavailable, alert channel and cache invalidation disabled: %v", err)
		rdb.Close()
		return nil
	}
	return rdb
}

func setupAlerters(cfg *config.Config, rdb *redis.Client, dir *config.Directory, loc *localization.Localizer) []notify.Alerter {
	var alerters []notify.Alerter

	if rdb != nil {
		alerters = append(alerters, notify.NewRedisAlerter(rdb))
		log.Printf("INFO: Publishing alerts to Redis channel %s", notify.AlertsChannel)
	}

	if cfg.TelegramToken != "" {
		minThreat, ok := models.ParseThreatLevel(cfg.TelegramMinThreat)
		if !ok {
			log.Printf("WARN: unknown TELEGRAM_MIN_THREAT %q, using High", cfg.TelegramMinThreat)
			minThreat = models.ThreatHigh
		}
		tg, err := telegram.NewAlerter(cfg.TelegramToken, cfg.TelegramChatIDs, minThreat, dir, loc, cfg.Language)
		if err != nil {
			log.Printf("WARN: Telegram alerts disabled: %v", err)
		} else {
			alerters = append(alerters, tg)
		}
	}

	return alerters
}

// watchInvalidations keeps the report cache in step with writes made by the
// admin tool. Without Redis the cache only ever sees this server's writes.
func watchInvalidations(ctx context.Context, store storage.Storage, rdb *redis.Client) {
	cached, ok := store.(*storage.CachedStorage)
	if !ok {
		return
	}
	if rdb == nil {
		log.Println("WARN: CACHE_TTL is set without Redis; reports changed by other processes stay stale until the entry expires")
		return
	}
	pubsub := rdb.Subscribe(ctx, storage.InvalidationChannel)
	go func() {
		defer pubsub.Close()
		cached.ListenInvalidations(ctx, pubsub.Channel())
	}()
	log.Printf("INFO: Listening for report invalidations on %s", storage.InvalidationChannel)
}

func main() {
	log.Println("Starting Nagarpalika Backend...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	dir, err := config.LoadDirectory(cfg.DepartmentsFile)
	if err != nil {
		log.Fatalf("Failed to load departments: %v", err)
	}

	// 1. Dependencies
	store, err := storage.Open(cfg.StoreDriver, cfg.DatabaseURL, cfg.CacheTTL)
	if err != nil {
		log.Fatalf("Failed to open report store: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := setupRedis(ctx, cfg)
	if rdb != nil {
		defer rdb.Close()
	}
	watchInvalidations(ctx, store, rdb)

	loc := localization.NewDefaultLocalizer()
	dispatcher := notify.NewDispatcher(config.SideChannelTimeout, setupAlerters(cfg, rdb, dir, loc)...)

	// 2. Realtime hub and report lifecycle
	realtime := hub.NewManagerService(dir)
	go realtime.Run(ctx)

	router := notify.NewRouter(realtime, dir, loc, cfg.Language)
	reports := lifecycle.NewService(store, setupClassifier(cfg), router, dispatcher, cfg.ClassifyTimeout)

	// 3. HTTP
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(corsConfig))

	var images handler.ImageStore
	if cfg.UploadDir != "" {
		if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
			log.Fatalf("Failed to create upload dir: %v", err)
		}
		images = handler.NewDiskImageStore(cfg.UploadDir)
	}

	h := handler.NewHandler(reports, realtime, dir, images)
	auth := handler.NewAuth(cfg.JWTSecret, cfg.AllowAnonymous)
	limiter := handler.NewRateLimiter(cfg.SubmitRate, cfg.SubmitBurst)
	h.RegisterRoutes(r, auth, limiter, cfg.UploadDir)

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	if cfg.OpenAIKey != "" && (cfg.ClassifyTimeout == 0 || cfg.ClassifyTimeout >= server.WriteTimeout) {
		log.Printf("WARN: CLASSIFY_TIMEOUT %s does not bound OpenAI calls below the %s write timeout", cfg.ClassifyTimeout, server.WriteTimeout)
	}

	go func() {
		log.Printf("INFO: Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("INFO: Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: HTTP shutdown: %v", err)
	}
	<-realtime.Done()
	dispatcher.Wait()
	log.Println("INFO: Stopped")
}
