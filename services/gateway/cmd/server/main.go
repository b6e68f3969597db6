package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vorcigernix/prgate/pkg/db"
	"github.com/vorcigernix/prgate/pkg/ghauth"
	"github.com/vorcigernix/prgate/pkg/webhooks"
	"github.com/vorcigernix/prgate/services/gateway/internal/ingress"
	"github.com/vorcigernix/prgate/services/gateway/internal/replaystore"
)

type config struct {
	Port            string
	WebhookSecret   string
	AppID           string
	PrivateKeyPEM   string
	AllowedEvents   []string
	MaxBodyBytes    int64
	FreshnessWindow time.Duration
	RefreshBuffer   time.Duration
	DatabaseURL     string
}

func loadConfig() config {
	cfg := config{
		Port:            envOr("SERVICE_PORT", "8080"),
		WebhookSecret:   os.Getenv("GITHUB_WEBHOOK_SECRET"),
		AppID:           os.Getenv("GITHUB_APP_ID"),
		PrivateKeyPEM:   os.Getenv("GITHUB_PRIVATE_KEY"),
		AllowedEvents:   splitCSV(envOr("ALLOWED_EVENTS", "pull_request")),
		MaxBodyBytes:    envInt64("MAX_BODY_BYTES", webhooks.DefaultMaxBodyBytes),
		FreshnessWindow: envSeconds("FRESHNESS_WINDOW_SECONDS", webhooks.DefaultFreshnessWindow),
		RefreshBuffer:   envSeconds("REFRESH_BUFFER_SECONDS", ghauth.DefaultRefreshBuffer),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
	}
	if cfg.WebhookSecret == "" {
		log.Fatal("GITHUB_WEBHOOK_SECRET is required")
	}
	return cfg
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	var store webhooks.DeliveryStore = webhooks.NewMemoryDeliveryStore()
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		pg := replaystore.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("database schema: %v", err)
		}
		store = pg
	}

	guard := webhooks.NewReplayGuard(store, cfg.FreshnessWindow)
	pipeline := webhooks.NewPipeline(cfg.WebhookSecret, cfg.AllowedEvents, cfg.MaxBodyBytes, guard)

	var sink ingress.Sink
	if cfg.AppID != "" && cfg.PrivateKeyPEM != "" {
		minter, err := ghauth.NewMinter(cfg.AppID, cfg.PrivateKeyPEM)
		if err != nil {
			log.Fatalf("app credentials: %v", err)
		}
		cache := ghauth.NewTokenCache(ghauth.NewAppsExchanger(minter), cfg.RefreshBuffer)
		sink = ingress.NewPrewarmSink(cache, nil, log.Printf)
	}
	handler := ingress.NewHandler(pipeline, sink, log.Printf)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Post("/webhooks/github", handler.HandleWebhook)

	log.Printf("gateway listening on :%s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envInt64(key string, fallback int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(os.Getenv(key)), 10, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	v, err := strconv.ParseInt(strings.TrimSpace(os.Getenv(key)), 10, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return time.Duration(v) * time.Second
}
