package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/cors"

	"github.com/replyhero/backend/internal/alerts"
	"github.com/replyhero/backend/internal/autoreply"
	"github.com/replyhero/backend/internal/campaigns"
	"github.com/replyhero/backend/internal/compose"
	"github.com/replyhero/backend/internal/config"
	"github.com/replyhero/backend/internal/gbp"
	"github.com/replyhero/backend/internal/handlers"
	"github.com/replyhero/backend/internal/mailer"
	"github.com/replyhero/backend/internal/middleware"
	"github.com/replyhero/backend/internal/store"
	"github.com/replyhero/backend/internal/workers"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := config.FromEnv()

	// Root context for background workers and graceful shutdown
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage backend: Postgres when DATABASE_URL is set, JSON files otherwise.
	var (
		db            *sql.DB
		tenants       store.TenantStore
		states        store.ReplyStateStore
		campaignStore *store.Campaigns
		pgTenants     *store.PostgresTenants
	)
	if cfg.UseDatabase() {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Fatalf("Failed to ping database: %v", err)
		}

		// Run migrations on startup
		driver, err := postgres.WithInstance(db, &postgres.Config{})
		if err != nil {
			log.Fatalf("Failed to init migration driver: %v", err)
		}
		migrator, err := migrate.NewWithDatabaseInstance("file://db/migrations", "postgres", driver)
		if err != nil {
			log.Fatalf("Failed to create migrator: %v", err)
		}
		if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("Database migration failed: %v", err)
		}
		log.Println("Database is up-to-date")

		pgTenants = store.NewPostgresTenants(db)
		tenants = pgTenants
		states = store.PostgresReplyStates{PostgresTenants: pgTenants}
		campaignStore = store.NewCampaigns(db)
	} else {
		fs, err := store.NewFileStore(cfg.DataDir)
		if err != nil {
			log.Fatalf("Failed to init file store: %v", err)
		}
		tenants = fs
		states = store.FileReplyStates{FileStore: fs}
		log.Printf("[Store] no DATABASE_URL set, using JSON files under %s (campaigns unavailable)", cfg.DataDir)
	}

	// Review reply pipeline
	reviews := gbp.NewClient(cfg.GoogleAPIBase, gbp.StaticToken(cfg.GoogleToken), cfg.GoogleRPS, cfg.GoogleBurst)
	composer := compose.New(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBase)
	loop := &autoreply.Loop{
		Reviews:        reviews,
		Composer:       composer,
		States:         states,
		AllowedRatings: cfg.AllowedRatings,
	}

	var notifier alerts.Notifier = alerts.Nop{}
	if cfg.TwilioSID != "" && cfg.TwilioToken != "" && cfg.AlertPhone != "" {
		notifier = alerts.NewTwilio(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom, cfg.AlertPhone, cfg.TwilioBase)
	} else {
		log.Printf("[Alerts] Twilio not configured, failure alerts disabled")
	}

	// HTTP surface
	h := handlers.New(cfg, tenants, loop, campaignStore, pgTenants)
	enforcer := middleware.NewPlanEnforcer(tenants)

	r := mux.NewRouter()
	handlers.RegisterRoutes(h, r, enforcer.RequirePro)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	handler := c.Handler(r)

	srv := &http.Server{
		Handler:      handler,
		Addr:         ":" + cfg.Port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	// Handle graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Background: auto-reply sweeper
	if cfg.AutoReplyEnabled {
		w := &workers.AutoReplyWorker{
			Tenants:            tenants,
			Loop:               loop,
			Alerts:             notifier,
			Interval:           cfg.AutoReplyInterval,
			FallbackAccountID:  cfg.FallbackAccountID,
			FallbackLocationID: cfg.FallbackLocationID,
		}
		if pgTenants != nil {
			w.Runs = pgTenants
		}
		go w.Start(rootCtx)
	} else {
		log.Printf("[AutoReply] disabled via AUTO_REPLY_ENABLED=false")
	}

	// Background: campaign scheduler and run-log cleanup (database mode only)
	if campaignStore != nil {
		sender := &campaigns.Sender{
			Store:        campaignStore,
			Mailer:       mailer.NewResend(cfg.ResendKey, cfg.ResendBase, cfg.FromEmail),
			PublicOrigin: cfg.PublicOrigin,
			SigningKey:   cfg.UnsubscribeKey,
		}
		cw := &workers.CampaignWorker{
			Tenants: tenants,
			Store:   campaignStore,
			Sender:  sender,
		}
		if err := cw.Start(rootCtx); err != nil {
			log.Fatalf("Failed to start campaign worker: %v", err)
		}

		cleanup := &workers.ReplyRunCleanupWorker{DB: db, RetentionDays: cfg.RunRetentionDays}
		go cleanup.Start(rootCtx)
	}

	go func() {
		<-stop
		log.Println("Shutting down server...")
		cancel()
		ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
	log.Println("Server stopped")
}
