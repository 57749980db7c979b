package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/google/generative-ai-go/genai"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"google.golang.org/api/option"

	"festival-tickets/internal/auth"
	"festival-tickets/internal/blob"
	"festival-tickets/internal/config"
	"festival-tickets/internal/database/migrations"
	"festival-tickets/internal/festival"
	"festival-tickets/internal/ingest"
	"festival-tickets/internal/ingest/extract"
	"festival-tickets/internal/ingest/qrlocate"
	"festival-tickets/internal/ingest/render"
	"festival-tickets/internal/kafka"
	"festival-tickets/internal/logger"
	"festival-tickets/internal/ratings"
	ticket_db "festival-tickets/internal/tickets/db"
	tickets "festival-tickets/internal/tickets/service"
	"festival-tickets/internal/tickets/ticket_api"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN())
		if err == nil {
			if err = sqldb.Ping(); err == nil {
				break
			}
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Ticket Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.RunMigrations(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	defer runner.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis unavailable, festival link cache disabled: %v", err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		if cfg.Kafka.MockMode {
			producer = kafka.NewMockProducer()
			log.Info("KAFKA", "Kafka producer running in mock mode")
		} else {
			if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topic}); err != nil {
				log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
			}
			producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			log.Info("KAFKA", "Kafka producer initialized successfully")
		}
		defer producer.Close()
	}

	if cfg.Vision.APIKey == "" {
		log.Fatal("CONFIG", "GEMINI_API_KEY not set")
	}
	genaiClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.Vision.APIKey))
	if err != nil {
		log.Fatal("VISION", fmt.Sprintf("Failed to create vision client: %v", err))
	}
	defer genaiClient.Close()
	log.Info("VISION", fmt.Sprintf("Vision client ready, model %s", cfg.Vision.Model))

	store, err := blob.NewMinioStore(ctx, blob.MinioConfig{
		Endpoint:      cfg.Blob.Endpoint,
		AccessKey:     cfg.Blob.AccessKey,
		SecretKey:     cfg.Blob.SecretKey,
		Bucket:        cfg.Blob.Bucket,
		UseSSL:        cfg.Blob.UseSSL,
		PublicBaseURL: cfg.Blob.PublicBaseURL,
	})
	if err != nil {
		log.Fatal("STORAGE", fmt.Sprintf("Failed to initialize blob storage: %v", err))
	}
	log.Info("STORAGE", fmt.Sprintf("Blob storage ready, bucket %s", cfg.Blob.Bucket))

	ticketDB := &ticket_db.DB{Bun: bunDB}
	ticketService := tickets.NewTicketService(ticketDB, cfg.Screenings.SkipInvalid, log)

	var linkFinder ingest.LinkFinder
	if redisClient != nil {
		linkFinder = festival.NewFinder(genaiClient, cfg.Vision.Model, redisClient, cfg.Vision.FestivalCacheTTL, log)
	}

	var publisher ingest.EventPublisher
	if producer != nil {
		publisher = producer
	}

	pipeline := ingest.NewPipeline(
		render.NewRenderer(cfg.Ingest.RenderScale),
		extract.NewExtractor(genaiClient, cfg.Vision.Model),
		qrlocate.NewLocator(),
		store,
		ticketDB,
		publisher,
		linkFinder,
		log,
	)

	ticketHandler := ticket_api.NewHandler(pipeline, ticketService, store, log)

	ratingStorage := ratings.NewStorage(bunDB)
	ratingHandler := ratings.NewHandler(ratings.NewService(ratingStorage, log), log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	registerRoutes := func(r chi.Router) {
		ticketHandler.RegisterRoutes(r)
		ratingHandler.RegisterRoutes(r)
	}

	if cfg.Auth.Disabled {
		log.Warn("AUTH", "Authentication disabled, all routes are public")
		registerRoutes(r)
	} else {
		verifier, err := auth.NewVerifier(ctx, cfg.Auth)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("Failed to initialize OIDC verifier: %v", err))
		}
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(verifier, cfg.Auth.Whitelist, log))
			registerRoutes(r)
		})
		log.Info("AUTH", "OIDC middleware applied to API routes")
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Ticket Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Ticket Service shutdown complete")
	}
}
