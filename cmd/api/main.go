package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bryanwahyu/teknisi-ai/internal/application"
	appcases "github.com/bryanwahyu/teknisi-ai/internal/application/cases"
	appdiag "github.com/bryanwahyu/teknisi-ai/internal/application/diagnosis"
	"github.com/bryanwahyu/teknisi-ai/internal/config"
	"github.com/bryanwahyu/teknisi-ai/internal/domain/ai"
	"github.com/bryanwahyu/teknisi-ai/internal/domain/analysiserrors"
	domdiag "github.com/bryanwahyu/teknisi-ai/internal/domain/diagnosis"
	geminiai "github.com/bryanwahyu/teknisi-ai/internal/infra/ai/gemini"
	openaiai "github.com/bryanwahyu/teknisi-ai/internal/infra/ai/openai"
	"github.com/bryanwahyu/teknisi-ai/internal/infra/ai/retry"
	mysqlp "github.com/bryanwahyu/teknisi-ai/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/teknisi-ai/internal/infra/db/postgres"
	"github.com/bryanwahyu/teknisi-ai/internal/infra/httpserver"
	"github.com/bryanwahyu/teknisi-ai/internal/infra/importer"
	minioStore "github.com/bryanwahyu/teknisi-ai/internal/infra/storage"
	"github.com/bryanwahyu/teknisi-ai/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// history + error audit opsional, service jalan stateless kalau kosong
	var (
		repo     domdiag.Repository
		errorLog analysiserrors.Repository
		checkers = map[string]middleware.HealthChecker{}
	)
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		defer db.Close()
		repo = mysqlp.NewDiagnosisRepository(db)
		errorLog = mysqlp.NewAnalysisErrorRepository(db)
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		defer db.Close()
		repo = postgresp.NewDiagnosisRepository(db)
		errorLog = postgresp.NewAnalysisErrorRepository(db)
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	case "":
		log.Println("database not configured, history disabled")
	default:
		log.Fatalf("unknown database driver: %s", cfg.Database.Driver)
	}

	// penyimpanan foto juga opsional
	var photos domdiag.PhotoStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		photos = store
	}

	// pilih provider AI
	var client ai.Client
	switch cfg.AI.Provider {
	case "openai":
		oc := openaiai.NewClient(cfg.AIKey(), cfg.AI.Model)
		if !oc.CredentialConfigured() {
			log.Println("warning: openai api key not configured")
		}
		client = oc
	case "gemini", "":
		gcfg := geminiai.DefaultConfig(cfg.AIKey())
		if cfg.AI.Model != "" {
			gcfg.Model = cfg.AI.Model
		}
		gc := geminiai.NewClient(gcfg)
		if !gc.CredentialConfigured() {
			log.Println("warning: gemini api key not configured")
		}
		client = gc
	default:
		log.Fatalf("unknown ai provider: %s", cfg.AI.Provider)
	}

	invoker := retry.New(client, retry.Policy{
		MaxAttempts:  cfg.AI.MaxAttempts,
		InitialDelay: time.Duration(cfg.AI.InitialDelaySeconds) * time.Second,
		Classifier:   ai.DefaultClassifierConfig(),
	})

	// init service
	casesSvc := appcases.NewService(importer.Loader{})
	diagSvc := &appdiag.Service{
		AI:       invoker,
		Cases:    casesSvc,
		Repo:     repo,
		ErrorLog: errorLog,
		Photos:   photos,
		Clock:    application.SystemClock{},
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if cfg.RateLimit.Capacity > 0 {
		mux.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))
	}
	if len(cfg.Auth.Keys) > 0 {
		mux.Use(middleware.APIKeyAuth(cfg.Auth.Keys))
	}
	mux.Get("/healthz", middleware.HealthHandler(checkers))
	mux.Get("/readyz", middleware.ReadinessHandler)
	mux.Mount("/", httpserver.NewRouter(casesSvc, diagSvc, cfg.Server.AllowedOrigins))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
		// analisa AI bisa lama, write timeout harus longgar
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
