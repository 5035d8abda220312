package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinova/clinic-scheduling/internal/api"
	"github.com/clinova/clinic-scheduling/internal/clinic"
	"github.com/clinova/clinic-scheduling/internal/config"
	"github.com/clinova/clinic-scheduling/internal/db"
	redisclient "github.com/clinova/clinic-scheduling/internal/redis"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s clinic_offset=%dh", cfg.Env, cfg.HTTPPort, cfg.ClinicUTCOffsetHours)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	clock := clinic.ClinicTime{OffsetHours: cfg.ClinicUTCOffsetHours}
	policy := clinic.Policy{
		Gap:          cfg.MinGap,
		CancelWindow: time.Duration(cfg.CancellationWindowHours) * time.Hour,
	}

	repo := clinic.NewPgRepository(pgPool, clock)
	physicians := clinic.NewPgPhysicianDirectory(pgPool)
	cache := redisclient.NewSlotCache(rdb, cfg.SlotCacheTTL)

	svc := clinic.NewService(repo, physicians, cache, clinic.ServiceConfig{
		Policy:        policy,
		SlotIncrement: cfg.SlotIncrement,
		Clock:         clock,
		NoShowGrace:   cfg.NoShowGrace,
	})

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		Window: api.BookingWindow{
			MinDaysAhead: cfg.BookingMinDaysAhead,
			MaxDaysAhead: cfg.BookingMaxDaysAhead,
		},
		PgPool:  pgPool,
		Redis:   rdb,
		Env:     cfg.Env,
		Version: version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()

	log.Println("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
}
