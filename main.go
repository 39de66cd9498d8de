package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/LovationAdmin/astrodart-api/config"
	"github.com/LovationAdmin/astrodart-api/handlers"
	"github.com/LovationAdmin/astrodart-api/jobs"
	"github.com/LovationAdmin/astrodart-api/migration"
	"github.com/LovationAdmin/astrodart-api/routes"
	"github.com/LovationAdmin/astrodart-api/services"
	"github.com/LovationAdmin/astrodart-api/store"
	"github.com/LovationAdmin/astrodart-api/utils"
)

const version = "1.0.0"

func main() {
	runJob := flag.String("run-job", "", "run one job ("+strings.Join(jobs.Names, "|")+") and exit")
	migrate := flag.Bool("migrate", false, "backfill stored documents and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}
	utils.ConfigureLogging(cfg.Production, cfg.LogLevel)
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	userStore, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal("Failed to open document store:", err)
	}
	defer closeStore()
	log.Printf("✅ Document store ready (%s)", cfg.Store.Driver)

	cipher, err := utils.NewTokenCipher(cfg.DataEncryptKey)
	if err != nil {
		log.Fatal("Invalid DATA_ENCRYPTION_KEY:", err)
	}
	plaidService := services.NewPlaidService(cfg.Plaid, cipher)

	if *migrate {
		if _, err := migration.BackfillDocuments(ctx, userStore, cipher, cfg.Jobs.ScanPageSize); err != nil {
			log.Fatal("Migration failed:", err)
		}
		return
	}

	runner := jobs.NewRunner(userStore, plaidService, cfg.Jobs)

	if *runJob != "" {
		if _, err := runner.Run(ctx, *runJob); err != nil {
			log.Fatal("Job failed:", err)
		}
		return
	}

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET (or SECRET) is required to serve the API")
	}

	wsHandler := handlers.NewWSHandler()
	runner.Notifier = wsHandler

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler, err = startScheduler(runner, cfg.Jobs)
		if err != nil {
			log.Fatal("Failed to start scheduler:", err)
		}
	}

	router := routes.NewRouter(cfg, userStore, plaidService, wsHandler)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		utils.LogStartup("AstroDart API", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	wsHandler.M.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Server shutdown failed: %v", err)
	}
}

// openStore builds the configured backend and returns a matching close func.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverDynamo:
		s, err := store.NewDynamoStore(ctx, cfg.AWSRegion, cfg.DynamoEndpoint, cfg.DynamoTable)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil

	case config.DriverPostgres:
		db, err := config.InitDB(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := config.RunMigrations(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store.NewPostgresStore(db), func() { db.Close() }, nil

	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := store.NewMongoStore(connectCtx, cfg.MongoURL, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.Close(closeCtx)
		}, nil

	case config.DriverMemory:
		log.Println("⚠️ Using the in-memory store, documents are lost on restart")
		return store.NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func startScheduler(runner *jobs.Runner, cfg config.JobsConfig) (*jobs.Scheduler, error) {
	var guard jobs.Guard
	if cfg.RedisAddr != "" {
		redisGuard, err := jobs.NewRedisGuard(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		guard = redisGuard
		log.Printf("✅ Job run guard enabled (redis %s)", cfg.RedisAddr)
	}

	scheduler, err := jobs.NewScheduler(runner, guard, cfg)
	if err != nil {
		return nil, err
	}
	scheduler.Start()
	return scheduler, nil
}
