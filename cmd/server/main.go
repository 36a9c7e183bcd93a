package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"brainduel/internal/cache"
	"brainduel/internal/config"
	"brainduel/internal/repository"
	"brainduel/internal/service"
	"brainduel/internal/transport/rest"
	"brainduel/internal/transport/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, using environment")
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("LOG_LEVEL") == "debug" {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg := config.Load()
	ctx := context.Background()

	if cfg.AI.IsEnabled() {
		log.WithField("model", cfg.AI.Model).Info("question generator: Gemini enabled")
	} else {
		log.Warn("question generator: GEMINI_API_KEY not set, using built-in question bank")
	}

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.WithError(err).Fatal("failed to ping MongoDB")
	}
	log.Info("connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDB)

	// Redis connection
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.WithError(err).Fatal("failed to ping Redis")
	}
	log.Info("connected to Redis")

	// Initialize WebSocket hub
	wsHub := ws.NewHub(log)

	// Initialize repositories
	matchRepo := repository.NewMatchRepo(mongoClient, db)
	userRepo := repository.NewUserRepo(db)

	// Initialize caches
	matchBus := cache.NewMatchBus(rdb)
	presence := cache.NewPresenceCache(rdb)

	// Initialize services
	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret)
	generator := service.NewGeneratorService(cfg.AI, log)
	matchSvc := service.NewMatchService(matchRepo, userRepo, matchBus, cfg.Game, log)
	scoreSvc := service.NewScoreService(matchRepo, matchBus, log)
	roundSvc := service.NewRoundService(matchRepo, matchBus, generator, scoreSvc, cfg.Game, log)
	syncSvc := service.NewSyncService(matchRepo, userRepo, presence, matchBus, matchSvc, roundSvc, log)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	roundSvc.SetBroadcaster(wsHub)
	syncSvc.SetBroadcaster(wsHub)

	// Create router with container
	container := &rest.Container{
		AuthService:  authSvc,
		MatchService: matchSvc,
		RoundService: roundSvc,
		SyncService:  syncSvc,
		UserRepo:     userRepo,
		Presence:     presence,
		WSHub:        wsHub,
		Logger:       log,
	}

	router := rest.NewRouter(container)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.HTTPPort).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("ListenAndServe")
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server exited")
}
