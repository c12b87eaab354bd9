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

	"github.com/joho/godotenv"

	"github.com/iliyamo/course-marketplace/internal/config"
	"github.com/iliyamo/course-marketplace/internal/database"
	"github.com/iliyamo/course-marketplace/internal/middleware"
	"github.com/iliyamo/course-marketplace/internal/queue"
	"github.com/iliyamo/course-marketplace/internal/repository"
	"github.com/iliyamo/course-marketplace/internal/router"
	"github.com/iliyamo/course-marketplace/internal/service"
	"github.com/iliyamo/course-marketplace/internal/upload"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var events service.EventPublisher
	if cfg.EventsEnabled {
		pub := queue.NewAsyncPublisher(queue.NewPublisher(cfg.AMQPURL), 256)
		defer pub.Close()
		events = pub
		go func() {
			if err := queue.NewActivityConsumer(cfg.AMQPURL).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("activity consumer stopped: %v", err)
			}
		}()
	}

	users := repository.NewUserRepo(db)
	courses := repository.NewCourseRepo(db)
	enrollments := repository.NewEnrollmentRepo(db)
	reviews := repository.NewReviewRepo(db)
	tokens := repository.NewTokenRepo(db)
	buster := middleware.NewCacheBuster(cacheCfg, rdb)
	images := upload.NewLocalStore(cfg.UploadDir, cfg.MaxUploadBytes)

	e := router.New(router.Deps{
		Cfg:           cfg,
		RateLimit:     config.LoadRateLimitConfig(),
		AuthRateLimit: config.LoadAuthRateLimitConfig(),
		Cache:         cacheCfg,
		Redis:         rdb,
		DB:            db,
		Auth:          service.NewAuthService(cfg, users, tokens, events),
		Users:         service.NewUserService(cfg, users, enrollments, events, buster),
		Courses:       service.NewCourseService(courses, reviews, images, events, buster),
		Stats:         service.NewStatsService(repository.NewStatsRepo(db)),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
