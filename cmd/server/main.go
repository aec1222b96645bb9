package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/database"
	"github.com/iliyamo/table-reservation/internal/handler"
	"github.com/iliyamo/table-reservation/internal/logger"
	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/queue"
	"github.com/iliyamo/table-reservation/internal/ratelimit"
	"github.com/iliyamo/table-reservation/internal/repository"
	"github.com/iliyamo/table-reservation/internal/router"
	"github.com/iliyamo/table-reservation/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional
	cfg := config.Load()
	rlCfg := config.LoadRateLimitConfig()
	logger.SetDefault(logger.New(os.Stdout, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := openStore(cfg)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db, dialect); err != nil {
		log.Fatalf("db: %v", err)
	}

	customers := repository.NewCustomerRepo(db)
	reservations := repository.NewReservationRepo(db, dialect)
	alloc := service.NewTableAllocator(reservations, service.ParseStrategy(cfg.AllocationStrategy))

	opts := []service.BookingOption{}
	if rlCfg.AllocatorRPS > 0 {
		opts = append(opts, service.WithAllocatorGate(rate.NewLimiter(rate.Limit(rlCfg.AllocatorRPS), rlCfg.AllocatorBurst)))
	}
	if cfg.EventsEnabled {
		opts = append(opts, service.WithPublisher(service.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsPublishTimeout)))
		sink := queue.NewReservationLog(cfg.EventsLogDir)
		go func() {
			if err := queue.StartReservationConsumer(ctx, cfg.AMQPURL, sink); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("reservation consumer stopped", "error", err)
			}
		}()
	}

	bookingLimiter := newLimiter(rlCfg, "booking")
	newsletterLimiter := newLimiter(rlCfg, "newsletter")

	booking := service.NewBookingService(db, customers, reservations, alloc, bookingLimiter, service.BookingConfig{
		SlotMinutes:   cfg.SlotMinutes,
		TotalTables:   cfg.TotalTables,
		MaxGuests:     cfg.MaxGuests,
		RequireFuture: cfg.RequireFuture,
		EnforceHours:  cfg.EnforceHours,
	}, opts...)
	newsletter := service.NewNewsletterService(db, customers)

	e, err := newServer(cfg, booking, newsletter, newsletterLimiter)
	if err != nil {
		log.Fatalf("server: %v", err)
	}

	addr := ":" + cfg.Port
	logger.Info("listening", "addr", addr, "env", cfg.Env, "db", string(dialect),
		"strategy", string(alloc.Strategy()), "total_tables", cfg.TotalTables, "slot_minutes", cfg.SlotMinutes)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

// newServer builds the Echo instance with its middleware chain and routes.
func newServer(cfg config.Config, booking *service.BookingService, newsletter *service.NewsletterService, newsletterLimiter ratelimit.Limiter) (*echo.Echo, error) {
	ipExtractor, err := middleware.ClientIPExtractor(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.IPExtractor = ipExtractor
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator:        uuid.NewString,
		RequestIDHandler: middleware.RequestIDHandler,
	}))
	e.Use(middleware.RequestLogger())
	e.Use(echomw.BodyLimit("64K"))
	e.Use(echomw.ContextTimeout(10 * time.Second))

	router.RegisterRoutes(e)
	router.RegisterReservations(e, handler.NewReservationHandler(booking), cfg.JWTSecret)
	router.RegisterNewsletter(e, handler.NewNewsletterHandler(newsletter), newsletterLimiter)
	return e, nil
}

func openStore(cfg config.Config) (*sql.DB, database.Dialect, error) {
	if cfg.DBDriver == "sqlite" {
		db, err := database.OpenSQLite(cfg.DBPath)
		return db, database.SQLite, err
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	return db, database.MySQL, err
}

// newLimiter builds the per-client limiter for one endpoint family.  A Redis
// backend that cannot be reached degrades to the in-process limiter.
func newLimiter(cfg config.RateLimitConfig, scope string) ratelimit.Limiter {
	if !cfg.Enabled {
		return ratelimit.Disabled{}
	}
	if cfg.Backend == "redis" {
		if rdb := config.NewRedisClient(config.LoadRedisConfig()); rdb != nil {
			return ratelimit.NewRedisFixedWindow(rdb, cfg.Prefix+":"+scope, cfg.Window, cfg.Max)
		}
		logger.Warn("redis unavailable, using in-process rate limiter", "scope", scope)
	}
	return ratelimit.NewFixedWindow(cfg.Window, cfg.Max)
}
