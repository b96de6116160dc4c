package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4" // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/kututa/railway-booking/internal/config"   // Internal config loader
	"github.com/kututa/railway-booking/internal/database" // MySQL connection and schema
	"github.com/kututa/railway-booking/internal/handler"
	"github.com/kututa/railway-booking/internal/logging"
	"github.com/kututa/railway-booking/internal/memstore"
	"github.com/kututa/railway-booking/internal/middleware"
	"github.com/kututa/railway-booking/internal/mpesa"
	"github.com/kututa/railway-booking/internal/queue"
	"github.com/kututa/railway-booking/internal/realtime"
	"github.com/kututa/railway-booking/internal/repository"
	"github.com/kututa/railway-booking/internal/router" // Internal router setup
	"github.com/kututa/railway-booking/internal/service"
)

const bookingLogPath = "logs/booking.log"

func main() {
	cfg := config.Load() // Load environment config
	log := logging.New(cfg.Env, cfg.LogLevel, "railway-booking")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, checks, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		log.Warn("redis unavailable: rate limiting and caching disabled, seat changes stay in-process")
	}
	feed := seatFeed(rdb, log)

	var publisher service.BookingPublisher
	if cfg.RabbitMQURL != "" {
		pub := queue.NewPublisher(cfg.RabbitMQURL, log)
		defer pub.Close()
		publisher = pub

		consumer := queue.NewConsumer(cfg.RabbitMQURL, bookingLogPath, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("booking event consumer stopped")
			}
		}()
	}

	clock := service.SystemClock{}
	locks := service.NewSeatLockManager(stores, clock, log,
		service.WithHoldDuration(cfg.HoldDuration),
		service.WithSeatNotifier(feed),
	)
	bookingOpts := []service.BookingOption{service.WithBookingNotifier(feed)}
	if publisher != nil {
		bookingOpts = append(bookingOpts, service.WithBookingPublisher(publisher))
	}
	bookings := service.NewBookingController(stores, clock, log, bookingOpts...)

	gateway := mpesa.NewClient(cfg.Mpesa, nil)
	if !gateway.Configured() {
		log.Warn("mpesa credentials missing: stk push is disabled")
	}
	reconciler := service.NewReconciler(stores, clock, gateway, bookings, cfg.AppName, log)
	sweeper := service.NewSweeper(stores, clock, bookings, cfg.HoldDuration, cfg.PaymentGrace, log)

	scheduler := cron.New()
	if cfg.SweepSchedule != "" {
		if _, err := scheduler.AddFunc(cfg.SweepSchedule, sweeper.Run); err != nil {
			log.WithError(err).Fatalf("invalid SWEEP_SCHEDULE %q", cfg.SweepSchedule)
		}
		scheduler.Start()
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))

	router.Register(e, router.Handlers{
		Health:    &handler.HealthHandler{Checks: checks},
		Train:     handler.NewTrainHandler(service.NewCatalog(stores)),
		Seat:      handler.NewSeatHandler(locks, feed, log),
		Passenger: handler.NewPassengerHandler(service.NewPassengerService(stores, clock)),
		Booking:   handler.NewBookingHandler(bookings),
		Payment:   handler.NewPaymentHandler(reconciler, log),
		Admin:     handler.NewAdminHandler(sweeper),
	}, router.Middleware{
		JWTSecret:      cfg.JWTSecret,
		RequestTimeout: cfg.RequestTimeout,
		RateLimit:      middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
		Cache:          middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
		CallbackToken:  middleware.CallbackToken(cfg.Mpesa.CallbackTokenHash, log),
	})

	addr := ":" + cfg.Port // Address string with port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "store": cfg.StoreDriver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	<-scheduler.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
}

// openStore builds the stores for STORE_DRIVER.  "memory" keeps everything
// in process and seeds the demo timetable.
func openStore(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (service.Stores, map[string]handler.Pinger, func()) {
	checks := map[string]handler.Pinger{}
	if cfg.StoreDriver == "memory" {
		mem := memstore.New()
		mem.SeedDemo()
		log.Warn("using in-memory store with demo data")
		return service.Stores{
			Tx:         mem,
			Holds:      mem.Holds,
			Bookings:   mem.Bookings,
			Payments:   mem.Payments,
			Passengers: mem.Passengers,
			Seats:      mem.Seats,
			Trains:     mem.Trains,
		}, checks, func() {}
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("migrate database")
		}
		log.Info("database schema applied")
	}
	checks["mysql"] = db
	return mysqlStores(db), checks, func() { _ = db.Close() }
}

func mysqlStores(db *sql.DB) service.Stores {
	return service.Stores{
		Tx:         repository.NewTxManager(db),
		Holds:      repository.NewSeatHoldRepo(db),
		Bookings:   repository.NewBookingRepo(db),
		Payments:   repository.NewPaymentRepo(db),
		Passengers: repository.NewPassengerRepo(db),
		Seats:      repository.NewSeatRepo(db),
		Trains:     repository.NewTrainRepo(db),
	}
}

// seatFeed fans seat changes out through Redis when available so every
// instance's viewers see them, and in process otherwise.
func seatFeed(rdb *redis.Client, log logrus.FieldLogger) realtime.Feed {
	if rdb == nil {
		return realtime.NewHub(log)
	}
	return realtime.NewRedisFeed(rdb, log)
}
