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

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"

    "github.com/iliyamo/evently/internal/cache"
    "github.com/iliyamo/evently/internal/config"
    "github.com/iliyamo/evently/internal/database"
    "github.com/iliyamo/evently/internal/handler"
    "github.com/iliyamo/evently/internal/logging"
    "github.com/iliyamo/evently/internal/metrics"
    "github.com/iliyamo/evently/internal/middleware"
    "github.com/iliyamo/evently/internal/notify"
    "github.com/iliyamo/evently/internal/queue"
    "github.com/iliyamo/evently/internal/repository"
    "github.com/iliyamo/evently/internal/repository/memory"
    "github.com/iliyamo/evently/internal/router"
    "github.com/iliyamo/evently/internal/scheduler"
    "github.com/iliyamo/evently/internal/service"
    "github.com/iliyamo/evently/internal/validation"
)

func main() {
    cfg := config.Load() // Load environment config
    logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    // Storage
    var (
        store repository.Store
        users repository.UserStore
        ping  func(context.Context) error
    )
    switch cfg.StoreDriver {
    case config.DriverMemory:
        mem := memory.New()
        store, users = mem, mem
        logging.Warn().Msg("using in-memory store; data is lost on restart")
    case config.DriverMySQL:
        db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
        if err != nil {
            logging.Error().Err(err).Msg("db connect failed")
            os.Exit(1)
        }
        defer closeDB(db)
        if cfg.DBMigrate {
            if err := database.Migrate(ctx, db); err != nil {
                logging.Error().Err(err).Msg("db migrate failed")
                os.Exit(1)
            }
        }
        ms := repository.NewMySQLStore(db)
        store, users, ping = ms, ms, db.PingContext
    default:
        logging.Error().Str("driver", cfg.StoreDriver).Msg("unknown STORE_DRIVER")
        os.Exit(1)
    }

    // Redis backs the response cache, the analytics cache and the rate
    // limiter.  Nil when disabled or unreachable.
    rdb := config.NewRedisClient(config.LoadRedisConfig())
    if rdb != nil {
        defer rdb.Close()
    }
    opts := service.Options{
        SeatsPerRow: cfg.SeatsPerRow,
        Metrics:     metrics.Prometheus{},
        SummaryTTL:  cfg.AnalyticsCacheTTL,
    }
    if rdb != nil {
        opts.Cache = cache.New(rdb, "evently")
    }

    // Notifications
    hub := notify.NewHub(32)
    hub.OnDrop = metrics.NotificationsDropped.Inc
    defer hub.Close()
    opts.Notifier = hub
    if cfg.RabbitURL != "" {
        origin := uuid.NewString()
        pub := queue.NewPublisher(cfg.RabbitURL, cfg.NotifyExchange)
        defer pub.Close()
        fan := queue.NewFanout(hub, pub, origin, 256)
        defer fan.Close()
        opts.Notifier = fan

        consumer := &queue.Consumer{URL: cfg.RabbitURL, Exchange: cfg.NotifyExchange, Origin: origin, Local: hub}
        go func() {
            if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
                logging.Warn().Err(err).Msg("notify-consumer stopped")
            }
        }()
    }

    svc := service.New(store, opts)
    accounts := service.NewAccounts(users, service.AuthConfig{
        JWTSecret:      cfg.JWTSecret,
        AccessTTLMin:   cfg.AccessTTLMin,
        RefreshTTLDays: cfg.RefreshTTLDays,
        BcryptCost:     cfg.BcryptCost,
    })
    if cfg.AdminEmail != "" {
        if err := accounts.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
            logging.Error().Err(err).Str("email", cfg.AdminEmail).Msg("admin bootstrap failed")
            os.Exit(1)
        }
    }

    // Background jobs
    sched, err := scheduler.New(scheduler.Config{
        SweepEvery: cfg.WaitlistSweepInterval,
        WarmEvery:  cfg.AnalyticsCacheTTL,
    }, svc.Waitlist, svc.Analytics)
    if err != nil {
        logging.Error().Err(err).Msg("scheduler init failed")
        os.Exit(1)
    }
    sched.Start()

    // HTTP
    e := echo.New() // Create Echo instance
    e.HideBanner = true
    e.Validator = validation.Echo{}
    e.HTTPErrorHandler = handler.HTTPErrorHandler
    e.Use(echomw.Recover())
    e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
    e.Use(middleware.RequestLogger())
    e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
        AllowOrigins:  cfg.CORSOrigins,
        AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, handler.IdempotencyHeader},
        ExposeHeaders: []string{echo.HeaderXRequestID, "Retry-After"},
    }))
    e.Use(middleware.Session(cfg.JWTSecret))

    rl := config.LoadRateLimitConfig()
    limits := router.Limits{
        Global:  middleware.NewTokenBucket(rl, rdb),
        Booking: middleware.NewTokenBucket(config.BookingRateLimitConfig(rl), rdb),
    }
    if cc := config.LoadCacheConfig(); cc.Enabled && rdb != nil {
        limits.Cache = middleware.NewRedisCache(cc, rdb)
    }

    stream := &handler.StreamHandler{Hub: hub, Catalog: svc.Catalog}
    router.RegisterRoutes(e, handler.Health{Ping: ping})
    router.RegisterAuth(e, handler.NewAuthHandler(accounts), limits)
    router.RegisterPublic(e, &handler.EventHandler{Catalog: svc.Catalog, Seats: svc.Seats}, stream, limits)
    router.RegisterBookings(e, &handler.BookingHandler{Bookings: svc.Bookings}, stream, limits)
    router.RegisterAdmin(e, &handler.AdminHandler{
        Catalog:   svc.Catalog,
        Seats:     svc.Seats,
        Accounts:  accounts,
        Analytics: svc.Analytics,
    }, limits)

    addr := ":" + cfg.Port // Address string with port
    go func() {
        logging.Info().Str("addr", addr).Str("env", cfg.Env).Str("store", cfg.StoreDriver).Msg("listening")
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            logging.Error().Err(err).Msg("server failed")
            stop()
        }
    }()

    <-ctx.Done()
    logging.Info().Msg("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := sched.Shutdown(); err != nil {
        logging.Warn().Err(err).Msg("scheduler shutdown")
    }
    // open streams end when the hub closes
    hub.Close()
    if err := e.Shutdown(shutdownCtx); err != nil {
        logging.Warn().Err(err).Msg("server shutdown")
    }
}

func closeDB(db *sql.DB) {
    if err := db.Close(); err != nil {
        logging.Warn().Err(err).Msg("db close")
    }
}
