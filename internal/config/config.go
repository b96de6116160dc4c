package config // package config loads application configuration from environment variables

import (
    "log"      // log is used to report configuration errors and halt execution
    "os"       // os provides access to environment variables
    "time"

    "github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Durations accept Go duration syntax ("10m").
type Config struct {
    Env            string        // application environment (e.g. "dev", "prod")
    Port           string        // HTTP port to listen on
    AppName        string        // shown in payment descriptions
    StoreDriver    string        // "mysql" or "memory"
    DBUser         string        // database username
    DBPass         string        // database password (optional)
    DBHost         string        // database host address
    DBPort         string        // database port number
    DBName         string        // database name
    DBMigrate      bool          // apply schema.sql on startup
    JWTSecret      string        // HS256 secret shared with the identity provider
    HoldDuration   time.Duration // lifetime of a seat hold
    PaymentGrace   time.Duration // extra time a pending booking gets after its hold lapses
    SweepSchedule  string        // cron expression for the abandoned booking sweep, empty disables it
    RequestTimeout time.Duration // upper bound for store work per request
    LogLevel       string
    RabbitMQURL    string        // empty disables booking event publishing
    Mpesa          MpesaConfig
}

// Load reads configuration values from the environment (and an optional
// .env file) and returns a Config.  Required variables are enforced by
// must() and missing values cause the program to exit with a fatal log
// message.
func Load() Config {
    _ = godotenv.Load() // .env is optional; real environment wins

    cfg := Config{
        Env:            must("APP_ENV"),                        // environment (dev/test/prod)
        Port:           must("APP_PORT"),                       // port to bind the HTTP server
        AppName:        envStr("APP_NAME", "Kututa Railway"),
        StoreDriver:    envStr("STORE_DRIVER", "mysql"),
        DBPass:         os.Getenv("DB_PASS"),                   // database password (empty allowed)
        DBMigrate:      envBool("DB_MIGRATE", false),
        JWTSecret:      must("JWT_SECRET"),                     // secret used to verify bearer tokens
        HoldDuration:   envDur("HOLD_DURATION", 10*time.Minute),
        PaymentGrace:   envDur("PAYMENT_GRACE", 2*time.Minute),
        SweepSchedule:  envStr("SWEEP_SCHEDULE", "@every 1m"),
        RequestTimeout: envDur("REQUEST_TIMEOUT", 10*time.Second),
        LogLevel:       envStr("LOG_LEVEL", "info"),
        RabbitMQURL:    rabbitURL(),
        Mpesa:          LoadMpesaConfig(),
    }
    if cfg.StoreDriver == "mysql" {
        cfg.DBUser = must("DB_USER")
        cfg.DBHost = must("DB_HOST")
        cfg.DBPort = must("DB_PORT")
        cfg.DBName = must("DB_NAME")
    }
    if cfg.HoldDuration <= 0 {
        log.Fatalf("invalid HOLD_DURATION: %s", cfg.HoldDuration)
    }
    return cfg
}

// rabbitURL honours both RABBITMQ_URL and AMQP_URL.  Publishing is
// disabled when neither is set.
func rabbitURL() string {
    if v := os.Getenv("RABBITMQ_URL"); v != "" {
        return v
    }
    return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}
