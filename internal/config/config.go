package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "strings"
    "time"

    "github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
    DriverMySQL  = "mysql"
    DriverMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    StoreDriver    string // mysql or memory
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    DBMigrate      bool   // apply the embedded schema at startup
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time‑to‑live in minutes
    RefreshTTLDays int    // refresh token time‑to‑live in days
    BcryptCost     int    // bcrypt cost for password hashing
    SeatsPerRow    int    // width of lazily generated seat grids
    AdminEmail     string // bootstrap admin account (optional)
    AdminPassword  string
    CORSOrigins    []string
    LogLevel       string
    LogFormat      string

    AnalyticsCacheTTL     time.Duration
    WaitlistSweepInterval time.Duration
    RabbitURL             string // empty disables cross-instance fan-out
    NotifyExchange        string
}

// Load reads configuration values from the environment, after merging an
// optional .env file, and returns a Config.  Required variables are
// enforced by must() and missing values cause the program to exit with a
// fatal log message.  The memory driver needs no database settings.
func Load() Config {
    _ = godotenv.Load() // a missing .env file is not an error

    cfg := Config{
        Env:            envStr("APP_ENV", "dev"),
        Port:           envStr("APP_PORT", "8080"),
        StoreDriver:    strings.ToLower(envStr("STORE_DRIVER", DriverMySQL)),
        DBPass:         os.Getenv("DB_PASS"), // empty allowed
        DBMigrate:      envBool("DB_MIGRATE", true),
        JWTSecret:      must("JWT_SECRET"),
        AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 60),
        RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 14),
        BcryptCost:     envInt("BCRYPT_COST", 10),
        SeatsPerRow:    envInt("SEATS_PER_ROW", 10),
        AdminEmail:     os.Getenv("ADMIN_EMAIL"),
        AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
        CORSOrigins:    splitList(envStr("CORS_ORIGINS", "*")),
        LogLevel:       envStr("LOG_LEVEL", "info"),
        LogFormat:      envStr("LOG_FORMAT", "json"),

        AnalyticsCacheTTL:     envDur("ANALYTICS_CACHE_TTL", time.Minute),
        WaitlistSweepInterval: envDur("WAITLIST_SWEEP_INTERVAL", time.Minute),
        RabbitURL:             rabbitURL(),
        NotifyExchange:        envStr("NOTIFY_EXCHANGE", "evently.notifications"),
    }
    if cfg.StoreDriver == DriverMySQL {
        cfg.DBUser = must("DB_USER")
        cfg.DBHost = must("DB_HOST")
        cfg.DBPort = envStr("DB_PORT", "3306")
        cfg.DBName = must("DB_NAME")
    }
    if cfg.SeatsPerRow < 1 {
        cfg.SeatsPerRow = 10
    }
    return cfg
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

// rabbitURL honours RABBITMQ_URL and the AMQP_URL alias.
func rabbitURL() string {
    if v := os.Getenv("RABBITMQ_URL"); v != "" {
        return v
    }
    return os.Getenv("AMQP_URL")
}

func splitList(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}

func envStr(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }
func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" { return d }
    switch v {
    case "1","true","TRUE","True","yes","YES","on","ON": return true
    case "0","false","FALSE","False","no","NO","off","OFF": return false
    }
    return d
}
func envInt(k string, d int) int {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.Atoi(v); err == nil { return n }
    return d
}
func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}
