package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and costs.
type Config struct {
    Env          string // application environment (e.g. "dev", "prod")
    Port         string // HTTP port to listen on
    DBDriver     string // "mysql" (production) or "sqlite" (development)
    DBUser       string // database username (mysql)
    DBPass       string // database password (optional)
    DBHost       string // database host address (mysql)
    DBPort       string // database port number (mysql)
    DBName       string // database name (mysql)
    DBPath       string // database file path (sqlite)
    JWTSecret    string // secret used to sign bearer tokens
    TokenTTLH    int    // bearer token and session time-to-live in hours
    BcryptCost   int    // bcrypt cost for password hashing
    AdminAPIKey  string // shared key for the admin surface (X-Admin-Api-Key)
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Database variables
// are only required for the driver actually selected.
func Load() Config {
    cfg := Config{
        Env:         must("APP_ENV"),
        Port:        must("APP_PORT"),
        DBDriver:    envStr("DB_DRIVER", "mysql"),
        JWTSecret:   must("JWT_SECRET"),
        TokenTTLH:   envInt("TOKEN_TTL_HOURS", 24),
        BcryptCost:  mustInt("BCRYPT_COST"),
        AdminAPIKey: must("ADMIN_API_KEY"),
    }
    if cfg.DBDriver == "sqlite" {
        cfg.DBPath = envStr("DB_PATH", "data/members.db")
    } else {
        cfg.DBUser = must("DB_USER")
        cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
        cfg.DBHost = must("DB_HOST")
        cfg.DBPort = must("DB_PORT")
        cfg.DBName = must("DB_NAME")
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

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
