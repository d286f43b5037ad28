package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	ServiceEnv string
	HTTPAddr   string
	GRPCAddr   string

	DBDriver      string
	DBPath        string
	DBMaxConns    int
	DBBusyTimeout time.Duration
	TxAttempts    int
	TxBackoff     time.Duration
	SeedOnStart   bool
	RequestLimit  time.Duration

	JWTKey      string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration

	RabbitURL      string
	RabbitExchange string

	CORSOrigins []string
	LogLevel    string
	LogFormat   string
}

const ShutdownGrace = 10 * time.Second

// DevJWTKey signs tokens when JWT_KEY is unset. It is refused in production.
const DevJWTKey = "dev-only-change-me-please-32bytes!"

const minJWTKeyLen = 32

// Validate rejects settings that are unsafe for the current environment.
// Outside production the development signing key is allowed with a warning.
func (c Config) Validate() error {
	switch {
	case c.JWTKey == DevJWTKey && c.ServiceEnv == "production":
		return errors.New("JWT_KEY must be set when SERVICE_ENV=production")
	case c.JWTKey == DevJWTKey:
		log.Warn().Msg("JWT_KEY not set, signing tokens with the development key")
	case len(c.JWTKey) < minJWTKeyLen && c.ServiceEnv == "production":
		return fmt.Errorf("JWT_KEY must have at least %d bytes", minJWTKeyLen)
	}
	return nil
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		ServiceEnv: getEnv("SERVICE_ENV", "dev"),
		HTTPAddr:   getEnv("BOOKSTORE_HTTP_ADDR", ":8080"),
		GRPCAddr:   getEnv("BOOKSTORE_GRPC_ADDR", ":50051"),

		DBDriver:      getEnv("BOOKSTORE_DB_DRIVER", "sqlite"),
		DBPath:        getEnv("BOOKSTORE_DB_PATH", "./data/bookstore.db"),
		DBMaxConns:    getInt("BOOKSTORE_DB_MAX_CONNS", 4),
		DBBusyTimeout: getDuration("BOOKSTORE_DB_BUSY_TIMEOUT", 5*time.Second),
		TxAttempts:    getInt("BOOKSTORE_TX_ATTEMPTS", 3),
		TxBackoff:     getDuration("BOOKSTORE_TX_BACKOFF", 50*time.Millisecond),
		SeedOnStart:   getEnv("BOOKSTORE_SEED", "true") == "true",
		RequestLimit:  getDuration("BOOKSTORE_REQUEST_TIMEOUT", 10*time.Second),

		JWTKey:      getEnv("JWT_KEY", DevJWTKey),
		JWTIssuer:   getEnv("JWT_ISSUER", "onlinebookstore"),
		JWTAudience: getEnv("JWT_AUDIENCE", "onlinebookstore-clients"),
		JWTTTL:      getDuration("JWT_TTL", 30*time.Minute),

		RabbitURL:      getEnv("RABBIT_URL", ""),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "bookstore.events"),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "console"),
	}
}

// SetupLogger configures the global zerolog logger.
func SetupLogger(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v, err := strconv.Atoi(getEnv(k, ""))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getDuration(k string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(k, ""))
	if err != nil || v <= 0 {
		return def
	}
	return v
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
