package main

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type config struct {
	listenAddr         string
	upstreamURL        string
	logLevel           string
	metricsPath        string
	rateEnabled        bool
	policyFile         string
	storeKind          string
	redisAddr          string
	redisPassword      string
	redisDB            int
	keyPrefix          string
	storeTimeout       time.Duration
	failClosed         bool
	atomic             bool
	trustXFF           bool
	addHeaders         bool
	jwtClaims          []string
	concurrencyMax     int
	concurrencyTimeout time.Duration

	rateStatsEnabled       bool
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.metricsPath = getenvDefault("METRICS_PATH", "/metrics")
	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", true)
	cfg.policyFile = os.Getenv("RATE_POLICY_FILE")
	cfg.storeKind = strings.ToLower(getenvDefault("RATE_STORE", "memory"))
	cfg.redisAddr = getenvDefault("RATE_REDIS_ADDR", "")
	cfg.redisPassword = os.Getenv("RATE_REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("RATE_REDIS_DB", 0)
	cfg.keyPrefix = getenvDefault("RATE_KEY_PREFIX", "quota:")
	cfg.storeTimeout = getenvDurationDefault("RATE_STORE_TIMEOUT", 250*time.Millisecond)
	cfg.failClosed = getenvBoolDefault("RATE_FAIL_CLOSED", false)
	cfg.atomic = getenvBoolDefault("RATE_ATOMIC", false)
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)
	cfg.jwtClaims = getenvListDefault("RATE_JWT_NAME_CLAIMS", nil)
	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.rateStatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	// sem endereço próprio, as estatísticas usam o mesmo Redis dos contadores
	cfg.rateStatsRedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", cfg.redisAddr)
	cfg.rateStatsRedisPassword = getenvDefault("RATE_STATS_REDIS_PASSWORD", cfg.redisPassword)
	cfg.rateStatsRedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", cfg.redisDB)
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "quota:stats")
	cfg.rateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.rateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	switch cfg.storeKind {
	case "memory":
	case "redis":
		if strings.TrimSpace(cfg.redisAddr) == "" {
			return config{}, errors.New("RATE_REDIS_ADDR is required when RATE_STORE=redis")
		}
	default:
		return config{}, errors.New("RATE_STORE must be memory or redis")
	}
	if cfg.rateStatsEnabled && strings.TrimSpace(cfg.rateStatsRedisAddr) == "" {
		return config{}, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// getenvListDefault separa por vírgula e descarta itens vazios.
func getenvListDefault(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
