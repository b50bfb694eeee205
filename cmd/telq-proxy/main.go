// Command telq-proxy serves cached upstream GET requests over HTTP.
//
//	GET /fetch?url=<target>&expires=<minutes>&<params...>
//	GET /kv/:key?command=<get|hgetall|exists|ttl>
//	GET /health, /ready, /metrics
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/telq/pkg/cache"
	"github.com/Sternrassler/telq/pkg/kvstore"
	"github.com/Sternrassler/telq/pkg/logging"
	"github.com/Sternrassler/telq/pkg/metrics"
	"github.com/Sternrassler/telq/pkg/params"
	"github.com/Sternrassler/telq/pkg/telq"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"lukechampine.com/blake3"
)

const requestTimeout = 30 * time.Second

type config struct {
	Port         string
	RedisURL     string
	CacheEnabled bool
	CacheUnit    time.Duration
	UserAgent    string
	Logging      logging.Config
}

func loadConfig(getenv func(string) string) (config, error) {
	env := func(key, defaultValue string) string {
		if value := getenv(key); value != "" {
			return value
		}
		return defaultValue
	}

	cfg := config{
		Port:      env("PORT", "8080"),
		RedisURL:  getenv("REDIS_URL"),
		UserAgent: env("USER_AGENT", "telq-proxy/0.1.0"),
		Logging:   logging.FromEnv(getenv),
	}
	cfg.Logging.Service = "telq-proxy"

	enabled, err := strconv.ParseBool(env("CACHE_ENABLED", "true"))
	if err != nil {
		return config{}, fmt.Errorf("CACHE_ENABLED: %w", err)
	}
	cfg.CacheEnabled = enabled

	unit, err := time.ParseDuration(env("CACHE_UNIT", "1m"))
	if err != nil {
		return config{}, fmt.Errorf("CACHE_UNIT: %w", err)
	}
	if unit <= 0 {
		return config{}, fmt.Errorf("CACHE_UNIT must be positive (got %s)", unit)
	}
	cfg.CacheUnit = unit

	return cfg, nil
}

// newRedis accepts either a redis:// URL or a bare host:port.
func newRedis(addr string) (*redis.Client, error) {
	if strings.Contains(addr, "://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

func main() {
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging)

	telqCfg := telq.DefaultConfig()
	telqCfg.CacheEnabled = cfg.CacheEnabled
	telqCfg.CacheUnit = cfg.CacheUnit
	telqCfg.UserAgent = cfg.UserAgent
	clientLogger := logging.NewLogger("telq")
	telqCfg.Logger = &clientLogger

	client, err := telq.New(telqCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create telq client")
	}
	defer client.Close()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = newRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Invalid REDIS_URL")
		}
		defer rdb.Close()

		if err := client.Use(kvstore.Plugin, kvstore.Options{Client: rdb}); err != nil {
			logger.Fatal().Err(err).Msg("Failed to register redis plugin")
		}
		logger.Info().Str("redis", cfg.RedisURL).Msg("Key-value store enabled")
	}

	e := newServer(client, rdb, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().
			Str("addr", addr).
			Bool("cache_enabled", cfg.CacheEnabled).
			Dur("cache_unit", cfg.CacheUnit).
			Msg("Starting telq proxy")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server failed")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown failed")
	}
	logger.Info().Msg("Server stopped")
}

func newServer(client *telq.Client, rdb *redis.Client, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/health", healthHandler)
	e.GET("/ready", readyHandler(rdb))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.GET("/fetch", fetchHandler(client, logger))
	e.GET("/kv/:key", kvHandler(client))

	return e
}

func healthHandler(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// readyHandler reports ready when the optional Redis backend answers.
func readyHandler(rdb *redis.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		if rdb != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				return c.String(http.StatusServiceUnavailable, "Redis unavailable")
			}
		}
		return c.String(http.StatusOK, "OK")
	}
}

// fetchHandler proxies a GET through the telq client. Query parameters
// other than url and expires are forwarded to the target.
func fetchHandler(client *telq.Client, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		query := c.QueryParams()

		var expires float64
		if raw := query.Get("expires"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v < 0 {
				return c.JSON(http.StatusBadRequest, map[string]any{"error": "expires must be a non-negative number"})
			}
			expires = v
		}

		forwarded := params.FromValues(query)
		delete(forwarded, "url")
		delete(forwarded, "expires")

		ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
		defer cancel()

		target := query.Get("url")
		result, err := client.Get(ctx, telq.Options{
			URL:     target,
			Params:  forwarded,
			Expires: expires,
		})
		if err != nil {
			return writeError(c, err)
		}

		registry := client.Cache()
		entry, _ := registry.Peek(params.Identity(target, forwarded))
		cache.ApplyFreshness(c.Response().Header(), entry, registry.Now())

		data, err := json.Marshal(result)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to encode upstream body")
			return c.JSON(http.StatusInternalServerError, map[string]any{"error": "cannot encode upstream body"})
		}

		etag := fingerprint(data)
		c.Response().Header().Set("ETag", etag)
		if match := c.Request().Header.Get("If-None-Match"); match != "" && match == etag {
			return c.NoContent(http.StatusNotModified)
		}
		return c.JSONBlob(http.StatusOK, data)
	}
}

// kvHandler reads a key through the dbRedis operation.
func kvHandler(client *telq.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !client.Has(kvstore.DefaultName) {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{"error": "no key-value store configured"})
		}

		result, err := client.Call(c.Request().Context(), kvstore.DefaultName, kvstore.Request{
			Command: c.QueryParam("command"),
			Key:     c.Param("key"),
		})
		switch {
		case errors.Is(err, kvstore.ErrUnsupportedCommand):
			return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
		case err != nil:
			return c.JSON(http.StatusBadGateway, map[string]any{"error": err.Error()})
		case result == nil:
			return c.JSON(http.StatusNotFound, map[string]any{"error": "key not found"})
		}
		if ttl, ok := result.(time.Duration); ok {
			result = ttl.Seconds()
		}
		return c.JSON(http.StatusOK, map[string]any{"key": c.Param("key"), "value": result})
	}
}

func writeError(c echo.Context, err error) error {
	if errors.Is(err, telq.ErrNoURL) {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}

	body := map[string]any{"error": err.Error()}
	if reqErr, ok := telq.AsRequestError(err); ok {
		body["class"] = reqErr.Class
		if reqErr.HasStatus() {
			body["statusCode"] = reqErr.StatusCode
			body["body"] = reqErr.Body
		}
	}
	return c.JSON(http.StatusBadGateway, body)
}

// fingerprint is a strong ETag over the encoded body.
func fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}
