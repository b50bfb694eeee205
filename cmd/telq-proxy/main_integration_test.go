//go:build integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Sternrassler/telq/pkg/kvstore"
	"github.com/Sternrassler/telq/pkg/telq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		redisC.Terminate(ctx)
	}

	return redisClient, cleanup
}

func TestReadyAndKV_WithRedis(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	logger := zerolog.Nop()
	cfg := telq.DefaultConfig()
	cfg.Logger = &logger
	client, err := telq.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create telq client: %v", err)
	}
	defer client.Close()

	if err := client.Use(kvstore.Plugin, kvstore.Options{Client: redisClient}); err != nil {
		t.Fatalf("Failed to register redis plugin: %v", err)
	}
	if err := redisClient.Set(context.Background(), "user:1", "ada", 0).Err(); err != nil {
		t.Fatalf("Failed to seed redis: %v", err)
	}

	e := newServer(client, redisClient, logger)

	t.Run("ready", func(t *testing.T) {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/ready", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rec.Code)
		}
	})

	t.Run("kv hit", func(t *testing.T) {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/kv/user:1", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}
		var body map[string]any
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body["value"] != "ada" {
			t.Errorf("value = %v, want ada", body["value"])
		}
	})

	t.Run("kv miss", func(t *testing.T) {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/kv/user:9", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", rec.Code)
		}
	})

	t.Run("not_ready_redis_down", func(t *testing.T) {
		redisClient.Close()

		rec := serve(e, httptest.NewRequest(http.MethodGet, "/ready", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", rec.Code)
		}
	})
}
