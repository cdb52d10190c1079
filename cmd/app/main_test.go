package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/userd/internal/auth"
	"github.com/wichananm65/userd/internal/config"
	"github.com/wichananm65/userd/internal/logging"
	"github.com/wichananm65/userd/internal/user"
	"golang.org/x/crypto/bcrypt"
)

func makeTestApp(t *testing.T, origins ...string) *fiber.App {
	t.Helper()
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cfg := config.Config{
		Secret:         "main-secret",
		StoreDriver:    config.DriverMemory,
		AllowedOrigins: origins,
		TokenTTL:       auth.DefaultTokenTTL,
		SearchMaxLimit: 100,
	}

	repo, closeStore, err := openStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	t.Cleanup(func() { _ = closeStore(context.Background()) })

	tokens, err := auth.NewTokenService(cfg.Secret, cfg.TokenTTL)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	logger := logging.New(io.Discard, "error")
	service := user.NewService(repo, auth.NewBcryptHasher(bcrypt.MinCost), tokens, user.WithMaxLimit(cfg.SearchMaxLimit))
	return newApp(cfg, user.NewHandler(service, logger), tokens, logger)
}

func TestHealth(t *testing.T) {
	app := makeTestApp(t)

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	b, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(b), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", b)
	}
}

func TestRegisterThenFetch(t *testing.T) {
	app := makeTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/users/register",
		strings.NewReader(`{"email":"ada@example.com","password":"Sup3r$ecret"}`))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	var registered struct {
		ID    string `json:"id"`
		Token string `json:"token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&registered); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/users/"+registered.ID, nil)
	req.Header.Set("Authorization", "Bearer "+registered.Token)
	res, err = app.Test(req)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
}

func TestUnknownRoute(t *testing.T) {
	app := makeTestApp(t)

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
	b, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(b), `"error"`) {
		t.Fatalf("expected JSON error body, got %s", b)
	}
}

func TestCORS(t *testing.T) {
	app := makeTestApp(t, "https://app.example.com")

	req := httptest.NewRequest(http.MethodOptions, "/users", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	res, err := app.Test(req, int(time.Second.Milliseconds()))
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	if got := res.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials to be allowed, got %q", got)
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	if _, _, err := openStore(context.Background(), config.Config{StoreDriver: "redis"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
