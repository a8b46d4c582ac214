//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tehshkola/apiserver/config"
	"github.com/tehshkola/apiserver/internal/db"
	"github.com/tehshkola/apiserver/internal/handlers"
	"github.com/tehshkola/apiserver/internal/server"
)

const (
	serverPort    = 18080
	adminLogin    = "commission"
	adminPassword = "testpass123!"
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	setServerEnv()

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestPurchaseLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	phone := fmt.Sprintf("89%09d", time.Now().UnixNano()%1_000_000_000)

	authCookie, err := register(t, baseURL, "Тестовый Абитуриент", phone)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := grantCoins(phone, 100); err != nil {
		t.Fatalf("grant coins: %v", err)
	}

	commissionCookie, err := commissionLogin(t, baseURL)
	if err != nil {
		t.Fatalf("commission login: %v", err)
	}

	productID, err := createProduct(t, baseURL, commissionCookie, "Футболка e2e", 60, 1)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	coins, err := purchase(t, baseURL, authCookie, productID, http.StatusOK)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if coins != 40 {
		t.Fatalf("unexpected balance after purchase: %d", coins)
	}

	// Only one unit existed.
	if _, err := purchase(t, baseURL, authCookie, productID, http.StatusConflict); err != nil {
		t.Fatalf("second purchase: %v", err)
	}

	orderID, err := findPendingOrder(t, baseURL, commissionCookie, productID)
	if err != nil {
		t.Fatalf("find order: %v", err)
	}

	if err := setOrderStatus(t, baseURL, commissionCookie, orderID, "cancelled", http.StatusOK); err != nil {
		t.Fatalf("cancel order: %v", err)
	}

	balance, err := readBalance(phone)
	if err != nil {
		t.Fatalf("read balance: %v", err)
	}
	if balance != 100 {
		t.Fatalf("expected full refund, balance is %d", balance)
	}

	// Cancelling again is a no-op, leaving terminal state is rejected.
	if err := setOrderStatus(t, baseURL, commissionCookie, orderID, "cancelled", http.StatusOK); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if err := setOrderStatus(t, baseURL, commissionCookie, orderID, "completed", http.StatusConflict); err != nil {
		t.Fatalf("complete after cancel: %v", err)
	}

	balance, err = readBalance(phone)
	if err != nil {
		t.Fatalf("read balance: %v", err)
	}
	if balance != 100 {
		t.Fatalf("refund fired twice, balance is %d", balance)
	}

	if err := deleteOrder(t, baseURL, commissionCookie, orderID); err != nil {
		t.Fatalf("delete order: %v", err)
	}
}

type productResponse struct {
	Product struct {
		ID int `json:"id"`
	} `json:"product"`
}

func register(t *testing.T, baseURL, name, phone string) (*http.Cookie, error) {
	t.Helper()

	resp, err := postJSON(baseURL+"/api/register", map[string]string{
		"name":  name,
		"phone": phone,
	}, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus(resp)
	}
	return sessionCookie(resp, handlers.AuthCookie)
}

func commissionLogin(t *testing.T, baseURL string) (*http.Cookie, error) {
	t.Helper()

	resp, err := postJSON(baseURL+"/api/commission/login", map[string]string{
		"login":    adminLogin,
		"password": adminPassword,
	}, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus(resp)
	}
	return sessionCookie(resp, handlers.CommissionCookie)
}

func createProduct(t *testing.T, baseURL string, cookie *http.Cookie, name string, price, stock int) (int, error) {
	t.Helper()

	resp, err := postJSON(baseURL+"/api/commission/products", map[string]any{
		"name":        name,
		"price":       price,
		"description": "создан e2e-тестом",
		"stock":       stock,
	}, cookie)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, unexpectedStatus(resp)
	}

	var parsed productResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, err
	}
	if parsed.Product.ID == 0 {
		return 0, fmt.Errorf("missing product id in response")
	}
	return parsed.Product.ID, nil
}

func purchase(t *testing.T, baseURL string, cookie *http.Cookie, productID, wantStatus int) (int, error) {
	t.Helper()

	resp, err := postJSON(baseURL+"/api/shop", map[string]any{
		"productId": productID,
	}, cookie)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return 0, unexpectedStatus(resp)
	}
	if wantStatus != http.StatusOK {
		return 0, nil
	}

	var parsed struct {
		Coins int `json:"coins"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, err
	}
	return parsed.Coins, nil
}

func findPendingOrder(t *testing.T, baseURL string, cookie *http.Cookie, productID int) (int, error) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/commission/orders", nil)
	if err != nil {
		return 0, err
	}
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, unexpectedStatus(resp)
	}

	var parsed struct {
		Orders []struct {
			ID        int    `json:"id"`
			ProductID int    `json:"product_id"`
			Status    string `json:"status"`
		} `json:"orders"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, err
	}
	for _, order := range parsed.Orders {
		if order.ProductID == productID && order.Status == "pending" {
			return order.ID, nil
		}
	}
	return 0, fmt.Errorf("no pending order for product %d", productID)
}

func setOrderStatus(t *testing.T, baseURL string, cookie *http.Cookie, orderID int, status string, wantStatus int) error {
	t.Helper()

	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/api/commission/orders/%d", baseURL, orderID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return unexpectedStatus(resp)
	}
	return nil
}

func deleteOrder(t *testing.T, baseURL string, cookie *http.Cookie, orderID int) error {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/commission/orders/%d", baseURL, orderID), nil)
	if err != nil {
		return err
	}
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return unexpectedStatus(resp)
	}
	return nil
}

func grantCoins(phone string, coins int) error {
	return execSQL("UPDATE users SET coins = $1, updated_at = NOW() WHERE phone = $2", coins, phone)
}

func readBalance(phone string) (int, error) {
	cfg, err := config.Load()
	if err != nil {
		return 0, err
	}
	conn, err := sql.Open("postgres", db.URL(cfg))
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var balance int
	err = conn.QueryRowContext(ctx, "SELECT coins FROM users WHERE phone = $1", phone).Scan(&balance)
	return balance, err
}

func execSQL(query string, args ...any) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	conn, err := sql.Open("postgres", db.URL(cfg))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = conn.ExecContext(ctx, query, args...)
	return err
}

func postJSON(url string, payload any, cookie *http.Cookie) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return http.DefaultClient.Do(req)
}

func sessionCookie(resp *http.Response, name string) (*http.Cookie, error) {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == name && cookie.Value != "" {
			return cookie, nil
		}
	}
	return nil, fmt.Errorf("cookie %q not set", name)
}

func unexpectedStatus(resp *http.Response) error {
	msg, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("%s %s: status %d: %s",
		resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
}

func setServerEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "15432")
	_ = os.Setenv("DB_USER", "shkola")
	_ = os.Setenv("DB_PASSWORD", "shkola")
	_ = os.Setenv("DB_NAME", "shkola_db")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("STORAGE_BACKEND", "minio")
	_ = os.Setenv("MINIO_ENDPOINT", "localhost:19000")
	_ = os.Setenv("MINIO_ACCESS_KEY", "minioadmin")
	_ = os.Setenv("MINIO_SECRET_KEY", "minioadmin")
	_ = os.Setenv("MINIO_BUCKET", "uploads")
	_ = os.Setenv("ADMIN_LOGIN", adminLogin)
	_ = os.Setenv("MQ_BACKEND", "")

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	if err == nil {
		_ = os.Setenv("ADMIN_PASSWORD_HASH", string(hash))
	}
}

func startServer() (*server.Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	srv, err := server.New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func waitForPostgres(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	conn, err := sql.Open("postgres", db.URL(cfg))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New("file://"+migrationsPath, db.URL(cfg))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
