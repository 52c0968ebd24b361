package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Orders.NumberPrefix != defaultNumberPrefix {
		t.Errorf("expected default number prefix %s, got %s", defaultNumberPrefix, cfg.Orders.NumberPrefix)
	}
	if cfg.Orders.ListPageSize != defaultListPageSize {
		t.Errorf("unexpected default list page size: %d", cfg.Orders.ListPageSize)
	}
	if cfg.Inventory.ReservationTTL != defaultReservationTTL {
		t.Errorf("unexpected default reservation ttl: %s", cfg.Inventory.ReservationTTL)
	}
	if cfg.Inventory.SweepInterval != defaultSweepInterval {
		t.Errorf("unexpected default sweep interval: %s", cfg.Inventory.SweepInterval)
	}
	if cfg.Inventory.SweepBatchSize != defaultSweepBatchSize {
		t.Errorf("unexpected default sweep batch size: %d", cfg.Inventory.SweepBatchSize)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("unexpected idempotency header: %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected idempotency ttl: %s", cfg.Idempotency.TTL)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":               "9090",
		"API_SERVER_READ_TIMEOUT":       "20s",
		"API_FIRESTORE_PROJECT_ID":      "ag-fire",
		"API_PUBSUB_ORDER_TOPIC":        "order-events",
		"API_ORDERS_NUMBER_PREFIX":      "XX",
		"API_ORDERS_LIST_PAGE_SIZE":     "50",
		"API_INVENTORY_RESERVATION_TTL": "45m",
		"API_INVENTORY_SWEEP_INTERVAL":  "30s",
		"API_INVENTORY_SWEEP_BATCH":     "25",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port override, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("expected read timeout override, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.PubSub.ProjectID != "ag-fire" {
		t.Errorf("expected pubsub project to default to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.Topic != "order-events" {
		t.Errorf("unexpected topic: %s", cfg.PubSub.Topic)
	}
	if cfg.Orders.NumberPrefix != "XX" {
		t.Errorf("unexpected number prefix: %s", cfg.Orders.NumberPrefix)
	}
	if cfg.Orders.ListPageSize != 50 {
		t.Errorf("unexpected list page size: %d", cfg.Orders.ListPageSize)
	}
	if cfg.Inventory.ReservationTTL != 45*time.Minute {
		t.Errorf("unexpected reservation ttl: %s", cfg.Inventory.ReservationTTL)
	}
	if cfg.Inventory.SweepInterval != 30*time.Second {
		t.Errorf("unexpected sweep interval: %s", cfg.Inventory.SweepInterval)
	}
	if cfg.Inventory.SweepBatchSize != 25 {
		t.Errorf("unexpected sweep batch size: %d", cfg.Inventory.SweepBatchSize)
	}
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "# local overrides\nexport API_SERVER_PORT=7070\nAPI_ORDERS_NUMBER_PREFIX=\"ZZ\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(WithoutSystemEnv(), WithEnvFile(envPath))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from env file, got %s", cfg.Server.Port)
	}
	if cfg.Orders.NumberPrefix != "ZZ" {
		t.Errorf("expected prefix from env file, got %s", cfg.Orders.NumberPrefix)
	}
}

func TestLoadEnvMapOverridesDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("API_SERVER_PORT=7070\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(WithEnvMap(map[string]string{"API_SERVER_PORT": "6060"}), WithoutSystemEnv(), WithEnvFile(envPath))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "6060" {
		t.Errorf("expected env map to win, got %s", cfg.Server.Port)
	}
}

func TestLoadValidation(t *testing.T) {
	env := map[string]string{
		"API_INVENTORY_SWEEP_BATCH": "0",
	}

	_, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	found := false
	for _, field := range validation.Fields() {
		if field == "Inventory.SweepBatchSize" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Inventory.SweepBatchSize in fields, got %v", validation.Fields())
	}
}
