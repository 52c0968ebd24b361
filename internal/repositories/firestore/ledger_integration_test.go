//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"testing"
	"time"

	domain "github.com/aster-goods/commerce/internal/domain"
	pconfig "github.com/aster-goods/commerce/internal/platform/config"
	pfirestore "github.com/aster-goods/commerce/internal/platform/firestore"
	"github.com/aster-goods/commerce/internal/repositories"
)

func TestFirestoreLedgerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}

	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    "ledger-test",
		EmulatorHost: endpoint,
	})
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	registry, err := NewRegistry(provider)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Second)
	inventory := registry.Inventory()

	if _, err := inventory.AdjustStock(ctx, repositories.StockAdjustment{SKU: "SKU-001", QtyOnHand: 5, Now: now}); err != nil {
		t.Fatalf("adjust stock: %v", err)
	}

	if err := inventory.Reserve(ctx, []repositories.InventoryLine{{SKU: "SKU-001", Quantity: 3}}, now); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	record, err := inventory.Get(ctx, "SKU-001")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if record.QtyOnHand != 5 || record.QtyReserved != 3 {
		t.Fatalf("unexpected stock after reserve: %+v", record)
	}

	var invErr *repositories.InventoryError
	err = inventory.Reserve(ctx, []repositories.InventoryLine{{SKU: "SKU-001", Quantity: 3}}, now)
	if !errors.As(err, &invErr) || invErr.Code != repositories.InventoryErrorInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	// Reserving an unknown SKU treats it as zero stock.
	invErr = nil
	err = inventory.Reserve(ctx, []repositories.InventoryLine{{SKU: "SKU-MISSING", Quantity: 1}}, now)
	if !errors.As(err, &invErr) || invErr.Code != repositories.InventoryErrorInsufficientStock {
		t.Fatalf("expected insufficient stock for missing sku, got %v", err)
	}

	if err := inventory.Commit(ctx, []repositories.InventoryLine{{SKU: "SKU-001", Quantity: 3}}, now.Add(time.Minute)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	record, err = inventory.Get(ctx, "SKU-001")
	if err != nil {
		t.Fatalf("get stock after commit: %v", err)
	}
	if record.QtyOnHand != 2 || record.QtyReserved != 0 {
		t.Fatalf("unexpected stock after commit: %+v", record)
	}

	invErr = nil
	err = inventory.Commit(ctx, []repositories.InventoryLine{{SKU: "SKU-001", Quantity: 3}}, now.Add(time.Minute))
	if !errors.As(err, &invErr) || invErr.Code != repositories.InventoryErrorCannotCommit {
		t.Fatalf("expected cannot commit, got %v", err)
	}

	// Release never drives the reserved counter below zero.
	if err := inventory.Reserve(ctx, []repositories.InventoryLine{{SKU: "SKU-001", Quantity: 1}}, now); err != nil {
		t.Fatalf("reserve before release: %v", err)
	}
	if err := inventory.Release(ctx, []repositories.InventoryLine{{SKU: "SKU-001", Quantity: 2}}, now.Add(time.Minute)); err != nil {
		t.Fatalf("release: %v", err)
	}
	record, err = inventory.Get(ctx, "SKU-001")
	if err != nil {
		t.Fatalf("get stock after release: %v", err)
	}
	if record.QtyReserved != 0 {
		t.Fatalf("expected reserved floor at zero, got %d", record.QtyReserved)
	}

	// Duplicate lines for one SKU are checked as a single combined quantity.
	invErr = nil
	err = inventory.Reserve(ctx, []repositories.InventoryLine{
		{SKU: "SKU-001", Quantity: 1},
		{SKU: "SKU-001", Quantity: 2},
	}, now)
	if !errors.As(err, &invErr) || invErr.Code != repositories.InventoryErrorInsufficientStock {
		t.Fatalf("expected insufficient stock for combined duplicate lines, got %v", err)
	}
	record, err = inventory.Get(ctx, "SKU-001")
	if err != nil {
		t.Fatalf("get stock after duplicate reserve: %v", err)
	}
	if record.QtyReserved != 0 {
		t.Fatalf("failed duplicate reserve must hold nothing, got reserved=%d", record.QtyReserved)
	}

	if err := inventory.Reserve(ctx, []repositories.InventoryLine{
		{SKU: "SKU-001", Quantity: 1},
		{SKU: "SKU-001", Quantity: 1},
	}, now); err != nil {
		t.Fatalf("duplicate reserve within stock: %v", err)
	}
	record, err = inventory.Get(ctx, "SKU-001")
	if err != nil {
		t.Fatalf("get stock after combined reserve: %v", err)
	}
	if record.QtyReserved != 2 {
		t.Fatalf("expected combined reservation of 2, got %d", record.QtyReserved)
	}
	if err := inventory.Release(ctx, []repositories.InventoryLine{{SKU: "SKU-001", Quantity: 2}}, now); err != nil {
		t.Fatalf("release combined reservation: %v", err)
	}

	counters := registry.Counters()
	for want := int64(1); want <= 3; want++ {
		got, err := counters.Next(ctx, "orders", 1)
		if err != nil {
			t.Fatalf("counter next: %v", err)
		}
		if got != want {
			t.Fatalf("expected counter value %d, got %d", want, got)
		}
	}

	orders := registry.Orders()
	order := domain.Order{
		ID:                   "ord_itest_1",
		Number:               "AG-20260829-000001-TEST",
		CustomerName:         "Integration Tester",
		OrderStatus:          domain.OrderStatusNew,
		PaymentStatus:        domain.PaymentStatusUnpaid,
		FulfillmentStatus:    domain.FulfillmentStatusUnfulfilled,
		Items:                []domain.OrderItem{{SKU: "SKU-001", Name: "Widget", Quantity: 1, UnitPrice: 1200, Total: 1200}},
		Subtotal:             1200,
		Total:                1200,
		Currency:             "USD",
		ReservationExpiresAt: now.Add(-time.Minute),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := orders.Insert(ctx, order); err != nil {
		t.Fatalf("insert order: %v", err)
	}

	found, err := orders.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("find order: %v", err)
	}
	if found.Number != order.Number || found.OrderStatus != domain.OrderStatusNew {
		t.Fatalf("unexpected order roundtrip: %+v", found)
	}

	events := registry.OrderEvents()
	for i, eventType := range []string{domain.EventOrderCreated, domain.EventOrderConfirmed} {
		if err := events.Append(ctx, domain.OrderEvent{
			ID:        fmt.Sprintf("evt_itest_%d", i),
			OrderID:   order.ID,
			Type:      eventType,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("append event: %v", err)
		}
	}
	log, err := events.List(ctx, order.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(log) != 2 || log[0].Type != domain.EventOrderCreated || log[1].Type != domain.EventOrderConfirmed {
		t.Fatalf("expected events in creation order, got %+v", log)
	}

	expired, err := orders.ListExpired(ctx, domain.OrderStatusNew, now, 10)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != order.ID {
		t.Fatalf("expected the stale order to be listed, got %+v", expired)
	}

	// A failed unit of work leaves neither the order nor the ledger mutated.
	sentinel := errors.New("abort")
	err = registry.RunInTx(ctx, func(ctx context.Context) error {
		if err := inventory.Reserve(ctx, []repositories.InventoryLine{{SKU: "SKU-001", Quantity: 1}}, now); err != nil {
			return err
		}
		if err := orders.Insert(ctx, domain.Order{
			ID:            "ord_itest_rollback",
			Number:        "AG-20260829-000002-TEST",
			OrderStatus:   domain.OrderStatusNew,
			PaymentStatus: domain.PaymentStatusUnpaid,
			CreatedAt:     now,
			UpdatedAt:     now,
		}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	if _, err := orders.FindByID(ctx, "ord_itest_rollback"); err == nil {
		t.Fatalf("expected rolled back order to be absent")
	}
	record, err = inventory.Get(ctx, "SKU-001")
	if err != nil {
		t.Fatalf("get stock after rollback: %v", err)
	}
	if record.QtyReserved != 0 {
		t.Fatalf("expected reservation rollback, got reserved %d", record.QtyReserved)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}

	cmd := exec.Command("docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		t.Fatalf("docker daemon not available: %v", err)
	}
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "stop", id)
	_ = cmd.Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("firestore emulator at %s did not become ready within %s", endpoint, timeout)
}

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"
