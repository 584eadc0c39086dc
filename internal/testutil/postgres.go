// Package testutil starts a disposable PostgreSQL for datastore tests and
// seeds the fixtures they share.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/safar/medtrade/migrations"
)

var (
	startOnce sync.Once
	sharedDB  *sqlx.DB
	startErr  error
)

// DB returns a migrated database with every table emptied. The container is
// started once per test binary and reaped by testcontainers when it exits.
func DB(t *testing.T) *sqlx.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping datastore test in short mode")
	}

	startOnce.Do(func() {
		sharedDB, startErr = start(context.Background())
	})
	if startErr != nil {
		t.Fatalf("Failed to start postgres: %v", startErr)
	}

	truncate(t, sharedDB)
	return sharedDB
}

func start(ctx context.Context) (*sqlx.DB, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("container host: %w", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("container port: %w", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	db.SetMaxOpenConns(20)

	if _, err := migrations.Run(ctx, db.DB, migrations.Up); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

func truncate(t *testing.T, db *sqlx.DB) {
	t.Helper()

	_, err := db.Exec(`TRUNCATE wallet_transactions, order_items, orders, shop_items, carts,
		offer_products, offers, products, delivery_addresses, hospitals, users RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("Failed to reset database: %v", err)
	}
}
