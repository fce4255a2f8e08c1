package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "app", Password: "secret", Database: "listing_report"}
	assert.Equal(t, "postgres://app:secret@db:5432/listing_report?sslmode=disable", cfg.DSN())

	cfg.SSLMode = "require"
	assert.Equal(t, "postgres://app:secret@db:5432/listing_report?sslmode=require", cfg.DSN())
}

func TestNewIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := New(ctx, Config{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: os.Getenv("DB_PASSWORD"),
		Database: "listing_report",
		MaxConns: 2,
	})
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Ping(ctx))
}
