package database

import (
	"context"
	"testing"
	"time"
)

func TestConnectValidation(t *testing.T) {
	if _, err := Connect(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty dsn")
	}

	if _, err := Connect(context.Background(), "not a dsn"); err == nil {
		t.Fatal("expected error for malformed dsn")
	}
}

func TestHealthyNilPool(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if Healthy(ctx, nil) {
		t.Fatal("expected nil pool to report unhealthy")
	}
}
