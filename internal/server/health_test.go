package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/quizfire/quizfire/internal/database"
	"github.com/quizfire/quizfire/internal/migrations"
)

func TestHealth(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()
	if err := migrations.Run(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	rec := getPath(t, handleHealth(testLogger(), db), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeJSON[HealthResponse](t, rec)
	if resp.Sqlite != "ok" {
		t.Errorf("sqlite = %q, want ok", resp.Sqlite)
	}
}

func TestHealthFailsClosedDB(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	db.Close()

	rec := getPath(t, handleHealth(testLogger(), db), "/healthz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	resp := decodeJSON[HealthResponse](t, rec)
	if resp.Sqlite != "error" {
		t.Errorf("sqlite = %q, want error", resp.Sqlite)
	}
}
