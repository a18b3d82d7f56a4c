package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"github.com/quizfire/quizfire/internal/engine"
	"github.com/quizfire/quizfire/internal/game"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	boards, meta := game.SeedDemoBoards()
	eng, err := engine.New(engine.Config{
		Boards:   boards,
		Meta:     meta,
		Logger:   testLogger(),
		Clock:    clockwork.NewFakeClock(),
		Displays: engine.NewDisplays(),
	})
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}
	return eng
}

// newTestRouter wires the full route table against a fresh game.
// Options.DB stays nil; health tests bring their own database.
func newTestRouter(t *testing.T) (*chi.Mux, Options) {
	t.Helper()

	eng := newTestEngine(t)
	hub := NewHub(testLogger(), eng)
	eng.SetBuzzers(hub)

	auth, err := NewHostAuth("letmein")
	if err != nil {
		t.Fatalf("building host auth: %v", err)
	}

	opts := Options{
		Engine:    eng,
		Hub:       hub,
		Broker:    NewBroker(),
		Auth:      auth,
		PublicURL: "http://example.test",
	}

	r := chi.NewRouter()
	addRoutes(r, testLogger(), opts)
	return r, opts
}

func postJSON(t *testing.T, h http.Handler, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("encoding request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func getPath(t *testing.T, h http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// hostLogin authenticates against the router and returns the session cookie.
func hostLogin(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	rec := postJSON(t, h, "/api/host/login", HostLoginRequest{Passcode: "letmein"})
	if rec.Code != http.StatusOK {
		t.Fatalf("host login: status %d", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == hostCookieName {
			return c
		}
	}
	t.Fatal("host login set no session cookie")
	return nil
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}
