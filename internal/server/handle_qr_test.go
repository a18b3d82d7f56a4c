package server

import (
	"bytes"
	"net/http"
	"testing"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestJoinQR(t *testing.T) {
	rec := getPath(t, handleJoinQR("http://example.test/"), "/api/join/qr")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), pngMagic) {
		t.Error("body is not a png")
	}
}
