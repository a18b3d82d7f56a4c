package server

import (
	"net/http"
	"strings"

	"github.com/skip2/go-qrcode"
)

// handleJoinQR serves a PNG QR code pointing contestant phones at the
// join page, for pairing buzzers without typing a URL.
func handleJoinQR(publicURL string) http.HandlerFunc {
	url := strings.TrimSuffix(publicURL, "/") + "/join"

	return func(w http.ResponseWriter, r *http.Request) {
		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "qr generation failed")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}
