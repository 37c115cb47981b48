package httpapi

import (
	"net/http"
	"strings"
)

func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.Health)

	// POST /videos/upload
	mux.HandleFunc("/videos/upload", h.Submit)

	// GET /videos/status
	mux.HandleFunc("/videos/status", h.Status)

	// GET /videos/download/{id}
	mux.HandleFunc("/videos/download/", h.Download)

	// GET /videos/secure-download/{token}, capability-gated, no session.
	mux.HandleFunc("/videos/secure-download/", h.SecureDownload)

	// GET /videos/{id}/link
	mux.HandleFunc("/videos/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/link") {
			h.RequestDownload(w, r)
			return
		}
		writeErrorJSON(w, http.StatusNotFound, "not found")
	})

	return mux
}
