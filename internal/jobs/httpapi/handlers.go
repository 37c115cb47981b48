package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/romariotrain/frames-service/internal/jobs/models"
	"github.com/romariotrain/frames-service/internal/jobs/service"
	"github.com/romariotrain/frames-service/internal/token"
)

// maxUploadBytes bounds a single submitted video.
const maxUploadBytes = 2 << 30

type Handler struct {
	svc  *service.Service
	auth Authenticator
}

func New(svc *service.Service, auth Authenticator) *Handler {
	return &Handler{svc: svc, auth: auth}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ownerID, err := h.auth.Authenticate(r)
	if err != nil {
		writeErrorJSON(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	jobID, err := h.svc.Submit(r.Context(), ownerID, header.Filename, file, header.Size)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidArgument):
			writeErrorJSON(w, http.StatusBadRequest, "invalid argument")
		case errors.Is(err, models.ErrStorageUnavailable), errors.Is(err, models.ErrQueueUnavailable):
			writeErrorJSON(w, http.StatusServiceUnavailable, "temporarily unavailable")
		default:
			writeErrorJSON(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, SubmitResponse{Message: "Video upload started", JobID: jobID})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ownerID, err := h.auth.Authenticate(r)
	if err != nil {
		writeErrorJSON(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	jobs, err := h.svc.Status(r.Context(), ownerID)
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toJobResponses(jobs))
}

// Download streams the archive for the owner-scoped path /videos/download/{id}.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ownerID, err := h.auth.Authenticate(r)
	if err != nil {
		writeErrorJSON(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/videos/download/")
	jobID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || jobID <= 0 {
		writeErrorJSON(w, http.StatusBadRequest, "invalid id")
		return
	}

	rc, job, err := h.svc.OpenOutput(r.Context(), jobID, ownerID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			writeErrorJSON(w, http.StatusNotFound, "not found")
		case errors.Is(err, models.ErrNotReady):
			writeErrorJSON(w, http.StatusBadRequest, "not processed yet")
		default:
			writeErrorJSON(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s_frames.zip"`, job.Filename))
	_, _ = io.Copy(w, rc)
}

// RequestDownload mints a fresh capability grant for /videos/{id}/link.
func (h *Handler) RequestDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ownerID, err := h.auth.Authenticate(r)
	if err != nil {
		writeErrorJSON(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/videos/")
	idStr := strings.TrimSuffix(path, "/link")
	jobID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || jobID <= 0 {
		writeErrorJSON(w, http.StatusBadRequest, "invalid id")
		return
	}

	grant, err := h.svc.RequestDownload(r.Context(), jobID, ownerID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			writeErrorJSON(w, http.StatusNotFound, "not found")
		case errors.Is(err, models.ErrNotReady):
			writeErrorJSON(w, http.StatusBadRequest, "not processed yet")
		default:
			writeErrorJSON(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, toGrantResponse(grant))
}

// SecureDownload serves /videos/secure-download/{token}: capability-gated,
// no session required.
func (h *Handler) SecureDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	tok := strings.TrimPrefix(r.URL.Path, "/videos/secure-download/")
	if tok == "" || tok == r.URL.Path {
		writeErrorJSON(w, http.StatusForbidden, "invalid or expired token")
		return
	}

	url, err := h.svc.ResolveSecureDownload(r.Context(), tok)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrInvalid), errors.Is(err, token.ErrExpired):
			writeErrorJSON(w, http.StatusForbidden, "invalid or expired token")
		case errors.Is(err, models.ErrNotFound):
			writeErrorJSON(w, http.StatusNotFound, "not found")
		default:
			writeErrorJSON(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
