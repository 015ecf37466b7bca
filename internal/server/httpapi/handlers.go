package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fieldops/techsync/internal/common"
	"github.com/fieldops/techsync/internal/server/models"
	"github.com/fieldops/techsync/internal/server/repositories/photos"
	"github.com/fieldops/techsync/internal/server/services"
)

// maxPhotoMemory bounds the multipart parse buffer; larger files spill to disk.
const maxPhotoMemory = 10 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	token, err := s.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.log.Error(r.Context(), "login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	since := time.Unix(0, 0).UTC()
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed since parameter")
			return
		}
		since = parsed
	}

	payload, err := s.svc.Pull(r.Context(), technicianID(r.Context()), since)
	if err != nil {
		s.log.Error(r.Context(), "pull failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mutations []models.BatchMutation `json:"mutations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	outcome, err := s.svc.ApplyBatch(r.Context(), technicianID(r.Context()), req.Mutations)
	if err != nil {
		s.log.Error(r.Context(), "batch failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handlePhoto(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxPhotoMemory); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "missing file part")
		return
	}
	defer file.Close()

	p := &photos.Photo{
		ID:         r.FormValue("photo_id"),
		EntityType: r.FormValue("entity_type"),
		EntityID:   r.FormValue("entity_id"),
		FileName:   header.Filename,
	}
	if raw := r.FormValue("work_order_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "malformed work_order_id")
			return
		}
		p.WorkOrderID = sql.NullInt64{Int64: id, Valid: true}
	}

	contentType := header.Header.Get("Content-Type")
	if err := s.svc.StorePhoto(r.Context(), technicianID(r.Context()), p, contentType, file); err != nil {
		if services.IsValidation(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.log.Error(r.Context(), "photo upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "stored"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
