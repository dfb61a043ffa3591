package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"nimbusdrive/internal/domain"
)

type errorResponse struct {
	Error            string `json:"error"`
	RequiresPassword bool   `json:"requires_password,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Printf("[HTTP] Ошибка записи ответа: %v", err)
		}
	}
}

// writeError переводит доменные ошибки в HTTP-статусы. Неизвестная
// ошибка уходит как 500 с записью в лог, текст наружу не отдаётся.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrFolderCycle):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "folder cannot be moved into its own subtree"})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "access denied"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "resource not found"})
	case errors.Is(err, domain.ErrEmptyArchive):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "folder has no files to archive"})
	case errors.Is(err, domain.ErrFolderNotEmpty):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "folder is not empty"})
	case errors.Is(err, domain.ErrShareExpired):
		writeJSON(w, http.StatusGone, errorResponse{Error: "share link has expired"})
	case errors.Is(err, domain.ErrSharePasswordRequired):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "password required", RequiresPassword: true})
	case errors.Is(err, domain.ErrSharePasswordInvalid):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid password"})
	case errors.Is(err, domain.ErrQuotaExceeded):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "storage quota exceeded"})
	case errors.Is(err, domain.ErrFileTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "file exceeds maximum allowed size"})
	case errors.Is(err, domain.ErrUpstream):
		log.Printf("[HTTP] Ошибка хранилища: %v", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "storage backend unavailable"})
	default:
		log.Printf("[HTTP] Внутренняя ошибка: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// writeArchiveFailure логирует сбой стриминга: статус уже отправлен.
func writeArchiveFailure(err error) {
	log.Printf("[HTTP] Ошибка при стриминге архива: %v", err)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrValidation
	}
	return nil
}
