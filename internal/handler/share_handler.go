package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service"
)

type ShareHandler struct {
	shareService *service.ShareService
	fileService  *service.FileService
}

func NewShareHandler(shareService *service.ShareService, fileService *service.FileService) *ShareHandler {
	return &ShareHandler{
		shareService: shareService,
		fileService:  fileService,
	}
}

type createShareRequest struct {
	ResourceID   uuid.UUID           `json:"resource_id"`
	ResourceType domain.ResourceType `json:"resource_type"`
	Permission   domain.Permission   `json:"permission,omitempty"`
	ExpiresAt    *time.Time          `json:"expires_at,omitempty"`
	Password     string              `json:"password,omitempty"`
}

func (h *ShareHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createShareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	share, err := h.shareService.Create(r.Context(), identity.SubjectID, service.ShareCreate{
		ResourceID:   req.ResourceID,
		ResourceType: req.ResourceType,
		Permission:   req.Permission,
		ExpiresAt:    req.ExpiresAt,
		Password:     req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, share)
}

// List возвращает ссылки владельца с необязательным фильтром resource_type.
func (h *ShareHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var resourceType *domain.ResourceType
	if raw := r.URL.Query().Get("resource_type"); raw != "" {
		rt := domain.ResourceType(raw)
		if rt != domain.ResourceTypeFile && rt != domain.ResourceTypeFolder {
			writeError(w, fmt.Errorf("%w: invalid resource_type", domain.ErrValidation))
			return
		}
		resourceType = &rt
	}

	shares, err := h.shareService.List(r.Context(), identity.SubjectID, resourceType)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, shares)
}

func (h *ShareHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.shareService.Delete(r.Context(), identity.SubjectID, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type resolveShareRequest struct {
	Password string `json:"password,omitempty"`
}

// sharePassword достаёт пароль из тела запроса (необязательного) или
// из заголовка X-Share-Password.
func sharePassword(r *http.Request) string {
	var req resolveShareRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Password != "" {
		return req.Password
	}
	return r.Header.Get("X-Share-Password")
}

// Resolve открывает доступ по токену, аутентификация не нужна.
func (h *ShareHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	resolved, err := h.shareService.Resolve(r.Context(), token, sharePassword(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resolved)
}

// ResolveDownload выдаёт подписанную ссылку на файл по токену.
// Доступ идёт от имени владельца ссылки: токен и есть грант.
func (h *ShareHandler) ResolveDownload(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	resolved, err := h.shareService.Resolve(r.Context(), token, sharePassword(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if resolved.File == nil {
		writeError(w, fmt.Errorf("%w: share does not point to a file", domain.ErrValidation))
		return
	}

	download, err := h.fileService.Download(r.Context(), resolved.Share.OwnerID, resolved.File.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, download)
}
