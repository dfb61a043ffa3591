package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service"
)

type FolderHandler struct {
	folderService  *service.FolderService
	archiveService *service.ArchiveService
}

func NewFolderHandler(folderService *service.FolderService, archiveService *service.ArchiveService) *FolderHandler {
	return &FolderHandler{
		folderService:  folderService,
		archiveService: archiveService,
	}
}

type createFolderRequest struct {
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
	Color    *string    `json:"color,omitempty"`
}

func (h *FolderHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	folder, err := h.folderService.Create(r.Context(), identity.SubjectID, req.Name, req.ParentID, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, folder)
}

// List возвращает папки одного уровня; без parent_id отдаёт корневой.
func (h *FolderHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	parentID, err := optionalUUIDQuery(r, "parent_id")
	if err != nil {
		writeError(w, err)
		return
	}

	folders, err := h.folderService.List(r.Context(), identity.SubjectID, parentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, folders)
}

func (h *FolderHandler) Tree(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	rootID, err := optionalUUIDQuery(r, "root_id")
	if err != nil {
		writeError(w, err)
		return
	}

	tree, err := h.folderService.Tree(r.Context(), identity.SubjectID, rootID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tree)
}

// Get отдаёт папку. Без токена доступны только публичные папки.
func (h *FolderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	folder, err := h.folderService.Get(r.Context(), subjectID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, folder)
}

func (h *FolderHandler) Contents(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	content, err := h.folderService.Contents(r.Context(), subjectID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, content)
}

func (h *FolderHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var upd domain.FolderUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, err)
		return
	}

	folder, err := h.folderService.Update(r.Context(), identity.SubjectID, id, upd)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, folder)
}

func (h *FolderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.folderService.Delete(r.Context(), identity.SubjectID, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Archive стримит zip с содержимым папки. Планирование до заголовков:
// ошибки доступа и пустая папка отдаются обычным JSON-ответом.
func (h *FolderHandler) Archive(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	archive, err := h.archiveService.PlanFolderArchive(r.Context(), identity.SubjectID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archive.Name))
	if err := archive.Write(r.Context(), w); err != nil {
		// Заголовки уже ушли, остаётся только залогировать
		writeArchiveFailure(err)
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", domain.ErrValidation, name)
	}
	return id, nil
}

func optionalUUIDQuery(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s", domain.ErrValidation, name)
	}
	return &id, nil
}
