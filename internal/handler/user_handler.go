package handler

import (
	"fmt"
	"io"
	"net/http"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service"
)

// Аватар крупнее лимита режется ещё на чтении тела.
const maxProfileImageBody = 6 << 20

type UserHandler struct {
	userService    *service.UserService
	quotaService   *service.QuotaService
	archiveService *service.ArchiveService
}

func NewUserHandler(userService *service.UserService, quotaService *service.QuotaService, archiveService *service.ArchiveService) *UserHandler {
	return &UserHandler{
		userService:    userService,
		quotaService:   quotaService,
		archiveService: archiveService,
	}
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	user, err := h.userService.Profile(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type updateProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), identity.SubjectID, req.FirstName, req.LastName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Quota(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	info, err := h.quotaService.Info(r.Context(), identity.SubjectID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// UploadProfileImage принимает multipart/form-data с полем file.
func (h *UserHandler) UploadProfileImage(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxProfileImageBody)
	if err := r.ParseMultipartForm(maxProfileImageBody); err != nil {
		writeError(w, uploadBodyError(err))
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: file field is required", domain.ErrValidation))
		return
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		writeError(w, uploadBodyError(err))
		return
	}

	image, err := h.userService.UploadProfileImage(r.Context(), identity.SubjectID, service.ProfileImageUpload{
		Name:     header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, image)
}

// Export стримит полную выгрузку данных пользователя одним zip'ом.
func (h *UserHandler) Export(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	archive, err := h.archiveService.PlanUserArchive(r.Context(), identity.SubjectID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archive.Name))
	if err := archive.Write(r.Context(), w); err != nil {
		writeArchiveFailure(err)
	}
}

func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.userService.DeleteAccount(r.Context(), identity.SubjectID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
