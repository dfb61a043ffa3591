package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service"
)

type FileHandler struct {
	fileService *service.FileService
	maxBodySize int64
}

func NewFileHandler(fileService *service.FileService, maxBodySize int64) *FileHandler {
	return &FileHandler{
		fileService: fileService,
		maxBodySize: maxBodySize,
	}
}

// Upload принимает multipart/form-data с полем file и необязательным
// folder_id. Тело режется по лимиту размера ещё на чтении.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
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

	upload := service.FileUpload{
		Name:     header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Data:     data,
	}
	if raw := r.FormValue("folder_id"); raw != "" {
		folderID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid folder_id", domain.ErrValidation))
			return
		}
		upload.FolderID = &folderID
	}

	file, err := h.fileService.Upload(r.Context(), identity.SubjectID, upload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, file)
}

// uploadBodyError отличает срез тела по лимиту MaxBytesReader
// от прочего мусора в multipart.
func uploadBodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit is %d bytes", domain.ErrFileTooLarge, tooLarge.Limit)
	}
	return fmt.Errorf("%w: invalid multipart body", domain.ErrValidation)
}

// List возвращает файлы пользователя: по папке (folder_id), по
// поисковому запросу (search) или корневые.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if term := r.URL.Query().Get("search"); term != "" {
		files, err := h.fileService.Search(r.Context(), identity.SubjectID, term)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, files)
		return
	}

	folderID, err := optionalUUIDQuery(r, "folder_id")
	if err != nil {
		writeError(w, err)
		return
	}

	files, err := h.fileService.List(r.Context(), identity.SubjectID, folderID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, files)
}

// Get отдаёт метаданные. Без токена доступны только публичные файлы.
func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	file, err := h.fileService.Get(r.Context(), subjectID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

// Download выдаёт подписанную ссылку на содержимое файла.
// Без токена доступны только публичные файлы.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	download, err := h.fileService.Download(r.Context(), subjectID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, download)
}

func (h *FileHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var upd domain.FileUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, err)
		return
	}

	file, err := h.fileService.Update(r.Context(), identity.SubjectID, id, upd)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.fileService.Delete(r.Context(), identity.SubjectID, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
