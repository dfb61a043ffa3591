package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"nimbusdrive/internal/config"
	"nimbusdrive/internal/domain"
)

type fileFixture struct {
	svc     *FileService
	files   *fakeFileStore
	folders *fakeFolderStore
	users   *fakeUserStore
	storage *fakeStorage
}

func newFileFixture(t *testing.T, upload *config.UploadConfig) *fileFixture {
	t.Helper()
	if upload == nil {
		upload = &config.UploadConfig{
			MaxFileSizeBytes:  10 * mb,
			PresignTTLSeconds: 3600,
		}
	}

	users := newFakeUserStore()
	users.addUser(testOwner, 100*mb)
	files := newFakeFileStore()
	folders := newFakeFolderStore()
	folders.files = files
	storage := newFakeStorage()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	return &fileFixture{
		svc:     NewFileService(files, folders, NewQuotaService(users), storage, upload, clock),
		files:   files,
		folders: folders,
		users:   users,
		storage: storage,
	}
}

func TestFileUpload(t *testing.T) {
	fx := newFileFixture(t, nil)
	ctx := context.Background()

	data := []byte("hello world")
	file, err := fx.svc.Upload(ctx, testOwner, FileUpload{
		Name:     "hello.txt",
		MIMEType: "text/plain",
		Data:     data,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if file.SizeBytes != int64(len(data)) {
		t.Errorf("size = %d, want %d", file.SizeBytes, len(data))
	}
	sum := sha256.Sum256(data)
	if file.Checksum != hex.EncodeToString(sum[:]) {
		t.Errorf("checksum = %q, want sha256 of payload", file.Checksum)
	}
	if !strings.HasPrefix(file.S3Key, "uploads/"+testOwner+"/") {
		t.Errorf("s3 key = %q, want uploads/%s/ prefix", file.S3Key, testOwner)
	}
	if fx.storage.objectCount() != 1 {
		t.Errorf("stored objects = %d, want 1", fx.storage.objectCount())
	}
	if used := fx.users.usedSpace(testOwner); used != int64(len(data)) {
		t.Errorf("used space = %d, want %d", used, len(data))
	}
}

func TestFileUploadQuotaExceeded(t *testing.T) {
	fx := newFileFixture(t, &config.UploadConfig{
		MaxFileSizeBytes:  200 * mb,
		PresignTTLSeconds: 3600,
	})

	// Лимит пользователя 100MB
	_, err := fx.svc.Upload(context.Background(), testOwner, FileUpload{
		Name: "big.bin",
		Data: make([]byte, 101*mb),
	})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("oversized upload = %v, want ErrQuotaExceeded", err)
	}
	// Блоб не должен был поехать в хранилище
	if fx.storage.objectCount() != 0 {
		t.Errorf("stored objects = %d, want 0", fx.storage.objectCount())
	}
	if used := fx.users.usedSpace(testOwner); used != 0 {
		t.Errorf("used space = %d, want 0", used)
	}
}

func TestFileUploadMIMERejected(t *testing.T) {
	fx := newFileFixture(t, &config.UploadConfig{
		MaxFileSizeBytes:  10 * mb,
		AllowedMIMETypes:  []string{"image/*", "application/pdf"},
		PresignTTLSeconds: 3600,
	})
	ctx := context.Background()

	if _, err := fx.svc.Upload(ctx, testOwner, FileUpload{
		Name:     "script.sh",
		MIMEType: "application/x-sh",
		Data:     []byte("#!/bin/sh"),
	}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("disallowed mime = %v, want ErrValidation", err)
	}

	if _, err := fx.svc.Upload(ctx, testOwner, FileUpload{
		Name:     "photo.png",
		MIMEType: "image/png",
		Data:     []byte("png"),
	}); err != nil {
		t.Errorf("wildcard-allowed mime = %v, want nil", err)
	}
}

func TestFileUploadSizeCap(t *testing.T) {
	fx := newFileFixture(t, &config.UploadConfig{
		MaxFileSizeBytes:  mb,
		PresignTTLSeconds: 3600,
	})

	_, err := fx.svc.Upload(context.Background(), testOwner, FileUpload{
		Name: "big.bin",
		Data: make([]byte, mb+1),
	})
	if !errors.Is(err, domain.ErrFileTooLarge) {
		t.Errorf("upload over size cap = %v, want ErrFileTooLarge", err)
	}
}

func TestFileUploadRollbackOnCatalogFailure(t *testing.T) {
	fx := newFileFixture(t, nil)
	fx.files.failCreate = true

	_, err := fx.svc.Upload(context.Background(), testOwner, FileUpload{
		Name: "doomed.txt",
		Data: []byte("payload"),
	})
	if err == nil {
		t.Fatal("upload succeeded despite catalog failure")
	}
	// Компенсация: блоб удалён, квота возвращена
	if fx.storage.objectCount() != 0 {
		t.Errorf("stored objects after rollback = %d, want 0", fx.storage.objectCount())
	}
	if used := fx.users.usedSpace(testOwner); used != 0 {
		t.Errorf("used space after rollback = %d, want 0", used)
	}
}

func TestFileDownload(t *testing.T) {
	fx := newFileFixture(t, nil)
	ctx := context.Background()

	file, err := fx.svc.Upload(ctx, testOwner, FileUpload{
		Name:     "report.pdf",
		MIMEType: "application/pdf",
		Data:     []byte("pdf"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	download, err := fx.svc.Download(ctx, testOwner, file.ID)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if download.DownloadURL == "" || download.FileName != "report.pdf" {
		t.Errorf("download = %+v", download)
	}

	updated, err := fx.svc.Get(ctx, testOwner, file.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.DownloadCount != 1 {
		t.Errorf("download count = %d, want 1", updated.DownloadCount)
	}

	// Чужой приватный файл недоступен
	if _, err := fx.svc.Download(ctx, "stranger", file.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("foreign download = %v, want ErrForbidden", err)
	}

	// Публичный файл доступен любому
	public := true
	if _, err := fx.svc.Update(ctx, testOwner, file.ID, domain.FileUpdate{IsPublic: &public}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := fx.svc.Download(ctx, "stranger", file.ID); err != nil {
		t.Errorf("public download = %v, want nil", err)
	}
}

func TestFileDeleteReleasesQuota(t *testing.T) {
	fx := newFileFixture(t, nil)
	ctx := context.Background()

	file, err := fx.svc.Upload(ctx, testOwner, FileUpload{
		Name: "temp.txt",
		Data: []byte("temporary data"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := fx.svc.Delete(ctx, testOwner, file.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if fx.storage.objectCount() != 0 {
		t.Errorf("stored objects = %d, want 0", fx.storage.objectCount())
	}
	if used := fx.users.usedSpace(testOwner); used != 0 {
		t.Errorf("used space = %d, want 0", used)
	}
	if _, err := fx.svc.Get(ctx, testOwner, file.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestFileMoveToForeignFolder(t *testing.T) {
	fx := newFileFixture(t, nil)
	ctx := context.Background()

	foreign := &domain.Folder{ID: uuid.New(), OwnerID: "someone-else", Name: "X", Path: "/X"}
	if err := fx.folders.Create(ctx, foreign); err != nil {
		t.Fatalf("seed folder: %v", err)
	}

	file, err := fx.svc.Upload(ctx, testOwner, FileUpload{Name: "a.txt", Data: []byte("a")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if _, err := fx.svc.Update(ctx, testOwner, file.ID, domain.FileUpdate{FolderID: &foreign.ID}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("move into foreign folder = %v, want ErrForbidden", err)
	}
}

func TestFileSearch(t *testing.T) {
	fx := newFileFixture(t, nil)
	ctx := context.Background()

	for _, name := range []string{"report-q1.pdf", "report-q2.pdf", "photo.png"} {
		if _, err := fx.svc.Upload(ctx, testOwner, FileUpload{Name: name, Data: []byte(name)}); err != nil {
			t.Fatalf("Upload(%s): %v", name, err)
		}
	}

	found, err := fx.svc.Search(ctx, testOwner, "report")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("search hits = %d, want 2", len(found))
	}

	if _, err := fx.svc.Search(ctx, testOwner, "  "); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank search = %v, want ErrValidation", err)
	}
}
