package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service/s3"
)

// In-memory реализации хранилищ для тестов сервисного слоя.

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*domain.User)}
}

func (s *fakeUserStore) addUser(id string, limit int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &domain.User{
		ID:           id,
		Email:        id + "@example.com",
		StorageLimit: limit,
		IsActive:     true,
	}
}

func (s *fakeUserStore) GetOrCreate(_ context.Context, identity auth.Identity) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[identity.SubjectID]; ok {
		copied := *u
		return &copied, nil
	}
	u := &domain.User{
		ID:           identity.SubjectID,
		Email:        identity.Email,
		FirstName:    identity.FirstName,
		LastName:     identity.LastName,
		StorageLimit: domain.DefaultStorageLimit,
		IsActive:     true,
	}
	s.users[u.ID] = u
	copied := *u
	return &copied, nil
}

func (s *fakeUserStore) GetByID(_ context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *fakeUserStore) UpdateProfile(_ context.Context, userID, firstName, lastName string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if firstName != "" {
		u.FirstName = firstName
	}
	if lastName != "" {
		u.LastName = lastName
	}
	copied := *u
	return &copied, nil
}

func (s *fakeUserStore) SetProfileImage(_ context.Context, userID, key string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	u.ProfileImageKey = key
	copied := *u
	return &copied, nil
}

func (s *fakeUserStore) Reserve(_ context.Context, ownerID string, deltaBytes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[ownerID]
	if !ok {
		return domain.ErrNotFound
	}
	if u.StorageUsed+deltaBytes > u.StorageLimit {
		return domain.ErrQuotaExceeded
	}
	u.StorageUsed += deltaBytes
	return nil
}

func (s *fakeUserStore) Release(_ context.Context, ownerID string, deltaBytes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[ownerID]
	if !ok {
		return domain.ErrNotFound
	}
	u.StorageUsed -= deltaBytes
	if u.StorageUsed < 0 {
		u.StorageUsed = 0
	}
	return nil
}

func (s *fakeUserStore) RecalculateUsedSpace(context.Context, string) error { return nil }

func (s *fakeUserStore) RecalculateAll(context.Context) (int64, error) { return 0, nil }

func (s *fakeUserStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.users, userID)
	return nil
}

func (s *fakeUserStore) usedSpace(ownerID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[ownerID]; ok {
		return u.StorageUsed
	}
	return -1
}

type fakeFolderStore struct {
	mu      sync.Mutex
	folders map[uuid.UUID]*domain.Folder
	files   *fakeFileStore
}

func newFakeFolderStore() *fakeFolderStore {
	return &fakeFolderStore{folders: make(map[uuid.UUID]*domain.Folder)}
}

func (s *fakeFolderStore) Create(_ context.Context, folder *domain.Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *folder
	s.folders[folder.ID] = &copied
	return nil
}

func (s *fakeFolderStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.folders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *f
	return &copied, nil
}

func (s *fakeFolderStore) ListByOwner(_ context.Context, ownerID string, parentID *uuid.UUID) ([]domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Folder
	for _, f := range s.folders {
		if f.OwnerID != ownerID {
			continue
		}
		if parentID == nil && f.ParentID != nil {
			continue
		}
		if parentID != nil && (f.ParentID == nil || *f.ParentID != *parentID) {
			continue
		}
		out = append(out, *f)
	}
	return out, nil
}

func (s *fakeFolderStore) ListAllByOwner(_ context.Context, ownerID string) ([]domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Folder
	for _, f := range s.folders {
		if f.OwnerID == ownerID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (s *fakeFolderStore) ListSubtree(_ context.Context, rootID uuid.UUID) ([]domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	root, ok := s.folders[rootID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := []domain.Folder{*root}
	for _, f := range s.folders {
		if f.OwnerID == root.OwnerID && strings.HasPrefix(f.Path, root.Path+"/") {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (s *fakeFolderStore) Update(_ context.Context, folder *domain.Folder, oldPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[folder.ID]; !ok {
		return domain.ErrNotFound
	}
	copied := *folder
	s.folders[folder.ID] = &copied
	if oldPath != folder.Path {
		for _, f := range s.folders {
			if f.ID == folder.ID || f.OwnerID != folder.OwnerID {
				continue
			}
			if strings.HasPrefix(f.Path, oldPath+"/") {
				f.Path = folder.Path + strings.TrimPrefix(f.Path, oldPath)
			}
		}
	}
	return nil
}

func (s *fakeFolderStore) CountChildren(_ context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	count := 0
	for _, f := range s.folders {
		if f.ParentID != nil && *f.ParentID == id {
			count++
		}
	}
	s.mu.Unlock()
	if s.files != nil {
		s.files.mu.Lock()
		for _, f := range s.files.files {
			if f.FolderID != nil && *f.FolderID == id {
				count++
			}
		}
		s.files.mu.Unlock()
	}
	return count, nil
}

func (s *fakeFolderStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[id]; !ok {
		return false, nil
	}
	delete(s.folders, id)
	return true, nil
}

func (s *fakeFolderStore) pathOf(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.folders[id]; ok {
		return f.Path
	}
	return ""
}

type fakeFileStore struct {
	mu         sync.Mutex
	files      map[uuid.UUID]*domain.File
	failCreate bool
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: make(map[uuid.UUID]*domain.File)}
}

func (s *fakeFileStore) Create(_ context.Context, file *domain.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return fmt.Errorf("insert failed")
	}
	file.Version = 1
	copied := *file
	s.files[file.ID] = &copied
	return nil
}

func (s *fakeFileStore) GetByID(_ context.Context, id uuid.UUID) (*domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *f
	return &copied, nil
}

func (s *fakeFileStore) ListByOwner(_ context.Context, ownerID string, folderID *uuid.UUID) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.File
	for _, f := range s.files {
		if f.OwnerID != ownerID {
			continue
		}
		if folderID == nil && f.FolderID != nil {
			continue
		}
		if folderID != nil && (f.FolderID == nil || *f.FolderID != *folderID) {
			continue
		}
		out = append(out, *f)
	}
	return out, nil
}

func (s *fakeFileStore) ListFolderFiles(_ context.Context, folderID uuid.UUID, ownerID string) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.File
	for _, f := range s.files {
		if f.OwnerID == ownerID && f.FolderID != nil && *f.FolderID == folderID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (s *fakeFileStore) ListAllByOwner(_ context.Context, ownerID string) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.File
	for _, f := range s.files {
		if f.OwnerID == ownerID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (s *fakeFileStore) Search(_ context.Context, ownerID, term string) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	term = strings.ToLower(term)
	var out []domain.File
	for _, f := range s.files {
		if f.OwnerID != ownerID {
			continue
		}
		if strings.Contains(strings.ToLower(f.Name), term) ||
			strings.Contains(strings.ToLower(f.OriginalName), term) ||
			strings.Contains(strings.ToLower(f.MIMEType), term) {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (s *fakeFileStore) Update(_ context.Context, file *domain.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[file.ID]; !ok {
		return domain.ErrNotFound
	}
	copied := *file
	s.files[file.ID] = &copied
	return nil
}

func (s *fakeFileStore) IncrementDownloadCount(_ context.Context, id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[id]; ok {
		f.DownloadCount++
	}
}

func (s *fakeFileStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return false, nil
	}
	delete(s.files, id)
	return true, nil
}

type fakeShareStore struct {
	mu     sync.Mutex
	shares map[uuid.UUID]*domain.Share
}

func newFakeShareStore() *fakeShareStore {
	return &fakeShareStore{shares: make(map[uuid.UUID]*domain.Share)}
}

func (s *fakeShareStore) Create(_ context.Context, share *domain.Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *share
	s.shares[share.ID] = &copied
	return nil
}

func (s *fakeShareStore) GetByToken(_ context.Context, token string) (*domain.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range s.shares {
		if sh.Token == token {
			copied := *sh
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeShareStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shares[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *sh
	return &copied, nil
}

func (s *fakeShareStore) ListByOwner(_ context.Context, ownerID string, resourceType *domain.ResourceType) ([]domain.ShareWithResource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ShareWithResource
	for _, sh := range s.shares {
		if sh.OwnerID != ownerID {
			continue
		}
		if resourceType != nil && sh.ResourceType != *resourceType {
			continue
		}
		out = append(out, domain.ShareWithResource{Share: *sh})
	}
	return out, nil
}

func (s *fakeShareStore) ListAllByOwner(_ context.Context, ownerID string) ([]domain.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Share
	for _, sh := range s.shares {
		if sh.OwnerID == ownerID {
			out = append(out, *sh)
		}
	}
	return out, nil
}

func (s *fakeShareStore) Delete(_ context.Context, id uuid.UUID, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shares[id]
	if !ok || sh.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	delete(s.shares, id)
	return nil
}

type fakeObject struct {
	io.ReadCloser
	length int64
	ctype  string
}

func (o *fakeObject) ContentLength() int64 { return o.length }
func (o *fakeObject) ContentType() string  { return o.ctype }

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	ctypes  map[string]string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		objects: make(map[string][]byte),
		ctypes:  make(map[string]string),
	}
}

func (s *fakeStorage) Bucket() string { return "test-bucket" }

func (s *fakeStorage) UploadBytes(_ context.Context, key string, data []byte, mimeType string, _ map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	s.ctypes[key] = mimeType
	return nil
}

func (s *fakeStorage) GetObject(_ context.Context, key string) (s3.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return &fakeObject{
		ReadCloser: io.NopCloser(bytes.NewReader(data)),
		length:     int64(len(data)),
		ctype:      s.ctypes[key],
	}, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	delete(s.ctypes, key)
	return nil
}

func (s *fakeStorage) PresignedReadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://test-bucket.example.com/" + key, nil
}

func (s *fakeStorage) objectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
