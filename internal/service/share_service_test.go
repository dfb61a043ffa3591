package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
)

type shareFixture struct {
	svc     *ShareService
	files   *fakeFileStore
	folders *fakeFolderStore
	clock   *fakeClock
	file    *domain.File
}

func newShareFixture(t *testing.T) *shareFixture {
	t.Helper()
	files := newFakeFileStore()
	folders := newFakeFolderStore()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	file := &domain.File{
		ID:           uuid.New(),
		Name:         "report.pdf",
		OriginalName: "report.pdf",
		SizeBytes:    10,
		S3Key:        "uploads/user-1/report",
		OwnerID:      testOwner,
	}
	if err := files.Create(context.Background(), file); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	return &shareFixture{
		svc:     NewShareService(newFakeShareStore(), files, folders, clock),
		files:   files,
		folders: folders,
		clock:   clock,
		file:    file,
	}
}

func TestShareCreateAndResolve(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	share, err := fx.svc.Create(ctx, testOwner, ShareCreate{
		ResourceID:   fx.file.ID,
		ResourceType: domain.ResourceTypeFile,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(share.Token) != shareTokenBytes*2 {
		t.Errorf("token length = %d, want %d", len(share.Token), shareTokenBytes*2)
	}
	if share.Permission != domain.PermissionRead {
		t.Errorf("default permission = %q, want read", share.Permission)
	}

	resolved, err := fx.svc.Resolve(ctx, share.Token, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.File == nil || resolved.File.ID != fx.file.ID {
		t.Errorf("resolved file = %+v, want %s", resolved.File, fx.file.ID)
	}
}

func TestShareTokensUnique(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		share, err := fx.svc.Create(ctx, testOwner, ShareCreate{
			ResourceID:   fx.file.ID,
			ResourceType: domain.ResourceTypeFile,
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[share.Token] {
			t.Fatalf("duplicate token %s", share.Token)
		}
		seen[share.Token] = true
	}
}

func TestShareCreateForeignResource(t *testing.T) {
	fx := newShareFixture(t)

	_, err := fx.svc.Create(context.Background(), "intruder", ShareCreate{
		ResourceID:   fx.file.ID,
		ResourceType: domain.ResourceTypeFile,
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("share foreign file = %v, want ErrForbidden", err)
	}
}

func TestShareExpiry(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	expires := fx.clock.Now().Add(time.Hour)
	share, err := fx.svc.Create(ctx, testOwner, ShareCreate{
		ResourceID:   fx.file.ID,
		ResourceType: domain.ResourceTypeFile,
		ExpiresAt:    &expires,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := fx.svc.Resolve(ctx, share.Token, ""); err != nil {
		t.Fatalf("resolve before expiry: %v", err)
	}

	// Ровно в момент истечения ссылка ещё действует
	fx.clock.Advance(time.Hour)
	if _, err := fx.svc.Resolve(ctx, share.Token, ""); err != nil {
		t.Errorf("resolve at expiry boundary = %v, want nil", err)
	}

	fx.clock.Advance(time.Second)
	if _, err := fx.svc.Resolve(ctx, share.Token, ""); !errors.Is(err, domain.ErrShareExpired) {
		t.Errorf("resolve after expiry = %v, want ErrShareExpired", err)
	}
}

func TestShareExpiryInPastRejected(t *testing.T) {
	fx := newShareFixture(t)

	past := fx.clock.Now().Add(-time.Minute)
	_, err := fx.svc.Create(context.Background(), testOwner, ShareCreate{
		ResourceID:   fx.file.ID,
		ResourceType: domain.ResourceTypeFile,
		ExpiresAt:    &past,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("create with past expiry = %v, want ErrValidation", err)
	}
}

func TestSharePasswordGate(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	share, err := fx.svc.Create(ctx, testOwner, ShareCreate{
		ResourceID:   fx.file.ID,
		ResourceType: domain.ResourceTypeFile,
		Password:     "s3cret",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !share.IsPasswordProtected() {
		t.Fatal("share is not password protected")
	}
	if share.PasswordHash != nil && *share.PasswordHash == "s3cret" {
		t.Fatal("password stored in plain text")
	}

	if _, err := fx.svc.Resolve(ctx, share.Token, ""); !errors.Is(err, domain.ErrSharePasswordRequired) {
		t.Errorf("resolve without password = %v, want ErrSharePasswordRequired", err)
	}
	if _, err := fx.svc.Resolve(ctx, share.Token, "wrong"); !errors.Is(err, domain.ErrSharePasswordInvalid) {
		t.Errorf("resolve with wrong password = %v, want ErrSharePasswordInvalid", err)
	}
	if _, err := fx.svc.Resolve(ctx, share.Token, "s3cret"); err != nil {
		t.Errorf("resolve with correct password = %v, want nil", err)
	}
}

func TestShareResolveDeletedResource(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	share, err := fx.svc.Create(ctx, testOwner, ShareCreate{
		ResourceID:   fx.file.ID,
		ResourceType: domain.ResourceTypeFile,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := fx.files.Delete(ctx, fx.file.ID); err != nil {
		t.Fatalf("delete file: %v", err)
	}
	if _, err := fx.svc.Resolve(ctx, share.Token, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("resolve dangling share = %v, want ErrNotFound", err)
	}
}

func TestShareRevoke(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	share, err := fx.svc.Create(ctx, testOwner, ShareCreate{
		ResourceID:   fx.file.ID,
		ResourceType: domain.ResourceTypeFile,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := fx.svc.Delete(ctx, "intruder", share.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign revoke = %v, want ErrNotFound", err)
	}
	if err := fx.svc.Delete(ctx, testOwner, share.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := fx.svc.Resolve(ctx, share.Token, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("resolve revoked token = %v, want ErrNotFound", err)
	}
}

func TestShareFolderResolve(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	folder := &domain.Folder{ID: uuid.New(), Name: "Docs", OwnerID: testOwner, Path: "/Docs"}
	if err := fx.folders.Create(ctx, folder); err != nil {
		t.Fatalf("seed folder: %v", err)
	}

	share, err := fx.svc.Create(ctx, testOwner, ShareCreate{
		ResourceID:   folder.ID,
		ResourceType: domain.ResourceTypeFolder,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	resolved, err := fx.svc.Resolve(ctx, share.Token, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Folder == nil || resolved.Folder.ID != folder.ID {
		t.Errorf("resolved folder = %+v, want %s", resolved.Folder, folder.ID)
	}
	if resolved.File != nil {
		t.Error("resolved file should be nil for folder share")
	}
}
