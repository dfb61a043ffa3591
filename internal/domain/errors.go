package domain

import "errors"

// Ошибки уровня домена. Хендлеры сопоставляют их с HTTP-статусами,
// сервисы оборачивают через fmt.Errorf("...: %w", err).
var (
	ErrNotFound       = errors.New("resource not found")
	ErrForbidden      = errors.New("access denied")
	ErrValidation     = errors.New("validation failed")
	ErrQuotaExceeded  = errors.New("storage limit exceeded")
	ErrFileTooLarge   = errors.New("file exceeds maximum size")
	ErrFolderNotEmpty = errors.New("folder is not empty")
	ErrFolderCycle    = errors.New("folder cannot be moved into its own subtree")
	ErrUpstream       = errors.New("upstream storage unavailable")
	ErrEmptyArchive   = errors.New("archive is empty")

	// Ошибки протокола доступа по ссылке.
	ErrShareExpired          = errors.New("share has expired")
	ErrSharePasswordRequired = errors.New("share password required")
	ErrSharePasswordInvalid  = errors.New("share password invalid")
)
