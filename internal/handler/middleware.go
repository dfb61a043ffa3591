package handler

import (
	"context"
	"log"
	"net/http"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/service"
)

type contextKey string

const identityKey contextKey = "identity"

// Authenticator проверяет JWT и лениво заводит запись пользователя
// при первом аутентифицированном запросе.
func Authenticator(verifier *auth.Verifier, users *service.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := verifier.VerifyRequest(r)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
				return
			}

			if _, err := users.Profile(r.Context(), identity); err != nil {
				log.Printf("[Auth] Не удалось получить пользователя %s: %v", identity.SubjectID, err)
				writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthenticator пропускает запрос и без токена: личность кладётся
// в контекст только если токен есть и валиден. Для маршрутов, где доступ
// к публичным ресурсам разрешён анонимно.
func OptionalAuthenticator(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := verifier.VerifyRequest(r)
			if err == nil {
				r = r.WithContext(context.WithValue(r.Context(), identityKey, identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identityFromContext(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(auth.Identity)
	return identity, ok
}

// requireIdentity достаёт личность из контекста запроса; отсутствие
// означает запрос мимо Authenticator.
func requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return auth.Identity{}, false
	}
	return identity, true
}

// subjectID возвращает id пользователя или пустую строку для анонима.
func subjectID(r *http.Request) string {
	if identity, ok := identityFromContext(r.Context()); ok {
		return identity.SubjectID
	}
	return ""
}
