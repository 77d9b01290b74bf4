// Package middleware содержит HTTP middleware сервиса магазина.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

type contextKey string

const chatIDKey contextKey = "chatID"

// AuthHeader — заголовок, в котором шлюз сообщений передаёт подписанный
// идентификатор чата.
const AuthHeader = "X-Gateway-Auth"

// AuthMiddleware проверяет подпись идентификатора чата, проставленную шлюзом
// сообщений общим секретом.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет заголовок авторизации и добавляет идентификатор чата в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(AuthHeader)
		if header == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		chatID, ok := a.parseToken(header)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), chatIDKey, chatID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SignChatID подписывает идентификатор чата. Используется шлюзом (и тестами)
// для формирования значения заголовка.
func (a *AuthMiddleware) SignChatID(chatID string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(chatID))
	signature := mac.Sum(nil)
	return chatID + "." + hex.EncodeToString(signature)
}

func (a *AuthMiddleware) parseToken(value string) (string, bool) {
	idx := strings.LastIndex(value, ".")
	if idx <= 0 || idx == len(value)-1 {
		return "", false
	}

	chatID := value[:idx]
	signature := value[idx+1:]

	expected := a.SignChatID(chatID)
	expectedSig := expected[strings.LastIndex(expected, ".")+1:]

	if !hmac.Equal([]byte(signature), []byte(expectedSig)) {
		return "", false
	}

	return chatID, true
}

// GetChatIDFromContext извлекает идентификатор чата из контекста запроса.
func GetChatIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(chatIDKey).(string)
	return id, ok
}
