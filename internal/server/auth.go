package server

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/abverdict/abverdict/internal/store"
)

// authMiddleware checks for a valid token in the Authorization header or
// the token query param
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// loadOrCreateToken returns the persisted API token, generating and saving
// one on first start.
func loadOrCreateToken(ctx context.Context, s store.Store) (string, error) {
	token, err := s.GetSetting(ctx, store.SettingServerToken)
	if err == nil && token != "" {
		return token, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("failed to load server token: %w", err)
	}

	token, err = generateToken()
	if err != nil {
		return "", err
	}
	if err := s.SetSetting(ctx, store.SettingServerToken, token); err != nil {
		return "", fmt.Errorf("failed to save server token: %w", err)
	}
	return token, nil
}

func generateToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
