package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tourneykit/core"

	"github.com/golang-jwt/jwt/v5"
)

const (
	actorHeader = "X-Actor-Token"
	actorCookie = "auth_token"
)

var errNoSecret = errors.New("actor tokens are not configured")

// IssueActorToken signs an HS256 token whose subject is user. It carries
// identity only; roles and emails are always read from storage.
func IssueActorToken(secret string, user core.UserID, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errNoSecret
	}
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  string(normalized),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (s *server) parseActor(raw string) (core.UserID, error) {
	if len(s.secret) == 0 {
		return "", errNoSecret
	}
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	return core.NormalizeUserID(core.UserID(claims.Subject))
}

func actorToken(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get(actorHeader)); t != "" {
		return t
	}
	if c, err := r.Cookie(actorCookie); err == nil {
		return c.Value
	}
	return ""
}

// requireActor authenticates the acting user from a signed token.
func (s *server) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := actorToken(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing actor token", nil)
			return
		}
		actor, err := s.parseActor(raw)
		if err != nil {
			s.log.Debug("actor token rejected", "error", err)
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid actor token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

func actorFrom(r *http.Request) core.UserID {
	a, _ := r.Context().Value(actorKey).(core.UserID)
	return a
}
