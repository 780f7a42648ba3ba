package httppresentation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Zhima-Mochi/sweetshop/internal/observability"
	"github.com/Zhima-Mochi/sweetshop/internal/observability/logctx"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims are the bearer token contents. The user id is read from "id", falling back to "sub".
type Claims struct {
	UserID string `json:"id,omitempty"`
	Role   Role   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Principal struct {
	UserID string
	Role   Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Authenticator verifies HS256 tokens signed with a shared secret.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuthenticator(secret string) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}, nil
}

func (a *Authenticator) Verify(raw string) (Principal, error) {
	claims := &Claims{}
	tok, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return a.secret, nil })
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return Principal{}, ErrInvalidToken
	}
	uid := claims.UserID
	if uid == "" {
		uid = claims.Subject
	}
	if uid == "" {
		return Principal{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	role := claims.Role
	if role == "" {
		role = RoleUser
	}
	return Principal{UserID: uid, Role: role}, nil
}

type accessLevel int

const (
	accessPublic accessLevel = iota
	accessUser
	accessAdmin
)

type principalKey struct{}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// withAuth resolves the bearer token into a Principal: 401 without a valid token, 403 for non-admins on admin routes.
func (h *Handler) withAuth(level accessLevel, next http.Handler) http.Handler {
	if level == accessPublic {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.auth == nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication is not configured")
			return
		}
		raw, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", ErrMissingToken.Error())
			return
		}
		p, err := h.auth.Verify(raw)
		if err != nil {
			logctx.FromOr(r.Context(), h.log).Debug("auth_rejected", observability.F("error", err.Error()))
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Not authorized, token failed")
			return
		}
		if level == accessAdmin && !p.IsAdmin() {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Not authorized as an admin")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey{}, p)
		ctx = logctx.Enrich(ctx, h.log, observability.F("user_id", p.UserID), observability.F("role", string(p.Role)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}
