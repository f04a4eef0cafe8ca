// Package session resolves the identity and authorization role of one
// authenticated session. The role comes from a side call to the
// identity provider and is resolved exactly once: any failure there is
// terminal and falls back to the lowest-privilege role rather than
// leaving the session unresolved.
package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Compunic-startup/compunic-management/internal/model"
)

// Session is the resolved state handed to the gate and dashboards.
// Role never changes for the lifetime of the session once Resolved is
// true.
type Session struct {
	Principal model.Principal
	Resolved  bool
}

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type Resolver struct {
	secret          string
	issuer          string
	identityBaseURL string
	client          *http.Client
}

func NewResolver(secret, issuer, identityBaseURL string, lookupTimeout time.Duration) *Resolver {
	return &Resolver{
		secret:          secret,
		issuer:          issuer,
		identityBaseURL: strings.TrimRight(identityBaseURL, "/"),
		client:          &http.Client{Timeout: lookupTimeout},
	}
}

func (r *Resolver) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(r.secret), nil
	}, jwt.WithIssuer(r.issuer), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return claims, nil
}

// Resolve performs the one-shot role lookup. There is no retry: a
// network error, a non-2xx response, an empty body, or an unknown role
// all terminate the resolution with the default role. The returned
// session always has Resolved set.
func (r *Resolver) Resolve(ctx context.Context, claims *Claims) Session {
	principal := model.Principal{
		ID:    claims.UserID,
		Email: claims.Email,
		Role:  model.DefaultRole,
	}
	role, err := r.lookupRole(ctx, claims.UserID)
	if err != nil {
		log.Printf("session: role lookup for %s failed, defaulting to %s: %v", claims.UserID, model.DefaultRole, err)
		return Session{Principal: principal, Resolved: true}
	}
	if parsed := model.ParseRole(role); parsed != model.RoleUnknown {
		principal.Role = parsed
	} else {
		log.Printf("session: unknown role %q for %s, defaulting to %s", role, claims.UserID, model.DefaultRole)
	}
	return Session{Principal: principal, Resolved: true}
}

func (r *Resolver) lookupRole(ctx context.Context, userID string) (string, error) {
	endpoint := r.identityBaseURL + "/role?uid=" + url.QueryEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("role endpoint returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", err
	}
	role := strings.TrimSpace(string(body))
	if role == "" {
		return "", fmt.Errorf("role endpoint returned empty body")
	}
	return role, nil
}
