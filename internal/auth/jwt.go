// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/creator-outreach/internal/config"
	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/middleware"
)

const (
	claimRole = "role"
	claimPlan = "plan"
	claimUse  = "use"
	useAccess = "access"
)

// AccessTokenClaims are the claims the API trusts on every request. The
// plan claim feeds the per-plan rate limiter without a database read.
type AccessTokenClaims = middleware.AccessTokenClaims

// JWTManager signs ES256 access tokens and publishes the verifying key
// as a JWKS.
type JWTManager struct {
	signing   jwk.Key
	verifying jwk.Key
	jwks      jwk.Set
	config    config.JWTConfig
	now       func() time.Time
}

func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	pemBytes, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	return newJWTManagerFromPEM(pemBytes, cfg)
}

func newJWTManagerFromPEM(pemBytes []byte, cfg config.JWTConfig) (*JWTManager, error) {
	signing, err := jwk.ParseKey(pemBytes, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}

	for name, value := range map[string]any{
		jwk.AlgorithmKey: jwa.ES256(),
		jwk.KeyIDKey:     uuid.New().String()[:8],
	} {
		if err := signing.Set(name, value); err != nil {
			return nil, fmt.Errorf("set %s: %w", name, err)
		}
	}

	verifying, err := signing.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive verifying key: %w", err)
	}
	if err := verifying.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("set key usage: %w", err)
	}

	jwks := jwk.NewSet()
	if err := jwks.AddKey(verifying); err != nil {
		return nil, fmt.Errorf("build jwks: %w", err)
	}

	return &JWTManager{
		signing:   signing,
		verifying: verifying,
		jwks:      jwks,
		config:    cfg,
		now:       time.Now,
	}, nil
}

func (m *JWTManager) CreateAccessToken(claims AccessTokenClaims) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.config.AccessTokenExpire)

	token, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(claims.UserID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(expiresAt).
		Claim(claimRole, claims.Role).
		Claim(claimPlan, claims.Plan).
		Claim(claimUse, useAccess).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build access token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), m.signing))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}

	return string(signed), expiresAt, nil
}

func (m *JWTManager) VerifyAccessToken(_ context.Context, raw string) (*AccessTokenClaims, error) {
	token, err := jwt.ParseString(raw,
		jwt.WithKey(jwa.ES256(), m.verifying),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
	)
	if err != nil {
		if expired(err) {
			return nil, fmt.Errorf("verify access token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify access token: %w", core.ErrTokenInvalid)
	}

	var use, role, plan string
	if err := token.Get(claimUse, &use); err != nil || use != useAccess {
		return nil, fmt.Errorf("verify access token: not an access token: %w", core.ErrTokenInvalid)
	}
	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf("verify access token: no subject: %w", core.ErrTokenInvalid)
	}
	if token.Get(claimRole, &role) != nil || token.Get(claimPlan, &plan) != nil {
		return nil, fmt.Errorf("verify access token: missing claims: %w", core.ErrTokenInvalid)
	}

	return &AccessTokenClaims{UserID: subject, Role: role, Plan: plan}, nil
}

// expired matches the validator's message for a failed exp check.
func expired(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "exp") && strings.Contains(msg, "not satisfied")
}

func (m *JWTManager) GetJWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		//nolint:errcheck // best-effort response write
		_ = json.NewEncoder(w).Encode(m.jwks)
	}
}

var (
	_ TokenIssuer              = (*JWTManager)(nil)
	_ middleware.TokenVerifier = (*JWTManager)(nil)
)

func (m *JWTManager) KeyID() string {
	kid, _ := m.signing.KeyID()
	return kid
}
