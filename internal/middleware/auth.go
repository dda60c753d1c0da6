// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/carterperez-dev/creator-outreach/internal/core"
)

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
	UserPlanKey contextKey = "user_plan"
)

type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*AccessTokenClaims, error)
}

// AccessTokenClaims is what every authenticated route may rely on: who
// is calling, whether they administer the deployment, and which sending
// plan they are on.
type AccessTokenClaims struct {
	UserID string
	Role   string
	Plan   string
}

func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				core.JSONError(w, core.UnauthorizedError("missing authorization token"))
				return
			}

			claims, err := verifier.VerifyAccessToken(r.Context(), token)
			if err != nil {
				core.JSONError(w, authFailure(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func WithClaims(ctx context.Context, claims *AccessTokenClaims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
	return context.WithValue(ctx, UserPlanKey, claims.Plan)
}

// RequireAdmin must run after Authenticator.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch GetUserRole(r.Context()) {
		case "":
			core.JSONError(w, core.UnauthorizedError("authentication required"))
		case "admin":
			next.ServeHTTP(w, r)
		default:
			core.JSONError(w, core.ForbiddenError("admin access required"))
		}
	})
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func authFailure(err error) *core.AppError {
	var appErr *core.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, core.ErrTokenExpired) {
		return core.TokenExpiredError()
	}
	return core.TokenInvalidError()
}

func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

func GetUserRole(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

func GetUserPlan(ctx context.Context) string {
	plan, _ := ctx.Value(UserPlanKey).(string)
	return plan
}

// CronSecret guards the batch endpoints invoked by an external scheduler.
// The bearer credential is a shared secret, not a user token.
func CronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" || secret == "" || !core.SecretsEqual(token, secret) {
				core.JSONError(w, core.UnauthorizedError("invalid cron credential"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
