package middleware

import (
	"net/http"
	"strings"

	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"go.uber.org/zap"

	ctxpkg "github.com/wuzhiguocarter/Aletheia/internal/context"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
	"github.com/wuzhiguocarter/Aletheia/pkg/api"
	"github.com/wuzhiguocarter/Aletheia/pkg/auth"
)

// UserIDHeader identifies the caller when header identity is allowed.
const UserIDHeader = "X-User-ID"

// TokenValidator is satisfied by *auth.Validator.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// AuthConfig configures Authenticate.
type AuthConfig struct {
	// Validator checks bearer tokens. Nil disables token auth.
	Validator TokenValidator
	// AllowUserHeader accepts X-User-ID from callers without a token.
	AllowUserHeader bool
	// TrustLambdaAuthorizer accepts the "sub" set by an API Gateway
	// Lambda authorizer on requests arriving through the Lambda proxy.
	TrustLambdaAuthorizer bool
}

// Authenticate resolves the caller's user id from, in order: the API
// Gateway authorizer (when trusted), a bearer token, or the X-User-ID
// header (when allowed). Requests with none of them get 401.
func Authenticate(cfg AuthConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.TrustLambdaAuthorizer {
				if user, ok := authorizerSubject(r); ok {
					next.ServeHTTP(w, r.WithContext(ctxpkg.WithUserID(r.Context(), user)))
					return
				}
			}

			header := r.Header.Get("Authorization")

			if header != "" && cfg.Validator != nil {
				if !strings.HasPrefix(header, "Bearer ") {
					unauthorized(w, r, "authorization header must use the Bearer scheme")
					return
				}
				claims, err := cfg.Validator.Validate(header)
				if err != nil {
					logger.Debug("bearer token rejected",
						zap.String("request_id", GetRequestID(r)),
						zap.Error(err),
					)
					unauthorized(w, r, err.Error())
					return
				}
				next.ServeHTTP(w, r.WithContext(ctxpkg.WithUserID(r.Context(), claims.UserID())))
				return
			}

			if cfg.AllowUserHeader {
				if user := strings.TrimSpace(r.Header.Get(UserIDHeader)); user != "" {
					next.ServeHTTP(w, r.WithContext(ctxpkg.WithUserID(r.Context(), user)))
					return
				}
			}
			unauthorized(w, r, "authentication required")
		})
	}
}

// UserID returns the authenticated user of r.
func UserID(r *http.Request) (string, bool) {
	return ctxpkg.GetUserIDFromContext(r.Context())
}

func authorizerSubject(r *http.Request) (string, bool) {
	proxyCtx, ok := core.GetAPIGatewayV2ContextFromContext(r.Context())
	if !ok || proxyCtx.Authorizer == nil {
		return "", false
	}
	sub, ok := proxyCtx.Authorizer.Lambda["sub"].(string)
	return sub, ok && sub != ""
}

func unauthorized(w http.ResponseWriter, r *http.Request, details string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="aletheia"`)
	api.FromError(w, errors.Unauthorized(errors.CodeUserUnauthorized.String(), "unauthorized").
		WithDetails(details).
		Build(), GetRequestID(r))
}
