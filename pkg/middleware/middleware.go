package middleware

import (
	"net/http"
	"strings"

	"github.com/Astemirdum/library-catalog/pkg/auth"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	AuthorizationHeader = "Authorization"
	bearer              = "Bearer "
)

type TokenVerifier interface {
	VerifyToken(token string) (auth.Identity, error)
}

// Guard authenticates the bearer token and, when roles is non-empty,
// requires the caller's role to be one of them. On success the identity
// is stored in the request context.
func Guard(verifier TokenVerifier, roles ...auth.Role) echo.MiddlewareFunc {
	allowed := make(map[auth.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authorization := c.Request().Header.Get(AuthorizationHeader)
			if authorization == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}
			if !strings.HasPrefix(authorization, bearer) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization Header")
			}
			token := strings.TrimSpace(strings.TrimPrefix(authorization, bearer))
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			identity, err := verifier.VerifyToken(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}
			if len(allowed) > 0 {
				if _, ok := allowed[identity.Role]; !ok {
					return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
				}
			}

			req := c.Request()
			c.SetRequest(req.WithContext(auth.SetIdentity(req.Context(), identity)))
			return next(c)
		}
	}
}

func RequestLoggerConfig(log *zap.Logger) middleware.RequestLoggerConfig {
	log = log.Named("echo")
	return middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		HandleError:  true,
		LogError:     true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := zapcore.InfoLevel
			if v.Error != nil {
				level = zapcore.ErrorLevel
			}
			log.Log(level, "request",
				zap.String("URI", v.URI),
				zap.String("Method", v.Method),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}
}
