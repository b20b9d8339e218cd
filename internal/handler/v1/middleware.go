package v1

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carequeue/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/carequeue/pkg/metrics"
)

const claimsKey = "claims"

// AuthMiddleware validates the bearer token and attaches the caller's
// claims to the request context.
func AuthMiddleware(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			respondError(c, http.StatusUnauthorized, "authorization header required")
			c.Abort()
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(c, http.StatusUnauthorized, "bearer token required")
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateAccessToken(token)
		if err != nil {
			respondError(c, http.StatusUnauthorized, err.Error())
			c.Abort()
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not in the allowed set.
// Admins pass every check.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := callerClaims(c)
		if claims == nil {
			respondError(c, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}
		if claims.Role == domain.RoleAdmin {
			c.Next()
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}
		respondError(c, http.StatusForbidden, "access denied")
		c.Abort()
	}
}

func callerClaims(c *gin.Context) *domain.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, ok := v.(*domain.Claims)
	if !ok {
		return nil
	}
	return claims
}

// RequestLogger logs one structured line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500:
			log.Error("request", fields...)
		case c.Writer.Status() >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// Instrument records Prometheus counters and latency per request.
func Instrument(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		collector.InFlightGauge.Inc()
		start := time.Now()
		c.Next()
		collector.InFlightGauge.Dec()

		status := strconv.Itoa(c.Writer.Status())
		collector.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		collector.RequestDuration.WithLabelValues(c.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
	}
}
