package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"noteful-auth/internal/apperr"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "requestID"
	subjectKey      = "subject"
)

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Location")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger tags each request with an id and logs one line once it completes.
func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)

		c.Next()

		fields := logrus.Fields{
			"request_id": id,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
		}
		if subject := c.GetString(subjectKey); subject != "" {
			fields["user"] = subject
		}
		logger.WithFields(fields).Info("request handled")
	}
}

// errorBoundary turns the last error recorded by a handler into the response.
// Typed errors keep their status and message; anything else becomes a bare 500.
func errorBoundary(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		entry := logger.WithField("request_id", c.GetString(requestIDKey))

		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Kind != apperr.KindInternal {
			fields := logrus.Fields{"kind": appErr.Kind}
			if appErr.Field != "" {
				fields["field"] = appErr.Field
			}
			if appErr.Cause != nil {
				fields["cause"] = appErr.Cause.Error()
			}
			entry.WithFields(fields).Debug("request rejected")
			c.JSON(appErr.Kind.HTTPStatus(), gin.H{"message": appErr.Message})
			return
		}

		entry.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": http.StatusText(http.StatusInternalServerError)})
	}
}

// requireToken rejects requests without a valid bearer token and records the
// token subject on the context.
func (h *Handler) requireToken(c *gin.Context) {
	claims, err := h.users.Authenticate(c.Request.Context(), bearerToken(c))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.Set(subjectKey, claims.Subject)
	c.Next()
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func bearerToken(c *gin.Context) string {
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
