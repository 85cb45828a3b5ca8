// internal/middleware/logging.go
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/commission-backend/internal/models"
	"github.com/javajoker/commission-backend/internal/repository"
	"github.com/javajoker/commission-backend/internal/utils"
)

const requestIDHeader = "X-Request-ID"

// maxAuditBody caps how much of a request body is copied into the audit log.
const maxAuditBody = 64 << 10

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(utils.ContextRequestID, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger writes one structured line per request.
func RequestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		requestID, _ := c.Get(utils.ContextRequestID)
		userID, _ := utils.GetUserIDFromContext(c)
		entry := logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
			"request_id": requestID,
			"user_id":    userID,
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("Request processed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request processed")
		default:
			entry.Info("Request processed")
		}
	}
}

// AuditLogMiddleware records every state changing request. Writes happen off
// the request path; failures are logged only.
func AuditLogMiddleware(repo repository.AuditRepository, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodOptions || c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		c.Next()

		requestID, _ := c.Get(utils.ContextRequestID)
		requestIDStr, _ := requestID.(string)
		actor, _ := utils.GetUserIDFromContext(c)
		if actor == "" && strings.HasPrefix(c.Request.URL.Path, "/webhooks/") {
			actor = "webhook:" + strings.TrimPrefix(c.Request.URL.Path, "/webhooks/")
		}

		auditLog := &models.AuditLog{
			ActorID:      actor,
			Action:       c.Request.Method + " " + routeOrPath(c),
			ResourceType: extractResourceType(c.Request.URL.Path),
			ResourceID:   extractResourceID(c.Request.URL.Path),
			StatusCode:   c.Writer.Status(),
			RequestID:    requestIDStr,
			NewValues:    auditValues(requestBody),
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
		}
		if affiliateID, ok := utils.GetAffiliateIDFromContext(c); ok {
			if parsed, err := uuid.Parse(affiliateID); err == nil {
				auditLog.AffiliateID = &parsed
			}
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := repo.Create(ctx, auditLog); err != nil {
				logger.WithError(err).WithField("action", auditLog.Action).Error("Failed to create audit log")
			}
		}()
	}
}

func routeOrPath(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}

func auditValues(body []byte) models.JSONB {
	if len(body) == 0 {
		return nil
	}
	if len(body) > maxAuditBody {
		return models.JSONB{"truncated": true, "size": len(body), "sha256": utils.HashBytes(body)}
	}
	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return models.JSONB{"sha256": utils.HashBytes(body)}
	}
	return models.JSONB(data)
}

func extractResourceType(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 && (parts[0] == "v1" || parts[0] == "webhooks") {
		return parts[1]
	}
	if len(parts) >= 1 && parts[0] != "" {
		return parts[0]
	}
	return "unknown"
}

func extractResourceID(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for _, part := range parts {
		if _, err := uuid.Parse(part); err == nil {
			return part
		}
	}
	return ""
}
