package middleware

import (
	"math/rand/v2"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ValidatorConfig holds request-level validation configuration. Field-level
// task validation (schedule shape, channels, retry bounds) belongs to
// internal/validate; this validator only guards the HTTP surface itself.
type ValidatorConfig struct {
	MaxBodySize      int64    // Maximum request body size in bytes
	AllowedTaskTypes []string // Allowed task_type values
	MaxTitleLength   int      // Maximum task title length
}

// DefaultValidatorConfig returns safe defaults.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxBodySize:      1 << 20, // 1MB
		AllowedTaskTypes: []string{"reminder", "periodic_task", "automated_task", "custom"},
		MaxTitleLength:   256,
	}
}

// Validator performs request-level validation.
type Validator struct {
	config ValidatorConfig
}

// NewValidator creates a new validator with the given config.
func NewValidator(config ValidatorConfig) *Validator {
	return &Validator{config: config}
}

// ValidateTaskType checks if task_type is allowed.
func (v *Validator) ValidateTaskType(taskType string) error {
	for _, allowed := range v.config.AllowedTaskTypes {
		if taskType == allowed {
			return nil
		}
	}
	return &ValidationError{
		Field:   "task_type",
		Message: "invalid task type",
	}
}

// ValidateTitle checks a task title.
func (v *Validator) ValidateTitle(title string) error {
	if len(title) == 0 {
		return &ValidationError{
			Field:   "title",
			Message: "title is required",
		}
	}
	if len(title) > v.config.MaxTitleLength {
		return &ValidationError{
			Field:   "title",
			Message: "title exceeds maximum length",
		}
	}
	return nil
}

// ValidationError represents a validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// BodySizeLimitMiddleware limits request body size.
func BodySizeLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "request body too large",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// SecurityHeadersMiddleware adds security headers.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Next()
	}
}

// RequestIDMiddleware adds a request ID for tracing.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func generateRequestID() string {
	return "req-" + randomString(16)
}

func randomString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.IntN(len(letters))]
	}
	return string(b)
}
