package utils

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys read when building the envelope meta.
const (
	RequestIDKey = "request_id"
	TabIDKey     = "tab_id"
)

// Response is the envelope every REST endpoint answers with. GraphQL keeps
// its own {data, errors} shape.
type Response struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    Meta        `json:"meta"`
}

// ErrorInfo carries the machine readable error code.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta identifies the request and, for cart calls, the tab that made it.
type Meta struct {
	RequestID string `json:"requestId"`
	TabID     string `json:"tabId,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Success writes data with status code.
func Success(c *gin.Context, code int, message string, data interface{}) {
	respond(c, Response{Success: true, Code: code, Message: message, Data: data})
}

// Error writes an error envelope; errCode is one of the upper-case codes the
// handlers map sentinel errors to.
func Error(c *gin.Context, code int, errCode, message string) {
	respond(c, Response{
		Code:    code,
		Message: message,
		Error:   &ErrorInfo{Code: errCode, Message: message},
	})
}

func respond(c *gin.Context, r Response) {
	r.Meta = Meta{
		RequestID: requestID(c),
		TabID:     c.GetString(TabIDKey),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	c.JSON(r.Code, r)
}

func requestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return uuid.New().String()[:8]
}
