package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Error codes
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// APIError is the body of every error response.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

type codeInfo struct {
	status   int
	fallback string
}

// Oversized uploads stay 400 so clients treat them like any other validation failure.
var codes = map[string]codeInfo{
	ErrCodeUnauthorized:       {http.StatusUnauthorized, "Authentication required"},
	ErrCodeInvalidCredentials: {http.StatusUnauthorized, "Invalid credentials"},
	ErrCodeForbidden:          {http.StatusForbidden, "Access denied"},
	ErrCodeInvalidInput:       {http.StatusBadRequest, "Invalid request"},
	ErrCodePayloadTooLarge:    {http.StatusBadRequest, "File too large"},
	ErrCodeNotFound:           {http.StatusNotFound, "Resource not found"},
	ErrCodeConflict:           {http.StatusConflict, "Resource conflict"},
	ErrCodeInternalError:      {http.StatusInternalServerError, "Internal server error"},
	ErrCodeServiceUnavailable: {http.StatusServiceUnavailable, "Service temporarily unavailable"},
}

// Status returns the HTTP status sent for code.
func Status(code string) int {
	if info, ok := codes[code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Respond writes an error body for code, using the code's default message when message is empty.
func Respond(c *gin.Context, code, message string, details interface{}) {
	info, ok := codes[code]
	if !ok {
		info = codes[ErrCodeInternalError]
	}
	if message == "" {
		message = info.fallback
	}
	c.JSON(info.status, &APIError{Code: code, Message: message, Details: details})
}

func Unauthorized(c *gin.Context, message string) {
	Respond(c, ErrCodeUnauthorized, message, nil)
}

func InvalidCredentials(c *gin.Context) {
	Respond(c, ErrCodeInvalidCredentials, "", nil)
}

func Forbidden(c *gin.Context, message string) {
	Respond(c, ErrCodeForbidden, message, nil)
}

func NotFound(c *gin.Context, message string) {
	Respond(c, ErrCodeNotFound, message, nil)
}

func BadRequest(c *gin.Context, message string) {
	Respond(c, ErrCodeInvalidInput, message, nil)
}

// InvalidBody reports a failed bind. Validator failures list the offending fields.
func InvalidBody(c *gin.Context, message string, err error) {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		BadRequest(c, message)
		return
	}
	fields := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		fields[i] = FieldError{Field: fe.Field(), Rule: fe.Tag()}
	}
	Respond(c, ErrCodeInvalidInput, message, fields)
}

func PayloadTooLarge(c *gin.Context, message string) {
	Respond(c, ErrCodePayloadTooLarge, message, nil)
}

func Conflict(c *gin.Context, message string) {
	Respond(c, ErrCodeConflict, message, nil)
}

func InternalError(c *gin.Context, message string) {
	Respond(c, ErrCodeInternalError, message, nil)
}

func ServiceUnavailable(c *gin.Context, message string) {
	Respond(c, ErrCodeServiceUnavailable, message, nil)
}
