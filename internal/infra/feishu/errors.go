package feishu

import (
	"errors"
	"fmt"
	"net/http"
)

// Feishu OpenAPI error codes the callers care about
const (
	CodeRateLimited        = 99991400
	CodeTenantTokenInvalid = 99991663
	CodeAppTokenInvalid    = 99991664
	CodeNoPermission       = 99991672
	CodeUserNotFound       = 41050
)

// APIError is a non-success OpenAPI response
type APIError struct {
	StatusCode int // 0 when the SDK only reported the body code
	Code       int
	Msg        string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feishu api error: http %d code %d: %s", e.StatusCode, e.Code, e.Msg)
	}
	return fmt.Sprintf("feishu api error: code %d: %s", e.Code, e.Msg)
}

// IsRateLimited reports a throttled request
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Code == CodeRateLimited
}

// IsUnauthorized reports missing or rejected credentials and scopes
func (e *APIError) IsUnauthorized() bool {
	switch e.Code {
	case CodeTenantTokenInvalid, CodeAppTokenInvalid, CodeNoPermission:
		return true
	}
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsNotFound reports an unknown resource
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.Code == CodeUserNotFound
}

// IsServerError reports a failure on Feishu's side
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// AsAPIError unwraps an *APIError from err
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
