package utils

import "time"

// APIResponse is the error envelope shared by every JSON endpoint.
type APIResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	Field     string    `json:"field,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func ErrorResponse(message, err string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     err,
		Timestamp: time.Now().UTC(),
	}
}

// ValidationErrorResponse names the request field that was rejected so a client can
// highlight it.
func ValidationErrorResponse(field, err string) APIResponse {
	resp := ErrorResponse("Validation failed", err)
	resp.Field = field
	return resp
}
