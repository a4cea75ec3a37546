package models

// APIResponse is the standard envelope for HTTP API responses.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success returns a success-shaped API response.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: "success", Result: result}
}

// SuccessWithMessage returns a success-shaped API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: "success", Message: message, Result: result}
}

// Error returns an error-shaped API response.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", Message: message}
}
