package handlers

// ErrorResponse is the JSON error body documented in the API.
type ErrorResponse struct {
	Error string `json:"error"`
}
