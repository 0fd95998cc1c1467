package dto

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	// Field names the offending request field on validation errors.
	Field string `json:"field,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
	WriteMode string `json:"write_mode"`
	Breaker   string `json:"breaker,omitempty"`
}
