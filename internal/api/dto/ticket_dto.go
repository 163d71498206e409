package dto

// CreateTicketRequest payload. Fields are checked for presence only.
type CreateTicketRequest struct {
	Topic       string `json:"topic" validate:"required"`
	Username    string `json:"username" validate:"required"`
	Subject     string `json:"subject" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// CreateTicketResponse is returned once the ticket is committed.
type CreateTicketResponse struct {
	Success bool   `json:"success"`
	Key     string `json:"key"`
}

// ErrorResponse is the body of every failed request. Details is nil for
// client input errors and always set for upstream and server errors.
type ErrorResponse struct {
	Error   string  `json:"error"`
	Details *string `json:"details,omitempty"`
}
