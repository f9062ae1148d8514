package api

// ErrorResponse carries a human-readable message plus a stable machine
// code clients can branch on (e.g. BOOKING_WINDOW, NO_CREDITS).
type ErrorResponse struct {
	Error string `json:"error" example:"weekly limit reached for this class type"`
	Code  string `json:"code,omitempty" example:"WEEKLY_LIMIT"`
}

type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}
