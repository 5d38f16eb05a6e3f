package api

import "github.com/hackgods/clinic-booking/internal/appointment"

// ErrorResponse is the body of every non-2xx answer. Message is what the client
// shows to the user; Code is a stable machine code.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// RescheduleBody is accepted on PUT /profile/appointment/{id}.
type RescheduleBody = appointment.RescheduleRequest

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}
