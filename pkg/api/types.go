package api

import "time"

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Active    bool      `json:"active"`
	Running   bool      `json:"running"`
}

type ReindexResponse struct {
	Status string `json:"status"`
}

type EventResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ConfigResponse struct {
	Status string `json:"status"`
}
