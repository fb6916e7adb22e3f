package models

import "time"

const HealthStatusHealthy = "healthy"

type HealthCheckResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

func NewHealthCheckResponse(version string, now time.Time) HealthCheckResponse {
	return HealthCheckResponse{
		Status:    HealthStatusHealthy,
		Timestamp: now.UTC(),
		Version:   version,
	}
}
