package observability

import "context"

// HealthStatus represents the health state of a collection backend.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusDegraded HealthStatus = "degraded"
)

// Health describes the health of one backend.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthReport aggregates backend health; its status is the worst component status.
type HealthReport struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

// HealthChecker is implemented by collection backends that can report their health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

// NewHealthReport creates a HealthReport with status up.
func NewHealthReport(service, version string) *HealthReport {
	return &HealthReport{
		Service: service,
		Status:  HealthStatusUp,
		Version: version,
	}
}

// AddComponent adds a component health result and degrades overall status if needed.
func (hr *HealthReport) AddComponent(h Health) {
	hr.Components = append(hr.Components, h)

	switch h.Status {
	case HealthStatusDown:
		hr.Status = HealthStatusDown
	case HealthStatusDegraded:
		if hr.Status != HealthStatusDown {
			hr.Status = HealthStatusDegraded
		}
	}
}

// Check runs every checker and collects the results.
func (hr *HealthReport) Check(ctx context.Context, checkers ...HealthChecker) *HealthReport {
	for _, c := range checkers {
		hr.AddComponent(c.CheckHealth(ctx))
	}
	return hr
}
