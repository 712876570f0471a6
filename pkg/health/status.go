package health

// Status classifies a provider's current fitness for traffic.
type Status int

const (
	// StatusHealthy means the provider is passing probes and its recent
	// track record is good.
	StatusHealthy Status = iota

	// StatusDegraded means the provider is usable but its health score
	// has dropped below the healthy threshold.
	StatusDegraded

	// StatusUnhealthy means the provider failed its last probe or has
	// accumulated too many consecutive failures. Unhealthy providers are
	// excluded from selection.
	StatusUnhealthy

	// StatusMaintenance means an operator has taken the provider out of
	// rotation. It is excluded from selection until cleared.
	StatusMaintenance
)

// String returns a stable lowercase name for logs and API responses.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	case StatusMaintenance:
		return "maintenance"
	default:
		return "unknown"
	}
}

// Selectable reports whether a provider in this status may receive
// traffic.
func (s Status) Selectable() bool {
	return s == StatusHealthy || s == StatusDegraded
}
