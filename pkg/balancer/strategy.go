// Package balancer selects which provider handles the next attempt from
// the set of currently eligible candidates.
//
// Strategies are pure selection policies: they never mutate candidate
// state and carry at most a fairness counter of their own. Eligibility
// filtering (quota, cooldown, health status) happens before a strategy
// sees the list.
package balancer

import (
	"fmt"
	"time"
)

// Strategy names accepted in configuration.
const (
	StrategyPriority        = "priority"
	StrategyRoundRobin      = "round-robin"
	StrategyLeastBusy       = "least-busy"
	StrategyFastestResponse = "fastest-response"
	StrategyCostOptimized   = "cost-optimized"
)

// Candidate is one eligible provider presented to a strategy. Candidates
// arrive in priority order.
type Candidate struct {
	// Name identifies the provider.
	Name string

	// InFlight is the number of requests the provider is serving now.
	InFlight int64

	// AverageResponseTime is the provider's observed average latency.
	// Only meaningful when HasLatencyData is true.
	AverageResponseTime time.Duration

	// HasLatencyData reports whether the provider has served any
	// requests yet. Providers without data rank last in latency and
	// cost based strategies.
	HasLatencyData bool

	// HealthScore is the provider's 0-100 health score.
	HealthScore float64

	// CostPerUnit is the configured relative cost of using the provider.
	CostPerUnit float64
}

// Strategy picks one candidate from a non-empty list.
type Strategy interface {
	// Select returns the chosen provider name. ok is false only when the
	// candidate list is empty.
	Select(candidates []Candidate) (name string, ok bool)

	// Name returns the strategy's configuration name.
	Name() string
}

// NewStrategy constructs the strategy registered under the given name.
func NewStrategy(name string) (Strategy, error) {
	switch name {
	case StrategyPriority:
		return &priorityStrategy{}, nil
	case StrategyRoundRobin:
		return &roundRobinStrategy{}, nil
	case StrategyLeastBusy:
		return &leastBusyStrategy{}, nil
	case StrategyFastestResponse:
		return &fastestResponseStrategy{}, nil
	case StrategyCostOptimized:
		return &costOptimizedStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown balancing strategy %q", name)
	}
}
