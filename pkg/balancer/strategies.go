package balancer

import (
	"math"
	"sync/atomic"
)

// priorityStrategy always picks the highest-priority eligible candidate.
// Candidates arrive in priority order, so this is the first entry.
type priorityStrategy struct{}

func (s *priorityStrategy) Select(candidates []Candidate) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[0].Name, true
}

func (s *priorityStrategy) Name() string { return StrategyPriority }

// roundRobinStrategy rotates through candidates with a shared counter.
// Rotation is position-based over whatever list it is handed, so a
// candidate dropping out of eligibility shifts the rotation rather than
// stalling it.
type roundRobinStrategy struct {
	next atomic.Uint64
}

func (s *roundRobinStrategy) Select(candidates []Candidate) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	n := s.next.Add(1) - 1
	return candidates[n%uint64(len(candidates))].Name, true
}

func (s *roundRobinStrategy) Name() string { return StrategyRoundRobin }

// leastBusyStrategy picks the candidate with the fewest in-flight
// requests. Ties go to the higher-priority candidate.
type leastBusyStrategy struct{}

func (s *leastBusyStrategy) Select(candidates []Candidate) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.InFlight < best.InFlight {
			best = c
		}
	}
	return best.Name, true
}

func (s *leastBusyStrategy) Name() string { return StrategyLeastBusy }

// fastestResponseStrategy picks the candidate with the lowest observed
// average latency. Candidates with no traffic yet rank last so an unknown
// provider cannot outrank a measured one. Ties go to the higher-priority
// candidate.
type fastestResponseStrategy struct{}

func (s *fastestResponseStrategy) Select(candidates []Candidate) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	best := candidates[0]
	bestLatency := effectiveLatency(best)
	for _, c := range candidates[1:] {
		if l := effectiveLatency(c); l < bestLatency {
			best = c
			bestLatency = l
		}
	}
	return best.Name, true
}

func (s *fastestResponseStrategy) Name() string { return StrategyFastestResponse }

// costOptimizedStrategy scores candidates by cost weighted by latency,
// discounted by health, and picks the lowest. Candidates with no latency
// data rank last. Ties go to the higher-priority candidate.
type costOptimizedStrategy struct{}

func (s *costOptimizedStrategy) Select(candidates []Candidate) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	best := candidates[0]
	bestScore := costScore(best)
	for _, c := range candidates[1:] {
		if score := costScore(c); score < bestScore {
			best = c
			bestScore = score
		}
	}
	return best.Name, true
}

func (s *costOptimizedStrategy) Name() string { return StrategyCostOptimized }

func effectiveLatency(c Candidate) float64 {
	if !c.HasLatencyData {
		return math.Inf(1)
	}
	return float64(c.AverageResponseTime)
}

// costScore is cost multiplied by average latency, divided by the health
// score so unhealthy cheapness does not win. Health is floored at 1 to
// avoid division by zero.
func costScore(c Candidate) float64 {
	if !c.HasLatencyData {
		return math.Inf(1)
	}
	health := math.Max(c.HealthScore, 1)
	return c.CostPerUnit * c.AverageResponseTime.Seconds() / health
}
