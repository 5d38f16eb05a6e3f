package simulate

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeConflict is a refusal the clinic is expected to give under load: a
	// taken slot, a leave day, a held submit lock or an already cancelled appointment.
	OutcomeConflict
	OutcomeError
)

// OperationStats counts outcomes and keeps every latency of one operation kind.
type OperationStats struct {
	Total    atomic.Int64
	Success  atomic.Int64
	Conflict atomic.Int64
	Error    atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationStats) Record(latency time.Duration, outcome Outcome) {
	om.Total.Add(1)
	switch outcome {
	case OutcomeSuccess:
		om.Success.Add(1)
	case OutcomeConflict:
		om.Conflict.Add(1)
	default:
		om.Error.Add(1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

type LatencySummary struct {
	Avg, Min, Max, P50, P95 time.Duration
}

func (om *OperationStats) Latency() LatencySummary {
	om.mu.Lock()
	latencies := slices.Clone(om.latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return LatencySummary{}
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	percentile := func(p int) time.Duration {
		return latencies[min(len(latencies)*p/100, len(latencies)-1)]
	}
	return LatencySummary{
		Avg: sum / time.Duration(len(latencies)),
		Min: latencies[0],
		Max: latencies[len(latencies)-1],
		P50: percentile(50),
		P95: percentile(95),
	}
}

type Metrics struct {
	Book   OperationStats
	Cancel OperationStats
	List   OperationStats
}
