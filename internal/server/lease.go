package server

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// TargetGuard bounds how hard the service leans on each verification target:
// a cap on concurrent runs plus a sliding one-minute request window. A target
// that is already struggling must not see its load amplified by us.
type TargetGuard struct {
	mu      sync.Mutex
	targets map[string]*targetState
}

type TargetLease struct {
	Target string
	ref    *targetState
}

type targetState struct {
	config        TargetConfig
	activeRuns    int
	runsLastMin   []time.Time
	lastAcquireAt time.Time
}

func NewTargetGuard(cfg ServerConfig) *TargetGuard {
	guard := &TargetGuard{targets: map[string]*targetState{}}
	for _, target := range cfg.Targets {
		if strings.TrimSpace(target.Name) == "" {
			continue
		}
		guard.targets[target.Name] = &targetState{config: target}
	}
	return guard
}

// Acquire reserves a run slot for the named target. It fails fast instead of
// queueing: a blocked run stays visible to the caller as a rejection.
func (g *TargetGuard) Acquire(name string) (TargetLease, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, ok := g.targets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return TargetLease{}, errors.New("target not configured")
	}
	now := time.Now()
	state.runsLastMin = filterRecentTime(state.runsLastMin, now.Add(-time.Minute))
	if state.activeRuns >= state.config.MaxConcurrentRuns {
		return TargetLease{}, errors.New("target concurrent-run limit reached")
	}
	if len(state.runsLastMin) >= state.config.RPM {
		return TargetLease{}, errors.New("target rate limit reached")
	}
	state.activeRuns++
	state.runsLastMin = append(state.runsLastMin, now)
	state.lastAcquireAt = now
	return TargetLease{Target: state.config.Name, ref: state}, nil
}

func (g *TargetGuard) Release(lease TargetLease) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if lease.ref == nil {
		return
	}
	if lease.ref.activeRuns > 0 {
		lease.ref.activeRuns--
	}
}

func filterRecentTime(items []time.Time, cutoff time.Time) []time.Time {
	if len(items) == 0 {
		return items
	}
	out := items[:0]
	for _, item := range items {
		if item.After(cutoff) {
			out = append(out, item)
		}
	}
	return out
}
