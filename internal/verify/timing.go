package verify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"authwatch/internal/target"
)

type TimingProfile struct {
	Name              string        `json:"name"`
	BaseDelay         time.Duration `json:"base_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	TimeoutMultiplier float64       `json:"timeout_multiplier"`
	PollInterval      time.Duration `json:"poll_interval"`
	MaxRetries        int           `json:"max_retries"`
}

var timingProfiles = []TimingProfile{
	{Name: "fast-local", BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, TimeoutMultiplier: 1.0, PollInterval: 100 * time.Millisecond, MaxRetries: 2},
	{Name: "local-dev", BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second, TimeoutMultiplier: 1.5, PollInterval: 250 * time.Millisecond, MaxRetries: 3},
	{Name: "ci-fast", BaseDelay: 150 * time.Millisecond, MaxDelay: 3 * time.Second, TimeoutMultiplier: 2.0, PollInterval: 250 * time.Millisecond, MaxRetries: 3},
	{Name: "ci-standard", BaseDelay: 250 * time.Millisecond, MaxDelay: 5 * time.Second, TimeoutMultiplier: 2.5, PollInterval: 500 * time.Millisecond, MaxRetries: 4},
	{Name: "ci-slow", BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second, TimeoutMultiplier: 3.0, PollInterval: time.Second, MaxRetries: 5},
	{Name: "robust", BaseDelay: time.Second, MaxDelay: 15 * time.Second, TimeoutMultiplier: 4.0, PollInterval: 2 * time.Second, MaxRetries: 6},
}

func ProfileByName(name string) (TimingProfile, bool) {
	for _, profile := range timingProfiles {
		if profile.Name == name {
			return profile, true
		}
	}
	return TimingProfile{}, false
}

func ProfileNames() []string {
	names := make([]string, 0, len(timingProfiles))
	for _, profile := range timingProfiles {
		names = append(names, profile.Name)
	}
	return names
}

// EnvironmentMetrics is one measurement of the target environment's latency.
type EnvironmentMetrics struct {
	NavigationMS     float64   `json:"navigation_ms"`
	SessionMS        float64   `json:"session_ms"`
	PerformanceScore float64   `json:"performance_score"`
	MeasuredAt       time.Time `json:"measured_at"`
}

const (
	profilerUninitialized = "uninitialized"
	profilerMeasuring     = "measuring"
	profilerProfiled      = "profiled"
)

// profileTTL bounds how long a cached measurement stays valid; environments
// drift (CI machines warm up, local servers recompile).
const profileTTL = 5 * time.Minute

const timingSamples = 3

// Profiler measures environment latency and selects a retry/backoff profile.
// It is an explicit object rather than process-global state so concurrent
// workers each own their cache and tests cannot leak profiles into each
// other.
type Profiler struct {
	mu      sync.Mutex
	state   string
	profile TimingProfile
	metrics EnvironmentMetrics
	ttl     time.Duration
	isCI    bool
	now     func() time.Time
}

func NewProfiler() *Profiler {
	return &Profiler{
		state: profilerUninitialized,
		ttl:   profileTTL,
		isCI:  envBool("CI"),
		now:   time.Now,
	}
}

func (p *Profiler) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Reset discards the cached profile, forcing re-measurement on next use.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = profilerUninitialized
	p.profile = TimingProfile{}
	p.metrics = EnvironmentMetrics{}
}

// Profile returns the cached profile, re-measuring when uninitialized or the
// cache expired. Measurement failure classifies conservatively as robust
// rather than failing the run.
func (p *Profiler) Profile(ctx context.Context, client *target.Client) TimingProfile {
	p.mu.Lock()
	if p.state == profilerProfiled && p.now().Sub(p.metrics.MeasuredAt) < p.ttl {
		profile := p.profile
		p.mu.Unlock()
		return profile
	}
	p.state = profilerMeasuring
	p.mu.Unlock()

	metrics, err := p.measure(ctx, client)
	profile := classifyEnvironment(metrics, p.isCI, err)

	p.mu.Lock()
	p.state = profilerProfiled
	p.profile = profile
	p.metrics = metrics
	p.mu.Unlock()
	return profile
}

// Metrics returns the last measurement taken.
func (p *Profiler) Metrics() EnvironmentMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

func (p *Profiler) measure(ctx context.Context, client *target.Client) (EnvironmentMetrics, error) {
	metrics := EnvironmentMetrics{MeasuredAt: p.now()}

	navTotal := 0.0
	navCount := 0
	var lastErr error
	for i := 0; i < timingSamples; i++ {
		raw, err := client.RawRequest(ctx, http.MethodGet, "/", target.RequestOptions{OmitCookie: true})
		if err != nil && raw == nil {
			lastErr = err
			continue
		}
		navTotal += float64(raw.Duration.Milliseconds())
		navCount++
	}
	sessionTotal := 0.0
	sessionCount := 0
	for i := 0; i < timingSamples; i++ {
		raw, err := client.RawRequest(ctx, http.MethodGet, client.SessionPath(), target.RequestOptions{OmitCookie: true})
		if err != nil && raw == nil {
			lastErr = err
			continue
		}
		sessionTotal += float64(raw.Duration.Milliseconds())
		sessionCount++
	}
	if navCount == 0 || sessionCount == 0 {
		return metrics, lastErr
	}
	metrics.NavigationMS = navTotal / float64(navCount)
	metrics.SessionMS = sessionTotal / float64(sessionCount)
	metrics.PerformanceScore = performanceScore(metrics.NavigationMS, metrics.SessionMS)
	return metrics, nil
}

// performanceScore maps latency to a 0-100 score: 100 is instant, 0 is a
// navigation past 3s or session API past 2s.
func performanceScore(navigationMS, sessionMS float64) float64 {
	navPenalty := clamp(navigationMS/3000, 0, 1) * 60
	apiPenalty := clamp(sessionMS/2000, 0, 1) * 40
	return round2(clamp(100-navPenalty-apiPenalty, 0, 100))
}

func classifyEnvironment(metrics EnvironmentMetrics, isCI bool, err error) TimingProfile {
	if err != nil {
		profile, _ := ProfileByName("robust")
		return profile
	}
	name := ""
	if isCI {
		switch {
		case metrics.PerformanceScore >= 80:
			name = "ci-fast"
		case metrics.PerformanceScore >= 50:
			name = "ci-standard"
		default:
			name = "ci-slow"
		}
	} else {
		switch {
		case metrics.NavigationMS < 200 && metrics.SessionMS < 150:
			name = "fast-local"
		case metrics.NavigationMS < 800 && metrics.SessionMS < 500:
			name = "local-dev"
		default:
			name = "robust"
		}
	}
	profile, _ := ProfileByName(name)
	return profile
}
