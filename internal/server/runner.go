package server

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"authwatch/internal/storagestate"
	"authwatch/internal/target"
	"authwatch/internal/verify"
)

// warnConfidenceFloor marks a completed run as warn when the consensus is too
// weak to act on even though no expectation was violated.
const warnConfidenceFloor = 0.5

type RunManager struct {
	cfg   ServerConfig
	store Store
	guard *TargetGuard
	obs   *Observability
	queue chan queuedRun
	wg    sync.WaitGroup

	quickLimit *ipRateLimiter

	// One profiler per target so latency measurements never bleed between
	// environments.
	profilerMu sync.Mutex
	profilers  map[string]*verify.Profiler
}

type RunnerService interface {
	CreateAdminCheck(request CheckRequest, principal Principal, source string) (RunMeta, error)
	CreateQuickCheck(request QuickCheckRequest, ipHash, uaHash string) (RunMeta, error)
}

type queuedRun struct {
	RunID       string
	Request     CheckRequest
	Creator     Principal
	CreatorType string
	Source      string
}

func NewRunManager(cfg ServerConfig, store Store, guard *TargetGuard, obs *Observability) *RunManager {
	maxParallel := cfg.Runs.MaxParallelRuns
	if maxParallel <= 0 {
		maxParallel = 2
	}
	manager := &RunManager{
		cfg:        cfg,
		store:      store,
		guard:      guard,
		obs:        obs,
		queue:      make(chan queuedRun, maxParallel*8),
		quickLimit: newIPRateLimiter(cfg.Limits.QuickCheckRPM),
		profilers:  map[string]*verify.Profiler{},
	}
	for i := 0; i < maxParallel; i++ {
		manager.wg.Add(1)
		go func() {
			defer manager.wg.Done()
			manager.worker()
		}()
	}
	return manager
}

func (m *RunManager) Shutdown() {
	close(m.queue)
	m.wg.Wait()
}

func (m *RunManager) CreateAdminCheck(request CheckRequest, principal Principal, source string) (RunMeta, error) {
	request.Target = strings.ToLower(strings.TrimSpace(request.Target))
	if request.Target == "" {
		return RunMeta{}, errors.New("target is required")
	}
	if _, ok := m.cfg.FindTarget(request.Target); !ok {
		return RunMeta{}, fmt.Errorf("unknown target %q", request.Target)
	}
	if request.TimeoutSec <= 0 {
		request.TimeoutSec = m.cfg.Runs.DefaultTimeoutSec
	}
	if len(request.Methods) == 0 {
		request.Methods = verify.DefaultMethodOrder()
	}
	runID, err := randomID("run")
	if err != nil {
		return RunMeta{}, err
	}
	meta := RunMeta{
		RunID:       runID,
		Status:      "queued",
		Source:      source,
		CreatorType: "admin",
		CreatorSub:  principal.Subject,
		Request:     request,
		CreatedAt:   nowRFC3339(),
	}
	if err := m.store.CreateRun(meta); err != nil {
		return RunMeta{}, err
	}
	_, _ = m.store.AppendRunEvent(runID, "queue", "check queued", map[string]any{
		"target": request.Target,
		"source": source,
	})
	_ = m.store.AppendAudit(AuditEvent{
		Timestamp: nowRFC3339(),
		RunID:     runID,
		ActorType: "admin",
		ActorSub:  principal.Subject,
		Action:    "check.create",
		Result:    "queued",
	})
	m.queue <- queuedRun{
		RunID:       runID,
		Request:     request,
		Creator:     principal,
		CreatorType: "admin",
		Source:      source,
	}
	return meta, nil
}

func (m *RunManager) CreateQuickCheck(request QuickCheckRequest, ipHash, uaHash string) (RunMeta, error) {
	if !m.quickLimit.Allow(ipHash) {
		if m.obs != nil {
			m.obs.MarkRateLimited(context.Background(), "quick_check_rate_limit")
		}
		_ = m.store.AppendAudit(AuditEvent{
			Timestamp: nowRFC3339(),
			ActorType: "user",
			Action:    "quick_check.reject",
			Result:    "rate_limited",
			IPHash:    ipHash,
			UAHash:    uaHash,
		})
		return RunMeta{}, errors.New("quick check rate limit reached")
	}
	checkRequest, err := quickCheckToRequest(request, m.cfg)
	if err != nil {
		return RunMeta{}, err
	}
	runID, err := randomID("run")
	if err != nil {
		return RunMeta{}, err
	}
	meta := RunMeta{
		RunID:       runID,
		Status:      "queued",
		Source:      "user.quick_check",
		CreatorType: "user",
		Request:     checkRequest,
		CreatedAt:   nowRFC3339(),
	}
	if err := m.store.CreateRun(meta); err != nil {
		return RunMeta{}, err
	}
	_, _ = m.store.AppendRunEvent(runID, "queue", "quick check queued", map[string]any{
		"target": checkRequest.Target,
	})
	_ = m.store.AppendAudit(AuditEvent{
		Timestamp: nowRFC3339(),
		RunID:     runID,
		ActorType: "user",
		Action:    "quick_check.create",
		Result:    "queued",
		IPHash:    ipHash,
		UAHash:    uaHash,
		Detail:    checkRequest.Target,
	})
	m.queue <- queuedRun{
		RunID:       runID,
		Request:     checkRequest,
		CreatorType: "user",
		Source:      "user.quick_check",
	}
	return meta, nil
}

func (m *RunManager) worker() {
	for queued := range m.queue {
		m.executeRun(queued)
	}
}

func (m *RunManager) executeRun(queued queuedRun) {
	startedAt := nowRFC3339()
	_, _ = m.store.UpdateRun(queued.RunID, func(meta *RunMeta) {
		meta.Status = "running"
		meta.StartedAt = startedAt
	})
	_, _ = m.store.AppendRunEvent(queued.RunID, "start", "check started", nil)

	targetCfg, ok := m.cfg.FindTarget(queued.Request.Target)
	if !ok {
		m.failRun(queued.RunID, queued, "target no longer configured", nil)
		return
	}

	lease, err := m.guard.Acquire(targetCfg.Name)
	if err != nil {
		if m.obs != nil {
			m.obs.MarkRateLimited(context.Background(), "target_guard")
		}
		m.failRun(queued.RunID, queued, "target guard rejected run: "+err.Error(), nil)
		return
	}
	defer m.guard.Release(lease)

	timeout := time.Duration(queued.Request.TimeoutSec) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := target.NewClient(target.Config{
		BaseURL:       targetCfg.BaseURL,
		SessionPath:   targetCfg.SessionPath,
		ProtectedPath: targetCfg.ProtectedPath,
		CookieName:    targetCfg.CookieName,
		UserAgent:     "authwatch/run " + queued.RunID,
		Timeout:       timeout,
	})

	verifyCfg := verify.Config{
		CookieName:          targetCfg.CookieName,
		ConfidenceThreshold: queued.Request.ConfidenceThreshold,
		Debug:               queued.Request.Debug,
	}
	if targetCfg.StorageStatePath != "" {
		state, loadErr := storagestate.Load(targetCfg.StorageStatePath)
		if loadErr != nil {
			_, _ = m.store.AppendRunEvent(queued.RunID, "warning", "storage state unavailable", map[string]any{
				"error": loadErr.Error(),
			})
		} else {
			verifyCfg.StorageState = state
			if cookie, found := state.FindCookie(client.CookieName()); found {
				client.SetSessionCookie(cookie.ToSessionCookie())
			}
		}
	}

	profile := m.resolveProfile(ctx, queued.Request.Profile, targetCfg.Name, client)
	_, _ = m.store.AppendRunEvent(queued.RunID, "profile", "timing profile selected", map[string]any{
		"profile":            profile.Name,
		"timeout_multiplier": profile.TimeoutMultiplier,
	})

	methods := queued.Request.Methods
	report := verify.Run(ctx, client, verifyCfg, methods)
	for _, result := range report.Results {
		_, _ = m.store.AppendRunEvent(queued.RunID, "method_result", string(result.Method)+" finished", map[string]any{
			"method":           string(result.Method),
			"authenticated":    result.IsAuthenticated,
			"confidence":       result.Confidence,
			"response_time_ms": result.ResponseTimeMS,
			"retry_attempts":   result.RetryAttempts,
		})
		if m.obs != nil {
			m.obs.MarkMethod(ctx, string(result.Method), result.ResponseTimeMS)
		}
	}
	if report.Snapshot != nil {
		_, _ = m.store.AppendRunEvent(queued.RunID, "snapshot", "debug snapshot captured", map[string]any{
			"cookie_present":  report.Snapshot.CookiePresent,
			"session_present": report.Snapshot.SessionPresent(),
			"storage_keys":    len(report.Snapshot.StorageKeys),
		})
	}

	snapshot := ConsensusSnapshot{
		Authenticated:     report.Outcome.IsAuthenticated,
		WeightedScore:     report.Outcome.WeightedScore,
		OverallConfidence: report.Outcome.OverallConfidence,
		Disagreement:      report.Outcome.Disagreement(),
		TimingProfile:     profile.Name,
	}
	status := "pass"
	runError := ""
	if queued.Request.ExpectAuthenticated != nil && *queued.Request.ExpectAuthenticated != report.Outcome.IsAuthenticated {
		snapshot.ExpectationMismatch = true
		status = "fail"
		runError = verify.Expect(report.Outcome, *queued.Request.ExpectAuthenticated).Error()
	} else if report.Outcome.OverallConfidence < warnConfidenceFloor || snapshot.Disagreement {
		status = "warn"
	}
	if snapshot.Disagreement && m.obs != nil {
		m.obs.MarkDisagreement(ctx, targetCfg.Name)
	}

	_, _ = m.store.UpdateRun(queued.RunID, func(meta *RunMeta) {
		meta.Status = status
		meta.FinishedAt = nowRFC3339()
		meta.Report = &report
		meta.Consensus = snapshot
		meta.Error = runError
	})
	_, _ = m.store.AppendRunEvent(queued.RunID, "completed", "check completed", map[string]any{
		"status":        status,
		"authenticated": snapshot.Authenticated,
		"confidence":    snapshot.OverallConfidence,
	})
	_ = m.store.AppendAudit(AuditEvent{
		Timestamp: nowRFC3339(),
		RunID:     queued.RunID,
		ActorType: queued.CreatorType,
		ActorSub:  queued.Creator.Subject,
		Action:    "check.completed",
		Result:    status,
		Detail:    fmt.Sprintf("target=%s authenticated=%t", targetCfg.Name, snapshot.Authenticated),
	})
	if m.obs != nil {
		m.obs.MarkRun(ctx, status)
	}
	slog.Info("check completed",
		"run_id", queued.RunID,
		"target", targetCfg.Name,
		"status", status,
		"authenticated", snapshot.Authenticated,
		"confidence", snapshot.OverallConfidence,
	)
}

func (m *RunManager) failRun(runID string, queued queuedRun, message string, data map[string]any) {
	_, _ = m.store.UpdateRun(runID, func(meta *RunMeta) {
		meta.Status = "fail"
		meta.Error = message
		meta.FinishedAt = nowRFC3339()
	})
	_, _ = m.store.AppendRunEvent(runID, "error", message, data)
	_ = m.store.AppendAudit(AuditEvent{
		Timestamp: nowRFC3339(),
		RunID:     runID,
		ActorType: queued.CreatorType,
		ActorSub:  queued.Creator.Subject,
		Action:    "check.completed",
		Result:    "fail",
		Detail:    message,
	})
	if m.obs != nil {
		m.obs.MarkRun(context.Background(), "fail")
	}
}

// resolveProfile honors an explicit profile name; otherwise it measures the
// target through its cached per-target profiler.
func (m *RunManager) resolveProfile(ctx context.Context, requested, targetName string, client *target.Client) verify.TimingProfile {
	if requested != "" {
		if profile, ok := verify.ProfileByName(strings.ToLower(strings.TrimSpace(requested))); ok {
			return profile
		}
	}
	m.profilerMu.Lock()
	profiler, ok := m.profilers[targetName]
	if !ok {
		profiler = verify.NewProfiler()
		m.profilers[targetName] = profiler
	}
	m.profilerMu.Unlock()
	return profiler.Profile(ctx, client)
}

func quickCheckToRequest(input QuickCheckRequest, cfg ServerConfig) (CheckRequest, error) {
	name := strings.ToLower(strings.TrimSpace(input.Target))
	if name == "" {
		return CheckRequest{}, errors.New("target is required")
	}
	if _, ok := cfg.FindTarget(name); !ok {
		return CheckRequest{}, fmt.Errorf("unknown target %q", name)
	}
	return CheckRequest{
		Target:     name,
		Methods:    verify.ResolveMethodSelection(input.Methods),
		TimeoutSec: cfg.Runs.DefaultTimeoutSec,
	}, nil
}

func randomID(prefix string) (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + "_" + hex.EncodeToString(b), nil
}

type ipRateLimiter struct {
	mu      sync.Mutex
	rpm     int
	records map[string][]time.Time
}

func newIPRateLimiter(rpm int) *ipRateLimiter {
	if rpm <= 0 {
		rpm = 6
	}
	return &ipRateLimiter{
		rpm:     rpm,
		records: map[string][]time.Time{},
	}
}

func (l *ipRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if strings.TrimSpace(key) == "" {
		key = "unknown"
	}
	now := time.Now()
	cutoff := now.Add(-1 * time.Minute)
	items := l.records[key]
	items = filterRecentTime(items, cutoff)
	if len(items) >= l.rpm {
		l.records[key] = items
		return false
	}
	items = append(items, now)
	l.records[key] = items
	return true
}

func hashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}
