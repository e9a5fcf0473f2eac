package server

import (
	"time"

	"authwatch/internal/verify"
)

type Principal struct {
	Subject  string `json:"subject"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type CheckRequest struct {
	Target              string   `json:"target"`
	Methods             []string `json:"methods,omitempty"`
	ConfidenceThreshold float64  `json:"confidence_threshold,omitempty"`
	TimeoutSec          int      `json:"timeout_sec,omitempty"`
	ExpectAuthenticated *bool    `json:"expect_authenticated,omitempty"`
	Profile             string   `json:"profile,omitempty"`
	Debug               bool     `json:"debug,omitempty"`
}

type QuickCheckRequest struct {
	Target  string `json:"target"`
	Methods string `json:"methods,omitempty"`
}

type RunMeta struct {
	RunID       string            `json:"run_id"`
	Status      string            `json:"status"`
	CreatorType string            `json:"creator_type"`
	CreatorSub  string            `json:"creator_sub,omitempty"`
	Source      string            `json:"source"`
	Request     CheckRequest      `json:"request"`
	StartedAt   string            `json:"started_at,omitempty"`
	FinishedAt  string            `json:"finished_at,omitempty"`
	CreatedAt   string            `json:"created_at"`
	Error       string            `json:"error,omitempty"`
	Report      *verify.Report    `json:"report,omitempty"`
	Consensus   ConsensusSnapshot `json:"consensus"`
}

// ConsensusSnapshot is the flattened decision kept on the run row so list and
// overview queries never have to unpack the full report.
type ConsensusSnapshot struct {
	Authenticated       bool    `json:"authenticated"`
	WeightedScore       float64 `json:"weighted_score"`
	OverallConfidence   float64 `json:"overall_confidence"`
	Disagreement        bool    `json:"disagreement"`
	ExpectationMismatch bool    `json:"expectation_mismatch"`
	TimingProfile       string  `json:"timing_profile,omitempty"`
}

type AuditEvent struct {
	Timestamp string `json:"timestamp"`
	RunID     string `json:"run_id,omitempty"`
	ActorType string `json:"actor_type"`
	ActorSub  string `json:"actor_sub,omitempty"`
	Action    string `json:"action"`
	Result    string `json:"result"`
	IPHash    string `json:"ip_hash,omitempty"`
	UAHash    string `json:"ua_hash,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

type RunEvent struct {
	Seq       int64          `json:"seq"`
	Timestamp string         `json:"timestamp"`
	Stage     string         `json:"stage"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

type MetricsOverview struct {
	GeneratedAt       string  `json:"generated_at"`
	TotalRuns         int     `json:"total_runs"`
	RunningRuns       int     `json:"running_runs"`
	PassRuns          int     `json:"pass_runs"`
	WarnRuns          int     `json:"warn_runs"`
	FailRuns          int     `json:"fail_runs"`
	DisagreementRuns  int     `json:"disagreement_runs"`
	AverageDuration   int64   `json:"average_duration_ms"`
	AverageConfidence float64 `json:"average_confidence"`
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
