package models

import "time"

// CallKind names the remote service a CallRecord describes.
type CallKind string

const (
	CallCompletion  CallKind = "completion"
	CallTranslation CallKind = "translation"
	CallWeather     CallKind = "weather"
	CallImages      CallKind = "images"
)

// CallRecord is one audited remote call boundary.
type CallRecord struct {
	ID               int64     `json:"id"`
	RequestID        string    `json:"request_id"`
	Kind             CallKind  `json:"kind"`
	Provider         string    `json:"provider,omitempty"`
	Model            string    `json:"model,omitempty"`
	Fingerprint      string    `json:"fingerprint,omitempty"`
	Outcome          string    `json:"outcome"`
	Attempts         int       `json:"attempts"`
	Error            string    `json:"error,omitempty"`
	Prompt           string    `json:"prompt,omitempty"`
	Response         string    `json:"response,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuditConfig controls the audit logging subsystem.
type AuditConfig struct {
	Enabled       bool     `yaml:"enabled"`
	DBPath        string   `yaml:"db_path"`
	RetentionDays int      `yaml:"retention_days"`
	Include       []string `yaml:"include"` // "prompts", "responses"
	ExcludeKinds  []string `yaml:"exclude_kinds"`
	MaxBodySize   int      `yaml:"max_body_size"` // bytes
}

// AuditQueryOpts specifies filters for querying call records.
type AuditQueryOpts struct {
	RequestID string
	Kind      CallKind
	Model     string
	Outcome   string
	Since     time.Time
	Limit     int
}

// AuditStat holds aggregate counts for a kind/outcome/day combination.
type AuditStat struct {
	Kind    string
	Outcome string
	Day     string
	Count   int
}
