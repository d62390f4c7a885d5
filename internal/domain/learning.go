package domain

import "time"

// LearningPattern is a reusable resolution for a recurring
// (intent, missing-fields) ambiguity (§3, §4.3). Uniqueness is by
// (Intent, sorted MissingFields).
type LearningPattern struct {
	PatternID     string
	Intent        Intent
	MissingFields []string
	Resolution    map[string]string
	Confidence    float64
	UsageCount    int
	LastUsed      *time.Time
	Source        string
	CreatedAt     time.Time
}

// GraphFixPattern records an auto-repair applied by C8 so future
// builds can prioritise the same fix (§4.8).
type GraphFixPattern struct {
	ID            int64
	RuleName      string
	TriggerAction string
	FixAction     string
	UsageCount    int
	CreatedAt     time.Time
}
