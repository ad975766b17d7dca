package config

import "time"

const (
	// Severity bounds
	MinSeverity = 0
	MaxSeverity = 10

	// Keyword classifier
	DefaultSeverity   = 3
	KeywordConfidence = 85

	// Threat tiers, lower bound of each band
	MediumThreatFrom   = 4
	HighThreatFrom     = 6
	CriticalThreatFrom = 8

	// Default classification budget for the OpenAI classifier, below the
	// server's 30s write timeout
	OpenAIClassifyTimeout = 20 * time.Second

	// Alerting
	SideChannelTimeout = 15 * time.Second
)

// KeywordRule maps a set of keywords to a severity score.
// Rules are evaluated in order and the first rule with a matching keyword wins.
type KeywordRule struct {
	Keywords []string
	Severity int
}

var KeywordRules = []KeywordRule{
	{Keywords: []string{"fire", "explosion", "blood", "accident"}, Severity: 9},
	{Keywords: []string{"pothole", "crack"}, Severity: 4},
	{Keywords: []string{"garbage", "litter"}, Severity: 2},
	{Keywords: []string{"water", "leak", "flood"}, Severity: 6},
}
