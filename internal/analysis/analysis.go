// Package analysis provides the report classifiers.
// A classifier turns report content into a severity score and threat level,
// and never reads prior report state.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"nagarpalika/backend/internal/config"
	"nagarpalika/backend/internal/models"

	"github.com/lib/pq"
)

// Input is the content a classifier may look at.
type Input struct {
	Title       string
	Description string
	ImageRef    string
}

// Classifier annotates report content. Implementations return either a complete
// Classification or an error wrapping models.ErrClassificationFailed.
type Classifier interface {
	Analyze(ctx context.Context, in Input) (models.Classification, error)
}

// ThreatForSeverity maps a 0-10 severity onto a threat tier.
// The mapping is monotonic: a higher severity never yields a lower tier.
func ThreatForSeverity(severity int) models.ThreatLevel {
	severity = ClampSeverity(severity)
	switch {
	case severity >= config.CriticalThreatFrom:
		return models.ThreatCritical
	case severity >= config.HighThreatFrom:
		return models.ThreatHigh
	case severity >= config.MediumThreatFrom:
		return models.ThreatMedium
	default:
		return models.ThreatLow
	}
}

// ClampSeverity bounds severity to [0,10].
func ClampSeverity(severity int) int {
	if severity < config.MinSeverity {
		return config.MinSeverity
	}
	if severity > config.MaxSeverity {
		return config.MaxSeverity
	}
	return severity
}

// KeywordClassifier scores reports by the first matching keyword rule.
type KeywordClassifier struct {
	Rules []config.KeywordRule
}

// NewKeywordClassifier returns a classifier using config.KeywordRules.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{Rules: config.KeywordRules}
}

// Analyze implements Classifier.
func (k *KeywordClassifier) Analyze(ctx context.Context, in Input) (models.Classification, error) {
	if err := ctx.Err(); err != nil {
		return models.Classification{}, fmt.Errorf("%w: %v", models.ErrClassificationFailed, err)
	}

	text := strings.ToLower(in.Title + " " + in.Description)
	if strings.TrimSpace(text) == "" {
		return models.Classification{}, fmt.Errorf("%w: empty content", models.ErrClassificationFailed)
	}

	severity := config.DefaultSeverity
	detected := pq.StringArray{}
	for _, rule := range k.Rules {
		matched := false
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				detected = append(detected, kw)
				matched = true
			}
		}
		if matched {
			severity = rule.Severity
			break
		}
	}

	severity = ClampSeverity(severity)
	return models.Classification{
		ThreatLevel:      ThreatForSeverity(severity),
		SeverityScore:    severity,
		DetectedObjects:  detected,
		Confidence:       config.KeywordConfidence,
		IsDuplicate:      false,
		FlaggedForReview: false,
	}, nil
}

// FallbackClassifier tries Primary and falls back to Secondary when it fails.
type FallbackClassifier struct {
	Primary   Classifier
	Secondary Classifier
}

// Analyze implements Classifier.
func (f *FallbackClassifier) Analyze(ctx context.Context, in Input) (models.Classification, error) {
	c, err := f.Primary.Analyze(ctx, in)
	if err == nil {
		return c, nil
	}
	if ctx.Err() != nil {
		return models.Classification{}, err
	}
	log.Printf("WARN: primary classifier failed, using fallback: %v", err)
	return f.Secondary.Analyze(ctx, in)
}

// IsFailure reports whether err came from a classifier.
func IsFailure(err error) bool {
	return errors.Is(err, models.ErrClassificationFailed)
}
