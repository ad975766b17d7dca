package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Status is the lifecycle state of a report.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
	StatusRejected   Status = "rejected"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// Rank orders statuses for the monotonic transition rule.
// resolved and rejected share the terminal rank.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusResolved, StatusRejected:
		return 2
	}
	return -1
}

// Terminal reports whether no further work is expected on the report.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// CanTransition reports whether a report in status s may move to next.
// Moving to an equal or later rank is allowed, moving back is not.
func (s Status) CanTransition(next Status) bool {
	return next.Valid() && next.Rank() >= s.Rank()
}

// ThreatLevel is the coarse urgency tier derived from the severity score.
type ThreatLevel string

const (
	ThreatUnknown  ThreatLevel = "Unknown"
	ThreatLow      ThreatLevel = "Low"
	ThreatMedium   ThreatLevel = "Medium"
	ThreatHigh     ThreatLevel = "High"
	ThreatCritical ThreatLevel = "Critical"
)

// Tier orders threat levels. Unknown sorts below Low.
func (t ThreatLevel) Tier() int {
	switch t {
	case ThreatLow:
		return 1
	case ThreatMedium:
		return 2
	case ThreatHigh:
		return 3
	case ThreatCritical:
		return 4
	}
	return 0
}

// ParseThreatLevel accepts any letter case ("high", "HIGH").
func ParseThreatLevel(s string) (ThreatLevel, bool) {
	for _, t := range []ThreatLevel{ThreatLow, ThreatMedium, ThreatHigh, ThreatCritical, ThreatUnknown} {
		if strings.EqualFold(s, string(t)) {
			return t, true
		}
	}
	return ThreatUnknown, false
}

// Coordinates is an optional latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Classification is the severity annotation attached to a report.
// It is stored as embedded columns prefixed with "ai_".
type Classification struct {
	ThreatLevel      ThreatLevel    `gorm:"type:text;default:Unknown" json:"threatLevel"`
	SeverityScore    int            `gorm:"default:0" json:"severityScore"`
	DetectedObjects  pq.StringArray `gorm:"type:text[]" json:"detectedObjects"`
	Confidence       float64        `gorm:"default:0" json:"confidence"`
	IsDuplicate      bool           `gorm:"default:false" json:"isDuplicate"`
	FlaggedForReview bool           `gorm:"default:false" json:"flaggedForReview"`
}

// UnknownClassification is the value a report carries before classification succeeds.
func UnknownClassification() Classification {
	return Classification{ThreatLevel: ThreatUnknown, DetectedObjects: pq.StringArray{}}
}

// Report is a single citizen-submitted civic issue.
type Report struct {
	ID               string         `gorm:"primaryKey;type:text" json:"_id"`
	UserID           string         `gorm:"type:text;index" json:"user,omitempty"`
	Title            string         `gorm:"type:text;not null" json:"title"`
	Description      string         `gorm:"type:text;not null" json:"description"`
	Category         string         `gorm:"type:text" json:"category"`
	Location         string         `gorm:"type:text;not null" json:"location"`
	Coordinates      Coordinates    `gorm:"embedded;embeddedPrefix:coord_" json:"coordinates"`
	ImageURL         string         `gorm:"type:text" json:"imageUrl"`
	TargetDepartment string         `gorm:"type:text;index" json:"targetDepartment"`
	Status           Status         `gorm:"type:text;not null;default:pending;index" json:"status"`
	Upvotes          int            `gorm:"default:0" json:"upvotes"`
	AIAnalysis       Classification `gorm:"embedded;embeddedPrefix:ai_" json:"aiAnalysis"`
	AIProcessedAt    *time.Time     `json:"aiProcessedAt,omitempty"`
	CreatedAt        time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// BeforeCreate is a GORM hook that assigns a UUID when the ID is empty.
func (r *Report) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// Classified reports whether classification has completed for this report.
func (r *Report) Classified() bool {
	return r.AIProcessedAt != nil
}

// Clone returns a deep copy so callers can hand reports across goroutines.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	c := *r
	if r.AIAnalysis.DetectedObjects != nil {
		c.AIAnalysis.DetectedObjects = append(pq.StringArray{}, r.AIAnalysis.DetectedObjects...)
	}
	if r.AIProcessedAt != nil {
		t := *r.AIProcessedAt
		c.AIProcessedAt = &t
	}
	return &c
}

// ReportPatch is a partial update applied atomically by the store.
// Classification and ClassifiedAt travel together.
type ReportPatch struct {
	Status         *Status
	Classification *Classification
	ClassifiedAt   *time.Time
}

// ReportFilter narrows a report listing. Empty fields match everything.
type ReportFilter struct {
	Department string
	Status     Status
	UserID     string
}
