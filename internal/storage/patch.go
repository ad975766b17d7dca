package storage

import (
	"fmt"
	"strings"
	"time"

	"nagarpalika/backend/internal/models"

	"github.com/lib/pq"
)

const defaultCategory = "General"

// prepareNew validates required content and resets the fields the store owns.
func prepareNew(r *models.Report) error {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Location = strings.TrimSpace(r.Location)
	r.TargetDepartment = strings.TrimSpace(r.TargetDepartment)
	r.Category = strings.TrimSpace(r.Category)

	switch {
	case r.Title == "":
		return models.NewValidationError("title", "Please add a title")
	case r.Description == "":
		return models.NewValidationError("description", "Please add a description")
	case r.Location == "":
		return models.NewValidationError("location", "Please add a location")
	}

	if r.Category == "" {
		r.Category = defaultCategory
	}
	r.Status = models.StatusPending
	r.AIAnalysis = models.UnknownClassification()
	r.AIProcessedAt = nil
	r.Upvotes = 0
	return nil
}

// applyPatch validates patch against current and applies it in place.
// Nothing is modified when an error is returned.
func applyPatch(current *models.Report, patch models.ReportPatch, now time.Time) error {
	if patch.Status != nil {
		next := *patch.Status
		if !next.Valid() {
			return models.NewValidationError("status", fmt.Sprintf("%q is not a valid status", next))
		}
		if !current.Status.CanTransition(next) {
			return &models.ValidationError{
				Field:  "status",
				Reason: fmt.Sprintf("cannot move from %s to %s", current.Status, next),
				Err:    models.ErrInvalidTransition,
			}
		}
	}

	if patch.Classification != nil {
		c := patch.Classification
		if c.ThreatLevel.Tier() == 0 {
			return models.NewValidationError("aiAnalysis.threatLevel", fmt.Sprintf("%q is not a valid threat level", c.ThreatLevel))
		}
		if c.SeverityScore < 0 || c.SeverityScore > 10 {
			return models.NewValidationError("aiAnalysis.severityScore", "must be between 0 and 10")
		}
	}

	if patch.Status != nil {
		current.Status = *patch.Status
	}
	if patch.Classification != nil {
		c := *patch.Classification
		c.DetectedObjects = append(pq.StringArray{}, patch.Classification.DetectedObjects...)
		current.AIAnalysis = c
		// the completion time is set once; a retry refreshes the fields only
		if current.AIProcessedAt == nil {
			ts := now
			if patch.ClassifiedAt != nil {
				ts = *patch.ClassifiedAt
			}
			current.AIProcessedAt = &ts
		}
	}
	return nil
}
