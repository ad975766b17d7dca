// Package notify decides who hears about a report change and hands the
// events to the live registry and the out-of-band alerters.
package notify

import (
	"log"

	"nagarpalika/backend/internal/config"
	"nagarpalika/backend/internal/localization"
	"nagarpalika/backend/internal/models"
)

// GlobalGroup mirrors hub.GlobalGroup; the router does not import the hub.
const GlobalGroup = "global"

const (
	UrgencyCritical = "critical"
	UrgencyInfo     = "info"
)

// Registry is the subset of the connection registry the router needs.
type Registry interface {
	Publish(group string, evt models.Event) int
}

// Delivery records how many clients an event reached.
type Delivery struct {
	Global     int
	Department string
	Alerted    int
}

// Router maps report events onto registry groups.
type Router struct {
	Registry  Registry
	Directory *config.Directory
	Localizer *localization.Localizer
	Language  string
}

func NewRouter(reg Registry, dir *config.Directory, loc *localization.Localizer, lang string) *Router {
	if loc == nil {
		loc = localization.NewDefaultLocalizer()
	}
	if lang == "" {
		lang = localization.DefaultLanguage
	}
	return &Router{Registry: reg, Directory: dir, Localizer: loc, Language: lang}
}

// Urgency frames an alert from the threat tier, never the raw score.
func Urgency(level models.ThreatLevel) string {
	if level.Tier() >= models.ThreatHigh.Tier() {
		return UrgencyCritical
	}
	return UrgencyInfo
}

// ReportCreated publishes new_report to everyone and, when the report names a
// known department, a department_alert to that department only.
func (r *Router) ReportCreated(report *models.Report) Delivery {
	d := Delivery{
		Global: r.Registry.Publish(GlobalGroup, models.Event{Name: models.EventNewReport, Data: report}),
	}

	code := report.TargetDepartment
	if code == "" {
		return d
	}
	if !r.Directory.Known(code) {
		log.Printf("WARN: Report %s targets unknown department %q, skipping department alert", report.ID, code)
		return d
	}

	urgency := Urgency(report.AIAnalysis.ThreatLevel)
	d.Department = code
	d.Alerted = r.Registry.Publish(code, models.Event{
		Name: models.EventDepartmentAlert,
		Data: models.DepartmentAlert{
			Message:    r.Localizer.GetString(r.Language, "alert_"+urgency),
			Urgency:    urgency,
			Department: code,
			Report:     report,
		},
	})
	return d
}

// ReportStatusChanged publishes status_updated to the global group only.
func (r *Router) ReportStatusChanged(report *models.Report) int {
	return r.Registry.Publish(GlobalGroup, models.Event{Name: models.EventStatusUpdated, Data: report})
}
