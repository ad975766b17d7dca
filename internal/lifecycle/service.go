// Package lifecycle runs the create and status-update protocols for reports:
// persist, classify, then fan out.
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"nagarpalika/backend/internal/analysis"
	"nagarpalika/backend/internal/models"
	"nagarpalika/backend/internal/notify"
	"nagarpalika/backend/internal/storage"

	"github.com/google/uuid"
)

// Notifier fans report events out to subscribers.
type Notifier interface {
	ReportCreated(report *models.Report) notify.Delivery
	ReportStatusChanged(report *models.Report) int
}

// AlertDispatcher hands a report to the out-of-band alerters without waiting.
type AlertDispatcher interface {
	Dispatch(report *models.Report)
}

// NewReport is a submission as received from the gateway.
type NewReport struct {
	Title            string
	Description      string
	Location         string
	Category         string
	Coordinates      models.Coordinates
	TargetDepartment string
	ImageURL         string
}

// Service handles the business logic for report submissions and status changes.
type Service struct {
	Storage         storage.Storage
	Classifier      analysis.Classifier
	Router          Notifier
	Alerts          AlertDispatcher
	ClassifyTimeout time.Duration

	locks *keyedMutex
	now   func() time.Time
}

// NewService creates a new lifecycle service. alerts may be nil.
func NewService(s storage.Storage, c analysis.Classifier, r Notifier, alerts AlertDispatcher, classifyTimeout time.Duration) *Service {
	return &Service{
		Storage:         s,
		Classifier:      c,
		Router:          r,
		Alerts:          alerts,
		ClassifyTimeout: classifyTimeout,
		locks:           newKeyedMutex(),
		now:             time.Now,
	}
}

// CreateReport persists the submission, tries to classify it and publishes
// new_report. A classification failure leaves the report pending and
// unclassified; it is never returned to the caller.
func (s *Service) CreateReport(ctx context.Context, in NewReport, submitter *models.Identity) (*models.Report, error) {
	report := &models.Report{
		ID:               uuid.New().String(),
		Title:            in.Title,
		Description:      in.Description,
		Location:         in.Location,
		Category:         in.Category,
		Coordinates:      in.Coordinates,
		TargetDepartment: in.TargetDepartment,
		ImageURL:         in.ImageURL,
	}
	if submitter != nil {
		report.UserID = submitter.UserID
	}

	// held until the creation event is out, so status_updated for this id cannot overtake it
	unlock := s.locks.Lock(report.ID)
	defer unlock()

	if err := s.Storage.CreateReport(ctx, report); err != nil {
		return nil, err
	}
	log.Printf("INFO: Report %s created (department %q)", report.ID, report.TargetDepartment)

	// the submitter going away must not abandon a persisted report half way
	ctx = context.WithoutCancel(ctx)

	current := report
	if classified, err := s.classify(ctx, report); err != nil {
		log.Printf("WARN: Report %s left unclassified: %v", report.ID, err)
	} else {
		current = classified
	}

	d := s.Router.ReportCreated(current)
	log.Printf("INFO: Report %s published to %d global and %d department subscribers", current.ID, d.Global, d.Alerted)

	if s.Alerts != nil {
		s.Alerts.Dispatch(current)
	}
	return current, nil
}

// UpdateStatus moves a report to status and publishes status_updated.
func (s *Service) UpdateStatus(ctx context.Context, id string, status models.Status) (*models.Report, error) {
	status = models.Status(strings.TrimSpace(string(status)))
	if !status.Valid() {
		return nil, models.NewValidationError("status", fmt.Sprintf("%q is not a valid status", status))
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	updated, err := s.Storage.UpdateReport(ctx, id, models.ReportPatch{Status: &status})
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: Report %s status set to %s", id, updated.Status)

	s.Router.ReportStatusChanged(updated)
	return updated, nil
}

// Reclassify runs the classifier again for a stored report and overwrites its
// classification. Nothing is published.
func (s *Service) Reclassify(ctx context.Context, id string) (*models.Report, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	report, err := s.Storage.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.classify(ctx, report)
}

// GetReport returns one report.
func (s *Service) GetReport(ctx context.Context, id string) (*models.Report, error) {
	return s.Storage.GetReport(ctx, id)
}

// ListReports returns reports newest first.
func (s *Service) ListReports(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	return s.Storage.ListReports(ctx, filter)
}

type classifyResult struct {
	classification models.Classification
	err            error
}

// classify runs the classifier under ClassifyTimeout and stores the result in
// one atomic update.
func (s *Service) classify(ctx context.Context, report *models.Report) (*models.Report, error) {
	if s.Classifier == nil {
		return nil, fmt.Errorf("%w: no classifier configured", models.ErrClassificationFailed)
	}

	cctx := ctx
	if s.ClassifyTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, s.ClassifyTimeout)
		defer cancel()
	}

	in := analysis.Input{Title: report.Title, Description: report.Description, ImageRef: report.ImageURL}
	done := make(chan classifyResult, 1)
	go func() {
		c, err := s.Classifier.Analyze(cctx, in)
		done <- classifyResult{classification: c, err: err}
	}()

	var res classifyResult
	select {
	case res = <-done:
	case <-cctx.Done():
		return nil, fmt.Errorf("%w: %v", models.ErrClassificationFailed, cctx.Err())
	}
	if res.err != nil {
		return nil, res.err
	}

	at := s.now()
	updated, err := s.Storage.UpdateReport(ctx, report.ID, models.ReportPatch{
		Classification: &res.classification,
		ClassifiedAt:   &at,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: store rejected result: %v", models.ErrClassificationFailed, err)
	}
	log.Printf("INFO: Report %s classified %s (severity %d)", report.ID, updated.AIAnalysis.ThreatLevel, updated.AIAnalysis.SeverityScore)
	return updated, nil
}
