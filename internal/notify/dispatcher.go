package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"nagarpalika/backend/internal/models"
)

// Alerter is an out-of-band channel (mail worker, chat bot) told about new reports.
type Alerter interface {
	Name() string
	Alert(ctx context.Context, report *models.Report) error
}

// Dispatcher runs alerters in the background. A failing or panicking alerter
// is logged and never reaches the caller.
type Dispatcher struct {
	alerters []Alerter
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewDispatcher(timeout time.Duration, alerters ...Alerter) *Dispatcher {
	return &Dispatcher{alerters: alerters, timeout: timeout}
}

// Dispatch returns immediately. Each alerter gets its own copy of report.
func (d *Dispatcher) Dispatch(report *models.Report) {
	if d == nil {
		return
	}
	for _, a := range d.alerters {
		d.wg.Add(1)
		go d.run(a, report.Clone())
	}
}

// Wait blocks until every dispatched alert has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) run(a Alerter, report *models.Report) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Alerter %s panicked for report %s: %v", a.Name(), report.ID, r)
		}
	}()

	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := a.Alert(ctx, report); err != nil {
		log.Printf("ERROR: Alerter %s failed for report %s: %v", a.Name(), report.ID, err)
		return
	}
	log.Printf("INFO: Alerter %s notified for report %s", a.Name(), report.ID)
}
