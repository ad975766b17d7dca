package notify_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"nagarpalika/backend/internal/models"
	"nagarpalika/backend/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockAlerter struct {
	mock.Mock
}

func (m *MockAlerter) Name() string { return "mock" }

func (m *MockAlerter) Alert(ctx context.Context, report *models.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

type panicAlerter struct{ calls int32 }

func (p *panicAlerter) Name() string { return "panic" }

func (p *panicAlerter) Alert(ctx context.Context, report *models.Report) error {
	atomic.AddInt32(&p.calls, 1)
	panic("boom")
}

func TestDispatcher_RunsEveryAlerter(t *testing.T) {
	ok := new(MockAlerter)
	failing := new(MockAlerter)
	ok.On("Alert", mock.Anything, mock.MatchedBy(func(r *models.Report) bool { return r.ID == "r1" })).Return(nil).Once()
	failing.On("Alert", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()
	p := &panicAlerter{}

	d := notify.NewDispatcher(time.Second, ok, failing, p)
	d.Dispatch(&models.Report{ID: "r1"})
	d.Wait()

	ok.AssertExpectations(t)
	failing.AssertExpectations(t)
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls))
}

func TestDispatcher_AlertersGetCopies(t *testing.T) {
	a := new(MockAlerter)
	a.On("Alert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Report).Title = "changed by alerter"
	}).Return(nil)

	report := &models.Report{ID: "r1", Title: "original"}
	d := notify.NewDispatcher(0, a)
	d.Dispatch(report)
	d.Wait()

	assert.Equal(t, "original", report.Title)
}

func TestDispatcher_AppliesTimeout(t *testing.T) {
	a := new(MockAlerter)
	a.On("Alert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
	}).Return(nil)

	d := notify.NewDispatcher(50*time.Millisecond, a)
	d.Dispatch(&models.Report{ID: "r"})
	d.Wait()
	a.AssertExpectations(t)
}

func TestDispatcher_NilIsNoop(t *testing.T) {
	var d *notify.Dispatcher
	assert.NotPanics(t, func() {
		d.Dispatch(&models.Report{})
		d.Wait()
	})
}
