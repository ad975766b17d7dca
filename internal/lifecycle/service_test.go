package lifecycle_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"nagarpalika/backend/internal/analysis"
	"nagarpalika/backend/internal/config"
	"nagarpalika/backend/internal/lifecycle"
	"nagarpalika/backend/internal/models"
	"nagarpalika/backend/internal/notify"
	"nagarpalika/backend/internal/storage"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Analyze(ctx context.Context, in analysis.Input) (models.Classification, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(models.Classification), args.Error(1)
}

type published struct {
	Group string
	Event models.Event
}

type FakeRegistry struct {
	mu        sync.Mutex
	Published []published
}

func (f *FakeRegistry) Publish(group string, evt models.Event) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Published = append(f.Published, published{Group: group, Event: evt})
	return 1
}

func (f *FakeRegistry) Events() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.Published...)
}

type FakeDispatcher struct {
	mu      sync.Mutex
	Reports []*models.Report
}

func (f *FakeDispatcher) Dispatch(report *models.Report) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reports = append(f.Reports, report)
}

type fixture struct {
	svc      *lifecycle.Service
	store    *storage.MemoryStore
	registry *FakeRegistry
	alerts   *FakeDispatcher
}

func newFixture(c analysis.Classifier, timeout time.Duration) *fixture {
	f := &fixture{
		store:    storage.NewMemoryStore(),
		registry: &FakeRegistry{},
		alerts:   &FakeDispatcher{},
	}
	router := notify.NewRouter(f.registry, config.DefaultDirectory(), nil, "en")
	f.svc = lifecycle.NewService(f.store, c, router, f.alerts, timeout)
	return f
}

func potholeReport() lifecycle.NewReport {
	return lifecycle.NewReport{
		Title:            "Pothole on Main St",
		Description:      "large pothole causing accidents",
		Location:         "Main St",
		TargetDepartment: "KTM-W01",
	}
}

func TestCreateReport_PotholeScenario(t *testing.T) {
	f := newFixture(analysis.NewKeywordClassifier(), 0)
	before := time.Now()

	report, err := f.svc.CreateReport(context.Background(), potholeReport(), &models.Identity{UserID: "citizen-1", Role: models.RoleCitizen})
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, models.StatusPending, report.Status)
	assert.Equal(t, "citizen-1", report.UserID)
	assert.False(t, report.CreatedAt.After(time.Now()))
	assert.False(t, report.CreatedAt.Before(before.Add(-time.Second)))

	assert.Equal(t, models.ThreatCritical, report.AIAnalysis.ThreatLevel)
	assert.Equal(t, 9, report.AIAnalysis.SeverityScore)
	require.NotNil(t, report.AIProcessedAt)

	events := f.registry.Events()
	require.Len(t, events, 2)
	assert.Equal(t, notify.GlobalGroup, events[0].Group)
	assert.Equal(t, models.EventNewReport, events[0].Event.Name)
	assert.Equal(t, "KTM-W01", events[1].Group)
	assert.Equal(t, models.EventDepartmentAlert, events[1].Event.Name)

	published := events[0].Event.Data.(*models.Report)
	assert.Equal(t, report.ID, published.ID)
	assert.True(t, published.Classified(), "published state is post-classification")

	require.Len(t, f.alerts.Reports, 1)
	assert.Equal(t, report.ID, f.alerts.Reports[0].ID)

	stored, err := f.store.GetReport(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.AIAnalysis, stored.AIAnalysis)
}

func TestCreateReport_ClassificationFailureIsSwallowed(t *testing.T) {
	c := new(MockClassifier)
	c.On("Analyze", mock.Anything, mock.Anything).
		Return(models.Classification{}, models.ErrClassificationFailed)
	f := newFixture(c, 0)

	report, err := f.svc.CreateReport(context.Background(), potholeReport(), nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, report.Status)
	assert.False(t, report.Classified())
	assert.Equal(t, models.ThreatUnknown, report.AIAnalysis.ThreatLevel)
	assert.Equal(t, 0, report.AIAnalysis.SeverityScore)

	events := f.registry.Events()
	require.Len(t, events, 2, "notification still goes out with pre-classification state")
	alert := events[1].Event.Data.(models.DepartmentAlert)
	assert.Equal(t, notify.UrgencyInfo, alert.Urgency)
}

func TestCreateReport_ClassifierTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	c := new(MockClassifier)
	c.On("Analyze", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		<-release // ignores its context
	}).Return(models.Classification{}, nil)
	f := newFixture(c, 20*time.Millisecond)

	start := time.Now()
	report, err := f.svc.CreateReport(context.Background(), potholeReport(), nil)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, report.Classified())
	assert.Len(t, f.registry.Events(), 2)
}

func TestCreateReport_MalformedClassificationIsNotStored(t *testing.T) {
	c := new(MockClassifier)
	c.On("Analyze", mock.Anything, mock.Anything).Return(models.Classification{
		ThreatLevel: models.ThreatCritical, SeverityScore: 42, DetectedObjects: pq.StringArray{},
	}, nil)
	f := newFixture(c, 0)

	report, err := f.svc.CreateReport(context.Background(), potholeReport(), nil)
	require.NoError(t, err)
	assert.False(t, report.Classified())
	assert.Equal(t, 0, report.AIAnalysis.SeverityScore)
}

func TestCreateReport_ValidationError(t *testing.T) {
	c := new(MockClassifier)
	f := newFixture(c, 0)

	in := potholeReport()
	in.Location = ""
	_, err := f.svc.CreateReport(context.Background(), in, nil)

	assert.True(t, models.IsValidation(err))
	assert.Empty(t, f.registry.Events())
	assert.Empty(t, f.alerts.Reports)
	c.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)

	all, err := f.store.ListReports(context.Background(), models.ReportFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateReport_FanOutRules(t *testing.T) {
	tests := []struct {
		department string
		publishes  int
	}{
		{"", 1},
		{"XXX-W99", 1},
		{"PKR-W05", 2},
	}

	for _, tt := range tests {
		t.Run(tt.department, func(t *testing.T) {
			f := newFixture(analysis.NewKeywordClassifier(), 0)
			in := potholeReport()
			in.TargetDepartment = tt.department

			report, err := f.svc.CreateReport(context.Background(), in, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.department, report.TargetDepartment, "stored as given")
			assert.Len(t, f.registry.Events(), tt.publishes)
		})
	}
}

func TestCreateReport_SurvivesCancelledRequest(t *testing.T) {
	f := newFixture(analysis.NewKeywordClassifier(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	c := new(MockClassifier)
	c.On("Analyze", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		cancel() // client disconnects mid-protocol
	}).Return(models.Classification{ThreatLevel: models.ThreatLow, SeverityScore: 2, DetectedObjects: pq.StringArray{}}, nil)
	f.svc.Classifier = c

	report, err := f.svc.CreateReport(ctx, potholeReport(), nil)
	require.NoError(t, err)
	assert.True(t, report.Classified())
	assert.Len(t, f.registry.Events(), 2)
}

func TestUpdateStatus_ResolvedScenario(t *testing.T) {
	f := newFixture(analysis.NewKeywordClassifier(), 0)
	ctx := context.Background()
	report, err := f.svc.CreateReport(ctx, potholeReport(), nil)
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(ctx, report.ID, models.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, updated.Status)
	assert.True(t, updated.Classified(), "classification survives status changes")

	events := f.registry.Events()
	require.Len(t, events, 3)
	last := events[2]
	assert.Equal(t, notify.GlobalGroup, last.Group)
	assert.Equal(t, models.EventStatusUpdated, last.Event.Name)
	pub := last.Event.Data.(*models.Report)
	assert.Equal(t, report.ID, pub.ID)
	assert.Equal(t, models.StatusResolved, pub.Status)

	// no terminal lock: a resolved report still accepts a terminal status
	again, err := f.svc.UpdateStatus(ctx, report.ID, models.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, again.Status)

	_, err = f.svc.UpdateStatus(ctx, report.ID, models.StatusPending)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	f := newFixture(analysis.NewKeywordClassifier(), 0)
	ctx := context.Background()
	report, err := f.svc.CreateReport(ctx, potholeReport(), nil)
	require.NoError(t, err)
	before := len(f.registry.Events())

	_, err = f.svc.UpdateStatus(ctx, report.ID, "archived")
	assert.True(t, models.IsValidation(err))

	stored, err := f.store.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Len(t, f.registry.Events(), before, "nothing published")
}

func TestUpdateStatus_NotFound(t *testing.T) {
	f := newFixture(analysis.NewKeywordClassifier(), 0)
	_, err := f.svc.UpdateStatus(context.Background(), "missing", models.StatusResolved)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Empty(t, f.registry.Events())
}

func TestCreateThenUpdate_OrderIsPreserved(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c := new(MockClassifier)
	c.On("Analyze", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(models.Classification{ThreatLevel: models.ThreatHigh, SeverityScore: 6, DetectedObjects: pq.StringArray{}}, nil)
	f := newFixture(c, 0)
	ctx := context.Background()

	created := make(chan *models.Report, 1)
	go func() {
		r, err := f.svc.CreateReport(ctx, potholeReport(), nil)
		assert.NoError(t, err)
		created <- r
	}()
	<-started

	// the record is already visible to readers while classification runs
	all, err := f.store.ListReports(ctx, models.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	id := all[0].ID

	updated := make(chan error, 1)
	go func() {
		_, err := f.svc.UpdateStatus(ctx, id, models.StatusInProgress)
		updated <- err
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	<-created
	require.NoError(t, <-updated)

	events := f.registry.Events()
	require.Len(t, events, 3)
	assert.Equal(t, models.EventNewReport, events[0].Event.Name)
	assert.Equal(t, models.EventDepartmentAlert, events[1].Event.Name)
	assert.Equal(t, models.EventStatusUpdated, events[2].Event.Name)
}

func TestReclassify(t *testing.T) {
	c := new(MockClassifier)
	c.On("Analyze", mock.Anything, mock.Anything).
		Return(models.Classification{}, models.ErrClassificationFailed).Once()
	c.On("Analyze", mock.Anything, mock.Anything).
		Return(models.Classification{ThreatLevel: models.ThreatMedium, SeverityScore: 4, DetectedObjects: pq.StringArray{"pothole"}}, nil).Once()
	f := newFixture(c, 0)
	ctx := context.Background()

	report, err := f.svc.CreateReport(ctx, potholeReport(), nil)
	require.NoError(t, err)
	require.False(t, report.Classified())
	published := len(f.registry.Events())

	updated, err := f.svc.Reclassify(ctx, report.ID)
	require.NoError(t, err)
	assert.True(t, updated.Classified())
	assert.Equal(t, models.ThreatMedium, updated.AIAnalysis.ThreatLevel)
	assert.Len(t, f.registry.Events(), published)

	_, err = f.svc.Reclassify(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	c.AssertExpectations(t)
}
