package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"nagarpalika/backend/internal/models"
	"nagarpalika/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) CreateReport(ctx context.Context, report *models.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockStorage) UpdateReport(ctx context.Context, id string, patch models.ReportPatch) (*models.Report, error) {
	args := m.Called(ctx, id, patch)
	if r, ok := args.Get(0).(*models.Report); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) GetReport(ctx context.Context, id string) (*models.Report, error) {
	args := m.Called(ctx, id)
	if r, ok := args.Get(0).(*models.Report); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) ListReports(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.Report), args.Error(1)
}

func TestCachedStorage_GetIsReadThrough(t *testing.T) {
	inner := new(MockStorage)
	ctx := context.Background()
	report := &models.Report{ID: "r1", Title: "cached", Status: models.StatusPending}

	inner.On("GetReport", ctx, "r1").Return(report, nil).Once()

	c := storage.NewCachedStorage(inner, time.Minute)

	first, err := c.GetReport(ctx, "r1")
	require.NoError(t, err)
	second, err := c.GetReport(ctx, "r1")
	require.NoError(t, err)

	assert.Equal(t, "cached", first.Title)
	assert.Equal(t, "cached", second.Title)
	inner.AssertNumberOfCalls(t, "GetReport", 1)

	second.Title = "mutated"
	third, err := c.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "cached", third.Title, "cache hands out copies")
}

func TestCachedStorage_NotFoundIsNotCached(t *testing.T) {
	inner := new(MockStorage)
	ctx := context.Background()
	inner.On("GetReport", ctx, "nope").Return(nil, models.ErrNotFound).Twice()

	c := storage.NewCachedStorage(inner, time.Minute)
	_, err := c.GetReport(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = c.GetReport(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)

	inner.AssertExpectations(t)
}

func TestCachedStorage_UpdateRefreshesEntry(t *testing.T) {
	c := storage.NewCachedStorage(storage.NewMemoryStore(), time.Minute)
	ctx := context.Background()

	r := newReport("refresh")
	require.NoError(t, c.CreateReport(ctx, r))

	got, err := c.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)

	resolved := models.StatusResolved
	_, err = c.UpdateReport(ctx, r.ID, models.ReportPatch{Status: &resolved})
	require.NoError(t, err)

	got, err = c.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, got.Status, "no stale read after update")
}

func TestCachedStorage_FailedUpdateEvicts(t *testing.T) {
	inner := new(MockStorage)
	ctx := context.Background()
	report := &models.Report{ID: "r1", Status: models.StatusPending}
	boom := errors.New("connection reset")

	inner.On("GetReport", ctx, "r1").Return(report, nil).Twice()
	inner.On("UpdateReport", ctx, "r1", mock.Anything).Return(nil, boom).Once()

	c := storage.NewCachedStorage(inner, time.Minute)
	_, err := c.GetReport(ctx, "r1")
	require.NoError(t, err)

	_, err = c.UpdateReport(ctx, "r1", models.ReportPatch{})
	assert.ErrorIs(t, err, boom)

	_, err = c.GetReport(ctx, "r1")
	require.NoError(t, err)
	inner.AssertExpectations(t)
}

func TestCachedStorage_ListBypassesCache(t *testing.T) {
	inner := new(MockStorage)
	ctx := context.Background()
	filter := models.ReportFilter{Department: "KTM-W01"}
	inner.On("ListReports", ctx, filter).Return([]models.Report{{ID: "a"}}, nil).Twice()

	c := storage.NewCachedStorage(inner, time.Minute)
	for i := 0; i < 2; i++ {
		list, err := c.ListReports(ctx, filter)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	}
	inner.AssertExpectations(t)
}
