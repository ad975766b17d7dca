package analysis_test

import (
	"context"
	"errors"
	"testing"

	"nagarpalika/backend/internal/analysis"
	"nagarpalika/backend/internal/models"

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

func TestThreatForSeverity_IsMonotonic(t *testing.T) {
	prev := analysis.ThreatForSeverity(-5)
	for s := -5; s <= 15; s++ {
		tier := analysis.ThreatForSeverity(s)
		assert.GreaterOrEqual(t, tier.Tier(), prev.Tier(), "severity %d lowered the tier", s)
		assert.NotEqual(t, models.ThreatUnknown, tier)
		prev = tier
	}
}

func TestThreatForSeverity_Bands(t *testing.T) {
	assert.Equal(t, models.ThreatLow, analysis.ThreatForSeverity(0))
	assert.Equal(t, models.ThreatLow, analysis.ThreatForSeverity(3))
	assert.Equal(t, models.ThreatMedium, analysis.ThreatForSeverity(4))
	assert.Equal(t, models.ThreatHigh, analysis.ThreatForSeverity(6))
	assert.Equal(t, models.ThreatCritical, analysis.ThreatForSeverity(8))
	assert.Equal(t, models.ThreatCritical, analysis.ThreatForSeverity(10))
}

func TestKeywordClassifier(t *testing.T) {
	tests := []struct {
		name        string
		in          analysis.Input
		severity    int
		threat      models.ThreatLevel
		wantObjects []string
	}{
		{
			name:        "accident outranks pothole",
			in:          analysis.Input{Title: "Pothole on Main St", Description: "large pothole causing accidents"},
			severity:    9,
			threat:      models.ThreatCritical,
			wantObjects: []string{"accident"},
		},
		{
			name:        "pothole only",
			in:          analysis.Input{Title: "Pothole", Description: "deep crack in the road"},
			severity:    4,
			threat:      models.ThreatMedium,
			wantObjects: []string{"pothole", "crack"},
		},
		{
			name:        "garbage",
			in:          analysis.Input{Title: "Garbage pile", Description: "not collected for a week"},
			severity:    2,
			threat:      models.ThreatLow,
			wantObjects: []string{"garbage"},
		},
		{
			name:        "water leak",
			in:          analysis.Input{Title: "Burst pipe", Description: "Water LEAK flooding the lane"},
			severity:    6,
			threat:      models.ThreatHigh,
			wantObjects: []string{"water", "leak", "flood"},
		},
		{
			name:     "no keyword uses the default",
			in:       analysis.Input{Title: "Broken bench", Description: "in the park"},
			severity: 3,
			threat:   models.ThreatLow,
		},
	}

	k := analysis.NewKeywordClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := k.Analyze(context.Background(), tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.severity, c.SeverityScore)
			assert.Equal(t, tt.threat, c.ThreatLevel)
			assert.Equal(t, float64(85), c.Confidence)
			assert.False(t, c.IsDuplicate)
			assert.False(t, c.FlaggedForReview)
			assert.NotNil(t, c.DetectedObjects)
			for _, obj := range tt.wantObjects {
				assert.Contains(t, c.DetectedObjects, obj)
			}
		})
	}
}

func TestKeywordClassifier_IsDeterministic(t *testing.T) {
	k := analysis.NewKeywordClassifier()
	in := analysis.Input{Title: "Fire near school", Description: "smoke everywhere", ImageRef: "/uploads/a.jpg"}

	first, err := k.Analyze(context.Background(), in)
	require.NoError(t, err)
	second, err := k.Analyze(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestKeywordClassifier_Failures(t *testing.T) {
	k := analysis.NewKeywordClassifier()

	_, err := k.Analyze(context.Background(), analysis.Input{})
	assert.True(t, analysis.IsFailure(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = k.Analyze(ctx, analysis.Input{Title: "fire"})
	assert.True(t, errors.Is(err, models.ErrClassificationFailed))
}

func TestFallbackClassifier_UsesSecondaryOnFailure(t *testing.T) {
	primary := new(MockClassifier)
	in := analysis.Input{Title: "Flood", Description: "street under water"}
	primary.On("Analyze", mock.Anything, in).
		Return(models.Classification{}, models.ErrClassificationFailed).Once()

	f := &analysis.FallbackClassifier{Primary: primary, Secondary: analysis.NewKeywordClassifier()}
	c, err := f.Analyze(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, models.ThreatHigh, c.ThreatLevel)
	primary.AssertExpectations(t)
}

func TestFallbackClassifier_PrefersPrimary(t *testing.T) {
	primary := new(MockClassifier)
	secondary := new(MockClassifier)
	want := models.Classification{ThreatLevel: models.ThreatMedium, SeverityScore: 5}
	primary.On("Analyze", mock.Anything, mock.Anything).Return(want, nil).Once()

	f := &analysis.FallbackClassifier{Primary: primary, Secondary: secondary}
	c, err := f.Analyze(context.Background(), analysis.Input{Title: "x"})

	require.NoError(t, err)
	assert.Equal(t, want, c)
	secondary.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}
