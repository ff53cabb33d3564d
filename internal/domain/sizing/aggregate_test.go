package sizing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/marketlens/internal/domain/model"
	apperrors "github.com/target/marketlens/internal/errors"
)

func fixedAggregator() *Aggregator {
	return NewAggregator(AggregatorOptions{
		Now: func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) },
	})
}

func TestAggregator_Normalize(t *testing.T) {
	agg := fixedAggregator()

	t.Run("scales units to USD", func(t *testing.T) {
		obs, err := agg.Normalize([]model.RawObservation{
			{Value: 500, Unit: "thousand", Year: 2024, Publisher: "Blog"},
			{Value: 2.5, Unit: "Million", Year: 2024, Publisher: "Blog"},
			{Value: 3, Unit: "billion", Year: 2024, Publisher: "Blog"},
			{Value: 1.2, Unit: "trillion", Year: 2024, Publisher: "Blog"},
			{Value: 42, Year: 2024, Publisher: "Blog"},
		})
		require.NoError(t, err)
		require.Len(t, obs, 5)
		assert.InDelta(t, 500e3, obs[0].Value, 1e-6)
		assert.InDelta(t, 2.5e6, obs[1].Value, 1e-6)
		assert.InDelta(t, 3e9, obs[2].Value, 1e-3)
		assert.InDelta(t, 1.2e12, obs[3].Value, 1)
		assert.InDelta(t, 42, obs[4].Value, 1e-9)
	})

	t.Run("empty input is insufficient data", func(t *testing.T) {
		_, err := agg.Normalize(nil)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInsufficientData, apperrors.GetCode(err))
	})

	t.Run("drops non-positive values and unknown units", func(t *testing.T) {
		obs, err := agg.Normalize([]model.RawObservation{
			{Value: 0, Unit: "billion"},
			{Value: -3, Unit: "billion"},
			{Value: 7, Unit: "zillion"},
			{Value: 4, Unit: "billion", Year: 2025, Publisher: "Gartner"},
		})
		require.NoError(t, err)
		require.Len(t, obs, 1)
		assert.InDelta(t, 4e9, obs[0].Value, 1e-3)
	})

	t.Run("all unusable is insufficient data", func(t *testing.T) {
		_, err := agg.Normalize([]model.RawObservation{{Value: -1, Unit: "million"}})
		assert.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("derives publisher from source url", func(t *testing.T) {
		obs, err := agg.Normalize([]model.RawObservation{
			{Value: 1, Unit: "billion", Year: 2025, SourceURL: "https://www.gartner.co.uk/en/newsroom/123"},
		})
		require.NoError(t, err)
		assert.Equal(t, "gartner", obs[0].Publisher)
		assert.Equal(t, 10, obs[0].Quality)
	})

	t.Run("normalization is idempotent", func(t *testing.T) {
		raw := []model.RawObservation{
			{Value: 500, Unit: "million", Year: 2024, Publisher: "Gartner"},
			{Value: 18, Unit: "billion", Year: 2019, Publisher: "Blog"},
		}
		first, err := agg.Normalize(raw)
		require.NoError(t, err)
		second, err := agg.Normalize(raw)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestAggregator_Quality(t *testing.T) {
	agg := fixedAggregator()

	tests := []struct {
		name      string
		year      int
		publisher string
		want      int
	}{
		{"recent high authority clamps to 10", 2025, "Gartner Research", 10},
		{"one year old unknown publisher", 2024, "Some Blog", 8},
		{"three years old medium publisher", 2022, "IBISWorld", 7},
		{"four years old no adjustment", 2021, "", 5},
		{"old low authority", 2015, "random site", 3},
		{"old high authority", 2015, "McKinsey & Company", 6},
		{"case insensitive match", 2021, "STATISTA", 8},
		{"unknown year", 0, "", 5},
		{"future year counts as fresh", 2027, "", 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, agg.Quality(tt.year, tt.publisher))
		})
	}
}

func TestAggregator_QualityClampsLow(t *testing.T) {
	agg := NewAggregator(AggregatorOptions{
		Now:    func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
		High:   []string{},
		Medium: []string{},
	})
	q := agg.Quality(1990, "anyone")
	assert.GreaterOrEqual(t, q, 1)
	assert.LessOrEqual(t, q, 10)
}

func TestPublisherFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.statista.com/outlook/abc", "statista"},
		{"grandviewresearch.com/industry-analysis", "grandviewresearch"},
		{"https://research.bbc.co.uk/x", "bbc"},
		{"", ""},
		{"://bad", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PublisherFromURL(tt.in), "url %q", tt.in)
	}
}

func TestScaleFor(t *testing.T) {
	s, err := ScaleFor(" BN ")
	require.NoError(t, err)
	assert.InDelta(t, 1e9, s, 1e-3)

	_, err = ScaleFor("gazillion")
	assert.Error(t, err)
}
