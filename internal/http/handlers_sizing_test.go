package httpx

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/marketlens/internal/domain/model"
	"github.com/target/marketlens/internal/domain/sizing"
)

const threeSources = `{"sources":[
	{"value":500,"unit":"million","year":2024,"publisher":"Gartner"},
	{"value":18,"unit":"billion","year":2024,"publisher":"Blog"},
	{"value":600,"unit":"million","year":2024,"publisher":"Forrester"}]}`

func sizingRouter(geo *float64) http.Handler {
	return NewRouter(RouterServices{
		Sizing:          sizing.NewEngine(sizing.EngineOptions{}),
		GeographicFocus: geo,
	})
}

func TestComputeSizing_Success(t *testing.T) {
	w := httptest.NewRecorder()
	sizingRouter(nil).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/market-sizing", strings.NewReader(threeSources)))

	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[model.SizingResult](t, w)
	assert.Empty(t, got.Error)
	assert.Equal(t, "$600.0M", got.TAM.Formatted)
	assert.Equal(t, 1, got.Statistics.OutlierSources)
	assert.InDelta(t, 0.4, got.Multipliers.Geographic, 1e-9)
}

func TestComputeSizing_GeographicFocus(t *testing.T) {
	defaultGeo := 1.0

	w := httptest.NewRecorder()
	sizingRouter(&defaultGeo).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/market-sizing", strings.NewReader(threeSources)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 1.0, decodeBody[model.SizingResult](t, w).Multipliers.Geographic, 1e-9)

	withOption := strings.Replace(threeSources, `{"sources"`, `{"options":{"geographic_focus":0.25},"sources"`, 1)
	w = httptest.NewRecorder()
	sizingRouter(&defaultGeo).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/market-sizing", strings.NewReader(withOption)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 0.25, decodeBody[model.SizingResult](t, w).Multipliers.Geographic, 1e-9)
}

func TestComputeSizing_Unusable(t *testing.T) {
	w := httptest.NewRecorder()
	sizingRouter(nil).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/market-sizing",
		strings.NewReader(`{"sources":[{"value":-5,"unit":"billion"}]}`)))

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	got := decodeBody[model.SizingResult](t, w)
	assert.Equal(t, "No market size data available", got.Error)
	assert.Equal(t, "$0", got.TAM.Formatted)
}

func TestComputeSizing_Validation(t *testing.T) {
	many := make([]string, maxSizingSources+1)
	for i := range many {
		many[i] = `{"value":1,"unit":"billion"}`
	}

	tests := []struct {
		name string
		body string
	}{
		{name: "no sources", body: `{"sources":[]}`},
		{name: "too many sources", body: fmt.Sprintf(`{"sources":[%s]}`, strings.Join(many, ","))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			sizingRouter(nil).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/market-sizing", strings.NewReader(tt.body)))
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "sources", decodeBody[errorBody](t, w).Field)
		})
	}
}
