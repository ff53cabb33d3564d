package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizingResult_TiersConsistent(t *testing.T) {
	banded := func(v float64) Tier { return Tier{Value: v, Low: v * 0.8, High: v * 1.2} }

	tests := []struct {
		name   string
		result *SizingResult
		want   bool
	}{
		{
			name:   "nested and banded",
			result: &SizingResult{TAM: banded(1000), SAM: banded(200), SOM: banded(10)},
			want:   true,
		},
		{
			name:   "tiers without bands",
			result: &SizingResult{TAM: Tier{Value: 1000}, SAM: Tier{Value: 1000}, SOM: Tier{Value: 5}},
			want:   true,
		},
		{
			name:   "sam above tam",
			result: &SizingResult{TAM: banded(100), SAM: banded(200), SOM: banded(10)},
		},
		{
			name:   "som above sam",
			result: &SizingResult{TAM: Tier{Value: 100}, SAM: Tier{Value: 50}, SOM: Tier{Value: 60}},
		},
		{
			name: "value outside its band",
			result: &SizingResult{
				TAM: banded(1000),
				SAM: Tier{Value: 200, Low: 250, High: 300},
				SOM: banded(10),
			},
		},
		{
			name:   "only a high bound below the value",
			result: &SizingResult{TAM: Tier{Value: 1000, High: 900}, SAM: Tier{Value: 200}, SOM: Tier{Value: 10}},
		},
		{
			name: "nil result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.TiersConsistent())
		})
	}
}
