// Package sizing turns noisy market-size observations into TAM, SAM and SOM figures.
package sizing

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/target/marketlens/internal/domain/model"
	apperrors "github.com/target/marketlens/internal/errors"
	"golang.org/x/net/publicsuffix"
)

// ErrInsufficientData is returned when no usable market observation exists.
var ErrInsufficientData = apperrors.InsufficientData("No market size data available")

const (
	baseQuality = 5
	minQuality  = 1
	maxQuality  = 10
)

// DefaultHighAuthorityPublishers are matched as case-insensitive substrings.
var DefaultHighAuthorityPublishers = []string{
	"gartner", "forrester", "idc", "mckinsey", "statista", "grand view research",
	"mordor intelligence", "fortune business insights", "marketsandmarkets",
	"boston consulting", "bcg", "deloitte", "pwc", "world bank", "oecd", "bloomberg",
}

// DefaultMediumAuthorityPublishers are matched after the high-authority list.
var DefaultMediumAuthorityPublishers = []string{
	"ibisworld", "allied market research", "research and markets", "cb insights",
	"pitchbook", "crunchbase", "techcrunch", "reuters", "forbes", "business insider",
	"euromonitor", "frost",
}

var unitScale = map[string]float64{
	"":         1,
	"usd":      1,
	"units":    1,
	"thousand": 1e3,
	"k":        1e3,
	"million":  1e6,
	"m":        1e6,
	"mn":       1e6,
	"billion":  1e9,
	"b":        1e9,
	"bn":       1e9,
	"trillion": 1e12,
	"t":        1e12,
	"tn":       1e12,
}

// AggregatorOptions configures an Aggregator.
type AggregatorOptions struct {
	Now    func() time.Time
	High   []string
	Medium []string
}

// Aggregator normalizes raw observations to USD and assigns quality weights.
type Aggregator struct {
	now    func() time.Time
	high   []string
	medium []string
}

// NewAggregator builds an Aggregator with the default publisher lists unless overridden.
func NewAggregator(opts AggregatorOptions) *Aggregator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	high := opts.High
	if high == nil {
		high = DefaultHighAuthorityPublishers
	}
	medium := opts.Medium
	if medium == nil {
		medium = DefaultMediumAuthorityPublishers
	}
	return &Aggregator{
		now:    now,
		high:   lowerAll(high),
		medium: lowerAll(medium),
	}
}

// Normalize scales every observation into the base unit and weights it.
// Observations with a non-positive value or an unknown unit are dropped.
// It fails with ErrInsufficientData when nothing usable remains.
func (a *Aggregator) Normalize(raw []model.RawObservation) ([]model.MarketObservation, error) {
	if len(raw) == 0 {
		return nil, ErrInsufficientData
	}

	out := make([]model.MarketObservation, 0, len(raw))
	for _, r := range raw {
		scale, ok := unitScale[strings.ToLower(strings.TrimSpace(r.Unit))]
		if !ok || r.Value <= 0 {
			continue
		}
		publisher := strings.TrimSpace(r.Publisher)
		if publisher == "" {
			publisher = PublisherFromURL(r.SourceURL)
		}
		out = append(out, model.MarketObservation{
			Value:     r.Value * scale,
			Year:      r.Year,
			Publisher: publisher,
			Quality:   a.Quality(r.Year, publisher),
		})
	}

	if len(out) == 0 {
		return nil, ErrInsufficientData
	}
	return out, nil
}

// Quality scores an observation from its age and publisher reputation.
func (a *Aggregator) Quality(year int, publisher string) int {
	q := baseQuality

	if year > 0 {
		age := a.now().Year() - year
		if age < 0 {
			age = 0
		}
		switch {
		case age <= 1:
			q += 3
		case age <= 3:
			q++
		case age > 5:
			q -= 2
		}
	}

	p := strings.ToLower(publisher)
	switch {
	case p == "":
	case containsAny(p, a.high):
		q += 3
	case containsAny(p, a.medium):
		q++
	}

	return clampInt(q, minQuality, maxQuality)
}

// PublisherFromURL derives a publisher label from the registrable domain of a source URL.
// It returns an empty string when the URL has no usable host.
func PublisherFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(u.Hostname()))
	if err != nil {
		return ""
	}
	label, _, _ := strings.Cut(etld1, ".")
	return label
}

// ScaleFor returns the multiplier for a unit label.
func ScaleFor(unit string) (float64, error) {
	scale, ok := unitScale[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", unit)
	}
	return scale, nil
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
