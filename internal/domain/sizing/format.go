package sizing

import (
	"fmt"
	"math"
)

// FormatCurrency renders a USD amount as $1.2T, $3.4B, $450.0M, $12.5K or $950.
func FormatCurrency(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e12:
		return fmt.Sprintf("$%.1fT", v/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("$%.1fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("$%.1fK", v/1e3)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}
