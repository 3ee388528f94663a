// Package format renders durations and dollar volumes for terminal tables
// and dashboard payloads.
package format

import (
	"fmt"
	"math"
	"strings"
)

// TimeToExpire renders a remaining duration in seconds as "2d 5h 30m".
// Negative input is "Expired"; anything under a minute is "< 1m".
func TimeToExpire(seconds int64) string {
	if seconds < 0 {
		return "Expired"
	}

	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60

	parts := make([]string, 0, 3)
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if len(parts) == 0 {
		return "< 1m"
	}
	return strings.Join(parts, " ")
}

// Volume renders a dollar amount as "$1.2M", "$450.0K" or "$12".
// A nil or NaN volume is "$0".
func Volume(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return "$0"
	}
	switch vol := *v; {
	case vol >= 1_000_000:
		return fmt.Sprintf("$%.1fM", vol/1_000_000)
	case vol >= 1_000:
		return fmt.Sprintf("$%.1fK", vol/1_000)
	default:
		return fmt.Sprintf("$%.0f", vol)
	}
}
