package parsers

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var uptimeUnitSeconds = map[string]int64{
	"minute": 60,
	"hour":   3600,
	"day":    86400,
	"week":   604800,
	"year":   52 * 604800,
}

// ParseUptime - Convert e.g. "8 weeks, 2 days, 23 hours, 22 minutes" to seconds.
func ParseUptime(raw string) (int64, error) {
	tokens := strings.Fields(strings.ReplaceAll(raw, ",", " "))
	if len(tokens) == 0 {
		return 0, fmt.Errorf("%w: empty uptime", ErrParse)
	}
	if len(tokens)%2 != 0 {
		return 0, fmt.Errorf("%w: uptime %q is not made of value/unit pairs", ErrParse, raw)
	}

	var total int64
	for i := 0; i < len(tokens); i += 2 {
		value, err := strconv.ParseInt(tokens[i], 10, 64)
		if err != nil || value < 0 {
			return 0, fmt.Errorf("%w: bad uptime value %q", ErrParse, tokens[i])
		}
		unit := strings.TrimSuffix(strings.ToLower(tokens[i+1]), "s")
		weight, found := uptimeUnitSeconds[unit]
		if !found {
			return 0, fmt.Errorf("%w: %q", ErrUnknownUptimeUnit, tokens[i+1])
		}
		if value > math.MaxInt64/weight || total > math.MaxInt64-value*weight {
			return 0, fmt.Errorf("%w: uptime %q out of range", ErrParse, raw)
		}
		total += value * weight
	}
	return total, nil
}

// FormatUptime - Render days, hours and minutes the way ParseUptime reads them.
func FormatUptime(days, hours, minutes int64) string {
	return fmt.Sprintf("%d days, %d hours, %d minutes", days, hours, minutes)
}
