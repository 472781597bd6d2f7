package api

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// Query parameter bounds.
const (
	DefaultRecommendationLimit = 10
	MaxRecommendationLimit     = 50
	DefaultTimelineLimit       = 20
	MaxTimelineLimit           = 100
	DefaultPeriodDays          = 30
	MaxPeriodDays              = 90
)

var (
	errInvalidLimit  = errors.New("limit must be a positive integer")
	errInvalidOffset = errors.New("offset must be a non-negative integer")
	errInvalidPeriod = errors.New("period must be a positive number of days, e.g. 7d, 30d or 90d")
)

// parseLimit reads "limit", applying def when absent and clamping to max.
func parseLimit(q url.Values, def, max int) (int, error) {
	raw := strings.TrimSpace(q.Get("limit"))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errInvalidLimit
	}
	return min(n, max), nil
}

func parseOffset(q url.Values) (int, error) {
	raw := strings.TrimSpace(q.Get("offset"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errInvalidOffset
	}
	return n, nil
}

// parsePeriod accepts "7d", "30d", "90d" or a bare day count. Values above
// MaxPeriodDays are clamped.
func parsePeriod(q url.Values) (int, error) {
	raw := strings.ToLower(strings.TrimSpace(q.Get("period")))
	if raw == "" {
		return DefaultPeriodDays, nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
	if err != nil || n < 1 {
		return 0, errInvalidPeriod
	}
	return min(n, MaxPeriodDays), nil
}

func parseBool(q url.Values, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(q.Get(key)))
	return err == nil && v
}
