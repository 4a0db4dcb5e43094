package aggregation

import (
	"fmt"
	"strings"
	"time"

	"github.com/gcbaptista/go-search-service/config"
	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/model"
	"github.com/gcbaptista/go-search-service/services"
)

// Aggregation types.
const (
	TypeTerms         = "terms"
	TypeStats         = "stats"
	TypeExtendedStats = "extended_stats"
	TypeAvg           = "avg"
	TypeMin           = "min"
	TypeMax           = "max"
	TypeSum           = "sum"
	TypeValueCount    = "value_count"
	TypeCount         = "count" // alias of value_count
	TypeRange         = "range"
	TypeHistogram     = "histogram"
	TypeDateHistogram = "date_histogram"
	TypeCardinality   = "cardinality"
	TypePercentiles   = "percentiles"
)

const (
	defaultTermsSize         = 10
	defaultHistogramInterval = 10.0
	defaultCalendarInterval  = "day"
)

var defaultPercents = []float64{1, 5, 25, 50, 75, 95, 99}

// bucketTypes may carry sub-aggregations.
var bucketTypes = map[string]bool{
	TypeTerms:         true,
	TypeRange:         true,
	TypeHistogram:     true,
	TypeDateHistogram: true,
}

// keywordTypes also accept fast keyword fields; every other type needs a fast
// integer, float or date field.
var keywordTypes = map[string]bool{
	TypeTerms:       true,
	TypeCardinality: true,
	TypeValueCount:  true,
	TypeCount:       true,
}

var metricTypes = map[string]bool{
	TypeStats:         true,
	TypeExtendedStats: true,
	TypeAvg:           true,
	TypeMin:           true,
	TypeMax:           true,
	TypeSum:           true,
	TypeValueCount:    true,
	TypeCount:         true,
	TypeCardinality:   true,
	TypePercentiles:   true,
}

// Validate checks every aggregation request, including nested ones, against def.
// It returns a *errors.ValidationError naming the offending request.
func Validate(def *config.IndexDefinition, reqs []services.AggregationRequest) error {
	return validate(def, reqs, "aggregations")
}

func validate(def *config.IndexDefinition, reqs []services.AggregationRequest, path string) error {
	names := make(map[string]bool, len(reqs))
	for i, r := range reqs {
		p := fmt.Sprintf("%s[%d]", path, i)
		if strings.TrimSpace(r.Name) == "" {
			return internalErrors.NewValidationError(p+".name", "aggregation name is required")
		}
		if names[r.Name] {
			return internalErrors.NewValidationError(p+".name", fmt.Sprintf("duplicate aggregation name '%s'", r.Name))
		}
		names[r.Name] = true

		if !bucketTypes[r.Type] && !metricTypes[r.Type] {
			return internalErrors.NewValidationError(p+".agg_type", fmt.Sprintf("unsupported aggregation type '%s'", r.Type))
		}
		if err := validateField(def, r, p); err != nil {
			return err
		}
		if err := validateParams(r, p); err != nil {
			return err
		}

		if len(r.Aggregations) > 0 {
			if !bucketTypes[r.Type] {
				return internalErrors.NewValidationError(p+".aggregations", fmt.Sprintf("aggregation type '%s' cannot have sub-aggregations", r.Type))
			}
			if err := validate(def, r.Aggregations, p+".aggregations"); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateField(def *config.IndexDefinition, r services.AggregationRequest, p string) error {
	f, ok := def.Field(r.Field)
	if !ok {
		return internalErrors.NewValidationError(p+".field", fmt.Sprintf("unknown field '%s'", r.Field))
	}
	if !f.Fast {
		return internalErrors.NewValidationError(p+".field", fmt.Sprintf("field '%s' is not a fast field", r.Field))
	}
	switch {
	case r.Type == TypeDateHistogram && f.Type != model.FieldTypeDate:
		return internalErrors.NewValidationError(p+".field", fmt.Sprintf("date_histogram requires a date field, '%s' is %s", r.Field, f.Type))
	case f.Type == model.FieldTypeKeyword && !keywordTypes[r.Type]:
		return internalErrors.NewValidationError(p+".field", fmt.Sprintf("aggregation type '%s' requires a numeric or date field, '%s' is keyword", r.Type, r.Field))
	}
	return nil
}

func validateParams(r services.AggregationRequest, p string) error {
	if r.Size < 0 {
		return internalErrors.NewValidationError(p+".size", "size cannot be negative")
	}
	switch r.Type {
	case TypeHistogram:
		if r.Interval < 0 {
			return internalErrors.NewValidationError(p+".interval", "interval must be greater than zero")
		}
	case TypeDateHistogram:
		if _, err := parseCalendarInterval(r.CalendarInterval); err != nil {
			return internalErrors.NewValidationError(p+".calendar_interval", err.Error())
		}
	case TypeRange:
		if len(r.Ranges) == 0 {
			return internalErrors.NewValidationError(p+".ranges", "at least one range is required")
		}
		for j, rg := range r.Ranges {
			if rg.From == nil && rg.To == nil {
				return internalErrors.NewValidationError(fmt.Sprintf("%s.ranges[%d]", p, j), "a range needs from, to or both")
			}
		}
	case TypePercentiles:
		for _, pct := range r.Percents {
			if pct < 0 || pct > 100 {
				return internalErrors.NewValidationError(p+".percents", fmt.Sprintf("percentile %v is outside [0, 100]", pct))
			}
		}
	}
	return nil
}

// calendarInterval is either a calendar unit or a fixed duration.
type calendarInterval struct {
	unit  string
	fixed time.Duration
}

func parseCalendarInterval(s string) (calendarInterval, error) {
	if s == "" {
		s = defaultCalendarInterval
	}
	switch s {
	case "minute", "hour", "day", "week", "month", "year":
		return calendarInterval{unit: s}, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return calendarInterval{}, fmt.Errorf("calendar_interval must be minute, hour, day, week, month, year or a duration, got '%s'", s)
	}
	if d <= 0 {
		return calendarInterval{}, fmt.Errorf("calendar_interval must be greater than zero")
	}
	return calendarInterval{fixed: d}, nil
}

// bucketStart returns the start of the interval containing t.
func (ci calendarInterval) bucketStart(t time.Time) time.Time {
	t = t.UTC()
	switch ci.unit {
	case "minute":
		return t.Truncate(time.Minute)
	case "hour":
		return t.Truncate(time.Hour)
	case "day":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case "week":
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // weeks start on Monday
		return day.AddDate(0, 0, -offset)
	case "month":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case "year":
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
	ms := ci.fixed.Milliseconds()
	if ms <= 0 {
		return t
	}
	return time.UnixMilli(floorDiv(t.UnixMilli(), ms) * ms).UTC()
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
