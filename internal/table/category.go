package table

import (
	"fmt"
	"strings"
)

// Category is one of the fixed report sections found in every measurement workbook.
type Category int

const (
	Metadata Category = iota
	MeasurementAverages
	WeeklyAverages
	ParametersDaily
	ParametersHourly
)

// Kind of aggregation performed for a category in overview mode
type AggregationKind int

const (
	// Averaged categories average a numeric column range positionally
	Averaged AggregationKind = iota
	// Distinct categories list the unique values of an identifying column
	Distinct
)

// CategorySpec describes how a category is located in a workbook and aggregated.
type CategorySpec struct {
	Category     Category
	Key          string
	Sheet        string
	OverviewName string
	Kind         AggregationKind
	// FixedColumns are copied verbatim from the reference table
	FixedColumns []string
	// RangeStart and RangeEnd bound the contiguous numeric columns that are averaged
	RangeStart string
	RangeEnd   string
	// IDColumn is the identifying column of a Distinct category
	IDColumn string
}

// DeclaredHeaders are the headers carried by an empty result for the category
func (s CategorySpec) DeclaredHeaders() []string {
	if s.Kind == Distinct {
		return []string{s.IDColumn}
	}
	headers := make([]string, 0, len(s.FixedColumns)+2)
	headers = append(headers, s.FixedColumns...)
	headers = append(headers, s.RangeStart)
	if s.RangeEnd != s.RangeStart {
		headers = append(headers, s.RangeEnd)
	}
	return headers
}

const movingAverageColumn = "lceq_1min_moving_average"

var categorySpecs = []CategorySpec{
	{
		Category:     Metadata,
		Key:          "metadata",
		Sheet:        "Metadata",
		OverviewName: "Measurement points",
		Kind:         Distinct,
		IDColumn:     "ID",
	},
	{
		Category:     MeasurementAverages,
		Key:          "measurement_averages",
		Sheet:        "Measurement averages",
		OverviewName: "Measurement averages",
		Kind:         Averaged,
		FixedColumns: []string{"Period"},
		RangeStart:   "lden",
		RangeEnd:     movingAverageColumn,
	},
	{
		Category:     WeeklyAverages,
		Key:          "weekly_averages",
		Sheet:        "Weekly averages",
		OverviewName: "Weekly averages",
		Kind:         Averaged,
		FixedColumns: []string{"Week_survey", "Period"},
		RangeStart:   "lden",
		RangeEnd:     movingAverageColumn,
	},
	{
		Category:     ParametersDaily,
		Key:          "parameters_daily",
		Sheet:        "Parameters daily",
		OverviewName: "Daily averages",
		Kind:         Averaged,
		FixedColumns: []string{"Date", "Day", "Weekday", "Holiday", "Workday", "Week", "Week_survey", "Valid"},
		RangeStart:   "laeq",
		RangeEnd:     movingAverageColumn,
	},
	{
		Category:     ParametersHourly,
		Key:          "parameters_hourly",
		Sheet:        "Parameters hourly",
		OverviewName: "Hourly averages",
		Kind:         Averaged,
		FixedColumns: []string{"Date", "Time", "Hour", "Day", "Weekday", "Holiday", "Workday", "Week", "Week_survey", "Period", "Valid"},
		RangeStart:   "laeq",
		RangeEnd:     movingAverageColumn,
	},
}

// AllCategories lists every category in overview workbook order
func AllCategories() []Category {
	out := make([]Category, len(categorySpecs))
	for i, s := range categorySpecs {
		out[i] = s.Category
	}
	return out
}

// CompiledCategories are the sheets concatenated into compiled files
func CompiledCategories() []Category {
	return []Category{MeasurementAverages, WeeklyAverages, ParametersDaily, ParametersHourly}
}

// Spec returns the static configuration of a category
func (c Category) Spec() CategorySpec {
	if c < 0 || int(c) >= len(categorySpecs) {
		return CategorySpec{Category: c, Key: fmt.Sprintf("category(%d)", int(c))}
	}
	return categorySpecs[c]
}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	return c >= 0 && int(c) < len(categorySpecs)
}

// String returns the category's sheet name
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categorySpecs[c].Sheet
}

// ParseCategory resolves a category from its key or sheet name, case-insensitively
func ParseCategory(s string) (Category, error) {
	needle := strings.TrimSpace(s)
	for _, spec := range categorySpecs {
		if strings.EqualFold(needle, spec.Key) || strings.EqualFold(needle, spec.Sheet) {
			return spec.Category, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// MarshalText encodes the category by key
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(categorySpecs[c].Key), nil
}

// UnmarshalText decodes a category from its key or sheet name
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
