// Package quality validates permit financial values and scores record
// completeness.
package quality

import (
	"fmt"

	"github.com/pfrederiksen/permit-scraper/internal/logger"
	"github.com/pfrederiksen/permit-scraper/internal/permit"
)

// Thresholds bound plausible job values. Min < Warning < Max.
type Thresholds struct {
	Min     float64 `json:"min"`
	Warning float64 `json:"warning"`
	Max     float64 `json:"max"`
}

// DefaultThresholds returns the standard job value bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Min:     100,
		Warning: 50_000_000,
		Max:     500_000_000,
	}
}

// Validation flags and their data quality tokens.
const (
	FlagTooLow      = "too_low"
	FlagTooHigh     = "too_high"
	FlagHighWarning = "high_warning"

	QualityLowJobValue         = "low_job_value"
	QualityHighJobValue        = "high_job_value"
	QualityHighJobValueWarning = "high_job_value_warning"
)

// Finding is the outcome of validating a record's job value. The zero value
// means nothing was flagged.
type Finding struct {
	Flag    string
	Quality string
	Level   logger.Level
	Value   float64
}

// Flagged reports whether the finding carries a flag.
func (f Finding) Flagged() bool {
	return f.Flag != ""
}

// Validate checks the record's job value against th. It does not modify the
// record. An absent job value is never flagged.
func Validate(r *permit.Record, th Thresholds) Finding {
	if r.JobValue == nil {
		return Finding{}
	}
	v := *r.JobValue

	switch {
	case v < th.Min:
		return Finding{Flag: FlagTooLow, Quality: QualityLowJobValue, Level: logger.LevelWarn, Value: v}
	case v > th.Max:
		return Finding{Flag: FlagTooHigh, Quality: QualityHighJobValue, Level: logger.LevelError, Value: v}
	case v > th.Warning:
		return Finding{Flag: FlagHighWarning, Quality: QualityHighJobValueWarning, Level: logger.LevelWarn, Value: v}
	}
	return Finding{}
}

// Apply annotates r with f and logs it. Existing fields and flags are kept.
func Apply(r *permit.Record, f Finding) {
	if !f.Flagged() {
		return
	}
	r.JobValueValidationFlag = f.Flag
	r.AddFlag(f.Quality)

	fields := logger.Fields{
		"permit_number": r.PermitNumber,
		"job_value":     fmt.Sprintf("$%.2f", f.Value),
		"flag":          f.Flag,
	}
	logger.Log(f.Level, findingMessages[f.Flag], fields, nil)
}

var findingMessages = map[string]string{
	FlagTooLow:      "Suspiciously low job value",
	FlagTooHigh:     "Suspiciously high job value",
	FlagHighWarning: "High job value above warning threshold",
}

// ValidateRecord runs Validate and Apply in one step.
func ValidateRecord(r *permit.Record, th Thresholds) Finding {
	f := Validate(r, th)
	Apply(r, f)
	return f
}

// Export gate bounds.
const (
	GateMinJobValue = 1
	GateMaxJobValue = 1e10
)

// Gate reports whether r is fit for export: a job value must be present and
// inside [GateMinJobValue, GateMaxJobValue]. The returned reason is empty
// when the record passes.
func Gate(r *permit.Record) (bool, string) {
	if r.JobValue == nil {
		return false, "missing job value"
	}
	v := *r.JobValue
	if v < GateMinJobValue || v > GateMaxJobValue {
		return false, fmt.Sprintf("job value %.2f outside [%v, %v]", v, float64(GateMinJobValue), GateMaxJobValue)
	}
	return true, ""
}
