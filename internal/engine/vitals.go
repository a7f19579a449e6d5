package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
)

// Accepted measurement ranges
const (
	MinSystolic  = 70
	MaxSystolic  = 250
	MinDiastolic = 40
	MaxDiastolic = 150
	MinGlucose   = 20
	MaxGlucose   = 600
	MinTSH       = 0.01
	MaxTSH       = 100.0
)

// validateVital requires the fields of every declared condition and checks
// ranges of whatever was supplied
func validateVital(p *model.UserProfile, r model.VitalReading) error {
	verr := &ValidationError{}

	active := p.ActiveConditions()
	if len(active) == 0 && r.Systolic == nil && r.Diastolic == nil && r.Glucose == nil && r.TSH == nil {
		verr.add("reading", "at least one measurement is required")
	}
	for _, c := range active {
		switch c {
		case model.ConditionBP:
			if r.Systolic == nil {
				verr.add("systolic", "is required for BP")
			}
			if r.Diastolic == nil {
				verr.add("diastolic", "is required for BP")
			}
		case model.ConditionDiabetes:
			if r.Glucose == nil {
				verr.add("glucose", "is required for Diabetes")
			}
		case model.ConditionThyroid:
			if r.TSH == nil {
				verr.add("tsh", "is required for Thyroid")
			}
		}
	}

	if r.Systolic != nil && (*r.Systolic < MinSystolic || *r.Systolic > MaxSystolic) {
		verr.add("systolic", fmt.Sprintf("must be between %d and %d", MinSystolic, MaxSystolic))
	}
	if r.Diastolic != nil && (*r.Diastolic < MinDiastolic || *r.Diastolic > MaxDiastolic) {
		verr.add("diastolic", fmt.Sprintf("must be between %d and %d", MinDiastolic, MaxDiastolic))
	}
	if r.Glucose != nil && (*r.Glucose < MinGlucose || *r.Glucose > MaxGlucose) {
		verr.add("glucose", fmt.Sprintf("must be between %d and %d", MinGlucose, MaxGlucose))
	}
	if r.TSH != nil && (*r.TSH < MinTSH || *r.TSH > MaxTSH) {
		verr.add("tsh", fmt.Sprintf("must be between %s and %s", formatAmount(MinTSH), formatAmount(MaxTSH)))
	}
	return verr.orNil()
}

func describeVital(r model.VitalReading) string {
	var parts []string
	if r.Systolic != nil && r.Diastolic != nil {
		parts = append(parts, fmt.Sprintf("BP %d/%d mmHg", *r.Systolic, *r.Diastolic))
	} else if r.Systolic != nil {
		parts = append(parts, fmt.Sprintf("Systolic %d mmHg", *r.Systolic))
	} else if r.Diastolic != nil {
		parts = append(parts, fmt.Sprintf("Diastolic %d mmHg", *r.Diastolic))
	}
	if r.Glucose != nil {
		parts = append(parts, fmt.Sprintf("Sugar %d mg/dL", *r.Glucose))
	}
	if r.TSH != nil {
		parts = append(parts, "TSH "+strconv.FormatFloat(*r.TSH, 'f', -1, 64)+" mIU/L")
	}
	return strings.Join(parts, ", ")
}
