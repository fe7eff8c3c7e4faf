// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurring charge cadences.
// Each cadence has its own stepper that knows how far to move a charge's
// next date once it has been posted.

package services

import (
	"fmt"

	"carnote/internal/core"
)

// CadenceStepper is the strategy interface for advancing a recurring charge.
type CadenceStepper interface {
	// Next returns the occurrence after d for a charge that falls on
	// anchorDay of the month. A zero anchorDay keeps the day of d.
	Next(d core.Date, anchorDay int) core.Date
}

// MonthStepper advances by a fixed number of calendar months. The anchor day
// is clamped to the end of shorter months and restored in longer ones.
type MonthStepper struct {
	Months int
}

func (s MonthStepper) Next(d core.Date, anchorDay int) core.Date {
	next := d.AddMonths(s.Months)
	if anchorDay > 0 {
		next = next.WithDay(anchorDay)
	}
	return next
}

// cadenceStrategies maps cadences to their steppers.
var cadenceStrategies = map[core.Cadence]CadenceStepper{
	core.Monthly:   MonthStepper{Months: 1},
	core.Quarterly: MonthStepper{Months: 3},
	core.Yearly:    MonthStepper{Months: 12},
}

// GetCadenceStepper returns the stepper for a cadence.
// Returns an error if the cadence is not supported.
func GetCadenceStepper(c core.Cadence) (CadenceStepper, error) {
	stepper, ok := cadenceStrategies[c]
	if !ok {
		return nil, fmt.Errorf("unknown cadence: %s", c)
	}
	return stepper, nil
}

// RegisterCadenceStepper registers a stepper for a new cadence.
func RegisterCadenceStepper(c core.Cadence, s CadenceStepper) {
	cadenceStrategies[c] = s
}

// DueOccurrences lists every occurrence of a charge from next up to and
// including today, and the first occurrence after today.
func DueOccurrences(s CadenceStepper, next core.Date, anchorDay int, today core.Date) (due []core.Date, following core.Date) {
	d := next
	for !d.After(today) {
		due = append(due, d)
		nd := s.Next(d, anchorDay)
		if !nd.After(d) {
			// stepper did not advance; stop instead of looping forever
			return due, nd
		}
		d = nd
	}
	return due, d
}
