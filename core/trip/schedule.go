package trip

import (
	"time"

	"github.com/jinzhu/now"

	"github.com/trezcool/shulebus/core/route"
)

// start-of-trip offsets from midnight, by route trip type
var defaultStartOffsets = map[route.TripType]time.Duration{
	route.MorningPickup:   7 * time.Hour,
	route.EveningDropoff:  15 * time.Hour,
	route.FieldTrip:       8 * time.Hour,
	route.ExtraCurricular: 8 * time.Hour,
}

const fallbackStartOffset = 7 * time.Hour

// DefaultStartTime derives a trip's scheduled start from its date and its route's trip type.
// Emergency trips start at the current wall-clock time (to the minute) on the trip date.
func DefaultStartTime(tripType route.TripType, tripDate, current time.Time) time.Time {
	day := now.With(tripDate).BeginningOfDay()
	if tripType == route.Emergency {
		current = current.In(tripDate.Location())
		return day.Add(time.Duration(current.Hour())*time.Hour + time.Duration(current.Minute())*time.Minute)
	}
	if offset, ok := defaultStartOffsets[tripType]; ok {
		return day.Add(offset)
	}
	return day.Add(fallbackStartOffset)
}

// dayRange returns the first and last instants of t's calendar day.
func dayRange(t time.Time) (time.Time, time.Time) {
	n := now.With(t)
	return n.BeginningOfDay(), n.EndOfDay()
}

// completionEndTime reports the scheduled end time a trip gets when moving to `next`.
// It is only captured on the first transition into COMPLETED and never overrides an existing value.
func completionEndTime(prev Trip, next Status, current time.Time) *time.Time {
	if next != StatusCompleted || prev.Status == StatusCompleted || prev.ScheduledEndTime != nil {
		return prev.ScheduledEndTime
	}
	t := current.UTC()
	return &t
}
