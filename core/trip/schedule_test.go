package trip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/shulebus/core/route"
)

func TestDefaultStartTime(t *testing.T) {
	tripDate := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	current := time.Date(2024, time.February, 28, 13, 42, 17, 0, time.UTC)

	tests := []struct {
		name     string
		tripType route.TripType
		want     time.Time
	}{
		{"morning pickup", route.MorningPickup, time.Date(2024, time.March, 1, 7, 0, 0, 0, time.UTC)},
		{"evening dropoff", route.EveningDropoff, time.Date(2024, time.March, 1, 15, 0, 0, 0, time.UTC)},
		{"field trip", route.FieldTrip, time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)},
		{"extra curricular", route.ExtraCurricular, time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)},
		{"emergency", route.Emergency, time.Date(2024, time.March, 1, 13, 42, 0, 0, time.UTC)},
		{"unknown", route.TripType("OTHER"), time.Date(2024, time.March, 1, 7, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.want.Equal(DefaultStartTime(tc.tripType, tripDate, current)))
		})
	}
}

func TestDefaultStartTime_IgnoresTimeOfDay(t *testing.T) {
	tripDate := time.Date(2024, time.March, 1, 18, 30, 0, 0, time.UTC)
	got := DefaultStartTime(route.MorningPickup, tripDate, time.Now())
	assert.True(t, time.Date(2024, time.March, 1, 7, 0, 0, 0, time.UTC).Equal(got))
}

func TestCompletionEndTime(t *testing.T) {
	current := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	earlier := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		prev Trip
		next Status
		want *time.Time
	}{
		{"first completion", Trip{Status: StatusInProgress}, StatusCompleted, &current},
		{"already completed", Trip{Status: StatusCompleted}, StatusCompleted, nil},
		{"end time already set", Trip{Status: StatusInProgress, ScheduledEndTime: &earlier}, StatusCompleted, &earlier},
		{"not completing", Trip{Status: StatusScheduled}, StatusInProgress, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := completionEndTime(tc.prev, tc.next, current)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.True(t, tc.want.Equal(*got))
			}
		})
	}
}
