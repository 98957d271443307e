package models

import (
	"DentalClinic/scheduling"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppointmentBeforeSave(t *testing.T) {
	tests := []struct {
		name           string
		status         scheduling.Status
		isDone, isPaid bool
		expected       scheduling.Status
	}{
		{"missed kept", scheduling.StatusMissed, false, false, scheduling.StatusMissed},
		{"missed kept when only paid", scheduling.StatusMissed, false, true, scheduling.StatusMissed},
		{"missed then done", scheduling.StatusMissed, true, false, scheduling.StatusNotPaid},
		{"done and paid", scheduling.StatusUpcoming, true, true, scheduling.StatusDone},
		{"stale status rewritten", scheduling.StatusDone, false, false, scheduling.StatusUpcoming},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Appointment{Status: tt.status, IsDone: tt.isDone, IsPaid: tt.isPaid}
			require.NoError(t, a.BeforeSave(nil))
			assert.Equal(t, tt.expected, a.Status)
		})
	}
}

func TestAppointmentRefreshStatus(t *testing.T) {
	now := time.Date(2024, 5, 13, 12, 0, 0, 0, time.UTC)
	a := &Appointment{Date: "2024-05-13", Time: "10:00"}
	a.RefreshStatus(now)
	assert.Equal(t, scheduling.StatusMissed, a.Status)

	a.Time = "14:00"
	a.RefreshStatus(now)
	assert.Equal(t, scheduling.StatusUpcoming, a.Status)
}

func TestWorkingHoursBeforeSave(t *testing.T) {
	w := &WorkingHours{DayOfWeek: "mon", StartTime: "9:00", EndTime: "17:30:00"}
	require.NoError(t, w.BeforeSave(nil))
	assert.Equal(t, "Monday", w.DayOfWeek)
	assert.Equal(t, "09:00", w.StartTime)
	assert.Equal(t, "17:30", w.EndTime)

	// an empty range marks a day without hours
	off := &WorkingHours{DayOfWeek: "Sunday"}
	require.NoError(t, off.BeforeSave(nil))
	assert.Empty(t, off.StartTime)

	assert.Error(t, (&WorkingHours{DayOfWeek: "Funday"}).BeforeSave(nil))
	assert.Error(t, (&WorkingHours{DayOfWeek: "Monday", StartTime: "25:00"}).BeforeSave(nil))
}

func TestDayOffSpan(t *testing.T) {
	end := "2024-12-26"
	span, err := DayOff{Name: "Christmas", StartDate: "2024-12-24", EndDate: &end, RepeatYearly: true}.Span()
	require.NoError(t, err)
	assert.True(t, span.RepeatYearly)
	require.NotNil(t, span.End)
	assert.Equal(t, "2024-12-26", span.End.Format("2006-01-02"))

	single, err := DayOff{StartDate: "2024-05-15"}.Span()
	require.NoError(t, err)
	assert.Nil(t, single.End)

	before := "2024-12-20"
	err = (&DayOff{Name: "Broken", StartDate: "2024-12-24", EndDate: &before}).BeforeSave(nil)
	assert.ErrorIs(t, err, scheduling.ErrValidation)
}
