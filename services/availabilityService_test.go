package services

import (
	"DentalClinic/models"
	"DentalClinic/scheduling"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestAvailableTimeSlots(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedMedic(t, "m1", hours("Monday", "09:00", "17:00"))

	slots, err := env.availability.AvailableTimeSlots(env.ctx, "2024-05-13", "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"}, slots)

	// a released slot row is bookable, a reserved one is not
	require.NoError(t, env.db.Create(&models.AvailabilitySlot{MedicID: strPtr("m1"), Date: "2024-05-13", StartTime: "10:00", EndTime: "11:00"}).Error)
	require.NoError(t, env.db.Create(&models.AvailabilitySlot{MedicID: strPtr("m1"), Date: "2024-05-13", StartTime: "12:00", EndTime: "12:30", IsAvailable: true}).Error)

	slots, err = env.availability.AvailableTimeSlots(env.ctx, "2024-05-13", "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"}, slots)

	slots, err = env.availability.AvailableTimeSlots(env.ctx, "2024-05-14", "m1")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestAvailableTimeSlotsErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedMedic(t, "m1", hours("Monday", "09:00", "17:00"))

	_, err := env.availability.AvailableTimeSlots(env.ctx, "13/05/2024", "m1")
	assert.ErrorIs(t, err, scheduling.ErrValidation)

	_, err = env.availability.AvailableTimeSlots(env.ctx, "2024-05-13", "nobody")
	assert.ErrorIs(t, err, scheduling.ErrNotFound)
}

func TestAvailableTimeSlotsDayOff(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedMedic(t, "m1", hours("Monday", "09:00", "12:00"))
	_, err := env.availability.CreateDayOff(env.ctx, "m1", DayOffInput{Name: "Conference", StartDate: "2024-05-13"})
	require.NoError(t, err)

	slots, err := env.availability.AvailableTimeSlots(env.ctx, "2024-05-13", "m1")
	require.NoError(t, err)
	assert.Empty(t, slots)

	err = env.availability.ExplainSlot(env.ctx, "m1", "2024-05-13", "09:00")
	var slotErr *scheduling.SlotError
	require.ErrorAs(t, err, &slotErr)
	assert.Equal(t, scheduling.ReasonDayOff, slotErr.Reason)
}

func TestClinicTimeSlots(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.db.Create(&[]models.ClinicAvailability{
		{Date: "2024-05-13", StartTime: "09:00", EndTime: "11:00", AvailableProviders: 2},
		{Date: "2024-05-13", StartTime: "14:00", EndTime: "15:00", AvailableProviders: 0},
		{Date: "2024-05-14", StartTime: "09:00", EndTime: "10:00", AvailableProviders: 1},
	}).Error)

	slots, err := env.availability.AvailableTimeSlots(env.ctx, "2024-05-13", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00"}, slots)
}

func TestAvailableDates(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedMedic(t, "m1",
		hours("Monday", "09:00", "17:00"),
		hours("Wednesday", "09:00", "13:00"),
		hours("Friday", "09:00", "13:00"),
	)
	_, err := env.availability.CreateDayOff(env.ctx, "m1", DayOffInput{Name: "Holiday", StartDate: "2024-05-15"})
	require.NoError(t, err)

	dates, err := env.availability.AvailableDates(env.ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-13", "2024-05-17"}, dates)

	_, err = env.availability.AvailableDates(env.ctx, "nobody")
	assert.ErrorIs(t, err, scheduling.ErrNotFound)
}

func TestClinicAvailableDates(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedPatient(t, "p1")
	// medic hours play no part in the clinic-wide pool
	env.seedMedic(t, "m1", hours("Monday", "09:00", "17:00"))
	require.NoError(t, env.db.Create(&[]models.ClinicAvailability{
		{Date: "2024-05-14", StartTime: "09:00", EndTime: "11:00", AvailableProviders: 1},
		{Date: "2024-05-15", StartTime: "09:00", EndTime: "12:00", AvailableProviders: 0},
		{Date: "2024-05-16", StartTime: "09:00", EndTime: "09:30", AvailableProviders: 4},
		{Date: "2024-05-17", StartTime: "14:00", EndTime: "15:00", AvailableProviders: 2},
		{Date: "2024-05-31", StartTime: "09:00", EndTime: "10:00", AvailableProviders: 2},
	}).Error)

	dates, err := env.availability.AvailableDates(env.ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-14", "2024-05-17"}, dates)

	// every listed date offers slots, every other day of the window offers none
	for _, day := range []string{"2024-05-13", "2024-05-14", "2024-05-15", "2024-05-16", "2024-05-17"} {
		slots, err := env.availability.AvailableTimeSlots(env.ctx, day, "")
		require.NoError(t, err)
		assert.Equal(t, contains(dates, day), len(slots) > 0, day)
	}

	_, err = env.reservations.Reserve(env.ctx, reservationInput("", "2024-05-14", "09:00"))
	require.NoError(t, err)
	dates, err = env.availability.AvailableDates(env.ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-17"}, dates)
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func TestAvailableDatesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := newTestEnv(t, client)
	env.seedMedic(t, "m1", hours("Monday", "09:00", "17:00"))

	dates, err := env.availability.AvailableDates(env.ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-13"}, dates)
	assert.True(t, mr.Exists(testTenant+":available_dates:medic:m1:2024-05-13"))

	// written behind the service's back, so the cached list is still served
	require.NoError(t, env.db.Create(&models.WorkingHours{MedicID: "m1", DayOfWeek: "Tuesday", StartTime: "09:00", EndTime: "12:00"}).Error)
	dates, err = env.availability.AvailableDates(env.ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-13"}, dates)

	_, err = env.availability.ReplaceWorkingHours(env.ctx, "m1", []WorkingHoursInput{
		{DayOfWeek: "monday", StartTime: "09:00", EndTime: "17:00"},
		{DayOfWeek: "Thu", StartTime: "9:00", EndTime: "12:00"},
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(testTenant+":available_dates:medic:m1:2024-05-13"))

	dates, err = env.availability.AvailableDates(env.ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-13", "2024-05-16"}, dates)
}

func TestReplaceWorkingHours(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedMedic(t, "m1", hours("Monday", "09:00", "17:00"))

	saved, err := env.availability.ReplaceWorkingHours(env.ctx, "m1", []WorkingHoursInput{
		{DayOfWeek: "tue", StartTime: "08:00", EndTime: "12:00"},
	})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "Tuesday", saved[0].DayOfWeek)

	rows, err := env.schedule.WorkingHours(env.ctx, "m1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Tuesday", rows[0].DayOfWeek)

	tests := []struct {
		name  string
		input []WorkingHoursInput
	}{
		{"repeated weekday", []WorkingHoursInput{
			{DayOfWeek: "Monday", StartTime: "09:00", EndTime: "12:00"},
			{DayOfWeek: "mon", StartTime: "13:00", EndTime: "17:00"},
		}},
		{"unknown weekday", []WorkingHoursInput{{DayOfWeek: "Mo", StartTime: "09:00", EndTime: "12:00"}}},
		{"end before start", []WorkingHoursInput{{DayOfWeek: "Monday", StartTime: "12:00", EndTime: "09:00"}}},
		{"bad clock", []WorkingHoursInput{{DayOfWeek: "Monday", StartTime: "24:00", EndTime: "25:00"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.availability.ReplaceWorkingHours(env.ctx, "m1", tt.input)
			assert.ErrorIs(t, err, scheduling.ErrValidation)
		})
	}

	// failed replacements leave the schedule untouched
	rows, err = env.schedule.WorkingHours(env.ctx, "m1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Tuesday", rows[0].DayOfWeek)
}

func TestDaysOff(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedMedic(t, "m1", hours("Monday", "09:00", "17:00"))

	_, err := env.availability.CreateDayOff(env.ctx, "m1", DayOffInput{Name: "Backwards", StartDate: "2024-05-20", EndDate: "2024-05-13"})
	assert.ErrorIs(t, err, scheduling.ErrValidation)

	_, err = env.availability.CreateDayOff(env.ctx, "m1", DayOffInput{StartDate: "2024-05-20"})
	assert.ErrorIs(t, err, scheduling.ErrValidation)

	dayOff, err := env.availability.CreateDayOff(env.ctx, "m1", DayOffInput{Name: "Christmas", StartDate: "2023-12-24", EndDate: "2023-12-26", RepeatYearly: true})
	require.NoError(t, err)
	require.NotZero(t, dayOff.ID)

	err = env.availability.DeleteDayOff(env.ctx, "m2", dayOff.ID)
	assert.ErrorIs(t, err, scheduling.ErrNotFound)

	require.NoError(t, env.availability.DeleteDayOff(env.ctx, "m1", dayOff.ID))
	err = env.availability.DeleteDayOff(env.ctx, "m1", dayOff.ID)
	assert.ErrorIs(t, err, scheduling.ErrNotFound)
}

func TestSlotEnd(t *testing.T) {
	env := newTestEnv(t, nil)
	end, err := env.availability.SlotEnd("10:00")
	require.NoError(t, err)
	assert.Equal(t, "11:00", end)

	end, err = env.availability.SlotEnd("23:30")
	require.NoError(t, err)
	assert.Equal(t, "00:30", end)
}

func TestMedicNamedClinicKeepsItsOwnCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := newTestEnv(t, client)
	env.seedMedic(t, "clinic", hours("Monday", "09:00", "17:00"))

	dates, err := env.availability.AvailableDates(env.ctx, "clinic")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-13"}, dates)
	assert.True(t, mr.Exists(testTenant+":available_dates:medic:clinic:2024-05-13"))

	// the clinic-wide pool has no capacity rows, whatever the medic's cache says
	dates, err = env.availability.AvailableDates(env.ctx, "")
	require.NoError(t, err)
	assert.Empty(t, dates)

	assert.Equal(t, "clinic", poolKey(""))
	assert.Equal(t, "medic:clinic", poolKey("clinic"))
}
