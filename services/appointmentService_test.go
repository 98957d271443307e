package services

import (
	"DentalClinic/models"
	"DentalClinic/scheduling"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func appointmentInput(date, clock string, treatments ...TreatmentInput) AppointmentInput {
	return AppointmentInput{
		Date:          date,
		Time:          clock,
		MedicUserID:   "m1",
		PatientUserID: "p1",
		Treatments:    treatments,
	}
}

func seedAppointmentFixtures(t *testing.T, env *testEnv) (models.Treatment, models.Treatment) {
	t.Helper()
	env.seedMedic(t, "m1", hours("Monday", "09:00", "17:00"))
	env.seedPatient(t, "p1")
	cleaning := env.seedTreatment(t, "Cleaning", "#00ff00", 30, "100.00")
	filling := env.seedTreatment(t, "Filling", "#ff0000", 45, "250.50")
	return cleaning, filling
}

func TestCreateAppointment(t *testing.T) {
	env := newTestEnv(t, nil)
	cleaning, filling := seedAppointmentFixtures(t, env)

	created, err := env.lifecycle.Create(env.ctx, appointmentInput("2024-05-14", "10:00",
		TreatmentInput{TreatmentID: cleaning.ID},
		TreatmentInput{TreatmentID: filling.ID, Units: 2, InvolvedTeeth: "14,15"},
	))
	require.NoError(t, err)
	assert.Equal(t, "AP2405000001", created.AppointmentID)
	assert.Equal(t, scheduling.StatusUpcoming, created.Status)
	assert.True(t, decimal.RequireFromString("601").Equal(created.Price), created.Price.String())
	require.Len(t, created.Treatments, 2)
	assert.Equal(t, "Cleaning", created.Treatments[0].Treatment.Name)
	assert.Equal(t, 2, created.Treatments[1].Units)

	second, err := env.lifecycle.Create(env.ctx, appointmentInput("2024-05-15", "9:30", TreatmentInput{TreatmentID: cleaning.ID}))
	require.NoError(t, err)
	assert.Equal(t, "AP2405000002", second.AppointmentID)
	assert.Equal(t, "09:30", second.Time)

	require.Len(t, env.broadcaster.created, 2)
	record := env.broadcaster.created[0]
	assert.Equal(t, "AP2405000001", record.AppointmentID)
	assert.Equal(t, "10:00", record.StartHour)
	assert.Equal(t, "11:15", record.EndHour)
	assert.Equal(t, "Cleaning", record.InitialTreatment)
	assert.Equal(t, "#00ff00", record.Color)
	assert.Equal(t, "Ion Ionescu", record.PatientUser)
	assert.Equal(t, "Ana Popescu", record.MedicUser)
}

func TestCreateAppointmentStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	cleaning, _ := seedAppointmentFixtures(t, env)
	price := decimal.NewFromInt(80)

	tests := []struct {
		name     string
		input    AppointmentInput
		expected scheduling.Status
	}{
		{"done and paid", AppointmentInput{IsDone: true, IsPaid: true}, scheduling.StatusDone},
		{"done but unpaid", AppointmentInput{IsDone: true}, scheduling.StatusNotPaid},
		{"paid in advance", AppointmentInput{IsPaid: true}, scheduling.StatusUpcoming},
		{"already past", AppointmentInput{Date: "2024-05-13", Time: "06:30"}, scheduling.StatusMissed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := appointmentInput("2024-05-20", "10:00", TreatmentInput{TreatmentID: cleaning.ID})
			in.IsDone, in.IsPaid, in.Price = tt.input.IsDone, tt.input.IsPaid, &price
			if tt.input.Date != "" {
				in.Date, in.Time = tt.input.Date, tt.input.Time
			}
			created, err := env.lifecycle.Create(env.ctx, in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, created.Status)
			assert.True(t, price.Equal(created.Price))
		})
	}
}

func TestCreateAppointmentErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	cleaning, _ := seedAppointmentFixtures(t, env)

	_, err := env.lifecycle.Create(env.ctx, appointmentInput("2024-05-20", "10:00"))
	assert.ErrorIs(t, err, scheduling.ErrValidation)

	_, err = env.lifecycle.Create(env.ctx, appointmentInput("2024-05-20", "10:00", TreatmentInput{TreatmentID: 999}))
	assert.ErrorIs(t, err, scheduling.ErrNotFound)

	in := appointmentInput("2024-05-20", "10:00", TreatmentInput{TreatmentID: cleaning.ID})
	in.MedicUserID = "nobody"
	_, err = env.lifecycle.Create(env.ctx, in)
	assert.ErrorIs(t, err, scheduling.ErrNotFound)

	assert.Empty(t, env.broadcaster.created)
}

func TestSweepMissed(t *testing.T) {
	env := newTestEnv(t, nil)
	cleaning, _ := seedAppointmentFixtures(t, env)

	past, err := env.lifecycle.Create(env.ctx, appointmentInput("2024-05-14", "10:00", TreatmentInput{TreatmentID: cleaning.ID}))
	require.NoError(t, err)
	done, err := env.lifecycle.Create(env.ctx, AppointmentInput{
		Date: "2024-05-14", Time: "09:00", MedicUserID: "m1", PatientUserID: "p1", IsDone: true,
		Treatments: []TreatmentInput{{TreatmentID: cleaning.ID}},
	})
	require.NoError(t, err)
	future, err := env.lifecycle.Create(env.ctx, appointmentInput("2024-05-14", "15:00", TreatmentInput{TreatmentID: cleaning.ID}))
	require.NoError(t, err)

	// the next day at noon
	env.lifecycle.now = func() time.Time { return monday.Add(29 * time.Hour) }

	got, err := env.lifecycle.Get(env.ctx, past.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusMissed, got.Status)

	got, err = env.lifecycle.Get(env.ctx, done.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusNotPaid, got.Status)

	got, err = env.lifecycle.Get(env.ctx, future.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusUpcoming, got.Status)

	// running the sweep again changes nothing
	n, err := env.appointments.SweepMissed(env.ctx, monday.Add(29*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err = env.lifecycle.Get(env.ctx, past.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusMissed, got.Status)
}

func TestUpdateAppointment(t *testing.T) {
	env := newTestEnv(t, nil)
	cleaning, filling := seedAppointmentFixtures(t, env)

	created, err := env.lifecycle.Create(env.ctx, appointmentInput("2024-05-14", "10:00", TreatmentInput{TreatmentID: cleaning.ID}))
	require.NoError(t, err)

	updated, err := env.lifecycle.Update(env.ctx, created.AppointmentID, AppointmentUpdate{IsDone: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusNotPaid, updated.Status)

	updated, err = env.lifecycle.Update(env.ctx, created.AppointmentID, AppointmentUpdate{IsPaid: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusDone, updated.Status)

	treatments := []TreatmentInput{{TreatmentID: filling.ID, Units: 1}}
	updated, err = env.lifecycle.Update(env.ctx, created.AppointmentID, AppointmentUpdate{Treatments: &treatments})
	require.NoError(t, err)
	require.Len(t, updated.Treatments, 1)
	assert.Equal(t, "Filling", updated.Treatments[0].Treatment.Name)
	assert.True(t, decimal.RequireFromString("250.5").Equal(updated.Price), updated.Price.String())

	var rows int64
	require.NoError(t, env.db.Model(&models.AppointmentTreatment{}).Where("appointment_id = ?", created.AppointmentID).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)

	require.Len(t, env.broadcaster.updated, 3)
	last := env.broadcaster.updated[2]
	assert.Equal(t, "Filling", last.InitialTreatment)
	assert.Equal(t, "10:45", last.EndHour)
	assert.Equal(t, scheduling.StatusDone, last.Status)
}

func TestUpdateMissedAppointment(t *testing.T) {
	env := newTestEnv(t, nil)
	cleaning, _ := seedAppointmentFixtures(t, env)

	created, err := env.lifecycle.Create(env.ctx, appointmentInput("2024-05-13", "06:00", TreatmentInput{TreatmentID: cleaning.ID}))
	require.NoError(t, err)
	require.Equal(t, scheduling.StatusMissed, created.Status)

	// rescheduling into the future makes it upcoming again
	updated, err := env.lifecycle.Update(env.ctx, created.AppointmentID, AppointmentUpdate{Date: strPtr("2024-05-21")})
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusUpcoming, updated.Status)

	// a missed appointment that gets done leaves missed
	updated, err = env.lifecycle.Update(env.ctx, created.AppointmentID, AppointmentUpdate{Date: strPtr("2024-05-10"), IsDone: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusNotPaid, updated.Status)
}

func TestUpdateAppointmentErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	cleaning, _ := seedAppointmentFixtures(t, env)
	created, err := env.lifecycle.Create(env.ctx, appointmentInput("2024-05-14", "10:00", TreatmentInput{TreatmentID: cleaning.ID}))
	require.NoError(t, err)

	_, err = env.lifecycle.Update(env.ctx, "AP0000000000", AppointmentUpdate{IsDone: boolPtr(true)})
	assert.ErrorIs(t, err, scheduling.ErrNotFound)

	_, err = env.lifecycle.Update(env.ctx, created.AppointmentID, AppointmentUpdate{Date: strPtr("14-05-2024")})
	assert.ErrorIs(t, err, scheduling.ErrValidation)

	_, err = env.lifecycle.Update(env.ctx, created.AppointmentID, AppointmentUpdate{PatientUserID: strPtr("nobody")})
	assert.ErrorIs(t, err, scheduling.ErrNotFound)

	_, err = env.lifecycle.Update(env.ctx, created.AppointmentID, AppointmentUpdate{Treatments: &[]TreatmentInput{}})
	assert.ErrorIs(t, err, scheduling.ErrValidation)

	kept, err := env.lifecycle.Get(env.ctx, created.AppointmentID)
	require.NoError(t, err)
	require.Len(t, kept.Treatments, 1)
	assert.True(t, created.Price.Equal(kept.Price))
}

func TestDeleteAppointment(t *testing.T) {
	env := newTestEnv(t, nil)
	cleaning, _ := seedAppointmentFixtures(t, env)
	created, err := env.lifecycle.Create(env.ctx, appointmentInput("2024-05-14", "10:00", TreatmentInput{TreatmentID: cleaning.ID}))
	require.NoError(t, err)

	require.NoError(t, env.lifecycle.Delete(env.ctx, created.AppointmentID))
	assert.Equal(t, []string{created.AppointmentID}, env.broadcaster.deleted)

	_, err = env.lifecycle.Get(env.ctx, created.AppointmentID)
	assert.ErrorIs(t, err, scheduling.ErrNotFound)

	var rows int64
	require.NoError(t, env.db.Model(&models.AppointmentTreatment{}).Count(&rows).Error)
	assert.Zero(t, rows)

	err = env.lifecycle.Delete(env.ctx, created.AppointmentID)
	assert.ErrorIs(t, err, scheduling.ErrNotFound)
	assert.Len(t, env.broadcaster.deleted, 1)
}

func TestListAppointments(t *testing.T) {
	env := newTestEnv(t, nil)
	cleaning, _ := seedAppointmentFixtures(t, env)
	env.seedMedic(t, "m2")

	for _, in := range []AppointmentInput{
		appointmentInput("2024-05-14", "11:00", TreatmentInput{TreatmentID: cleaning.ID}),
		appointmentInput("2024-05-14", "09:00", TreatmentInput{TreatmentID: cleaning.ID}),
		appointmentInput("2024-05-19", "09:00", TreatmentInput{TreatmentID: cleaning.ID}),
		appointmentInput("2024-05-20", "09:00", TreatmentInput{TreatmentID: cleaning.ID}),
	} {
		_, err := env.lifecycle.Create(env.ctx, in)
		require.NoError(t, err)
	}
	other := appointmentInput("2024-05-15", "09:00", TreatmentInput{TreatmentID: cleaning.ID})
	other.MedicUserID = "m2"
	_, err := env.lifecycle.Create(env.ctx, other)
	require.NoError(t, err)

	q, appointments, err := env.lifecycle.List(env.ctx, scheduling.ViewQuery{})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-13", q.StartDate)
	assert.Equal(t, "2024-05-19", q.EndDate)
	require.Len(t, appointments, 4)
	assert.Equal(t, "09:00", appointments[0].Time)
	assert.Equal(t, "11:00", appointments[1].Time)

	q, appointments, err = env.lifecycle.List(env.ctx, scheduling.ViewQuery{MedicID: "m1", StartDate: "2024-05-15"})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-21", q.EndDate)
	require.Len(t, appointments, 2)

	q, records, err := env.lifecycle.View(env.ctx, testTenant, scheduling.ViewQuery{EndDate: "2024-05-14"})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-08", q.StartDate)
	require.Len(t, records, 2)
	assert.Equal(t, "09:30", records[0].EndHour)

	_, _, err = env.lifecycle.List(env.ctx, scheduling.ViewQuery{StartDate: "2024-05-20", EndDate: "2024-05-13"})
	assert.ErrorIs(t, err, scheduling.ErrValidation)
}
