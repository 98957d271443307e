package services

import (
	"DentalClinic/database"
	"DentalClinic/metrics"
	"DentalClinic/models"
	"DentalClinic/repositories"
	"DentalClinic/scheduling"
	"DentalClinic/utils"
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Broadcaster receives every appointment change so live calendars can be patched.
type Broadcaster interface {
	AppointmentCreated(tenant string, record scheduling.Record)
	AppointmentUpdated(tenant string, record scheduling.Record)
	AppointmentDeleted(tenant string, appointmentID string)
}

// TreatmentInput attaches a treatment to an appointment.
type TreatmentInput struct {
	TreatmentID   uint   `json:"treatment_id"`
	Units         int    `json:"units"`
	InvolvedTeeth string `json:"involved_teeth"`
	Prescription  string `json:"prescription"`
	Details       string `json:"details"`
}

func (i TreatmentInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.TreatmentID, validation.Required),
		validation.Field(&i.Units, validation.Min(0)),
	)
}

// AppointmentInput creates an appointment. A nil Price is computed from the treatments.
type AppointmentInput struct {
	Date          string           `json:"date"`
	Time          string           `json:"time"`
	MedicUserID   string           `json:"medic_user_id"`
	PatientUserID string           `json:"patient_user_id"`
	Price         *decimal.Decimal `json:"price"`
	IsDone        bool             `json:"is_done"`
	IsPaid        bool             `json:"is_paid"`
	Treatments    []TreatmentInput `json:"treatments"`
}

func (i AppointmentInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Date, validation.Required, utils.Date),
		validation.Field(&i.Time, validation.Required, utils.Clock),
		validation.Field(&i.MedicUserID, validation.Required),
		validation.Field(&i.PatientUserID, validation.Required),
		validation.Field(&i.Treatments, validation.Required),
	)
}

// AppointmentUpdate changes the fields that are set. A non-nil Treatments
// replaces the whole treatment list.
type AppointmentUpdate struct {
	Date          *string           `json:"date"`
	Time          *string           `json:"time"`
	MedicUserID   *string           `json:"medic_user_id"`
	PatientUserID *string           `json:"patient_user_id"`
	Price         *decimal.Decimal  `json:"price"`
	IsDone        *bool             `json:"is_done"`
	IsPaid        *bool             `json:"is_paid"`
	Treatments    *[]TreatmentInput `json:"treatments"`
}

func (u AppointmentUpdate) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Date, validation.NilOrNotEmpty, utils.Date),
		validation.Field(&u.Time, validation.NilOrNotEmpty, utils.Clock),
		validation.Field(&u.MedicUserID, validation.NilOrNotEmpty),
		validation.Field(&u.PatientUserID, validation.NilOrNotEmpty),
		// an appointment always keeps at least one treatment
		validation.Field(&u.Treatments, validation.NilOrNotEmpty),
	)
}

// AppointmentService owns the appointment lifecycle and keeps live calendars in step.
type AppointmentService struct {
	appointments *repositories.AppointmentRepository
	patients     *repositories.PatientRepository
	medics       *repositories.MedicRepository
	availability *AvailabilityService
	broadcaster  Broadcaster
	logger       zerolog.Logger
	now          func() time.Time
}

func NewAppointmentService(
	appointments *repositories.AppointmentRepository,
	patients *repositories.PatientRepository,
	medics *repositories.MedicRepository,
	availability *AvailabilityService,
	broadcaster Broadcaster,
	logger zerolog.Logger,
) *AppointmentService {
	return &AppointmentService{
		appointments: appointments,
		patients:     patients,
		medics:       medics,
		availability: availability,
		broadcaster:  broadcaster,
		logger:       logger,
		now:          time.Now,
	}
}

// SetBroadcaster replaces the change listener. It is used at startup, where
// the hub and the service need each other.
func (s *AppointmentService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// clinicNow returns the current time in the clinic timezone.
func (s *AppointmentService) clinicNow(ctx context.Context) (time.Time, error) {
	loc, err := s.availability.Location(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return s.now().In(loc), nil
}

// SweepMissed marks overdue untouched appointments as missed and returns the clinic's now.
func (s *AppointmentService) SweepMissed(ctx context.Context) (time.Time, error) {
	now, err := s.clinicNow(ctx)
	if err != nil {
		return time.Time{}, err
	}
	n, err := s.appointments.SweepMissed(ctx, now)
	if err != nil {
		return time.Time{}, err
	}
	if n > 0 {
		metrics.AddMissed(n)
		s.logger.Info().Int64("count", n).Msg("appointments marked missed")
	}
	return now, nil
}

// Get returns one appointment after the missed sweep.
func (s *AppointmentService) Get(ctx context.Context, id string) (*models.Appointment, error) {
	if _, err := s.SweepMissed(ctx); err != nil {
		return nil, err
	}
	return s.appointments.FindByID(ctx, id)
}

// List returns the appointments of a view after the missed sweep.
func (s *AppointmentService) List(ctx context.Context, q scheduling.ViewQuery) (scheduling.ViewQuery, []models.Appointment, error) {
	now, err := s.SweepMissed(ctx)
	if err != nil {
		return q, nil, err
	}
	q, err = resolveView(q, now)
	if err != nil {
		return q, nil, err
	}
	appointments, err := s.appointments.FindInRange(ctx, q.StartDate, q.EndDate, q.MedicID)
	if err != nil {
		return q, nil, err
	}
	return q, appointments, nil
}

// View answers a calendar query for tenant with formatted records.
func (s *AppointmentService) View(ctx context.Context, tenant string, q scheduling.ViewQuery) (scheduling.ViewQuery, []scheduling.Record, error) {
	ctx = database.WithTenant(ctx, tenant)
	q, appointments, err := s.List(ctx, q)
	if err != nil {
		return q, nil, err
	}
	records := make([]scheduling.Record, 0, len(appointments))
	for _, a := range appointments {
		records = append(records, FormatAppointment(a))
	}
	return q, records, nil
}

// resolveView fills missing dates: no dates means the current Monday to
// Sunday, a single date means the seven days starting or ending there.
func resolveView(q scheduling.ViewQuery, now time.Time) (scheduling.ViewQuery, error) {
	if err := validation.ValidateStruct(&q,
		validation.Field(&q.StartDate, utils.Date),
		validation.Field(&q.EndDate, utils.Date),
	); err != nil {
		return q, utils.AsValidationError(err)
	}
	switch {
	case q.StartDate == "" && q.EndDate == "":
		q.StartDate, q.EndDate = scheduling.CurrentWeek(now, now.Location())
	case q.EndDate == "":
		start, _ := scheduling.ParseDate(q.StartDate, now.Location())
		q.EndDate = start.AddDate(0, 0, 6).Format(scheduling.DateLayout)
	case q.StartDate == "":
		end, _ := scheduling.ParseDate(q.EndDate, now.Location())
		q.StartDate = end.AddDate(0, 0, -6).Format(scheduling.DateLayout)
	}
	if q.EndDate < q.StartDate {
		return q, scheduling.Validationf("end date %s is before start date %s", q.EndDate, q.StartDate)
	}
	return q, nil
}

// Create books an appointment directly, bypassing patient requests.
func (s *AppointmentService) Create(ctx context.Context, input AppointmentInput) (*models.Appointment, error) {
	if err := input.Validate(); err != nil {
		return nil, utils.AsValidationError(err)
	}
	clock, err := scheduling.NormalizeClock(input.Time)
	if err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByID(ctx, input.PatientUserID); err != nil {
		return nil, err
	}
	if _, err := s.medics.GetByID(ctx, input.MedicUserID); err != nil {
		return nil, err
	}
	treatments, price, err := s.buildTreatments(ctx, input.Treatments)
	if err != nil {
		return nil, err
	}
	if input.Price != nil {
		price = *input.Price
	}

	now, err := s.clinicNow(ctx)
	if err != nil {
		return nil, err
	}
	appointment := &models.Appointment{
		Date:          input.Date,
		Time:          clock,
		MedicUserID:   input.MedicUserID,
		PatientUserID: input.PatientUserID,
		Price:         price,
		IsDone:        input.IsDone,
		IsPaid:        input.IsPaid,
	}
	appointment.RefreshStatus(now)
	if err := s.appointments.Create(ctx, appointment, treatments, now); err != nil {
		return nil, err
	}

	created, err := s.appointments.FindByID(ctx, appointment.AppointmentID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("appointment_id", created.AppointmentID).Msg("appointment created")
	s.publish(ctx, func(tenant string) { s.broadcaster.AppointmentCreated(tenant, FormatAppointment(*created)) })
	return created, nil
}

// Update applies the set fields, recomputes the status and replaces the
// treatment list when one is given, all in one transaction.
func (s *AppointmentService) Update(ctx context.Context, id string, input AppointmentUpdate) (*models.Appointment, error) {
	if err := input.Validate(); err != nil {
		return nil, utils.AsValidationError(err)
	}
	now, err := s.SweepMissed(ctx)
	if err != nil {
		return nil, err
	}
	appointment, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Date != nil {
		appointment.Date = *input.Date
	}
	if input.Time != nil {
		clock, err := scheduling.NormalizeClock(*input.Time)
		if err != nil {
			return nil, err
		}
		appointment.Time = clock
	}
	if input.MedicUserID != nil && *input.MedicUserID != appointment.MedicUserID {
		if _, err := s.medics.GetByID(ctx, *input.MedicUserID); err != nil {
			return nil, err
		}
		appointment.MedicUserID = *input.MedicUserID
	}
	if input.PatientUserID != nil && *input.PatientUserID != appointment.PatientUserID {
		if _, err := s.patients.GetByID(ctx, *input.PatientUserID); err != nil {
			return nil, err
		}
		appointment.PatientUserID = *input.PatientUserID
	}
	if input.IsDone != nil {
		appointment.IsDone = *input.IsDone
	}
	if input.IsPaid != nil {
		appointment.IsPaid = *input.IsPaid
	}

	var treatments []models.AppointmentTreatment
	if input.Treatments != nil {
		var price decimal.Decimal
		treatments, price, err = s.buildTreatments(ctx, *input.Treatments)
		if err != nil {
			return nil, err
		}
		if input.Price == nil {
			appointment.Price = price
		}
	}
	if input.Price != nil {
		appointment.Price = *input.Price
	}

	appointment.RefreshStatus(now)
	if err := s.appointments.Save(ctx, appointment, treatments); err != nil {
		return nil, err
	}

	updated, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("appointment_id", id).Str("status", string(updated.Status)).Msg("appointment updated")
	s.publish(ctx, func(tenant string) { s.broadcaster.AppointmentUpdated(tenant, FormatAppointment(*updated)) })
	return updated, nil
}

// Delete removes an appointment and drops it from live calendars.
func (s *AppointmentService) Delete(ctx context.Context, id string) error {
	if err := s.appointments.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("appointment_id", id).Msg("appointment deleted")
	s.publish(ctx, func(tenant string) { s.broadcaster.AppointmentDeleted(tenant, id) })
	return nil
}

func (s *AppointmentService) publish(ctx context.Context, send func(tenant string)) {
	if s.broadcaster == nil {
		return
	}
	tenant, err := database.TenantFromContext(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("appointment change without tenant, not broadcast")
		return
	}
	send(tenant)
}

// buildTreatments resolves the inputs and sums their price.
func (s *AppointmentService) buildTreatments(ctx context.Context, inputs []TreatmentInput) ([]models.AppointmentTreatment, decimal.Decimal, error) {
	ids := make([]uint, 0, len(inputs))
	for i, in := range inputs {
		if err := in.Validate(); err != nil {
			return nil, decimal.Zero, scheduling.Validationf("treatment %d: %s", i, err.Error())
		}
		ids = append(ids, in.TreatmentID)
	}
	found, err := s.appointments.Treatments(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, err
	}

	total := decimal.Zero
	treatments := make([]models.AppointmentTreatment, 0, len(inputs))
	for _, in := range inputs {
		units := in.Units
		if units <= 0 {
			units = 1
		}
		total = total.Add(found[in.TreatmentID].Price.Mul(decimal.NewFromInt(int64(units))))
		treatments = append(treatments, models.AppointmentTreatment{
			TreatmentID:   in.TreatmentID,
			Units:         units,
			InvolvedTeeth: in.InvolvedTeeth,
			Prescription:  in.Prescription,
			Details:       in.Details,
		})
	}
	return treatments, total, nil
}

// FormatAppointment renders the calendar record of an appointment loaded with its details.
func FormatAppointment(a models.Appointment) scheduling.Record {
	end, err := scheduling.EndTime(a.Time, a.Durations())
	if err != nil {
		end = a.Time
	}
	record := scheduling.Record{
		AppointmentID: a.AppointmentID,
		Status:        a.Status,
		StartHour:     a.Time,
		EndHour:       end,
		Date:          a.Date,
		PatientID:     a.PatientUserID,
		MedicID:       a.MedicUserID,
		PatientUser:   a.Patient.FullName(),
		MedicUser:     a.Medic.FullName(),
	}
	if len(a.Treatments) > 0 {
		record.InitialTreatment = a.Treatments[0].Treatment.Name
		record.Color = a.Treatments[0].Treatment.Color
	}
	return record
}
