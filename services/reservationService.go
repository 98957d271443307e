package services

import (
	"DentalClinic/database"
	"DentalClinic/metrics"
	"DentalClinic/models"
	"DentalClinic/repositories"
	"DentalClinic/scheduling"
	"DentalClinic/utils"
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	reservationLockTTL     = 10 * time.Second
	reservationLockRetries = 3
	reservationLockDelay   = 100 * time.Millisecond
)

// Notifier is told about every accepted request.
type Notifier interface {
	RequestCreated(recipient string, request models.PatientRequest, patient models.Patient)
}

// ReservationInput is a patient's ask for a date and time, optionally with a given medic.
type ReservationInput struct {
	PatientID     string `json:"patient_id"`
	MedicID       string `json:"medic_id"`
	RequestedDate string `json:"requested_date"`
	RequestedTime string `json:"requested_time"`
	Reason        string `json:"reason"`
	Notes         string `json:"notes"`
}

func (i ReservationInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.PatientID, validation.Required),
		validation.Field(&i.RequestedDate, validation.Required, utils.Date),
		validation.Field(&i.RequestedTime, validation.Required, utils.Clock),
		validation.Field(&i.Reason, validation.Required, validation.Length(1, 500)),
		validation.Field(&i.Notes, validation.Length(0, 2000)),
	)
}

// ReservationService turns patient requests into reserved slots.
type ReservationService struct {
	availability *AvailabilityService
	schedule     *repositories.AvailabilityRepository
	requests     *repositories.PatientRequestRepository
	patients     *repositories.PatientRepository
	medics       *repositories.MedicRepository
	locker       *database.Locker
	notifier     Notifier
	logger       zerolog.Logger
}

func NewReservationService(
	availability *AvailabilityService,
	schedule *repositories.AvailabilityRepository,
	requests *repositories.PatientRequestRepository,
	patients *repositories.PatientRepository,
	medics *repositories.MedicRepository,
	locker *database.Locker,
	notifier Notifier,
	logger zerolog.Logger,
) *ReservationService {
	return &ReservationService{
		availability: availability,
		schedule:     schedule,
		requests:     requests,
		patients:     patients,
		medics:       medics,
		locker:       locker,
		notifier:     notifier,
		logger:       logger,
	}
}

// Reserve checks the requested slot, reserves it and records a pending
// request, all or nothing. A taken slot yields a *scheduling.SlotError.
func (s *ReservationService) Reserve(ctx context.Context, input ReservationInput) (*models.PatientRequest, error) {
	request, err := s.reserve(ctx, input)
	recordReservation(err)
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *ReservationService) reserve(ctx context.Context, input ReservationInput) (*models.PatientRequest, error) {
	if err := input.Validate(); err != nil {
		return nil, utils.AsValidationError(err)
	}
	clock, err := scheduling.NormalizeClock(input.RequestedTime)
	if err != nil {
		return nil, err
	}
	end, err := s.availability.SlotEnd(clock)
	if err != nil {
		return nil, err
	}

	patient, err := s.patients.GetByID(ctx, input.PatientID)
	if err != nil {
		return nil, err
	}
	if input.MedicID != "" {
		if _, err := s.medics.GetByID(ctx, input.MedicID); err != nil {
			return nil, err
		}
		if err := s.availability.ExplainSlot(ctx, input.MedicID, input.RequestedDate, clock); err != nil {
			return nil, err
		}
	}

	release, err := s.lock(ctx, input.MedicID, input.RequestedDate, clock)
	if err != nil {
		return nil, err
	}
	defer release()

	request := &models.PatientRequest{
		PatientID:     patient.ID,
		RequestedDate: input.RequestedDate,
		RequestedTime: clock,
		Status:        models.RequestPending,
		Reason:        input.Reason,
		Notes:         input.Notes,
	}
	err = s.schedule.Transaction(ctx, func(tx *gorm.DB) error {
		if input.MedicID != "" {
			medicID := input.MedicID
			slot, err := s.schedule.ReserveSlot(tx, medicID, input.RequestedDate, clock, end)
			if err != nil {
				return err
			}
			request.MedicID = &medicID
			request.AvailabilitySlotID = &slot.ID
		} else {
			window, err := s.schedule.DecrementClinicAvailability(tx, input.RequestedDate, clock, end)
			if err != nil {
				return err
			}
			request.ClinicAvailabilityID = &window.ID
		}
		return s.requests.Create(tx, request)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Uint("request_id", request.ID).
		Str("patient_id", request.PatientID).
		Str("date", request.RequestedDate).
		Str("time", request.RequestedTime).
		Msg("appointment request reserved")
	s.notify(ctx, *request, *patient)
	return request, nil
}

// lock takes the redis lock of the slot. It only narrows contention; the
// transaction stays the authority, so a busy or unreachable lock is not fatal.
func (s *ReservationService) lock(ctx context.Context, medicID, date, clock string) (func(), error) {
	tenant, err := database.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("reservation_lock:%s:%s:%s:%s", tenant, poolKey(medicID), date, clock)
	value := uuid.New().String()

	var locked bool
	for i := 0; i < reservationLockRetries; i++ {
		locked, err = s.locker.Acquire(ctx, key, value, reservationLockTTL)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to acquire reservation lock")
			return func() {}, nil
		}
		if locked {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(reservationLockDelay):
		}
	}
	if !locked {
		s.logger.Debug().Str("key", key).Msg("reservation lock busy, relying on the transaction")
		return func() {}, nil
	}
	return func() {
		if err := s.locker.Release(context.Background(), key, value); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to release reservation lock")
		}
	}, nil
}

func (s *ReservationService) notify(ctx context.Context, request models.PatientRequest, patient models.Patient) {
	if s.notifier == nil {
		return
	}
	settings, err := s.schedule.Settings(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load clinic settings for notification")
		return
	}
	s.notifier.RequestCreated(settings.NotificationEmail, request, patient)
}

// Decide approves or rejects a pending request. Rejection gives the reserved
// slot or clinic provider back in the same transaction.
func (s *ReservationService) Decide(ctx context.Context, id uint, decision string) (*models.PatientRequest, error) {
	if err := validation.Validate(decision, validation.Required, validation.In(models.RequestApproved, models.RequestRejected)); err != nil {
		return nil, scheduling.Validationf("status %s", err.Error())
	}

	var request *models.PatientRequest
	err := s.requests.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		request, err = s.requests.Lock(tx, id)
		if err != nil {
			return err
		}
		if request.Status != models.RequestPending {
			return scheduling.Validationf("request %d is already %s", id, request.Status)
		}
		ok, err := s.requests.Transition(tx, id, models.RequestPending, decision)
		if err != nil {
			return err
		}
		if !ok {
			return scheduling.Validationf("request %d is no longer pending", id)
		}
		request.Status = decision
		if decision != models.RequestRejected {
			return nil
		}
		if request.AvailabilitySlotID != nil {
			return s.schedule.ReleaseSlot(tx, *request.AvailabilitySlotID)
		}
		if request.ClinicAvailabilityID != nil {
			return s.schedule.IncrementClinicAvailability(tx, *request.ClinicAvailabilityID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncRequestDecision(decision)
	s.logger.Info().Uint("request_id", id).Str("decision", decision).Msg("appointment request decided")
	return request, nil
}

// ListPending returns the requests waiting for a decision.
func (s *ReservationService) ListPending(ctx context.Context) ([]models.PatientRequest, error) {
	return s.requests.ListPending(ctx)
}

func recordReservation(err error) {
	var slotErr *scheduling.SlotError
	switch {
	case err == nil:
		metrics.IncReservation("accepted")
	case errors.As(err, &slotErr):
		metrics.IncReservation(string(slotErr.Reason))
	case errors.Is(err, scheduling.ErrValidation):
		metrics.IncReservation("invalid")
	case errors.Is(err, scheduling.ErrNotFound):
		metrics.IncReservation("not_found")
	default:
		metrics.IncReservation("error")
	}
}
