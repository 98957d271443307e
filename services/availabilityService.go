package services

import (
	"DentalClinic/cache"
	"DentalClinic/config"
	"DentalClinic/database"
	"DentalClinic/models"
	"DentalClinic/repositories"
	"DentalClinic/scheduling"
	"DentalClinic/utils"
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"
)

// DatesCacheExpiry bounds how stale a cached list of available dates can be.
const DatesCacheExpiry = 10 * time.Minute

// poolKey names the booking pool of medicID in cache and lock keys. Medic ids
// are prefixed so none of them can name the clinic-wide pool.
func poolKey(medicID string) string {
	if medicID == "" {
		return "clinic"
	}
	return "medic:" + medicID
}

// AvailabilityService answers which dates and times can be booked.
type AvailabilityService struct {
	medics   *repositories.MedicRepository
	schedule *repositories.AvailabilityRepository
	cache    *cache.Cache
	clinic   config.ClinicConfig
	logger   zerolog.Logger
	now      func() time.Time
}

func NewAvailabilityService(medics *repositories.MedicRepository, schedule *repositories.AvailabilityRepository, cache *cache.Cache, clinic config.ClinicConfig, logger zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{
		medics:   medics,
		schedule: schedule,
		cache:    cache,
		clinic:   clinic,
		logger:   logger,
		now:      time.Now,
	}
}

// Location returns the timezone of the clinic in ctx.
func (s *AvailabilityService) Location(ctx context.Context) (*time.Location, error) {
	return s.schedule.Location(ctx, s.clinic.Location())
}

// Today returns midnight of the current day in the clinic timezone.
func (s *AvailabilityService) Today(ctx context.Context) (time.Time, error) {
	loc, err := s.Location(ctx)
	if err != nil {
		return time.Time{}, err
	}
	now := s.now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
}

// AvailableDates lists the bookable dates of the configured window starting
// today. Without a medic the dates come from the clinic-wide capacity rows, the
// same rows AvailableTimeSlots and reservations use.
func (s *AvailabilityService) AvailableDates(ctx context.Context, medicID string) ([]string, error) {
	today, err := s.Today(ctx)
	if err != nil {
		return nil, err
	}
	window := make([]time.Time, 0, s.clinic.AvailabilityWindow)
	for i := 0; i < s.clinic.AvailabilityWindow; i++ {
		window = append(window, today.AddDate(0, 0, i))
	}

	// clinic counters move with every booking, so only medic dates are cached
	if medicID == "" {
		return s.clinicDates(ctx, window)
	}

	cacheKey, err := datesCacheKey(ctx, medicID, today.Format(scheduling.DateLayout))
	if err != nil {
		return nil, err
	}
	if s.cache.Enabled() {
		var cached []string
		found, err := s.cache.GetJSON(ctx, cacheKey, &cached)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", cacheKey).Msg("failed to read available dates from cache")
		} else if found {
			return cached, nil
		}
	}

	if _, err := s.medics.GetByID(ctx, medicID); err != nil {
		return nil, err
	}
	hours, daysOff, err := s.medicCalendar(ctx, medicID)
	if err != nil {
		return nil, err
	}
	dates := scheduling.AvailableDates(window, hours, daysOff)

	if s.cache.Enabled() {
		if err := s.cache.SetJSON(ctx, cacheKey, dates, DatesCacheExpiry); err != nil {
			s.logger.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache available dates")
		}
	}
	return dates, nil
}

// clinicDates keeps the window days that offer at least one clinic-wide slot.
func (s *AvailabilityService) clinicDates(ctx context.Context, window []time.Time) ([]string, error) {
	dates := make([]string, 0, len(window))
	if len(window) == 0 {
		return dates, nil
	}
	rows, err := s.schedule.ClinicAvailabilityBetween(ctx,
		window[0].Format(scheduling.DateLayout),
		window[len(window)-1].Format(scheduling.DateLayout),
	)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string][]models.ClinicAvailability)
	for _, row := range rows {
		byDate[row.Date] = append(byDate[row.Date], row)
	}
	for _, day := range window {
		d := day.Format(scheduling.DateLayout)
		if len(s.clinicSlots(byDate[d])) > 0 {
			dates = append(dates, d)
		}
	}
	return dates, nil
}

func (s *AvailabilityService) clinicSlots(rows []models.ClinicAvailability) []string {
	windows := make([]scheduling.WorkingWindow, 0, len(rows))
	for _, row := range rows {
		windows = append(windows, scheduling.WorkingWindow{Start: row.StartTime, End: row.EndTime})
	}
	return scheduling.WindowSlots(windows, s.clinic.SlotStep())
}

// AvailableTimeSlots lists the free step starts on date. Without a medic the
// slots come from the clinic-wide capacity rows that still have providers.
func (s *AvailabilityService) AvailableTimeSlots(ctx context.Context, date, medicID string) ([]string, error) {
	day, err := s.parseDate(ctx, date)
	if err != nil {
		return nil, err
	}

	if medicID == "" {
		rows, err := s.schedule.ClinicAvailabilityOn(ctx, date)
		if err != nil {
			return nil, err
		}
		return s.clinicSlots(rows), nil
	}

	if _, err := s.medics.GetByID(ctx, medicID); err != nil {
		return nil, err
	}
	hours, daysOff, blocked, err := s.dayCalendar(ctx, medicID, day)
	if err != nil {
		return nil, err
	}
	return scheduling.AvailableTimeSlots(day, hours, daysOff, blocked, s.clinic.SlotStep()), nil
}

// ExplainSlot returns nil when the medic can take clock on date, otherwise a
// *scheduling.SlotError naming the reason.
func (s *AvailabilityService) ExplainSlot(ctx context.Context, medicID, date, clock string) error {
	day, err := s.parseDate(ctx, date)
	if err != nil {
		return err
	}
	hours, daysOff, blocked, err := s.dayCalendar(ctx, medicID, day)
	if err != nil {
		return err
	}
	return scheduling.ExplainSlot(day, clock, hours, daysOff, blocked, s.clinic.SlotStep())
}

// SlotEnd returns the end of the step that starts at clock.
func (s *AvailabilityService) SlotEnd(clock string) (string, error) {
	start, err := scheduling.ParseClock(clock)
	if err != nil {
		return "", err
	}
	return scheduling.FormatClock((start + int(s.clinic.SlotStep()/time.Minute)) % (24 * 60)), nil
}

func (s *AvailabilityService) parseDate(ctx context.Context, date string) (time.Time, error) {
	if err := validation.Validate(date, validation.Required, utils.Date); err != nil {
		return time.Time{}, scheduling.Validationf("date %s", err.Error())
	}
	loc, err := s.Location(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return scheduling.ParseDate(date, loc)
}

// dayCalendar loads only the weekday window of day, plus days off and blocked slots.
func (s *AvailabilityService) dayCalendar(ctx context.Context, medicID string, day time.Time) (scheduling.WeeklyHours, []scheduling.DayOffSpan, []scheduling.Interval, error) {
	weekday := scheduling.DayName(day)
	row, err := s.schedule.WorkingHoursForDay(ctx, medicID, weekday)
	if err != nil {
		return nil, nil, nil, err
	}
	hours := scheduling.WeeklyHours{}
	if row != nil {
		hours[weekday] = scheduling.WorkingWindow{Start: row.StartTime, End: row.EndTime}
	}

	daysOff, err := s.daysOff(ctx, medicID)
	if err != nil {
		return nil, nil, nil, err
	}

	slots, err := s.schedule.BlockedSlots(ctx, medicID, day.Format(scheduling.DateLayout))
	if err != nil {
		return nil, nil, nil, err
	}
	blocked := make([]scheduling.Interval, 0, len(slots))
	for _, slot := range slots {
		interval, err := scheduling.NewInterval(slot.StartTime, slot.EndTime, s.clinic.SlotStep())
		if err != nil {
			s.logger.Warn().Err(err).Uint("slot_id", slot.ID).Msg("skipping malformed availability slot")
			continue
		}
		blocked = append(blocked, interval)
	}
	return hours, daysOff, blocked, nil
}

func (s *AvailabilityService) medicCalendar(ctx context.Context, medicID string) (scheduling.WeeklyHours, []scheduling.DayOffSpan, error) {
	rows, err := s.schedule.WorkingHours(ctx, medicID)
	if err != nil {
		return nil, nil, err
	}
	hours := make(scheduling.WeeklyHours, len(rows))
	for _, row := range rows {
		day, err := scheduling.ParseWeekday(row.DayOfWeek)
		if err != nil {
			s.logger.Warn().Err(err).Uint("working_hours_id", row.ID).Msg("skipping working hours with unknown weekday")
			continue
		}
		hours[day] = scheduling.WorkingWindow{Start: row.StartTime, End: row.EndTime}
	}
	daysOff, err := s.daysOff(ctx, medicID)
	if err != nil {
		return nil, nil, err
	}
	return hours, daysOff, nil
}

func (s *AvailabilityService) daysOff(ctx context.Context, medicID string) ([]scheduling.DayOffSpan, error) {
	rows, err := s.schedule.DaysOff(ctx, medicID)
	if err != nil {
		return nil, err
	}
	spans := make([]scheduling.DayOffSpan, 0, len(rows))
	for _, row := range rows {
		span, err := row.Span()
		if err != nil {
			s.logger.Warn().Err(err).Uint("day_off_id", row.ID).Msg("skipping malformed day off")
			continue
		}
		spans = append(spans, span)
	}
	return spans, nil
}

// WorkingHoursInput is one weekday window of a medic.
type WorkingHoursInput struct {
	DayOfWeek string `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (i WorkingHoursInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.DayOfWeek, validation.Required, utils.Weekday),
		validation.Field(&i.StartTime, validation.Required, utils.Clock),
		validation.Field(&i.EndTime, validation.Required, utils.Clock),
	)
}

// ReplaceWorkingHours swaps the whole weekly schedule of a medic.
func (s *AvailabilityService) ReplaceWorkingHours(ctx context.Context, medicID string, input []WorkingHoursInput) ([]models.WorkingHours, error) {
	if _, err := s.medics.GetByID(ctx, medicID); err != nil {
		return nil, err
	}
	hours := make([]models.WorkingHours, 0, len(input))
	for i, in := range input {
		if err := in.Validate(); err != nil {
			return nil, scheduling.Validationf("working hours %d: %s", i, err.Error())
		}
		window := scheduling.WorkingWindow{Start: in.StartTime, End: in.EndTime}
		if _, _, ok := window.Minutes(); !ok {
			return nil, scheduling.Validationf("working hours %d: end must be after start", i)
		}
		hours = append(hours, models.WorkingHours{
			MedicID:   medicID,
			DayOfWeek: in.DayOfWeek,
			StartTime: in.StartTime,
			EndTime:   in.EndTime,
		})
	}
	if err := s.schedule.ReplaceWorkingHours(ctx, medicID, hours); err != nil {
		return nil, err
	}
	s.invalidateDates(ctx, medicID)
	return hours, nil
}

// DayOffInput describes an exception period.
type DayOffInput struct {
	Name         string `json:"name"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	RepeatYearly bool   `json:"repeat_yearly"`
}

func (i DayOffInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&i.StartDate, validation.Required, utils.Date),
		validation.Field(&i.EndDate, utils.Date),
	)
}

// CreateDayOff adds an exception period to a medic.
func (s *AvailabilityService) CreateDayOff(ctx context.Context, medicID string, input DayOffInput) (*models.DayOff, error) {
	if err := input.Validate(); err != nil {
		return nil, utils.AsValidationError(err)
	}
	if _, err := s.medics.GetByID(ctx, medicID); err != nil {
		return nil, err
	}
	dayOff := &models.DayOff{
		MedicID:      medicID,
		Name:         input.Name,
		StartDate:    input.StartDate,
		RepeatYearly: input.RepeatYearly,
	}
	if input.EndDate != "" {
		end := input.EndDate
		dayOff.EndDate = &end
	}
	if err := s.schedule.CreateDayOff(ctx, dayOff); err != nil {
		return nil, err
	}
	s.invalidateDates(ctx, medicID)
	return dayOff, nil
}

// DeleteDayOff removes an exception period of a medic.
func (s *AvailabilityService) DeleteDayOff(ctx context.Context, medicID string, id uint) error {
	if err := s.schedule.DeleteDayOff(ctx, medicID, id); err != nil {
		return err
	}
	s.invalidateDates(ctx, medicID)
	return nil
}

// invalidateDates drops the cached dates of the medic.
func (s *AvailabilityService) invalidateDates(ctx context.Context, medicID string) {
	if !s.cache.Enabled() {
		return
	}
	pattern, err := datesCacheKey(ctx, medicID, "*")
	if err != nil {
		return
	}
	if err := s.cache.DeleteAll(ctx, pattern); err != nil {
		s.logger.Warn().Err(err).Str("pattern", pattern).Msg("failed to invalidate available dates")
	}
}

func datesCacheKey(ctx context.Context, medicID, start string) (string, error) {
	tenant, err := database.TenantFromContext(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:available_dates:%s:%s", tenant, poolKey(medicID), start), nil
}
