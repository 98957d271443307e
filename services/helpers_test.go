package services

import (
	"DentalClinic/cache"
	"DentalClinic/config"
	"DentalClinic/database"
	"DentalClinic/logger"
	"DentalClinic/models"
	"DentalClinic/repositories"
	"DentalClinic/scheduling"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testTenant = "clinic-a"

// monday is 2024-05-13 07:00 UTC.
var monday = time.Date(2024, 5, 13, 7, 0, 0, 0, time.UTC)

type testEnv struct {
	ctx          context.Context
	db           *gorm.DB
	cache        *cache.Cache
	schedule     *repositories.AvailabilityRepository
	requests     *repositories.PatientRequestRepository
	appointments *repositories.AppointmentRepository
	availability *AvailabilityService
	reservations *ReservationService
	lifecycle    *AppointmentService
	broadcaster  *recordingBroadcaster
	notifier     *recordingNotifier
}

func newTestEnv(t *testing.T, redisClient *redis.Client) *testEnv {
	t.Helper()

	log := logger.Nop()
	dsn := fmt.Sprintf("file:%s_%%s?mode=memory&cache=shared", uuid.New().String())
	tenants, err := database.NewTenantManager(4, database.DSNOpener(database.DriverSQLite, dsn, false), log)
	require.NoError(t, err)
	t.Cleanup(tenants.Close)

	ctx := database.WithTenant(context.Background(), testTenant)
	db, err := tenants.Tenant(ctx, testTenant)
	require.NoError(t, err)

	c := cache.NewCache(redisClient)
	medics := repositories.NewMedicRepository(tenants, c, log)
	patients := repositories.NewPatientRepository(tenants, c, log)
	schedule := repositories.NewAvailabilityRepository(tenants, c, log)
	requests := repositories.NewPatientRequestRepository(tenants, c, log)
	appointments := repositories.NewAppointmentRepository(tenants, c, log)

	clinic := config.ClinicConfig{Timezone: "UTC", AvailabilityWindow: 7, SlotStepMinutes: 60}
	availability := NewAvailabilityService(medics, schedule, c, clinic, log)
	availability.now = func() time.Time { return monday }

	notifier := &recordingNotifier{}
	reservations := NewReservationService(availability, schedule, requests, patients, medics, database.NewLocker(redisClient), notifier, log)

	broadcaster := &recordingBroadcaster{}
	lifecycle := NewAppointmentService(appointments, patients, medics, availability, broadcaster, log)
	lifecycle.now = func() time.Time { return monday }

	return &testEnv{
		ctx:          ctx,
		db:           db,
		cache:        c,
		schedule:     schedule,
		requests:     requests,
		appointments: appointments,
		availability: availability,
		reservations: reservations,
		lifecycle:    lifecycle,
		broadcaster:  broadcaster,
		notifier:     notifier,
	}
}

func (e *testEnv) seedMedic(t *testing.T, id string, hours ...models.WorkingHours) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.Medic{ID: id, FirstName: "Ana", LastName: "Popescu"}).Error)
	for _, h := range hours {
		h.MedicID = id
		require.NoError(t, e.db.Create(&h).Error)
	}
}

func (e *testEnv) seedPatient(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.Patient{ID: id, FirstName: "Ion", LastName: "Ionescu"}).Error)
}

func (e *testEnv) seedTreatment(t *testing.T, name, color string, minutes int, price string) models.Treatment {
	t.Helper()
	treatment := models.Treatment{Name: name, Color: color, Duration: &minutes}
	treatment.Price = decimal.RequireFromString(price)
	require.NoError(t, e.db.Create(&treatment).Error)
	return treatment
}

func hours(day, start, end string) models.WorkingHours {
	return models.WorkingHours{DayOfWeek: day, StartTime: start, EndTime: end}
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	created []scheduling.Record
	updated []scheduling.Record
	deleted []string
}

func (b *recordingBroadcaster) AppointmentCreated(tenant string, record scheduling.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, record)
}

func (b *recordingBroadcaster) AppointmentUpdated(tenant string, record scheduling.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updated = append(b.updated, record)
}

func (b *recordingBroadcaster) AppointmentDeleted(tenant string, appointmentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, appointmentID)
}

type recordingNotifier struct {
	mu       sync.Mutex
	requests []models.PatientRequest
}

func (n *recordingNotifier) RequestCreated(recipient string, request models.PatientRequest, patient models.Patient) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = append(n.requests, request)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.requests)
}
