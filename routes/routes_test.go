package routes

import (
	"DentalClinic/cache"
	"DentalClinic/config"
	"DentalClinic/database"
	"DentalClinic/logger"
	"DentalClinic/metrics"
	"DentalClinic/models"
	"DentalClinic/scheduling"
	"DentalClinic/utils"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testBearer = "test-bearer"
	testKey    = "0123456789abcdef0123456789abcdef"
	testHost   = "smile.example.com"
	// 2030-01-07 is a Monday
	testDate = "2030-01-07"
)

type testServer struct {
	handler http.Handler
	db      *gorm.DB
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.Nop()

	dsn := fmt.Sprintf("file:%s_%%s?mode=memory&cache=shared", uuid.New().String())
	tenants, err := database.NewTenantManager(4, database.DSNOpener(database.DriverSQLite, dsn, false), log)
	require.NoError(t, err)
	t.Cleanup(tenants.Close)

	db, err := tenants.Tenant(context.Background(), "smile")
	require.NoError(t, err)

	tokens, err := utils.NewTokenIssuer(testKey)
	require.NoError(t, err)
	token, err := tokens.GenerateAccessToken("staff-1", utils.RoleReceptionist, "smile")
	require.NoError(t, err)

	cfg := &config.AppConfig{
		Env:         "test",
		BaseDomain:  "example.com",
		BearerToken: testBearer,
		Database:    config.DatabaseConfig{MaxTenants: 4},
		Clinic:      config.ClinicConfig{Timezone: "UTC", AvailabilityWindow: 14, SlotStepMinutes: 60},
		HTTP: config.HTTPConfig{
			AllowedOrigins: "*",
			RateLimitRPS:   1000,
			RateLimitBurst: 1000,
			RequestTimeout: 5 * time.Second,
		},
	}
	metrics.Register()
	handler, hub := SetupRoutes(Dependencies{
		Config:  cfg,
		Tenants: tenants,
		Cache:   cache.NewCache(nil),
		Locker:  database.NewLocker(nil),
		Tokens:  tokens,
		Logger:  log,
	})
	t.Cleanup(hub.Close)

	require.NoError(t, db.Create(&models.Medic{ID: "m1", FirstName: "Ana", LastName: "Popescu"}).Error)
	require.NoError(t, db.Create(&models.WorkingHours{MedicID: "m1", DayOfWeek: "Monday", StartTime: "09:00", EndTime: "17:00"}).Error)
	require.NoError(t, db.Create(&models.Patient{ID: "p1", FirstName: "Ion", LastName: "Ionescu"}).Error)

	return &testServer{handler: handler, db: db, token: token}
}

func (s *testServer) do(t *testing.T, method, target string, body interface{}, staff bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Host = testHost
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testBearer)
	if staff {
		req.Header.Set("X-Access-Token", s.token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

func TestPublicRoutes(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dental_clinic_")
}

func TestAvailabilityFlow(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/availability/time-slots?date="+testDate+"&medic_id=m1", nil)
	req.Host = testHost
	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodGet, "/availability/time-slots?date="+testDate+"&medic_id=m1", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var slots struct {
		AvailableTimeSlots []string `json:"availableTimeSlots"`
	}
	decode(t, w, &slots)
	assert.Len(t, slots.AvailableTimeSlots, 8)

	request := map[string]string{
		"patient_id":     "p1",
		"medic_id":       "m1",
		"requested_date": testDate,
		"requested_time": "10:00",
		"reason":         "Checkup",
	}
	w = srv.do(t, http.MethodPost, "/availability/request", request, false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.PatientRequest
	decode(t, w, &created)
	assert.Equal(t, models.RequestPending, created.Status)

	w = srv.do(t, http.MethodPost, "/availability/request", request, false)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var conflict struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	decode(t, w, &conflict)
	assert.Equal(t, string(scheduling.ReasonAlreadyBooked), conflict.Reason)
	assert.NotEmpty(t, conflict.Error)

	w = srv.do(t, http.MethodGet, "/availability/time-slots?date="+testDate+"&medic_id=m1", nil, false)
	decode(t, w, &slots)
	assert.NotContains(t, slots.AvailableTimeSlots, "10:00")

	w = srv.do(t, http.MethodGet, "/availability/time-slots?date=tomorrow&medic_id=m1", nil, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodGet, "/availability/dates?medic_id=ghost", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// deciding is staff only
	target := fmt.Sprintf("/availability/requests/%d", created.ID)
	w = srv.do(t, http.MethodPut, target, map[string]string{"status": "rejected"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodGet, "/availability/requests", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []models.PatientRequest
	decode(t, w, &pending)
	assert.Len(t, pending, 1)

	w = srv.do(t, http.MethodPut, target, map[string]string{"status": "rejected"}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = srv.do(t, http.MethodPut, target, map[string]string{"status": "approved"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPost, "/availability/request", request, false)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestUnknownClinic(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/availability/dates", nil)
	req.Host = "localhost"
	req.Header.Set("Authorization", "Bearer "+testBearer)
	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAppointmentsPushedToLiveCalendar(t *testing.T) {
	srv := newTestServer(t)
	minutes := 45
	treatment := models.Treatment{Name: "Filling", Color: "#ff0000", Duration: &minutes}
	require.NoError(t, srv.db.Create(&treatment).Error)

	server := httptest.NewServer(srv.handler)
	t.Cleanup(server.Close)

	header := http.Header{}
	header.Set("X-Clinic-Tenant", "smile")
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	read := func(dest interface{}) {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "appointments", msg.Type)
		require.NoError(t, json.Unmarshal(msg.Data, dest))
	}

	require.NoError(t, conn.WriteJSON(scheduling.ViewQuery{StartDate: testDate}))
	var initial []scheduling.Record
	read(&initial)
	assert.Empty(t, initial)

	w := srv.do(t, http.MethodPost, "/appointments", map[string]interface{}{
		"date":            testDate,
		"time":            "09:00",
		"medic_user_id":   "m1",
		"patient_user_id": "p1",
		"treatments":      []map[string]interface{}{{"treatment_id": treatment.ID}},
	}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Appointment
	decode(t, w, &created)

	var pushed scheduling.Record
	read(&pushed)
	assert.Equal(t, created.AppointmentID, pushed.AppointmentID)
	assert.Equal(t, "09:45", pushed.EndHour)
	assert.Equal(t, "Filling", pushed.InitialTreatment)

	w = srv.do(t, http.MethodGet, "/appointments?start_date="+testDate, nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		StartDate    string              `json:"startDate"`
		EndDate      string              `json:"endDate"`
		Appointments []scheduling.Record `json:"appointments"`
	}
	decode(t, w, &list)
	assert.Equal(t, "2030-01-13", list.EndDate)
	require.Len(t, list.Appointments, 1)

	w = srv.do(t, http.MethodDelete, "/appointments/"+created.AppointmentID, nil, true)
	require.Equal(t, http.StatusNoContent, w.Code)

	var remaining []scheduling.Record
	read(&remaining)
	assert.Empty(t, remaining)

	w = srv.do(t, http.MethodGet, "/appointments/"+created.AppointmentID, nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
