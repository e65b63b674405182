package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Freeeeeet/appointment_service/internal/lock"
	"github.com/Freeeeeet/appointment_service/internal/model"
	"github.com/Freeeeeet/appointment_service/internal/repository/memory"
	"github.com/Freeeeeet/appointment_service/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	policy, err := model.NewBucketPolicy(time.UTC, model.BucketModeCalendar)
	require.NoError(t, err)

	store := memory.NewStore()
	locker := lock.NewLocal(time.Second)
	agenda := service.NewAgendaService(store, locker, policy, nil, zap.NewNop())
	booking := service.NewBookingService(store, agenda, locker, policy, nil, nil, zap.NewNop())

	return NewRouter(RouterConfig{
		Handler:   NewHandler(agenda, booking, zap.NewNop()),
		JWTSecret: testSecret,
		Logger:    zap.NewNop(),
	})
}

func token(t *testing.T, secret string, sub int64, role, name string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"name": name,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, h http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, newTestRouter(t), http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestAuth(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/agenda", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/agenda", token(t, "other-secret", 7, RoleDoctor, "House"), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/agenda", token(t, testSecret, 3, RolePatient, "Ana"), map[string]any{
		"date": "2024-11-24T15:00:00Z", "isAvailable": true,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/agenda", token(t, testSecret, 3, RolePatient, "Ana"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAgendaRoutes(t *testing.T) {
	router := newTestRouter(t)
	doctor := token(t, testSecret, 7, RoleDoctor, "House")

	rec := doRequest(t, router, http.MethodPost, "/agenda", doctor, map[string]any{
		"date": "2024-11-24T15:00:00Z", "isAvailable": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var slot model.AgendaSlot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slot))
	assert.Equal(t, int64(7), slot.DoctorID)
	assert.True(t, slot.IsAvailable)

	rec = doRequest(t, router, http.MethodPost, "/agenda", doctor, map[string]any{
		"date": "2024-11-24T15:30:00Z", "isAvailable": false,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/agenda", doctor, map[string]any{"date": "2024-11-24T18:00:00Z"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/agenda", doctor, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/agenda/%d", slot.ID), doctor, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/agenda/doctor/7", doctor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var slots []model.AgendaSlot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slots))
	assert.Len(t, slots, 1)

	rec = doRequest(t, router, http.MethodPut, fmt.Sprintf("/agenda/doctor/%d", slot.ID), doctor, map[string]any{"isAvailable": false})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated model.AgendaSlot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.False(t, updated.IsAvailable)

	rec = doRequest(t, router, http.MethodGet, "/agenda/abc", doctor, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, fmt.Sprintf("/agenda/%d", slot.ID), doctor, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/agenda/%d", slot.ID), doctor, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAppointmentRoutes(t *testing.T) {
	router := newTestRouter(t)
	doctor := token(t, testSecret, 7, RoleDoctor, "House")
	patient := token(t, testSecret, 3, RolePatient, "Ana")

	rec := doRequest(t, router, http.MethodPost, "/agenda", doctor, map[string]any{
		"date": "2024-11-24T15:00:00Z", "isAvailable": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/appointment", patient, map[string]any{
		"doctorId": 7, "patientId": 3, "startDate": "2024-11-24T15:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var appointment model.Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appointment))
	assert.Equal(t, model.AppointmentStatusScheduled, appointment.Status)
	assert.True(t, appointment.EndDate.Equal(time.Date(2024, 11, 24, 16, 0, 0, 0, time.UTC)))

	rec = doRequest(t, router, http.MethodPost, "/appointment", patient, map[string]any{
		"doctorId": 9, "patientId": 3, "startDate": "2024-11-24T15:00:00Z",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/appointment", doctor, map[string]any{
		"doctorId": 7, "patientId": 3, "startDate": "2024-11-24T15:00:00Z",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/appointment", patient, map[string]any{"doctorId": 7, "patientId": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/appointment/doctor/7", doctor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var byDoctor []model.Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &byDoctor))
	assert.Len(t, byDoctor, 1)

	rec = doRequest(t, router, http.MethodGet, "/appointment/patient/3", patient, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodPut, fmt.Sprintf("/appointment/%d", appointment.ID), doctor, map[string]any{"status": "done"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, fmt.Sprintf("/appointment/%d", appointment.ID), patient, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/appointment/%d", appointment.ID), doctor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelled model.Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)

	rec = doRequest(t, router, http.MethodDelete, "/appointment/999", patient, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("%w: x", service.ErrValidation): http.StatusBadRequest,
		fmt.Errorf("%w: x", service.ErrNotFound):   http.StatusNotFound,
		fmt.Errorf("%w: x", service.ErrConflict):   http.StatusConflict,
		fmt.Errorf("%w: x", service.ErrBusy):       http.StatusServiceUnavailable,
		errNoClaims:                                http.StatusUnauthorized,
		errors.New("boom"):                         http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusOf(err), err.Error())
	}
}

func TestFail_BusySetsRetryAfter(t *testing.T) {
	h := &Handler{logger: zap.NewNop()}
	rec := httptest.NewRecorder()

	h.fail(rec, httptest.NewRequest(http.MethodPost, "/appointment", nil), fmt.Errorf("%w: booking:7", service.ErrBusy))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error": "resource busy, retry later: booking:7"}`, rec.Body.String())
}

func TestHandler_WithoutAuthMiddlewareIsUnauthorized(t *testing.T) {
	h := &Handler{logger: zap.NewNop()}
	rec := httptest.NewRecorder()

	h.CreateSlot(rec, httptest.NewRequest(http.MethodPost, "/agenda", bytes.NewBufferString(`{}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error": "no claims in context"}`, rec.Body.String())
}
