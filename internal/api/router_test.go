package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/backend"
)

func newTestRouter(t *testing.T, requireToken bool, deps ...Dependency) (http.Handler, *backend.Store) {
	t.Helper()
	store := backend.NewStore(9, 17)
	store.AddBranch("Central")
	store.AddDepartment("Cardiology")
	require.NoError(t, store.AddDoctor(appointment.Doctor{Name: "Dr. Lee", BranchName: "Central", DepartmentName: "Cardiology"}))
	require.NoError(t, store.AddLeave("Dr. Lee", appointment.NewDate(2025, time.March, 12)))

	return NewRouter(RouterConfig{
		Store:        store,
		Logger:       zerolog.Nop(),
		Dependencies: deps,
		RequireToken: requireToken,
		Env:          "test",
		Version:      "v0",
	}), store
}

func token(t *testing.T, role, name string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": role,
		"name": name,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func call(t *testing.T, h http.Handler, method, path, tok, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestDirectoryAndLeave(t *testing.T) {
	h, _ := newTestRouter(t, false)

	rec := call(t, h, http.MethodGet, "/api/patient/profile/data", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	triple := decode[[]json.RawMessage](t, rec)
	require.Len(t, triple, 3)
	assert.JSONEq(t, `[{"name":"Dr. Lee","departmentName":"Cardiology","branchName":"Central"}]`, string(triple[0]))
	assert.JSONEq(t, `[{"name":"Central"}]`, string(triple[1]))

	rec = call(t, h, http.MethodGet, "/api/patient/profile/leave?doctorName=Dr.+Lee", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["2025-03-12"]`, rec.Body.String())

	rec = call(t, h, http.MethodGet, "/api/patient/profile/leave?doctorName=Dr.+Roy", "", "")
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = call(t, h, http.MethodGet, "/api/patient/profile/leave", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAndTakenSlots(t *testing.T) {
	h, _ := newTestRouter(t, false)
	ann := token(t, "patient", "Ann")
	body := `{"branchName":"Central","departmentName":"Cardiology","doctorName":"Dr. Lee","date":"2025-03-10","timeSlot":"09:00","roleName":"patient"}`

	rec := call(t, h, http.MethodPost, "/api/patient/profile/appointment", ann, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[appointment.Appointment](t, rec)
	assert.Equal(t, "Ann", created.PatientName)
	assert.Equal(t, appointment.StatusPending, created.Status)

	rec = call(t, h, http.MethodGet, "/api/patient/profile/appointment/slots?doctorName=Dr.+Lee&date=2025-03-10", ann, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["09:00"]`, rec.Body.String())

	rec = call(t, h, http.MethodPost, "/api/patient/profile/appointment", ann, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	errBody := decode[ErrorResponse](t, rec)
	assert.Equal(t, "slot_already_booked", errBody.Code)
	assert.NotEmpty(t, errBody.Message)

	rec = call(t, h, http.MethodPost, "/api/patient/profile/appointment", ann, `{"doctorName":"Dr. Lee","date":"2025-03-12","timeSlot":"09:00"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "doctor_on_leave", decode[ErrorResponse](t, rec).Code)

	rec = call(t, h, http.MethodPost, "/api/patient/profile/appointment", ann, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListIsScopedToCaller(t *testing.T) {
	h, store := newTestRouter(t, false)
	for _, p := range []struct{ name, slot string }{{"Ann", "09:00"}, {"Ann", "09:30"}, {"Bob", "10:00"}} {
		_, err := store.Create("patient", p.name, map[string]string{"doctorName": "Dr. Lee", "date": "2025-03-10", "timeSlot": p.slot})
		require.NoError(t, err)
	}

	rec := call(t, h, http.MethodGet, "/api/patient/profile/appointment?page=0&size=1", token(t, "patient", "Ann"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[appointment.Page](t, rec)
	assert.Equal(t, 2, page.TotalCount)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "09:00", page.Items[0].TimeSlot)

	rec = call(t, h, http.MethodGet, "/api/doctor/profile/appointment?size=10&direction=desc", token(t, "doctor", "Dr. Lee"), "")
	page = decode[appointment.Page](t, rec)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, "10:00", page.Items[0].TimeSlot)

	rec = call(t, h, http.MethodGet, "/api/admin/profile/appointment?size=10&search=bob", "", "")
	page = decode[appointment.Page](t, rec)
	assert.Equal(t, 1, page.TotalCount)

	rec = call(t, h, http.MethodGet, "/api/admin/profile/appointment?status=lost", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = call(t, h, http.MethodGet, "/api/admin/profile/appointment?page=-1", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRescheduleAndCancel(t *testing.T) {
	h, store := newTestRouter(t, false)
	a, err := store.Create("patient", "Ann", map[string]string{"doctorName": "Dr. Lee", "date": "2025-03-10", "timeSlot": "09:00"})
	require.NoError(t, err)
	path := "/api/patient/profile/appointment/" + a.ID

	rec := call(t, h, http.MethodPut, path, "", `{"id":"`+a.ID+`","date":"2025-03-11","timeSlot":"10:30"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[appointment.Appointment](t, rec)
	assert.Equal(t, "2025-03-11", moved.Date.String())
	assert.Equal(t, "10:30", moved.TimeSlot)

	rec = call(t, h, http.MethodPut, path, "", `{"id":"other","date":"2025-03-11","timeSlot":"10:30"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = call(t, h, http.MethodPut, "/api/patient/profile/appointment/missing", "", `{"date":"2025-03-11","timeSlot":"10:30"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = call(t, h, http.MethodPut, path, "", `{"date":"2025-03-11","timeSlot":"17:30"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h, http.MethodPut, path+"/cancel", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	rec = call(t, h, http.MethodPut, path+"/cancel", "", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionMiddleware(t *testing.T) {
	h, _ := newTestRouter(t, true)

	rec := call(t, h, http.MethodGet, "/api/patient/profile/data", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, decode[ErrorResponse](t, rec).Message)

	rec = call(t, h, http.MethodGet, "/api/patient/profile/data", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, h, http.MethodGet, "/api/admin/profile/data", token(t, "patient", "Ann"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "role_mismatch", decode[ErrorResponse](t, rec).Code)

	rec = call(t, h, http.MethodGet, "/api/nurse/profile/data", token(t, "patient", "Ann"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, h, http.MethodGet, "/api/patient/profile/data", token(t, "patient", "Ann"), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	h, _ := newTestRouter(t, false)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
}

func TestReadiness(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("down") }

	tests := []struct {
		name       string
		deps       []Dependency
		wantCode   int
		wantStatus string
	}{
		{"all up", []Dependency{{Name: "store", Check: ok, Critical: true}}, http.StatusOK, "ok"},
		{"cache down", []Dependency{{Name: "store", Check: ok, Critical: true}, {Name: "redis", Check: down}}, http.StatusOK, "degraded"},
		{"critical down", []Dependency{{Name: "postgres", Check: down, Critical: true}, {Name: "redis", Check: down}}, http.StatusServiceUnavailable, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestRouter(t, false, tt.deps...)
			rec := call(t, h, http.MethodGet, "/health/ready", "", "")
			assert.Equal(t, tt.wantCode, rec.Code)
			resp := decode[ReadinessResponse](t, rec)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Len(t, resp.Dependencies, len(tt.deps))
		})
	}

	h, _ := newTestRouter(t, false)
	rec := call(t, h, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", decode[LivenessResponse](t, rec).Env)
}
