package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/session"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	sess := session.Context{Role: session.RolePatient, Token: "Bearer tok-1"}
	return New(srv.URL+"/", sess, opts...)
}

func TestClientSendsHeadersAndDecodesDirectory(t *testing.T) {
	var seen *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r
		_, _ = w.Write([]byte(`[
			[{"name":"Dr. Lee","branchName":"Central","departmentName":"Cardiology"}],
			[{"name":"Central"},{"name":"North"}],
			[{"name":"Cardiology"}]
		]`))
	})

	dir, err := c.FetchDirectory(context.Background())
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "/api/patient/profile/data", seen.URL.Path)
	assert.Equal(t, "Bearer tok-1", seen.Header.Get("Authorization"))
	assert.NotEmpty(t, seen.Header.Get(RequestIDHeader))

	assert.Equal(t, []string{"Central", "North"}, dir.Branches())
	assert.Equal(t, []string{"Dr. Lee"}, dir.Doctors("Central", "Cardiology"))
	assert.Empty(t, dir.Doctors("North", "Cardiology"))
}

func TestClientRejectsShortDirectory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[],[]]`))
	})
	_, err := c.FetchDirectory(context.Background())
	assert.Error(t, err)
}

func TestClientErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantMsg  string
		notFound bool
	}{
		{"unauthorized without body", http.StatusUnauthorized, ``, MsgUnauthorized, false},
		{"forbidden with code only", http.StatusForbidden, `{"code":"role_mismatch"}`, MsgForbidden, false},
		{"backend message wins", http.StatusUnauthorized, `{"message":"Session expired"}`, "Session expired", false},
		{"error field", http.StatusInternalServerError, `{"error":"boom"}`, "boom", false},
		{"conflict", http.StatusConflict, `{"message":"slot already booked"}`, "slot already booked", false},
		{"not found", http.StatusNotFound, `{"message":"appointment not found"}`, "appointment not found", true},
		{"plain text body", http.StatusBadGateway, `upstream down`, "fallback", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			err := c.CancelAppointment(context.Background(), "a-1")
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.NotEmpty(t, apiErr.RequestID)
			assert.Equal(t, tt.wantMsg, appointment.MessageOf(err, "fallback"))
			assert.Equal(t, tt.notFound, errors.Is(err, appointment.ErrAppointmentNotFound))
		})
	}
}

func TestClientListQuery(t *testing.T) {
	var query map[string][]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = w.Write([]byte(`{"data":[{"id":"a-1","status":"CONFIRMED","date":"2025-03-10T00:00:00Z","timeSlot":"09:00"}],"totalElements":11}`))
	})

	page, err := c.FetchAppointments(context.Background(), appointment.PageRequest{
		Page:      2,
		Size:      5,
		Direction: appointment.SortDesc,
		Sort:      appointment.SortByStatus,
		Search:    "lee",
		Status:    appointment.StatusConfirmed,
		From:      appointment.NewDate(2025, time.March, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 11, page.TotalCount)
	require.Len(t, page.Items, 1)
	assert.Equal(t, appointment.StatusConfirmed, page.Items[0].Status)
	assert.Equal(t, "2025-03-10", page.Items[0].Date.String())

	assert.Equal(t, []string{"2"}, query["page"])
	assert.Equal(t, []string{"5"}, query["size"])
	assert.Equal(t, []string{"desc"}, query["direction"])
	assert.Equal(t, []string{"status"}, query["sort"])
	assert.Equal(t, []string{"lee"}, query["search"])
	assert.Equal(t, []string{"confirmed"}, query["status"])
	assert.Equal(t, []string{"2025-03-01"}, query["from"])
	assert.NotContains(t, query, "to")
}

func TestClientCommandBodies(t *testing.T) {
	type captured struct {
		method, path string
		body         map[string]any
	}
	var calls []captured
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, captured{r.Method, r.URL.Path, body})
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
		}
		_, _ = w.Write([]byte(`{"id":"a-9","date":"2025-03-11","timeSlot":"10:30"}`))
	})
	ctx := context.Background()

	created, err := c.CreateAppointment(ctx, appointment.CreateRequest{
		Role:   "patient",
		Fields: map[string]string{"doctorName": "Dr. Lee", "timeSlot": "09:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a-9", created.ID)

	moved, err := c.RescheduleAppointment(ctx, appointment.RescheduleRequest{
		ID:       "a-9",
		Date:     appointment.NewDate(2025, time.March, 11),
		TimeSlot: "10:30",
	})
	require.NoError(t, err)
	assert.Equal(t, "10:30", moved.TimeSlot)

	require.Len(t, calls, 2)
	assert.Equal(t, http.MethodPost, calls[0].method)
	assert.Equal(t, "/api/patient/profile/appointment", calls[0].path)
	assert.Equal(t, map[string]any{"doctorName": "Dr. Lee", "timeSlot": "09:00", "roleName": "patient"}, calls[0].body)

	assert.Equal(t, http.MethodPut, calls[1].method)
	assert.Equal(t, "/api/patient/profile/appointment/a-9", calls[1].path)
	assert.Equal(t, map[string]any{"id": "a-9", "date": "2025-03-11", "timeSlot": "10:30"}, calls[1].body)
}

func TestClientBlankIDMakesNoCall(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := c.RescheduleAppointment(context.Background(), appointment.RescheduleRequest{TimeSlot: "09:00"})
	assert.ErrorIs(t, err, appointment.ErrInvalidAppointment)
	assert.ErrorIs(t, c.CancelAppointment(context.Background(), "  "), appointment.ErrInvalidAppointment)
	assert.False(t, called)
}

func TestClientMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewGatewayMetrics(reg)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/cancel") {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}, WithMetrics(m))

	require.NoError(t, c.CancelAppointment(context.Background(), "a-1"))
	_, err := c.FetchLeaveDates(context.Background(), "Dr. Lee")
	require.Error(t, err)

	dead := New("http://127.0.0.1:1", session.New(session.RolePatient, ""), WithMetrics(m), WithTimeout(time.Second))
	_, err = dead.FetchTakenSlots(context.Background(), "Dr. Lee", appointment.NewDate(2025, time.March, 10))
	require.Error(t, err)

	expected := `
# HELP clinic_gateway_requests_total Backend calls by operation and outcome
# TYPE clinic_gateway_requests_total counter
clinic_gateway_requests_total{operation="cancel_appointment",status="204"} 1
clinic_gateway_requests_total{operation="fetch_leave_dates",status="500"} 1
clinic_gateway_requests_total{operation="fetch_taken_slots",status="error"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "clinic_gateway_requests_total"))
}
