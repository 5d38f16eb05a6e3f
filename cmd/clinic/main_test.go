package main

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/api"
	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/backend"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/session"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestResolveSession(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"role": "ROLE_DOCTOR", "name": "Dr. Lee", "userId": "u-1"})

	sess, err := resolveSession(config.Config{AuthToken: tok}, &globalFlags{})
	require.NoError(t, err)
	assert.Equal(t, session.RoleDoctor, sess.Role)
	assert.Equal(t, "Dr. Lee", sess.Name)
	assert.Equal(t, "u-1", sess.UserID)
	assert.Equal(t, tok, sess.Token)

	sess, err = resolveSession(config.Config{AuthToken: tok, SessionName: "Dr. Roy"}, &globalFlags{role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, session.RoleAdmin, sess.Role)
	assert.Equal(t, "Dr. Roy", sess.Name)

	sess, err = resolveSession(config.Config{}, &globalFlags{name: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, session.RolePatient, sess.Role, "patient is the default role")
	assert.Equal(t, "Ann", sess.Name)

	_, err = resolveSession(config.Config{SessionRole: "nurse"}, &globalFlags{})
	assert.ErrorIs(t, err, session.ErrUnknownRole)
	_, err = resolveSession(config.Config{AuthToken: "garbage"}, &globalFlags{})
	assert.Error(t, err)
}

func TestListFlagsQuery(t *testing.T) {
	q, err := listFlags{page: 2, sort: "status", desc: true, status: "CONFIRMED", from: "2025-03-01"}.query(7)
	require.NoError(t, err)
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, 7, q.Size)
	assert.Equal(t, appointment.SortByStatus, q.Sort)
	assert.Equal(t, appointment.SortDesc, q.Direction)
	assert.Equal(t, appointment.StatusConfirmed, q.Status)
	assert.Equal(t, "2025-03-01", q.From.String())
	assert.True(t, q.To.IsZero())

	_, err = listFlags{page: 1, sort: "doctor"}.query(5)
	assert.Error(t, err)
	_, err = listFlags{page: 1, sort: "date", to: "tomorrow"}.query(5)
	assert.Error(t, err)
}

type cli struct {
	t *testing.T
}

func (c cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.Execute()
	return out.String(), err
}

func TestCommandsAgainstDevBackend(t *testing.T) {
	store := backend.NewStore(9, 17)
	store.AddBranch("Central")
	store.AddDepartment("Cardiology")
	require.NoError(t, store.AddDoctor(appointment.Doctor{Name: "Dr. Lee", BranchName: "Central", DepartmentName: "Cardiology"}))
	require.NoError(t, store.AddLeave("Dr. Lee", appointment.NewDate(2025, time.March, 12)))
	srv := httptest.NewServer(api.NewRouter(api.RouterConfig{Store: store, Logger: zerolog.Nop(), RequireToken: true}))
	t.Cleanup(srv.Close)

	for _, k := range []string{"REDIS_URL", "REDIS_ADDR", "POSTGRES_DSN", "SESSION_ROLE", "SESSION_NAME", "PAGE_SIZE", "OPENING_HOUR", "CLOSING_HOUR"} {
		t.Setenv(k, "")
	}
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("BACKEND_URL", srv.URL)
	t.Setenv("AUTH_TOKEN", signedToken(t, jwt.MapClaims{"role": "patient", "name": "Ann", "userId": "ann-1"}))
	c := cli{t}

	out, err := c.run("book", "--branch", "Central", "--department", "Cardiology", "--doctor", "Dr. Lee",
		"--reason", "checkup", "--date", "2025-03-10", "--slot", "9:00 AM")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-03-10 9:00 AM  Ann with Dr. Lee (Cardiology, Central)  pending")

	_, err = c.run("book", "--branch", "Central", "--department", "Cardiology", "--doctor", "Dr. Lee",
		"--date", "2025-03-12", "--slot", "10:00")
	assert.Error(t, err, "leave day is refused before submitting")

	_, err = c.run("book", "--branch", "Central")
	assert.EqualError(t, err, "Please fill all required fields")

	page := store.List(backend.Scope{Patient: "Ann"}, appointment.PageRequest{Size: 10})
	require.Len(t, page.Items, 1)
	id := page.Items[0].ID

	out, err = c.run("list", "--csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `"2025-03-10","9:00 AM","Ann","Dr. Lee","Cardiology","Central","pending","checkup"`, lines[1])

	out, err = c.run("list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Showing 1-1 of 1")

	out, err = c.run("reschedule", id, "--date", "2025-03-11", "--slot", "10:30")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-03-11 10:30 AM")

	_, err = c.run("reschedule", id, "--date", "2025-03-11", "--slot", "10:30")
	assert.Error(t, err, "unchanged reschedule is refused")

	_, err = c.run("report", id)
	assert.ErrorIs(t, err, appointment.ErrNoReport)

	out, err = c.run("slots", "--doctor", "Dr. Lee", "--date", "2025-03-11")
	require.NoError(t, err)
	assert.Regexp(t, `10:30 AM\s+taken`, out)
	assert.Regexp(t, `9:00 AM\s+free`, out)

	out, err = c.run("slots", "--doctor", "Dr. Lee", "--date", "2025-03-12")
	require.NoError(t, err)
	assert.Contains(t, out, "on leave")

	_, err = c.run("cancel", id)
	require.NoError(t, err)
	got, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCancelled, got.Status)

	_, err = c.run("cancel", id)
	assert.ErrorIs(t, err, appointment.ErrTerminalStatus)

	_, err = c.run("cancel", "missing")
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
}

func TestSimulateCommand(t *testing.T) {
	store := backend.NewStore(9, 17)
	store.AddBranch("Central")
	store.AddDepartment("Cardiology")
	require.NoError(t, store.AddDoctor(appointment.Doctor{Name: "Dr. Lee", BranchName: "Central", DepartmentName: "Cardiology"}))
	srv := httptest.NewServer(api.NewRouter(api.RouterConfig{Store: store, Logger: zerolog.Nop()}))
	t.Cleanup(srv.Close)

	for _, k := range []string{"REDIS_URL", "REDIS_ADDR", "POSTGRES_DSN", "SESSION_ROLE", "SESSION_NAME", "AUTH_TOKEN", "OPENING_HOUR", "CLOSING_HOUR"} {
		t.Setenv(k, "")
	}
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("BACKEND_URL", srv.URL)
	c := cli{t}

	out, err := c.run("simulate", "--duration", "200ms", "--workers", "3", "--days", "1", "--from", "2025-03-10", "--seed", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "SIMULATION REPORT")
	assert.Contains(t, out, "Workers: 3")

	_, err = c.run("simulate", "--from", "10/03/2025")
	assert.Error(t, err)
}
