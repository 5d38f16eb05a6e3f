package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/backend"
	"github.com/hackgods/clinic-booking/internal/session"
)

func directoryHandler(store *backend.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, branches, departments := store.Directory()
		writeJSON(w, http.StatusOK, []any{doctors, branches, departments})
	}
}

func leaveDatesHandler(store *backend.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctor := strings.TrimSpace(r.URL.Query().Get("doctorName"))
		if doctor == "" {
			writeError(w, http.StatusBadRequest, "missing_doctor", "doctorName is required")
			return
		}
		dates := store.LeaveDates(doctor)
		if dates == nil {
			dates = []appointment.Date{}
		}
		writeJSON(w, http.StatusOK, dates)
	}
}

func takenSlotsHandler(store *backend.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		doctor := strings.TrimSpace(q.Get("doctorName"))
		if doctor == "" {
			writeError(w, http.StatusBadRequest, "missing_doctor", "doctorName is required")
			return
		}
		day, err := appointment.ParseDate(q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, store.TakenSlots(doctor, day))
	}
}

func listAppointmentsHandler(store *backend.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parsePageRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, store.List(scopeOf(sessionFrom(r.Context())), req))
	}
}

func createAppointmentHandler(store *backend.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fields map[string]string
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		sess := sessionFrom(r.Context())
		caller := sess.Name
		if sess.Role == session.RoleDoctor && caller == "" {
			caller = fields["doctorName"]
		}

		appt, err := store.Create(string(sess.Role), caller, fields)
		if err != nil {
			handleStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, appt)
	}
}

func rescheduleAppointmentHandler(store *backend.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var body RescheduleBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if body.ID != "" && body.ID != id {
			writeError(w, http.StatusBadRequest, "id_mismatch", "body id does not match the path")
			return
		}

		appt, err := store.Reschedule(id, body.Date, body.TimeSlot)
		if err != nil {
			handleStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func cancelAppointmentHandler(store *backend.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Cancel(chi.URLParam(r, "id")); err != nil {
			handleStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func scopeOf(sess session.Context) backend.Scope {
	switch sess.Role {
	case session.RolePatient:
		return backend.Scope{Patient: sess.Name}
	case session.RoleDoctor:
		return backend.Scope{Doctor: sess.Name}
	default:
		return backend.Scope{}
	}
}

func parsePageRequest(r *http.Request) (appointment.PageRequest, error) {
	q := r.URL.Query()
	req := appointment.PageRequest{
		Direction: appointment.SortDirection(strings.ToLower(q.Get("direction"))),
		Sort:      appointment.SortKey(strings.ToLower(q.Get("sort"))),
		Search:    q.Get("search"),
	}

	var err error
	if req.Page, err = intParam(q.Get("page"), 0); err != nil {
		return req, err
	}
	if req.Size, err = intParam(q.Get("size"), 0); err != nil {
		return req, err
	}
	if s := q.Get("status"); s != "" {
		if req.Status, err = appointment.ParseStatus(s); err != nil {
			return req, err
		}
	}
	if s := q.Get("from"); s != "" {
		if req.From, err = appointment.ParseDate(s); err != nil {
			return req, err
		}
	}
	if s := q.Get("to"); s != "" {
		if req.To, err = appointment.ParseDate(s); err != nil {
			return req, err
		}
	}
	return req, nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("page and size must be non-negative integers")
	}
	return n, nil
}

func handleStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, backend.ErrSlotAlreadyBooked):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, backend.ErrDoctorOnLeave):
		writeError(w, http.StatusConflict, "doctor_on_leave", err.Error())
	case errors.Is(err, appointment.ErrTerminalStatus):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, backend.ErrMissingField),
		errors.Is(err, backend.ErrInvalidSlot),
		errors.Is(err, backend.ErrUnknownDoctor),
		errors.Is(err, appointment.ErrInvalidAppointment):
		writeError(w, http.StatusBadRequest, "invalid_appointment", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
