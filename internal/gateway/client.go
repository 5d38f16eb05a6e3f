package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/session"
)

var tracer = otel.Tracer("clinic.internal.gateway")

const (
	RequestIDHeader = "X-Request-ID"

	MsgUnauthorized = "Authentication failed! Please check your credentials."
	MsgForbidden    = "You do not have permission to access this resource."
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) UserMessage() string { return e.Message }

// Is lets callers test a 404 against appointment.ErrAppointmentNotFound.
func (e *APIError) Is(target error) bool {
	return target == appointment.ErrAppointmentNotFound && e.StatusCode == http.StatusNotFound
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithMetrics(m *metrics.GatewayMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client speaks the clinic backend's REST contract under {backend}/api/{role}.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
	metrics *metrics.GatewayMetrics
}

var _ appointment.Gateway = (*Client)(nil)

func New(backendURL string, sess session.Context, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(backendURL, "/") + "/api/" + url.PathEscape(string(sess.Role)),
		token:   strings.TrimPrefix(sess.Token, "Bearer "),
		http:    &http.Client{Timeout: 25 * time.Second},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) FetchDirectory(ctx context.Context) (appointment.StaffDirectory, error) {
	var triple []json.RawMessage
	if err := c.do(ctx, "fetch_directory", http.MethodGet, "/profile/data", nil, nil, &triple); err != nil {
		return nil, err
	}
	if len(triple) < 3 {
		return nil, fmt.Errorf("fetch_directory: want [doctors, branches, departments], got %d elements", len(triple))
	}

	var (
		doctors     []appointment.Doctor
		branches    []appointment.Named
		departments []appointment.Named
	)
	for i, dst := range []any{&doctors, &branches, &departments} {
		if err := json.Unmarshal(triple[i], dst); err != nil {
			return nil, fmt.Errorf("fetch_directory: decode element %d: %w", i, err)
		}
	}
	return appointment.BuildDirectory(doctors, branches, departments), nil
}

func (c *Client) FetchLeaveDates(ctx context.Context, doctor string) ([]appointment.Date, error) {
	var dates []appointment.Date
	q := url.Values{"doctorName": {doctor}}
	if err := c.do(ctx, "fetch_leave_dates", http.MethodGet, "/profile/leave", q, nil, &dates); err != nil {
		return nil, err
	}
	return dates, nil
}

func (c *Client) FetchTakenSlots(ctx context.Context, doctor string, date appointment.Date) ([]string, error) {
	var slots []string
	q := url.Values{"doctorName": {doctor}, "date": {date.String()}}
	if err := c.do(ctx, "fetch_taken_slots", http.MethodGet, "/profile/appointment/slots", q, nil, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (c *Client) FetchAppointments(ctx context.Context, req appointment.PageRequest) (appointment.Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("size", strconv.Itoa(req.Size))
	if req.Direction != "" {
		q.Set("direction", string(req.Direction))
	}
	if req.Sort != "" {
		q.Set("sort", string(req.Sort))
	}
	if req.Search != "" {
		q.Set("search", req.Search)
	}
	if req.Status != "" {
		q.Set("status", string(req.Status))
	}
	if !req.From.IsZero() {
		q.Set("from", req.From.String())
	}
	if !req.To.IsZero() {
		q.Set("to", req.To.String())
	}

	var page appointment.Page
	if err := c.do(ctx, "fetch_appointments", http.MethodGet, "/profile/appointment", q, nil, &page); err != nil {
		return appointment.Page{}, err
	}
	return page, nil
}

func (c *Client) CreateAppointment(ctx context.Context, req appointment.CreateRequest) (*appointment.Appointment, error) {
	body := make(map[string]string, len(req.Fields)+1)
	for k, v := range req.Fields {
		body[k] = v
	}
	body["roleName"] = req.Role

	var out appointment.Appointment
	if err := c.do(ctx, "create_appointment", http.MethodPost, "/profile/appointment", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RescheduleAppointment(ctx context.Context, req appointment.RescheduleRequest) (*appointment.Appointment, error) {
	if strings.TrimSpace(req.ID) == "" {
		return nil, appointment.ErrInvalidAppointment
	}
	var out appointment.Appointment
	path := "/profile/appointment/" + url.PathEscape(req.ID)
	if err := c.do(ctx, "reschedule_appointment", http.MethodPut, path, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelAppointment(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return appointment.ErrInvalidAppointment
	}
	path := "/profile/appointment/" + url.PathEscape(id) + "/cancel"
	return c.do(ctx, "cancel_appointment", http.MethodPut, path, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	ctx, span := tracer.Start(ctx, "gateway."+op)
	defer span.End()

	start := time.Now()
	status := "error"
	defer func() { c.metrics.ObserveRequest(op, status, time.Since(start).Seconds()) }()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.String("clinic.request_id", requestID),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Warn().Err(err).Str("operation", op).Str("request_id", requestID).Msg("backend call failed")
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	status = strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeError(resp, requestID)
		span.SetStatus(codes.Error, apiErr.Error())
		c.log.Warn().
			Str("operation", op).
			Int("status", resp.StatusCode).
			Str("request_id", requestID).
			Str("message", apiErr.Message).
			Msg("backend rejected request")
		return fmt.Errorf("%s: %w", op, apiErr)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: empty response body", op)
		}
		return fmt.Errorf("%s: decode response: %w", op, err)
	}

	c.log.Debug().
		Str("operation", op).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("request_id", requestID).
		Msg("backend call")
	return nil
}

func decodeError(resp *http.Response, requestID string) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: requestID}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Message = strings.TrimSpace(body.Message)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(body.Error)
		}
	}

	if apiErr.Message == "" {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			apiErr.Message = MsgUnauthorized
		case http.StatusForbidden:
			apiErr.Message = MsgForbidden
		}
	}
	return apiErr
}
