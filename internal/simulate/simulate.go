// Package simulate drives concurrent booking sessions against a clinic backend to
// check that slots are never handed out twice.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/booking"
	"github.com/hackgods/clinic-booking/internal/gateway"
	"github.com/hackgods/clinic-booking/internal/listing"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/session"
)

type Config struct {
	Duration    time.Duration
	Workers     int
	BookRatio   float64
	CancelRatio float64
	ListRatio   float64
	// Start and Days bound the dates bookings are attempted on.
	Start time.Time
	Days  int
	Seed  uint64
}

// Normalize scales the ratios to sum to one and fills defaults.
func (c Config) Normalize() (Config, error) {
	if c.Workers <= 0 {
		return c, errors.New("workers must be > 0")
	}
	if c.Duration <= 0 {
		return c, errors.New("duration must be > 0")
	}
	total := c.BookRatio + c.CancelRatio + c.ListRatio
	if total <= 0 {
		return c, errors.New("at least one operation ratio must be > 0")
	}
	c.BookRatio /= total
	c.CancelRatio /= total
	c.ListRatio /= total
	if c.Days < 1 {
		c.Days = 7
	}
	if c.Start.IsZero() {
		c.Start = time.Now()
	}
	return c, nil
}

// target is one doctor reachable through the directory cascade.
type target struct {
	branch, department, doctor string
}

type Simulator struct {
	cfg      Config
	gw       appointment.Gateway
	sess     session.Context
	log      zerolog.Logger
	formOpts []booking.Option
	metrics  Metrics

	targets []target
	hours   booking.Hours

	mu     sync.Mutex
	booked []string
}

type Option func(*Simulator)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Simulator) { s.log = l }
}

func WithHours(opening, closing int) Option {
	return func(s *Simulator) { s.hours = booking.Hours{Opening: opening, Closing: closing} }
}

// WithFormOptions is passed to every booking form, e.g. a submit locker.
func WithFormOptions(opts ...booking.Option) Option {
	return func(s *Simulator) { s.formOpts = append(s.formOpts, opts...) }
}

func New(gw appointment.Gateway, sess session.Context, cfg Config, opts ...Option) (*Simulator, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	if _, err := booking.SchemaFor(sess.Role); err != nil {
		return nil, fmt.Errorf("simulate as %s: %w", sess.Role, err)
	}
	s := &Simulator{
		cfg:   cfg,
		gw:    gw,
		sess:  sess,
		log:   zerolog.Nop(),
		hours: booking.Hours{Opening: 9, Closing: 17},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.formOpts = append([]booking.Option{booking.WithHours(s.hours.Opening, s.hours.Closing)}, s.formOpts...)
	return s, nil
}

func (s *Simulator) Metrics() *Metrics { return &s.metrics }

// Run loads the directory once, then keeps every worker busy until the configured
// duration passes or ctx ends.
func (s *Simulator) Run(ctx context.Context) error {
	dir, err := s.gw.FetchDirectory(ctx)
	if err != nil {
		return fmt.Errorf("load staff directory: %w", err)
	}
	for _, b := range dir.Branches() {
		for _, d := range dir.Departments(b) {
			for _, doc := range dir.Doctors(b, d) {
				s.targets = append(s.targets, target{b, d, doc})
			}
		}
	}
	if len(s.targets) == 0 {
		return errors.New("staff directory has no doctors")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Duration)
	defer cancel()

	s.log.Info().
		Dur("duration", s.cfg.Duration).
		Int("workers", s.cfg.Workers).
		Int("doctors", len(s.targets)).
		Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
	return nil
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	faker := gofakeit.New(s.cfg.Seed + uint64(workerID) + 1)

	for ctx.Err() == nil {
		r := faker.Float64()
		switch {
		case r < s.cfg.BookRatio:
			s.doBook(ctx, faker)
		case r < s.cfg.BookRatio+s.cfg.CancelRatio:
			s.doCancel(ctx, faker)
		default:
			s.doList(ctx, faker)
		}
	}
}

func (s *Simulator) doBook(ctx context.Context, faker *gofakeit.Faker) {
	t := s.targets[faker.Number(0, len(s.targets)-1)]
	day := appointment.DateOf(s.cfg.Start.AddDate(0, 0, faker.Number(0, s.cfg.Days-1)))
	slots := 2 * (s.hours.Closing - s.hours.Opening)
	slot := s.hours.Opening*60 + 30*faker.Number(0, slots-1)

	start := time.Now()
	created, err := s.book(ctx, t, faker.Name(), day, fmt.Sprintf("%02d:%02d", slot/60, slot%60))
	latency := time.Since(start)

	if err == nil && created != nil {
		s.mu.Lock()
		s.booked = append(s.booked, created.ID)
		s.mu.Unlock()
	}
	s.record(ctx, &s.metrics.Book, latency, err)
}

// book walks one form through the cascade. A doctor's form skips the directory and
// books a made up patient instead.
func (s *Simulator) book(ctx context.Context, t target, patient string, day appointment.Date, slot string) (*appointment.Appointment, error) {
	form, err := booking.New(s.gw, s.sess, s.formOpts...)
	if err != nil {
		return nil, err
	}
	defer form.Close(ctx)

	if err := form.Start(ctx); err != nil {
		return nil, err
	}
	if form.Schema().Has(booking.FieldDoctor) {
		if err := form.SelectBranch(t.branch); err != nil {
			return nil, err
		}
		if err := form.SelectDepartment(t.department); err != nil {
			return nil, err
		}
		if err := form.SelectDoctor(ctx, t.doctor); err != nil {
			return nil, err
		}
	} else if err := form.SetText(booking.FieldPatientName, patient); err != nil {
		return nil, err
	}
	if err := form.SelectDate(ctx, day.String()); err != nil {
		return nil, err
	}
	if err := form.SelectTimeSlot(slot); err != nil {
		return nil, err
	}
	return form.Submit(ctx)
}

func (s *Simulator) doCancel(ctx context.Context, faker *gofakeit.Faker) {
	s.mu.Lock()
	if len(s.booked) == 0 {
		s.mu.Unlock()
		s.doBook(ctx, faker)
		return
	}
	i := faker.Number(0, len(s.booked)-1)
	id := s.booked[i]
	s.mu.Unlock()

	start := time.Now()
	err := s.gw.CancelAppointment(ctx, id)
	latency := time.Since(start)

	if err == nil {
		s.mu.Lock()
		if i < len(s.booked) && s.booked[i] == id {
			s.booked = append(s.booked[:i], s.booked[i+1:]...)
		}
		s.mu.Unlock()
	}
	s.record(ctx, &s.metrics.Cancel, latency, err)
}

func (s *Simulator) doList(ctx context.Context, faker *gofakeit.Faker) {
	list := listing.New(s.gw, s.sess, listing.WithPageSize(10))
	key := appointment.SortByDate
	if faker.Bool() {
		key = appointment.SortByStatus
	}

	start := time.Now()
	err := list.SetQuery(ctx, listing.Query{Page: 1, Size: 10, Sort: key})
	s.record(ctx, &s.metrics.List, time.Since(start), err)
}

// record skips operations cut short by the end of the run.
func (s *Simulator) record(ctx context.Context, stats *OperationStats, latency time.Duration, err error) {
	if err != nil && ctx.Err() != nil {
		return
	}
	outcome := classify(err)
	if outcome == OutcomeError {
		s.log.Debug().Err(err).Msg("operation failed")
	}
	stats.Record(latency, outcome)
}

func classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		return OutcomeConflict
	}
	switch {
	case errors.Is(err, booking.ErrSlotUnavailable),
		errors.Is(err, booking.ErrDateUnavailable),
		errors.Is(err, redisclient.ErrLockNotAcquired),
		errors.Is(err, appointment.ErrTerminalStatus):
		return OutcomeConflict
	}
	return OutcomeError
}

func (s *Simulator) PrintReport(w io.Writer) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 80))
	fmt.Fprintln(w, "SIMULATION REPORT")
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "Duration: %s\n", s.cfg.Duration)
	fmt.Fprintf(w, "Workers: %d\n", s.cfg.Workers)
	fmt.Fprintln(w)

	printOperationReport(w, "Booking", &s.metrics.Book)
	printOperationReport(w, "Cancel", &s.metrics.Cancel)
	printOperationReport(w, "List", &s.metrics.List)
}

func printOperationReport(w io.Writer, name string, om *OperationStats) {
	total := om.Total.Load()
	if total == 0 {
		return
	}

	success := om.Success.Load()
	conflict := om.Conflict.Load()
	failed := om.Error.Load()
	lat := om.Latency()

	fmt.Fprintf(w, "%s:\n", name)
	fmt.Fprintf(w, "  Total: %d\n", total)
	fmt.Fprintf(w, "  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Fprintf(w, "  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Fprintf(w, "  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Fprintf(w, "  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		lat.Avg.Round(time.Millisecond), lat.Min.Round(time.Millisecond), lat.Max.Round(time.Millisecond),
		lat.P50.Round(time.Millisecond), lat.P95.Round(time.Millisecond))
	fmt.Fprintln(w)
}
