package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/audit"
	"github.com/hackgods/clinic-booking/internal/booking"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/gateway"
	"github.com/hackgods/clinic-booking/internal/listing"
	"github.com/hackgods/clinic-booking/internal/logging"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/notify"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/session"
)

// app is everything one command invocation needs, wired from config.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	sess     session.Context
	gw       appointment.Gateway
	notifier notify.Notifier
	recorder audit.Recorder
	locker   booking.Locker
	registry *prometheus.Registry
	closers  []func()
}

func newApp(ctx context.Context, flags *globalFlags) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config load error: %w", err)
	}
	if flags.backend != "" {
		cfg.BackendURL = flags.backend
	}

	a := &app{
		cfg:      cfg,
		log:      logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "clinic").Logger(),
		recorder: audit.Nop(),
		registry: prometheus.NewRegistry(),
	}
	a.notifier = notify.NewLogNotifier(a.log)

	if a.sess, err = resolveSession(cfg, flags); err != nil {
		a.Close()
		return nil, err
	}
	if a.sess.Expired(time.Now()) {
		a.Close()
		return nil, fmt.Errorf("session token expired at %s", a.sess.ExpiresAt.Format(time.RFC3339))
	}

	m := metrics.NewGatewayMetrics(a.registry)
	var gw appointment.Gateway = gateway.New(cfg.BackendURL, a.sess,
		gateway.WithTimeout(cfg.RequestTimeout),
		gateway.WithLogger(a.log),
		gateway.WithMetrics(m),
	)

	if cfg.RedisAddr != "" {
		rdb, err := redisclient.Connect(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			Timeout:  time.Second,
		})
		if err != nil {
			// the cache and lock are optional, the backend still works without them
			a.log.Warn().Err(err).Msg("redis unavailable, running without cache and submit lock")
		} else {
			a.closers = append(a.closers, func() { _ = rdb.Close() })
			cache := redisclient.NewDirectoryCache(rdb, cfg.BackendURL, cfg.DirectoryCacheTTL)
			gw = gateway.NewCached(gw, cache, a.log, m)
			a.locker = redisclient.NewSubmitLocker(rdb, cfg.LockTTL)
		}
	}
	a.gw = gw

	if cfg.PostgresDSN != "" {
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, "clinic")
		cancel()
		if err != nil {
			a.log.Warn().Err(err).Msg("postgres unavailable, audit log disabled")
		} else {
			a.closers = append(a.closers, pool.Close)
			rec := audit.NewPgRecorder(pool)
			if err := rec.EnsureSchema(ctx); err != nil {
				a.log.Warn().Err(err).Msg("could not create audit table, audit log disabled")
			} else {
				a.recorder = rec
			}
		}
	}

	a.log.Debug().
		Str("role", string(a.sess.Role)).
		Str("backend", cfg.BackendURL).
		Bool("cache", a.locker != nil).
		Msg("clinic client ready")
	return a, nil
}

// resolveSession reads the token claims first, then lets config and flags override.
func resolveSession(cfg config.Config, flags *globalFlags) (session.Context, error) {
	var sess session.Context
	if cfg.AuthToken != "" {
		fromToken, err := session.FromToken(cfg.AuthToken)
		if err != nil {
			return session.Context{}, fmt.Errorf("read AUTH_TOKEN: %w", err)
		}
		sess = fromToken
	}

	rawRole := cfg.SessionRole
	if flags.role != "" {
		rawRole = flags.role
	}
	if rawRole != "" {
		role, err := session.ParseRole(rawRole)
		if err != nil {
			return session.Context{}, err
		}
		sess.Role = role
	}
	if sess.Role == "" {
		sess.Role = session.RolePatient
	}

	if cfg.SessionName != "" {
		sess.Name = cfg.SessionName
	}
	if flags.name != "" {
		sess.Name = flags.name
	}
	return sess, nil
}

func (a *app) formOptions() []booking.Option {
	opts := []booking.Option{
		booking.WithHours(a.cfg.OpeningHour, a.cfg.ClosingHour),
		booking.WithLogger(a.log),
		booking.WithRecorder(a.recorder),
	}
	if a.locker != nil {
		opts = append(opts, booking.WithLocker(a.locker))
	}
	return opts
}

func (a *app) list() *listing.Controller {
	return listing.New(a.gw, a.sess,
		listing.WithNotifier(a.notifier),
		listing.WithLogger(a.log),
		listing.WithRecorder(a.recorder),
		listing.WithPageSize(a.cfg.PageSize),
		listing.WithFormOptions(a.formOptions()...),
	)
}

// findAppointment pages through the caller's appointments until id shows up.
func (a *app) findAppointment(ctx context.Context, id string) (appointment.Appointment, error) {
	const size = 50
	for page := 0; ; page++ {
		res, err := a.gw.FetchAppointments(ctx, appointment.PageRequest{
			Page:      page,
			Size:      size,
			Sort:      appointment.SortByDate,
			Direction: appointment.SortAsc,
		})
		if err != nil {
			return appointment.Appointment{}, err
		}
		for _, appt := range res.Items {
			if appt.ID == id {
				return appt, nil
			}
		}
		if len(res.Items) == 0 || (page+1)*size >= res.TotalCount {
			return appointment.Appointment{}, fmt.Errorf("%w: %s", appointment.ErrAppointmentNotFound, id)
		}
	}
}

func (a *app) writeMetrics(w io.Writer) error {
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// run builds the app, runs fn and tears the app down again.
func run(ctx context.Context, flags *globalFlags, stderr io.Writer, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(ctx, flags)
	if err != nil {
		return err
	}
	defer a.Close()

	err = fn(ctx, a)
	if flags.showMetrics {
		if merr := a.writeMetrics(stderr); merr != nil {
			a.log.Warn().Err(merr).Msg("could not write metrics")
		}
	}
	return err
}
