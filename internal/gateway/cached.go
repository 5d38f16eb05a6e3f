package gateway

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/metrics"
)

type DirectoryCache interface {
	Get(ctx context.Context) (appointment.StaffDirectory, bool, error)
	Set(ctx context.Context, dir appointment.StaffDirectory) error
}

// CachedGateway reads the staff directory through a cache. Every other call goes
// straight to the wrapped gateway. A broken cache only costs a backend call.
type CachedGateway struct {
	appointment.Gateway
	cache   DirectoryCache
	log     zerolog.Logger
	metrics *metrics.GatewayMetrics
}

func NewCached(gw appointment.Gateway, cache DirectoryCache, log zerolog.Logger, m *metrics.GatewayMetrics) *CachedGateway {
	return &CachedGateway{Gateway: gw, cache: cache, log: log, metrics: m}
}

func (g *CachedGateway) FetchDirectory(ctx context.Context) (appointment.StaffDirectory, error) {
	dir, ok, err := g.cache.Get(ctx)
	if err != nil {
		g.log.Warn().Err(err).Msg("directory cache read failed")
	}
	if ok {
		g.metrics.ObserveCache(true)
		return dir, nil
	}
	g.metrics.ObserveCache(false)

	dir, err = g.Gateway.FetchDirectory(ctx)
	if err != nil {
		return nil, err
	}
	if err := g.cache.Set(ctx, dir); err != nil {
		g.log.Warn().Err(err).Msg("directory cache write failed")
	}
	return dir, nil
}
