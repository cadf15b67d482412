package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/medicore/hms/internal/platform/cache"
	"github.com/medicore/hms/internal/platform/events"
	"github.com/medicore/hms/pkg/civil"
)

// CacheScope is the cache scope holding computed stats, keyed by date.
const CacheScope = "dashboard"

// Service computes dashboard stats, optionally through a cache. Cache
// failures are logged and fall through to the database.
type Service struct {
	repo   StatsRepository
	cache  *cache.Cache
	ttl    time.Duration
	today  func() civil.Date
	logger zerolog.Logger

	// gen counts invalidations so a compute that raced one is not cached.
	gen atomic.Uint64
}

// NewService returns an uncached service when c is nil or ttl is not
// positive.
func NewService(repo StatsRepository, c *cache.Cache, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		c = nil
	}
	return &Service{
		repo:   repo,
		cache:  c,
		ttl:    ttl,
		today:  civil.Today,
		logger: logger.With().Str("component", "dashboard").Logger(),
	}
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	day := s.today()
	key := day.String()

	if s.cache != nil {
		var cached Stats
		err := s.cache.GetJSON(ctx, CacheScope, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn().Err(err).Msg("read cached stats")
		}
	}

	gen := s.gen.Load()
	st, err := s.compute(ctx, day)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.store(ctx, key, st, gen)
	}
	return st, nil
}

// store caches st unless an invalidation arrived since gen was read. One
// landing between the check and the write is undone afterwards.
func (s *Service) store(ctx context.Context, key string, st *Stats, gen uint64) {
	if s.gen.Load() != gen {
		return
	}
	if err := s.cache.SetJSON(ctx, CacheScope, key, st, s.ttl); err != nil {
		s.logger.Warn().Err(err).Msg("store stats in cache")
		return
	}
	if s.gen.Load() != gen {
		if err := s.cache.Invalidate(ctx, CacheScope); err != nil {
			s.logger.Warn().Err(err).Msg("drop raced stats")
		}
	}
}

func (s *Service) compute(ctx context.Context, day civil.Date) (*Stats, error) {
	var st Stats
	var err error
	if st.TotalPatients, err = s.repo.CountPatients(ctx); err != nil {
		return nil, fmt.Errorf("count patients: %w", err)
	}
	if st.TodayAppointments, err = s.repo.CountAppointmentsOn(ctx, day); err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}
	if st.AvailableDoctors, err = s.repo.CountAvailableDoctors(ctx); err != nil {
		return nil, fmt.Errorf("count doctors: %w", err)
	}
	if st.AvailableRooms, err = s.repo.CountAvailableRooms(ctx); err != nil {
		return nil, fmt.Errorf("count rooms: %w", err)
	}
	return &st, nil
}

// Invalidator drops cached stats whenever a resource they count changes.
// Subscribe it on the change bus.
func (s *Service) Invalidator() events.Handler {
	return func(ctx context.Context, c events.Change) {
		if s.cache == nil {
			return
		}
		switch c.Resource {
		case events.Patients, events.Appointments, events.Doctors, events.Rooms:
		default:
			return
		}
		s.gen.Add(1)
		if err := s.cache.Invalidate(ctx, CacheScope); err != nil {
			s.logger.Warn().Err(err).Str("event", c.Type()).Msg("invalidate stats")
		}
	}
}
