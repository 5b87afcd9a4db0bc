package calsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/imsoft/Holistia-sub011/internal/metrics"
	"github.com/imsoft/Holistia-sub011/internal/model"
	"github.com/imsoft/Holistia-sub011/internal/wallclock"
)

// Store is the persistence surface the sync service needs.
type Store interface {
	ListCalendarLinks(ctx context.Context) ([]model.CalendarLink, error)
	ListExternalBlocksInRange(ctx context.Context, professionalID, fromDate, toDate string) ([]model.AvailabilityBlock, error)
	ApplySyncDiff(ctx context.Context, diff Diff) error
}

// Service runs periodic sync passes for every linked professional. A pass per
// professional runs under a per-professional lock: two concurrent passes for
// the same calendar would race on upsert/delete, so writes are single-file.
type Service struct {
	store      Store
	fetcher    Fetcher
	zone       *wallclock.Zone
	logger     *zerolog.Logger
	interval   time.Duration
	windowDays int
	invalidate func(ctx context.Context, professionalID string)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// OnBlocksChanged registers a callback fired after a sync pass changes a
// professional's blocks. The API layer uses it to drop cached previews so a
// synced calendar change is visible immediately, not after the cache TTL.
func (s *Service) OnBlocksChanged(fn func(ctx context.Context, professionalID string)) {
	s.invalidate = fn
}

// NewService wires a sync service.
func NewService(store Store, fetcher Fetcher, zone *wallclock.Zone, interval time.Duration, windowDays int, logger *zerolog.Logger) *Service {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if windowDays <= 0 {
		windowDays = 60
	}
	return &Service{
		store:      store,
		fetcher:    fetcher,
		zone:       zone,
		logger:     logger,
		interval:   interval,
		windowDays: windowDays,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Run loops until the context is cancelled. The first pass runs immediately.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Int("window_days", s.windowDays).Msg("calendar sync started")

	s.runPass(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

func (s *Service) runPass(ctx context.Context) {
	links, err := s.store.ListCalendarLinks(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list calendar links failed")
		return
	}

	for _, link := range links {
		if err := s.SyncProfessional(ctx, link.ProfessionalID, link.CalendarID); err != nil {
			metrics.IncSyncPass("error")
			s.logger.Error().Err(err).
				Str("professional_id", link.ProfessionalID).
				Msg("calendar sync failed")
			continue
		}
		metrics.IncSyncPass("ok")
	}
}

// SyncProfessional fetches busy events for one professional's calendar and
// applies the reconciliation diff in a single transaction.
func (s *Service) SyncProfessional(ctx context.Context, professionalID, calendarID string) error {
	lock := s.lockFor(professionalID)
	lock.Lock()
	defer lock.Unlock()

	from := s.zone.Today()
	to, err := wallclock.AddDays(from, s.windowDays)
	if err != nil {
		return err
	}

	events, err := s.fetcher.BusyEvents(ctx, calendarID, from, to)
	if err != nil {
		return fmt.Errorf("fetch busy events: %w", err)
	}

	current, err := s.store.ListExternalBlocksInRange(ctx, professionalID, from, to)
	if err != nil {
		return fmt.Errorf("list external blocks: %w", err)
	}

	diff := Reconcile(professionalID, current, events)
	if diff.Empty() {
		return nil
	}

	if err := s.store.ApplySyncDiff(ctx, diff); err != nil {
		return fmt.Errorf("apply sync diff: %w", err)
	}

	if s.invalidate != nil {
		s.invalidate(ctx, professionalID)
	}

	metrics.AddSyncBlocks(len(diff.ToInsert), len(diff.ToDeleteIDs))
	s.logger.Info().
		Str("professional_id", professionalID).
		Int("inserted", len(diff.ToInsert)).
		Int("deleted", len(diff.ToDeleteIDs)).
		Msg("calendar sync applied")
	return nil
}

func (s *Service) lockFor(professionalID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[professionalID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[professionalID] = lock
	}
	return lock
}
