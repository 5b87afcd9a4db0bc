// Package api exposes the availability engine over HTTP for the marketplace
// backend. Every endpoint sits behind an X-Api-Key check; the API is
// service-to-service, not public.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/imsoft/Holistia-sub011/internal/cache"
	"github.com/imsoft/Holistia-sub011/internal/model"
	"github.com/imsoft/Holistia-sub011/internal/wallclock"
)

// Store is the persistence surface the HTTP layer needs.
type Store interface {
	GetWorkingHours(ctx context.Context, professionalID string) ([]model.WorkingHoursRule, error)
	ReplaceWorkingHours(ctx context.Context, professionalID string, rules []model.WorkingHoursRule) error
	CreateBlock(ctx context.Context, block *model.AvailabilityBlock) error
	DeleteBlock(ctx context.Context, professionalID, blockID string) error
	ListBlocksInRange(ctx context.Context, professionalID, fromDate, toDate string) ([]model.AvailabilityBlock, error)
	ListBookedInRange(ctx context.Context, professionalID, fromDate, toDate string) ([]model.BookedInterval, error)
	CreateBooking(ctx context.Context, b *model.BookedInterval) error
	SetCalendarLink(ctx context.Context, professionalID, calendarID string) error
	SetChallengeSchedule(ctx context.Context, s model.ChallengeSchedule) error
	GetChallengeSchedule(ctx context.Context, challengeID string) (model.ChallengeSchedule, error)
	RecordCheckin(ctx context.Context, challengeID, userID, date string) (bool, error)
	ListCheckins(ctx context.Context, challengeID, userID string) ([]string, error)
}

// Options tunes server behavior. Zero values fall back to sane defaults.
type Options struct {
	Addr                   string
	APIKey                 string
	SlotMinutes            int
	DefaultDurationMinutes int
	MaxRangeDays           int
}

type HTTPServer struct {
	server *http.Server
	db     Store
	cache  *cache.Cache
	zone   *wallclock.Zone
	log    *zerolog.Logger

	apiKey          string
	slotMinutes     int
	defaultDuration int
	maxRangeDays    int
}

func NewHTTPServer(store Store, c *cache.Cache, zone *wallclock.Zone, logger *zerolog.Logger, opts Options) *HTTPServer {
	s := &HTTPServer{
		db:              store,
		cache:           c,
		zone:            zone,
		log:             logger,
		apiKey:          opts.APIKey,
		slotMinutes:     opts.SlotMinutes,
		defaultDuration: opts.DefaultDurationMinutes,
		maxRangeDays:    opts.MaxRangeDays,
	}
	if s.slotMinutes <= 0 {
		s.slotMinutes = 30
	}
	if s.defaultDuration <= 0 {
		s.defaultDuration = 60
	}
	if s.maxRangeDays <= 0 {
		s.maxRangeDays = 90
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/availability/preview", s.handleAvailabilityPreview)
	mux.HandleFunc("/api/availability/slots", s.handleBookableSlots)
	mux.HandleFunc("/api/availability/export", s.handleAvailabilityExport)
	mux.HandleFunc("/api/working-hours/", s.handleWorkingHours)
	mux.HandleFunc("/api/blocks", s.handleBlocks)
	mux.HandleFunc("/api/blocks/", s.handleDeleteBlock)
	mux.HandleFunc("/api/bookings", s.handleCreateBooking)
	mux.HandleFunc("/api/calendar-links/", s.handleSetCalendarLink)
	mux.HandleFunc("/api/challenges/", s.handleChallenges)

	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.withAuth(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			key := r.Header.Get("X-Api-Key")
			if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid or missing API key")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// validateRange checks a YYYY-MM-DD pair and the range cap.
func (s *HTTPServer) validateRange(startDate, endDate string) error {
	if startDate == "" || endDate == "" {
		return fmt.Errorf("start_date and end_date are required")
	}
	start, err := wallclock.ParseDate(startDate)
	if err != nil {
		return fmt.Errorf("invalid start_date format; expected YYYY-MM-DD")
	}
	end, err := wallclock.ParseDate(endDate)
	if err != nil {
		return fmt.Errorf("invalid end_date format; expected YYYY-MM-DD")
	}
	if start.After(end) {
		return fmt.Errorf("start_date must be before or equal to end_date")
	}
	if int(end.Sub(start).Hours()/24) > s.maxRangeDays {
		return fmt.Errorf("date range exceeds maximum of %d days", s.maxRangeDays)
	}
	return nil
}
