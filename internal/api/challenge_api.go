package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/imsoft/Holistia-sub011/internal/db"
	"github.com/imsoft/Holistia-sub011/internal/metrics"
	"github.com/imsoft/Holistia-sub011/internal/model"
	"github.com/imsoft/Holistia-sub011/internal/streak"
	"github.com/imsoft/Holistia-sub011/internal/wallclock"
)

// ScheduleRequest is the request body for PUT /api/challenges/{id}/schedule.
type ScheduleRequest struct {
	ScheduleDays []int  `json:"schedule_days"` // 0-6, 0 = Sunday
	StartedAt    string `json:"started_at"`    // Format: YYYY-MM-DD
}

// CheckinRequest is the request body for POST /api/challenges/{id}/checkins.
// Date defaults to today in the operating timezone.
type CheckinRequest struct {
	UserID string `json:"user_id"`
	Date   string `json:"date,omitempty"`
}

// StreakResponse reports the user's current run of completed scheduled days.
// Applicable is false when the challenge has no weekday schedule and streaks
// do not apply.
type StreakResponse struct {
	ChallengeID string `json:"challenge_id"`
	UserID      string `json:"user_id"`
	Streak      int    `json:"streak"`
	Applicable  bool   `json:"applicable"`
	Recorded    bool   `json:"recorded"` // checkin endpoint only; false on a same-date repeat
}

// handleChallenges routes /api/challenges/{id}/schedule, /checkins, /streak.
func (s *HTTPServer) handleChallenges(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/challenges/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	challengeID := parts[0]

	switch parts[1] {
	case "schedule":
		s.handleSetSchedule(w, r, challengeID)
	case "checkins":
		s.handleCheckin(w, r, challengeID)
	case "streak":
		s.handleStreak(w, r, challengeID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// handleSetSchedule stores the challenge's weekly cadence.
// PUT /api/challenges/{id}/schedule
func (s *HTTPServer) handleSetSchedule(w http.ResponseWriter, r *http.Request, challengeID string) {
	metrics.IncHTTP("challenge_schedule")
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ScheduleRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := wallclock.ParseDate(req.StartedAt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid started_at format; expected YYYY-MM-DD")
		return
	}
	for _, d := range req.ScheduleDays {
		if d < 0 || d > 6 {
			writeError(w, http.StatusBadRequest, "schedule_days entries must be 0-6")
			return
		}
	}

	err := s.db.SetChallengeSchedule(r.Context(), model.ChallengeSchedule{
		ChallengeID:  challengeID,
		ScheduleDays: req.ScheduleDays,
		StartedAt:    req.StartedAt,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save schedule")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleCheckin records today's (or an explicit date's) check-in and returns
// the updated streak. Checking in twice on one date is a no-op.
// POST /api/challenges/{id}/checkins
func (s *HTTPServer) handleCheckin(w http.ResponseWriter, r *http.Request, challengeID string) {
	metrics.IncHTTP("challenge_checkin")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req CheckinRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Date == "" {
		req.Date = s.zone.Today()
	} else if _, err := wallclock.ParseDate(req.Date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	recorded, err := s.db.RecordCheckin(r.Context(), challengeID, req.UserID, req.Date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record checkin")
		return
	}
	if recorded {
		metrics.IncCheckin()
	}

	resp, err := s.computeStreak(r, challengeID, req.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "challenge not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to compute streak")
		return
	}
	resp.Recorded = recorded
	writeJSON(w, http.StatusOK, resp)
}

// handleStreak returns the current streak without recording anything.
// GET /api/challenges/{id}/streak?user_id=...
func (s *HTTPServer) handleStreak(w http.ResponseWriter, r *http.Request, challengeID string) {
	metrics.IncHTTP("challenge_streak")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	resp, err := s.computeStreak(r, challengeID, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "challenge not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to compute streak")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) computeStreak(r *http.Request, challengeID, userID string) (StreakResponse, error) {
	ctx := r.Context()

	schedule, err := s.db.GetChallengeSchedule(ctx, challengeID)
	if err != nil {
		return StreakResponse{}, err
	}
	checkins, err := s.db.ListCheckins(ctx, challengeID, userID)
	if err != nil {
		return StreakResponse{}, err
	}

	count, applicable, err := streak.Compute(schedule.ScheduleDays, schedule.StartedAt, checkins, s.zone)
	if err != nil {
		return StreakResponse{}, err
	}

	return StreakResponse{
		ChallengeID: challengeID,
		UserID:      userID,
		Streak:      count,
		Applicable:  applicable,
	}, nil
}
