package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/imsoft/Holistia-sub011/internal/metrics"
	"github.com/imsoft/Holistia-sub011/internal/model"
	"github.com/imsoft/Holistia-sub011/internal/wallclock"
)

// WorkingHoursRequest is the request body for PUT /api/working-hours/{id}.
// The rule set replaces the professional's schedule wholesale; an empty list
// clears it.
type WorkingHoursRequest struct {
	Rules []WorkingHoursRule `json:"rules"`
}

type WorkingHoursRule struct {
	Weekdays  []int  `json:"weekdays"`   // 0-6, 0 = Sunday
	StartTime string `json:"start_time"` // Format: HH:MM
	EndTime   string `json:"end_time"`   // Format: HH:MM
}

// handleWorkingHours reads or replaces a professional's weekly schedule.
// GET|PUT /api/working-hours/{professional_id}
func (s *HTTPServer) handleWorkingHours(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("working_hours")

	professionalID := strings.TrimPrefix(r.URL.Path, "/api/working-hours/")
	if professionalID == "" || strings.Contains(professionalID, "/") {
		writeError(w, http.StatusBadRequest, "professional_id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rules, err := s.db.GetWorkingHours(r.Context(), professionalID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load working hours")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"professional_id": professionalID, "rules": rules})

	case http.MethodPut:
		var req WorkingHoursRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		rules := make([]model.WorkingHoursRule, 0, len(req.Rules))
		for _, in := range req.Rules {
			rules = append(rules, model.WorkingHoursRule{
				ProfessionalID: professionalID,
				Weekdays:       in.Weekdays,
				StartTime:      in.StartTime,
				EndTime:        in.EndTime,
			})
		}

		if err := s.db.ReplaceWorkingHours(r.Context(), professionalID, rules); err != nil {
			if errors.Is(err, model.ErrInvalidRule) || errors.Is(err, wallclock.ErrInvalidTimeFormat) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to save working hours")
			return
		}

		s.invalidateProfessional(r, professionalID)
		s.log.Info().Str("professional_id", professionalID).Int("rules", len(rules)).Msg("working hours replaced")
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// CreateBlockRequest is the request body for POST /api/blocks.
type CreateBlockRequest struct {
	ProfessionalID string `json:"professional_id"`
	BlockType      string `json:"block_type"`           // "full_day" or "time_range"
	StartDate      string `json:"start_date,omitempty"` // full_day
	EndDate        string `json:"end_date,omitempty"`   // full_day
	Date           string `json:"date,omitempty"`       // time_range
	StartTime      string `json:"start_time,omitempty"` // time_range
	EndTime        string `json:"end_time,omitempty"`   // time_range
	Reason         string `json:"reason,omitempty"`
}

// handleBlocks creates or lists manual availability blocks.
// POST /api/blocks | GET /api/blocks?professional_id=...&start_date=...&end_date=...
func (s *HTTPServer) handleBlocks(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("blocks")

	switch r.Method {
	case http.MethodPost:
		var req CreateBlockRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.ProfessionalID == "" {
			writeError(w, http.StatusBadRequest, "professional_id is required")
			return
		}

		block := model.AvailabilityBlock{
			ProfessionalID: req.ProfessionalID,
			BlockType:      model.BlockType(req.BlockType),
			StartDate:      req.StartDate,
			EndDate:        req.EndDate,
			Date:           req.Date,
			StartTime:      req.StartTime,
			EndTime:        req.EndTime,
			Reason:         req.Reason,
		}
		if err := s.db.CreateBlock(r.Context(), &block); err != nil {
			if errors.Is(err, model.ErrInvalidBlockRange) || errors.Is(err, wallclock.ErrInvalidTimeFormat) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to create block")
			return
		}

		s.invalidateProfessional(r, req.ProfessionalID)
		s.log.Info().
			Str("professional_id", req.ProfessionalID).
			Str("block_id", block.ID).
			Str("block_type", req.BlockType).
			Msg("availability block created")
		writeJSON(w, http.StatusCreated, block)

	case http.MethodGet:
		professionalID := r.URL.Query().Get("professional_id")
		startDate := r.URL.Query().Get("start_date")
		endDate := r.URL.Query().Get("end_date")
		if professionalID == "" {
			writeError(w, http.StatusBadRequest, "professional_id is required")
			return
		}
		if err := s.validateRange(startDate, endDate); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		blocks, err := s.db.ListBlocksInRange(r.Context(), professionalID, startDate, endDate)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list blocks")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"blocks": blocks})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleDeleteBlock removes one manual block.
// DELETE /api/blocks/{block_id}?professional_id=...
func (s *HTTPServer) handleDeleteBlock(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_block")
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	blockID := strings.TrimPrefix(r.URL.Path, "/api/blocks/")
	professionalID := r.URL.Query().Get("professional_id")
	if blockID == "" || professionalID == "" {
		writeError(w, http.StatusBadRequest, "block id and professional_id are required")
		return
	}

	if err := s.db.DeleteBlock(r.Context(), professionalID, blockID); err != nil {
		writeError(w, http.StatusNotFound, "block not found")
		return
	}

	s.invalidateProfessional(r, professionalID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// CreateBookingRequest is the request body for POST /api/bookings. The
// marketplace backend calls this after taking payment; the unique start-time
// constraint is the last line of defense against double booking.
type CreateBookingRequest struct {
	ProfessionalID string `json:"professional_id"`
	Date           string `json:"date"`       // Format: YYYY-MM-DD
	StartTime      string `json:"start_time"` // Format: HH:MM
	EndTime        string `json:"end_time"`   // Format: HH:MM
}

// handleCreateBooking records a booked interval.
// POST /api/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req CreateBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ProfessionalID == "" || req.Date == "" || req.StartTime == "" || req.EndTime == "" {
		writeError(w, http.StatusBadRequest, "professional_id, date, start_time and end_time are required")
		return
	}
	if _, err := wallclock.ParseDate(req.Date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}
	start, err := wallclock.ParseMinutes(req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_time format; expected HH:MM")
		return
	}
	end, err := wallclock.ParseMinutes(req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_time format; expected HH:MM")
		return
	}
	if start >= end {
		writeError(w, http.StatusBadRequest, "start_time must be before end_time")
		return
	}

	booking := model.BookedInterval{
		ProfessionalID: req.ProfessionalID,
		Date:           req.Date,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Status:         model.BookingPending,
	}
	if err := s.db.CreateBooking(r.Context(), &booking); err != nil {
		writeError(w, http.StatusConflict, "slot already booked")
		return
	}

	s.invalidateProfessional(r, req.ProfessionalID)
	s.log.Info().
		Str("professional_id", req.ProfessionalID).
		Str("date", req.Date).
		Str("start_time", req.StartTime).
		Msg("booking created")
	writeJSON(w, http.StatusCreated, booking)
}

// handleSetCalendarLink attaches a Google calendar to a professional.
// PUT /api/calendar-links/{professional_id}
func (s *HTTPServer) handleSetCalendarLink(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("set_calendar_link")
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	professionalID := strings.TrimPrefix(r.URL.Path, "/api/calendar-links/")
	if professionalID == "" {
		writeError(w, http.StatusBadRequest, "professional_id is required")
		return
	}

	var req struct {
		CalendarID string `json:"calendar_id"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CalendarID == "" {
		writeError(w, http.StatusBadRequest, "calendar_id is required")
		return
	}

	if err := s.db.SetCalendarLink(r.Context(), professionalID, req.CalendarID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save calendar link")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) invalidateProfessional(r *http.Request, professionalID string) {
	s.cache.Invalidate(r.Context(), "preview:"+professionalID+":*")
}
