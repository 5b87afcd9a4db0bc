package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/imsoft/Holistia-sub011/internal/export"
	"github.com/imsoft/Holistia-sub011/internal/metrics"
	"github.com/imsoft/Holistia-sub011/internal/model"
	"github.com/imsoft/Holistia-sub011/internal/slots"
)

// PreviewRequest is the request body for POST /api/availability/preview.
type PreviewRequest struct {
	ProfessionalID string `json:"professional_id"`
	StartDate      string `json:"start_date"` // Format: YYYY-MM-DD
	EndDate        string `json:"end_date"`   // Format: YYYY-MM-DD
}

// PreviewResponse is the full calendar grid for the owner's editor view.
type PreviewResponse struct {
	ProfessionalID string           `json:"professional_id"`
	Days           model.DaySlotMap `json:"days"`
	Period         struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"period"`
}

// SlotsRequest is the request body for POST /api/availability/slots.
type SlotsRequest struct {
	ProfessionalID         string `json:"professional_id"`
	StartDate              string `json:"start_date"`
	EndDate                string `json:"end_date"`
	ServiceDurationMinutes int    `json:"service_duration_minutes,omitempty"`
	IncludePast            bool   `json:"include_past,omitempty"` // owner tooling only
}

// SlotsResponse lists bookable slots for the patron-facing picker.
type SlotsResponse struct {
	ProfessionalID string       `json:"professional_id"`
	Slots          []model.Slot `json:"slots"`
}

// handleAvailabilityPreview returns every grid cell with its display status.
// POST /api/availability/preview
func (s *HTTPServer) handleAvailabilityPreview(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability_preview")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req PreviewRequest
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
	if err := s.validateRange(req.StartDate, req.EndDate); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cacheKey := fmt.Sprintf("preview:%s:%s:%s", req.ProfessionalID, req.StartDate, req.EndDate)
	var resp PreviewResponse
	if s.cache.Read(r.Context(), cacheKey, &resp) {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	in, err := s.loadInput(r, req.ProfessionalID, req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load schedule data")
		return
	}
	in.ServiceDurationMinutes = s.slotMinutes // preview classifies grid cells, not service fit

	metrics.IncSlotRequest("preview")
	days, err := slots.Merge(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp = PreviewResponse{ProfessionalID: req.ProfessionalID, Days: days}
	resp.Period.Start = req.StartDate
	resp.Period.End = req.EndDate

	s.cache.Write(r.Context(), cacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

// handleBookableSlots returns only slots a patron can book right now. Slots
// whose start has already passed in the operating timezone are dropped unless
// the caller asks for them.
// POST /api/availability/slots
func (s *HTTPServer) handleBookableSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability_slots")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req SlotsRequest
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
	if err := s.validateRange(req.StartDate, req.EndDate); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ServiceDurationMinutes < 0 {
		writeError(w, http.StatusBadRequest, "service_duration_minutes must be positive")
		return
	}

	in, err := s.loadInput(r, req.ProfessionalID, req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load schedule data")
		return
	}
	in.ServiceDurationMinutes = req.ServiceDurationMinutes
	if in.ServiceDurationMinutes == 0 {
		in.ServiceDurationMinutes = s.defaultDuration
	}

	metrics.IncSlotRequest("bookable")
	all, err := slots.Generate(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !req.IncludePast {
		all = s.dropPast(all)
	}

	writeJSON(w, http.StatusOK, SlotsResponse{ProfessionalID: req.ProfessionalID, Slots: all})
}

// handleAvailabilityExport streams the preview grid as an xlsx workbook.
// GET /api/availability/export?professional_id=...&start_date=...&end_date=...
func (s *HTTPServer) handleAvailabilityExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability_export")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

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

	in, err := s.loadInput(r, professionalID, startDate, endDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load schedule data")
		return
	}
	in.ServiceDurationMinutes = s.slotMinutes

	days, err := slots.Merge(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filename := fmt.Sprintf("availability_%s_%s_%s.xlsx", professionalID, startDate, endDate)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := export.AvailabilityReport(w, professionalID, days); err != nil {
		s.log.Error().Err(err).Str("professional_id", professionalID).Msg("export failed")
	}
}

// loadInput fetches rules, blocks, and bookings for one professional and range.
func (s *HTTPServer) loadInput(r *http.Request, professionalID, startDate, endDate string) (slots.Input, error) {
	ctx := r.Context()

	rules, err := s.db.GetWorkingHours(ctx, professionalID)
	if err != nil {
		return slots.Input{}, err
	}
	blocks, err := s.db.ListBlocksInRange(ctx, professionalID, startDate, endDate)
	if err != nil {
		return slots.Input{}, err
	}
	booked, err := s.db.ListBookedInRange(ctx, professionalID, startDate, endDate)
	if err != nil {
		return slots.Input{}, err
	}

	return slots.Input{
		ProfessionalID: professionalID,
		StartDate:      startDate,
		EndDate:        endDate,
		SlotMinutes:    s.slotMinutes,
		Rules:          rules,
		Blocks:         blocks,
		Booked:         booked,
	}, nil
}

// dropPast removes slots starting at or before the current wall-clock minute.
func (s *HTTPServer) dropPast(all []model.Slot) []model.Slot {
	today := s.zone.Today()
	now := s.zone.Now().Format("15:04")

	kept := make([]model.Slot, 0, len(all))
	for _, slot := range all {
		if slot.Date < today {
			continue
		}
		if slot.Date == today && slot.StartTime <= now {
			continue
		}
		kept = append(kept, slot)
	}
	return kept
}
