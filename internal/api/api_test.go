package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/imsoft/Holistia-sub011/internal/db"
	"github.com/imsoft/Holistia-sub011/internal/model"
	"github.com/imsoft/Holistia-sub011/internal/wallclock"
)

const testAPIKey = "valid-key"

type ErrorResponse struct {
	Error string `json:"error"`
}

type fakeStore struct {
	rules     map[string][]model.WorkingHoursRule
	blocks    map[string][]model.AvailabilityBlock
	booked    map[string][]model.BookedInterval
	schedules map[string]model.ChallengeSchedule
	checkins  map[string][]string
	links     map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rules:     make(map[string][]model.WorkingHoursRule),
		blocks:    make(map[string][]model.AvailabilityBlock),
		booked:    make(map[string][]model.BookedInterval),
		schedules: make(map[string]model.ChallengeSchedule),
		checkins:  make(map[string][]string),
		links:     make(map[string]string),
	}
}

func (f *fakeStore) GetWorkingHours(_ context.Context, id string) ([]model.WorkingHoursRule, error) {
	return f.rules[id], nil
}

func (f *fakeStore) ReplaceWorkingHours(_ context.Context, id string, rules []model.WorkingHoursRule) error {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	f.rules[id] = rules
	return nil
}

func (f *fakeStore) CreateBlock(_ context.Context, b *model.AvailabilityBlock) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.ID == "" {
		b.ID = fmt.Sprintf("blk-%d", len(f.blocks[b.ProfessionalID])+1)
	}
	f.blocks[b.ProfessionalID] = append(f.blocks[b.ProfessionalID], *b)
	return nil
}

func (f *fakeStore) DeleteBlock(_ context.Context, id, blockID string) error {
	blocks := f.blocks[id]
	for i, b := range blocks {
		if b.ID == blockID {
			f.blocks[id] = append(blocks[:i], blocks[i+1:]...)
			return nil
		}
	}
	return db.ErrNotFound
}

func (f *fakeStore) ListBlocksInRange(_ context.Context, id, from, to string) ([]model.AvailabilityBlock, error) {
	return f.blocks[id], nil
}

func (f *fakeStore) ListBookedInRange(_ context.Context, id, from, to string) ([]model.BookedInterval, error) {
	return f.booked[id], nil
}

func (f *fakeStore) CreateBooking(_ context.Context, b *model.BookedInterval) error {
	for _, existing := range f.booked[b.ProfessionalID] {
		if existing.Date == b.Date && existing.StartTime == b.StartTime {
			return fmt.Errorf("duplicate booking")
		}
	}
	b.ID = int64(len(f.booked[b.ProfessionalID]) + 1)
	f.booked[b.ProfessionalID] = append(f.booked[b.ProfessionalID], *b)
	return nil
}

func (f *fakeStore) SetCalendarLink(_ context.Context, id, calendarID string) error {
	f.links[id] = calendarID
	return nil
}

func (f *fakeStore) SetChallengeSchedule(_ context.Context, s model.ChallengeSchedule) error {
	f.schedules[s.ChallengeID] = s
	return nil
}

func (f *fakeStore) GetChallengeSchedule(_ context.Context, id string) (model.ChallengeSchedule, error) {
	s, ok := f.schedules[id]
	if !ok {
		return model.ChallengeSchedule{}, db.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) RecordCheckin(_ context.Context, challengeID, userID, date string) (bool, error) {
	key := challengeID + "|" + userID
	for _, d := range f.checkins[key] {
		if d == date {
			return false, nil
		}
	}
	f.checkins[key] = append(f.checkins[key], date)
	return true, nil
}

func (f *fakeStore) ListCheckins(_ context.Context, challengeID, userID string) ([]string, error) {
	return f.checkins[challengeID+"|"+userID], nil
}

func setupTestServer(t *testing.T) (*fakeStore, http.Handler) {
	t.Helper()
	zone, err := wallclock.LoadZone("America/Mexico_City")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	store := newFakeStore()
	logger := zerolog.Nop()
	server := NewHTTPServer(store, nil, zone, &logger, Options{
		APIKey:                 testAPIKey,
		SlotMinutes:            30,
		DefaultDurationMinutes: 30,
		MaxRangeDays:           90,
	})
	return store, server.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", testAPIKey)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	_, h := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/availability/preview", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestPreviewValidation(t *testing.T) {
	_, h := setupTestServer(t)

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing professional_id",
			body:       map[string]string{"start_date": "2030-01-01", "end_date": "2030-01-02"},
			wantStatus: http.StatusBadRequest,
			wantError:  "professional_id is required",
		},
		{
			name:       "missing dates",
			body:       map[string]string{"professional_id": "pro-1"},
			wantStatus: http.StatusBadRequest,
			wantError:  "start_date and end_date are required",
		},
		{
			name: "invalid start_date format",
			body: map[string]string{
				"professional_id": "pro-1",
				"start_date":      "01-01-2030",
				"end_date":        "2030-01-02",
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid start_date format; expected YYYY-MM-DD",
		},
		{
			name: "reversed range",
			body: map[string]string{
				"professional_id": "pro-1",
				"start_date":      "2030-01-10",
				"end_date":        "2030-01-01",
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "start_date must be before or equal to end_date",
		},
		{
			name: "range too long",
			body: map[string]string{
				"professional_id": "pro-1",
				"start_date":      "2030-01-01",
				"end_date":        "2030-06-01",
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "date range exceeds maximum of 90 days",
		},
		{
			name:       "invalid JSON",
			body:       "not json",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid JSON body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodPost, "/api/availability/preview", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err == nil {
				if resp.Error != tt.wantError {
					t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
				}
			}
		})
	}
}

func TestPreviewStatuses(t *testing.T) {
	store, h := setupTestServer(t)
	store.rules["pro-1"] = []model.WorkingHoursRule{{
		ProfessionalID: "pro-1",
		Weekdays:       []int{1, 2, 3, 4, 5},
		StartTime:      "09:00",
		EndTime:        "12:00",
	}}
	store.blocks["pro-1"] = []model.AvailabilityBlock{{
		ID:             "b1",
		ProfessionalID: "pro-1",
		BlockType:      model.BlockTimeRange,
		Date:           "2030-01-07", // a Monday
		StartTime:      "10:00",
		EndTime:        "11:00",
	}}

	w := doJSON(t, h, http.MethodPost, "/api/availability/preview", PreviewRequest{
		ProfessionalID: "pro-1",
		StartDate:      "2030-01-07",
		EndDate:        "2030-01-07",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp PreviewResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	day := resp.Days["2030-01-07"]
	if len(day) != 6 {
		t.Fatalf("expected 6 grid cells, got %d", len(day))
	}
	want := map[string]model.SlotStatus{
		"09:00": model.SlotAvailable,
		"10:00": model.SlotBlocked,
		"10:30": model.SlotBlocked,
		"11:00": model.SlotAvailable,
	}
	for _, s := range day {
		if expect, ok := want[s.StartTime]; ok && s.Status != expect {
			t.Errorf("%s: status = %s, want %s", s.StartTime, s.Status, expect)
		}
	}
}

func TestBookableSlotsExcludeBooked(t *testing.T) {
	store, h := setupTestServer(t)
	store.rules["pro-1"] = []model.WorkingHoursRule{{
		ProfessionalID: "pro-1",
		Weekdays:       []int{1},
		StartTime:      "09:00",
		EndTime:        "11:00",
	}}
	store.booked["pro-1"] = []model.BookedInterval{{
		ProfessionalID: "pro-1",
		Date:           "2030-01-07",
		StartTime:      "09:30",
		EndTime:        "10:00",
		Status:         model.BookingConfirmed,
	}}

	w := doJSON(t, h, http.MethodPost, "/api/availability/slots", SlotsRequest{
		ProfessionalID: "pro-1",
		StartDate:      "2030-01-07",
		EndDate:        "2030-01-07",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp SlotsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Slots) != 3 {
		t.Fatalf("expected 3 slots, got %d: %+v", len(resp.Slots), resp.Slots)
	}
	for _, s := range resp.Slots {
		if s.StartTime == "09:30" {
			t.Error("booked 09:30 slot must not be offered")
		}
	}
}

func TestBookableSlotsDropPastDates(t *testing.T) {
	store, h := setupTestServer(t)
	store.rules["pro-1"] = []model.WorkingHoursRule{{
		ProfessionalID: "pro-1",
		Weekdays:       []int{0, 1, 2, 3, 4, 5, 6},
		StartTime:      "09:00",
		EndTime:        "10:00",
	}}

	w := doJSON(t, h, http.MethodPost, "/api/availability/slots", SlotsRequest{
		ProfessionalID: "pro-1",
		StartDate:      "2020-01-01",
		EndDate:        "2020-01-03",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp SlotsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Slots) != 0 {
		t.Errorf("past slots must be dropped, got %d", len(resp.Slots))
	}

	w = doJSON(t, h, http.MethodPost, "/api/availability/slots", SlotsRequest{
		ProfessionalID: "pro-1",
		StartDate:      "2020-01-01",
		EndDate:        "2020-01-03",
		IncludePast:    true,
	})
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Slots) != 6 {
		t.Errorf("include_past should keep all slots, got %d", len(resp.Slots))
	}
}

func TestWorkingHoursRoundTrip(t *testing.T) {
	_, h := setupTestServer(t)

	w := doJSON(t, h, http.MethodPut, "/api/working-hours/pro-1", WorkingHoursRequest{
		Rules: []WorkingHoursRule{{
			Weekdays:  []int{1, 3, 5},
			StartTime: "10:00",
			EndTime:   "18:00",
		}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodGet, "/api/working-hours/pro-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var resp struct {
		Rules []model.WorkingHoursRule `json:"rules"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Rules) != 1 || resp.Rules[0].StartTime != "10:00" {
		t.Errorf("unexpected rules: %+v", resp.Rules)
	}
}

func TestWorkingHoursRejectsInvalidRule(t *testing.T) {
	_, h := setupTestServer(t)

	w := doJSON(t, h, http.MethodPut, "/api/working-hours/pro-1", WorkingHoursRequest{
		Rules: []WorkingHoursRule{{
			Weekdays:  []int{1},
			StartTime: "18:00",
			EndTime:   "10:00",
		}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestBlockLifecycle(t *testing.T) {
	store, h := setupTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/blocks", CreateBlockRequest{
		ProfessionalID: "pro-1",
		BlockType:      "time_range",
		Date:           "2030-01-07",
		StartTime:      "12:00",
		EndTime:        "13:00",
		Reason:         "lunch",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created model.AvailabilityBlock
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created block has no id")
	}

	w = doJSON(t, h, http.MethodDelete, "/api/blocks/"+created.ID+"?professional_id=pro-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if len(store.blocks["pro-1"]) != 0 {
		t.Error("block not removed from store")
	}

	w = doJSON(t, h, http.MethodDelete, "/api/blocks/"+created.ID+"?professional_id=pro-1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestCreateBlockRejectsZeroLength(t *testing.T) {
	_, h := setupTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/blocks", CreateBlockRequest{
		ProfessionalID: "pro-1",
		BlockType:      "time_range",
		Date:           "2030-01-07",
		StartTime:      "12:00",
		EndTime:        "12:00",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCreateBookingConflict(t *testing.T) {
	_, h := setupTestServer(t)

	body := CreateBookingRequest{
		ProfessionalID: "pro-1",
		Date:           "2030-01-07",
		StartTime:      "10:00",
		EndTime:        "10:30",
	}
	if w := doJSON(t, h, http.MethodPost, "/api/bookings", body); w.Code != http.StatusCreated {
		t.Fatalf("first booking status = %d", w.Code)
	}
	if w := doJSON(t, h, http.MethodPost, "/api/bookings", body); w.Code != http.StatusConflict {
		t.Errorf("second booking status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestCheckinAndStreak(t *testing.T) {
	store, h := setupTestServer(t)
	store.schedules["ch-1"] = model.ChallengeSchedule{
		ChallengeID:  "ch-1",
		ScheduleDays: []int{0, 1, 2, 3, 4, 5, 6},
		StartedAt:    "2020-01-01",
	}

	w := doJSON(t, h, http.MethodPost, "/api/challenges/ch-1/checkins", CheckinRequest{UserID: "user-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("checkin status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp StreakResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Recorded || resp.Streak != 1 || !resp.Applicable {
		t.Errorf("unexpected checkin response: %+v", resp)
	}

	// Second check-in on the same date is a no-op; the streak holds and the
	// response says so explicitly rather than omitting the field.
	w = doJSON(t, h, http.MethodPost, "/api/challenges/ch-1/checkins", CheckinRequest{UserID: "user-1"})
	var repeat StreakResponse
	if err := json.Unmarshal(w.Body.Bytes(), &repeat); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if repeat.Recorded || repeat.Streak != 1 {
		t.Errorf("unexpected repeat checkin response: %+v", repeat)
	}
	var raw map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if v, ok := raw["recorded"]; !ok || v != false {
		t.Errorf("repeat checkin must report recorded=false, got body %s", w.Body.String())
	}

	w = doJSON(t, h, http.MethodGet, "/api/challenges/ch-1/streak?user_id=user-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("streak status = %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Streak != 1 {
		t.Errorf("streak = %d, want 1", resp.Streak)
	}
}

func TestStreakUnknownChallenge(t *testing.T) {
	_, h := setupTestServer(t)

	w := doJSON(t, h, http.MethodGet, "/api/challenges/nope/streak?user_id=user-1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSetCalendarLink(t *testing.T) {
	store, h := setupTestServer(t)

	w := doJSON(t, h, http.MethodPut, "/api/calendar-links/pro-1", map[string]string{
		"calendar_id": "pro1@group.calendar.google.com",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if store.links["pro-1"] != "pro1@group.calendar.google.com" {
		t.Errorf("link not stored: %v", store.links)
	}
}
