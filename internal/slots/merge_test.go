package slots

import (
	"testing"

	"github.com/imsoft/Holistia-sub011/internal/model"
)

func statusAt(day []model.Slot, start string) (model.SlotStatus, string) {
	for _, s := range day {
		if s.StartTime == start {
			return s.Status, s.Reason
		}
	}
	return "", ""
}

func TestMergeStatuses(t *testing.T) {
	in := baseInput()
	in.EndDate = "2024-01-01"
	in.Blocks = []model.AvailabilityBlock{{
		ID:        "b1",
		BlockType: model.BlockTimeRange,
		Date:      "2024-01-01",
		StartTime: "12:00",
		EndTime:   "13:00",
	}}
	in.Booked = []model.BookedInterval{{
		Date:      "2024-01-01",
		StartTime: "10:00",
		EndTime:   "10:30",
		Status:    model.BookingConfirmed,
	}}

	got, err := Merge(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	day := got["2024-01-01"]
	if len(day) != 16 {
		t.Fatalf("expected 16 grid cells, got %d", len(day))
	}

	tests := []struct {
		start  string
		status model.SlotStatus
		reason string
	}{
		{"09:00", model.SlotAvailable, ""},
		{"10:00", model.SlotOccupied, ""},
		{"10:30", model.SlotAvailable, ""},
		{"12:00", model.SlotBlocked, "manual_block"},
		{"12:30", model.SlotBlocked, "manual_block"},
		{"13:00", model.SlotAvailable, ""},
		{"16:30", model.SlotAvailable, ""},
	}
	for _, tt := range tests {
		status, reason := statusAt(day, tt.start)
		if status != tt.status || reason != tt.reason {
			t.Errorf("%s: expected (%s, %q), got (%s, %q)", tt.start, tt.status, tt.reason, status, reason)
		}
	}
}

func TestMergeNotOfferedDay(t *testing.T) {
	in := baseInput()
	in.StartDate = "2024-01-06" // Saturday, not in the Mon-Fri rule
	in.EndDate = "2024-01-06"

	got, err := Merge(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	day := got["2024-01-06"]
	if len(day) != 16 {
		t.Fatalf("expected 16 grid cells, got %d", len(day))
	}
	for _, s := range day {
		if s.Status != model.SlotNotOffered {
			t.Errorf("%s: expected not_offered, got %s", s.StartTime, s.Status)
		}
	}
}

func TestMergeManualBlockBeatsExternal(t *testing.T) {
	in := baseInput()
	in.EndDate = "2024-01-01"
	in.Blocks = []model.AvailabilityBlock{
		{
			ID:              "ext",
			BlockType:       model.BlockTimeRange,
			Date:            "2024-01-01",
			StartTime:       "11:00",
			EndTime:         "14:00",
			IsExternalEvent: true,
			ExternalEventID: "gcal-1",
		},
		{
			ID:        "man",
			BlockType: model.BlockTimeRange,
			Date:      "2024-01-01",
			StartTime: "12:00",
			EndTime:   "13:00",
		},
	}

	got, err := Merge(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	day := got["2024-01-01"]

	if status, reason := statusAt(day, "11:00"); status != model.SlotBlocked || reason != "external_block" {
		t.Errorf("11:00: expected external_block, got (%s, %q)", status, reason)
	}
	if status, reason := statusAt(day, "12:00"); status != model.SlotBlocked || reason != "manual_block" {
		t.Errorf("12:00: expected manual_block, got (%s, %q)", status, reason)
	}
}

func TestMergeBlockBeatsBooking(t *testing.T) {
	in := baseInput()
	in.EndDate = "2024-01-01"
	in.Blocks = []model.AvailabilityBlock{{
		ID:              "ext",
		BlockType:       model.BlockTimeRange,
		Date:            "2024-01-01",
		StartTime:       "10:00",
		EndTime:         "11:00",
		IsExternalEvent: true,
		ExternalEventID: "gcal-1",
	}}
	in.Booked = []model.BookedInterval{{
		Date:      "2024-01-01",
		StartTime: "10:00",
		EndTime:   "11:00",
		Status:    model.BookingConfirmed,
	}}

	got, err := Merge(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	day := got["2024-01-01"]

	status, reason := statusAt(day, "10:00")
	if status != model.SlotBlocked || reason != "external_block" {
		t.Errorf("expected block to win over booking, got (%s, %q)", status, reason)
	}
}

func TestMergeFullDayBlock(t *testing.T) {
	in := baseInput()
	in.EndDate = "2024-01-01"
	in.Blocks = []model.AvailabilityBlock{{
		ID:        "b1",
		BlockType: model.BlockFullDay,
		StartDate: "2023-12-30",
		EndDate:   "2024-01-02",
	}}

	got, err := Merge(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range got["2024-01-01"] {
		if s.Status != model.SlotBlocked {
			t.Errorf("%s: expected blocked, got %s", s.StartTime, s.Status)
		}
	}
}

func TestMergeBlockedNeverAvailable(t *testing.T) {
	// Property: any cell a block touches is never labeled available.
	in := baseInput()
	in.Blocks = []model.AvailabilityBlock{
		{ID: "b1", BlockType: model.BlockTimeRange, Date: "2024-01-02", StartTime: "09:15", EndTime: "09:45"},
		{ID: "b2", BlockType: model.BlockFullDay, StartDate: "2024-01-04", EndDate: "2024-01-04"},
	}

	got, err := Merge(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for date, day := range got {
		for _, s := range day {
			for _, b := range in.Blocks {
				if !b.CoversDate(date) {
					continue
				}
				covered := b.BlockType == model.BlockFullDay ||
					(s.StartTime < b.EndTime && b.StartTime < s.EndTime)
				if covered && s.Status == model.SlotAvailable {
					t.Errorf("%s %s: available despite block %s", date, s.StartTime, b.ID)
				}
			}
		}
	}
}

func TestMergeNoRules(t *testing.T) {
	in := baseInput()
	in.Rules = nil
	in.EndDate = "2024-01-02"

	got, err := Merge(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected entries for both dates, got %d", len(got))
	}
	for date, day := range got {
		if len(day) != 0 {
			t.Errorf("%s: expected no cells without a rule, got %d", date, len(day))
		}
	}
}
