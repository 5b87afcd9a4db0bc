package model

// SlotStatus labels a calendar grid cell for display. Only available slots
// are bookable; the other statuses exist for the owner-facing preview.
type SlotStatus string

const (
	SlotAvailable  SlotStatus = "available"
	SlotOccupied   SlotStatus = "occupied"    // inside working hours, taken by a booking
	SlotBlocked    SlotStatus = "blocked"     // inside working hours, covered by a block
	SlotNotOffered SlotStatus = "not_offered" // outside working hours entirely
)

// Slot is a fixed-length candidate appointment start time.
type Slot struct {
	Date      string     `json:"date"`       // "2024-01-15"
	StartTime string     `json:"start_time"` // "10:00"
	EndTime   string     `json:"end_time"`   // "10:30"
	Status    SlotStatus `json:"status"`
	Reason    string     `json:"reason,omitempty"` // "manual_block", "external_block"
}

// DaySlotMap groups preview slots by calendar date.
type DaySlotMap map[string][]Slot

// ChallengeSchedule is a recurring program's weekly cadence for streak
// computation. An empty ScheduleDays means every day counts and the
// schedule-aware path does not apply.
type ChallengeSchedule struct {
	ChallengeID  string `json:"challenge_id"`
	ScheduleDays []int  `json:"schedule_days"` // 0-6, 0 = Sunday
	StartedAt    string `json:"started_at"`    // "2024-01-01"
}
