// Package calsync mirrors busy periods from an external calendar into
// availability blocks. Reconciliation is a pure diff keyed on the external
// event ID; applying the diff is the storage layer's job, so a crashed or
// repeated pass converges to the same end state.
package calsync

import (
	"time"

	"github.com/google/uuid"

	"github.com/imsoft/Holistia-sub011/internal/model"
)

// Diff is the plan produced by one reconciliation pass. The caller applies it
// transactionally; partial failure is repaired by the next pass.
type Diff struct {
	ToInsert    []model.AvailabilityBlock
	ToDeleteIDs []string
}

// Empty reports whether the pass found nothing to change.
func (d Diff) Empty() bool {
	return len(d.ToInsert) == 0 && len(d.ToDeleteIDs) == 0
}

// Reconcile diffs the professional's current blocks against a fresh fetch of
// external busy events.
//
//   - An event with an unseen ID becomes a new block; an already-synced event
//     is left untouched, so re-running a pass produces no spurious updates.
//   - A previously-synced block whose event no longer appears is deleted.
//   - Manually created blocks are never touched.
//
// Zero-length events are skipped: they subtract no time and would only fail
// block validation downstream.
func Reconcile(professionalID string, current []model.AvailabilityBlock, events []model.ExternalEvent) Diff {
	synced := make(map[string]string, len(current)) // external event ID -> block ID
	for i := range current {
		b := &current[i]
		if b.IsExternalEvent && b.ExternalEventID != "" {
			synced[b.ExternalEventID] = b.ID
		}
	}

	fresh := make(map[string]bool, len(events))
	var diff Diff
	now := time.Now()

	for i := range events {
		ev := &events[i]
		if ev.ID == "" {
			continue
		}
		if !ev.AllDay && ev.StartTime >= ev.EndTime {
			continue
		}
		fresh[ev.ID] = true
		if _, ok := synced[ev.ID]; ok {
			continue
		}
		diff.ToInsert = append(diff.ToInsert, eventToBlock(professionalID, ev, now))
	}

	for eventID, blockID := range synced {
		if !fresh[eventID] {
			diff.ToDeleteIDs = append(diff.ToDeleteIDs, blockID)
		}
	}
	return diff
}

func eventToBlock(professionalID string, ev *model.ExternalEvent, now time.Time) model.AvailabilityBlock {
	b := model.AvailabilityBlock{
		ID:              uuid.NewString(),
		ProfessionalID:  professionalID,
		IsExternalEvent: true,
		ExternalEventID: ev.ID,
		Reason:          ev.Summary,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if ev.AllDay {
		b.BlockType = model.BlockFullDay
		b.StartDate = ev.Date
		b.EndDate = ev.EndDate
		if b.EndDate == "" {
			b.EndDate = ev.Date
		}
	} else {
		b.BlockType = model.BlockTimeRange
		b.Date = ev.Date
		b.StartTime = ev.StartTime
		b.EndTime = ev.EndTime
	}
	return b
}
