package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imsoft/Holistia-sub011/internal/calsync"
	"github.com/imsoft/Holistia-sub011/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ReplaceWorkingHours swaps the professional's rules for the given set in one
// transaction. An empty slice clears the schedule entirely.
func (db *DB) ReplaceWorkingHours(ctx context.Context, professionalID string, rules []model.WorkingHoursRule) error {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM working_hours WHERE professional_id = ?", professionalID); err != nil {
		return fmt.Errorf("clear working hours: %w", err)
	}

	for _, r := range rules {
		for _, wd := range r.Weekdays {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO working_hours (professional_id, weekday, start_time, end_time, updated_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(professional_id, weekday) DO UPDATE SET
					start_time = excluded.start_time,
					end_time = excluded.end_time,
					updated_at = excluded.updated_at`,
				professionalID, wd, r.StartTime, r.EndTime, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("insert working hours: %w", err)
			}
		}
	}

	return tx.Commit()
}

// GetWorkingHours returns the professional's rule, or nil when the schedule is
// unset. Weekdays sharing a time window are folded into one rule; the query
// keeps one rule per distinct window, so the caller receives the full set.
func (db *DB) GetWorkingHours(ctx context.Context, professionalID string) ([]model.WorkingHoursRule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT weekday, start_time, end_time, updated_at
		FROM working_hours
		WHERE professional_id = ?
		ORDER BY start_time, end_time, weekday`, professionalID)
	if err != nil {
		return nil, fmt.Errorf("query working hours: %w", err)
	}
	defer rows.Close()

	byWindow := make(map[string]*model.WorkingHoursRule)
	var order []string
	for rows.Next() {
		var wd int
		var start, end string
		var updated time.Time
		if err := rows.Scan(&wd, &start, &end, &updated); err != nil {
			return nil, fmt.Errorf("scan working hours: %w", err)
		}
		key := start + "-" + end
		rule, ok := byWindow[key]
		if !ok {
			rule = &model.WorkingHoursRule{
				ProfessionalID: professionalID,
				StartTime:      start,
				EndTime:        end,
				UpdatedAt:      updated,
			}
			byWindow[key] = rule
			order = append(order, key)
		}
		rule.Weekdays = append(rule.Weekdays, wd)
		if updated.After(rule.UpdatedAt) {
			rule.UpdatedAt = updated
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rules := make([]model.WorkingHoursRule, 0, len(order))
	for _, key := range order {
		rules = append(rules, *byWindow[key])
	}
	return rules, nil
}

// CreateBlock validates and stores a manual or external block. Blocks without
// an ID get a fresh uuid.
func (db *DB) CreateBlock(ctx context.Context, block *model.AvailabilityBlock) error {
	if err := block.Validate(); err != nil {
		return err
	}
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	block.CreatedAt = now
	block.UpdatedAt = now

	_, err := db.ExecContext(ctx, `
		INSERT INTO availability_blocks
			(id, professional_id, block_type, start_date, end_date, date,
			 start_time, end_time, is_external_event, external_event_id, reason,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		block.ID, block.ProfessionalID, block.BlockType,
		nullStr(block.StartDate), nullStr(block.EndDate), nullStr(block.Date),
		nullStr(block.StartTime), nullStr(block.EndTime),
		block.IsExternalEvent, nullStr(block.ExternalEventID), nullStr(block.Reason),
		block.CreatedAt, block.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

// DeleteBlock removes a professional's block by id.
func (db *DB) DeleteBlock(ctx context.Context, professionalID, blockID string) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM availability_blocks WHERE id = ? AND professional_id = ?",
		blockID, professionalID)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBlocksInRange returns every block of the professional that can touch a
// date in [fromDate, toDate].
func (db *DB) ListBlocksInRange(ctx context.Context, professionalID, fromDate, toDate string) ([]model.AvailabilityBlock, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, professional_id, block_type, start_date, end_date, date,
		       start_time, end_time, is_external_event, external_event_id, reason,
		       created_at, updated_at
		FROM availability_blocks
		WHERE professional_id = ?
		  AND ((block_type = 'full_day' AND start_date <= ? AND end_date >= ?)
		    OR (block_type = 'time_range' AND date >= ? AND date <= ?))
		ORDER BY COALESCE(date, start_date), start_time`,
		professionalID, toDate, fromDate, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()
	return scanBlocks(rows)
}

// ListExternalBlocksInRange returns only calendar-synced blocks in the range.
func (db *DB) ListExternalBlocksInRange(ctx context.Context, professionalID, fromDate, toDate string) ([]model.AvailabilityBlock, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, professional_id, block_type, start_date, end_date, date,
		       start_time, end_time, is_external_event, external_event_id, reason,
		       created_at, updated_at
		FROM availability_blocks
		WHERE professional_id = ? AND is_external_event = 1
		  AND ((block_type = 'full_day' AND start_date <= ? AND end_date >= ?)
		    OR (block_type = 'time_range' AND date >= ? AND date <= ?))`,
		professionalID, toDate, fromDate, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query external blocks: %w", err)
	}
	defer rows.Close()
	return scanBlocks(rows)
}

func scanBlocks(rows *sql.Rows) ([]model.AvailabilityBlock, error) {
	var blocks []model.AvailabilityBlock
	for rows.Next() {
		var b model.AvailabilityBlock
		var startDate, endDate, date, startTime, endTime, eventID, reason sql.NullString
		if err := rows.Scan(&b.ID, &b.ProfessionalID, &b.BlockType,
			&startDate, &endDate, &date, &startTime, &endTime,
			&b.IsExternalEvent, &eventID, &reason,
			&b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		b.StartDate = startDate.String
		b.EndDate = endDate.String
		b.Date = date.String
		b.StartTime = startTime.String
		b.EndTime = endTime.String
		b.ExternalEventID = eventID.String
		b.Reason = reason.String
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// CreateBooking stores a booked interval. The unique index rejects a second
// booking at the same start minute for the same professional and date.
func (db *DB) CreateBooking(ctx context.Context, b *model.BookedInterval) error {
	if b.Status == "" {
		b.Status = model.BookingPending
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO booked_intervals (professional_id, date, start_time, end_time, status)
		VALUES (?, ?, ?, ?, ?)`,
		b.ProfessionalID, b.Date, b.StartTime, b.EndTime, b.Status)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

// UpdateBookingStatus sets a booking's status.
func (db *DB) UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error {
	res, err := db.ExecContext(ctx,
		"UPDATE booked_intervals SET status = ? WHERE id = ?", status, bookingID)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBookedInRange returns the professional's occupying bookings in the
// range. Cancelled rows are excluded.
func (db *DB) ListBookedInRange(ctx context.Context, professionalID, fromDate, toDate string) ([]model.BookedInterval, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, professional_id, date, start_time, end_time, status
		FROM booked_intervals
		WHERE professional_id = ? AND date >= ? AND date <= ?
		  AND status IN (?, ?)
		ORDER BY date, start_time`,
		professionalID, fromDate, toDate, model.BookingPending, model.BookingConfirmed)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var booked []model.BookedInterval
	for rows.Next() {
		var b model.BookedInterval
		if err := rows.Scan(&b.ID, &b.ProfessionalID, &b.Date, &b.StartTime, &b.EndTime, &b.Status); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		booked = append(booked, b)
	}
	return booked, rows.Err()
}

// ApplySyncDiff applies a calendar reconciliation result atomically. Either
// every insert and delete lands or none do, so a crashed pass never leaves a
// half-synced calendar.
func (db *DB) ApplySyncDiff(ctx context.Context, diff calsync.Diff) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, b := range diff.ToInsert {
		id := b.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO availability_blocks
				(id, professional_id, block_type, start_date, end_date, date,
				 start_time, end_time, is_external_event, external_event_id, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			id, b.ProfessionalID, b.BlockType,
			nullStr(b.StartDate), nullStr(b.EndDate), nullStr(b.Date),
			nullStr(b.StartTime), nullStr(b.EndTime),
			b.ExternalEventID, nullStr(b.Reason))
		if err != nil {
			return fmt.Errorf("insert external block: %w", err)
		}
	}

	for _, id := range diff.ToDeleteIDs {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM availability_blocks WHERE id = ? AND is_external_event = 1", id); err != nil {
			return fmt.Errorf("delete external block: %w", err)
		}
	}

	return tx.Commit()
}

// SetCalendarLink links a professional to a Google calendar, replacing any
// previous link.
func (db *DB) SetCalendarLink(ctx context.Context, professionalID, calendarID string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO calendar_links (professional_id, calendar_id)
		VALUES (?, ?)
		ON CONFLICT(professional_id) DO UPDATE SET calendar_id = excluded.calendar_id`,
		professionalID, calendarID)
	if err != nil {
		return fmt.Errorf("set calendar link: %w", err)
	}
	return nil
}

// ListCalendarLinks returns every professional-to-calendar link.
func (db *DB) ListCalendarLinks(ctx context.Context) ([]model.CalendarLink, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT professional_id, calendar_id, created_at FROM calendar_links ORDER BY professional_id")
	if err != nil {
		return nil, fmt.Errorf("query calendar links: %w", err)
	}
	defer rows.Close()

	var links []model.CalendarLink
	for rows.Next() {
		var l model.CalendarLink
		if err := rows.Scan(&l.ProfessionalID, &l.CalendarID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan calendar link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// SetChallengeSchedule stores or replaces a challenge's weekday schedule.
func (db *DB) SetChallengeSchedule(ctx context.Context, s model.ChallengeSchedule) error {
	days := make([]string, len(s.ScheduleDays))
	for i, d := range s.ScheduleDays {
		days[i] = strconv.Itoa(d)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO challenge_schedules (challenge_id, schedule_days, started_at)
		VALUES (?, ?, ?)
		ON CONFLICT(challenge_id) DO UPDATE SET
			schedule_days = excluded.schedule_days,
			started_at = excluded.started_at`,
		s.ChallengeID, strings.Join(days, ","), s.StartedAt)
	if err != nil {
		return fmt.Errorf("set challenge schedule: %w", err)
	}
	return nil
}

// GetChallengeSchedule returns a challenge's schedule or ErrNotFound.
func (db *DB) GetChallengeSchedule(ctx context.Context, challengeID string) (model.ChallengeSchedule, error) {
	var s model.ChallengeSchedule
	var daysCSV string
	err := db.QueryRowContext(ctx,
		"SELECT challenge_id, schedule_days, started_at FROM challenge_schedules WHERE challenge_id = ?",
		challengeID).Scan(&s.ChallengeID, &daysCSV, &s.StartedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	if err != nil {
		return s, fmt.Errorf("query challenge schedule: %w", err)
	}
	for _, part := range strings.Split(daysCSV, ",") {
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return s, fmt.Errorf("parse schedule days %q: %w", daysCSV, err)
		}
		s.ScheduleDays = append(s.ScheduleDays, d)
	}
	return s, nil
}

// RecordCheckin stores a check-in for the date. Repeat check-ins on the same
// date are ignored; the return reports whether a new row was written.
func (db *DB) RecordCheckin(ctx context.Context, challengeID, userID, date string) (bool, error) {
	res, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO challenge_checkins (challenge_id, user_id, date)
		VALUES (?, ?, ?)`, challengeID, userID, date)
	if err != nil {
		return false, fmt.Errorf("insert checkin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListCheckins returns the user's check-in dates for a challenge, ascending.
func (db *DB) ListCheckins(ctx context.Context, challengeID, userID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT date FROM challenge_checkins
		WHERE challenge_id = ? AND user_id = ?
		ORDER BY date`, challengeID, userID)
	if err != nil {
		return nil, fmt.Errorf("query checkins: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan checkin: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
