package calsync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/imsoft/Holistia-sub011/internal/model"
	"github.com/imsoft/Holistia-sub011/internal/wallclock"
)

// Fetcher retrieves busy events for a calendar within a date range.
type Fetcher interface {
	BusyEvents(ctx context.Context, calendarID, fromDate, toDate string) ([]model.ExternalEvent, error)
}

// GoogleFetcher reads busy periods from Google Calendar and converts them to
// operating-timezone wall-clock events.
type GoogleFetcher struct {
	svc     *calendar.Service
	zone    *wallclock.Zone
	limiter *rate.Limiter
}

// NewGoogleFetcher builds a fetcher from an OAuth2 client credentials file and
// a stored token file. Requests are throttled to stay inside the Calendar API
// per-user quota.
func NewGoogleFetcher(ctx context.Context, credentialsPath, tokenPath string, zone *wallclock.Zone) (*GoogleFetcher, error) {
	creds, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(creds, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	tokenData, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	return &GoogleFetcher{
		svc:     svc,
		zone:    zone,
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}, nil
}

// BusyEvents lists confirmed events overlapping [fromDate, toDate] inclusive.
func (f *GoogleFetcher) BusyEvents(ctx context.Context, calendarID, fromDate, toDate string) ([]model.ExternalEvent, error) {
	minMs, err := f.zone.ToUnixMilli(fromDate, "00:00")
	if err != nil {
		return nil, err
	}
	nextDay, err := wallclock.AddDays(toDate, 1)
	if err != nil {
		return nil, err
	}
	maxMs, err := f.zone.ToUnixMilli(nextDay, "00:00")
	if err != nil {
		return nil, err
	}

	var events []model.ExternalEvent
	pageToken := ""
	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := f.svc.Events.List(calendarID).
			SingleEvents(true).
			OrderBy("startTime").
			TimeMin(time.UnixMilli(minMs).Format(time.RFC3339)).
			TimeMax(time.UnixMilli(maxMs).Format(time.RFC3339)).
			MaxResults(250).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list events for %s: %w", calendarID, err)
		}

		for _, item := range page.Items {
			if item.Status == "cancelled" || item.Transparency == "transparent" {
				continue
			}
			ev, ok := f.convertEvent(item)
			if ok {
				events = append(events, ev)
			}
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			return events, nil
		}
	}
}

func (f *GoogleFetcher) convertEvent(item *calendar.Event) (model.ExternalEvent, bool) {
	ev := model.ExternalEvent{ID: item.Id, Summary: item.Summary}

	if item.Start == nil || item.End == nil {
		return ev, false
	}

	if item.Start.Date != "" {
		// All-day event; Google's end date is exclusive.
		ev.AllDay = true
		ev.Date = item.Start.Date
		endDate, err := wallclock.AddDays(item.End.Date, -1)
		if err != nil || endDate < ev.Date {
			endDate = ev.Date
		}
		ev.EndDate = endDate
		return ev, true
	}

	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return ev, false
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return ev, false
	}

	startDate, startTime := f.zone.FromUnixMilli(start.UnixMilli())
	endDate, endTime := f.zone.FromUnixMilli(end.UnixMilli())

	if startDate != endDate {
		// Crosses midnight in the operating timezone; treat as all-day range.
		ev.AllDay = true
		ev.Date = startDate
		ev.EndDate = endDate
		return ev, true
	}

	ev.Date = startDate
	ev.StartTime = startTime
	ev.EndTime = endTime
	return ev, true
}
