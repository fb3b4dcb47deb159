package collections

import (
	"context"
	"strings"
	"time"

	"schoolmaps/internal/pkg/validate"
	"schoolmaps/internal/pkg/wire"
)

// EventsQuery lists the caller's events by start time.
func EventsQuery(uid string) wire.Query {
	return wire.Query{Collection: EventsCollection(uid), OrderBy: "start"}
}

// EventInput is the calendar form. Date is YYYY-MM-DD, times are HH:MM in Location.
type EventInput struct {
	ID          string         `json:"id"`
	Title       string         `json:"title" validate:"notblank"`
	Description string         `json:"description"`
	Subject     string         `json:"subject" validate:"notblank"`
	Type        string         `json:"type" validate:"omitempty,oneof=test presentation homework oral other"`
	Date        string         `json:"date" validate:"notblank"`
	StartTime   string         `json:"startTime" validate:"notblank"`
	EndTime     string         `json:"endTime" validate:"notblank"`
	Location    *time.Location `json:"-"`
}

func (in EventInput) times() (time.Time, time.Time, error) {
	loc := in.Location
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", in.Date+" "+in.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", in.Date+" "+in.EndTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// SaveEvent creates the event, or updates it when in.ID is set.
func (s *Service) SaveEvent(ctx context.Context, o Owner, in EventInput) (string, error) {
	if err := s.allowed(o); err != nil {
		return "", err
	}
	if _, err := validate.Struct(in); err != nil {
		return "", s.invalid("error_fill_all_fields")
	}
	start, end, err := in.times()
	if err != nil {
		return "", s.invalid("error_invalid_date")
	}
	if !end.After(start) {
		return "", s.invalid("error_end_before_start")
	}
	if in.Type == "" {
		in.Type = EventOther
	}

	ev := CalendarEvent{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Start:       stamp(start),
		End:         stamp(end),
		Type:        in.Type,
		Subject:     in.Subject,
		OwnerID:     o.UID,
	}
	data, err := fields(ev)
	if err != nil {
		return "", s.failed("encode event", err)
	}
	delete(data, "createdAt")

	id := in.ID
	if id != "" {
		err = s.store.Update(ctx, EventsCollection(o.UID), id, data)
	} else {
		data["createdAt"] = stamp(s.now())
		id, err = s.store.Create(ctx, EventsCollection(o.UID), data)
	}
	if err != nil {
		return "", s.failed("save event", err)
	}

	s.notify("event_saved_success", nil)
	return id, nil
}

func (s *Service) DeleteEvent(ctx context.Context, o Owner, id string) error {
	if err := s.allowed(o); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, EventsCollection(o.UID), id); err != nil {
		return s.failed("delete event", err)
	}
	s.notify("event_deleted_success", nil)
	return nil
}
