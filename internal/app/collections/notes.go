package collections

import (
	"context"
	"strings"

	"schoolmaps/internal/pkg/wire"
)

// GeneralSubject files notes created without a subject filter.
const GeneralSubject = "algemeen"

// NotesQuery lists the caller's notes, newest first. An empty subject or "all" lists
// every subject.
func NotesQuery(uid, subject string) wire.Query {
	q := wire.Query{Collection: NotesCollection(uid), OrderBy: "createdAt", Desc: true}
	if subject != "" && subject != "all" {
		q.Filters = []wire.Filter{{Field: "subject", Value: subject}}
	}
	return q
}

// NoteInput creates a note, or edits one when ID is set.
type NoteInput struct {
	ID      string
	Title   string
	Content string
	Subject string
}

func (s *Service) SaveNote(ctx context.Context, o Owner, in NoteInput) (string, error) {
	if err := s.allowed(o); err != nil {
		return "", err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return "", s.invalid("error_empty_note_title")
	}
	now := stamp(s.now())

	if in.ID != "" {
		err := s.store.Update(ctx, NotesCollection(o.UID), in.ID, map[string]any{
			"title":     title,
			"content":   in.Content,
			"updatedAt": now,
		})
		if err != nil {
			return "", s.failed("update note", err)
		}
		s.notify("note_updated_success", nil)
		return in.ID, nil
	}

	subject := in.Subject
	if subject == "" || subject == "all" {
		subject = GeneralSubject
	}
	data, err := fields(Note{Title: title, Content: in.Content, Subject: subject, OwnerID: o.UID, CreatedAt: now})
	if err != nil {
		return "", s.failed("encode note", err)
	}

	id, err := s.store.Create(ctx, NotesCollection(o.UID), data)
	if err != nil {
		return "", s.failed("create note", err)
	}
	s.notify("note_added_success", nil)
	return id, nil
}

func (s *Service) DeleteNote(ctx context.Context, o Owner, id string) error {
	if err := s.allowed(o); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, NotesCollection(o.UID), id); err != nil {
		return s.failed("delete note", err)
	}
	s.notify("note_deleted_success", nil)
	return nil
}
