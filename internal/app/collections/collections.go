/*
Package collections holds the per-feature view controllers of the client: subject
files, calendar events, notes, tasks and flashcards.

Each feature reads through a View, a live query scoped to the signed-in user, and
writes through Service methods that validate input before any network call and refuse
guest sessions. Failures end in a notice; nothing is queued or retried.
*/
package collections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"schoolmaps/internal/pkg/logx"
	"schoolmaps/internal/pkg/notify"
	"schoolmaps/internal/pkg/wire"
)

// Collection paths.
const (
	FilesCollection = "files"
)

func EventsCollection(uid string) string { return "users/" + uid + "/calendarEvents" }
func NotesCollection(uid string) string  { return "users/" + uid + "/notes" }
func TasksCollection(uid string) string  { return "users/" + uid + "/tasks" }
func DecksCollection(uid string) string  { return "users/" + uid + "/flashcardDecks" }
func CardsCollection(uid, deckID string) string {
	return DecksCollection(uid) + "/" + deckID + "/cards"
}

// Store is the document API of the backend, scoped to the signed-in caller.
type Store interface {
	// Watch delivers the result of q now and after every change until cancelled.
	// onErr ends the watch.
	Watch(q wire.Query, onDocs func([]wire.Document), onErr func(error)) (cancel func())
	Get(ctx context.Context, collection, id string) (wire.Document, bool, error)
	Query(ctx context.Context, q wire.Query) ([]wire.Document, error)
	Create(ctx context.Context, collection string, data map[string]any) (string, error)
	Update(ctx context.Context, collection, id string, data map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Batch(ctx context.Context, ops []wire.Op) ([]string, error)
}

// Blobs stores uploaded files.
type Blobs interface {
	Put(ctx context.Context, path string, data []byte) (url string, err error)
	Delete(ctx context.Context, path string) error
}

// Owner is the session a call acts for.
type Owner struct {
	UID   string
	Guest bool
}

var ErrGuestNotAllowed = errors.New("collections: not available in guest mode")

// ValidationError is a form error caught before any network call.
type ValidationError struct {
	Key string
}

func (e *ValidationError) Error() string {
	return "collections: validation failed: " + e.Key
}

// Service performs the writes of every feature.
type Service struct {
	store    Store
	blobs    Blobs
	notifier notify.Notifier
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService builds a Service. notifier may be nil.
func NewService(store Store, blobs Blobs, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Service{
		store:    store,
		blobs:    blobs,
		notifier: notifier,
		now:      time.Now,
		logger:   logx.Component("collections"),
	}
}

func (s *Service) notify(key string, params map[string]any) {
	s.notifier.Notify(notify.New(key, params))
}

// allowed refuses guests and signed-out callers.
func (s *Service) allowed(o Owner) error {
	if o.Guest || o.UID == "" {
		s.notify("error_guest_action_not_allowed", nil)
		return ErrGuestNotAllowed
	}
	return nil
}

func (s *Service) invalid(key string) error {
	s.notify(key, nil)
	return &ValidationError{Key: key}
}

// failed reports a store or blob error.
func (s *Service) failed(op string, err error) error {
	s.logger.Error().Err(err).Str("op", op).Msg("collection write failed")
	s.notify("error_operation_failed", map[string]any{"error": err.Error()})
	return fmt.Errorf("%s: %w", op, err)
}

// stamp is the stored form of t. Whole UTC seconds keep the text order of stored
// timestamps equal to their time order.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// fields converts a model into document data without its id.
func fields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	delete(data, "id")
	return data, nil
}

// decodeAll converts documents into models, skipping documents that do not decode.
func decodeAll[T any](docs []wire.Document, logger zerolog.Logger) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.Decode(&v); err != nil {
			logger.Warn().Err(err).Str("collection", d.Collection).Str("id", d.ID).Msg("skipping malformed document")
			continue
		}
		out = append(out, v)
	}
	return out
}
