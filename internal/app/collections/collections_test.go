package collections

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolmaps/internal/pkg/notify"
	"schoolmaps/internal/pkg/wire"
)

type watch struct {
	q         wire.Query
	onDocs    func([]wire.Document)
	onErr     func(error)
	cancelled bool
}

type created struct {
	collection string
	data       map[string]any
}

type fakeStore struct {
	mu      sync.Mutex
	watches []*watch
	creates []created
	updates []created
	deletes []string
	batches [][]wire.Op
	calls   int

	GetFunc    func(collection, id string) (wire.Document, bool, error)
	QueryFunc  func(q wire.Query) ([]wire.Document, error)
	CreateFunc func(collection string, data map[string]any) (string, error)
	BatchFunc  func(ops []wire.Op) ([]string, error)
	DeleteFunc func(collection, id string) error
}

func (f *fakeStore) Watch(q wire.Query, onDocs func([]wire.Document), onErr func(error)) func() {
	w := &watch{q: q, onDocs: onDocs, onErr: onErr}
	f.mu.Lock()
	f.watches = append(f.watches, w)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		w.cancelled = true
		f.mu.Unlock()
	}
}

func (f *fakeStore) Get(_ context.Context, collection, id string) (wire.Document, bool, error) {
	f.calls++
	if f.GetFunc != nil {
		return f.GetFunc(collection, id)
	}
	return wire.Document{}, false, nil
}

func (f *fakeStore) Query(_ context.Context, q wire.Query) ([]wire.Document, error) {
	f.calls++
	if f.QueryFunc != nil {
		return f.QueryFunc(q)
	}
	return nil, nil
}

func (f *fakeStore) Create(_ context.Context, collection string, data map[string]any) (string, error) {
	f.calls++
	f.creates = append(f.creates, created{collection, data})
	if f.CreateFunc != nil {
		return f.CreateFunc(collection, data)
	}
	return "new-id", nil
}

func (f *fakeStore) Update(_ context.Context, collection, id string, data map[string]any) error {
	f.calls++
	f.updates = append(f.updates, created{collection + "/" + id, data})
	return nil
}

func (f *fakeStore) Delete(_ context.Context, collection, id string) error {
	f.calls++
	f.deletes = append(f.deletes, collection+"/"+id)
	if f.DeleteFunc != nil {
		return f.DeleteFunc(collection, id)
	}
	return nil
}

func (f *fakeStore) Batch(_ context.Context, ops []wire.Op) ([]string, error) {
	f.calls++
	f.batches = append(f.batches, ops)
	if f.BatchFunc != nil {
		return f.BatchFunc(ops)
	}
	return make([]string, len(ops)), nil
}

type fakeBlobs struct {
	puts    []string
	deletes []string
	PutFunc func(path string) (string, error)
}

func (f *fakeBlobs) Put(_ context.Context, path string, _ []byte) (string, error) {
	f.puts = append(f.puts, path)
	if f.PutFunc != nil {
		return f.PutFunc(path)
	}
	return "https://blobs.test/" + path, nil
}

func (f *fakeBlobs) Delete(_ context.Context, path string) error {
	f.deletes = append(f.deletes, path)
	return nil
}

type noticeLog struct {
	keys []string
}

func (n *noticeLog) Notify(x notify.Notice) { n.keys = append(n.keys, x.Key) }

var (
	owner = Owner{UID: "u1"}
	guest = Owner{UID: "guest-user", Guest: true}
	now   = time.Date(2024, 3, 4, 10, 30, 15, 500_000_000, time.UTC)
)

func newService() (*Service, *fakeStore, *fakeBlobs, *noticeLog) {
	store, blobs, notes := &fakeStore{}, &fakeBlobs{}, &noticeLog{}
	s := NewService(store, blobs, notes)
	s.now = func() time.Time { return now }
	return s, store, blobs, notes
}

func TestGuestIsRefusedEverywhere(t *testing.T) {
	s, store, blobs, notes := newService()
	ctx := context.Background()

	calls := []func() error{
		func() error { _, err := s.AddFile(ctx, guest, FileUpload{Title: "x", Name: "a.pdf", Subject: "wiskunde", Data: []byte("x")}); return err },
		func() error { return s.DeleteFiles(ctx, guest, []string{"f1"}) },
		func() error { _, err := s.SaveNote(ctx, guest, NoteInput{Title: "x"}); return err },
		func() error { return s.DeleteNote(ctx, guest, "n1") },
		func() error { _, err := s.AddTask(ctx, guest, "x"); return err },
		func() error { return s.ToggleTask(ctx, guest, "t1", false) },
		func() error { return s.DeleteTask(ctx, guest, "t1") },
		func() error { _, err := s.CreateDeck(ctx, guest, "x", "wiskunde"); return err },
		func() error { return s.DeleteDeck(ctx, guest, "d1") },
		func() error { _, err := s.AddCards(ctx, guest, "d1", []CardInput{{"q", "a"}}); return err },
		func() error { return s.DeleteEvent(ctx, guest, "e1") },
	}
	for _, call := range calls {
		assert.ErrorIs(t, call(), ErrGuestNotAllowed)
	}

	assert.Zero(t, store.calls)
	assert.Empty(t, blobs.puts)
	assert.Len(t, notes.keys, len(calls))
	assert.Equal(t, "error_guest_action_not_allowed", notes.keys[0])
}

func TestAddFile(t *testing.T) {
	s, store, blobs, notes := newService()

	f, err := s.AddFile(context.Background(), owner, FileUpload{
		Subject:     "wiskunde",
		Title:       " Samenvatting H3 ",
		Description: "hoofdstuk 3",
		Name:        "/tmp/h3.pdf",
		Data:        []byte("%PDF"),
	})
	require.NoError(t, err)

	wantPath := "files/u1/wiskunde/1709548215500-h3.pdf"
	assert.Equal(t, []string{wantPath}, blobs.puts)
	assert.Equal(t, "new-id", f.ID)
	assert.Equal(t, "Samenvatting H3", f.Title)
	require.Len(t, store.creates, 1)
	assert.Equal(t, FilesCollection, store.creates[0].collection)
	assert.Equal(t, wantPath, store.creates[0].data["storagePath"])
	assert.Equal(t, "https://blobs.test/"+wantPath, store.creates[0].data["fileUrl"])
	assert.Equal(t, "2024-03-04T10:30:15Z", store.creates[0].data["createdAt"])
	assert.NotContains(t, store.creates[0].data, "id")
	assert.Equal(t, []string{"success_file_added"}, notes.keys)
}

func TestAddFileValidation(t *testing.T) {
	s, store, blobs, notes := newService()

	_, err := s.AddFile(context.Background(), owner, FileUpload{Subject: "wiskunde", Name: "a.pdf", Data: []byte("x")})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "error_enter_file_title", verr.Key)

	_, err = s.AddFile(context.Background(), owner, FileUpload{Subject: "wiskunde", Title: "a"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "error_select_file", verr.Key)

	assert.Zero(t, store.calls)
	assert.Empty(t, blobs.puts)
	assert.Equal(t, []string{"error_enter_file_title", "error_select_file"}, notes.keys)
}

func TestAddFileRemovesBlobWhenRecordFails(t *testing.T) {
	s, store, blobs, notes := newService()
	store.CreateFunc = func(string, map[string]any) (string, error) { return "", errors.New("db down") }

	_, err := s.AddFile(context.Background(), owner, FileUpload{Subject: "wiskunde", Title: "a", Name: "a.pdf", Data: []byte("x")})

	require.Error(t, err)
	assert.Equal(t, blobs.puts, blobs.deletes)
	assert.Equal(t, []string{"error_operation_failed"}, notes.keys)
}

func TestDeleteFiles(t *testing.T) {
	s, store, blobs, notes := newService()
	store.GetFunc = func(collection, id string) (wire.Document, bool, error) {
		if id == "gone" {
			return wire.Document{}, false, nil
		}
		return wire.Document{ID: id, Collection: collection, Data: map[string]any{
			"storagePath": "files/u1/wiskunde/" + id,
		}}, true, nil
	}

	require.NoError(t, s.DeleteFiles(context.Background(), owner, []string{"a", "gone", "b"}))

	assert.Equal(t, []string{"files/u1/wiskunde/a", "files/u1/wiskunde/b"}, blobs.deletes)
	assert.Equal(t, []string{"files/a", "files/b"}, store.deletes)
	assert.Equal(t, []string{"success_files_deleted"}, notes.keys)

	err := s.DeleteFiles(context.Background(), owner, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "error_select_files_delete", verr.Key)
}

func TestSearchFiles(t *testing.T) {
	files := []File{
		{ID: "1", Title: "Breuken oefenen"},
		{ID: "2", Title: "Grammatica", Description: "werkwoorden en BREUKEN"},
		{ID: "3", Title: "Topografie"},
	}

	got := SearchFiles(files, "breuk")
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)
	assert.Len(t, SearchFiles(files, "  "), 3)
}

func TestRecentFilesQuery(t *testing.T) {
	q := RecentFilesQuery()
	assert.Equal(t, FilesCollection, q.Collection)
	assert.Equal(t, "createdAt", q.OrderBy)
	assert.True(t, q.Desc)
	assert.Equal(t, 5, q.Limit)
}

func TestSaveEvent(t *testing.T) {
	s, store, _, notes := newService()
	in := EventInput{
		Title:     "Toets H4",
		Subject:   "wiskunde",
		Type:      EventTest,
		Date:      "2024-03-12",
		StartTime: "09:00",
		EndTime:   "10:30",
		Location:  time.UTC,
	}

	id, err := s.SaveEvent(context.Background(), owner, in)
	require.NoError(t, err)
	assert.Equal(t, "new-id", id)

	require.Len(t, store.creates, 1)
	data := store.creates[0].data
	assert.Equal(t, "users/u1/calendarEvents", store.creates[0].collection)
	assert.Equal(t, "2024-03-12T09:00:00Z", data["start"])
	assert.Equal(t, "2024-03-12T10:30:00Z", data["end"])
	assert.Equal(t, "test", data["type"])
	assert.Contains(t, data, "createdAt")

	in.ID = "e1"
	in.Type = ""
	_, err = s.SaveEvent(context.Background(), owner, in)
	require.NoError(t, err)
	require.Len(t, store.updates, 1)
	assert.Equal(t, "users/u1/calendarEvents/e1", store.updates[0].collection)
	assert.NotContains(t, store.updates[0].data, "createdAt")
	assert.Equal(t, "other", store.updates[0].data["type"])

	assert.Equal(t, []string{"event_saved_success", "event_saved_success"}, notes.keys)
}

func TestSaveEventValidation(t *testing.T) {
	valid := EventInput{Title: "t", Subject: "wiskunde", Date: "2024-03-12", StartTime: "09:00", EndTime: "10:00"}

	tests := []struct {
		name   string
		mutate func(*EventInput)
		want   string
	}{
		{"missing title", func(in *EventInput) { in.Title = " " }, "error_fill_all_fields"},
		{"missing end", func(in *EventInput) { in.EndTime = "" }, "error_fill_all_fields"},
		{"unknown type", func(in *EventInput) { in.Type = "party" }, "error_fill_all_fields"},
		{"bad date", func(in *EventInput) { in.Date = "12-03-2024" }, "error_invalid_date"},
		{"end before start", func(in *EventInput) { in.EndTime = "08:00" }, "error_end_before_start"},
		{"zero length", func(in *EventInput) { in.EndTime = "09:00" }, "error_end_before_start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, store, _, _ := newService()
			in := valid
			tt.mutate(&in)

			_, err := s.SaveEvent(context.Background(), owner, in)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.want, verr.Key)
			assert.Zero(t, store.calls)
		})
	}
}

func TestSaveNote(t *testing.T) {
	s, store, _, notes := newService()

	_, err := s.SaveNote(context.Background(), owner, NoteInput{Title: "Woordjes", Content: "hallo", Subject: "all"})
	require.NoError(t, err)
	require.Len(t, store.creates, 1)
	assert.Equal(t, GeneralSubject, store.creates[0].data["subject"])

	_, err = s.SaveNote(context.Background(), owner, NoteInput{ID: "n1", Title: "Woordjes 2", Content: "dag"})
	require.NoError(t, err)
	require.Len(t, store.updates, 1)
	assert.Equal(t, "Woordjes 2", store.updates[0].data["title"])
	assert.Contains(t, store.updates[0].data, "updatedAt")
	assert.NotContains(t, store.updates[0].data, "subject")

	_, err = s.SaveNote(context.Background(), owner, NoteInput{Title: ""})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	assert.Equal(t, []string{"note_added_success", "note_updated_success", "error_empty_note_title"}, notes.keys)
}

func TestNotesQuery(t *testing.T) {
	assert.Empty(t, NotesQuery("u1", "all").Filters)
	assert.Equal(t, []wire.Filter{{Field: "subject", Value: "engels"}}, NotesQuery("u1", "engels").Filters)
}

func TestTasks(t *testing.T) {
	s, store, _, notes := newService()
	ctx := context.Background()

	_, err := s.AddTask(ctx, owner, "   ")
	require.Error(t, err)

	_, err = s.AddTask(ctx, owner, "Huiswerk maken")
	require.NoError(t, err)
	assert.Equal(t, false, store.creates[0].data["completed"])

	require.NoError(t, s.ToggleTask(ctx, owner, "t1", false))
	assert.Equal(t, true, store.updates[0].data["completed"])

	require.NoError(t, s.DeleteTask(ctx, owner, "t1"))
	assert.Equal(t, []string{"users/u1/tasks/t1"}, store.deletes)

	assert.Equal(t, []string{"error_empty_task", "task_added_success", "task_updated_success", "task_deleted_success"}, notes.keys)
}

func TestCreateDeckValidation(t *testing.T) {
	s, store, _, _ := newService()

	_, err := s.CreateDeck(context.Background(), owner, "Woorden", "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "error_empty_deck_name", verr.Key)

	_, err = s.CreateDeck(context.Background(), owner, "Woorden", "frans")
	require.NoError(t, err)
	assert.EqualValues(t, 0, store.creates[0].data["cardCount"])
}

func TestDeleteDeckRemovesCardsInOneBatch(t *testing.T) {
	s, store, _, notes := newService()
	store.QueryFunc = func(q wire.Query) ([]wire.Document, error) {
		assert.Equal(t, "users/u1/flashcardDecks/d1/cards", q.Collection)
		return []wire.Document{{ID: "c1"}, {ID: "c2"}}, nil
	}

	require.NoError(t, s.DeleteDeck(context.Background(), owner, "d1"))

	require.Len(t, store.batches, 1)
	ops := store.batches[0]
	require.Len(t, ops, 3)
	assert.Equal(t, wire.Op{Kind: wire.OpDelete, Collection: "users/u1/flashcardDecks/d1/cards", ID: "c1"}, ops[0])
	assert.Equal(t, wire.Op{Kind: wire.OpDelete, Collection: "users/u1/flashcardDecks", ID: "d1"}, ops[2])
	assert.Equal(t, []string{"deck_deleted_success"}, notes.keys)
}

func TestAddCardsSkipsBlankRows(t *testing.T) {
	s, store, _, notes := newService()

	n, err := s.AddCards(context.Background(), owner, "d1", []CardInput{
		{"le chat", "de kat"},
		{"", "leeg"},
		{"le chien", "  "},
		{"la maison", "het huis"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, store.batches, 1)
	ops := store.batches[0]
	require.Len(t, ops, 3)
	assert.Equal(t, wire.OpSet, ops[0].Kind)
	assert.Equal(t, "le chat", ops[0].Data["question"])
	assert.Equal(t, wire.Op{
		Kind:       wire.OpIncrement,
		Collection: "users/u1/flashcardDecks",
		ID:         "d1",
		Field:      "cardCount",
		Delta:      2,
	}, ops[2])
	assert.Equal(t, []string{"flashcard_added_success"}, notes.keys)
}

func TestAddCardsNeedsOneCompleteRow(t *testing.T) {
	s, store, _, notes := newService()

	_, err := s.AddCards(context.Background(), owner, "d1", []CardInput{{"q", ""}})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, store.calls)
	assert.Equal(t, []string{"error_empty_flashcard"}, notes.keys)
}

func TestWriteFailureNotifies(t *testing.T) {
	s, store, _, notes := newService()
	store.DeleteFunc = func(string, string) error { return errors.New("permission denied") }

	err := s.DeleteNote(context.Background(), owner, "n1")

	require.Error(t, err)
	assert.Equal(t, []string{"error_operation_failed"}, notes.keys)
}

func noteDoc(id, title string) wire.Document {
	return wire.Document{ID: id, Data: map[string]any{"title": title, "createdAt": "2024-03-04T10:30:15Z"}}
}

func TestViewDeliversDecodedItems(t *testing.T) {
	store := &fakeStore{}
	var got []Note
	v := NewView[Note](store, func(items []Note) { got = items }, nil)

	q := NotesQuery("u1", "")
	v.SetScope(&q)
	require.Len(t, store.watches, 1)

	store.watches[0].onDocs([]wire.Document{noteDoc("n1", "Eerste"), noteDoc("n2", "Tweede")})

	require.Len(t, got, 2)
	assert.Equal(t, "n1", got[0].ID)
	assert.Equal(t, "Tweede", got[1].Title)
	assert.Equal(t, got, v.Items())
}

func TestViewIgnoresStaleScope(t *testing.T) {
	store := &fakeStore{}
	var deliveries int
	v := NewView[Note](store, func([]Note) { deliveries++ }, nil)

	first := NotesQuery("u1", "wiskunde")
	second := NotesQuery("u1", "engels")
	v.SetScope(&first)
	v.SetScope(&second)

	require.Len(t, store.watches, 2)
	assert.True(t, store.watches[0].cancelled)

	store.watches[0].onDocs([]wire.Document{noteDoc("old", "Oud")})
	assert.Zero(t, deliveries)
	assert.Empty(t, v.Items())

	store.watches[1].onDocs([]wire.Document{noteDoc("n1", "Nieuw")})
	assert.Equal(t, 1, deliveries)

	v.Close()
	assert.True(t, store.watches[1].cancelled)
	store.watches[1].onDocs([]wire.Document{noteDoc("n2", "Later")})
	assert.Equal(t, 1, deliveries)
	assert.Empty(t, v.Items())
}

func TestViewErrorEndsScope(t *testing.T) {
	store := &fakeStore{}
	var failures []error
	v := NewView[Task](store, nil, func(err error) { failures = append(failures, err) })

	q := TasksQuery("u1")
	v.SetScope(&q)
	store.watches[0].onErr(errors.New("forbidden"))
	store.watches[0].onErr(errors.New("again"))

	require.Len(t, failures, 1)
	store.watches[0].onDocs([]wire.Document{{ID: "t1"}})
	assert.Empty(t, v.Items())
}
