package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolmaps/internal/localstate"
	"schoolmaps/internal/pkg/notify"
	"schoolmaps/internal/pkg/wire"
)

type fakeAuth struct {
	mu        sync.Mutex
	listeners map[int]func(*Identity)
	next      int
	signIns   int
	registers int
	signOuts  int
	resets    int

	SignInFunc   func(email, password string) (Identity, error)
	RegisterFunc func(email, password, name string) (Identity, error)
	SignOutFunc  func() error
	ResetFunc    func(email string) error
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{listeners: map[int]func(*Identity){}}
}

func (f *fakeAuth) Subscribe(fn func(*Identity)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.listeners[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeAuth) emit(id *Identity) {
	f.mu.Lock()
	fns := make([]func(*Identity), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

// calls counts every identity operation issued so far.
func (f *fakeAuth) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signIns + f.registers + f.signOuts + f.resets
}

func (f *fakeAuth) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *fakeAuth) SignIn(_ context.Context, email, password string) (Identity, error) {
	f.mu.Lock()
	f.signIns++
	f.mu.Unlock()
	if f.SignInFunc != nil {
		return f.SignInFunc(email, password)
	}
	return Identity{UID: "u1", Email: email}, nil
}

func (f *fakeAuth) Register(_ context.Context, email, password, name string) (Identity, error) {
	f.mu.Lock()
	f.registers++
	f.mu.Unlock()
	if f.RegisterFunc != nil {
		return f.RegisterFunc(email, password, name)
	}
	return Identity{UID: "new", Email: email, DisplayName: name}, nil
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.mu.Lock()
	f.signOuts++
	f.mu.Unlock()
	if f.SignOutFunc != nil {
		return f.SignOutFunc()
	}
	return nil
}

func (f *fakeAuth) SendPasswordReset(_ context.Context, email string) error {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
	if f.ResetFunc != nil {
		return f.ResetFunc(email)
	}
	return nil
}

type profileSub struct {
	uid          string
	onSnapshot   func(*wire.ProfileDocument)
	onError      func(error)
	unsubscribed bool
}

type fakeProfiles struct {
	mu     sync.Mutex
	subs   []*profileSub
	writes []wire.ProfileDocument

	MergeWriteFunc func(uid string, patch wire.ProfileDocument) error
}

func (f *fakeProfiles) Subscribe(uid string, onSnapshot func(*wire.ProfileDocument), onError func(error)) func() {
	sub := &profileSub{uid: uid, onSnapshot: onSnapshot, onError: onError}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		sub.unsubscribed = true
		f.mu.Unlock()
	}
}

func (f *fakeProfiles) MergeWrite(_ context.Context, uid string, patch wire.ProfileDocument) error {
	f.mu.Lock()
	f.writes = append(f.writes, patch)
	f.mu.Unlock()
	if f.MergeWriteFunc != nil {
		return f.MergeWriteFunc(uid, patch)
	}
	return nil
}

func (f *fakeProfiles) sub(i int) *profileSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[i]
}

func (f *fakeProfiles) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeProfiles) subCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeProfiles) isUnsubscribed(i int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[i].unsubscribed
}

type fakeBlobs struct {
	PutFunc func(path string, data []byte) (string, error)
	paths   []string
}

func (f *fakeBlobs) Put(_ context.Context, path string, data []byte) (string, error) {
	f.paths = append(f.paths, path)
	if f.PutFunc != nil {
		return f.PutFunc(path, data)
	}
	return "https://blobs.test/" + path, nil
}

func (f *fakeBlobs) Delete(context.Context, string) error { return nil }

type noticeLog struct {
	mu      sync.Mutex
	notices []notify.Notice
}

func (n *noticeLog) Notify(x notify.Notice) {
	n.mu.Lock()
	n.notices = append(n.notices, x)
	n.mu.Unlock()
}

func (n *noticeLog) keys() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.notices))
	for _, x := range n.notices {
		out = append(out, x.Key)
	}
	return out
}

var fixedNow = time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)

type harness struct {
	c        *Controller
	auth     *fakeAuth
	profiles *fakeProfiles
	blobs    *fakeBlobs
	local    *localstate.Memory
	notes    *noticeLog
	splash   chan time.Time
}

func newHarness(t *testing.T, rec localstate.Record) *harness {
	t.Helper()

	h := &harness{
		auth:     newFakeAuth(),
		profiles: &fakeProfiles{},
		blobs:    &fakeBlobs{},
		local:    localstate.NewMemory(rec),
		notes:    &noticeLog{},
		splash:   make(chan time.Time),
	}
	h.c = New(Config{MinSplash: DefaultMinSplash}, Deps{
		Auth:     h.auth,
		Profiles: h.profiles,
		Blobs:    h.blobs,
		Local:    h.local,
		Notifier: h.notes,
		Splash:   func(time.Duration) <-chan time.Time { return h.splash },
		Now:      func() time.Time { return fixedNow },
	})
	t.Cleanup(func() { _ = h.c.Close() })

	require.NoError(t, h.c.Start())
	return h
}

// flush waits until every event queued so far has been handled.
func (h *harness) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, h.c.do(func() {}))
}

func (h *harness) elapseSplash(t *testing.T) {
	t.Helper()
	h.splash <- fixedNow
	h.flush(t)
}

func (h *harness) signIn(t *testing.T, id Identity) {
	t.Helper()
	h.auth.emit(&id)
	h.flush(t)
}

func (h *harness) deliver(t *testing.T, i int, doc *wire.ProfileDocument) {
	t.Helper()
	h.profiles.sub(i).onSnapshot(doc)
	h.flush(t)
}

func storedDoc() *wire.ProfileDocument {
	created := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	return &wire.ProfileDocument{
		UID:                wire.Ptr("u1"),
		Email:              wire.Ptr("anna@school.nl"),
		UserName:           wire.Ptr("Anna"),
		CreatedAt:          &created,
		SelectedSubjects:   []string{"wiskunde", "geschiedenis"},
		SchoolName:         wire.Ptr("Het Lyceum"),
		ClassName:          wire.Ptr("4B"),
		EducationLevel:     wire.Ptr("vwo"),
		LanguagePreference: wire.Ptr("en"),
		ThemePreference:    wire.Ptr("blue"),
	}
}

func TestStartsInitializing(t *testing.T) {
	h := newHarness(t, localstate.Record{})

	assert.Equal(t, Initializing, h.c.Snapshot().Status)
	assert.Equal(t, 1, h.auth.listenerCount())
}

func TestOnlyLastIdentityBeforeSplashIsApplied(t *testing.T) {
	h := newHarness(t, localstate.Record{})

	h.auth.emit(&Identity{UID: "a"})
	h.auth.emit(&Identity{UID: "b"})
	h.auth.emit(nil)
	h.auth.emit(&Identity{UID: "c", Email: "c@x.nl"})
	h.flush(t)

	assert.Equal(t, 0, h.profiles.subCount())
	assert.Equal(t, Initializing, h.c.Snapshot().Status)

	h.elapseSplash(t)

	require.Equal(t, 1, h.profiles.subCount())
	assert.Equal(t, "c", h.profiles.sub(0).uid)
}

func TestSplashWithoutIdentitySignsOut(t *testing.T) {
	h := newHarness(t, localstate.Record{})

	var statuses []Status
	cancel := h.c.Watch(func(s Snapshot) { statuses = append(statuses, s.Status) })
	defer cancel()

	h.elapseSplash(t)

	assert.Equal(t, Unauthenticated, h.c.Snapshot().Status)
	assert.Equal(t, 0, h.profiles.subCount())

	h.auth.emit(nil)
	h.flush(t)
	assert.Equal(t, []Status{Initializing, Unauthenticated}, statuses)
}

func TestIdentityAfterSplashAppliesImmediately(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	h.elapseSplash(t)
	require.Equal(t, Unauthenticated, h.c.Snapshot().Status)

	h.signIn(t, Identity{UID: "late", Email: "late@school.nl"})
	require.Equal(t, 1, h.profiles.subCount())
	assert.Equal(t, "late", h.profiles.sub(0).uid)

	h.deliver(t, 0, nil)
	snap := h.c.Snapshot()
	assert.Equal(t, Authenticated, snap.Status)
	require.NotNil(t, snap.User)
	assert.Equal(t, "late@school.nl", snap.User.Email)
}

func TestStoredProfileIsMaterialized(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	h.elapseSplash(t)
	h.signIn(t, Identity{UID: "u1", Email: "identity@school.nl"})

	h.deliver(t, 0, storedDoc())

	snap := h.c.Snapshot()
	require.NotNil(t, snap.User)
	assert.Equal(t, Authenticated, snap.Status)
	assert.False(t, snap.Guest)
	assert.Equal(t, "Anna", snap.User.UserName)
	assert.Equal(t, "anna@school.nl", snap.User.Email)
	assert.Equal(t, []string{"wiskunde", "geschiedenis"}, snap.User.SelectedSubjects)
	assert.Equal(t, AvatarURL("Anna", 0), snap.User.ProfilePictureURL)

	rec, err := h.local.Load()
	require.NoError(t, err)
	assert.Equal(t, "blue", rec.Theme)
	assert.Equal(t, "en", rec.Language)
}

func TestSparseProfileGetsDefaults(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	h.elapseSplash(t)
	h.signIn(t, Identity{UID: "u1", Email: "identity@school.nl"})

	h.deliver(t, 0, &wire.ProfileDocument{})

	u := h.c.Snapshot().User
	require.NotNil(t, u)
	assert.Equal(t, "identity@school.nl", u.Email)
	assert.Equal(t, "Gebruiker", u.UserName)
	assert.Equal(t, AvatarURL("S", 0), u.ProfilePictureURL)
	assert.Equal(t, fixedNow, u.CreatedAt)
	assert.Equal(t, []string{}, u.SelectedSubjects)
	assert.Equal(t, "nl", u.LanguagePreference)
	assert.Equal(t, "emerald", u.ThemePreference)
}

func TestMissingProfileIsSynthesizedThenReplaced(t *testing.T) {
	h := newHarness(t, localstate.Record{Language: "en", Theme: "rose"})
	h.elapseSplash(t)
	h.signIn(t, Identity{UID: "u1", Email: "anna@school.nl"})

	var statuses []Status
	cancel := h.c.Watch(func(s Snapshot) { statuses = append(statuses, s.Status) })
	defer cancel()

	h.deliver(t, 0, nil)
	u := h.c.Snapshot().User
	require.NotNil(t, u)
	assert.Equal(t, "Guest", u.UserName)
	assert.Equal(t, "en", u.LanguagePreference)
	assert.Equal(t, "rose", u.ThemePreference)
	assert.Empty(t, h.profiles.writes)

	h.deliver(t, 0, storedDoc())
	assert.Equal(t, "Anna", h.c.Snapshot().User.UserName)
	assert.Equal(t, []Status{Unauthenticated, Authenticated, Authenticated}, statuses)
}

func TestIdentityChangeDropsStaleProfileEvents(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	h.elapseSplash(t)
	h.signIn(t, Identity{UID: "a"})
	h.signIn(t, Identity{UID: "b"})

	require.Equal(t, 2, h.profiles.subCount())
	assert.True(t, h.profiles.isUnsubscribed(0))

	h.deliver(t, 0, &wire.ProfileDocument{UserName: wire.Ptr("Stale")})
	assert.Nil(t, h.c.Snapshot().User)

	h.deliver(t, 1, &wire.ProfileDocument{UserName: wire.Ptr("Bram")})
	assert.Equal(t, "Bram", h.c.Snapshot().User.UserName)
	assert.Equal(t, "b", h.c.Snapshot().User.UID)
}

func TestProfileErrorSignsOut(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	h.elapseSplash(t)
	h.signIn(t, Identity{UID: "u1"})
	h.deliver(t, 0, storedDoc())

	h.profiles.sub(0).onError(errors.New("permission denied"))
	h.flush(t)

	snap := h.c.Snapshot()
	assert.Equal(t, Unauthenticated, snap.Status)
	assert.Nil(t, snap.User)
	assert.True(t, h.profiles.isUnsubscribed(0))
	assert.Equal(t, []string{"error_profile_load_failed"}, h.notes.keys())

	h.deliver(t, 0, storedDoc())
	assert.Nil(t, h.c.Snapshot().User)
}

func TestGuestStartsFromDefaults(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	signedOut(t, h)

	require.NoError(t, h.c.EnterGuest())

	snap := h.c.Snapshot()
	assert.Equal(t, Authenticated, snap.Status)
	assert.True(t, snap.Guest)
	require.NotNil(t, snap.User)
	assert.Equal(t, GuestDefaults(), *snap.User)
	assert.Equal(t, "Gast", snap.User.UserName)

	assert.Equal(t, 0, h.auth.calls())
	assert.Equal(t, 0, h.profiles.subCount())
	assert.Equal(t, 0, h.profiles.writeCount())
}

func TestGuestSessionNeverReachesBackend(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	signedOut(t, h)
	require.NoError(t, h.c.EnterGuest())

	require.NoError(t, h.c.UpdateProfile(context.Background(), wire.ProfileDocument{ClassName: wire.Ptr("2C")}))
	require.NoError(t, h.c.Logout(context.Background()))

	assert.Equal(t, 0, h.auth.calls())
	assert.Equal(t, 0, h.profiles.subCount())
	assert.Equal(t, 0, h.profiles.writeCount())
}

func signedOut(t *testing.T, h *harness) {
	t.Helper()
	h.elapseSplash(t)
	h.auth.emit(nil)
	h.flush(t)
	require.Equal(t, Unauthenticated, h.c.Snapshot().Status)
}

func TestGuestRestoresSavedFragment(t *testing.T) {
	h := newHarness(t, localstate.Record{Guest: &wire.ProfileDocument{
		UserName:        wire.Ptr("Sam"),
		ThemePreference: wire.Ptr("teal"),
	}})
	signedOut(t, h)

	require.NoError(t, h.c.EnterGuest())

	u := h.c.Snapshot().User
	assert.Equal(t, "Sam", u.UserName)
	assert.Equal(t, "teal", u.ThemePreference)
	assert.Equal(t, GuestUID, u.UID)
	assert.Equal(t, 0, h.profiles.subCount())
}

func TestGuestRequiresSignedOutState(t *testing.T) {
	h := newHarness(t, localstate.Record{})

	err := h.c.EnterGuest()
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, []string{"error_not_ready"}, h.notes.keys())
}

func TestGuestIgnoresSignedOutIdentity(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	signedOut(t, h)
	require.NoError(t, h.c.EnterGuest())

	h.auth.emit(nil)
	h.flush(t)

	assert.Equal(t, Authenticated, h.c.Snapshot().Status)
	assert.True(t, h.c.Snapshot().Guest)
}

func TestGuestLogoutStaysLocal(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	signedOut(t, h)
	require.NoError(t, h.c.EnterGuest())

	require.NoError(t, h.c.Logout(context.Background()))

	snap := h.c.Snapshot()
	assert.Equal(t, Unauthenticated, snap.Status)
	assert.Nil(t, snap.User)
	assert.False(t, snap.Guest)
	assert.Equal(t, 0, h.auth.signOuts)
	assert.Empty(t, h.notes.keys())
}

func TestLogoutNoticeShownOnce(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	h.elapseSplash(t)
	h.signIn(t, Identity{UID: "u1"})
	h.deliver(t, 0, storedDoc())

	h.auth.SignOutFunc = func() error {
		go h.auth.emit(nil)
		return nil
	}
	require.NoError(t, h.c.Logout(context.Background()))
	assert.Eventually(t, func() bool {
		return h.c.Snapshot().Status == Unauthenticated
	}, time.Second, 5*time.Millisecond)
	h.flush(t)

	assert.Equal(t, []string{"success_logout"}, h.notes.keys())
	assert.True(t, h.profiles.isUnsubscribed(0))

	h.auth.emit(nil)
	h.flush(t)
	assert.Equal(t, []string{"success_logout"}, h.notes.keys())
}

func TestLogoutMarkerSurvivesRestart(t *testing.T) {
	h := newHarness(t, localstate.Record{PendingLogoutNotice: true})
	signedOut(t, h)

	assert.Equal(t, []string{"success_logout"}, h.notes.keys())
	rec, err := h.local.Load()
	require.NoError(t, err)
	assert.False(t, rec.PendingLogoutNotice)
}

func TestLogoutFailureClearsMarker(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	h.elapseSplash(t)
	h.signIn(t, Identity{UID: "u1"})
	h.deliver(t, 0, storedDoc())
	h.auth.SignOutFunc = func() error { return errors.New("offline") }

	err := h.c.Logout(context.Background())
	assert.Error(t, err)

	rec, _ := h.local.Load()
	assert.False(t, rec.PendingLogoutNotice)
	assert.Equal(t, []string{"error_unknown"}, h.notes.keys())
}

func TestUpdateProfileWritesPatch(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	h.elapseSplash(t)
	h.signIn(t, Identity{UID: "u1"})
	h.deliver(t, 0, storedDoc())

	err := h.c.UpdateProfile(context.Background(), wire.ProfileDocument{ClassName: wire.Ptr("5A")})
	require.NoError(t, err)

	assert.Equal(t, "5A", h.c.Snapshot().User.ClassName)
	require.Len(t, h.profiles.writes, 1)
	assert.Equal(t, map[string]any{"className": "5A"}, h.profiles.writes[0].Fields())
	assert.Empty(t, h.notes.keys())
}

func TestUpdateProfileFailureRollsBack(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	h.elapseSplash(t)
	h.signIn(t, Identity{UID: "u1"})
	h.deliver(t, 0, storedDoc())
	before := *h.c.Snapshot().User

	h.profiles.MergeWriteFunc = func(string, wire.ProfileDocument) error { return errors.New("denied") }
	err := h.c.UpdateProfile(context.Background(), wire.ProfileDocument{
		UserName:         wire.Ptr("Annie"),
		SelectedSubjects: []string{"frans"},
	})
	require.Error(t, err)

	assert.Equal(t, before, *h.c.Snapshot().User)
	assert.Equal(t, []string{"error_save_settings_failed"}, h.notes.keys())
}

func TestUpdateProfileRejectsConcurrentSave(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	h.elapseSplash(t)
	h.signIn(t, Identity{UID: "u1"})
	h.deliver(t, 0, storedDoc())

	entered := make(chan struct{})
	release := make(chan struct{})
	h.profiles.MergeWriteFunc = func(string, wire.ProfileDocument) error {
		close(entered)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- h.c.UpdateProfile(context.Background(), wire.ProfileDocument{ClassName: wire.Ptr("5A")})
	}()
	<-entered

	err := h.c.UpdateProfile(context.Background(), wire.ProfileDocument{ClassName: wire.Ptr("6A")})
	assert.ErrorIs(t, err, ErrUpdateInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, "5A", h.c.Snapshot().User.ClassName)
	assert.Equal(t, []string{"error_save_in_progress"}, h.notes.keys())
}

func TestUpdateProfileRejectsUnknownTheme(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	h.elapseSplash(t)
	h.signIn(t, Identity{UID: "u1"})
	h.deliver(t, 0, storedDoc())

	err := h.c.UpdateProfile(context.Background(), wire.ProfileDocument{ThemePreference: wire.Ptr("neon")})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "error_invalid_theme", verr.Key)
	assert.Empty(t, h.profiles.writes)
}

func TestGuestUpdatePersistsLocally(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	signedOut(t, h)
	require.NoError(t, h.c.EnterGuest())

	err := h.c.UpdateProfile(context.Background(), wire.ProfileDocument{
		UserName:        wire.Ptr("Sam"),
		ThemePreference: wire.Ptr("amber"),
	})
	require.NoError(t, err)

	assert.Empty(t, h.profiles.writes)
	assert.Equal(t, []string{"success_settings_saved"}, h.notes.keys())

	rec, err := h.local.Load()
	require.NoError(t, err)
	require.NotNil(t, rec.Guest)
	assert.Equal(t, "Sam", *rec.Guest.UserName)
	assert.Equal(t, "amber", rec.Theme)

	require.NoError(t, h.c.Logout(context.Background()))
	require.NoError(t, h.c.EnterGuest())
	assert.Equal(t, "Sam", h.c.Snapshot().User.UserName)
	assert.Equal(t, []string{"wiskunde", "nederlands", "engels"}, h.c.Snapshot().User.SelectedSubjects)
}

func TestGuestUpdateFailureRollsBack(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	signedOut(t, h)
	require.NoError(t, h.c.EnterGuest())
	h.local.SetFailure(errors.New("disk full"))

	err := h.c.UpdateProfile(context.Background(), wire.ProfileDocument{UserName: wire.Ptr("Sam")})
	require.Error(t, err)

	assert.Equal(t, "Gast", h.c.Snapshot().User.UserName)
	assert.Equal(t, []string{"error_save_settings_failed"}, h.notes.keys())
}

func TestUploadProfilePicture(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	h.elapseSplash(t)
	h.signIn(t, Identity{UID: "u1"})
	h.deliver(t, 0, storedDoc())

	err := h.c.UploadProfilePicture(context.Background(), "C:\\pics\\me.png", []byte("png"))
	require.NoError(t, err)

	assert.Equal(t, []string{"profilePictures/u1/me.png"}, h.blobs.paths)
	require.Len(t, h.profiles.writes, 1)
	assert.Equal(t, "https://blobs.test/profilePictures/u1/me.png", *h.profiles.writes[0].ProfilePictureURL)
	assert.Equal(t, []string{"profile_picture_upload_success"}, h.notes.keys())
}

func TestUploadProfilePictureFailure(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	h.elapseSplash(t)
	h.signIn(t, Identity{UID: "u1"})
	h.deliver(t, 0, storedDoc())
	h.blobs.PutFunc = func(string, []byte) (string, error) { return "", errors.New("quota") }

	err := h.c.UploadProfilePicture(context.Background(), "me.png", []byte("png"))
	require.Error(t, err)

	assert.Empty(t, h.profiles.writes)
	assert.Equal(t, []string{"error_profile_pic_upload_failed"}, h.notes.keys())
}

func TestGuestCannotUploadPicture(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	signedOut(t, h)
	require.NoError(t, h.c.EnterGuest())

	err := h.c.UploadProfilePicture(context.Background(), "me.png", []byte("png"))

	assert.ErrorIs(t, err, ErrGuestNotAllowed)
	assert.Empty(t, h.blobs.paths)
	assert.Equal(t, []string{"error_guest_action_not_allowed"}, h.notes.keys())
}

func TestSignInErrorsAreMapped(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"bad credentials", &AuthError{Code: AuthInvalidCredentials}, "error_invalid_credentials"},
		{"bad email", &AuthError{Code: AuthInvalidEmail}, "error_invalid_email"},
		{"network", errors.New("dial tcp: refused"), "error_unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, localstate.Record{})
			h.auth.SignInFunc = func(string, string) (Identity, error) { return Identity{}, tt.err }

			err := h.c.SignIn(context.Background(), "anna@school.nl", "secret")

			assert.Error(t, err)
			assert.Equal(t, []string{tt.want}, h.notes.keys())
		})
	}
}

func TestSignInNeedsCredentials(t *testing.T) {
	h := newHarness(t, localstate.Record{})

	err := h.c.SignIn(context.Background(), "  ", "secret")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "error_fill_all_fields", verr.Key)
}

func validForm() RegistrationForm {
	return RegistrationForm{
		Name:           "Anna de Vries",
		Email:          "anna@school.nl",
		Password:       "geheim123",
		Subjects:       []string{"wiskunde", "wiskunde", "biologie"},
		SchoolName:     "Het Lyceum",
		ClassName:      "4B",
		EducationLevel: "vwo",
		Language:       "en",
	}
}

func TestRegisterWritesFullProfile(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	var gotName string
	h.auth.RegisterFunc = func(email, _, name string) (Identity, error) {
		gotName = name
		return Identity{UID: "new", Email: email, DisplayName: name}, nil
	}

	require.NoError(t, h.c.Register(context.Background(), validForm()))

	assert.Equal(t, "Anna de Vries", gotName)
	require.Len(t, h.profiles.writes, 1)
	doc := h.profiles.writes[0]
	assert.Equal(t, "new", *doc.UID)
	assert.Equal(t, []string{"wiskunde", "biologie"}, doc.SelectedSubjects)
	assert.Equal(t, AvatarURL("Anna de Vries", 128), *doc.ProfilePictureURL)
	assert.Equal(t, "en", *doc.LanguagePreference)
	assert.Equal(t, "emerald", *doc.ThemePreference)
	assert.Equal(t, fixedNow, *doc.CreatedAt)
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegistrationForm)
	}{
		{"no name", func(f *RegistrationForm) { f.Name = " " }},
		{"no subjects", func(f *RegistrationForm) { f.Subjects = nil }},
		{"no school", func(f *RegistrationForm) { f.SchoolName = "" }},
		{"no level", func(f *RegistrationForm) { f.EducationLevel = "" }},
		{"no password", func(f *RegistrationForm) { f.Password = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, localstate.Record{})
			registered := false
			h.auth.RegisterFunc = func(string, string, string) (Identity, error) {
				registered = true
				return Identity{}, nil
			}

			form := validForm()
			tt.mutate(&form)
			err := h.c.Register(context.Background(), form)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.False(t, registered)
			assert.Equal(t, []string{"error_fill_all_fields"}, h.notes.keys())
		})
	}
}

func TestRegisterEmailInUse(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	h.auth.RegisterFunc = func(string, string, string) (Identity, error) {
		return Identity{}, &AuthError{Code: AuthEmailInUse}
	}

	err := h.c.Register(context.Background(), validForm())

	require.Error(t, err)
	assert.Empty(t, h.profiles.writes)
	assert.Equal(t, []string{"error_email_in_use"}, h.notes.keys())
}

func TestSendPasswordReset(t *testing.T) {
	h := newHarness(t, localstate.Record{})

	err := h.c.SendPasswordReset(context.Background(), "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	require.NoError(t, h.c.SendPasswordReset(context.Background(), "anna@school.nl"))

	h.notes.mu.Lock()
	defer h.notes.mu.Unlock()
	require.Len(t, h.notes.notices, 2)
	assert.Equal(t, "error_enter_email_for_reset", h.notes.notices[0].Key)
	assert.Equal(t, "password_reset_sent", h.notes.notices[1].Key)
	assert.Equal(t, "anna@school.nl", h.notes.notices[1].Params["email"])
}

func TestCloseStopsEverything(t *testing.T) {
	h := newHarness(t, localstate.Record{})
	h.elapseSplash(t)
	h.signIn(t, Identity{UID: "u1"})

	var calls int
	var mu sync.Mutex
	h.c.Watch(func(Snapshot) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	require.NoError(t, h.c.Close())
	assert.Equal(t, 0, h.auth.listenerCount())
	assert.True(t, h.profiles.isUnsubscribed(0))

	h.profiles.sub(0).onSnapshot(storedDoc())
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
	assert.ErrorIs(t, h.c.EnterGuest(), ErrClosed)
	require.NoError(t, h.c.Close())
}

func TestAvatarURLEscapesName(t *testing.T) {
	assert.Equal(t,
		"https://ui-avatars.com/api/?name=Anna%20%26%20Co&background=random&color=fff&size=128",
		AvatarURL("Anna & Co", 128))
}
