/*
Package session owns the signed-in state of the client.

A Controller maps identities from an AuthProvider onto application profiles read from a
ProfileStore, drives the top-level Status, and hosts guest sessions that never touch the
backend. All state lives on one event-loop goroutine; collaborator callbacks only post
events to it.
*/
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"schoolmaps/internal/localstate"
	"schoolmaps/internal/pkg/notify"
	"schoolmaps/internal/pkg/wire"
)

// Status is the top-level application status.
type Status int

const (
	Initializing Status = iota
	Unauthenticated
	Authenticated
)

func (s Status) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Identity is an authenticated principal issued by the AuthProvider.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

// Profile is the application-level user record.
type Profile struct {
	UID                string
	Email              string
	UserName           string
	ProfilePictureURL  string
	CreatedAt          time.Time
	SelectedSubjects   []string
	SchoolName         string
	ClassName          string
	EducationLevel     string
	LanguagePreference string
	ThemePreference    string
}

// Clone returns a deep copy.
func (p Profile) Clone() Profile {
	p.SelectedSubjects = slices.Clone(p.SelectedSubjects)
	if p.SelectedSubjects == nil {
		p.SelectedSubjects = []string{}
	}
	return p
}

// Apply returns p with the present fields of patch applied.
func (p Profile) Apply(patch wire.ProfileDocument) Profile {
	p = p.Clone()

	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.Email, patch.Email)
	set(&p.UserName, patch.UserName)
	set(&p.ProfilePictureURL, patch.ProfilePictureURL)
	set(&p.SchoolName, patch.SchoolName)
	set(&p.ClassName, patch.ClassName)
	set(&p.EducationLevel, patch.EducationLevel)
	set(&p.LanguagePreference, patch.LanguagePreference)
	set(&p.ThemePreference, patch.ThemePreference)

	if patch.CreatedAt != nil {
		p.CreatedAt = *patch.CreatedAt
	}
	if patch.SelectedSubjects != nil {
		p.SelectedSubjects = subjectSet(patch.SelectedSubjects)
	}
	return p
}

// HasSubject reports whether subject is selected.
func (p Profile) HasSubject(subject string) bool {
	return slices.Contains(p.SelectedSubjects, subject)
}

// Snapshot is a consistent view of the controller state.
type Snapshot struct {
	Status Status
	User   *Profile
	Guest  bool
}

// Notice is a user-facing message.
type Notice = notify.Notice

// AuthProvider issues identities.
type AuthProvider interface {
	// Subscribe registers fn for identity changes; nil means signed out. The returned
	// function unsubscribes.
	Subscribe(fn func(*Identity)) (unsubscribe func())
	SignIn(ctx context.Context, email, password string) (Identity, error)
	Register(ctx context.Context, email, password, displayName string) (Identity, error)
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
}

// ProfileStore holds profile documents keyed by uid.
type ProfileStore interface {
	// Subscribe delivers the current document (nil when absent) and every later
	// version until unsubscribed. onError ends the subscription.
	Subscribe(uid string, onSnapshot func(*wire.ProfileDocument), onError func(error)) (unsubscribe func())
	MergeWrite(ctx context.Context, uid string, patch wire.ProfileDocument) error
}

// BlobStore stores uploaded files.
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte) (url string, err error)
	Delete(ctx context.Context, path string) error
}

var (
	ErrNotReady        = errors.New("session: no active session")
	ErrUpdateInFlight  = errors.New("session: profile update already in flight")
	ErrGuestNotAllowed = errors.New("session: not available in guest mode")
	ErrClosed          = errors.New("session: controller closed")
)

// AuthCode is the closed set of identity failures.
type AuthCode int

const (
	AuthUnknown AuthCode = iota
	AuthInvalidEmail
	AuthInvalidCredentials
	AuthEmailInUse
	AuthWeakPassword
)

// AuthError is returned by AuthProvider implementations for identity failures.
type AuthError struct {
	Code AuthCode
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth error %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("auth error %d", e.Code)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Key is the translation key shown for the error.
func (e *AuthError) Key() string {
	switch e.Code {
	case AuthInvalidEmail:
		return "error_invalid_email"
	case AuthInvalidCredentials:
		return "error_invalid_credentials"
	case AuthEmailInUse:
		return "error_email_in_use"
	case AuthWeakPassword:
		return "error_weak_password"
	default:
		return "error_unknown"
	}
}

// AuthErrorKey maps any error from an AuthProvider onto a translation key.
func AuthErrorKey(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Key()
	}
	return "error_unknown"
}

// ValidationError is a form error caught before any network call.
type ValidationError struct {
	Key string
}

func (e *ValidationError) Error() string {
	return "session: validation failed: " + e.Key
}

// Deps are the collaborators of a Controller. Splash and Now are optional.
type Deps struct {
	Auth     AuthProvider
	Profiles ProfileStore
	Blobs    BlobStore
	Local    localstate.Store
	Notifier notify.Notifier

	// Splash returns a channel that fires once the minimum splash time has passed.
	Splash func(time.Duration) <-chan time.Time
	Now    func() time.Time
}

// Config tunes a Controller.
type Config struct {
	MinSplash time.Duration
}

// DefaultMinSplash is the minimum time the initializing state is shown.
const DefaultMinSplash = 4 * time.Second
