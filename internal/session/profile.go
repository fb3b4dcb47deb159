package session

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"schoolmaps/internal/localstate"
	"schoolmaps/internal/pkg/i18n"
	"schoolmaps/internal/pkg/wire"
)

const (
	GuestUID = "guest-user"

	defaultLanguage = i18n.DefaultLanguage
	defaultTheme    = i18n.DefaultTheme
	defaultUserName = "Gebruiker"
	guestUserName   = "Gast"
	avatarFallback  = "S"
)

var guestSubjects = []string{"wiskunde", "nederlands", "engels"}

// AvatarURL builds the generated avatar address for name. A size of zero leaves the
// service default.
func AvatarURL(name string, size int) string {
	u := "https://ui-avatars.com/api/?name=" + encodeComponent(name) + "&background=random&color=fff"
	if size > 0 {
		u += "&size=" + strconv.Itoa(size)
	}
	return u
}

func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// GuestDefaults is the profile a guest starts from.
func GuestDefaults() Profile {
	return Profile{
		UID:                GuestUID,
		UserName:           guestUserName,
		ProfilePictureURL:  AvatarURL(guestUserName, 0),
		SelectedSubjects:   slices.Clone(guestSubjects),
		LanguagePreference: defaultLanguage,
		ThemePreference:    defaultTheme,
	}
}

// materialize fills the gaps of a stored document with identity values and defaults.
func materialize(id Identity, doc wire.ProfileDocument, now time.Time) Profile {
	p := Profile{
		UID:                id.UID,
		Email:              orDefault(deref(doc.Email), id.Email),
		UserName:           orDefault(deref(doc.UserName), defaultUserName),
		SchoolName:         deref(doc.SchoolName),
		ClassName:          deref(doc.ClassName),
		EducationLevel:     deref(doc.EducationLevel),
		LanguagePreference: language(deref(doc.LanguagePreference)),
		ThemePreference:    theme(deref(doc.ThemePreference)),
		SelectedSubjects:   subjectSet(doc.SelectedSubjects),
	}

	p.ProfilePictureURL = deref(doc.ProfilePictureURL)
	if p.ProfilePictureURL == "" {
		p.ProfilePictureURL = AvatarURL(orDefault(deref(doc.UserName), avatarFallback), 0)
	}

	p.CreatedAt = now
	if doc.CreatedAt != nil {
		p.CreatedAt = *doc.CreatedAt
	}
	return p
}

// synthesize builds a transient profile for an identity whose document does not exist yet.
func synthesize(id Identity, rec localstate.Record, now time.Time) Profile {
	lang := language(rec.Language)

	p := Profile{
		UID:                id.UID,
		Email:              id.Email,
		UserName:           id.DisplayName,
		ProfilePictureURL:  id.PhotoURL,
		CreatedAt:          now,
		SelectedSubjects:   []string{},
		LanguagePreference: lang,
		ThemePreference:    theme(rec.Theme),
	}
	if p.UserName == "" {
		p.UserName = i18n.T(lang, "guest_fallback_name", nil)
	}
	if p.ProfilePictureURL == "" {
		p.ProfilePictureURL = AvatarURL(orDefault(id.DisplayName, avatarFallback), 0)
	}
	return p
}

// guestProfile overlays the saved guest fragment on the defaults.
func guestProfile(rec localstate.Record) Profile {
	p := GuestDefaults()
	if rec.Guest != nil {
		p = p.Apply(*rec.Guest)
	}
	p.UID = GuestUID
	return p
}

// document is the full stored form of p.
func document(p Profile) wire.ProfileDocument {
	return wire.ProfileDocument{
		UID:                wire.Ptr(p.UID),
		Email:              wire.Ptr(p.Email),
		UserName:           wire.Ptr(p.UserName),
		ProfilePictureURL:  wire.Ptr(p.ProfilePictureURL),
		CreatedAt:          wire.Ptr(p.CreatedAt),
		SelectedSubjects:   slices.Clone(p.SelectedSubjects),
		SchoolName:         wire.Ptr(p.SchoolName),
		ClassName:          wire.Ptr(p.ClassName),
		EducationLevel:     wire.Ptr(p.EducationLevel),
		LanguagePreference: wire.Ptr(p.LanguagePreference),
		ThemePreference:    wire.Ptr(p.ThemePreference),
	}
}

// subjectSet drops blanks and duplicates while keeping the first-seen order.
func subjectSet(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func language(lang string) string {
	if i18n.Supported(lang) {
		return lang
	}
	return defaultLanguage
}

func theme(name string) string {
	if i18n.ValidTheme(name) {
		return name
	}
	return defaultTheme
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
