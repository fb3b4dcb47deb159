package docstore

import (
	"strings"

	"schoolmaps/internal/pkg/errs"
)

// Collection kinds.
const (
	KindUsers          = "users"
	KindCalendarEvents = "calendarEvents"
	KindNotes          = "notes"
	KindTasks          = "tasks"
	KindFlashcardDecks = "flashcardDecks"
	KindCards          = "cards"
	KindFiles          = "files"
)

var userSubcollections = map[string]struct{}{
	KindCalendarEvents: {},
	KindNotes:          {},
	KindTasks:          {},
	KindFlashcardDecks: {},
}

// Path is a parsed collection path.
type Path struct {
	Collection string
	Kind       string
	// UserID is the uid embedded in users/{uid}/... paths, empty for top-level collections.
	UserID string
}

// ParsePath classifies a collection path. Accepted shapes:
//
//	users
//	files
//	users/{uid}/calendarEvents|notes|tasks|flashcardDecks
//	users/{uid}/flashcardDecks/{deckId}/cards
func ParsePath(collection string) (Path, error) {
	parts := strings.Split(collection, "/")
	for _, p := range parts {
		if p == "" || len(p) > 128 {
			return Path{}, errs.NewError(errs.ErrCollectionInvalid)
		}
	}

	switch {
	case len(parts) == 1 && (parts[0] == KindUsers || parts[0] == KindFiles):
		return Path{Collection: collection, Kind: parts[0]}, nil

	case len(parts) == 3 && parts[0] == KindUsers:
		if _, ok := userSubcollections[parts[2]]; ok {
			return Path{Collection: collection, Kind: parts[2], UserID: parts[1]}, nil
		}

	case len(parts) == 5 && parts[0] == KindUsers && parts[2] == KindFlashcardDecks && parts[4] == KindCards:
		return Path{Collection: collection, Kind: KindCards, UserID: parts[1]}, nil
	}

	return Path{}, errs.NewError(errs.ErrCollectionInvalid)
}

// Authorize resolves collection for caller uid. Paths under another user's tree are
// forbidden.
func Authorize(collection, uid string) (Path, error) {
	p, err := ParsePath(collection)
	if err != nil {
		return Path{}, err
	}
	if uid == "" || (p.UserID != "" && p.UserID != uid) {
		return Path{}, errs.NewError(errs.ErrDocumentForbidden)
	}
	return p, nil
}

// authorizeDoc additionally pins profile documents to the caller's own uid.
func authorizeDoc(collection, id, uid string) (Path, error) {
	p, err := Authorize(collection, uid)
	if err != nil {
		return Path{}, err
	}
	if id == "" || len(id) > 128 || strings.Contains(id, "/") {
		return Path{}, errs.NewError(errs.ErrInvalidParams)
	}
	if p.Kind == KindUsers && id != uid {
		return Path{}, errs.NewError(errs.ErrDocumentForbidden)
	}
	return p, nil
}
