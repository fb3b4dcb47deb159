package wire

import (
	"encoding/json"
	"time"
)

// ProfileDocument is the data of a users/{uid} document. A nil field is absent: it
// is left out of merge-writes and defaulted when a profile is materialised.
type ProfileDocument struct {
	UID                *string
	Email              *string
	UserName           *string
	ProfilePictureURL  *string
	CreatedAt          *time.Time
	SelectedSubjects   []string
	SchoolName         *string
	ClassName          *string
	EducationLevel     *string
	LanguagePreference *string
	ThemePreference    *string
}

// Field names of the profile document.
const (
	FieldUID                = "uid"
	FieldEmail              = "email"
	FieldUserName           = "userName"
	FieldProfilePictureURL  = "profilePictureUrl"
	FieldCreatedAt          = "createdAt"
	FieldSelectedSubjects   = "selectedSubjects"
	FieldSchoolName         = "schoolName"
	FieldClassName          = "className"
	FieldEducationLevel     = "educationLevel"
	FieldLanguagePreference = "languagePreference"
	FieldThemePreference    = "themePreference"
)

// Fields returns the present fields keyed by their document name. An empty, non-nil
// SelectedSubjects is present.
func (p ProfileDocument) Fields() map[string]any {
	fields := make(map[string]any)

	str := func(name string, v *string) {
		if v != nil {
			fields[name] = *v
		}
	}
	str(FieldUID, p.UID)
	str(FieldEmail, p.Email)
	str(FieldUserName, p.UserName)
	str(FieldProfilePictureURL, p.ProfilePictureURL)
	str(FieldSchoolName, p.SchoolName)
	str(FieldClassName, p.ClassName)
	str(FieldEducationLevel, p.EducationLevel)
	str(FieldLanguagePreference, p.LanguagePreference)
	str(FieldThemePreference, p.ThemePreference)

	if p.CreatedAt != nil {
		fields[FieldCreatedAt] = p.CreatedAt.UTC().Format(time.RFC3339)
	}
	if p.SelectedSubjects != nil {
		fields[FieldSelectedSubjects] = append([]string{}, p.SelectedSubjects...)
	}

	return fields
}

// Merge overlays the present fields of patch onto p.
func (p ProfileDocument) Merge(patch ProfileDocument) ProfileDocument {
	pick := func(dst **string, src *string) {
		if src != nil {
			v := *src
			*dst = &v
		}
	}
	pick(&p.UID, patch.UID)
	pick(&p.Email, patch.Email)
	pick(&p.UserName, patch.UserName)
	pick(&p.ProfilePictureURL, patch.ProfilePictureURL)
	pick(&p.SchoolName, patch.SchoolName)
	pick(&p.ClassName, patch.ClassName)
	pick(&p.EducationLevel, patch.EducationLevel)
	pick(&p.LanguagePreference, patch.LanguagePreference)
	pick(&p.ThemePreference, patch.ThemePreference)

	if patch.CreatedAt != nil {
		t := *patch.CreatedAt
		p.CreatedAt = &t
	}
	if patch.SelectedSubjects != nil {
		p.SelectedSubjects = append([]string{}, patch.SelectedSubjects...)
	}
	return p
}

// IsEmpty reports whether no field is present.
func (p ProfileDocument) IsEmpty() bool {
	return len(p.Fields()) == 0
}

func (p ProfileDocument) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Fields())
}

func (p *ProfileDocument) UnmarshalJSON(data []byte) error {
	var raw struct {
		UID                *string    `json:"uid"`
		Email              *string    `json:"email"`
		UserName           *string    `json:"userName"`
		ProfilePictureURL  *string    `json:"profilePictureUrl"`
		CreatedAt          *time.Time `json:"createdAt"`
		SelectedSubjects   []string   `json:"selectedSubjects"`
		SchoolName         *string    `json:"schoolName"`
		ClassName          *string    `json:"className"`
		EducationLevel     *string    `json:"educationLevel"`
		LanguagePreference *string    `json:"languagePreference"`
		ThemePreference    *string    `json:"themePreference"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = ProfileDocument(raw)
	return nil
}

// ProfileFromDocument decodes the data of a users document.
func ProfileFromDocument(d Document) (ProfileDocument, error) {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return ProfileDocument{}, err
	}
	var p ProfileDocument
	if err := json.Unmarshal(raw, &p); err != nil {
		return ProfileDocument{}, err
	}
	return p, nil
}

// Ptr returns a pointer to v, for building partial documents.
func Ptr[T any](v T) *T {
	return &v
}
