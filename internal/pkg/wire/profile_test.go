package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileDocumentFieldsOnlyPresent(t *testing.T) {
	p := ProfileDocument{
		UserName:         Ptr("Sanne"),
		SelectedSubjects: []string{},
	}

	assert.Equal(t, map[string]any{
		"userName":         "Sanne",
		"selectedSubjects": []string{},
	}, p.Fields())
	assert.True(t, ProfileDocument{}.IsEmpty())
}

func TestProfileDocumentJSONKeepsAbsence(t *testing.T) {
	created := time.Date(2024, 9, 1, 8, 30, 0, 0, time.UTC)
	in := ProfileDocument{
		Email:            Ptr("sanne@example.com"),
		CreatedAt:        &created,
		SelectedSubjects: []string{"wiskunde", "engels"},
		ThemePreference:  Ptr("rose"),
	}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "userName")

	var out ProfileDocument
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
	assert.Nil(t, out.UserName)
}

func TestProfileDocumentMerge(t *testing.T) {
	base := ProfileDocument{UserName: Ptr("Gast"), SelectedSubjects: []string{"wiskunde"}}
	merged := base.Merge(ProfileDocument{UserName: Ptr("Sanne"), SchoolName: Ptr("Het Lyceum")})

	assert.Equal(t, "Sanne", *merged.UserName)
	assert.Equal(t, "Het Lyceum", *merged.SchoolName)
	assert.Equal(t, []string{"wiskunde"}, merged.SelectedSubjects)
	assert.Equal(t, "Gast", *base.UserName)
}

func TestProfileFromDocument(t *testing.T) {
	doc := Document{ID: "u1", Data: map[string]any{
		"userName":         "Sanne",
		"selectedSubjects": []any{"math", "history"},
		"createdAt":        "2024-09-01T08:30:00Z",
		"ownerId":          "u1",
	}}

	p, err := ProfileFromDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, "Sanne", *p.UserName)
	assert.ElementsMatch(t, []string{"math", "history"}, p.SelectedSubjects)
	require.NotNil(t, p.CreatedAt)
	assert.True(t, p.CreatedAt.Equal(time.Date(2024, 9, 1, 8, 30, 0, 0, time.UTC)))
}
