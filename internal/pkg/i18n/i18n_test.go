package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestT(t *testing.T) {
	tests := []struct {
		name   string
		lang   string
		key    string
		params map[string]any
		want   string
	}{
		{"dutch", Dutch, "success_logout", nil, "Je bent succesvol uitgelogd."},
		{"english", English, "success_logout", nil, "You have been logged out."},
		{"unknown language falls back to dutch", "fr", "success_logout", nil, "Je bent succesvol uitgelogd."},
		{"unknown key returns key", English, "no_such_key", nil, "no_such_key"},
		{"placeholder", English, "password_reset_sent", map[string]any{"email": "a@b.nl"}, "A password reset email has been sent to a@b.nl."},
		{"numeric placeholder", Dutch, "confirm_delete_files", map[string]any{"count": 3}, "Weet je zeker dat je 3 bestand(en) wilt verwijderen?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, T(tt.lang, tt.key, tt.params))
		})
	}
}

func TestEveryDutchKeyHasEnglish(t *testing.T) {
	for key := range translations[Dutch] {
		_, ok := translations[English][key]
		assert.True(t, ok, "missing english translation for %q", key)
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "Mathematics", Subject(English, "wiskunde"))
	assert.Equal(t, "Wiskunde", Subject(Dutch, "wiskunde"))
	assert.Equal(t, "quantum", Subject(English, "quantum"))
}

func TestValidTheme(t *testing.T) {
	assert.True(t, ValidTheme("emerald"))
	assert.False(t, ValidTheme("neon"))
	assert.True(t, Supported(English))
	assert.False(t, Supported("de"))
}
