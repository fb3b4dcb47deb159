/*
Package i18n holds the user-facing strings of Schoolmaps in Dutch and English.

Lookups fall back to Dutch and then to the key itself, so a missing translation
never renders as an empty string.
*/
package i18n

import (
	"fmt"
	"slices"
	"strings"
)

const (
	Dutch   = "nl"
	English = "en"

	// DefaultLanguage is used when no preference is known.
	DefaultLanguage = Dutch

	// DefaultTheme is the colour theme of new profiles.
	DefaultTheme = "emerald"
)

// Themes lists the selectable colour themes.
var Themes = []string{"emerald", "blue", "rose", "purple", "pink", "indigo", "teal", "amber"}

// Subjects lists the subject keys a student can select.
var Subjects = []string{
	"wiskunde", "nederlands", "engels", "frans", "duits", "geschiedenis", "aardrijkskunde",
	"biologie", "scheikunde", "natuurkunde", "economie", "informatica", "latijn", "grieks",
	"kunst", "lichamelijke_opvoeding",
}

// EducationLevels lists the selectable education levels.
var EducationLevels = []string{"vmbo", "havo", "vwo", "gymnasium", "mbo", "hbo", "wo"}

// Supported reports whether lang has a translation table.
func Supported(lang string) bool {
	_, ok := translations[lang]
	return ok
}

// ValidTheme reports whether theme is one of Themes.
func ValidTheme(theme string) bool {
	return slices.Contains(Themes, theme)
}

// T translates key into lang and substitutes {name} placeholders from params.
func T(lang, key string, params map[string]any) string {
	text, ok := translations[lang][key]
	if !ok {
		text, ok = translations[DefaultLanguage][key]
	}
	if !ok {
		text = key
	}

	for name, value := range params {
		text = strings.ReplaceAll(text, "{"+name+"}", fmt.Sprint(value))
	}

	return text
}

// Subject returns the display name of a subject key, or the key when unknown.
func Subject(lang, key string) string {
	if name, ok := subjectNames[lang][key]; ok {
		return name
	}
	return key
}
