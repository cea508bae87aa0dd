// Package prefs handles user preference persistence.
// Preferences share the key-value store with favourites, under "theme".
package prefs

import (
	"strconv"
	"strings"

	"github.com/kennedymwaniki/resource-explorer/internal/kvstore"
)

// Theme is the colour scheme name.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Key is the storage key of the theme preference.
const Key = "theme"

// ParseTheme accepts "light" or "dark" in any case. ok is false otherwise.
func ParseTheme(raw string) (Theme, bool) {
	switch Theme(strings.ToLower(strings.TrimSpace(raw))) {
	case ThemeLight:
		return ThemeLight, true
	case ThemeDark:
		return ThemeDark, true
	default:
		return "", false
	}
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// DetectTheme guesses from a COLORFGBG value such as "15;0". Backgrounds 7 and
// 15 are light; anything else, including an unset value, is dark.
func DetectTheme(colorfgbg string) Theme {
	parts := strings.Split(strings.TrimSpace(colorfgbg), ";")
	bg, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return ThemeDark
	}
	if bg == 7 || bg == 15 {
		return ThemeLight
	}
	return ThemeDark
}

// Load returns the stored theme, or fallback when nothing valid is stored.
func Load(store *kvstore.Store, fallback Theme) Theme {
	if _, ok := ParseTheme(string(fallback)); !ok {
		fallback = ThemeDark
	}
	raw := kvstore.LoadOr(store, Key, "", func(v string) bool {
		_, ok := ParseTheme(v)
		return ok
	})
	if theme, ok := ParseTheme(raw); ok {
		return theme
	}
	return fallback
}

// Save persists theme. Failures degrade to session-only preference.
func Save(store *kvstore.Store, theme Theme) {
	store.Save(Key, string(theme))
}
