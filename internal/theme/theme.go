// Package theme owns the light/dark display preference.
//
// Deciding what a toggle means (Toggle) is kept apart from carrying it out
// (Synchronizer): Toggle returns the new state and a list of intents, and the
// synchroniser executes the persistence intents asynchronously.
package theme

import (
	"context"
	"strings"
)

// Preference is the display theme.
type Preference string

const (
	Light Preference = "light"
	Dark  Preference = "dark"

	// MetadataKey is the user metadata field holding the authoritative value.
	MetadataKey = "theme"
)

// Parse returns the preference named by s. Unknown values report false.
func Parse(s string) (Preference, bool) {
	switch Preference(strings.ToLower(strings.TrimSpace(s))) {
	case Light:
		return Light, true
	case Dark:
		return Dark, true
	}
	return "", false
}

// Opposite returns the other theme.
func (p Preference) Opposite() Preference {
	if p == Dark {
		return Light
	}
	return Dark
}

// Glyph is the indicator icon: dark shows a sun (switch to light), light a moon.
func (p Preference) Glyph() string {
	if p == Dark {
		return "☀️"
	}
	return "🌙"
}

func (p Preference) String() string { return string(p) }

// State is the presentation state for one page.
type State struct {
	Theme         Preference
	Authenticated bool
}

// IntentKind names a side effect requested by Toggle.
type IntentKind int

const (
	UpdateIndicator IntentKind = iota
	PersistRemote
	PersistLocal
)

func (k IntentKind) String() string {
	switch k {
	case UpdateIndicator:
		return "update_indicator"
	case PersistRemote:
		return "persist_remote"
	case PersistLocal:
		return "persist_local"
	}
	return "unknown"
}

// Intent is a side effect to apply for Theme.
type Intent struct {
	Kind  IntentKind
	Theme Preference
}

// Toggle flips the theme. The indicator update always comes first; the
// persistence target depends on whether a session exists.
func Toggle(s State) (State, []Intent) {
	current := s.Theme
	if _, ok := Parse(string(current)); !ok {
		current = Light
	}

	next := State{Theme: current.Opposite(), Authenticated: s.Authenticated}
	persist := PersistLocal
	if s.Authenticated {
		persist = PersistRemote
	}

	return next, []Intent{
		{Kind: UpdateIndicator, Theme: next.Theme},
		{Kind: persist, Theme: next.Theme},
	}
}

// Source labels where a resolved preference came from.
type Source string

const (
	SourceRemote  Source = "remote"
	SourceLocal   Source = "local"
	SourceDefault Source = "default"
)

// Resolution is the outcome of Resolve.
type Resolution struct {
	Theme  Preference
	Source Source
}

// Reader loads a stored preference. ok is false when nothing is stored.
type Reader interface {
	Load(ctx context.Context) (Preference, bool, error)
}

// Resolve picks the active theme: the remote store when it is set and has
// a value, then the local store, then Light. Read errors fall through.
func Resolve(ctx context.Context, remote, local Reader) Resolution {
	if remote != nil {
		if p, ok, err := remote.Load(ctx); err == nil && ok {
			return Resolution{Theme: p, Source: SourceRemote}
		}
	}
	if local != nil {
		if p, ok, err := local.Load(ctx); err == nil && ok {
			return Resolution{Theme: p, Source: SourceLocal}
		}
	}
	return Resolution{Theme: Light, Source: SourceDefault}
}
