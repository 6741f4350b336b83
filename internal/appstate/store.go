// Package appstate holds the process-wide presentation settings: the
// locale and the theme. All changes go through Dispatch.
package appstate

import (
	"fmt"
	"sync"
)

// Theme is the color scheme of the terminal output.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case ThemeDark, ThemeLight:
		return Theme(s), nil
	default:
		return "", fmt.Errorf("unknown theme %q (want dark or light)", s)
	}
}

// State is a snapshot of the settings.
type State struct {
	Locale string
	Theme  Theme
}

// Action is a change request passed to Dispatch.
type Action interface {
	apply(State) State
}

// SetLocale switches the language.
type SetLocale struct{ Locale string }

func (a SetLocale) apply(s State) State {
	if a.Locale != "" {
		s.Locale = a.Locale
	}
	return s
}

// SetTheme selects a theme.
type SetTheme struct{ Theme Theme }

func (a SetTheme) apply(s State) State {
	if a.Theme != "" {
		s.Theme = a.Theme
	}
	return s
}

// ToggleTheme flips between dark and light.
type ToggleTheme struct{}

func (ToggleTheme) apply(s State) State {
	if s.Theme == ThemeDark {
		s.Theme = ThemeLight
	} else {
		s.Theme = ThemeDark
	}
	return s
}

// Store owns the settings and notifies subscribers of changes.
type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
}

// New creates a store with the given initial state.
func New(initial State) *Store {
	if initial.Locale == "" {
		initial.Locale = "en"
	}
	if initial.Theme == "" {
		initial.Theme = ThemeDark
	}
	return &Store{state: initial, subs: make(map[int]func(State))}
}

// State returns the current settings.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies an action. Subscribers are called outside the lock, and
// only when the state actually changed.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	prev := s.state
	next := a.apply(prev)
	s.state = next
	subs := make([]func(State), 0, len(s.subs))
	if next != prev {
		for _, fn := range s.subs {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next
}

// Subscribe registers fn for state changes and returns a function that
// removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
