package appstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchNotifiesOnChange(t *testing.T) {
	s := New(State{})
	assert.Equal(t, State{Locale: "en", Theme: ThemeDark}, s.State())

	var got []State
	unsubscribe := s.Subscribe(func(st State) { got = append(got, st) })

	s.Dispatch(SetLocale{Locale: "es"})
	s.Dispatch(SetLocale{Locale: "es"})
	s.Dispatch(ToggleTheme{})
	s.Dispatch(SetTheme{Theme: ThemeLight})

	require.Len(t, got, 2)
	assert.Equal(t, State{Locale: "es", Theme: ThemeDark}, got[0])
	assert.Equal(t, State{Locale: "es", Theme: ThemeLight}, got[1])

	unsubscribe()
	s.Dispatch(ToggleTheme{})
	assert.Len(t, got, 2)
	assert.Equal(t, ThemeDark, s.State().Theme)
}

func TestSubscriberMayReadState(t *testing.T) {
	s := New(State{Locale: "en"})
	var seen string
	s.Subscribe(func(State) { seen = s.State().Locale })
	s.Dispatch(SetLocale{Locale: "pl"})
	assert.Equal(t, "pl", seen)
}

func TestParseTheme(t *testing.T) {
	th, err := ParseTheme("light")
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, th)

	_, err = ParseTheme("solarized")
	assert.Error(t, err)
}
