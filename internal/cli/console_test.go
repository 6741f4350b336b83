package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/manualdesk/internal/admin"
	"github.com/raphaelgruber/manualdesk/internal/appstate"
	"github.com/raphaelgruber/manualdesk/internal/models"
)

func TestConsoleNotifyPrefixes(t *testing.T) {
	tests := []struct {
		severity admin.Severity
		want     string
	}{
		{admin.SeveritySuccess, "✓ done"},
		{admin.SeverityWarning, "! done"},
		{admin.SeverityError, "✗ done"},
		{admin.SeverityInfo, "• done"},
	}
	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			var buf bytes.Buffer
			c := newConsole(&buf, themeFor(appstate.ThemeDark))
			c.Notify(admin.Notice{Severity: tt.severity, Message: "done"})
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestConsoleHoldQueuesNotices(t *testing.T) {
	var buf bytes.Buffer
	c := newConsole(&buf, themeFor(appstate.ThemeLight))

	c.hold()
	c.Notify(admin.Notice{Severity: admin.SeverityInfo, Message: "first"})
	c.Notify(admin.Notice{Severity: admin.SeverityError, Message: "second"})
	assert.Empty(t, buf.String())

	c.release()
	out := buf.String()
	require.Contains(t, out, "first")
	require.Contains(t, out, "second")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("first")), bytes.Index(buf.Bytes(), []byte("second")))

	buf.Reset()
	c.Notify(admin.Notice{Severity: admin.SeverityInfo, Message: "direct"})
	assert.Contains(t, buf.String(), "direct")
}

func TestConsoleFollowsTheme(t *testing.T) {
	var buf bytes.Buffer
	c := newConsole(&buf, themeFor(appstate.ThemeDark))
	assert.Equal(t, darkTheme, c.currentTheme())

	c.setTheme(themeFor(appstate.ThemeLight))
	assert.Equal(t, lightTheme, c.currentTheme())
}

func TestFindManual(t *testing.T) {
	files := []models.ManualFile{
		{Name: "a.pdf", FileID: "id-a"},
		{Name: "b.pdf"},
		{Name: "id-a"},
	}

	tests := []struct {
		name string
		ref  string
		want string
		ok   bool
	}{
		{"by id", "id-a", "a.pdf", true},
		{"by name", "b.pdf", "b.pdf", true},
		{"unknown", "c.pdf", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := findManual(files, tt.ref)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, f.Name)
		})
	}
}

func TestReportedWrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := reported(cause)
	assert.ErrorIs(t, err, ErrReported)
	assert.ErrorIs(t, err, cause)
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "  a\n\n  b", indent("a\n\nb", "  "))
}
