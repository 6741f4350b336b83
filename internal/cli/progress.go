package cli

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/manualdesk/internal/admin"
	"github.com/raphaelgruber/manualdesk/internal/client"
	"golang.org/x/term"
)

// progressMsg carries a new upload progress value in percent.
type progressMsg int

// uploadDoneMsg carries the outcome of the upload.
type uploadDoneMsg struct {
	resp *client.UploadResponse
	err  error
}

// uploadModel is the bubbletea model for a running upload.
type uploadModel struct {
	ctrl     *admin.Controller
	ctx      context.Context
	cancel   context.CancelFunc
	filename string
	percent  int
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	resp     *client.UploadResponse
	err      error
}

// newUploadModel creates a new upload progress model.
func newUploadModel(ctx context.Context, ctrl *admin.Controller, filename string, theme Theme) uploadModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	ctx, cancel := context.WithCancel(ctx)
	return uploadModel{
		ctrl:     ctrl,
		ctx:      ctx,
		cancel:   cancel,
		filename: filename,
		progress: prog,
		theme:    theme,
	}
}

// Init starts the upload.
func (m uploadModel) Init() tea.Cmd {
	return tea.Batch(
		m.upload(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m uploadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// The upload goroutine reports back with a cancellation error.
			m.quitting = true
			m.cancel()
			return m, nil
		}

	case progressMsg:
		m.percent = int(msg)
		return m, nil

	case uploadDoneMsg:
		m.done = true
		m.percent = 100
		m.resp = msg.resp
		m.err = msg.err
		m.cancel()
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m uploadModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m uploadModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	status := m.theme.statusStyle().Render("[uploading]")
	bar := m.progress.ViewAs(float64(m.percent) / 100)
	hint := m.theme.hintStyle().Render("Processing can take a few minutes. Press Ctrl+C to cancel.")
	return fmt.Sprintf("%s %s %s %3d%%\n%s\n", status, m.filename, bar, m.percent, hint)
}

func (m uploadModel) finalView() string {
	if m.err != nil {
		if m.quitting {
			return m.theme.hintStyle().Render(fmt.Sprintf("\nUpload of %s cancelled.\n", m.filename))
		}
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ %s\n", m.err))
	}
	return m.theme.completedStyle().Render("✓ Uploaded") + "\n"
}

func (m uploadModel) upload() tea.Cmd {
	return func() tea.Msg {
		resp, err := m.ctrl.Upload(m.ctx)
		return uploadDoneMsg{resp: resp, err: err}
	}
}

// progressRelay forwards controller progress callbacks to the running
// program, if there is one.
type progressRelay struct {
	p atomic.Pointer[tea.Program]
}

func (r *progressRelay) send(percent int) {
	if p := r.p.Load(); p != nil {
		p.Send(progressMsg(percent))
	}
}

// isInteractive reports whether stdout is a terminal.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// runUpload uploads the selected draft. On a terminal it shows the progress
// bar; otherwise the controller's notices are the only output.
func runUpload(ctx context.Context, ctrl *admin.Controller, relay *progressRelay, filename string) (*client.UploadResponse, error) {
	if !isInteractive() {
		return ctrl.Upload(ctx)
	}

	model := newUploadModel(ctx, ctrl, filename, out.currentTheme())
	p := tea.NewProgram(model)
	relay.p.Store(p)
	defer relay.p.Store(nil)

	out.hold()
	defer out.release()

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}
	if m, ok := finalModel.(uploadModel); ok {
		return m.resp, m.err
	}
	return nil, nil
}
