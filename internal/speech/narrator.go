// Package speech reads chat answers aloud through an external
// text-to-speech command. At most one utterance plays at a time.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"sync"
)

// Engine speaks text. Speak blocks until the utterance ends or ctx is
// cancelled.
type Engine interface {
	Speak(ctx context.Context, text, lang string) error
}

var (
	markdownSymbols = regexp.MustCompile("[#*`]")
	whitespace      = regexp.MustCompile(`\s+`)
)

// CleanText strips markdown symbols and turns line breaks into sentence
// pauses.
func CleanText(text string) string {
	text = markdownSymbols.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\n", ". ")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// CommandEngine runs a shell-free command line and pipes the text to its
// stdin. The token {lang} in the command is replaced by the language code,
// e.g. "espeak-ng -v {lang}".
type CommandEngine struct {
	Command string
}

// Speak implements Engine.
func (e CommandEngine) Speak(ctx context.Context, text, lang string) error {
	fields := strings.Fields(e.Command)
	if len(fields) == 0 {
		return errors.New("no text-to-speech command configured")
	}
	for i, f := range fields {
		fields[i] = strings.ReplaceAll(f, "{lang}", lang)
	}
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", fields[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Narrator plays one utterance at a time.
type Narrator struct {
	engine Engine
	logger *slog.Logger

	// speakMu serializes Speak and Stop, so stopping the old utterance and
	// installing the new one happen as one step.
	speakMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNarrator creates a narrator using engine.
func NewNarrator(engine Engine, logger *slog.Logger) *Narrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Narrator{engine: engine, logger: logger}
}

// Speak stops the current utterance, if any, and starts reading text in the
// background.
func (n *Narrator) Speak(text, lang string) {
	n.speakMu.Lock()
	defer n.speakMu.Unlock()
	n.stop()

	clean := CleanText(text)
	if clean == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	n.mu.Lock()
	n.cancel = cancel
	n.done = done
	n.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		n.logger.Debug("started speaking", "lang", lang, "chars", len(clean))
		if err := n.engine.Speak(ctx, clean, lang); err != nil && !errors.Is(err, context.Canceled) {
			n.logger.Warn("text-to-speech failed", "error", err)
			return
		}
		n.logger.Debug("finished speaking")
	}()
}

// Stop interrupts the current utterance and waits for it to end.
func (n *Narrator) Stop() {
	n.speakMu.Lock()
	defer n.speakMu.Unlock()
	n.stop()
}

func (n *Narrator) stop() {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.cancel, n.done = nil, nil
	n.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Speaking reports whether an utterance is playing.
func (n *Narrator) Speaking() bool {
	n.mu.Lock()
	done := n.done
	n.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Wait blocks until the current utterance ends.
func (n *Narrator) Wait() {
	n.mu.Lock()
	done := n.done
	n.mu.Unlock()
	if done != nil {
		<-done
	}
}
