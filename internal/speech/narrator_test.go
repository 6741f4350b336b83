package speech

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"# Title\n\n**bold** and `code`", "Title. . bold and code"},
		{"  spaced   out  ", "spaced out"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanText(tt.in))
	}
}

// blockingEngine records utterances and blocks until cancelled.
type blockingEngine struct {
	mu       sync.Mutex
	started  []string
	canceled []string
}

func (e *blockingEngine) Speak(ctx context.Context, text, lang string) error {
	e.mu.Lock()
	e.started = append(e.started, text)
	e.mu.Unlock()
	<-ctx.Done()
	e.mu.Lock()
	e.canceled = append(e.canceled, text)
	e.mu.Unlock()
	return ctx.Err()
}

func TestNarratorSpeaksOneAtATime(t *testing.T) {
	engine := &blockingEngine{}
	n := NewNarrator(engine, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n.Speak("first answer", "en")
	require.Eventually(t, n.Speaking, time.Second, time.Millisecond)

	n.Speak("second answer", "en")
	engine.mu.Lock()
	assert.Equal(t, []string{"first answer"}, engine.canceled, "previous utterance stopped before the next starts")
	engine.mu.Unlock()

	n.Stop()
	assert.False(t, n.Speaking())
	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.Equal(t, []string{"first answer", "second answer"}, engine.started)
	assert.Equal(t, []string{"first answer", "second answer"}, engine.canceled)
}

// countingEngine tracks how many utterances play at the same time.
type countingEngine struct {
	mu       sync.Mutex
	active   int
	peak     int
	started  int
	finished int
}

func (e *countingEngine) Speak(ctx context.Context, text, lang string) error {
	e.mu.Lock()
	e.active++
	e.started++
	if e.active > e.peak {
		e.peak = e.active
	}
	e.mu.Unlock()

	<-ctx.Done()

	e.mu.Lock()
	e.active--
	e.finished++
	e.mu.Unlock()
	return ctx.Err()
}

func TestNarratorConcurrentSpeak(t *testing.T) {
	engine := &countingEngine{}
	n := NewNarrator(engine, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Speak("hello", "en")
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return engine.started == 50
	}, time.Second, time.Millisecond)

	n.Stop()
	assert.False(t, n.Speaking())

	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.Equal(t, 1, engine.peak)
	assert.Equal(t, 0, engine.active)
	assert.Equal(t, 50, engine.finished)
}

func TestNarratorSkipsEmptyText(t *testing.T) {
	engine := &blockingEngine{}
	n := NewNarrator(engine, nil)
	n.Speak("**``**", "en")
	assert.False(t, n.Speaking())
	n.Stop()
}

func TestCommandEngine(t *testing.T) {
	err := CommandEngine{}.Speak(context.Background(), "hi", "en")
	assert.Error(t, err)

	require.NoError(t, CommandEngine{Command: "cat"}.Speak(context.Background(), "hi", "en"))
}
